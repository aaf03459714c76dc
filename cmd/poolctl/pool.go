package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/jmerrifield20/minipool/pkg/address"
	"github.com/jmerrifield20/minipool/pkg/client"
	"github.com/spf13/cobra"
)

// ── deposit / withdraw / approve ─────────────────────────────────────────────

var depositCmd = &cobra.Command{
	Use:   "deposit <amount>",
	Short: "Deposit asset into the pool",
	Long: `Deposit pulls <amount> of your asset into the pool. The pool must hold
an allowance first (see "poolctl approve").`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPosition(cmd, args[0], (*client.Client).Deposit)
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <amount>",
	Short: "Withdraw part of your deposit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPosition(cmd, args[0], (*client.Client).Withdraw)
	},
}

func runPosition(cmd *cobra.Command, rawAmount string, op func(*client.Client, context.Context, uint64) (*client.Position, error)) error {
	amount, err := parseAmount(rawAmount)
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}
	pos, err := op(c, cmd.Context(), amount)
	if err != nil {
		return err
	}
	return emit(cmd.OutOrStdout(), pos, func(w io.Writer) {
		fmt.Fprintf(w, "participant  %s\nbalance      %d\npool total   %d\n", pos.Participant, pos.Balance, pos.Total)
	})
}

var approveCmd = &cobra.Command{
	Use:   "approve <amount>",
	Short: "Allow the pool to pull up to <amount> of your asset (0 revokes)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(args[0])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		a, err := c.Approve(cmd.Context(), amount)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), a, func(w io.Writer) {
			fmt.Fprintf(w, "%s may pull %d from %s\n", a.Spender, a.Allowance, a.Owner)
		})
	},
}

// ── balance ──────────────────────────────────────────────────────────────────

var balanceAsset bool

var balanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Show a participant's pool balance (default: the token's participant)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var addr address.Address
		if len(args) == 1 {
			a, err := address.Parse(args[0])
			if err != nil {
				return err
			}
			addr = a
		}
		c, err := newClient()
		if err != nil {
			return err
		}

		if balanceAsset {
			ab, err := c.AssetBalance(cmd.Context(), addr)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), ab, func(w io.Writer) {
				fmt.Fprintf(w, "%d %s (pool allowance %d)\n", ab.Balance, ab.Symbol, ab.Allowance)
			})
		}

		bal, err := c.Balance(cmd.Context(), addr)
		if err != nil {
			return err
		}
		pos := client.Position{Participant: addr, Balance: bal}
		return emit(cmd.OutOrStdout(), pos, func(w io.Writer) {
			fmt.Fprintln(w, bal)
		})
	},
}

func init() {
	balanceCmd.Flags().BoolVar(&balanceAsset, "asset", false, "Show the asset balance instead of the pool balance")
}

// ── total ────────────────────────────────────────────────────────────────────

var totalCmd = &cobra.Command{
	Use:   "total",
	Short: "Show total deposits, custody balance and reconciliation status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		totals, err := c.Total(cmd.Context())
		if err != nil {
			return err
		}
		rec, err := c.Reconcile(cmd.Context())
		if err != nil {
			return err
		}

		out := struct {
			*client.PoolTotals
			Reconciliation *client.Reconciliation `json:"reconciliation"`
		}{totals, rec}
		return emit(cmd.OutOrStdout(), out, func(w io.Writer) {
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "total deposited\t%d\n", totals.Total)
			fmt.Fprintf(tw, "custody\t%d\n", totals.Custody)
			fmt.Fprintf(tw, "gate\t%s\n", totals.Gate)
			if rec.Consistent {
				fmt.Fprintf(tw, "reconciled\tyes\n")
			} else {
				fmt.Fprintf(tw, "reconciled\tNO: %s\n", rec.Error)
			}
			tw.Flush()
		})
	},
}

// ── journal ──────────────────────────────────────────────────────────────────

var (
	journalParticipant string
	journalLimit       int
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List recent audit journal entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var who address.Address
		if journalParticipant != "" {
			a, err := address.Parse(journalParticipant)
			if err != nil {
				return err
			}
			who = a
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		ov, err := c.Journal(cmd.Context(), who, journalLimit)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), ov, func(w io.Writer) {
			fmt.Fprintf(w, "%d entries, root %s\n\n", ov.Entries, ov.Root)
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "IDX\tTIME\tKIND\tPARTICIPANT\tHASH")
			for _, e := range ov.Recent {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.16s\n",
					e.Index, e.Timestamp.Format("2006-01-02 15:04:05"), e.Kind, e.Participant, e.Hash)
			}
			tw.Flush()
		})
	},
}

var journalVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the journal hash chain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		v, err := c.VerifyJournal(cmd.Context())
		if err != nil {
			return err
		}
		if err := emit(cmd.OutOrStdout(), v, func(w io.Writer) {
			if v.Valid {
				fmt.Fprintln(w, "journal chain intact")
			} else {
				fmt.Fprintf(w, "journal chain BROKEN: %s\n", v.Error)
			}
		}); err != nil {
			return err
		}
		if !v.Valid {
			return fmt.Errorf("journal verification failed")
		}
		return nil
	},
}

var journalEntryCmd = &cobra.Command{
	Use:   "entry <idx>",
	Short: "Show a single journal entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := strconv.Atoi(args[0])
		if err != nil || idx < 0 {
			return fmt.Errorf("idx must be a non-negative integer")
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		e, err := c.JournalEntry(cmd.Context(), idx)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), e, func(w io.Writer) {
			fmt.Fprintf(w, "index        %d\nid           %s\ntime         %s\nkind         %s\nparticipant  %s\npayload      %s\nhash         %s\nprev hash    %s\n",
				e.Index, e.ID, e.Timestamp.Format("2006-01-02T15:04:05.000000Z07:00"), e.Kind, e.Participant, e.Payload, e.Hash, e.PrevHash)
		})
	},
}

func init() {
	journalCmd.Flags().StringVar(&journalParticipant, "participant", "", "Only entries of this address")
	journalCmd.Flags().IntVar(&journalLimit, "limit", 20, "Maximum entries to list")
	journalCmd.AddCommand(journalVerifyCmd, journalEntryCmd)
}

// ── health ───────────────────────────────────────────────────────────────────

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show the server's background reconciliation and journal checks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		rep, err := c.Health(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), rep, func(w io.Writer) {
			fmt.Fprintf(w, "status: %s\n\n", rep.Status)
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CHECK\tSTATUS\tFAILURES\tLAST ERROR")
			for _, ch := range rep.Checks {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", ch.Name, ch.Status, ch.Failures, ch.LastError)
			}
			tw.Flush()
		})
	},
}
