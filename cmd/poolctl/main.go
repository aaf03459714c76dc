package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jmerrifield20/minipool/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL    string
	bearerToken  string
	cfgFile      string
	outputFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "poolctl",
	Short: "minipool command-line client",
	Long: `poolctl talks to a poold lending pool: approve the pool as a spender,
deposit and withdraw, read balances and totals, inspect the audit journal.

It can also mint participant session tokens from the shared secret and run
the reentrancy simulation locally, without a server.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.minipool")
			viper.SetConfigName("poolctl")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("POOLCTL")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8090"
		}
		if bearerToken == "" {
			bearerToken = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.minipool/poolctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "poold base URL (default http://localhost:8090)")
	rootCmd.PersistentFlags().StringVar(&bearerToken, "token", "", "participant session token (or POOLCTL_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "Output format: text or json")

	rootCmd.AddCommand(depositCmd, withdrawCmd, approveCmd)
	rootCmd.AddCommand(balanceCmd, totalCmd, journalCmd, healthCmd)
	rootCmd.AddCommand(tokenCmd, addressCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(versionCmd)
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the poolctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "poolctl %s\n", version)
	},
}

// ── helpers ──────────────────────────────────────────────────────────────────

func newClient() (*client.Client, error) {
	var opts []client.Option
	if bearerToken != "" {
		opts = append(opts, client.WithBearerToken(bearerToken))
	}
	return client.New(serverURL, opts...)
}

func parseAmount(s string) (uint64, error) {
	n, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q: must be a non-negative integer", s)
	}
	return n, nil
}

// emit writes v as indented JSON when --format json, otherwise calls text.
func emit(w io.Writer, v any, text func(io.Writer)) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "text", "":
		text(w)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text or json)", outputFormat)
	}
}
