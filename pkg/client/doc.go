// Package client is the Go SDK for the minipool HTTP API.
//
// A participant authenticates with a session token issued for their
// address, approves the pool as a spender once, and then deposits and
// withdraws:
//
//	c, err := client.New("http://localhost:8090", client.WithBearerToken(token))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if _, err := c.Approve(ctx, 1_000); err != nil {
//	    log.Fatal(err)
//	}
//	pos, err := c.Deposit(ctx, 250)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(pos.Balance, pos.Total)
//
// # Errors
//
// Every non-2xx response is an *APIError. Match the common cases with
// errors.Is:
//
//	_, err := c.Withdraw(ctx, 10_000)
//	if errors.Is(err, client.ErrInsufficientBalance) {
//	    // the request was rejected and nothing changed
//	}
//
// Read-only calls (Balance, Total, Reconcile, AssetBalance, Journal,
// VerifyJournal, JournalEntry) need no token.
package client
