// Package pool implements a single-asset custody ledger with a reentrancy-safe
// mutation discipline.
//
// A Pool maps participants to deposited balances and keeps an aggregate
// total. Two invariants hold between operations:
//
//   - the balances sum to TotalDeposited
//   - TotalDeposited never exceeds the asset balance held at the pool address
//
// Withdrawals hand control to the asset ledger, which may run code owned by
// the recipient. The Gate decides what that code can observe:
//
//   - Safe: commit the debit, then release value, with re-entry rejected by a guard.
//   - OrderingOnly: commit, then release, re-entry allowed but bounded by the committed balance.
//   - Unsafe: release, then commit from a stale snapshot. Kept as the negative case.
package pool
