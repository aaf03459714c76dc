package pool

import (
	"fmt"
	"strings"
)

// Ordering decides when a withdrawal commits its balance decrement relative
// to the external release of value.
type Ordering int

const (
	// CommitThenRelease decrements the tracked balance before releasing value.
	// Re-entrant callers observe the post-commit state.
	CommitThenRelease Ordering = iota

	// ReleaseThenCommit releases value first and writes the balance computed
	// from the pre-release snapshot afterwards. A receiver that re-enters sees
	// the stale balance. Never use it in production.
	ReleaseThenCommit
)

func (o Ordering) String() string {
	switch o {
	case CommitThenRelease:
		return "commit-then-release"
	case ReleaseThenCommit:
		return "release-then-commit"
	default:
		return fmt.Sprintf("ordering(%d)", int(o))
	}
}

// Gate is the transfer policy of a Pool.
type Gate struct {
	Ordering Ordering
	// Guarded rejects nested Deposit/Withdraw calls with ErrReentrantCall.
	Guarded bool
}

var (
	// Safe commits before releasing and blocks re-entry.
	Safe = Gate{Ordering: CommitThenRelease, Guarded: true}

	// OrderingOnly commits before releasing but lets re-entrant calls through,
	// relying on the committed state to bound them.
	OrderingOnly = Gate{Ordering: CommitThenRelease}

	// Unsafe releases before committing and does not block re-entry.
	Unsafe = Gate{Ordering: ReleaseThenCommit}
)

// String returns the preset name when g matches one, otherwise a description.
func (g Gate) String() string {
	switch g {
	case Safe:
		return "safe"
	case OrderingOnly:
		return "ordering-only"
	case Unsafe:
		return "unsafe"
	}
	if g.Guarded {
		return g.Ordering.String() + "+guard"
	}
	return g.Ordering.String()
}

// IsSafe reports whether the gate commits before releasing value.
func (g Gate) IsSafe() bool { return g.Ordering == CommitThenRelease }

// ParseGate maps a preset name to its Gate.
func ParseGate(name string) (Gate, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "safe":
		return Safe, nil
	case "ordering-only":
		return OrderingOnly, nil
	case "unsafe":
		return Unsafe, nil
	default:
		return Gate{}, fmt.Errorf("unknown gate %q (want safe, ordering-only or unsafe)", name)
	}
}
