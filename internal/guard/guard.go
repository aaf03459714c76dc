// Package guard implements a non-blocking reentrancy lock.
//
// A Guard has two states, unlocked and locked. Enter fails immediately with
// ErrReentrantCall while the guard is locked; it never waits. The release
// function returned by Enter must be deferred so the guard is unlocked on
// every exit path, including panics.
package guard

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrReentrantCall is returned when a guarded operation is entered while
// another guarded operation on the same guard is still in progress.
var ErrReentrantCall = errors.New("reentrant call")

// Guard is a single-flight lock. The zero value is unlocked and ready to use.
// A Guard must not be copied after first use.
type Guard struct {
	locked atomic.Bool
}

// Enter locks the guard. If it is already locked, Enter returns
// ErrReentrantCall and leaves the state untouched. Otherwise it returns an
// idempotent release function.
func (g *Guard) Enter() (release func(), err error) {
	if !g.locked.CompareAndSwap(false, true) {
		return nil, ErrReentrantCall
	}
	var once sync.Once
	return func() {
		once.Do(func() { g.locked.Store(false) })
	}, nil
}

// Locked reports whether a guarded operation is in progress.
func (g *Guard) Locked() bool { return g.locked.Load() }
