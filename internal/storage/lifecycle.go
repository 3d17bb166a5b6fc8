package storage

import (
	"fmt"
	"sync"
)

// State is the lifecycle state of a backend
type State int32

const (
	StateUninitialized State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Lifecycle tracks whether a backend is usable. Operations run under a
// shared hold through Do; Open and Close take the exclusive hold, so a state
// flip never interleaves with an operation body. Closed is terminal.
//
// Do must not be called from inside another Do on the same Lifecycle: a
// pending Close would deadlock the nested shared hold.
type Lifecycle struct {
	mu    sync.RWMutex
	state State
}

// State returns the current state
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Open moves an uninitialized lifecycle to Open after hook succeeds.
// Opening an open lifecycle is a no-op; opening a closed one fails.
func (l *Lifecycle) Open(hook func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateOpen:
		return nil
	case StateClosed:
		return fmt.Errorf("cannot initialize: %w", ErrClosed)
	}

	if hook != nil {
		if err := hook(); err != nil {
			return err
		}
	}

	l.state = StateOpen
	return nil
}

// Close moves the lifecycle to Closed and runs hook. The state is Closed
// even when hook fails. Closing twice is a no-op.
func (l *Lifecycle) Close(hook func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateClosed {
		return nil
	}

	l.state = StateClosed
	if hook != nil {
		return hook()
	}
	return nil
}

// Do runs fn while holding the lifecycle open. It fails with ErrClosed
// without calling fn when the state is not Open.
func (l *Lifecycle) Do(fn func() error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	switch l.state {
	case StateOpen:
		return fn()
	case StateUninitialized:
		return fmt.Errorf("backend not initialized: %w", ErrClosed)
	default:
		return ErrClosed
	}
}
