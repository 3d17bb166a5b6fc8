package storage

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle_Transitions(t *testing.T) {
	var l Lifecycle
	assert.Equal(t, StateUninitialized, l.State())

	err := l.Do(func() error { return nil })
	assert.ErrorIs(t, err, ErrClosed, "operations before initialize must fail")

	require.NoError(t, l.Open(nil))
	assert.Equal(t, StateOpen, l.State())

	require.NoError(t, l.Close(nil))
	assert.Equal(t, StateClosed, l.State())

	err = l.Open(nil)
	assert.ErrorIs(t, err, ErrClosed, "closed is terminal")
	assert.Equal(t, StateClosed, l.State())
}

func TestLifecycle_OpenTwiceRunsHookOnce(t *testing.T) {
	var l Lifecycle
	calls := 0
	hook := func() error {
		calls++
		return nil
	}

	require.NoError(t, l.Open(hook))
	require.NoError(t, l.Open(hook))
	assert.Equal(t, 1, calls)
}

func TestLifecycle_OpenHookFailure(t *testing.T) {
	var l Lifecycle
	boom := errors.New("boom")

	err := l.Open(func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateUninitialized, l.State())

	require.NoError(t, l.Open(nil), "a failed open can be retried")
}

func TestLifecycle_CloseIdempotent(t *testing.T) {
	var l Lifecycle
	require.NoError(t, l.Open(nil))

	calls := 0
	hook := func() error {
		calls++
		return nil
	}
	require.NoError(t, l.Close(hook))
	require.NoError(t, l.Close(hook))
	assert.Equal(t, 1, calls)
}

func TestLifecycle_CloseHookErrorStillCloses(t *testing.T) {
	var l Lifecycle
	require.NoError(t, l.Open(nil))

	boom := errors.New("flush failed")
	err := l.Close(func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateClosed, l.State())
}

func TestLifecycle_DoAfterCloseSkipsBody(t *testing.T) {
	var l Lifecycle
	require.NoError(t, l.Open(nil))
	require.NoError(t, l.Close(nil))

	called := false
	err := l.Do(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, called)
}

func TestLifecycle_CloseWaitsForInFlightOperation(t *testing.T) {
	var l Lifecycle
	require.NoError(t, l.Open(nil))

	started := make(chan struct{})
	release := make(chan struct{})
	var opErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		opErr = l.Do(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	closed := make(chan struct{})
	go func() {
		_ = l.Close(nil)
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("close must wait for the running operation")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	wg.Wait()
	<-closed

	assert.NoError(t, opErr, "an operation admitted before close completes normally")
	assert.ErrorIs(t, l.Do(func() error { return nil }), ErrClosed)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "State(7)", State(7).String())
}
