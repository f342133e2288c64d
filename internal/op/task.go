package op

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

type State int32

const (
	StatePending State = iota
	StateRunning
	StateSucceeded
	StateFailed
	// StateDone follows Succeeded or Failed once the session was refreshed.
	StateDone
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// Task is the handle of an operation submitted to the coordinator.
type Task[T any] struct {
	ID        string
	SessionID string
	Name      string

	state  atomic.Int32
	done   chan struct{}
	once   sync.Once
	result T
	err    error
}

func newTask[T any](sessionID, name string) *Task[T] {
	return &Task[T]{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Name:      name,
		done:      make(chan struct{}),
	}
}

func (t *Task[T]) State() State {
	return State(t.state.Load())
}

func (t *Task[T]) setState(s State) {
	t.state.Store(int32(s))
}

// Done is closed once the task reached StateDone.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Err is the outcome of the task, only meaningful after Done.
func (t *Task[T]) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

func (t *Task[T]) Result() T {
	select {
	case <-t.done:
		return t.result
	default:
		var zero T
		return zero
	}
}

// Wait blocks until the task is done or ctx ends. A ctx error does not
// cancel the task.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (t *Task[T]) finish(result T, err error) {
	t.once.Do(func() {
		t.result, t.err = result, err
		if err != nil {
			t.setState(StateFailed)
		} else {
			t.setState(StateSucceeded)
		}
	})
}

func (t *Task[T]) close() {
	t.setState(StateDone)
	close(t.done)
}

// failed returns a task that is already done with err.
func failed[T any](sessionID, name string, err error) *Task[T] {
	t := newTask[T](sessionID, name)
	t.finish(*new(T), err)
	t.close()
	return t
}
