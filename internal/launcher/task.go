// SPDX-License-Identifier:Apache-2.0

package launcher

import (
	"context"
	"sync"
)

// Task is the handle of a background task. The task runs until it
// returns or Stop is called; nothing waits for it unless asked to.
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// spawn runs fn in a new goroutine. The task context keeps the values of
// parent but not its cancellation.
func spawn(parent context.Context, name string, fn func(ctx context.Context) error) *Task {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	t := &Task{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		defer cancel()
		err := fn(ctx)
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
	}()

	return t
}

func (t *Task) Name() string {
	return t.name
}

// Stop requests the task to shut down. It does not wait.
func (t *Task) Stop() {
	t.cancel()
}

// Done is closed when the task has returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the error the task returned, nil while it is running.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Wait blocks until the task returns or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
