package sandbox

import (
	"sync"
)

// BackgroundTask is a Background implementation for session implementations,
// they call Close once the subcommand has ended.
type BackgroundTask struct {
	cancel func()

	mu       sync.Mutex
	closed   bool
	err      error
	handlers []func(error)
	done     chan struct{}
}

// NewBackgroundTask returns a new background task, cancel is called on Stop.
func NewBackgroundTask(cancel func()) *BackgroundTask {
	if cancel == nil {
		cancel = func() {}
	}
	return &BackgroundTask{
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Stop cancels the task.
func (b *BackgroundTask) Stop() { b.cancel() }

// OnClosed registers a close handler.
func (b *BackgroundTask) OnClosed(fn func(err error)) {
	b.mu.Lock()
	if !b.closed {
		b.handlers = append(b.handlers, fn)
		b.mu.Unlock()
		return
	}
	err := b.err
	b.mu.Unlock()

	fn(err)
}

// Wait waits until the task is closed.
func (b *BackgroundTask) Wait() error {
	<-b.done
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Close marks the task as ended. Only the first call has effect.
func (b *BackgroundTask) Close(err error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.err = err
	handlers := b.handlers
	b.handlers = nil
	close(b.done)
	b.mu.Unlock()

	for _, h := range handlers {
		h(err)
	}
}
