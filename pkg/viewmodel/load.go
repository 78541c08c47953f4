package viewmodel

import (
	"context"
)

// Load is the pending result of Initialize.
type Load struct {
	done chan struct{}
	err  error
}

func newLoad() *Load {
	return &Load{done: make(chan struct{})}
}

func (l *Load) resolve(err error) {
	l.err = err
	close(l.done)
}

// Done is closed once the load is resolved.
func (l *Load) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the load is resolved or ctx is done.
// A canceled ctx does not affect the load itself.
func (l *Load) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the result of a resolved load, nil while pending.
func (l *Load) Err() error {
	select {
	case <-l.done:
		return l.err
	default:
		return nil
	}
}
