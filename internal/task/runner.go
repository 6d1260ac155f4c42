// Package task runs blocking operations off the foreground loop.
//
// The foreground starts an action and keeps handling input; the action
// reports back once on its own channel. Only one action runs at a time,
// which is what keeps connect, execute and disconnect on a single SSH
// session in order.
package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ErrBusy is returned by Start while another action is in flight.
var ErrBusy = errors.New("another action is in progress")

// Outcome is the single message an action sends back.
type Outcome struct {
	Action  string
	Value   any
	Err     error
	Elapsed time.Duration
}

// Runner allows one in-flight action.
type Runner struct {
	logger *slog.Logger

	mu   sync.Mutex
	busy string
}

// NewRunner returns an idle runner. A nil logger discards output.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{logger: logger}
}

// Busy returns the name of the running action, or "".
func (r *Runner) Busy() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy
}

// Start runs fn on a new goroutine. The returned channel receives exactly
// one Outcome and is then closed. A panic in fn is reported as an error.
func (r *Runner) Start(ctx context.Context, action string, fn func(ctx context.Context) (any, error)) (<-chan Outcome, error) {
	r.mu.Lock()
	if r.busy != "" {
		running := r.busy
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrBusy, running)
	}
	r.busy = action
	r.mu.Unlock()

	out := make(chan Outcome, 1)
	go func() {
		start := time.Now()
		o := Outcome{Action: action}
		defer func() {
			if p := recover(); p != nil {
				o.Value = nil
				o.Err = fmt.Errorf("%s panicked: %v", action, p)
			}
			o.Elapsed = time.Since(start)
			r.mu.Lock()
			r.busy = ""
			r.mu.Unlock()
			r.logger.Debug("action finished", "action", action, "elapsed", o.Elapsed, "err", o.Err)
			out <- o
			close(out)
		}()
		o.Value, o.Err = fn(ctx)
	}()
	return out, nil
}

// Wait blocks until o delivers or ctx is done. The action keeps running
// after ctx is done; its outcome is simply dropped.
func Wait(ctx context.Context, o <-chan Outcome) (Outcome, error) {
	select {
	case res := <-o:
		return res, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
