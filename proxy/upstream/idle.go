package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrIdleTimeout is returned when a read of the upstream body waits longer
// than the configured timeout.
var ErrIdleTimeout = errors.New("upstream idle timeout")

// idleBody cancels the upstream request when a single Read blocks past
// timeout. Time between reads, such as a slow client draining the previous
// frame, is not counted.
type idleBody struct {
	io.ReadCloser
	ctx     context.Context
	cancel  context.CancelCauseFunc
	timer   *time.Timer
	timeout time.Duration
}

func newIdleBody(ctx context.Context, cancel context.CancelCauseFunc, body io.ReadCloser, timeout time.Duration) *idleBody {
	b := &idleBody{
		ReadCloser: body,
		ctx:        ctx,
		cancel:     cancel,
		timeout:    timeout,
	}
	b.timer = time.AfterFunc(timeout, func() { cancel(ErrIdleTimeout) })
	b.timer.Stop()
	return b
}

func (b *idleBody) Read(p []byte) (int, error) {
	b.timer.Reset(b.timeout)
	n, err := b.ReadCloser.Read(p)
	b.timer.Stop()

	if err != nil && errors.Is(context.Cause(b.ctx), ErrIdleTimeout) {
		return n, fmt.Errorf("reading upstream body after %s: %w", b.timeout, ErrIdleTimeout)
	}
	return n, err
}

func (b *idleBody) Close() error {
	b.timer.Stop()
	err := b.ReadCloser.Close()
	b.cancel(context.Canceled)
	return err
}
