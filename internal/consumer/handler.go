package consumer

import (
	"context"
	"fmt"
)

// Outcome classifies a delivery attempt.
type Outcome int

const (
	// Delivered means the handler accepted the data.
	Delivered Outcome = iota
	// Retryable failures may succeed on a later attempt.
	Retryable
	// Fatal failures are never retried.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "ok"
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result is what a Handler reports for one delivery.
type Result struct {
	Outcome Outcome
	Err     error
}

// OK reports a successful delivery.
func OK() Result { return Result{Outcome: Delivered} }

// Retry reports a failure worth retrying.
func Retry(err error) Result { return Result{Outcome: Retryable, Err: err} }

// Abort reports a permanent failure.
func Abort(err error) Result { return Result{Outcome: Fatal, Err: err} }

// IsOK reports whether the delivery succeeded.
func (r Result) IsOK() bool { return r.Outcome == Delivered }

func (r Result) Error() string {
	if r.Err == nil {
		return r.Outcome.String()
	}
	return fmt.Sprintf("%s: %v", r.Outcome, r.Err)
}

// Handler is the interface every downstream consumer implements.
type Handler interface {
	// Handle receives the transformed data for one event.
	Handle(ctx context.Context, data map[string]any) Result
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, data map[string]any) Result

func (f HandlerFunc) Handle(ctx context.Context, data map[string]any) Result { return f(ctx, data) }

// FromErrorFunc adapts an error-returning function. A nil error is a
// delivery; any other error is retryable.
func FromErrorFunc(fn func(ctx context.Context, data map[string]any) error) Handler {
	return HandlerFunc(func(ctx context.Context, data map[string]any) Result {
		if err := fn(ctx, data); err != nil {
			return Retry(err)
		}
		return OK()
	})
}
