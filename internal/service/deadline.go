package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/and161185/troubleshooter/internal/errs"
	"go.uber.org/zap"
)

// runWithDeadline calls fn with a context bounded by d and returns as soon as
// either fn finishes or d elapses, even if fn never looks at its context.
// A result produced after the deadline is logged and dropped.
// If the parent ctx ends first its error is returned instead of a timeout.
func runWithDeadline[T any](ctx context.Context, log *zap.Logger, op string, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return fn(ctx)
	}
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	var abandoned atomic.Bool
	go func() {
		v, err := fn(cctx)
		if abandoned.Load() {
			log.Debug("late result discarded", zap.String("op", op), zap.Error(err))
		}
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, &errs.TimeoutError{Op: op, After: d}
		}
		return r.v, r.err
	case <-cctx.Done():
		abandoned.Store(true)
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		log.Warn("operation timed out", zap.String("op", op), zap.Duration("after", d))
		return zero, &errs.TimeoutError{Op: op, After: d}
	}
}

// runErrWithDeadline is runWithDeadline for calls that only return an error.
func runErrWithDeadline(ctx context.Context, log *zap.Logger, op string, d time.Duration, fn func(context.Context) error) error {
	_, err := runWithDeadline(ctx, log, op, d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
