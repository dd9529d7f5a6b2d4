package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/and161185/troubleshooter/internal/errs"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunWithDeadline_Result(t *testing.T) {
	v, err := runWithDeadline(context.Background(), zap.NewNop(), "op", time.Second, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestRunWithDeadline_IgnoringContextStillTimesOut(t *testing.T) {
	release := make(chan struct{})
	var finished atomic.Bool
	start := time.Now()

	_, err := runWithDeadline(context.Background(), zap.NewNop(), "stuck", 30*time.Millisecond, func(context.Context) (int, error) {
		<-release
		finished.Store(true)
		return 1, nil
	})
	require.ErrorIs(t, err, errs.ErrTimeout)
	var te *errs.TimeoutError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "stuck", te.Op)
	require.Less(t, time.Since(start), time.Second)

	close(release)
	require.Eventually(t, finished.Load, time.Second, 5*time.Millisecond, "the loser keeps running")
}

func TestRunWithDeadline_ContextAwareCallMapsToTimeout(t *testing.T) {
	_, err := runWithDeadline(context.Background(), zap.NewNop(), "ctx", 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.ErrorIs(t, err, errs.ErrTimeout)
}

func TestRunWithDeadline_ParentCancelIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runWithDeadline(ctx, zap.NewNop(), "cancelled", time.Second, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, errs.ErrTimeout)
}

func TestRunErrWithDeadline_PassesErrors(t *testing.T) {
	boom := errors.New("boom")
	err := runErrWithDeadline(context.Background(), zap.NewNop(), "op", time.Second, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	err = runErrWithDeadline(context.Background(), zap.NewNop(), "op", 0, func(context.Context) error { return nil })
	require.NoError(t, err, "zero deadline calls through")
}
