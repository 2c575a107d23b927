package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestRunNowRecordsResult(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(func(ctx context.Context) error { return boom }, time.UTC, arbor.NewNoOpLogger())

	err := svc.RunNow(context.Background())
	assert.ErrorIs(t, err, boom)

	at, last := svc.LastRun()
	assert.False(t, at.IsZero())
	assert.ErrorIs(t, last, boom)
}

func TestRunNowRecoversPanic(t *testing.T) {
	svc := NewService(func(ctx context.Context) error { panic("bad") }, time.UTC, arbor.NewNoOpLogger())

	err := svc.RunNow(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")

	// The processing flag must be cleared after a panic
	assert.NotErrorIs(t, svc.RunNow(context.Background()), ErrRunInProgress)
}

func TestRunNowRejectsOverlap(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	svc := NewService(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}, time.UTC, arbor.NewNoOpLogger())

	done := make(chan error, 1)
	go func() { done <- svc.RunNow(context.Background()) }()
	<-started

	assert.ErrorIs(t, svc.RunNow(context.Background()), ErrRunInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestStartTriggersJob(t *testing.T) {
	var calls atomic.Int64
	svc := NewService(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, time.UTC, arbor.NewNoOpLogger())

	require.NoError(t, svc.Start(context.Background(), "@every 1s"))
	defer svc.Stop()

	assert.False(t, svc.NextRun().IsZero())
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
}

func TestStartRejectsBadExpression(t *testing.T) {
	svc := NewService(func(ctx context.Context) error { return nil }, time.UTC, arbor.NewNoOpLogger())
	assert.Error(t, svc.Start(context.Background(), "every now and then"))
	svc.Stop()
}

func TestStartTwice(t *testing.T) {
	svc := NewService(func(ctx context.Context) error { return nil }, time.UTC, arbor.NewNoOpLogger())
	require.NoError(t, svc.Start(context.Background(), "*/30 * * * *"))
	defer svc.Stop()
	assert.Error(t, svc.Start(context.Background(), "*/30 * * * *"))
}
