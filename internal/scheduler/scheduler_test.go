package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAddValidatesSpec(t *testing.T) {
	s := New(nil, 0)

	assert.NoError(t, s.Add(Job{Name: "disabled"}))
	assert.Zero(t, s.Len())

	assert.Error(t, s.Add(Job{Name: "bad", Spec: "every tuesday-ish"}))

	require.NoError(t, s.Add(Job{Name: "gc", Spec: "@every 1h", Run: func(context.Context) error { return nil }}))
	assert.Error(t, s.Add(Job{Name: "gc", Spec: "@every 2h"}))
	assert.Equal(t, 1, s.Len())
}

func TestRunExecutesJobs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := New(zap.New(core), time.Second)

	var runs atomic.Int32
	require.NoError(t, s.Add(Job{Name: "tick", Spec: "@every 1s", Run: func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("boom")
	}}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() > 0 }, 5*time.Second, 50*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.GreaterOrEqual(t, logs.FilterMessage("job failed").Len(), 1)
}
