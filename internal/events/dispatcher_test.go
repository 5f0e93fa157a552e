package events

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestDispatcherRunsAndDrains(t *testing.T) {
	d := NewDispatcher(3, 16, time.Second, quietLogger())

	var ran atomic.Int32
	for i := 0; i < 20; i++ {
		require.NoError(t, d.Enqueue(context.Background(), "count", func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int32(20), ran.Load())
}

func TestDispatcherSurvivesFailuresAndPanics(t *testing.T) {
	d := NewDispatcher(1, 4, time.Second, quietLogger())

	var after atomic.Bool
	require.NoError(t, d.Enqueue(context.Background(), "fails", func(context.Context) error {
		return errors.New("smtp down")
	}))
	require.NoError(t, d.Enqueue(context.Background(), "panics", func(context.Context) error {
		panic("boom")
	}))
	require.NoError(t, d.Enqueue(context.Background(), "after", func(context.Context) error {
		after.Store(true)
		return nil
	}))

	require.NoError(t, d.Close(context.Background()))
	assert.True(t, after.Load())
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(1, 1, time.Second, quietLogger())
	require.NoError(t, d.Close(context.Background()))

	err := d.Enqueue(context.Background(), "late", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrDispatcherClosed)
	assert.NoError(t, d.Close(context.Background()))
}

func TestDispatcherTaskContextHasDeadline(t *testing.T) {
	d := NewDispatcher(1, 1, 50*time.Millisecond, quietLogger())

	var hadDeadline atomic.Bool
	require.NoError(t, d.Enqueue(context.Background(), "deadline", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		hadDeadline.Store(ok)
		return nil
	}))
	require.NoError(t, d.Close(context.Background()))
	assert.True(t, hadDeadline.Load())
}

func TestDispatcherEnqueueHonoursContext(t *testing.T) {
	d := NewDispatcher(1, 0, time.Second, quietLogger())
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "block", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Enqueue(ctx, "waits", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, d.Close(context.Background()))
}
