package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/ocr-extractor/internal/domain"
)

func TestJob_PercentNeverDecreases(t *testing.T) {
	job := NewJobRegistry(0).Create(domain.EngineLocal, "a.pdf")
	job.start()

	job.setPercent(40)
	job.setPercent(20)
	assert.Equal(t, 40, job.snapshot().Percent)
	assert.Equal(t, JobStatusRunning, job.snapshot().Status)
}

func TestJob_FinishIsFinal(t *testing.T) {
	job := NewJobRegistry(0).Create(domain.EngineLocal, "a.pdf")
	job.start()
	job.setPercent(33)
	job.finish("", errors.New("boom"))

	job.setPercent(90)
	v := job.snapshot()
	assert.Equal(t, JobStatusFailed, v.Status)
	assert.Equal(t, 33, v.Percent)
	require.NotNil(t, v.Result)
	assert.False(t, v.Result.Success)
	assert.NotNil(t, v.FinishedAt)
}

func TestJob_Watch(t *testing.T) {
	job := NewJobRegistry(0).Create(domain.EngineLocal, "a.pdf")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	views := job.watch(ctx)
	first := <-views
	assert.Equal(t, JobStatusPending, first.Status)

	job.start()
	job.setPercent(10)
	job.finish("done", nil)

	var last JobView
	for v := range views {
		last = v
	}
	assert.Equal(t, JobStatusCompleted, last.Status)
	assert.Equal(t, 100, last.Percent)

	again := job.watch(ctx)
	v, ok := <-again
	require.True(t, ok)
	assert.Equal(t, JobStatusCompleted, v.Status)
	_, ok = <-again
	assert.False(t, ok)
}

func TestJob_WatchCancelled(t *testing.T) {
	job := NewJobRegistry(0).Create(domain.EngineLocal, "a.pdf")
	ctx, cancel := context.WithCancel(context.Background())

	views := job.watch(ctx)
	<-views
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-views:
			return !ok
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	job.finish("late", nil)
}

func TestJobRegistry_Retention(t *testing.T) {
	reg := NewJobRegistry(time.Minute)

	done := reg.Create(domain.EngineLocal, "done.pdf")
	done.finish("x", nil)
	running := reg.Create(domain.EngineLocal, "running.pdf")
	running.start()

	_, ok := reg.Get(done.snapshot().ID)
	require.True(t, ok)

	reg.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, ok = reg.Get(done.snapshot().ID)
	assert.False(t, ok)
	_, ok = reg.Get(running.snapshot().ID)
	assert.True(t, ok)
	assert.Equal(t, 1, reg.Len())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, 413, statusFor(domain.SizeLimitExceeded(2, 1)))
	assert.Equal(t, 415, statusFor(domain.UnsupportedFileType("text/plain")))
	assert.Equal(t, 422, statusFor(domain.NewPageProcessingError(1, domain.RecognitionError("x", nil))))
	assert.Equal(t, 400, statusFor(domain.ValidationError("x", nil)))
	assert.Equal(t, 502, statusFor(domain.APIError("x", nil)))
	assert.Equal(t, 500, statusFor(context.DeadlineExceeded))
}
