package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spherical/ocr-extractor/internal/domain"
)

func TestProgress_Percent(t *testing.T) {
	p := NewProgress(3, nil)
	assert.Equal(t, 0, p.Percent())

	p.OnPageComplete()
	assert.Equal(t, 33, p.Percent())
	p.OnPageComplete()
	assert.Equal(t, 66, p.Percent())
	p.OnPageComplete()
	assert.Equal(t, 100, p.Percent())
	assert.Equal(t, domain.Progress{Completed: 3, Total: 3}, p.Snapshot())
}

func TestProgress_FlushOnlyReportsIncreases(t *testing.T) {
	rec := &progressRecorder{}
	p := NewProgress(4, rec.report)

	p.Flush()
	p.Flush()
	p.OnPageComplete()
	p.Flush()
	p.Flush()
	p.OnPageComplete()
	p.OnPageComplete()
	p.OnPageComplete()
	p.Flush()

	assert.Equal(t, []int{0, 25, 100}, rec.snapshot())
}

func TestProgress_RunStopsWithContext(t *testing.T) {
	rec := &progressRecorder{}
	p := NewProgress(2, rec.report)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, time.Millisecond)
		close(done)
	}()

	p.OnPageComplete()
	assert.Eventually(t, func() bool {
		v := rec.snapshot()
		return len(v) > 0 && v[len(v)-1] == 50
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
