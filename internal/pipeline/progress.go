package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spherical/ocr-extractor/internal/domain"
)

// Progress counts settled page tasks and reports a percentage that never
// decreases.
type Progress struct {
	total     int
	completed atomic.Int64

	mu       sync.Mutex
	reported int
	report   func(int)
}

// NewProgress tracks total page tasks. report may be nil.
func NewProgress(total int, report func(int)) *Progress {
	return &Progress{total: total, reported: -1, report: report}
}

// OnPageComplete records one settled task, successful or not.
func (p *Progress) OnPageComplete() {
	p.completed.Add(1)
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() domain.Progress {
	return domain.Progress{Completed: int(p.completed.Load()), Total: p.total}
}

// Percent is floor(completed/total*100).
func (p *Progress) Percent() int {
	return p.Snapshot().Percent()
}

// Run samples the percentage every interval until ctx ends, reporting only
// values above the last one reported.
func (p *Progress) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Flush()
		}
	}
}

// Flush reports the current percentage if it is higher than the last report.
func (p *Progress) Flush() {
	if p.report == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if pct := p.Percent(); pct > p.reported {
		p.reported = pct
		p.report(pct)
	}
}
