// Package ocr holds engine-independent helpers around domain.Recognizer.
package ocr

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/spherical/ocr-extractor/internal/domain"
)

// Tracker counts recognition engines that have been started and not yet
// closed, across every session that uses its factory.
type Tracker struct {
	live    atomic.Int64
	created atomic.Int64
}

// Wrap returns a factory whose engines are counted by t.
func (t *Tracker) Wrap(factory domain.RecognizerFactory) domain.RecognizerFactory {
	return func(ctx context.Context) (domain.Recognizer, error) {
		r, err := factory(ctx)
		if err != nil {
			return nil, err
		}
		t.live.Add(1)
		t.created.Add(1)
		return &trackedRecognizer{Recognizer: r, tracker: t}, nil
	}
}

// Live returns the number of engines currently running.
func (t *Tracker) Live() int64 {
	return t.live.Load()
}

// Created returns the number of engines started so far.
func (t *Tracker) Created() int64 {
	return t.created.Load()
}

type trackedRecognizer struct {
	domain.Recognizer
	tracker *Tracker
	once    sync.Once
}

func (r *trackedRecognizer) Close() error {
	err := r.Recognizer.Close()
	r.once.Do(func() { r.tracker.live.Add(-1) })
	return err
}
