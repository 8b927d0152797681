// Package extract dispatches uploads to the local or hosted extractor and
// publishes successful results to the store.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/spherical/ocr-extractor/internal/domain"
	"github.com/spherical/ocr-extractor/internal/observability"
	"github.com/spherical/ocr-extractor/internal/store"
)

// Service orchestrates extraction and result publication
type Service struct {
	local  domain.TextExtractor
	hosted *HostedExtractor
	store  store.Store
	logger *observability.Logger
}

// NewService creates a new extraction service. hosted may be nil when no
// API key is configured.
func NewService(local domain.TextExtractor, hosted *HostedExtractor, st store.Store, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Service{
		local:  local,
		hosted: hosted,
		store:  st,
		logger: logger.WithOperation("extract"),
	}
}

// Engines lists the engines this service can run.
func (s *Service) Engines() []domain.Engine {
	engines := []domain.Engine{domain.EngineLocal}
	if s.hosted != nil {
		engines = append(engines, domain.EngineHosted)
	}
	return engines
}

// Extract runs file through engine and stores the text on success.
func (s *Service) Extract(ctx context.Context, engine domain.Engine, file domain.FileInput, progress func(int)) (*domain.DocumentText, error) {
	return s.run(ctx, engine, file, progress, nil)
}

// Process runs an extraction and reports it as a stream of events. The
// final text travels in the EventComplete payload.
func (s *Service) Process(ctx context.Context, engine domain.Engine, file domain.FileInput, eventCh chan<- domain.StreamEvent) (*domain.DocumentText, error) {
	startTime := time.Now()

	s.sendEvent(ctx, eventCh, domain.StreamEvent{
		Type:      domain.EventStart,
		Payload:   fmt.Sprintf("Starting %s extraction of %s", engine, file.Name),
		Timestamp: time.Now(),
	})

	progress := func(pct int) {
		s.emitEvent(eventCh, domain.StreamEvent{
			Type:      domain.EventProgress,
			Percent:   pct,
			Timestamp: time.Now(),
		})
	}

	var chunkCh chan string
	var forwarded chan struct{}
	if engine == domain.EngineHosted && eventCh != nil {
		chunkCh = make(chan string, 100)
		forwarded = make(chan struct{})
		go func() {
			defer close(forwarded)
			for chunk := range chunkCh {
				s.emitEvent(eventCh, domain.StreamEvent{
					Type:      domain.EventChunk,
					Payload:   chunk,
					Timestamp: time.Now(),
				})
			}
		}()
	}

	out, err := s.run(ctx, engine, file, progress, chunkCh)
	if chunkCh != nil {
		close(chunkCh)
		<-forwarded
	}

	if err != nil {
		s.emitError(ctx, eventCh, err)
		return nil, err
	}

	s.sendEvent(ctx, eventCh, domain.StreamEvent{
		Type:      domain.EventComplete,
		Percent:   100,
		Payload:   out.Text,
		Timestamp: time.Now(),
	})

	s.logger.WithContext(ctx).Info().
		Str("engine", string(engine)).
		Int("pages", out.PageCount).
		Dur("elapsed", time.Since(startTime)).
		Msg("extraction complete")

	return out, nil
}

func (s *Service) run(ctx context.Context, engine domain.Engine, file domain.FileInput, progress func(int), chunkCh chan<- string) (*domain.DocumentText, error) {
	var (
		out *domain.DocumentText
		err error
	)

	switch engine {
	case domain.EngineLocal, "":
		out, err = s.local.Extract(ctx, file, progress)
	case domain.EngineHosted:
		if s.hosted == nil {
			return nil, domain.ConfigError("hosted engine is not configured, set OPENROUTER_API_KEY", nil)
		}
		out, err = s.hosted.ExtractStream(ctx, file, progress, chunkCh)
	default:
		return nil, domain.ValidationError(fmt.Sprintf("unknown engine %q", engine), nil)
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, out.Text)
	return out, nil
}

// publish writes the latest text to the store. A failed write is logged and
// does not fail the extraction that produced the text.
func (s *Service) publish(ctx context.Context, text string) {
	if s.store == nil {
		return
	}
	if err := s.store.Set(ctx, domain.ExtractedTextKey, text); err != nil {
		s.logger.WithContext(ctx).Error().Err(err).Msg("failed to store extracted text")
	}
}

// emitEvent emits a progress or chunk event, dropping it when the consumer
// is behind.
func (s *Service) emitEvent(eventCh chan<- domain.StreamEvent, event domain.StreamEvent) {
	if eventCh != nil {
		select {
		case eventCh <- event:
		default:
			s.logger.Warn().Str("event", string(event.Type)).Msg("event channel full, dropping event")
		}
	}
}

// sendEvent delivers start and terminal events. It waits for the consumer
// and gives up only when ctx ends.
func (s *Service) sendEvent(ctx context.Context, eventCh chan<- domain.StreamEvent, event domain.StreamEvent) {
	if eventCh == nil {
		return
	}
	select {
	case eventCh <- event:
	case <-ctx.Done():
		s.logger.Warn().Str("event", string(event.Type)).Msg("context done before event was delivered")
	}
}

// emitError emits an error event
func (s *Service) emitError(ctx context.Context, eventCh chan<- domain.StreamEvent, err error) {
	s.sendEvent(ctx, eventCh, domain.StreamEvent{
		Type:      domain.EventError,
		Payload:   domain.NewResult("", err),
		Timestamp: time.Now(),
	})
}
