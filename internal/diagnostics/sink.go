// Package diagnostics persists the events an operator needs to look at later:
// lookup misses, overridden selections, failed imports, failed sign-ins.
package diagnostics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"callpulse/internal/events"
	"callpulse/internal/navigation"
	"callpulse/internal/store"
)

// Recorder is the part of the store the sink writes to.
type Recorder interface {
	RecordDiagnostic(ctx context.Context, d store.Diagnostic) (store.Diagnostic, error)
}

// DefaultKinds are the event kinds persisted when NewSink is given none.
var DefaultKinds = []string{
	string(navigation.EventLookupMiss),
	string(navigation.EventSelectionOverridden),
	events.KindImportFailed,
	events.KindSignInFailed,
}

// Sink drains a bus subscription into the diagnostics table.
type Sink struct {
	rec    Recorder
	kinds  map[string]struct{}
	logger *zap.Logger
}

func NewSink(rec Recorder, logger *zap.Logger, kinds ...string) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}
	set := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return &Sink{rec: rec, kinds: set, logger: logger.Named("diagnostics")}
}

// Wants reports whether events of kind are persisted.
func (s *Sink) Wants(kind string) bool {
	_, ok := s.kinds[kind]
	return ok
}

// Run consumes ch until it is closed or ctx is done. Write failures are logged
// and do not stop the sink.
func (s *Sink) Run(ctx context.Context, ch <-chan events.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(ctx, ev)
		}
	}
}

func (s *Sink) handle(ctx context.Context, ev events.Event) {
	if !s.Wants(ev.Kind) {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	d, err := s.rec.RecordDiagnostic(writeCtx, store.Diagnostic{
		Kind:      ev.Kind,
		Subject:   ev.Subject,
		Session:   ev.Session,
		Detail:    ev.Detail,
		CreatedAt: ev.At,
	})
	if err != nil {
		s.logger.Warn("diagnostic write failed", zap.String("kind", ev.Kind), zap.Error(err))
		return
	}
	s.logger.Info("diagnostic recorded",
		zap.String("id", d.ID),
		zap.String("kind", d.Kind),
		zap.String("subject", d.Subject),
	)
}
