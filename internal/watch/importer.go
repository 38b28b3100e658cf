package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"callpulse/internal/dataset"
	"callpulse/internal/events"
	"callpulse/internal/store"
)

// ErrAlreadyImported is returned when identical content was imported before.
var ErrAlreadyImported = errors.New("content already imported")

// Importer loads one review bundle file into the store.
type Importer struct {
	store  *store.Store
	bus    *events.Bus
	logger *zap.Logger
}

func NewImporter(st *store.Store, bus *events.Bus, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{store: st, bus: bus, logger: logger.Named("import")}
}

// ContentKey is the hex sha256 of data; identical files share a key.
func ContentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ImportFile parses path and upserts its records. Content imported before
// returns ErrAlreadyImported. Only successful imports are recorded, so a
// fixed file with the same name is picked up on the next drop.
func (im *Importer) ImportFile(ctx context.Context, path string) (store.ImportRecord, error) {
	source := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return store.ImportRecord{}, im.fail(source, fmt.Errorf("read %s: %w", source, err))
	}
	key := ContentKey(data)
	seen, err := im.store.ImportSeen(ctx, key)
	if err != nil {
		return store.ImportRecord{}, im.fail(source, fmt.Errorf("lookup import %s: %w", source, err))
	}
	if seen {
		im.publish(events.KindImportSkipped, source, "")
		return store.ImportRecord{ContentKey: key, Source: source, Status: "skipped"}, ErrAlreadyImported
	}

	bundle, err := dataset.Parse(data, filepath.Ext(path))
	if err != nil {
		return store.ImportRecord{}, im.fail(source, fmt.Errorf("parse %s: %w", source, err))
	}
	counts, err := im.store.ImportBundle(ctx, bundle)
	if err != nil {
		return store.ImportRecord{}, im.fail(source, fmt.Errorf("store %s: %w", source, err))
	}
	rec, err := im.store.RecordImport(ctx, store.ImportRecord{
		ContentKey: key,
		Source:     source,
		Status:     "imported",
		Calls:      counts.Calls,
	})
	if errors.Is(err, store.ErrConflict) {
		// Another worker imported the same content concurrently.
		return rec, ErrAlreadyImported
	}
	if err != nil {
		return rec, im.fail(source, fmt.Errorf("record import %s: %w", source, err))
	}
	im.logger.Info("bundle imported",
		zap.String("source", source),
		zap.Int("calls", counts.Calls),
		zap.Int("transcripts", counts.Transcripts),
		zap.Int("coaching", counts.Coaching),
		zap.Int("notifications", counts.Notifications),
	)
	im.publish(events.KindImportDone, source, fmt.Sprintf("%d calls", counts.Calls))
	return rec, nil
}

func (im *Importer) fail(source string, err error) error {
	im.logger.Warn("import failed", zap.String("source", source), zap.Error(err))
	im.publish(events.KindImportFailed, source, err.Error())
	return err
}

func (im *Importer) publish(kind, source, detail string) {
	if im.bus == nil {
		return
	}
	im.bus.Publish(events.Event{Kind: kind, Subject: source, Detail: detail})
}
