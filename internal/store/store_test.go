package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callpulse/internal/dataset"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seeded(t *testing.T) (*Store, dataset.Bundle) {
	t.Helper()
	s := openTestStore(t)
	b, err := dataset.Seed()
	require.NoError(t, err)
	wrote, err := s.SeedIfEmpty(context.Background(), b)
	require.NoError(t, err)
	require.True(t, wrote)
	return s, b
}

func TestSeedIfEmptyOnlyOnce(t *testing.T) {
	s, b := seeded(t)
	wrote, err := s.SeedIfEmpty(context.Background(), b)
	require.NoError(t, err)
	assert.False(t, wrote)
	require.NoError(t, s.Health(context.Background()))
}

func TestCallsForLocationGroupsByCategory(t *testing.T) {
	s, _ := seeded(t)
	ctx := context.Background()

	groups, err := s.CallsForLocation(ctx, "smyrna")
	require.NoError(t, err)
	require.Len(t, groups[dataset.CategoryLowScriptAdherence], 2)
	assert.Equal(t, "Sally Smith", groups[dataset.CategoryLowScriptAdherence][0].Name)
	assert.Equal(t, "Mike Johnson", groups[dataset.CategoryLowScriptAdherence][1].Name)
	assert.Len(t, groups[dataset.CategoryCritical], 2)
	assert.Len(t, groups[dataset.CategoryMissedCall], 1)

	empty, err := s.CallsForLocation(ctx, "valdosta")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTranscriptAndCoachingRoundTrip(t *testing.T) {
	s, b := seeded(t)
	ctx := context.Background()

	lines, err := s.Transcript(ctx, "missed-smyrna-001")
	require.NoError(t, err)
	if diff := cmp.Diff(b.Transcripts["missed-smyrna-001"], lines); diff != "" {
		t.Fatalf("transcript mismatch:\n%s", diff)
	}

	coaching, err := s.Coaching(ctx, "script-smyrna-sally")
	require.NoError(t, err)
	if diff := cmp.Diff(b.Coaching["script-smyrna-sally"], coaching); diff != "" {
		t.Fatalf("coaching mismatch:\n%s", diff)
	}

	_, err = s.Transcript(ctx, "no-such-call")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Coaching(ctx, "critical-smyrna-angry")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Call(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImportBundleUpsertsAndReplaces(t *testing.T) {
	s, _ := seeded(t)
	ctx := context.Background()

	update := dataset.Bundle{
		Calls: []dataset.Call{
			{ID: "critical-smyrna-angry", LocationID: "smyrna", Category: dataset.CategoryCritical, Name: "Robert Johnson", Metric: "Resolved"},
			{ID: "critical-smyrna-new", LocationID: "smyrna", Category: dataset.CategoryCritical, Name: "Ann Lee", Metric: "Angry Customer"},
		},
		Transcripts: map[string][]dataset.TranscriptLine{
			"missed-smyrna-001": {{Time: "0:00", Speaker: "System", Text: "re-transcribed"}},
		},
	}
	counts, err := s.ImportBundle(ctx, update)
	require.NoError(t, err)
	assert.Equal(t, ImportCounts{Calls: 2, Transcripts: 1}, counts)

	call, err := s.Call(ctx, "critical-smyrna-angry")
	require.NoError(t, err)
	assert.Equal(t, "Resolved", call.Metric)

	groups, err := s.CallsForLocation(ctx, "smyrna")
	require.NoError(t, err)
	assert.Len(t, groups[dataset.CategoryCritical], 3)

	lines, err := s.Transcript(ctx, "missed-smyrna-001")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "re-transcribed", lines[0].Text)
}

func TestReimportReordersCallsAndNotifications(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := dataset.Bundle{
		Calls: []dataset.Call{
			{ID: "a", LocationID: "macon", Category: dataset.CategoryCritical, Name: "First"},
			{ID: "b", LocationID: "macon", Category: dataset.CategoryCritical, Name: "Second"},
		},
		Notifications: []dataset.Notification{{ID: "n1", Title: "one"}, {ID: "n2", Title: "two"}},
	}
	_, err := s.ImportBundle(ctx, first)
	require.NoError(t, err)

	reordered := dataset.Bundle{
		Calls:         []dataset.Call{first.Calls[1], first.Calls[0]},
		Notifications: []dataset.Notification{first.Notifications[1], first.Notifications[0]},
	}
	_, err = s.ImportBundle(ctx, reordered)
	require.NoError(t, err)

	groups, err := s.CallsForLocation(ctx, "macon")
	require.NoError(t, err)
	var ids []string
	for _, c := range groups[dataset.CategoryCritical] {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"b", "a"}, ids)

	notes, err := s.ListNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "n2", notes[0].ID)
}

func TestNotifications(t *testing.T) {
	s, b := seeded(t)
	ctx := context.Background()

	list, err := s.ListNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, list, len(b.Notifications))
	assert.Equal(t, "1", list[0].ID)
	require.NotNil(t, list[1].Metric)
	assert.Equal(t, 60, list[1].Metric.Trend)

	require.NoError(t, s.MarkNotificationRead(ctx, "1"))
	assert.ErrorIs(t, s.MarkNotificationRead(ctx, "999"), ErrNotFound)

	changed, err := s.MarkAllNotificationsRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, changed)

	list, err = s.ListNotifications(ctx)
	require.NoError(t, err)
	for _, n := range list {
		assert.True(t, n.Read, n.ID)
	}
}

func TestDiagnosticsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := s.RecordDiagnostic(ctx, Diagnostic{Kind: "lookup_miss", Subject: "atlantis", CreatedAt: base})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	_, err = s.RecordDiagnostic(ctx, Diagnostic{Kind: "selection_overridden", Subject: "savannah", CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)

	got, err := s.ListDiagnostics(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "selection_overridden", got[0].Kind)
	assert.Equal(t, "atlantis", got[1].Subject)
}

func TestRecordImportIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.RecordImport(ctx, ImportRecord{ContentKey: "abc", Source: "drop.yaml", Status: "imported", Calls: 3})
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)

	seen, err := s.ImportSeen(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, seen)

	again, err := s.RecordImport(ctx, ImportRecord{ContentKey: "abc", Source: "copy.yaml"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "drop.yaml", again.Source)

	list, err := s.ListImports(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
