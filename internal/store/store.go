package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"callpulse/internal/dataset"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an import with the same content key was already recorded.
	ErrConflict = errors.New("import already recorded")
)

// Store wraps SQLite access for reviewed calls, notifications, and diagnostics.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under concurrent imports.
	db.SetMaxOpenConns(1)
	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS calls (
			call_id TEXT PRIMARY KEY,
			location_id TEXT NOT NULL,
			category TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			lead_name TEXT,
			phone TEXT,
			metric TEXT,
			summary TEXT,
			reason TEXT,
			updated_at TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_calls_location ON calls(location_id, category, position);`,
		`CREATE TABLE IF NOT EXISTS transcript_lines (
			call_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			at TEXT,
			speaker TEXT,
			text TEXT,
			PRIMARY KEY (call_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS coaching_sections (
			call_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			section TEXT,
			required TEXT,
			actual TEXT,
			adherence TEXT,
			at TEXT,
			feedback TEXT,
			PRIMARY KEY (call_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS coaching_summaries (
			call_id TEXT PRIMARY KEY,
			overall_score INTEGER,
			improvement_areas TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL DEFAULT 0,
			type TEXT,
			title TEXT,
			description TEXT,
			at TEXT,
			read INTEGER NOT NULL DEFAULT 0,
			priority TEXT,
			location TEXT,
			metric_value TEXT,
			metric_trend INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS diagnostics (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			subject TEXT,
			session TEXT,
			detail TEXT,
			created_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS imports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content_key TEXT NOT NULL,
			source TEXT,
			status TEXT,
			error TEXT,
			calls INTEGER,
			created_at TIMESTAMP
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_imports_key ON imports(content_key);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ImportCounts reports what an import wrote.
type ImportCounts struct {
	Calls         int `json:"calls"`
	Transcripts   int `json:"transcripts"`
	Coaching      int `json:"coaching"`
	Notifications int `json:"notifications"`
}

// ImportBundle upserts the review records of b in one transaction. Transcripts
// and coaching for a call are replaced wholesale.
func (s *Store) ImportBundle(ctx context.Context, b dataset.Bundle) (ImportCounts, error) {
	var counts ImportCounts
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return counts, err
	}
	defer tx.Rollback()

	ts := s.now()
	for i, c := range b.Calls {
		_, err := tx.ExecContext(ctx, `INSERT INTO calls(call_id, location_id, category, position, lead_name, phone, metric, summary, reason, updated_at)
			VALUES(?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(call_id) DO UPDATE SET location_id=excluded.location_id, category=excluded.category, position=excluded.position, lead_name=excluded.lead_name,
				phone=excluded.phone, metric=excluded.metric, summary=excluded.summary, reason=excluded.reason, updated_at=excluded.updated_at`,
			c.ID, c.LocationID, string(c.Category), i, c.Name, c.Phone, c.Metric, c.Summary, c.Reason, ts)
		if err != nil {
			return counts, fmt.Errorf("upsert call %s: %w", c.ID, err)
		}
		counts.Calls++
	}

	for callID, lines := range b.Transcripts {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_lines WHERE call_id=?`, callID); err != nil {
			return counts, err
		}
		for i, l := range lines {
			if _, err := tx.ExecContext(ctx, `INSERT INTO transcript_lines(call_id, seq, at, speaker, text) VALUES(?,?,?,?,?)`,
				callID, i, l.Time, l.Speaker, l.Text); err != nil {
				return counts, fmt.Errorf("insert transcript %s: %w", callID, err)
			}
		}
		counts.Transcripts++
	}

	for callID, c := range b.Coaching {
		if _, err := tx.ExecContext(ctx, `DELETE FROM coaching_sections WHERE call_id=?`, callID); err != nil {
			return counts, err
		}
		for i, sec := range c.Sections {
			if _, err := tx.ExecContext(ctx, `INSERT INTO coaching_sections(call_id, seq, section, required, actual, adherence, at, feedback) VALUES(?,?,?,?,?,?,?,?)`,
				callID, i, sec.Section, sec.Required, sec.Actual, sec.Adherence, sec.Timestamp, sec.Feedback); err != nil {
				return counts, fmt.Errorf("insert coaching %s: %w", callID, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO coaching_summaries(call_id, overall_score, improvement_areas) VALUES(?,?,?)
			ON CONFLICT(call_id) DO UPDATE SET overall_score=excluded.overall_score, improvement_areas=excluded.improvement_areas`,
			callID, c.OverallScore, strings.Join(c.ImprovementAreas, "\n")); err != nil {
			return counts, err
		}
		counts.Coaching++
	}

	for i, n := range b.Notifications {
		var metricValue sql.NullString
		var metricTrend sql.NullInt64
		if n.Metric != nil {
			metricValue = sql.NullString{String: n.Metric.Value, Valid: true}
			metricTrend = sql.NullInt64{Int64: int64(n.Metric.Trend), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO notifications(id, position, type, title, description, at, read, priority, location, metric_value, metric_trend)
			VALUES(?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET position=excluded.position, type=excluded.type, title=excluded.title, description=excluded.description, at=excluded.at,
				priority=excluded.priority, location=excluded.location, metric_value=excluded.metric_value, metric_trend=excluded.metric_trend`,
			n.ID, i, n.Type, n.Title, n.Description, n.Time, boolInt(n.Read), n.Priority, n.Location, metricValue, metricTrend); err != nil {
			return counts, fmt.Errorf("upsert notification %s: %w", n.ID, err)
		}
		counts.Notifications++
	}

	if err := tx.Commit(); err != nil {
		return counts, err
	}
	return counts, nil
}

// SeedIfEmpty imports b when the calls table is empty. It reports whether it wrote anything.
func (s *Store) SeedIfEmpty(ctx context.Context, b dataset.Bundle) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM calls`).Scan(&n); err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.ImportBundle(ctx, b); err != nil {
		return false, err
	}
	return true, nil
}

const callColumns = `call_id, location_id, category, lead_name, phone, metric, summary, reason`

func scanCall(scan func(...any) error) (dataset.Call, error) {
	var c dataset.Call
	var category string
	var name, phone, metric, summary, reason sql.NullString
	if err := scan(&c.ID, &c.LocationID, &category, &name, &phone, &metric, &summary, &reason); err != nil {
		return c, err
	}
	c.Category = dataset.Category(category)
	c.Name, c.Phone, c.Metric = name.String, phone.String, metric.String
	c.Summary, c.Reason = summary.String, reason.String
	return c, nil
}

// CallsForLocation returns the reviewed calls of a location grouped by category,
// each group in import order.
func (s *Store) CallsForLocation(ctx context.Context, locationID string) (map[dataset.Category][]dataset.Call, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+callColumns+` FROM calls WHERE location_id=? ORDER BY category, position`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[dataset.Category][]dataset.Call)
	for rows.Next() {
		c, err := scanCall(rows.Scan)
		if err != nil {
			return nil, err
		}
		out[c.Category] = append(out[c.Category], c)
	}
	return out, rows.Err()
}

// Call fetches a single call.
func (s *Store) Call(ctx context.Context, id string) (dataset.Call, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE call_id=?`, id)
	c, err := scanCall(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("call %s: %w", id, ErrNotFound)
	}
	return c, err
}

// Transcript returns the transcript of a call, or ErrNotFound when none was imported.
func (s *Store) Transcript(ctx context.Context, callID string) ([]dataset.TranscriptLine, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT at, speaker, text FROM transcript_lines WHERE call_id=? ORDER BY seq`, callID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []dataset.TranscriptLine
	for rows.Next() {
		var l dataset.TranscriptLine
		var at, speaker, text sql.NullString
		if err := rows.Scan(&at, &speaker, &text); err != nil {
			return nil, err
		}
		l.Time, l.Speaker, l.Text = at.String, speaker.String, text.String
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("transcript %s: %w", callID, ErrNotFound)
	}
	return lines, nil
}

// Coaching returns the script adherence breakdown of a call.
func (s *Store) Coaching(ctx context.Context, callID string) (dataset.Coaching, error) {
	var c dataset.Coaching
	var areas sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT overall_score, improvement_areas FROM coaching_summaries WHERE call_id=?`, callID).Scan(&c.OverallScore, &areas)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("coaching %s: %w", callID, ErrNotFound)
	}
	if err != nil {
		return c, err
	}
	if areas.String != "" {
		c.ImprovementAreas = strings.Split(areas.String, "\n")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT section, required, actual, adherence, at, feedback FROM coaching_sections WHERE call_id=? ORDER BY seq`, callID)
	if err != nil {
		return c, err
	}
	defer rows.Close()
	for rows.Next() {
		var sec dataset.CoachingSection
		var section, required, actual, adherence, at, feedback sql.NullString
		if err := rows.Scan(&section, &required, &actual, &adherence, &at, &feedback); err != nil {
			return c, err
		}
		sec.Section, sec.Required, sec.Actual = section.String, required.String, actual.String
		sec.Adherence, sec.Timestamp, sec.Feedback = adherence.String, at.String, feedback.String
		c.Sections = append(c.Sections, sec)
	}
	return c, rows.Err()
}

// ListNotifications returns notifications in feed order.
func (s *Store) ListNotifications(ctx context.Context) ([]dataset.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, type, title, description, at, read, priority, location, metric_value, metric_trend FROM notifications ORDER BY position, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []dataset.Notification
	for rows.Next() {
		var n dataset.Notification
		var typ, title, desc, at, priority, location, metricValue sql.NullString
		var metricTrend sql.NullInt64
		var read int
		if err := rows.Scan(&n.ID, &typ, &title, &desc, &at, &read, &priority, &location, &metricValue, &metricTrend); err != nil {
			return nil, err
		}
		n.Type, n.Title, n.Description, n.Time = typ.String, title.String, desc.String, at.String
		n.Read = read != 0
		n.Priority, n.Location = priority.String, location.String
		if metricValue.Valid {
			n.Metric = &dataset.NotificationMetric{Value: metricValue.String, Trend: int(metricTrend.Int64)}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flags one notification as read.
func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read=1 WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkAllNotificationsRead flags every notification as read and returns how many changed.
func (s *Store) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read=1 WHERE read=0`)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Diagnostic is a persisted navigation or import diagnostic.
type Diagnostic struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject"`
	Session   string    `json:"session,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordDiagnostic stores d, assigning an id and timestamp when missing.
func (s *Store) RecordDiagnostic(ctx context.Context, d Diagnostic) (Diagnostic, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO diagnostics(id, kind, subject, session, detail, created_at) VALUES(?,?,?,?,?,?)`,
		d.ID, d.Kind, d.Subject, d.Session, d.Detail, d.CreatedAt)
	return d, err
}

// ListDiagnostics returns the newest diagnostics first.
func (s *Store) ListDiagnostics(ctx context.Context, limit int) ([]Diagnostic, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, kind, subject, session, detail, created_at FROM diagnostics ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Diagnostic
	for rows.Next() {
		var d Diagnostic
		var subject, session, detail sql.NullString
		if err := rows.Scan(&d.ID, &d.Kind, &subject, &session, &detail, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Subject, d.Session, d.Detail = subject.String, session.String, detail.String
		out = append(out, d)
	}
	return out, rows.Err()
}

// ImportRecord is one processed import file.
type ImportRecord struct {
	ID         int64     `json:"id"`
	ContentKey string    `json:"content_key"`
	Source     string    `json:"source"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Calls      int       `json:"calls"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordImport stores the outcome of an import keyed by content hash. A key
// seen before returns the existing record with ErrConflict.
func (s *Store) RecordImport(ctx context.Context, r ImportRecord) (ImportRecord, error) {
	existing, err := s.importByKey(ctx, r.ContentKey)
	if err != nil {
		return r, err
	}
	if existing != nil {
		return *existing, ErrConflict
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO imports(content_key, source, status, error, calls, created_at) VALUES(?,?,?,?,?,?)`,
		r.ContentKey, r.Source, r.Status, r.Error, r.Calls, r.CreatedAt)
	if err != nil {
		return r, err
	}
	r.ID, _ = res.LastInsertId()
	return r, nil
}

// ImportSeen reports whether content with key was already imported successfully.
func (s *Store) ImportSeen(ctx context.Context, key string) (bool, error) {
	existing, err := s.importByKey(ctx, key)
	return existing != nil, err
}

func (s *Store) importByKey(ctx context.Context, key string) (*ImportRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, content_key, source, status, error, calls, created_at FROM imports WHERE content_key=?`, key)
	var r ImportRecord
	var source, status, errMsg sql.NullString
	switch err := row.Scan(&r.ID, &r.ContentKey, &source, &status, &errMsg, &r.Calls, &r.CreatedAt); {
	case err == nil:
		r.Source, r.Status, r.Error = source.String, status.String, errMsg.String
		return &r, nil
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	default:
		return nil, err
	}
}

// ListImports returns the newest imports first.
func (s *Store) ListImports(ctx context.Context, limit int) ([]ImportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, content_key, source, status, error, calls, created_at FROM imports ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ImportRecord
	for rows.Next() {
		var r ImportRecord
		var source, status, errMsg sql.NullString
		if err := rows.Scan(&r.ID, &r.ContentKey, &source, &status, &errMsg, &r.Calls, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Source, r.Status, r.Error = source.String, status.String, errMsg.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Health returns err if DB not reachable.
func (s *Store) Health(ctx context.Context) error {
	row := s.db.QueryRowContext(ctx, `SELECT 1`)
	var v int
	if err := row.Scan(&v); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
