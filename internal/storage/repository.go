// Package storage archives analyzed communications in SQLite or PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"intentdash/internal/core"
	"intentdash/internal/log"
	"intentdash/internal/store"
)

// Dialect selects the SQL flavor and migration set.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Repository is the archive of analyzed communications.
type Repository struct {
	db      *sql.DB
	openDB  opener
	dialect Dialect
	logger  *log.Logger
	now     func() time.Time
}

// OpenSQLite opens (creating if needed) the database file at path and
// applies migrations.
func OpenSQLite(path string, logger *log.Logger) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	openDB := func() (*sql.DB, error) { return sql.Open("sqlite", dsn) }

	db, err := openDB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	return open(db, openDB, SQLite, logger)
}

// OpenPostgres connects through pgx's database/sql adapter and applies
// migrations.
func OpenPostgres(ctx context.Context, databaseURL string, logger *log.Logger) (*Repository, error) {
	cfg, err := pgx.ParseConfig(normalizePostgresURL(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	openDB := func() (*sql.DB, error) { return stdlib.OpenDB(*cfg), nil }

	db, _ := openDB()
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := waitForDB(ctx, db, 10, 2*time.Second, logger); err != nil {
		db.Close()
		return nil, err
	}
	return open(db, openDB, Postgres, logger)
}

func open(db *sql.DB, openDB opener, dialect Dialect, logger *log.Logger) (*Repository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(openDB, dialect); err != nil {
		db.Close()
		return nil, err
	}
	return &Repository{
		db:      db,
		openDB:  openDB,
		dialect: dialect,
		logger:  logger.WithComponent(log.ComponentStorage),
		now:     time.Now,
	}, nil
}

// normalizePostgresURL rewrites postgresql:// to postgres:// and defaults
// sslmode to disable.
func normalizePostgresURL(u string) string {
	if strings.HasPrefix(u, "postgresql://") {
		u = "postgres://" + strings.TrimPrefix(u, "postgresql://")
	}
	if !strings.Contains(u, "sslmode=") {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + "sslmode=disable"
	}
	return u
}

func waitForDB(ctx context.Context, db *sql.DB, attempts int, delay time.Duration, logger *log.Logger) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		if logger != nil {
			logger.Warn("Database not ready, retrying",
				"attempt", i,
				"max_attempts", attempts,
				log.FieldError, err.Error())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("connect to database after %d attempts: %w", attempts, err)
}

func (r *Repository) Dialect() Dialect { return r.dialect }

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// rebind converts ? placeholders to $n for PostgreSQL.
func (r *Repository) rebind(query string) string {
	if r.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// sqliteTimeLayout is fixed width so text order matches time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// timeArg stores SQLite timestamps as sortable UTC text.
func (r *Repository) timeArg(t time.Time) any {
	if r.dialect == SQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// SaveCommunication archives rec. Saving a communication id that is already
// archived is a no-op and reports inserted=false.
func (r *Repository) SaveCommunication(ctx context.Context, rec store.Record) (inserted bool, err error) {
	c := rec.Communication
	if c.ID == "" {
		return false, fmt.Errorf("save communication: missing id")
	}

	payload, err := json.Marshal(c)
	if err != nil {
		return false, fmt.Errorf("encode communication: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, r.rebind(`
		INSERT INTO communications
			(id, session_id, text, analyzed_at, sentiment, urgency_level, confidence_score, payload, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`),
		c.ID, rec.SessionID, c.Text, r.timeArg(c.Timestamp), string(c.Sentiment()),
		c.UrgencyAnalysis.UrgencyLevel, c.UrgencyAnalysis.ConfidenceScore, string(payload), r.timeArg(r.now()))
	if err != nil {
		return false, fmt.Errorf("insert communication: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert communication: %w", err)
	}
	if affected == 0 {
		return false, tx.Commit()
	}

	for i, in := range rec.Insights {
		body, err := json.Marshal(in)
		if err != nil {
			return false, fmt.Errorf("encode insight %s: %w", in.ID, err)
		}
		if _, err := tx.ExecContext(ctx, r.rebind(`
			INSERT INTO insights (communication_id, position, id, category, priority, title, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (communication_id, position) DO NOTHING`),
			c.ID, i, in.ID, string(in.Category), string(in.Priority), in.Title, string(body)); err != nil {
			return false, fmt.Errorf("insert insight %s: %w", in.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}

	r.logger.DebugContext(ctx, "Communication archived",
		log.FieldOperation, log.OpCreate,
		log.FieldSessionID, rec.SessionID,
		log.FieldCommunicationID, c.ID,
		log.FieldInsightCount, len(rec.Insights))
	return true, nil
}

// ListRecent returns up to limit archived records, newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]store.Record, error) {
	return r.list(ctx, `
		SELECT session_id, payload FROM communications
		ORDER BY analyzed_at DESC, id DESC
		LIMIT ?`, limit)
}

// ListUnexported returns up to limit records not yet exported, oldest first.
func (r *Repository) ListUnexported(ctx context.Context, limit int) ([]store.Record, error) {
	return r.list(ctx, `
		SELECT session_id, payload FROM communications
		WHERE exported_at IS NULL
		ORDER BY analyzed_at ASC, id ASC
		LIMIT ?`, limit)
}

func (r *Repository) list(ctx context.Context, query string, limit int) ([]store.Record, error) {
	if limit < 1 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, fmt.Errorf("query communications: %w", err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		var (
			rec     store.Record
			payload []byte
		)
		if err := rows.Scan(&rec.SessionID, &payload); err != nil {
			return nil, fmt.Errorf("scan communication: %w", err)
		}
		if err := json.Unmarshal(payload, &rec.Communication); err != nil {
			return nil, fmt.Errorf("decode communication: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate communications: %w", err)
	}
	rows.Close()

	for i := range out {
		insights, err := r.insightsFor(ctx, out[i].Communication.ID)
		if err != nil {
			return nil, err
		}
		out[i].Insights = insights
	}
	return out, nil
}

func (r *Repository) insightsFor(ctx context.Context, communicationID string) ([]core.Insight, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT payload FROM insights WHERE communication_id = ? ORDER BY position`), communicationID)
	if err != nil {
		return nil, fmt.Errorf("query insights: %w", err)
	}
	defer rows.Close()

	var out []core.Insight
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		var in core.Insight
		if err := json.Unmarshal(payload, &in); err != nil {
			return nil, fmt.Errorf("decode insight: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// MarkExported records that the communication reached the spreadsheet.
func (r *Repository) MarkExported(ctx context.Context, communicationID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`
		UPDATE communications SET exported_at = ? WHERE id = ?`), r.timeArg(at), communicationID)
	if err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("mark exported: communication %s not found", communicationID)
	}
	return nil
}

// Stats summarizes the archive for the CLI and readiness output.
type Stats struct {
	Communications int
	Unexported     int
}

func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) - COUNT(exported_at) FROM communications`).Scan(&s.Communications, &s.Unexported)
	if err != nil {
		return Stats{}, fmt.Errorf("archive stats: %w", err)
	}
	return s, nil
}
