// Package storage keeps served predictions in a SQL database together with
// the sync state used by the mirror worker.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"budgetsense/internal/core"
	"budgetsense/internal/store"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL driver, placeholder style and migration set.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Dialect) placeholder() sq.PlaceholderFormat {
	if d == DialectPostgres {
		return sq.Dollar
	}
	return sq.Question
}

// Sync states of a stored prediction.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

const (
	tablePredictions = "predictions"
	timeLayout       = time.RFC3339Nano
)

var (
	_ store.Store  = (*Repository)(nil)
	_ store.Pinger = (*Repository)(nil)
)

type Repository struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
}

// PendingPrediction is the minimal data the sync worker needs.
type PendingPrediction struct {
	ID        string
	Status    string
	CreatedAt time.Time
}

// NewSQLiteRepository opens (creating if needed) the SQLite database at dbPath
// and migrates it.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(DialectSQLite, dbPath)
}

// NewPostgresRepository connects to dsn and migrates the database.
func NewPostgresRepository(dsn string) (*Repository, error) {
	return open(DialectPostgres, dsn)
}

func open(dialect Dialect, dsn string) (*Repository, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(dialect.placeholder()),
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Dialect() Dialect { return r.dialect }

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Save inserts p, or replaces the document with the same ID and resets its
// sync state to pending.
func (r *Repository) Save(ctx context.Context, p core.Prediction) (string, error) {
	if p.ID == "" {
		return "", errors.New("prediction id is required")
	}
	doc, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal prediction: %w", err)
	}

	var expected any
	if p.ExpectedBudget != nil {
		expected = *p.ExpectedBudget
	}

	query, args, err := r.sb.Insert(tablePredictions).
		Columns("id", "ministry", "priority_level", "predicted_budget", "expected_budget", "document", "created_at", "sync_status").
		Values(p.ID, p.Ministry, p.PriorityLevel, p.PredictedBudget, expected, string(doc), p.CreatedAt.UTC().Format(timeLayout), SyncPending).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			ministry = excluded.ministry,
			priority_level = excluded.priority_level,
			predicted_budget = excluded.predicted_budget,
			expected_budget = excluded.expected_budget,
			document = excluded.document,
			sync_status = excluded.sync_status,
			sync_error = '',
			synced_at = NULL`).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("insert prediction: %w", err)
	}

	slog.InfoContext(ctx, "Prediction saved",
		"id", p.ID,
		"dialect", r.dialect,
		"ministry", p.Ministry,
		"predicted_budget", p.PredictedBudget)

	return p.ID, nil
}

// All returns every stored document keyed by ID.
func (r *Repository) All(ctx context.Context) (map[string]core.Prediction, error) {
	query, args, err := r.sb.Select("id", "document").
		From(tablePredictions).
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]core.Prediction)
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		p, err := decode(id, doc)
		if err != nil {
			return nil, err
		}
		out[id] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate predictions: %w", err)
	}
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id string) (core.Prediction, error) {
	query, args, err := r.sb.Select("document").
		From(tablePredictions).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return core.Prediction{}, fmt.Errorf("build select: %w", err)
	}

	var doc string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Prediction{}, fmt.Errorf("prediction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Prediction{}, fmt.Errorf("get prediction by id: %w", err)
	}
	return decode(id, doc)
}

func decode(id, doc string) (core.Prediction, error) {
	var p core.Prediction
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return core.Prediction{}, fmt.Errorf("decode prediction %s: %w", id, err)
	}
	p.ID = id
	return p, nil
}

// GetPendingSync returns up to limit predictions that are not synced yet,
// oldest first. Rows marked with a sync error are retried too.
func (r *Repository) GetPendingSync(ctx context.Context, limit int) ([]PendingPrediction, error) {
	query, args, err := r.sb.Select("id", "sync_status", "created_at").
		From(tablePredictions).
		Where(sq.Eq{"sync_status": []string{SyncPending, SyncError}}).
		OrderBy("seq").
		Limit(uint64(max(limit, 1))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get pending sync predictions: %w", err)
	}
	defer rows.Close()

	var out []PendingPrediction
	for rows.Next() {
		var p PendingPrediction
		var created string
		if err := rows.Scan(&p.ID, &p.Status, &created); err != nil {
			return nil, fmt.Errorf("scan pending prediction: %w", err)
		}
		p.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced records a successful mirror write.
func (r *Repository) MarkSynced(ctx context.Context, id string) error {
	err := r.updateSync(ctx, id, map[string]any{
		"sync_status": SyncSynced,
		"sync_error":  "",
		"synced_at":   time.Now().UTC().Format(timeLayout),
	})
	if err != nil {
		return fmt.Errorf("mark prediction synced: %w", err)
	}

	slog.InfoContext(ctx, "Prediction marked as synced", "id", id)
	return nil
}

// MarkSyncError records a failed mirror write so the prediction is retried.
func (r *Repository) MarkSyncError(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	err := r.updateSync(ctx, id, map[string]any{
		"sync_status": SyncError,
		"sync_error":  msg,
	})
	if err != nil {
		return fmt.Errorf("mark prediction sync error: %w", err)
	}

	slog.WarnContext(ctx, "Prediction marked with sync error", "id", id, "error", msg)
	return nil
}

func (r *Repository) updateSync(ctx context.Context, id string, set map[string]any) error {
	query, args, err := r.sb.Update(tablePredictions).
		SetMap(set).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("prediction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// CountByStatus returns how many predictions are in each sync state.
func (r *Repository) CountByStatus(ctx context.Context) (map[string]int, error) {
	query, args, err := r.sb.Select("sync_status", "COUNT(*)").
		From(tablePredictions).
		GroupBy("sync_status").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count predictions: %w", err)
	}
	defer rows.Close()

	out := map[string]int{SyncPending: 0, SyncSynced: 0, SyncError: 0}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}
