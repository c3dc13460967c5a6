// Package snapshot persists fetched point sets in a local SQLite file so
// a saved view can be explored offline. It answers the same request
// descriptors as the live API client, including compiled filter
// predicates, which it executes as SQL WHERE clauses.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/doctrove/atlas/pkg/api"
	"github.com/doctrove/atlas/pkg/viewstate"
)

// Common errors
var (
	// ErrStoreClosed is returned when trying to use a closed store
	ErrStoreClosed = errors.New("store is closed")
)

// StoreError wraps errors with operation context
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("snapshot: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// Store is a SQLite-backed point snapshot.
type Store struct {
	path   string
	db     *sql.DB
	closed bool
	logger api.Logger
}

// New creates a snapshot store for the given database path.
func New(path string, logger api.Logger) (*Store, error) {
	if path == "" {
		return nil, wrapError("new", fmt.Errorf("database path cannot be empty"))
	}
	if logger == nil {
		logger = api.NopLogger()
	}
	return &Store{path: path, logger: logger}, nil
}

// Init opens the database and creates the schema.
func (s *Store) Init(ctx context.Context) error {
	if s.closed {
		return wrapError("init", ErrStoreClosed)
	}

	// _journal_mode=WAL: Better concurrency
	// _busy_timeout=5000: Wait up to 5s for lock instead of failing immediately
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", s.path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return wrapError("init", fmt.Errorf("failed to open database: %w", err))
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(2 * time.Hour)
	s.db = db

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS points (
		doctrove_id TEXT PRIMARY KEY,
		title TEXT,
		doctrove_source TEXT,
		doctrove_primary_date TEXT,
		x REAL,
		y REAL
	);

	CREATE INDEX IF NOT EXISTS idx_points_position ON points(x, y);
	CREATE INDEX IF NOT EXISTS idx_points_source ON points(doctrove_source);
	`
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return wrapError("init", fmt.Errorf("failed to create tables: %w", err))
	}

	s.logger.Info("snapshot initialized", "path", s.path)
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SavePoints upserts a fetched point set. Points without a position are
// stored with NULL coordinates so they survive round-trips.
func (s *Store) SavePoints(ctx context.Context, points []api.Point) error {
	if s.closed {
		return wrapError("save_points", ErrStoreClosed)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapError("save_points", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO points (doctrove_id, title, doctrove_source, doctrove_primary_date, x, y)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(doctrove_id) DO UPDATE SET
			title = excluded.title,
			doctrove_source = excluded.doctrove_source,
			doctrove_primary_date = excluded.doctrove_primary_date,
			x = excluded.x,
			y = excluded.y
	`)
	if err != nil {
		return wrapError("save_points", err)
	}
	defer stmt.Close()

	for _, p := range points {
		var x, y sql.NullFloat64
		if p.Position != nil {
			x = sql.NullFloat64{Float64: p.Position.X, Valid: true}
			y = sql.NullFloat64{Float64: p.Position.Y, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Title, p.Source, p.Date, x, y); err != nil {
			return wrapError("save_points", fmt.Errorf("failed to save point %s: %w", p.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapError("save_points", err)
	}
	s.logger.Debug("points saved", "count", len(points))
	return nil
}

// QueryPoints serves a request descriptor from the snapshot: bbox
// containment plus the compiled filter predicate appended verbatim.
// SearchText is ignored, semantic ranking needs the live backend.
func (s *Store) QueryPoints(ctx context.Context, req *api.Request) (*api.PointSet, error) {
	if s.closed {
		return nil, wrapError("query_points", ErrStoreClosed)
	}
	if req == nil {
		return nil, wrapError("query_points", api.ErrNoRequest)
	}

	xRange, yRange, err := viewstate.ParseBbox(req.Bbox)
	if err != nil {
		return nil, wrapError("query_points", err)
	}
	if req.SearchText != "" {
		s.logger.Warn("search text ignored in snapshot query", "search_text", req.SearchText)
	}

	query := `
		SELECT doctrove_id, title, doctrove_source, doctrove_primary_date, x, y
		FROM points
		WHERE x >= ? AND x <= ? AND y >= ? AND y <= ?
	`
	args := []any{xRange[0], xRange[1], yRange[0], yRange[1]}
	if req.SQLFilter != "" {
		query += " AND (" + req.SQLFilter + ")"
	}
	query += " LIMIT ?"
	limit := req.Limit
	if limit <= 0 {
		limit = api.DefaultOptions().Limit
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("query_points", fmt.Errorf("failed to query points: %w", err))
	}
	defer func() { _ = rows.Close() }()

	set := &api.PointSet{Total: -1}
	for rows.Next() {
		var p api.Point
		var title, source, date sql.NullString
		var x, y sql.NullFloat64
		if err := rows.Scan(&p.ID, &title, &source, &date, &x, &y); err != nil {
			return nil, wrapError("query_points", err)
		}
		p.Title = title.String
		p.Source = source.String
		p.Date = date.String
		if x.Valid && y.Valid {
			p.Position = &api.Position{X: x.Float64, Y: y.Float64}
		}
		set.Points = append(set.Points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("query_points", err)
	}
	return set, nil
}

// Count returns the number of stored points.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if s.closed {
		return 0, wrapError("count", ErrStoreClosed)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM points").Scan(&n); err != nil {
		return 0, wrapError("count", err)
	}
	return n, nil
}

// MaxExtent returns the bounding extent of stored positions matching the
// optional compiled predicate, or nil when nothing has a position.
func (s *Store) MaxExtent(ctx context.Context, sqlFilter string) (*api.Extent, error) {
	if s.closed {
		return nil, wrapError("max_extent", ErrStoreClosed)
	}

	query := "SELECT MIN(x), MAX(x), MIN(y), MAX(y) FROM points WHERE x IS NOT NULL AND y IS NOT NULL"
	if sqlFilter != "" {
		query += " AND (" + sqlFilter + ")"
	}

	var xMin, xMax, yMin, yMax sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, query).Scan(&xMin, &xMax, &yMin, &yMax); err != nil {
		return nil, wrapError("max_extent", err)
	}
	if !xMin.Valid {
		return nil, nil
	}
	return &api.Extent{
		XMin: xMin.Float64,
		XMax: xMax.Float64,
		YMin: yMin.Float64,
		YMax: yMax.Float64,
	}, nil
}
