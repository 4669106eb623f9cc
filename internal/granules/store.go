// Package granules keeps a SQLite index of remote granules and their
// download state, so interrupted fetches resume where they stopped.
package granules

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/robert-malhotra/sharkhabitat/internal/backend"
	"github.com/robert-malhotra/sharkhabitat/pkg/geo"
)

// ErrNotFound is returned when no granule has the given URL or ID.
var ErrNotFound = errors.New("granule not found")

// Status is the download state of a granule.
type Status string

const (
	StatusPending    Status = "pending"
	StatusDownloaded Status = "downloaded"
	StatusMissing    Status = "missing"
)

// Record is one indexed granule.
type Record struct {
	backend.Granule
	Status    Status
	LocalPath string
	Reason    string
	UpdatedAt time.Time
}

// Store is the granule index.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the index at path and applies pending
// migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open granule index: %w", err)
	}
	// A single connection serialises writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := migrateUp(db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts g or refreshes its metadata. The download state of an
// existing row is kept. It reports whether the row is new.
func (s *Store) Upsert(ctx context.Context, g backend.Granule) (bool, error) {
	if g.URL == "" {
		return false, fmt.Errorf("granule %q has no URL", g.ID)
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM granules WHERE url = ?)`, g.URL).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up granule: %w", err)
	}

	var west, south, east, north sql.NullFloat64
	if g.BBox != nil {
		west = sql.NullFloat64{Float64: g.BBox.West, Valid: true}
		south = sql.NullFloat64{Float64: g.BBox.South, Valid: true}
		east = sql.NullFloat64{Float64: g.BBox.East, Valid: true}
		north = sql.NullFloat64{Float64: g.BBox.North, Valid: true}
	}
	var item sql.NullString
	if len(g.Item) > 0 {
		item = sql.NullString{String: string(g.Item), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO granules (url, granule_id, collection, name, start_time, end_time,
			west, south, east, north, item, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			granule_id = excluded.granule_id,
			collection = excluded.collection,
			name = excluded.name,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			west = excluded.west,
			south = excluded.south,
			east = excluded.east,
			north = excluded.north,
			item = COALESCE(excluded.item, granules.item),
			updated_at = excluded.updated_at`,
		g.URL, g.ID, g.Collection, g.Name, unixOrNull(g.Start), unixOrNull(g.End),
		west, south, east, north, item, string(StatusPending), s.now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert granule %s: %w", g.URL, err)
	}
	return !exists, nil
}

// MarkDownloaded records that the granule at url is stored at path.
func (s *Store) MarkDownloaded(ctx context.Context, url, path string) error {
	return s.setStatus(ctx, url, StatusDownloaded, path, "")
}

// MarkMissing records that the granule at url could not be fetched.
func (s *Store) MarkMissing(ctx context.Context, url, reason string) error {
	return s.setStatus(ctx, url, StatusMissing, "", reason)
}

func (s *Store) setStatus(ctx context.Context, url string, status Status, path, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE granules SET status = ?, local_path = ?, reason = ?, updated_at = ? WHERE url = ?`,
		string(status), nullString(path), nullString(reason), s.now().Unix(), url,
	)
	if err != nil {
		return fmt.Errorf("failed to update granule %s: %w", url, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update granule %s: %w", url, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	return nil
}

// Filter selects records for List and Count. Zero fields match everything.
type Filter struct {
	Collection string
	Status     Status
	Start      *time.Time
	End        *time.Time
	BBox       *geo.BBox
	Limit      int
	Offset     int
}

func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.Collection != "" {
		clauses = append(clauses, "collection = ?")
		args = append(args, f.Collection)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Start != nil {
		clauses = append(clauses, "(end_time IS NULL OR end_time >= ?)")
		args = append(args, f.Start.Unix())
	}
	if f.End != nil {
		clauses = append(clauses, "(start_time IS NULL OR start_time <= ?)")
		args = append(args, f.End.Unix())
	}
	if f.BBox != nil {
		// Granules without a footprint are treated as global.
		clauses = append(clauses, "(west IS NULL OR (west <= ? AND east >= ? AND south <= ? AND north >= ?))")
		args = append(args, f.BBox.East, f.BBox.West, f.BBox.North, f.BBox.South)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

const selectColumns = `SELECT url, granule_id, collection, name, start_time, end_time,
	west, south, east, north, item, status, local_path, reason, updated_at FROM granules`

// List returns the records matching f ordered by start time.
func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	where, args := f.where()
	query := selectColumns + where + " ORDER BY start_time, url"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list granules: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list granules: %w", err)
	}
	return out, nil
}

// Count returns the number of records matching f, ignoring paging.
func (s *Store) Count(ctx context.Context, f Filter) (int, error) {
	where, args := f.where()
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM granules"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count granules: %w", err)
	}
	return n, nil
}

// Pending returns the records of collection not yet downloaded.
func (s *Store) Pending(ctx context.Context, collection string) ([]Record, error) {
	return s.List(ctx, Filter{Collection: collection, Status: StatusPending})
}

// Get returns the first record of collection with the given granule ID.
func (s *Store) Get(ctx context.Context, collection, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE collection = ? AND granule_id = ? ORDER BY url LIMIT 1`, collection, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CollectionSummary aggregates the records of one collection.
type CollectionSummary struct {
	Collection string
	Total      int
	Downloaded int
	Missing    int
	Start      time.Time
	End        time.Time
}

// Collections summarises every indexed collection, sorted by name.
func (s *Store) Collections(ctx context.Context) ([]CollectionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, COUNT(*),
			SUM(CASE WHEN status = 'downloaded' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'missing' THEN 1 ELSE 0 END),
			MIN(start_time), MAX(end_time)
		FROM granules GROUP BY collection ORDER BY collection`)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise collections: %w", err)
	}
	defer rows.Close()

	var out []CollectionSummary
	for rows.Next() {
		var (
			c          CollectionSummary
			start, end sql.NullInt64
		)
		if err := rows.Scan(&c.Collection, &c.Total, &c.Downloaded, &c.Missing, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan collection summary: %w", err)
		}
		c.Start = fromUnix(start)
		c.End = fromUnix(end)
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		r                        Record
		start, end, updated      sql.NullInt64
		west, south, east, north sql.NullFloat64
		item, path, reason       sql.NullString
		status                   string
	)
	err := sc.Scan(&r.URL, &r.ID, &r.Collection, &r.Name, &start, &end,
		&west, &south, &east, &north, &item, &status, &path, &reason, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return r, err
	}
	if err != nil {
		return r, fmt.Errorf("failed to scan granule: %w", err)
	}

	r.Start = fromUnix(start)
	r.End = fromUnix(end)
	r.UpdatedAt = fromUnix(updated)
	if west.Valid && south.Valid && east.Valid && north.Valid {
		r.BBox = &geo.BBox{West: west.Float64, South: south.Float64, East: east.Float64, North: north.Float64}
	}
	if item.Valid {
		r.Item = json.RawMessage(item.String)
	}
	r.Status = Status(status)
	r.LocalPath = path.String
	r.Reason = reason.String
	return r, nil
}

func unixOrNull(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func fromUnix(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0).UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
