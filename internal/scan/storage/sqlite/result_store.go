// Package sqlite persists captured scan profiles.
//
// Reads and writes for stored results live here rather than in the engine or
// pipeline packages, which deal only in in-memory results.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/scanprofile/internal/scan/engine"
	"github.com/banshee-data/scanprofile/internal/scan/geometry"
)

// ErrNotFound is returned when no stored result has the requested ID.
var ErrNotFound = errors.New("scan result not found")

// Record is a persisted result plus storage metadata.
type Record struct {
	Result    *engine.Result `json:"result"`
	Mean      float64        `json:"mean"`
	PlotPath  string         `json:"plot_path,omitempty"`
	CreatedAt int64          `json:"created_at"`
}

// ResultStore provides persistence for scan results.
type ResultStore struct {
	db *sql.DB
}

// NewResultStore creates a ResultStore on a migrated database.
func NewResultStore(db *sql.DB) *ResultStore {
	return &ResultStore{db: db}
}

const resultColumns = `
	result_id, kind, level, frame_seq, confidence, downsample, normalized, empty,
	mean, geometry_json, x_json, y_json, counts_json, captured_at, created_at,
	plot_path`

// Insert persists rec. When the result has a nil ID, rec.Result is replaced
// with a copy carrying a new UUID; the caller's Result is not modified. A
// zero CreatedAt is set to the current time.
func (s *ResultStore) Insert(rec *Record) error {
	if rec == nil || rec.Result == nil {
		return errors.New("insert: nil result")
	}
	res := rec.Result
	if res.ID == uuid.Nil {
		cp := *res
		cp.ID = uuid.New()
		res = &cp
		rec.Result = res
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixNano()
	}
	rec.Mean = res.Mean()

	geomJSON, err := json.Marshal(geometry.Wrap(res.Geometry))
	if err != nil {
		return fmt.Errorf("encode geometry: %w", err)
	}
	xJSON, err := json.Marshal(res.XData)
	if err != nil {
		return fmt.Errorf("encode x data: %w", err)
	}
	yJSON, err := json.Marshal(res.YData)
	if err != nil {
		return fmt.Errorf("encode y data: %w", err)
	}
	countsJSON, err := json.Marshal(res.Counts)
	if err != nil {
		return fmt.Errorf("encode counts: %w", err)
	}

	var plotPath interface{}
	if rec.PlotPath != "" {
		plotPath = rec.PlotPath
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO scan_results (`+resultColumns+`
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.ID.String(), res.Kind.String(), res.Level.String(), int64(res.FrameSeq),
			res.Confidence, res.Downsample, res.Normalized, res.Empty,
			rec.Mean, string(geomJSON), string(xJSON), string(yJSON), string(countsJSON),
			res.Timestamp.UnixNano(), rec.CreatedAt,
			plotPath,
		)
		return err
	})
}

// Get returns a stored result by ID.
func (s *ResultStore) Get(id uuid.UUID) (*Record, error) {
	row := s.db.QueryRow(`SELECT `+resultColumns+` FROM scan_results WHERE result_id = ?`, id.String())
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// ListFilter narrows ListRecent. Zero values match everything.
type ListFilter struct {
	Kind  string
	Level string
	Limit int
}

// ListRecent returns stored results newest first. Limit defaults to 50.
func (s *ResultStore) ListRecent(f ListFilter) ([]*Record, error) {
	var where []string
	var args []interface{}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.Level != "" {
		where = append(where, "level = ?")
		args = append(args, f.Level)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	q := `SELECT ` + resultColumns + ` FROM scan_results`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query scan results: %w", err)
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Count returns the number of stored results.
func (s *ResultStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM scan_results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count scan results: %w", err)
	}
	return n, nil
}

// Delete removes a stored result by ID.
func (s *ResultStore) Delete(id uuid.UUID) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM scan_results WHERE result_id = ?`, id.String())
		if err != nil {
			return fmt.Errorf("delete scan result: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		idStr, kindStr, levelStr           string
		frameSeq, capturedAt               int64
		geomJSON, xJSON, yJSON, countsJSON string
		plotPath                           sql.NullString
		mean                               sql.NullFloat64
		res                                engine.Result
		rec                                Record
	)
	err := row.Scan(
		&idStr, &kindStr, &levelStr, &frameSeq, &res.Confidence, &res.Downsample, &res.Normalized, &res.Empty,
		&mean, &geomJSON, &xJSON, &yJSON, &countsJSON, &capturedAt, &rec.CreatedAt,
		&plotPath,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan result row: %w", err)
	}

	if res.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("result id %q: %w", idStr, err)
	}
	if res.Kind, err = geometry.ParseKind(kindStr); err != nil {
		return nil, err
	}
	if res.Level, err = engine.ParseLevel(levelStr); err != nil {
		return nil, err
	}
	var env geometry.Envelope
	if err := json.Unmarshal([]byte(geomJSON), &env); err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}
	if res.Geometry, err = env.Geometry(); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(xJSON), &res.XData); err != nil {
		return nil, fmt.Errorf("decode x data: %w", err)
	}
	if err := json.Unmarshal([]byte(yJSON), &res.YData); err != nil {
		return nil, fmt.Errorf("decode y data: %w", err)
	}
	if err := json.Unmarshal([]byte(countsJSON), &res.Counts); err != nil {
		return nil, fmt.Errorf("decode counts: %w", err)
	}
	res.FrameSeq = uint64(frameSeq)
	res.Timestamp = time.Unix(0, capturedAt).UTC()

	rec.Result = &res
	rec.Mean = mean.Float64
	rec.PlotPath = plotPath.String
	return &rec, nil
}
