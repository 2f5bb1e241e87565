// Package telemetry persists per-frame lane measurements and plots them.
package telemetry

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"time"

	"lanetrack/internal/lane"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("run not found")

// FrameRecord is the scalar summary of one tracked frame.
type FrameRecord struct {
	RunID         string
	Frame         int
	Mode          string
	Search        string
	LeftRadius    float64 // +Inf for a straight boundary
	RightRadius   float64
	Offset        float64
	LeftPixels    int
	RightPixels   int
	LowConfidence bool
	TrackLost     bool
	HistoryLen    int
}

// RecordFromResult flattens a tracker result.
func RecordFromResult(frame int, res lane.Result) FrameRecord {
	return FrameRecord{
		Frame:         frame,
		Mode:          res.Mode.String(),
		Search:        res.Search.String(),
		LeftRadius:    res.Metrics.LeftRadius,
		RightRadius:   res.Metrics.RightRadius,
		Offset:        res.Metrics.Offset,
		LeftPixels:    res.LeftPixels,
		RightPixels:   res.RightPixels,
		LowConfidence: res.LowConfidence,
		TrackLost:     res.TrackLost,
		HistoryLen:    res.HistoryLen,
	}
}

// Run is one processed video.
type Run struct {
	ID         string
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is open
	Frames     int
}

// Store is a SQLite database of runs and frames.
type Store struct {
	*sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db}, nil
}

// StartRun inserts a new open run and returns its id.
func (s *Store) StartRun(source string) (string, error) {
	id := uuid.NewString()
	_, err := s.Exec(`INSERT INTO runs (id, source, started_at) VALUES (?, ?, ?)`,
		id, source, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// FinishRun closes a run and stores its frame count.
func (s *Store) FinishRun(id string, frames int) error {
	res, err := s.Exec(`UPDATE runs SET finished_at = ?, frames = ? WHERE id = ?`,
		time.Now().UnixMilli(), frames, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// Record inserts one frame.
func (s *Store) Record(rec FrameRecord) error {
	query := `
		INSERT INTO frames (run_id, frame, mode, search, left_radius_m, right_radius_m, offset_m,
			left_pixels, right_pixels, low_confidence, track_lost, history_len)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.Exec(query, rec.RunID, rec.Frame, rec.Mode, rec.Search,
		finite(rec.LeftRadius), finite(rec.RightRadius), finite(rec.Offset),
		rec.LeftPixels, rec.RightPixels, rec.LowConfidence, rec.TrackLost, rec.HistoryLen)
	if err != nil {
		return fmt.Errorf("failed to insert frame %d: %w", rec.Frame, err)
	}
	return nil
}

// Recorder returns a recorder that stamps every record with runID.
func (s *Store) Recorder(runID string) *RunRecorder {
	return &RunRecorder{store: s, runID: runID}
}

// RunRecorder writes frames of a single run.
type RunRecorder struct {
	store *Store
	runID string
}

// Record inserts rec under the recorder's run.
func (r *RunRecorder) Record(rec FrameRecord) error {
	rec.RunID = r.runID
	return r.store.Record(rec)
}

// Frames returns every frame of a run in order.
func (s *Store) Frames(runID string) ([]FrameRecord, error) {
	query := `
		SELECT frame, mode, search, left_radius_m, right_radius_m, offset_m,
			left_pixels, right_pixels, low_confidence, track_lost, history_len
		FROM frames
		WHERE run_id = ?
		ORDER BY frame
	`
	rows, err := s.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var frames []FrameRecord
	for rows.Next() {
		rec := FrameRecord{RunID: runID}
		var left, right, offset sql.NullFloat64
		if err := rows.Scan(&rec.Frame, &rec.Mode, &rec.Search, &left, &right, &offset,
			&rec.LeftPixels, &rec.RightPixels, &rec.LowConfidence, &rec.TrackLost, &rec.HistoryLen); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		rec.LeftRadius = orInf(left)
		rec.RightRadius = orInf(right)
		rec.Offset = offset.Float64
		frames = append(frames, rec)
	}
	return frames, rows.Err()
}

// Run returns a run by id.
func (s *Store) Run(id string) (Run, error) {
	row := s.QueryRow(`SELECT id, source, started_at, finished_at, frames FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun() (Run, error) {
	row := s.QueryRow(`SELECT id, source, started_at, finished_at, frames FROM runs ORDER BY started_at DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

func scanRun(row *sql.Row) (Run, error) {
	var run Run
	var started int64
	var finished sql.NullInt64
	if err := row.Scan(&run.ID, &run.Source, &started, &finished, &run.Frames); err != nil {
		return Run{}, err
	}
	run.StartedAt = time.UnixMilli(started)
	if finished.Valid {
		run.FinishedAt = time.UnixMilli(finished.Int64)
	}
	return run, nil
}

// finite maps non-finite values to NULL.
func finite(v float64) sql.NullFloat64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func orInf(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.Inf(1)
	}
	return v.Float64
}
