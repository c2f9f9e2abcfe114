package storage

import (
	"database/sql"
	"fmt"
	"math"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/crosswatch/internal/radar"
	"github.com/banshee-data/crosswatch/internal/tracks"
)

// Store persists annotated frames and track snapshots per cycle. Each
// Store instance owns one recording run, identified by a fresh UUID so
// several runs can share a database file.
type Store struct {
	db    *sql.DB
	runID string
}

// Open creates (or reuses) the database at path and starts a new run.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS frames (
			run_id TEXT,
			timestamp_ms DOUBLE,
			num_points INTEGER,
			num_clusters INTEGER,
			motion_state INTEGER,
			ego_vx DOUBLE,
			ego_vy DOUBLE,
			ego_accel DOUBLE,
			barrier_x_min DOUBLE,
			barrier_x_max DOUBLE,
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
		CREATE TABLE IF NOT EXISTS track_snapshots (
			run_id TEXT,
			timestamp_ms DOUBLE,
			track_id BIGINT,
			state TEXT,
			age INTEGER,
			x DOUBLE,
			y DOUBLE,
			vx DOUBLE,
			vy DOUBLE,
			ttc DOUBLE,
			ttc_category TEXT,
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
		CREATE INDEX IF NOT EXISTS idx_frames_run ON frames(run_id, timestamp_ms);
		CREATE INDEX IF NOT EXISTS idx_tracks_run ON track_snapshots(run_id, timestamp_ms);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	runID := uuid.New().String()
	if _, err := db.Exec("INSERT INTO runs (run_id) VALUES (?)", runID); err != nil {
		db.Close()
		return nil, fmt.Errorf("register run: %w", err)
	}
	return &Store{db: db, runID: runID}, nil
}

// RunID returns this recording run's identifier.
func (s *Store) RunID() string { return s.runID }

// RecordCycle writes the frame summary and one snapshot row per track,
// lost tracks included. Serialization of the full point cloud stays
// with the caller; the store keeps the queryable cycle summary.
func (s *Store) RecordCycle(frame *radar.Frame, trackList []*tracks.Track) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("record cycle: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO frames
		(run_id, timestamp_ms, num_points, num_clusters, motion_state,
		 ego_vx, ego_vy, ego_accel, barrier_x_min, barrier_x_max)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, frame.TimestampMs, frame.NumPoints(), len(frame.Clusters),
		int(frame.MotionState), nullNaN(frame.EgoVx), nullNaN(frame.EgoVy),
		nullNaN(frame.EgoAccel), frame.Barrier.XMin, frame.Barrier.XMax)
	if err != nil {
		return fmt.Errorf("insert frame: %w", err)
	}

	for _, tr := range trackList {
		_, err = tx.Exec(`INSERT INTO track_snapshots
			(run_id, timestamp_ms, track_id, state, age, x, y, vx, vy, ttc, ttc_category)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.runID, frame.TimestampMs, tr.ID, string(tr.State), tr.Age,
			tr.X, tr.Y, tr.VX, tr.VY, nullNaN(tr.TTC), string(tr.TTCCategory))
		if err != nil {
			return fmt.Errorf("insert track %d: %w", tr.ID, err)
		}
	}
	return tx.Commit()
}

// TrackSnapshot is one persisted track row.
type TrackSnapshot struct {
	TimestampMs float64
	TrackID     int64
	State       string
	Age         int
	X, Y        float64
	VX, VY      float64
	TTC         float64
	TTCCategory string
}

// TrackHistory returns all snapshots of one track in this run, oldest
// first.
func (s *Store) TrackHistory(trackID int64) ([]TrackSnapshot, error) {
	rows, err := s.db.Query(`SELECT timestamp_ms, track_id, state, age, x, y, vx, vy, ttc, ttc_category
		FROM track_snapshots WHERE run_id = ? AND track_id = ? ORDER BY timestamp_ms`,
		s.runID, trackID)
	if err != nil {
		return nil, fmt.Errorf("query track history: %w", err)
	}
	defer rows.Close()

	var out []TrackSnapshot
	for rows.Next() {
		var snap TrackSnapshot
		var ttc sql.NullFloat64
		if err := rows.Scan(&snap.TimestampMs, &snap.TrackID, &snap.State, &snap.Age,
			&snap.X, &snap.Y, &snap.VX, &snap.VY, &ttc, &snap.TTCCategory); err != nil {
			return nil, fmt.Errorf("scan track snapshot: %w", err)
		}
		snap.TTC = math.Inf(1)
		if ttc.Valid {
			snap.TTC = ttc.Float64
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// FrameCount returns the number of persisted cycles in this run.
func (s *Store) FrameCount() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM frames WHERE run_id = ?", s.runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count frames: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// nullNaN maps NaN and Inf to SQL NULL; SQLite would otherwise store
// them as corrupted text values.
func nullNaN(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
