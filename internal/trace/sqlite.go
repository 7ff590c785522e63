// Package trace records localization runs frame by frame into SQLite for
// offline evaluation.
package trace

import (
	"database/sql"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/jhoydich/pflocalize/agent"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id             TEXT PRIMARY KEY,
	started_unix_nanos INTEGER NOT NULL,
	num_particles      INTEGER NOT NULL,
	config_json        TEXT
);
CREATE TABLE IF NOT EXISTS frames (
	run_id       TEXT NOT NULL REFERENCES runs(run_id),
	seq          INTEGER NOT NULL,
	phase        TEXT NOT NULL,
	message      TEXT,
	corrected    INTEGER NOT NULL,
	true_x       REAL,
	true_y       REAL,
	true_heading REAL,
	est_x        REAL,
	est_y        REAL,
	est_heading  REAL,
	spread       REAL,
	PRIMARY KEY (run_id, seq)
);
`

// DB is a trace database.
type DB struct {
	*sql.DB
	logger *zap.SugaredLogger
}

// Open opens or creates the trace database at path.
func Open(path string, logger *zap.SugaredLogger) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open trace db")
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to execute %q", pragma)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create trace schema")
	}

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &DB{DB: db, logger: logger}, nil
}

// Recorder is an agent.Renderer persisting every frame of one run.
type Recorder struct {
	db     *DB
	runID  string
	insert *sql.Stmt
}

// StartRun registers a new run and returns its recorder.
func (d *DB) StartRun(numParticles int, configJSON string) (*Recorder, error) {
	runID := uuid.NewString()
	if _, err := d.Exec(
		`INSERT INTO runs (run_id, started_unix_nanos, num_particles, config_json) VALUES (?, ?, ?, ?)`,
		runID, time.Now().UnixNano(), numParticles, configJSON,
	); err != nil {
		return nil, errors.Wrap(err, "failed to insert run")
	}

	stmt, err := d.Prepare(`INSERT INTO frames (
		run_id, seq, phase, message, corrected,
		true_x, true_y, true_heading, est_x, est_y, est_heading, spread
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare frame insert")
	}
	return &Recorder{db: d, runID: runID, insert: stmt}, nil
}

// RunID returns the run's identifier.
func (r *Recorder) RunID() string {
	return r.runID
}

// Close releases the prepared statement.
func (r *Recorder) Close() error {
	return r.insert.Close()
}

// Render implements agent.Renderer. Insert failures are logged.
func (r *Recorder) Render(f agent.Frame) {
	corrected := 0
	if f.Corrected {
		corrected = 1
	}
	if _, err := r.insert.Exec(
		r.runID, f.Seq, string(f.Phase), f.Message, corrected,
		f.Truth.X, f.Truth.Y, f.Truth.Heading,
		f.Estimate.X, f.Estimate.Y, f.Estimate.Heading,
		spread(f),
	); err != nil {
		r.db.logger.Warnw("failed to record frame", "run_id", r.runID, "seq", f.Seq, "error", err)
	}
}

// spread is the RMS distance of the particles from the estimate.
func spread(f agent.Frame) float64 {
	if len(f.Particles) == 0 {
		return 0
	}
	var sum float64
	for _, p := range f.Particles {
		dx := p.X - f.Estimate.X
		dy := p.Y - f.Estimate.Y
		sum += dx*dx + dy*dy
	}
	return math.Sqrt(sum / float64(len(f.Particles)))
}

// Summary describes a recorded run.
type Summary struct {
	RunID       string
	Frames      int
	Corrections int
	// FinalError is the distance between truth and estimate on the last frame.
	FinalError float64
}

// Summary aggregates the frames recorded for runID.
func (d *DB) Summary(runID string) (Summary, error) {
	s := Summary{RunID: runID}
	if err := d.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(corrected), 0) FROM frames WHERE run_id = ?`, runID,
	).Scan(&s.Frames, &s.Corrections); err != nil {
		return s, errors.Wrap(err, "failed to count frames")
	}
	if s.Frames == 0 {
		return s, nil
	}

	var tx, ty, ex, ey float64
	if err := d.QueryRow(
		`SELECT true_x, true_y, est_x, est_y FROM frames WHERE run_id = ? ORDER BY seq DESC LIMIT 1`, runID,
	).Scan(&tx, &ty, &ex, &ey); err != nil {
		return s, errors.Wrap(err, "failed to read last frame")
	}
	s.FinalError = math.Hypot(ex-tx, ey-ty)
	return s, nil
}
