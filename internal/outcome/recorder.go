// Package outcome persists per-task outcome records and variant baselines in
// SQLite. It implements the two narrow external interfaces the decision core
// consumes: a variant registry with aggregate baseline counters, and a
// write-only outcome recorder.
package outcome

// #region imports
import (
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"
)

// #endregion imports

// #region schema

const outcomesSchema = `
CREATE TABLE IF NOT EXISTS outcomes (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    agent        TEXT NOT NULL,
    task_type    TEXT NOT NULL,
    arm          TEXT NOT NULL,
    reward       REAL NOT NULL,
    success      INTEGER NOT NULL,
    duration_s   REAL,
    errors       INTEGER NOT NULL DEFAULT 0,
    exploration  INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT NOT NULL
);
`

const outcomesIndex = `
CREATE INDEX IF NOT EXISTS idx_outcomes_lookup
ON outcomes(agent, task_type, arm, id);
`

// #endregion schema

// #region open

// Open opens (or creates) the outcomes database with WAL journaling.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	return db, nil
}

// #endregion open

// #region record

// Record is one completed task's observed outcome.
type Record struct {
	Agent       string
	TaskType    string
	Arm         string
	Reward      float64
	Success     bool
	Duration    *float64 // seconds, nil when not measured
	Errors      int
	Exploration bool
	CreatedAt   time.Time
}

// #endregion record

// #region recorder

// Recorder writes outcome rows and serves the aggregate queries the
// degradation detector and rollback supervisor read.
type Recorder struct {
	db *sql.DB
}

// NewRecorder initializes the outcomes table and returns a Recorder.
func NewRecorder(db *sql.DB) (*Recorder, error) {
	if _, err := db.Exec(outcomesSchema); err != nil {
		return nil, fmt.Errorf("migrate outcomes: %w", err)
	}
	if _, err := db.Exec(outcomesIndex); err != nil {
		return nil, fmt.Errorf("index outcomes: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Record persists one outcome row.
func (r *Recorder) Record(rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	var duration interface{}
	if rec.Duration != nil {
		duration = *rec.Duration
	}
	_, err := r.db.Exec(`
		INSERT INTO outcomes
		(agent, task_type, arm, reward, success, duration_s, errors, exploration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Agent, rec.TaskType, rec.Arm, rec.Reward,
		boolInt(rec.Success), duration, rec.Errors, boolInt(rec.Exploration),
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// #endregion recorder

// #region recent

// Recent returns the newest limit records for (agent, task_type, arm).
func (r *Recorder) Recent(agent, taskType, arm string, limit int) ([]Record, error) {
	rows, err := r.db.Query(`
		SELECT reward, success, duration_s, errors, exploration, created_at
		FROM outcomes
		WHERE agent = ? AND task_type = ? AND arm = ?
		ORDER BY id DESC LIMIT ?`,
		agent, taskType, arm, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec := Record{Agent: agent, TaskType: taskType, Arm: arm}
		var success, exploration int
		var duration sql.NullFloat64
		var createdAt string
		if err := rows.Scan(&rec.Reward, &success, &duration, &rec.Errors, &exploration, &createdAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		rec.Success = success == 1
		rec.Exploration = exploration == 1
		if duration.Valid {
			d := duration.Float64
			rec.Duration = &d
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion recent

// #region baseline

// Baseline is an arm's long-run aggregate counters for one context.
type Baseline struct {
	Samples     int
	SuccessRate float64
	AvgReward   float64
	ErrorRate   float64 // mean errors per task
}

// Baseline aggregates every recorded outcome for (agent, task_type, arm).
func (r *Recorder) Baseline(agent, taskType, arm string) (Baseline, error) {
	row := r.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(AVG(success), 0),
		       COALESCE(AVG(reward), 0),
		       COALESCE(AVG(errors), 0)
		FROM outcomes
		WHERE agent = ? AND task_type = ? AND arm = ?`,
		agent, taskType, arm,
	)
	var b Baseline
	if err := row.Scan(&b.Samples, &b.SuccessRate, &b.AvgReward, &b.ErrorRate); err != nil {
		return Baseline{}, fmt.Errorf("query baseline: %w", err)
	}
	return b, nil
}

// Summarize computes the same counters over an in-memory window, so the
// recent window and the stored baseline are directly comparable.
func Summarize(records []Record) Baseline {
	b := Baseline{Samples: len(records)}
	if b.Samples == 0 {
		return b
	}
	var successes, errors int
	var reward float64
	for _, rec := range records {
		if rec.Success {
			successes++
		}
		errors += rec.Errors
		reward += rec.Reward
	}
	n := float64(b.Samples)
	b.SuccessRate = float64(successes) / n
	b.AvgReward = reward / n
	b.ErrorRate = float64(errors) / n
	return b
}

// #endregion baseline

// #region confidence

// Confidence returns a decay-weighted confidence in (agent, task_type, arm):
// the exponentially age-weighted average reward mapped from [-1,1] to [0,1].
// Recent evidence dominates; halfLife controls how fast old rows fade.
func (r *Recorder) Confidence(agent, taskType, arm string, halfLife time.Duration) (float64, int, error) {
	rows, err := r.db.Query(`
		SELECT reward, created_at
		FROM outcomes
		WHERE agent = ? AND task_type = ? AND arm = ?`,
		agent, taskType, arm,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("query confidence: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	halfLifeHours := halfLife.Hours()
	var weightedSum, totalWeight float64
	count := 0

	for rows.Next() {
		var reward float64
		var createdAtStr string
		if err := rows.Scan(&reward, &createdAtStr); err != nil {
			return 0, 0, fmt.Errorf("scan confidence row: %w", err)
		}
		createdAt, err := time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			continue
		}
		weight := 1.0
		if halfLifeHours > 0 {
			weight = math.Exp(-now.Sub(createdAt).Hours() / halfLifeHours)
		}
		weightedSum += reward * weight
		totalWeight += weight
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}
	if totalWeight == 0 {
		return 0, 0, nil
	}

	avg := weightedSum / totalWeight // in [-1,1]
	return (avg + 1) / 2, count, nil
}

// #endregion confidence

// #region helpers

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
