package policy

// #region imports
import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/variant-controller/internal/store"
)

// #endregion imports

// #region q-entry

// QEntry is one state-action cell. Created on first visit, mutated on every
// update, never deleted. ConvergenceScore is |ΔQ| of the most recent update.
type QEntry struct {
	QValue           float64   `json:"q_value"`
	NVisits          int       `json:"n_visits"`
	LastUpdated      time.Time `json:"last_updated"`
	ConvergenceScore float64   `json:"convergence_score"`
}

// #endregion q-entry

// #region config

// QLearnerConfig holds the TD(0) tuning knobs.
type QLearnerConfig struct {
	Alpha   float64 `yaml:"alpha"`   // learning rate, (0,1)
	Epsilon float64 `yaml:"epsilon"` // exploration probability, [0,1]
}

// DefaultQLearnerConfig returns the standard ε-greedy defaults.
func DefaultQLearnerConfig() QLearnerConfig {
	return QLearnerConfig{Alpha: 0.2, Epsilon: 0.1}
}

// #endregion config

// #region qlearner

// QLearner is the tabular Q-learning policy. State is keyed by
// agent:task_type:variant, so one instance serves every context.
type QLearner struct {
	mu    sync.Mutex
	cfg   QLearnerConfig
	table map[string]*QEntry
	snap  store.SnapshotStore
	rng   *rand.Rand
	log   *zap.Logger
}

// NewQLearner loads any prior snapshot from snap and returns a learner.
// A corrupt snapshot is logged and treated as a cold start, never fatal.
// rng may be nil (seeded from the clock); logger may be nil.
func NewQLearner(snap store.SnapshotStore, cfg QLearnerConfig, rng *rand.Rand, logger *zap.Logger) *QLearner {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &QLearner{
		cfg:   cfg,
		table: make(map[string]*QEntry),
		snap:  snap,
		rng:   rng,
		log:   logger,
	}
	q.load()
	return q
}

// Name implements Policy.
func (q *QLearner) Name() string { return "qlearner" }

// #endregion qlearner

// #region select

// Select picks an arm ε-greedily: with probability ε a uniformly random
// candidate (exploration), otherwise the argmax Q with ties broken by
// first-seen order. Unseen arms default to Q=0. A single candidate is a
// forced pick, never exploration.
func (q *QLearner) Select(ctx Context, candidates []string) (Selection, error) {
	if len(candidates) == 0 {
		return Selection{}, ErrNoCandidates
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	qvals := make(map[string]float64, len(candidates))
	for _, arm := range candidates {
		if e, ok := q.table[ctx.Key(arm)]; ok {
			qvals[arm] = e.QValue
		} else {
			qvals[arm] = 0
		}
	}
	meta := Meta{Kind: MetaEpsilonGreedy, Epsilon: q.cfg.Epsilon, QValues: qvals}

	if len(candidates) > 1 && q.rng.Float64() < q.cfg.Epsilon {
		arm := candidates[q.rng.Intn(len(candidates))]
		return Selection{Arm: arm, Score: qvals[arm], Exploration: true, Meta: meta}, nil
	}

	best := candidates[0]
	for _, arm := range candidates[1:] {
		if qvals[arm] > qvals[best] {
			best = arm
		}
	}
	return Selection{Arm: best, Score: qvals[best], Exploration: false, Meta: meta}, nil
}

// #endregion select

// #region update

// Update applies the TD(0) rule Q ← Q + α(reward − Q), bumps the visit
// count, records |ΔQ|, and rewrites the whole table snapshot. Durability is
// favored over write throughput; calls are invocation-paced.
func (q *QLearner) Update(ctx Context, arm string, reward float64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := ctx.Key(arm)
	e, ok := q.table[key]
	if !ok {
		e = &QEntry{}
		q.table[key] = e
	}

	delta := q.cfg.Alpha * (reward - e.QValue)
	e.QValue += delta
	e.NVisits++
	e.LastUpdated = time.Now().UTC()
	e.ConvergenceScore = abs(delta)

	return q.persist()
}

// #endregion update

// #region statistics

// Statistics implements Policy. Arms are keyed by the full state-action key.
func (q *QLearner) Statistics() Statistics {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := Statistics{Policy: q.Name(), Arms: make(map[string]ArmView, len(q.table))}
	for key, e := range q.table {
		stats.TotalPulls += e.NVisits
		stats.Arms[key] = ArmView{Pulls: e.NVisits, Value: e.QValue, LastUpdated: e.LastUpdated}
	}
	return stats
}

// Entry returns a copy of one state-action cell, if present.
func (q *QLearner) Entry(ctx Context, arm string) (QEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.table[ctx.Key(arm)]
	if !ok {
		return QEntry{}, false
	}
	return *e, true
}

// #endregion statistics

// #region persistence

// persist rewrites the full table. Caller holds the mutex.
func (q *QLearner) persist() error {
	data, err := json.Marshal(q.table)
	if err != nil {
		return fmt.Errorf("marshal q-table: %w", err)
	}
	if err := q.snap.Save(data); err != nil {
		return fmt.Errorf("save q-table: %w", err)
	}
	return nil
}

// load restores the table from the last snapshot, if any.
func (q *QLearner) load() {
	data, err := q.snap.Load()
	if err != nil {
		q.log.Warn("q-table snapshot unreadable, starting cold", zap.Error(err))
		return
	}
	if data == nil {
		return
	}
	table := make(map[string]*QEntry)
	if err := json.Unmarshal(data, &table); err != nil {
		q.log.Warn("q-table snapshot corrupt, starting cold", zap.Error(err))
		return
	}
	q.table = table
}

// #endregion persistence

// #region helpers

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// #endregion helpers
