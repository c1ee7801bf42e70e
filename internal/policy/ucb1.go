package policy

// #region imports
import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/variant-controller/internal/store"
)

// #endregion imports

// #region arm-statistics

// ArmStatistics is one arm's running record. AverageReward is derived from
// NPulls and TotalReward, never stored independently in memory; the snapshot
// carries it redundantly so the log is readable on its own.
type ArmStatistics struct {
	NPulls        int       `json:"n_pulls"`
	TotalReward   float64   `json:"total_reward"`
	RewardHistory []float64 `json:"reward_history,omitempty"`
	LastUpdated   time.Time `json:"last_updated"`
}

// Average returns TotalReward / NPulls, or 0 before the first pull.
func (a *ArmStatistics) Average() float64 {
	if a.NPulls == 0 {
		return 0
	}
	return a.TotalReward / float64(a.NPulls)
}

// #endregion arm-statistics

// #region config

// UCB1Config holds the exploration constant and history cap.
type UCB1Config struct {
	C          float64 `yaml:"c"`           // exploration constant
	HistoryCap int     `yaml:"history_cap"` // max rewards retained per arm
}

// DefaultUCB1Config returns c=√2 and a 100-entry history cap.
func DefaultUCB1Config() UCB1Config {
	return UCB1Config{C: math.Sqrt2, HistoryCap: 100}
}

// #endregion config

// #region snapshot

// ucb1Snapshot is one self-contained log line. Only the last line is read back.
type ucb1Snapshot struct {
	Timestamp  time.Time                 `json:"timestamp"`
	TotalPulls int                       `json:"total_pulls"`
	Arms       map[string]*ucb1ArmRecord `json:"arms"`
}

type ucb1ArmRecord struct {
	NPulls        int       `json:"n_pulls"`
	TotalReward   float64   `json:"total_reward"`
	AverageReward float64   `json:"average_reward"`
	RewardHistory []float64 `json:"reward_history,omitempty"`
	LastUpdated   time.Time `json:"last_updated"`
}

// #endregion snapshot

// #region ucb1

// UCB1 is the upper-confidence-bound bandit. Instance-scoped: the caller
// holds one UCB1 per (agent, task_type) pair.
type UCB1 struct {
	mu         sync.Mutex
	cfg        UCB1Config
	arms       map[string]*ArmStatistics
	totalPulls int
	snap       store.SnapshotStore
	log        *zap.Logger
}

// NewUCB1 loads any prior snapshot and returns a bandit. logger may be nil.
func NewUCB1(snap store.SnapshotStore, cfg UCB1Config, logger *zap.Logger) *UCB1 {
	if logger == nil {
		logger = zap.NewNop()
	}
	u := &UCB1{
		cfg:  cfg,
		arms: make(map[string]*ArmStatistics),
		snap: snap,
		log:  logger,
	}
	u.load()
	return u
}

// Name implements Policy.
func (u *UCB1) Name() string { return "ucb1" }

// #endregion ucb1

// #region select

// Select prefers any untried candidate (deterministically the first one,
// reported with UCB=+Inf as optimistic_init). Once all candidates are tried,
// it picks argmax of avg + c·sqrt(2·ln(totalPulls)/n), ties broken by
// first-seen order. With totalPulls ≤ 1 the bonus term is skipped so ln of
// a non-positive count can never occur.
func (u *UCB1) Select(ctx Context, candidates []string) (Selection, error) {
	if len(candidates) == 0 {
		return Selection{}, ErrNoCandidates
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	bounds := make(map[string]float64, len(candidates))

	// Optimistic initialization: exhaust untried arms first.
	for _, arm := range candidates {
		if a, ok := u.arms[arm]; !ok || a.NPulls == 0 {
			for _, other := range candidates {
				if a, ok := u.arms[other]; !ok || a.NPulls == 0 {
					bounds[other] = math.Inf(1)
				} else {
					bounds[other] = a.Average()
				}
			}
			return Selection{
				Arm:         arm,
				Score:       math.Inf(1),
				Exploration: true,
				Meta:        Meta{Kind: MetaOptimisticInit, Bounds: bounds},
			}, nil
		}
	}

	for _, arm := range candidates {
		a := u.arms[arm]
		if u.totalPulls <= 1 {
			bounds[arm] = a.Average()
			continue
		}
		bonus := u.cfg.C * math.Sqrt(2*math.Log(float64(u.totalPulls))/float64(a.NPulls))
		bounds[arm] = a.Average() + bonus
	}

	best := candidates[0]
	for _, arm := range candidates[1:] {
		if bounds[arm] > bounds[best] {
			best = arm
		}
	}
	return Selection{
		Arm:         best,
		Score:       bounds[best],
		Exploration: false,
		Meta:        Meta{Kind: MetaUCB1, Bounds: bounds},
	}, nil
}

// #endregion select

// #region update

// Update increments the arm's counters, appends to its capped reward
// history, and appends one full snapshot line to the log.
func (u *UCB1) Update(ctx Context, arm string, reward float64) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	a, ok := u.arms[arm]
	if !ok {
		a = &ArmStatistics{}
		u.arms[arm] = a
	}
	a.NPulls++
	a.TotalReward += reward
	a.RewardHistory = append(a.RewardHistory, reward)
	if hc := u.cfg.HistoryCap; hc > 0 && len(a.RewardHistory) > hc {
		a.RewardHistory = a.RewardHistory[len(a.RewardHistory)-hc:]
	}
	a.LastUpdated = time.Now().UTC()
	u.totalPulls++

	return u.persist()
}

// #endregion update

// #region statistics

// Statistics implements Policy.
func (u *UCB1) Statistics() Statistics {
	u.mu.Lock()
	defer u.mu.Unlock()

	stats := Statistics{Policy: u.Name(), TotalPulls: u.totalPulls, Arms: make(map[string]ArmView, len(u.arms))}
	for arm, a := range u.arms {
		stats.Arms[arm] = ArmView{Pulls: a.NPulls, Value: a.Average(), LastUpdated: a.LastUpdated}
	}
	return stats
}

// Arm returns a copy of one arm's statistics, if present.
func (u *UCB1) Arm(arm string) (ArmStatistics, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	a, ok := u.arms[arm]
	if !ok {
		return ArmStatistics{}, false
	}
	out := *a
	out.RewardHistory = append([]float64(nil), a.RewardHistory...)
	return out, true
}

// #endregion statistics

// #region persistence

// persist appends one full-state line. Caller holds the mutex.
func (u *UCB1) persist() error {
	snap := ucb1Snapshot{
		Timestamp:  time.Now().UTC(),
		TotalPulls: u.totalPulls,
		Arms:       make(map[string]*ucb1ArmRecord, len(u.arms)),
	}
	for arm, a := range u.arms {
		snap.Arms[arm] = &ucb1ArmRecord{
			NPulls:        a.NPulls,
			TotalReward:   a.TotalReward,
			AverageReward: a.Average(),
			RewardHistory: a.RewardHistory,
			LastUpdated:   a.LastUpdated,
		}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal ucb1 snapshot: %w", err)
	}
	if err := u.snap.Save(data); err != nil {
		return fmt.Errorf("save ucb1 snapshot: %w", err)
	}
	return nil
}

// load restores from the last snapshot line, if any.
func (u *UCB1) load() {
	data, err := u.snap.Load()
	if err != nil {
		u.log.Warn("ucb1 snapshot unreadable, starting cold", zap.Error(err))
		return
	}
	if data == nil {
		return
	}
	var snap ucb1Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		u.log.Warn("ucb1 snapshot corrupt, starting cold", zap.Error(err))
		return
	}
	u.totalPulls = snap.TotalPulls
	for arm, rec := range snap.Arms {
		u.arms[arm] = &ArmStatistics{
			NPulls:        rec.NPulls,
			TotalReward:   rec.TotalReward,
			RewardHistory: rec.RewardHistory,
			LastUpdated:   rec.LastUpdated,
		}
	}
}

// #endregion persistence
