package policy

// #region imports
import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/variant-controller/internal/store"
)

// #endregion imports

// #region posterior

// BetaPosterior is one arm's Beta(alpha, beta) belief. The prior is (1,1).
type BetaPosterior struct {
	Alpha       float64   `json:"alpha"`
	Beta        float64   `json:"beta"`
	LastUpdated time.Time `json:"last_updated"`
}

// Mean returns the posterior expected success probability alpha/(alpha+beta).
func (p *BetaPosterior) Mean() float64 {
	return p.Alpha / (p.Alpha + p.Beta)
}

// pulls counts observed outcomes beyond the (1,1) prior.
func (p *BetaPosterior) pulls() int {
	return int(p.Alpha+p.Beta) - 2
}

// #endregion posterior

// #region snapshot

// thompsonSnapshot is one self-contained log line.
type thompsonSnapshot struct {
	Timestamp  time.Time                 `json:"timestamp"`
	TotalPulls int                       `json:"total_pulls"`
	Arms       map[string]*BetaPosterior `json:"arms"`
}

// #endregion snapshot

// #region thompson

// Thompson is the Beta-Bernoulli Thompson Sampling bandit. Instance-scoped,
// one per (agent, task_type) pair.
//
// Update deliberately binarizes the continuous reward: reward ≥ 0.5 counts
// as a synthetic success (alpha+1), below as a failure (beta+1). Magnitude
// is lost; this is documented behavior, not an error path.
type Thompson struct {
	mu   sync.Mutex
	arms map[string]*BetaPosterior
	snap store.SnapshotStore
	rng  *rand.Rand
	log  *zap.Logger
}

// NewThompson loads any prior snapshot and returns a bandit.
// rng may be nil (seeded from the clock); logger may be nil.
func NewThompson(snap store.SnapshotStore, rng *rand.Rand, logger *zap.Logger) *Thompson {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Thompson{
		arms: make(map[string]*BetaPosterior),
		snap: snap,
		rng:  rng,
		log:  logger,
	}
	t.load()
	return t
}

// Name implements Policy.
func (t *Thompson) Name() string { return "thompson" }

// #endregion thompson

// #region select

// Select samples θ ~ Beta(alpha, beta) for every candidate and picks the
// argmax sample. Score is the winner's posterior mean; the raw samples ride
// along in the metadata. Sampling is itself the exploration mechanism, so
// the exploration flag reports whether the sampled winner differs from the
// posterior-mean winner.
func (t *Thompson) Select(ctx Context, candidates []string) (Selection, error) {
	if len(candidates) == 0 {
		return Selection{}, ErrNoCandidates
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	samples := make(map[string]float64, len(candidates))
	best, greedy := candidates[0], candidates[0]
	for _, arm := range candidates {
		p := t.posterior(arm)
		samples[arm] = sampleBeta(t.rng, p.Alpha, p.Beta)
		if samples[arm] > samples[best] {
			best = arm
		}
		if p.Mean() > t.posterior(greedy).Mean() {
			greedy = arm
		}
	}

	winner := t.posterior(best)
	return Selection{
		Arm:         best,
		Score:       winner.Mean(),
		Exploration: best != greedy,
		Meta:        Meta{Kind: MetaThompson, Samples: samples, Expected: winner.Mean()},
	}, nil
}

// posterior returns the arm's posterior, creating the (1,1) prior on first
// sight. Caller holds the mutex.
func (t *Thompson) posterior(arm string) *BetaPosterior {
	p, ok := t.arms[arm]
	if !ok {
		p = &BetaPosterior{Alpha: 1, Beta: 1}
		t.arms[arm] = p
	}
	return p
}

// #endregion select

// #region update

// Update increments alpha on reward ≥ 0.5, beta otherwise, and appends one
// full snapshot line.
func (t *Thompson) Update(ctx Context, arm string, reward float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.posterior(arm)
	if reward >= 0.5 {
		p.Alpha++
	} else {
		p.Beta++
	}
	p.LastUpdated = time.Now().UTC()

	return t.persist()
}

// #endregion update

// #region statistics

// Statistics implements Policy. Value is the posterior mean.
func (t *Thompson) Statistics() Statistics {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := Statistics{Policy: t.Name(), Arms: make(map[string]ArmView, len(t.arms))}
	for arm, p := range t.arms {
		stats.TotalPulls += p.pulls()
		stats.Arms[arm] = ArmView{Pulls: p.pulls(), Value: p.Mean(), LastUpdated: p.LastUpdated}
	}
	return stats
}

// Posterior returns a copy of one arm's posterior, if present.
func (t *Thompson) Posterior(arm string) (BetaPosterior, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.arms[arm]
	if !ok {
		return BetaPosterior{}, false
	}
	return *p, true
}

// #endregion statistics

// #region persistence

func (t *Thompson) persist() error {
	total := 0
	for _, p := range t.arms {
		total += p.pulls()
	}
	snap := thompsonSnapshot{Timestamp: time.Now().UTC(), TotalPulls: total, Arms: t.arms}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal thompson snapshot: %w", err)
	}
	if err := t.snap.Save(data); err != nil {
		return fmt.Errorf("save thompson snapshot: %w", err)
	}
	return nil
}

func (t *Thompson) load() {
	data, err := t.snap.Load()
	if err != nil {
		t.log.Warn("thompson snapshot unreadable, starting cold", zap.Error(err))
		return
	}
	if data == nil {
		return
	}
	var snap thompsonSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.log.Warn("thompson snapshot corrupt, starting cold", zap.Error(err))
		return
	}
	if snap.Arms != nil {
		t.arms = snap.Arms
	}
}

// #endregion persistence

// #region beta-sampling

// sampleBeta draws from Beta(a, b) via two gamma draws. Posteriors here
// always have a, b ≥ 1 since they start at the (1,1) prior and only ever
// increment.
func sampleBeta(rng *rand.Rand, a, b float64) float64 {
	x := sampleGamma(rng, a)
	y := sampleGamma(rng, b)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// sampleGamma draws from Gamma(shape, 1) using Marsaglia–Tsang squeeze
// rejection. For shape < 1 it boosts via Gamma(shape+1)·U^(1/shape).
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		return sampleGamma(rng, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)
	for {
		x := rng.NormFloat64()
		v := 1.0 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1.0-0.0331*x*x*x*x {
			return d * v
		}
		if u > 0 && math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v
		}
	}
}

// #endregion beta-sampling
