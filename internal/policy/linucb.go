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

// #region config

// LinUCBConfig holds the exploration width for the contextual bandit.
type LinUCBConfig struct {
	Alpha float64 `yaml:"alpha"` // confidence-bound width
}

// DefaultLinUCBConfig returns alpha=1.0.
func DefaultLinUCBConfig() LinUCBConfig {
	return LinUCBConfig{Alpha: 1.0}
}

// #endregion config

// #region linear-model

// linModel is one arm's ridge model: design matrix A (identity init, gains
// only rank-1 PSD terms, so always invertible), accumulator b, and derived
// theta = A⁻¹b. Theta is recomputed on update, not stored authoritatively.
type linModel struct {
	A           [][]float64 `json:"a"`
	B           []float64   `json:"b"`
	NPulls      int         `json:"n_pulls"`
	LastUpdated time.Time   `json:"last_updated"`
}

func newLinModel(d int) *linModel {
	return &linModel{A: identity(d), B: make([]float64, d)}
}

// #endregion linear-model

// #region snapshot

type linucbSnapshot struct {
	Timestamp  time.Time            `json:"timestamp"`
	TotalPulls int                  `json:"total_pulls"`
	Arms       map[string]*linModel `json:"arms"`
}

// #endregion snapshot

// #region linucb

// LinUCB is the contextual linear bandit. Instance-scoped, one per
// (agent, task_type) pair; the context's request data supplies the features.
type LinUCB struct {
	mu         sync.Mutex
	cfg        LinUCBConfig
	arms       map[string]*linModel
	totalPulls int
	snap       store.SnapshotStore
	log        *zap.Logger
}

// NewLinUCB loads any prior snapshot and returns a bandit. logger may be nil.
func NewLinUCB(snap store.SnapshotStore, cfg LinUCBConfig, logger *zap.Logger) *LinUCB {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &LinUCB{
		cfg:  cfg,
		arms: make(map[string]*linModel),
		snap: snap,
		log:  logger,
	}
	l.load()
	return l
}

// Name implements Policy.
func (l *LinUCB) Name() string { return "linucb" }

// #endregion linucb

// #region select

// Select scores every candidate with theta·x + alpha·sqrt(xᵀA⁻¹x) and picks
// the argmax, ties broken by first-seen order. Unseen arms start from the
// identity model, which makes their bonus term the largest; exploration
// falls out of the bound itself.
func (l *LinUCB) Select(ctx Context, candidates []string) (Selection, error) {
	if len(candidates) == 0 {
		return Selection{}, ErrNoCandidates
	}

	x := Features(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	scores := make(map[string]float64, len(candidates))
	for _, arm := range candidates {
		m, ok := l.arms[arm]
		if !ok {
			m = newLinModel(FeatureDim)
		}
		scores[arm] = l.predict(m, x)
	}

	best := candidates[0]
	for _, arm := range candidates[1:] {
		if scores[arm] > scores[best] {
			best = arm
		}
	}

	// An arm with no pulls yet is a pure-bonus pick.
	_, seen := l.arms[best]
	return Selection{
		Arm:         best,
		Score:       scores[best],
		Exploration: !seen || l.arms[best].NPulls == 0,
		Meta:        Meta{Kind: MetaLinUCB, Features: x, Scores: scores},
	}, nil
}

// predict computes theta·x + alpha·sqrt(xᵀA⁻¹x). A is positive-definite by
// construction, so the quadratic form is non-negative and the sqrt is safe.
func (l *LinUCB) predict(m *linModel, x []float64) float64 {
	inv := invert(m.A)
	theta := matVec(inv, m.B)
	mean := dot(theta, x)
	q := dot(x, matVec(inv, x))
	if q < 0 {
		q = 0 // floating-point dust only
	}
	return mean + l.cfg.Alpha*math.Sqrt(q)
}

// #endregion select

// #region update

// Update applies A += xxᵀ, b += reward·x for the arm and appends one full
// snapshot line. The full re-solve on the next predict is O(d³), fine at d=10.
func (l *LinUCB) Update(ctx Context, arm string, reward float64) error {
	x := Features(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.arms[arm]
	if !ok {
		m = newLinModel(FeatureDim)
		l.arms[arm] = m
	}
	for i := 0; i < FeatureDim; i++ {
		for j := 0; j < FeatureDim; j++ {
			m.A[i][j] += x[i] * x[j]
		}
		m.B[i] += reward * x[i]
	}
	m.NPulls++
	m.LastUpdated = time.Now().UTC()
	l.totalPulls++

	return l.persist()
}

// #endregion update

// #region statistics

// Statistics implements Policy. Value is the model's mean prediction against
// the all-neutral feature vector, which gives a stable cross-arm ranking.
func (l *LinUCB) Statistics() Statistics {
	l.mu.Lock()
	defer l.mu.Unlock()

	neutral := make([]float64, FeatureDim)
	for i := range neutral {
		neutral[i] = 0.5
	}

	stats := Statistics{Policy: l.Name(), TotalPulls: l.totalPulls, Arms: make(map[string]ArmView, len(l.arms))}
	for arm, m := range l.arms {
		theta := matVec(invert(m.A), m.B)
		stats.Arms[arm] = ArmView{Pulls: m.NPulls, Value: dot(theta, neutral), LastUpdated: m.LastUpdated}
	}
	return stats
}

// Theta returns the arm's current coefficient vector, if present.
func (l *LinUCB) Theta(arm string) ([]float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.arms[arm]
	if !ok {
		return nil, false
	}
	return matVec(invert(m.A), m.B), true
}

// #endregion statistics

// #region persistence

func (l *LinUCB) persist() error {
	snap := linucbSnapshot{Timestamp: time.Now().UTC(), TotalPulls: l.totalPulls, Arms: l.arms}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal linucb snapshot: %w", err)
	}
	if err := l.snap.Save(data); err != nil {
		return fmt.Errorf("save linucb snapshot: %w", err)
	}
	return nil
}

func (l *LinUCB) load() {
	data, err := l.snap.Load()
	if err != nil {
		l.log.Warn("linucb snapshot unreadable, starting cold", zap.Error(err))
		return
	}
	if data == nil {
		return
	}
	var snap linucbSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		l.log.Warn("linucb snapshot corrupt, starting cold", zap.Error(err))
		return
	}
	l.totalPulls = snap.TotalPulls
	if snap.Arms != nil {
		l.arms = snap.Arms
	}
}

// #endregion persistence

// #region matrix-math

func identity(d int) [][]float64 {
	m := make([][]float64, d)
	for i := range m {
		m[i] = make([]float64, d)
		m[i][i] = 1
	}
	return m
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func matVec(m [][]float64, v []float64) []float64 {
	out := make([]float64, len(m))
	for i := range m {
		out[i] = dot(m[i], v)
	}
	return out
}

// invert returns the inverse of a square matrix via Gauss-Jordan elimination
// with partial pivoting. Inputs here are identity plus PSD rank-1 terms, so
// a zero pivot cannot occur.
func invert(a [][]float64) [][]float64 {
	d := len(a)
	aug := make([][]float64, d)
	for i := range aug {
		aug[i] = make([]float64, 2*d)
		copy(aug[i], a[i])
		aug[i][d+i] = 1
	}

	for col := 0; col < d; col++ {
		pivot := col
		for row := col + 1; row < d; row++ {
			if math.Abs(aug[row][col]) > math.Abs(aug[pivot][col]) {
				pivot = row
			}
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		pv := aug[col][col]
		for j := 0; j < 2*d; j++ {
			aug[col][j] /= pv
		}
		for row := 0; row < d; row++ {
			if row == col {
				continue
			}
			f := aug[row][col]
			if f == 0 {
				continue
			}
			for j := 0; j < 2*d; j++ {
				aug[row][j] -= f * aug[col][j]
			}
		}
	}

	inv := make([][]float64, d)
	for i := range inv {
		inv[i] = aug[i][d:]
	}
	return inv
}

// #endregion matrix-math
