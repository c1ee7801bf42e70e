// Package reward maps observed outcome signals to a scalar reward in [-1,1].
package reward

// #region complexity

// Complexity buckets a task's expected duration.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// durationBaselines are the expected-duration baselines in seconds.
var durationBaselines = map[Complexity]float64{
	ComplexityLow:    60,
	ComplexityMedium: 300,
	ComplexityHigh:   900,
}

// #endregion complexity

// #region weights

// Weights are the reward component weights. ErrorPenalty applies per error.
type Weights struct {
	Success      float64 `yaml:"success"`
	Quality      float64 `yaml:"quality"`
	Speed        float64 `yaml:"speed"`
	ErrorPenalty float64 `yaml:"error_penalty"`
}

// DefaultWeights returns the standard .4/.3/.2/.1 split.
func DefaultWeights() Weights {
	return Weights{Success: 0.4, Quality: 0.3, Speed: 0.2, ErrorPenalty: 0.1}
}

// #endregion weights

// #region outcome

// Outcome bundles the signals observed for one completed task.
type Outcome struct {
	Success    bool
	Quality    *float64 // 0-1; nil means unknown, scored as the neutral 0.5
	Duration   *float64 // seconds; nil means the speed component is skipped
	Errors     int
	Complexity Complexity
}

// #endregion outcome

// #region calculator

// Calculator computes rewards from outcomes. Monotone increasing in quality
// and success, decreasing in duration and error count.
type Calculator struct {
	w Weights
}

// NewCalculator returns a calculator with the given weights.
func NewCalculator(w Weights) *Calculator {
	return &Calculator{w: w}
}

// Calculate maps an outcome to a reward in [-1,1]:
//
//	wS·(±1) + wQ·quality + wSpeed·speedBonus − wErr·errors, clamped.
func (c *Calculator) Calculate(o Outcome) float64 {
	var r float64

	if o.Success {
		r += c.w.Success
	} else {
		r -= c.w.Success
	}

	quality := 0.5
	if o.Quality != nil {
		quality = clamp(*o.Quality, 0, 1)
	}
	r += c.w.Quality * quality

	r += c.w.Speed * speedBonus(o.Duration, o.Complexity)

	r -= c.w.ErrorPenalty * float64(o.Errors)

	return clamp(r, -1, 1)
}

// #endregion calculator

// #region speed

// speedBonus rewards finishing under the complexity baseline and penalizes
// overruns, clamped to [-1,1]. Missing duration contributes nothing.
// Unknown complexity falls back to the medium baseline.
func speedBonus(duration *float64, complexity Complexity) float64 {
	if duration == nil {
		return 0
	}
	baseline, ok := durationBaselines[complexity]
	if !ok {
		baseline = durationBaselines[ComplexityMedium]
	}
	return clamp(1-*duration/baseline, -1, 1)
}

// #endregion speed

// #region helpers

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Ptr is a convenience for building optional fields in call sites and tests.
func Ptr(v float64) *float64 { return &v }

// #endregion helpers
