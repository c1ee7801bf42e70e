package rollback

// #region imports
import (
	"github.com/danielpatrickdp/variant-controller/internal/outcome"
)

// #endregion imports

// #region detector

// Detector compares a rolling recent window against an arm's long-run
// baseline and flags performance regression. Thin evidence yields an
// insufficient_data report, never a degraded one, so rollback cannot fire
// on noise.
type Detector struct {
	config DetectorConfig
}

// NewDetector creates a detector with the given configuration.
func NewDetector(config DetectorConfig) *Detector {
	return &Detector{config: config}
}

// #endregion detector

// #region evaluate

// Evaluate computes fractional drops in success rate and average reward and
// the fractional rise in error rate. Requires baseline samples ≥ window and
// recent samples ≥ window/2.
func (d *Detector) Evaluate(baseline outcome.Baseline, recent []outcome.Record) Report {
	if baseline.Samples < d.config.Window || len(recent) < d.config.Window/2 {
		return Report{InsufficientData: true}
	}

	win := outcome.Summarize(recent)
	var checks []Check

	// Success-rate drop. Only meaningful against a positive baseline.
	successDrop := 0.0
	if baseline.SuccessRate > 0 {
		successDrop = (baseline.SuccessRate - win.SuccessRate) / baseline.SuccessRate
	}
	checks = append(checks, Check{
		Name:     "success_rate_drop",
		Baseline: baseline.SuccessRate,
		Recent:   win.SuccessRate,
		Delta:    successDrop,
		Tripped:  successDrop > d.config.MaxSuccessDrop,
	})

	// Average-reward drop. A non-positive baseline has no fractional drop.
	rewardDrop := 0.0
	if baseline.AvgReward > 0 {
		rewardDrop = (baseline.AvgReward - win.AvgReward) / baseline.AvgReward
	}
	checks = append(checks, Check{
		Name:     "avg_reward_drop",
		Baseline: baseline.AvgReward,
		Recent:   win.AvgReward,
		Delta:    rewardDrop,
		Tripped:  rewardDrop > d.config.MaxRewardDrop,
	})

	// Error-rate rise. A zero baseline with any recent errors is reported as
	// a full (1.0) rise rather than dividing by zero.
	errorRise := 0.0
	switch {
	case baseline.ErrorRate > 0:
		errorRise = (win.ErrorRate - baseline.ErrorRate) / baseline.ErrorRate
	case win.ErrorRate > 0:
		errorRise = 1.0
	}
	checks = append(checks, Check{
		Name:     "error_rate_rise",
		Baseline: baseline.ErrorRate,
		Recent:   win.ErrorRate,
		Delta:    errorRise,
		Tripped:  errorRise > d.config.MaxErrorRise,
	})

	report := Report{Checks: checks}
	for _, c := range checks {
		if c.Tripped {
			report.Degraded = true
		}
	}
	return report
}

// #endregion evaluate
