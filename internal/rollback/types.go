package rollback

import "time"

// #region detector-config
// DetectorConfig holds the window size and regression thresholds.
type DetectorConfig struct {
	Window         int     `yaml:"window"`           // recent-window size
	MaxSuccessDrop float64 `yaml:"max_success_drop"` // fractional drop in success rate
	MaxRewardDrop  float64 `yaml:"max_reward_drop"`  // fractional drop in average reward
	MaxErrorRise   float64 `yaml:"max_error_rise"`   // fractional rise in error rate
}

// DefaultDetectorConfig returns the standard thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Window:         20,
		MaxSuccessDrop: 0.10,
		MaxRewardDrop:  0.15,
		MaxErrorRise:   0.20,
	}
}

// #endregion detector-config

// #region check
// Check is one regression metric comparison.
type Check struct {
	Name     string  `json:"name"`
	Baseline float64 `json:"baseline"`
	Recent   float64 `json:"recent"`
	Delta    float64 `json:"delta"` // fractional change, sign per metric direction
	Tripped  bool    `json:"tripped"`
}

// #endregion check

// #region report
// Report is the detector's verdict for one (context, arm).
type Report struct {
	Degraded         bool    `json:"degraded"`
	InsufficientData bool    `json:"insufficient_data"`
	Checks           []Check `json:"checks"`
}

// TrippedNames lists the checks that exceeded their thresholds.
func (r Report) TrippedNames() []string {
	var names []string
	for _, c := range r.Checks {
		if c.Tripped {
			names = append(names, c.Name)
		}
	}
	return names
}

// #endregion report

// #region supervisor-config
// SupervisorConfig holds replacement-eligibility knobs.
type SupervisorConfig struct {
	MinVisits          int           `yaml:"min_visits"`           // replacement must have this many outcomes
	ConfidenceHalfLife time.Duration `yaml:"confidence_half_life"` // decay for confidence ranking
}

// DefaultSupervisorConfig returns the standard eligibility settings.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		MinVisits:          5,
		ConfidenceHalfLife: 7 * 24 * time.Hour,
	}
}

// #endregion supervisor-config

// #region event
// Event is one immutable rollback record. Never mutated after creation.
type Event struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Agent     string             `json:"agent"`
	TaskType  string             `json:"task_type"`
	FromArm   string             `json:"from_arm"`
	ToArm     string             `json:"to_arm"`
	Reason    string             `json:"reason"`
	Metrics   map[string]float64 `json:"metrics"`
}

// #endregion event
