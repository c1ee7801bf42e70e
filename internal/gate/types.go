package gate

// #region action
// Action enumerates what may happen to a learned preference.
type Action string

const (
	ActionAutoApply     Action = "auto_apply"
	ActionHumanApproval Action = "human_approval"
	ActionNoAction      Action = "no_action"
)

// #endregion action

// #region config
// Config holds the confidence and evidence thresholds for gate decisions.
type Config struct {
	AutoApplyConfidence float64 `yaml:"auto_apply_confidence"` // and visits ≥ AutoApplyVisits
	AutoApplyVisits     int     `yaml:"auto_apply_visits"`
	ApprovalConfidence  float64 `yaml:"approval_confidence"` // and visits ≥ ApprovalVisits
	ApprovalVisits      int     `yaml:"approval_visits"`
	MinVisits           int     `yaml:"min_visits"` // below this: insufficient data
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		AutoApplyConfidence: 0.9,
		AutoApplyVisits:     10,
		ApprovalConfidence:  0.7,
		ApprovalVisits:      5,
		MinVisits:           5,
	}
}

// #endregion config

// #region input
// Input describes the learned preference under review.
type Input struct {
	Confidence       float64 // [0,1] confidence in the candidate arm
	Visits           int     // evidence count behind the confidence
	IsCurrentDefault bool    // candidate is already the active default
}

// #endregion input

// #region decision
// Decision is the gate's verdict on whether the preference may be applied.
type Decision struct {
	Action Action
	Reason string
}

// #endregion decision
