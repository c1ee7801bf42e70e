// Package gate decides whether a learned arm preference may be applied
// automatically, needs a human sign-off, or stays untouched. Stateless:
// a pure decision table over (confidence, visit count).
package gate

import "fmt"

// #region gate
// Gate evaluates promotion decisions against configured thresholds.
type Gate struct {
	config Config
}

// NewGate creates a gate with the given configuration.
func NewGate(config Config) *Gate {
	return &Gate{config: config}
}

// Evaluate walks the decision table top-down:
//
//	confidence ≥ auto threshold and visits ≥ auto floor → auto_apply,
//	  unless the candidate is already the active default → no_action
//	confidence ≥ approval threshold and visits ≥ approval floor → human_approval
//	visits below the evidence floor → no_action, insufficient_data
//	otherwise → no_action, confidence too low
func (g *Gate) Evaluate(in Input) Decision {
	if in.Confidence >= g.config.AutoApplyConfidence && in.Visits >= g.config.AutoApplyVisits {
		if in.IsCurrentDefault {
			return Decision{
				Action: ActionNoAction,
				Reason: "candidate is already the active default",
			}
		}
		return Decision{
			Action: ActionAutoApply,
			Reason: fmt.Sprintf("confidence %.2f with %d visits clears auto-apply threshold", in.Confidence, in.Visits),
		}
	}

	if in.Confidence >= g.config.ApprovalConfidence && in.Visits >= g.config.ApprovalVisits {
		return Decision{
			Action: ActionHumanApproval,
			Reason: fmt.Sprintf("confidence %.2f with %d visits needs human sign-off", in.Confidence, in.Visits),
		}
	}

	if in.Visits < g.config.MinVisits {
		return Decision{Action: ActionNoAction, Reason: "insufficient_data"}
	}

	return Decision{Action: ActionNoAction, Reason: "confidence too low"}
}

// #endregion gate
