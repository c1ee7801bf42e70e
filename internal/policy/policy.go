// Package policy implements the four competing arm-selection policies:
// tabular Q-learning, UCB1, Thompson Sampling, and a contextual linear
// bandit (LinUCB). All four share the Select/Update/Statistics contract.
//
// The tabular learner keys its state by agent:task_type:variant and serves
// every context from one instance. The three bandits are instance-scoped:
// the caller holds one instance per (agent, task_type) pair, which keeps
// each snapshot a flat per-arm record.
package policy

// #region imports
import (
	"errors"
	"fmt"
	"time"
)

// #endregion imports

// #region errors

// ErrNoCandidates is returned by Select when given an empty candidate list.
// This is a caller bug, never retried.
var ErrNoCandidates = errors.New("policy: empty candidate list")

// #endregion errors

// #region context

// Context identifies what a selection is for. Agent and TaskType form the
// state key for the flat policies; the remaining fields carry the raw
// request data the contextual policy derives its feature vector from.
type Context struct {
	Agent    string
	TaskType string

	// Contextual-policy inputs. Ignored by the flat policies.
	Request   string
	FilePaths []string
	At        time.Time // zero value means "now" at feature-build time
}

// Key returns the agent:task_type:variant state-action key.
func (c Context) Key(arm string) string {
	return fmt.Sprintf("%s:%s:%s", c.Agent, c.TaskType, arm)
}

// #endregion context

// #region selection

// MetaKind tags the policy-specific selection metadata.
type MetaKind string

const (
	MetaEpsilonGreedy  MetaKind = "epsilon_greedy"
	MetaOptimisticInit MetaKind = "optimistic_init"
	MetaUCB1           MetaKind = "ucb1"
	MetaThompson       MetaKind = "thompson"
	MetaLinUCB         MetaKind = "linucb"
)

// Meta is the tagged selection metadata. Only the fields matching Kind are set.
type Meta struct {
	Kind MetaKind

	// epsilon_greedy
	Epsilon float64
	QValues map[string]float64

	// ucb1 (also optimistic_init, where the untried arm maps to +Inf)
	Bounds map[string]float64

	// thompson
	Samples  map[string]float64
	Expected float64

	// linucb
	Features []float64
	Scores   map[string]float64
}

// Selection is the result of a Select call.
type Selection struct {
	Arm         string
	Score       float64
	Exploration bool
	Meta        Meta
}

// #endregion selection

// #region policy-interface

// Policy is the shared contract of all four selection policies.
type Policy interface {
	// Name identifies the policy in logs and snapshots.
	Name() string
	// Select picks one arm among candidates for the given context.
	Select(ctx Context, candidates []string) (Selection, error)
	// Update feeds an observed reward back for a previously selected arm.
	Update(ctx Context, arm string, reward float64) error
	// Statistics returns an aggregate read-only view of learned state.
	Statistics() Statistics
}

// #endregion policy-interface

// #region statistics

// ArmView is one arm's (or state-action key's) aggregate statistics.
type ArmView struct {
	Pulls       int       `json:"pulls"`
	Value       float64   `json:"value"` // Q-value, average reward, or posterior mean
	LastUpdated time.Time `json:"last_updated"`
}

// Statistics is the aggregate view returned by every policy.
type Statistics struct {
	Policy     string             `json:"policy"`
	TotalPulls int                `json:"total_pulls"`
	Arms       map[string]ArmView `json:"arms"`
}

// #endregion statistics
