// Package replay re-runs recorded task sequences through a fresh selection
// policy, entirely in memory. Each step records the outcome every variant
// would have produced, so the policy's own choices can be rewarded
// deterministically and compared against expectations.
package replay

// #region imports
import (
	"fmt"
	"math/rand"

	"github.com/danielpatrickdp/variant-controller/internal/policy"
	"github.com/danielpatrickdp/variant-controller/internal/reward"
	"github.com/danielpatrickdp/variant-controller/internal/store"
)

// #endregion imports

// #region types

// Step is one recorded turn: the request context plus the outcome each
// candidate arm was observed (or simulated) to produce.
type Step struct {
	Request   string
	FilePaths []string
	Outcomes  map[string]reward.Outcome
}

// RunConfig bundles everything a replay run needs. Seed makes the run
// reproducible.
type RunConfig struct {
	Policy   string // qlearner | ucb1 | thompson | linucb
	Agent    string
	TaskType string
	Arms     []string
	Seed     int64
	Weights  reward.Weights
	QLearner policy.QLearnerConfig
	UCB1     policy.UCB1Config
	LinUCB   policy.LinUCBConfig
}

// DefaultRunConfig returns a run config with every tunable at its default.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Policy:   "ucb1",
		Agent:    "replay",
		TaskType: "general",
		Weights:  reward.DefaultWeights(),
		QLearner: policy.DefaultQLearnerConfig(),
		UCB1:     policy.DefaultUCB1Config(),
		LinUCB:   policy.DefaultLinUCBConfig(),
	}
}

// StepResult captures one replayed selection.
type StepResult struct {
	Step        int
	Arm         string
	Reward      float64
	Exploration bool
}

// Summary aggregates a replay run.
type Summary struct {
	Steps        int
	TotalReward  float64
	Explorations int
	Pulls        map[string]int
}

// #endregion types

// #region run

// Run replays steps through a fresh policy instance backed by an in-memory
// snapshot store. Every step must record an outcome for whichever arm the
// policy picks.
func Run(cfg RunConfig, steps []Step) ([]StepResult, error) {
	if len(cfg.Arms) == 0 {
		return nil, fmt.Errorf("replay: no arms configured")
	}

	p, err := buildPolicy(cfg)
	if err != nil {
		return nil, err
	}
	calc := reward.NewCalculator(cfg.Weights)

	results := make([]StepResult, 0, len(steps))
	for i, step := range steps {
		ctx := policy.Context{
			Agent:     cfg.Agent,
			TaskType:  cfg.TaskType,
			Request:   step.Request,
			FilePaths: step.FilePaths,
		}
		sel, err := p.Select(ctx, cfg.Arms)
		if err != nil {
			return nil, fmt.Errorf("replay step %d: %w", i, err)
		}

		obs, ok := step.Outcomes[sel.Arm]
		if !ok {
			return nil, fmt.Errorf("replay step %d: no recorded outcome for arm %s", i, sel.Arm)
		}
		r := calc.Calculate(obs)
		if err := p.Update(ctx, sel.Arm, r); err != nil {
			return nil, fmt.Errorf("replay step %d: %w", i, err)
		}

		results = append(results, StepResult{
			Step:        i,
			Arm:         sel.Arm,
			Reward:      r,
			Exploration: sel.Exploration,
		})
	}
	return results, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []StepResult) Summary {
	s := Summary{Steps: len(results), Pulls: make(map[string]int)}
	for _, r := range results {
		s.TotalReward += r.Reward
		s.Pulls[r.Arm]++
		if r.Exploration {
			s.Explorations++
		}
	}
	return s
}

// #endregion run

// #region policy-factory

func buildPolicy(cfg RunConfig) (policy.Policy, error) {
	snap := store.NewMemStore()
	rng := rand.New(rand.NewSource(cfg.Seed))

	switch cfg.Policy {
	case "qlearner":
		return policy.NewQLearner(snap, cfg.QLearner, rng, nil), nil
	case "ucb1":
		return policy.NewUCB1(snap, cfg.UCB1, nil), nil
	case "thompson":
		return policy.NewThompson(snap, rng, nil), nil
	case "linucb":
		return policy.NewLinUCB(snap, cfg.LinUCB, nil), nil
	default:
		return nil, fmt.Errorf("replay: unknown policy %q", cfg.Policy)
	}
}

// #endregion policy-factory
