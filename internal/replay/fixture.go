package replay

// #region imports
import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/variant-controller/internal/policy"
	"github.com/danielpatrickdp/variant-controller/internal/reward"
)

// #endregion imports

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string              `json:"description"`
	Policy      string              `json:"policy"`
	Agent       string              `json:"agent"`
	TaskType    string              `json:"task_type"`
	Arms        []string            `json:"arms"`
	Seed        int64               `json:"seed"`
	Weights     *FixtureWeights     `json:"weights,omitempty"`
	QLearner    *FixtureQLearner    `json:"qlearner,omitempty"`
	UCB1        *FixtureUCB1        `json:"ucb1,omitempty"`
	LinUCB      *FixtureLinUCB      `json:"linucb,omitempty"`
	Steps       []FixtureStep       `json:"steps"`
	Expected    *FixtureExpectation `json:"expected,omitempty"`
}

// FixtureWeights mirrors reward.Weights with JSON tags.
type FixtureWeights struct {
	Success      float64 `json:"success"`
	Quality      float64 `json:"quality"`
	Speed        float64 `json:"speed"`
	ErrorPenalty float64 `json:"error_penalty"`
}

// FixtureQLearner mirrors policy.QLearnerConfig with JSON tags.
type FixtureQLearner struct {
	Alpha   float64 `json:"alpha"`
	Epsilon float64 `json:"epsilon"`
}

// FixtureUCB1 mirrors policy.UCB1Config with JSON tags.
type FixtureUCB1 struct {
	C          float64 `json:"c"`
	HistoryCap int     `json:"history_cap"`
}

// FixtureLinUCB mirrors policy.LinUCBConfig with JSON tags.
type FixtureLinUCB struct {
	Alpha float64 `json:"alpha"`
}

// FixtureOutcome mirrors reward.Outcome with JSON tags.
type FixtureOutcome struct {
	Success    bool     `json:"success"`
	Quality    *float64 `json:"quality,omitempty"`
	Duration   *float64 `json:"duration,omitempty"`
	Errors     int      `json:"errors"`
	Complexity string   `json:"complexity,omitempty"`
}

// FixtureStep mirrors Step with JSON tags.
type FixtureStep struct {
	Request   string                    `json:"request"`
	FilePaths []string                  `json:"file_paths,omitempty"`
	Outcomes  map[string]FixtureOutcome `json:"outcomes"`
}

// FixtureExpectation captures aggregate expectations for a replay run.
type FixtureExpectation struct {
	MinTotalReward   *float64 `json:"min_total_reward,omitempty"`
	DominantArm      string   `json:"dominant_arm,omitempty"`
	MinDominantShare float64  `json:"min_dominant_share,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Arms) == 0 {
		return nil, fmt.Errorf("fixture %s: no arms", path)
	}
	if len(f.Steps) == 0 {
		return nil, fmt.Errorf("fixture %s: no steps", path)
	}
	return &f, nil
}

// ToRunConfig converts fixture settings to a RunConfig, layering fixture
// overrides on the defaults.
func (f *Fixture) ToRunConfig() RunConfig {
	cfg := DefaultRunConfig()
	if f.Policy != "" {
		cfg.Policy = f.Policy
	}
	if f.Agent != "" {
		cfg.Agent = f.Agent
	}
	if f.TaskType != "" {
		cfg.TaskType = f.TaskType
	}
	cfg.Arms = f.Arms
	cfg.Seed = f.Seed
	if f.Weights != nil {
		cfg.Weights = reward.Weights{
			Success:      f.Weights.Success,
			Quality:      f.Weights.Quality,
			Speed:        f.Weights.Speed,
			ErrorPenalty: f.Weights.ErrorPenalty,
		}
	}
	if f.QLearner != nil {
		cfg.QLearner = policy.QLearnerConfig{Alpha: f.QLearner.Alpha, Epsilon: f.QLearner.Epsilon}
	}
	if f.UCB1 != nil {
		cfg.UCB1 = policy.UCB1Config{C: f.UCB1.C, HistoryCap: f.UCB1.HistoryCap}
	}
	if f.LinUCB != nil {
		cfg.LinUCB = policy.LinUCBConfig{Alpha: f.LinUCB.Alpha}
	}
	return cfg
}

// ToSteps converts the fixture's steps to domain steps.
func (f *Fixture) ToSteps() []Step {
	steps := make([]Step, 0, len(f.Steps))
	for _, fs := range f.Steps {
		outcomes := make(map[string]reward.Outcome, len(fs.Outcomes))
		for arm, fo := range fs.Outcomes {
			outcomes[arm] = reward.Outcome{
				Success:    fo.Success,
				Quality:    fo.Quality,
				Duration:   fo.Duration,
				Errors:     fo.Errors,
				Complexity: reward.Complexity(fo.Complexity),
			}
		}
		steps = append(steps, Step{
			Request:   fs.Request,
			FilePaths: fs.FilePaths,
			Outcomes:  outcomes,
		})
	}
	return steps
}

// Verify checks a run's summary against the fixture's expectations.
func (f *Fixture) Verify(s Summary) error {
	if f.Expected == nil {
		return nil
	}
	if f.Expected.MinTotalReward != nil && s.TotalReward < *f.Expected.MinTotalReward {
		return fmt.Errorf("total reward %.3f below expected %.3f", s.TotalReward, *f.Expected.MinTotalReward)
	}
	if f.Expected.DominantArm != "" && s.Steps > 0 {
		share := float64(s.Pulls[f.Expected.DominantArm]) / float64(s.Steps)
		if share < f.Expected.MinDominantShare {
			return fmt.Errorf("arm %s pulled %.0f%% of steps, expected at least %.0f%%",
				f.Expected.DominantArm, share*100, f.Expected.MinDominantShare*100)
		}
	}
	return nil
}

// #endregion fixture-loader
