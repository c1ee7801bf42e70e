package config

// #region imports
import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/variant-controller/internal/gate"
	"github.com/danielpatrickdp/variant-controller/internal/policy"
	"github.com/danielpatrickdp/variant-controller/internal/reward"
	"github.com/danielpatrickdp/variant-controller/internal/rollback"
)

// #endregion imports

// #region paths

// Paths locates the controller's on-disk state. Relative entries are
// resolved against DataDir.
type Paths struct {
	DataDir     string `yaml:"data_dir"`
	Database    string `yaml:"database"`     // sqlite outcomes + variant registry
	SnapshotDir string `yaml:"snapshot_dir"` // policy snapshots and snapshot logs
	RollbackLog string `yaml:"rollback_log"` // append-only rollback events
}

// Database returns the resolved sqlite path.
func (p Paths) DatabasePath() string { return p.resolve(p.Database) }

// SnapshotPath returns the resolved path for one policy snapshot file.
func (p Paths) SnapshotPath(name string) string {
	return p.resolve(filepath.Join(p.SnapshotDir, name))
}

// RollbackLogPath returns the resolved rollback journal path.
func (p Paths) RollbackLogPath() string { return p.resolve(p.RollbackLog) }

func (p Paths) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.DataDir, path)
}

// #endregion paths

// #region supervisor-settings

// SupervisorSettings is the YAML shape of the rollback supervisor's
// configuration. The half-life is expressed in hours because the YAML layer
// has no duration syntax.
type SupervisorSettings struct {
	MinVisits               int     `yaml:"min_visits"`
	ConfidenceHalfLifeHours float64 `yaml:"confidence_half_life_hours"`
}

// Materialize converts the settings into the supervisor's config type.
func (s SupervisorSettings) Materialize() rollback.SupervisorConfig {
	return rollback.SupervisorConfig{
		MinVisits:          s.MinVisits,
		ConfidenceHalfLife: time.Duration(s.ConfidenceHalfLifeHours * float64(time.Hour)),
	}
}

// #endregion supervisor-settings

// #region config

// Config bundles every tunable of the selection pipeline. Zero values are
// never used directly; Load layers file overrides on top of Default.
type Config struct {
	// Policy names the active selection policy:
	// qlearner | ucb1 | thompson | linucb.
	Policy string `yaml:"policy"`

	// ReviewEvery is the number of recorded outcomes between safety reviews
	// (degradation detection + rollback).
	ReviewEvery int `yaml:"review_every"`

	Paths      Paths                   `yaml:"paths"`
	QLearner   policy.QLearnerConfig   `yaml:"qlearner"`
	UCB1       policy.UCB1Config       `yaml:"ucb1"`
	LinUCB     policy.LinUCBConfig     `yaml:"linucb"`
	Reward     reward.Weights          `yaml:"reward"`
	Gate       gate.Config             `yaml:"gate"`
	Detector   rollback.DetectorConfig `yaml:"detector"`
	Supervisor SupervisorSettings      `yaml:"supervisor"`
}

// Default returns the full default configuration.
func Default() Config {
	return Config{
		Policy:      "qlearner",
		ReviewEvery: 10,
		Paths: Paths{
			DataDir:     ".variant-controller",
			Database:    "outcomes.db",
			SnapshotDir: "snapshots",
			RollbackLog: "rollbacks.jsonl",
		},
		QLearner: policy.DefaultQLearnerConfig(),
		UCB1:     policy.DefaultUCB1Config(),
		LinUCB:   policy.DefaultLinUCBConfig(),
		Reward:   reward.DefaultWeights(),
		Gate:     gate.DefaultConfig(),
		Detector: rollback.DefaultDetectorConfig(),
		Supervisor: SupervisorSettings{
			MinVisits:               5,
			ConfidenceHalfLifeHours: 7 * 24,
		},
	}
}

// #endregion config

// #region load

// Load reads a YAML file and overlays it on the defaults. A missing file is
// not an error: the defaults apply unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	switch c.Policy {
	case "qlearner", "ucb1", "thompson", "linucb":
	default:
		return fmt.Errorf("unknown policy %q", c.Policy)
	}
	if c.QLearner.Alpha <= 0 || c.QLearner.Alpha > 1 {
		return fmt.Errorf("qlearner alpha %.3f outside (0,1]", c.QLearner.Alpha)
	}
	if c.QLearner.Epsilon < 0 || c.QLearner.Epsilon > 1 {
		return fmt.Errorf("qlearner epsilon %.3f outside [0,1]", c.QLearner.Epsilon)
	}
	if c.UCB1.C <= 0 {
		return fmt.Errorf("ucb1 exploration constant must be positive, got %.3f", c.UCB1.C)
	}
	if c.LinUCB.Alpha <= 0 {
		return fmt.Errorf("linucb alpha must be positive, got %.3f", c.LinUCB.Alpha)
	}
	if c.ReviewEvery <= 0 {
		return fmt.Errorf("review_every must be positive, got %d", c.ReviewEvery)
	}
	if c.Detector.Window <= 0 {
		return fmt.Errorf("detector window must be positive, got %d", c.Detector.Window)
	}
	return nil
}

// #endregion load
