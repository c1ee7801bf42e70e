// Package controller wires classification, policy selection, reward
// computation, outcome recording, and the safety review into one
// invocation loop. Task execution itself stays outside: the caller runs
// the task with the selected variant and reports what it observed.
package controller

// #region imports
import (
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/variant-controller/internal/classify"
	"github.com/danielpatrickdp/variant-controller/internal/config"
	"github.com/danielpatrickdp/variant-controller/internal/gate"
	"github.com/danielpatrickdp/variant-controller/internal/outcome"
	"github.com/danielpatrickdp/variant-controller/internal/policy"
	"github.com/danielpatrickdp/variant-controller/internal/reward"
	"github.com/danielpatrickdp/variant-controller/internal/rollback"
	"github.com/danielpatrickdp/variant-controller/internal/store"
)

// #endregion imports

// #region types

// Task is one unit of work needing a variant decision.
type Task struct {
	Agent     string
	Request   string
	FilePaths []string
}

// Decision is the controller's verdict for one task.
type Decision struct {
	TaskType   string
	Confidence float64 // classifier confidence in TaskType
	Selection  policy.Selection
	Forced     bool // a rollback override bypassed the policy
}

// #endregion types

// #region candidate-source

// candidateSource joins the variant registry and the outcome recorder into
// the supervisor's view of replacement candidates.
type candidateSource struct {
	registry *outcome.Registry
	recorder *outcome.Recorder
}

func (s *candidateSource) ListArms(agent string) ([]string, error) {
	return s.registry.ListArms(agent)
}

func (s *candidateSource) Confidence(agent, taskType, arm string, halfLife time.Duration) (float64, int, error) {
	return s.recorder.Confidence(agent, taskType, arm, halfLife)
}

// #endregion candidate-source

// #region controller

// Controller is the top-level coordinator. One instance serves all agents.
type Controller struct {
	cfg        config.Config
	classifier *classify.Classifier
	calc       *reward.Calculator
	db         *sql.DB
	registry   *outcome.Registry
	recorder   *outcome.Recorder
	gate       *gate.Gate
	detector   *rollback.Detector
	supervisor *rollback.Supervisor
	log        *zap.Logger

	mu          sync.Mutex
	qlearner    *policy.QLearner         // shared across contexts
	bandits     map[string]policy.Policy // agent:task_type → instance
	sinceReview map[string]int           // agent:task_type:arm → outcomes since review
	rng         *rand.Rand
}

// New opens the controller's storage and wires every component.
// rng may be nil (seeded from the clock); logger may be nil.
func New(cfg config.Config, rng *rand.Rand, logger *zap.Logger) (*Controller, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	if err := os.MkdirAll(cfg.Paths.SnapshotPath(""), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Paths.DatabasePath()), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := outcome.Open(cfg.Paths.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open outcome db: %w", err)
	}
	recorder, err := outcome.NewRecorder(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	registry, err := outcome.NewRegistry(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	supervisor := rollback.NewSupervisor(
		cfg.Supervisor.Materialize(),
		&candidateSource{registry: registry, recorder: recorder},
		rollback.NewEventLog(cfg.Paths.RollbackLogPath()),
		logger,
	)

	return &Controller{
		cfg:         cfg,
		classifier:  classify.New(),
		calc:        reward.NewCalculator(cfg.Reward),
		db:          db,
		registry:    registry,
		recorder:    recorder,
		gate:        gate.NewGate(cfg.Gate),
		detector:    rollback.NewDetector(cfg.Detector),
		supervisor:  supervisor,
		log:         logger,
		bandits:     make(map[string]policy.Policy),
		sinceReview: make(map[string]int),
		rng:         rng,
	}, nil
}

// Close releases the underlying database.
func (c *Controller) Close() error {
	return c.db.Close()
}

// RegisterVariant makes an arm selectable for an agent. Idempotent.
func (c *Controller) RegisterVariant(agent, arm string) error {
	return c.registry.RegisterArm(agent, arm)
}

// #endregion controller

// #region policy-factory

// policyFor returns the selection policy serving (agent, taskType). The
// tabular learner is one shared instance; bandits are created per scope,
// each with its own snapshot log.
func (c *Controller) policyFor(agent, taskType string) policy.Policy {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.Policy == "qlearner" {
		if c.qlearner == nil {
			snap := store.NewFileStore(c.cfg.Paths.SnapshotPath("qtable.json"))
			c.qlearner = policy.NewQLearner(snap, c.cfg.QLearner, c.rng, c.log)
		}
		return c.qlearner
	}

	scope := agent + ":" + taskType
	if p, ok := c.bandits[scope]; ok {
		return p
	}

	name := fmt.Sprintf("%s-%s-%s.jsonl", c.cfg.Policy, agent, taskType)
	snap := store.NewLogStore(c.cfg.Paths.SnapshotPath(name))

	var p policy.Policy
	switch c.cfg.Policy {
	case "ucb1":
		p = policy.NewUCB1(snap, c.cfg.UCB1, c.log)
	case "thompson":
		p = policy.NewThompson(snap, c.rng, c.log)
	case "linucb":
		p = policy.NewLinUCB(snap, c.cfg.LinUCB, c.log)
	default:
		// Validated at config load; fall back rather than panic.
		p = policy.NewUCB1(snap, c.cfg.UCB1, c.log)
	}
	c.bandits[scope] = p
	return p
}

// #endregion policy-factory

// #region decide

// Decide classifies the task and selects a variant for it. An active
// rollback override short-circuits the policy.
func (c *Controller) Decide(task Task) (Decision, error) {
	class := c.classifier.ClassifyWithConfidence(task.Request, task.FilePaths)

	arms, err := c.registry.ListArms(task.Agent)
	if err != nil {
		return Decision{}, fmt.Errorf("list variants: %w", err)
	}
	if len(arms) == 0 {
		return Decision{}, fmt.Errorf("agent %s has no registered variants", task.Agent)
	}

	if arm, ok := c.supervisor.Preferred(task.Agent, class.Label); ok && contains(arms, arm) {
		c.log.Info("rollback override in effect",
			zap.String("agent", task.Agent),
			zap.String("task_type", class.Label),
			zap.String("arm", arm),
		)
		return Decision{
			TaskType:   class.Label,
			Confidence: class.Confidence,
			Selection:  policy.Selection{Arm: arm},
			Forced:     true,
		}, nil
	}

	ctx := policy.Context{
		Agent:     task.Agent,
		TaskType:  class.Label,
		Request:   task.Request,
		FilePaths: task.FilePaths,
	}
	sel, err := c.policyFor(task.Agent, class.Label).Select(ctx, arms)
	if err != nil {
		return Decision{}, fmt.Errorf("select variant: %w", err)
	}

	c.log.Debug("variant selected",
		zap.String("agent", task.Agent),
		zap.String("task_type", class.Label),
		zap.String("arm", sel.Arm),
		zap.Bool("exploration", sel.Exploration),
	)
	return Decision{TaskType: class.Label, Confidence: class.Confidence, Selection: sel}, nil
}

// #endregion decide

// #region report

// Report feeds an executed task's observed outcome back: computes the
// reward, updates the policy, persists the outcome row, and periodically
// runs the degradation review for the reported arm. Returns the reward.
func (c *Controller) Report(task Task, d Decision, obs reward.Outcome) (float64, error) {
	r := c.calc.Calculate(obs)

	ctx := policy.Context{
		Agent:     task.Agent,
		TaskType:  d.TaskType,
		Request:   task.Request,
		FilePaths: task.FilePaths,
	}
	if err := c.policyFor(task.Agent, d.TaskType).Update(ctx, d.Selection.Arm, r); err != nil {
		return r, fmt.Errorf("update policy: %w", err)
	}

	rec := outcome.Record{
		Agent:       task.Agent,
		TaskType:    d.TaskType,
		Arm:         d.Selection.Arm,
		Reward:      r,
		Success:     obs.Success,
		Duration:    obs.Duration,
		Errors:      obs.Errors,
		Exploration: d.Selection.Exploration,
		CreatedAt:   time.Now().UTC(),
	}
	if err := c.recorder.Record(rec); err != nil {
		return r, fmt.Errorf("record outcome: %w", err)
	}

	if err := c.maybeReview(task.Agent, d.TaskType, d.Selection.Arm); err != nil {
		// Review failure must not fail the report path.
		c.log.Warn("safety review failed", zap.Error(err))
	}
	return r, nil
}

// maybeReview runs degradation detection every ReviewEvery outcomes per
// (agent, task_type, arm).
func (c *Controller) maybeReview(agent, taskType, arm string) error {
	key := agent + ":" + taskType + ":" + arm

	c.mu.Lock()
	c.sinceReview[key]++
	due := c.sinceReview[key] >= c.cfg.ReviewEvery
	if due {
		c.sinceReview[key] = 0
	}
	c.mu.Unlock()
	if !due {
		return nil
	}

	baseline, err := c.recorder.Baseline(agent, taskType, arm)
	if err != nil {
		return fmt.Errorf("baseline query: %w", err)
	}
	recent, err := c.recorder.Recent(agent, taskType, arm, c.cfg.Detector.Window)
	if err != nil {
		return fmt.Errorf("recent query: %w", err)
	}

	report := c.detector.Evaluate(baseline, recent)
	if report.InsufficientData {
		return nil
	}
	_, err = c.supervisor.Review(agent, taskType, arm, report)
	return err
}

// #endregion report

// #region inspection

// Promotion asks the safety gate whether an arm's learned preference may be
// applied for (agent, taskType). isCurrentDefault marks the arm already
// serving as the active default.
func (c *Controller) Promotion(agent, taskType, arm string, isCurrentDefault bool) (gate.Decision, error) {
	confidence, visits, err := c.recorder.Confidence(agent, taskType, arm, c.cfg.Supervisor.Materialize().ConfidenceHalfLife)
	if err != nil {
		return gate.Decision{}, fmt.Errorf("confidence query: %w", err)
	}
	return c.gate.Evaluate(gate.Input{
		Confidence:       confidence,
		Visits:           visits,
		IsCurrentDefault: isCurrentDefault,
	}), nil
}

// Statistics returns the learned state of the policy serving (agent,
// taskType).
func (c *Controller) Statistics(agent, taskType string) policy.Statistics {
	return c.policyFor(agent, taskType).Statistics()
}

// RollbackHistory returns every rollback event in append order.
func (c *Controller) RollbackHistory() ([]rollback.Event, error) {
	return rollback.NewEventLog(c.cfg.Paths.RollbackLogPath()).List()
}

// ClearOverride lifts a rollback override for (agent, taskType).
func (c *Controller) ClearOverride(agent, taskType string) {
	c.supervisor.ClearPreference(agent, taskType)
}

// #endregion inspection

// #region helpers

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// #endregion helpers
