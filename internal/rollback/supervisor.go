package rollback

// #region imports
import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// #endregion imports

// #region candidate-source

// CandidateSource lists an agent's known arms and scores how much evidence
// backs each one. Satisfied by the outcome registry/recorder pair.
type CandidateSource interface {
	ListArms(agent string) ([]string, error)
	Confidence(agent, taskType, arm string, halfLife time.Duration) (confidence float64, visits int, err error)
}

// #endregion candidate-source

// #region supervisor

// Supervisor reacts to a degradation report by selecting a safe replacement
// arm and recording an immutable rollback event. The degraded arm's learned
// statistics are never touched; future evidence may show recovery.
type Supervisor struct {
	mu        sync.Mutex
	config    SupervisorConfig
	source    CandidateSource
	journal   *EventLog
	preferred map[string]string // agent:task_type → replacement arm
	log       *zap.Logger
}

// NewSupervisor creates a supervisor. logger may be nil.
func NewSupervisor(config SupervisorConfig, source CandidateSource, journal *EventLog, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		config:    config,
		source:    source,
		journal:   journal,
		preferred: make(map[string]string),
		log:       logger,
	}
}

// #endregion supervisor

// #region review

// Review inspects a detector report for (agent, task_type, currentArm).
// On degradation it picks the highest-confidence eligible replacement,
// appends a rollback event, and records the preference override. Returns
// the emitted event, or nil when nothing was done.
func (s *Supervisor) Review(agent, taskType, currentArm string, report Report) (*Event, error) {
	if !report.Degraded {
		return nil, nil
	}

	arms, err := s.source.ListArms(agent)
	if err != nil {
		return nil, fmt.Errorf("list candidate arms: %w", err)
	}

	best := ""
	bestConfidence := -1.0
	for _, arm := range arms {
		if arm == currentArm {
			continue
		}
		confidence, visits, err := s.source.Confidence(agent, taskType, arm, s.config.ConfidenceHalfLife)
		if err != nil {
			return nil, fmt.Errorf("score candidate %s: %w", arm, err)
		}
		if visits < s.config.MinVisits {
			continue
		}
		if confidence > bestConfidence {
			best = arm
			bestConfidence = confidence
		}
	}

	if best == "" {
		s.log.Info("degradation confirmed but no eligible replacement",
			zap.String("agent", agent),
			zap.String("task_type", taskType),
			zap.String("arm", currentArm),
		)
		return nil, nil
	}

	ev := Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Agent:     agent,
		TaskType:  taskType,
		FromArm:   currentArm,
		ToArm:     best,
		Reason:    buildReason(currentArm, best, report),
		Metrics:   reportMetrics(report),
	}
	if err := s.journal.Append(ev); err != nil {
		return nil, fmt.Errorf("journal rollback: %w", err)
	}

	s.mu.Lock()
	s.preferred[prefKey(agent, taskType)] = best
	s.mu.Unlock()

	s.log.Warn("rolled back degraded arm",
		zap.String("agent", agent),
		zap.String("task_type", taskType),
		zap.String("from", currentArm),
		zap.String("to", best),
		zap.Float64("replacement_confidence", bestConfidence),
	)
	return &ev, nil
}

// #endregion review

// #region preferred

// Preferred reports the replacement arm the selection layer should favor
// for (agent, task_type), if a rollback is in effect.
func (s *Supervisor) Preferred(agent, taskType string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	arm, ok := s.preferred[prefKey(agent, taskType)]
	return arm, ok
}

// ClearPreference lifts a rollback override, e.g. after a human re-promotes
// the arm or the detector reports recovery.
func (s *Supervisor) ClearPreference(agent, taskType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.preferred, prefKey(agent, taskType))
}

// #endregion preferred

// #region helpers

func prefKey(agent, taskType string) string {
	return agent + ":" + taskType
}

// buildReason names the thresholds that tripped, human-readable.
func buildReason(from, to string, report Report) string {
	tripped := report.TrippedNames()
	return fmt.Sprintf("degradation on %s (%s); replaced with %s",
		from, strings.Join(tripped, ", "), to)
}

// reportMetrics flattens the report's checks into the event's raw metrics.
func reportMetrics(report Report) map[string]float64 {
	m := make(map[string]float64, 3*len(report.Checks))
	for _, c := range report.Checks {
		m[c.Name+"_baseline"] = c.Baseline
		m[c.Name+"_recent"] = c.Recent
		m[c.Name+"_delta"] = c.Delta
	}
	return m
}

// #endregion helpers
