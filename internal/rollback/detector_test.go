package rollback

import (
	"testing"

	"github.com/danielpatrickdp/variant-controller/internal/outcome"
)

func window(n int, success bool, reward float64, errors int) []outcome.Record {
	out := make([]outcome.Record, n)
	for i := range out {
		out[i] = outcome.Record{Success: success, Reward: reward, Errors: errors}
	}
	return out
}

func healthyBaseline() outcome.Baseline {
	return outcome.Baseline{Samples: 50, SuccessRate: 0.9, AvgReward: 0.6, ErrorRate: 0.5}
}

func TestDetectorInsufficientBaseline(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	base := healthyBaseline()
	base.Samples = 10 // below window

	r := d.Evaluate(base, window(20, false, -0.5, 5))
	if !r.InsufficientData {
		t.Fatal("expected insufficient_data with thin baseline")
	}
	if r.Degraded {
		t.Fatal("insufficient data must never flag degradation")
	}
}

func TestDetectorInsufficientRecentWindow(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	r := d.Evaluate(healthyBaseline(), window(5, false, -0.5, 5)) // below window/2
	if !r.InsufficientData || r.Degraded {
		t.Fatalf("expected fail-safe on thin recent window, got %+v", r)
	}
}

func TestDetectorHealthy(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	r := d.Evaluate(healthyBaseline(), window(20, true, 0.6, 0))
	if r.Degraded {
		t.Fatalf("steady performance flagged as degraded: %+v", r.Checks)
	}
	if r.InsufficientData {
		t.Fatal("evidence was sufficient")
	}
	if len(r.Checks) != 3 {
		t.Fatalf("expected 3 checks, got %d", len(r.Checks))
	}
}

func TestDetectorFlagsSuccessDrop(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	// Success rate 0.9 → 0.5 is a ~44% drop, well past 10%.
	recent := append(window(10, true, 0.6, 0), window(10, false, 0.6, 0)...)
	r := d.Evaluate(healthyBaseline(), recent)
	if !r.Degraded {
		t.Fatalf("expected degradation, got %+v", r.Checks)
	}
	found := false
	for _, name := range r.TrippedNames() {
		if name == "success_rate_drop" {
			found = true
		}
	}
	if !found {
		t.Fatalf("success_rate_drop should trip, tripped: %v", r.TrippedNames())
	}
}

func TestDetectorFlagsRewardDrop(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	// Reward 0.6 → 0.3 is a 50% drop; keep success and errors steady.
	base := outcome.Baseline{Samples: 50, SuccessRate: 0.9, AvgReward: 0.6, ErrorRate: 0}
	recent := append(window(18, true, 0.3, 0), window(2, false, 0.3, 0)...)
	r := d.Evaluate(base, recent)
	if !r.Degraded {
		t.Fatalf("expected degradation, got %+v", r.Checks)
	}
}

func TestDetectorFlagsErrorRise(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	// Errors 0.5 → 2.0 per task is a 300% rise.
	recent := append(window(18, true, 0.6, 2), window(2, false, 0.6, 2)...)
	r := d.Evaluate(healthyBaseline(), recent)
	tripped := r.TrippedNames()
	found := false
	for _, name := range tripped {
		if name == "error_rate_rise" {
			found = true
		}
	}
	if !found {
		t.Fatalf("error_rate_rise should trip, tripped: %v", tripped)
	}
}

func TestDetectorZeroErrorBaselineRise(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	base := outcome.Baseline{Samples: 50, SuccessRate: 0.9, AvgReward: 0.6, ErrorRate: 0}
	recent := window(20, true, 0.6, 1)

	r := d.Evaluate(base, recent)
	// Zero baseline with new errors: reported as a full rise, no div-by-zero.
	for _, c := range r.Checks {
		if c.Name == "error_rate_rise" {
			if !c.Tripped {
				t.Fatal("new errors against a clean baseline should trip")
			}
			if c.Delta != 1.0 {
				t.Fatalf("expected delta 1.0, got %f", c.Delta)
			}
		}
	}
}

func TestDetectorImprovementNeverTrips(t *testing.T) {
	d := NewDetector(DefaultDetectorConfig())
	base := outcome.Baseline{Samples: 50, SuccessRate: 0.5, AvgReward: 0.1, ErrorRate: 2}
	r := d.Evaluate(base, window(20, true, 0.9, 0))
	if r.Degraded {
		t.Fatalf("improvement flagged as degradation: %+v", r.Checks)
	}
}
