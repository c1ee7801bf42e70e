package classify

import (
	"testing"
)

func TestClassifyDebugging(t *testing.T) {
	c := New()
	res := c.ClassifyWithConfidence(
		"fix the crash when the parser panics on empty input, stack trace attached",
		[]string{"parser.go", "crash.log"},
	)
	if res.Label != "debugging" {
		t.Fatalf("expected debugging, got %s (scores %v)", res.Label, res.Scores)
	}
	if res.Confidence <= 0 || res.Confidence > 1 {
		t.Fatalf("confidence out of range: %f", res.Confidence)
	}
}

func TestClassifyTestingViaFilePatterns(t *testing.T) {
	c := New()
	res := c.ClassifyWithConfidence(
		"improve coverage with a table-driven unit test and a mock store",
		[]string{"store_test.go", "tests/fixtures.json"},
	)
	if res.Label != "testing" {
		t.Fatalf("expected testing, got %s (scores %v)", res.Label, res.Scores)
	}
}

func TestClassifyGeneralFallback(t *testing.T) {
	c := New()
	res := c.ClassifyWithConfidence("what is the weather like", nil)
	if res.Label != General {
		t.Fatalf("expected general fallback, got %s", res.Label)
	}
	if res.Confidence != 0 {
		t.Fatalf("fallback confidence must be 0, got %f", res.Confidence)
	}
}

func TestClassifyScoresAllLabels(t *testing.T) {
	c := New()
	res := c.ClassifyWithConfidence("fix the bug", nil)
	if len(res.Scores) < 7 {
		t.Fatalf("expected a score per built-in label, got %d", len(res.Scores))
	}
}

func TestClassifyKeywordCap(t *testing.T) {
	c := New()
	// Six debugging keywords, but hits are capped at three.
	spam := c.ClassifyWithConfidence("fix bug error crash panic broken", nil)
	capped := c.ClassifyWithConfidence("fix bug error", nil)
	if spam.Scores["debugging"] != capped.Scores["debugging"] {
		t.Fatalf("keyword hits should cap: %f vs %f",
			spam.Scores["debugging"], capped.Scores["debugging"])
	}
}

func TestClassifyPureFunction(t *testing.T) {
	c := New()
	first := c.ClassifyWithConfidence("refactor and simplify the store", []string{"store.go"})
	for i := 0; i < 10; i++ {
		again := c.ClassifyWithConfidence("refactor and simplify the store", []string{"store.go"})
		if again.Label != first.Label || again.Confidence != first.Confidence {
			t.Fatal("classification must be deterministic")
		}
	}
}

func TestRegisterNewLabel(t *testing.T) {
	c := New()
	err := c.Register("security", Rule{
		Keywords: []string{"vulnerability", "cve", "exploit", "sanitize"},
		Patterns: []string{`\.pem$`},
		Weight:   1.3,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	res := c.ClassifyWithConfidence("patch the vulnerability from the cve report", []string{"key.pem"})
	if res.Label != "security" {
		t.Fatalf("expected security, got %s (scores %v)", res.Label, res.Scores)
	}
}

func TestRegisterDuplicateRejected(t *testing.T) {
	c := New()
	if err := c.Register("debugging", Rule{Keywords: []string{"x"}, Weight: 1}); err == nil {
		t.Fatal("duplicate label must be rejected")
	}
}

func TestRegisterBadPatternRejected(t *testing.T) {
	c := New()
	if err := c.Register("broken", Rule{Patterns: []string{"("}, Weight: 1}); err == nil {
		t.Fatal("invalid regex must be rejected")
	}
}

func TestConfidenceNormalization(t *testing.T) {
	c := New()
	// Saturate the debugging rule: ≥3 keywords and ≥3 pattern families.
	res := c.ClassifyWithConfidence(
		"fix the bug, reproduce the crash, error is a regression",
		[]string{"run.log", "crash_dump", "core.123"},
	)
	if res.Label != "debugging" {
		t.Fatalf("expected debugging, got %s", res.Label)
	}
	if res.Confidence < 0.99 {
		t.Fatalf("saturated rule should reach confidence 1, got %f", res.Confidence)
	}
}
