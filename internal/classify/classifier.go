// Package classify maps request text and touched file paths to a task-type
// label with a confidence score. Keyword and file-pattern heuristics only,
// no model call and no learned state.
package classify

// #region imports
import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// #endregion imports

// #region labels

// General is the fallback label when no rule scores above zero.
const General = "general"

// Rule scores one label: capped keyword hits plus capped file-pattern hits,
// each multiplied by the label weight.
type Rule struct {
	Keywords []string
	Patterns []string // file-path regexes
	Weight   float64

	compiled []*regexp.Regexp
}

// #endregion labels

// #region builtin-rules

// builtinRules covers the usual agent task families.
var builtinRules = map[string]Rule{
	"debugging": {
		Keywords: []string{
			"fix", "bug", "error", "crash", "panic", "broken", "fails",
			"failing", "regression", "stack trace", "reproduce", "flaky",
		},
		Patterns: []string{`\.log$`, `crash`, `core\.\d+$`},
		Weight:   1.2,
	},
	"refactoring": {
		Keywords: []string{
			"refactor", "rename", "restructure", "extract", "simplify",
			"clean up", "cleanup", "decouple", "dedupe", "reorganize",
		},
		Patterns: []string{},
		Weight:   1.0,
	},
	"testing": {
		Keywords: []string{
			"test", "coverage", "assert", "mock", "fixture", "unit test",
			"integration test", "regression test", "table-driven",
		},
		Patterns: []string{`_test\.go$`, `\.test\.[jt]s$`, `test_.*\.py$`, `/tests?/`},
		Weight:   1.1,
	},
	"documentation": {
		Keywords: []string{
			"document", "docs", "readme", "comment", "docstring", "changelog",
			"guide", "tutorial", "explain",
		},
		Patterns: []string{`\.md$`, `\.rst$`, `/docs?/`},
		Weight:   1.0,
	},
	"feature": {
		Keywords: []string{
			"add", "implement", "build", "create", "support", "new",
			"introduce", "feature", "endpoint",
		},
		Patterns: []string{},
		Weight:   0.9,
	},
	"review": {
		Keywords: []string{
			"review", "audit", "inspect", "critique", "feedback",
			"approve", "pull request", "diff",
		},
		Patterns: []string{`\.patch$`, `\.diff$`},
		Weight:   1.0,
	},
	"infra": {
		Keywords: []string{
			"deploy", "docker", "kubernetes", "pipeline", "ci", "cd",
			"terraform", "provision", "makefile", "build system",
		},
		Patterns: []string{`Dockerfile`, `\.ya?ml$`, `\.tf$`, `Makefile`, `\.github/`},
		Weight:   1.0,
	},
}

// #endregion builtin-rules

// #region caps

// Hit caps keep one spammy dimension from dominating the score.
const (
	keywordHitCap = 3
	patternHitCap = 3
)

// #endregion caps

// #region classifier

// Classifier scores request text against its rule table. Safe for
// concurrent use; rules may be registered at runtime.
type Classifier struct {
	mu     sync.RWMutex
	rules  map[string]Rule
	labels []string // registration order, for deterministic argmax ties
}

// New returns a classifier preloaded with the built-in rules.
func New() *Classifier {
	c := &Classifier{rules: make(map[string]Rule)}
	// Fixed order keeps tie-breaks stable across runs.
	for _, label := range []string{
		"debugging", "refactoring", "testing", "documentation",
		"feature", "review", "infra",
	} {
		rule := builtinRules[label]
		rule.compiled = compilePatterns(rule.Patterns)
		c.rules[label] = rule
		c.labels = append(c.labels, label)
	}
	return c
}

// Register adds a label at runtime. A duplicate label name is an input error.
func (c *Classifier) Register(label string, rule Rule) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.rules[label]; exists {
		return fmt.Errorf("classify: label %q already registered", label)
	}
	for _, p := range rule.Patterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("classify: bad pattern %q for %q: %w", p, label, err)
		}
	}
	rule.compiled = compilePatterns(rule.Patterns)
	c.rules[label] = rule
	c.labels = append(c.labels, label)
	return nil
}

// #endregion classifier

// #region classify

// Result is a full classification outcome.
type Result struct {
	Label      string
	Confidence float64 // winning score normalized by the label's max attainable score
	Scores     map[string]float64
}

// ClassifyWithConfidence scores every label and returns the argmax. With no
// positive score the result is the "general" label at confidence 0.
func (c *Classifier) ClassifyWithConfidence(text string, filePaths []string) Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	lower := strings.ToLower(text)
	scores := make(map[string]float64, len(c.rules))

	best := ""
	var bestScore float64
	for _, label := range c.labels {
		rule := c.rules[label]
		score := rule.score(lower, filePaths)
		scores[label] = score
		if score > bestScore {
			best = label
			bestScore = score
		}
	}

	if bestScore <= 0 {
		return Result{Label: General, Confidence: 0, Scores: scores}
	}

	return Result{
		Label:      best,
		Confidence: bestScore / c.rules[best].maxScore(),
		Scores:     scores,
	}
}

// #endregion classify

// #region scoring

// score counts keyword and pattern hits, caps each dimension, and applies
// the label weight.
func (r Rule) score(lower string, filePaths []string) float64 {
	kwHits := 0
	for _, kw := range r.Keywords {
		if strings.Contains(lower, kw) {
			kwHits++
		}
	}
	if kwHits > keywordHitCap {
		kwHits = keywordHitCap
	}

	patHits := 0
	for _, re := range r.compiled {
		for _, p := range filePaths {
			if re.MatchString(p) {
				patHits++
				break // one hit per pattern, not per file
			}
		}
	}
	if patHits > patternHitCap {
		patHits = patternHitCap
	}

	return float64(kwHits+patHits) * r.Weight
}

// maxScore is the highest score this rule can produce, used to normalize
// confidence into [0,1].
func (r Rule) maxScore() float64 {
	kwMax := len(r.Keywords)
	if kwMax > keywordHitCap {
		kwMax = keywordHitCap
	}
	patMax := len(r.Patterns)
	if patMax > patternHitCap {
		patMax = patternHitCap
	}
	if kwMax+patMax == 0 {
		return 1
	}
	return float64(kwMax+patMax) * r.Weight
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			out = append(out, re)
		}
	}
	return out
}

// #endregion scoring
