package policy

// #region imports
import (
	"math"
	"path/filepath"
	"strings"
	"time"
)

// #endregion imports

// #region feature-layout

// FeatureDim is the fixed length of the LinUCB feature vector.
const FeatureDim = 10

// Feature vector layout:
//
//	0    complexity heuristic (request length + keyword hits, 0-1)
//	1-3  file-type ratios: code, config, docs
//	4    normalized request length
//	5-7  tech-stack indicators: go, python, javascript
//	8    cyclical time-of-day in [0,1]
//	9    reserved user-preference slot (neutral 0.5)

// #endregion feature-layout

// #region keyword-tables

var complexityKeywords = []string{
	"refactor", "architecture", "migrate", "migration", "concurrency",
	"distributed", "performance", "optimize", "redesign", "protocol",
	"deadlock", "race", "scale", "security",
}

var codeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".jsx": true,
	".tsx": true, ".rs": true, ".java": true, ".c": true, ".h": true,
	".cpp": true, ".rb": true, ".php": true, ".cs": true, ".kt": true,
}

var configExtensions = map[string]bool{
	".yaml": true, ".yml": true, ".json": true, ".toml": true, ".ini": true,
	".env": true, ".tf": true, ".mod": true, ".sum": true, ".lock": true,
}

var docExtensions = map[string]bool{
	".md": true, ".rst": true, ".txt": true, ".adoc": true, ".html": true,
}

var goHints = []string{"golang", " go ", "goroutine", "go.mod", ".go"}
var pythonHints = []string{"python", "pip ", "pytest", "django", "flask", ".py"}
var jsHints = []string{"javascript", "typescript", "node", "npm ", "react", ".js", ".ts"}

// #endregion keyword-tables

// #region features

// Features maps a task context to the fixed-length LinUCB feature vector.
// Pure function of the context; a zero At timestamp means "now".
func Features(ctx Context) []float64 {
	x := make([]float64, FeatureDim)
	lower := strings.ToLower(ctx.Request)
	words := len(strings.Fields(ctx.Request))

	x[0] = complexityHeuristic(lower, words)

	code, config, docs := fileTypeRatios(ctx.FilePaths)
	x[1], x[2], x[3] = code, config, docs

	// Normalized request length, saturating at 200 words.
	x[4] = clamp01(float64(words) / 200.0)

	x[5] = stackIndicator(lower, ctx.FilePaths, goHints)
	x[6] = stackIndicator(lower, ctx.FilePaths, pythonHints)
	x[7] = stackIndicator(lower, ctx.FilePaths, jsHints)

	at := ctx.At
	if at.IsZero() {
		at = time.Now()
	}
	x[8] = cyclicalHour(at)

	x[9] = 0.5 // user-preference slot, neutral until wired

	return x
}

// #endregion features

// #region helpers

// complexityHeuristic blends request length and complexity keyword hits
// into a 0-1 score.
func complexityHeuristic(lower string, words int) float64 {
	hits := 0
	for _, kw := range complexityKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	lengthPart := clamp01(float64(words) / 100.0)
	keywordPart := clamp01(float64(hits) / 4.0)
	return clamp01(0.5*lengthPart + 0.5*keywordPart)
}

// fileTypeRatios buckets file paths into code/config/docs shares.
func fileTypeRatios(paths []string) (code, config, docs float64) {
	if len(paths) == 0 {
		return 0, 0, 0
	}
	var nCode, nConfig, nDocs int
	for _, p := range paths {
		ext := strings.ToLower(filepath.Ext(p))
		switch {
		case codeExtensions[ext]:
			nCode++
		case configExtensions[ext]:
			nConfig++
		case docExtensions[ext]:
			nDocs++
		}
	}
	n := float64(len(paths))
	return float64(nCode) / n, float64(nConfig) / n, float64(nDocs) / n
}

// stackIndicator returns 1 when any hint appears in the request text or
// any file path.
func stackIndicator(lower string, paths []string, hints []string) float64 {
	for _, h := range hints {
		if strings.Contains(lower, h) {
			return 1
		}
	}
	for _, p := range paths {
		pl := strings.ToLower(p)
		for _, h := range hints {
			if strings.HasSuffix(pl, strings.TrimSpace(h)) {
				return 1
			}
		}
	}
	return 0
}

// cyclicalHour maps the hour of day onto a sine wave rescaled to [0,1], so
// 23:00 and 00:00 land near each other.
func cyclicalHour(at time.Time) float64 {
	h := float64(at.Hour()) + float64(at.Minute())/60.0
	return (math.Sin(2*math.Pi*h/24.0) + 1) / 2
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
