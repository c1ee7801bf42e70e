package policy

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/danielpatrickdp/variant-controller/internal/store"
)

func linCtx(request string, paths ...string) Context {
	return Context{
		Agent:     "builder",
		TaskType:  "debugging",
		Request:   request,
		FilePaths: paths,
		At:        time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC),
	}
}

func TestLinUCBEmptyCandidates(t *testing.T) {
	l := NewLinUCB(store.NewMemStore(), DefaultLinUCBConfig(), nil)
	if _, err := l.Select(linCtx("fix the bug"), nil); err != ErrNoCandidates {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
}

func TestLinUCBSingleCandidate(t *testing.T) {
	l := NewLinUCB(store.NewMemStore(), DefaultLinUCBConfig(), nil)
	sel, err := l.Select(linCtx("fix the bug", "main.go"), []string{"only"})
	if err != nil {
		t.Fatal(err)
	}
	if sel.Arm != "only" {
		t.Fatalf("expected only, got %s", sel.Arm)
	}
	if sel.Meta.Kind != MetaLinUCB {
		t.Fatalf("expected linucb meta, got %s", sel.Meta.Kind)
	}
	if len(sel.Meta.Features) != FeatureDim {
		t.Fatalf("expected %d features, got %d", FeatureDim, len(sel.Meta.Features))
	}
}

func TestLinUCBPredictFiniteOnUnitInput(t *testing.T) {
	l := NewLinUCB(store.NewMemStore(), DefaultLinUCBConfig(), nil)
	ctx := linCtx("refactor the concurrency layer for performance", "pool.go", "config.yaml")

	for i := 0; i < 30; i++ {
		sel, err := l.Select(ctx, []string{"a", "b"})
		if err != nil {
			t.Fatal(err)
		}
		if math.IsNaN(sel.Score) || math.IsInf(sel.Score, 0) {
			t.Fatalf("prediction must stay finite, got %f", sel.Score)
		}
		if err := l.Update(ctx, sel.Arm, 0.5); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLinUCBLearnsRewardDirection(t *testing.T) {
	l := NewLinUCB(store.NewMemStore(), LinUCBConfig{Alpha: 0.05}, nil)
	ctx := linCtx("add a unit test for the parser", "parser.go", "parser_test.go")

	for i := 0; i < 30; i++ {
		l.Update(ctx, "good", 0.9)
		l.Update(ctx, "bad", 0.1)
	}

	sel, err := l.Select(ctx, []string{"bad", "good"})
	if err != nil {
		t.Fatal(err)
	}
	if sel.Arm != "good" {
		t.Fatalf("expected good after training, got %s", sel.Arm)
	}
	if sel.Exploration {
		t.Fatal("trained arm pick should not be exploration")
	}
}

func TestLinUCBMatrixStaysSymmetricPositiveDefinite(t *testing.T) {
	l := NewLinUCB(store.NewMemStore(), DefaultLinUCBConfig(), nil)
	rng := rand.New(rand.NewSource(11))

	requests := []string{
		"fix flaky test in scheduler",
		"refactor storage layer architecture for scale",
		"write docs for the migration guide",
		"debug race in the python worker",
		"optimize javascript bundle size",
	}
	paths := [][]string{
		{"sched.go", "sched_test.go"},
		{"store.py", "settings.yaml"},
		{"README.md", "guide.md"},
		{"worker.py"},
		{"bundle.js", "webpack.json"},
	}

	for i := 0; i < 200; i++ {
		j := rng.Intn(len(requests))
		ctx := linCtx(requests[j], paths[j]...)
		if err := l.Update(ctx, "arm", rng.Float64()*2-1); err != nil {
			t.Fatal(err)
		}
	}

	l.mu.Lock()
	A := l.arms["arm"].A
	l.mu.Unlock()

	// Symmetry
	for i := 0; i < FeatureDim; i++ {
		for j := 0; j < FeatureDim; j++ {
			if math.Abs(A[i][j]-A[j][i]) > 1e-9 {
				t.Fatalf("A not symmetric at (%d,%d): %f vs %f", i, j, A[i][j], A[j][i])
			}
		}
	}

	// Positive-definite: zᵀAz > 0 for random non-zero z
	for trial := 0; trial < 50; trial++ {
		z := make([]float64, FeatureDim)
		for i := range z {
			z[i] = rng.NormFloat64()
		}
		if q := dot(z, matVec(A, z)); q <= 0 {
			t.Fatalf("quadratic form non-positive: %f", q)
		}
	}
}

func TestLinUCBRoundTrip(t *testing.T) {
	snap := store.NewMemStore()
	l := NewLinUCB(snap, DefaultLinUCBConfig(), nil)
	ctx := linCtx("fix the bug", "main.go")

	for i := 0; i < 10; i++ {
		l.Update(ctx, "a", 0.8)
	}
	want, _ := l.Theta("a")

	fresh := NewLinUCB(snap, DefaultLinUCBConfig(), nil)
	got, ok := fresh.Theta("a")
	if !ok {
		t.Fatal("model lost across reload")
	}
	for i := range want {
		if math.Abs(want[i]-got[i]) > 1e-9 {
			t.Fatalf("theta[%d] drifted: want %f, got %f", i, want[i], got[i])
		}
	}
}

func TestInvertRecoversIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	d := 6

	// Build identity + sum of random rank-1 PSD terms, like an update stream.
	a := identity(d)
	for k := 0; k < 20; k++ {
		x := make([]float64, d)
		for i := range x {
			x[i] = rng.Float64()
		}
		for i := 0; i < d; i++ {
			for j := 0; j < d; j++ {
				a[i][j] += x[i] * x[j]
			}
		}
	}

	inv := invert(a)
	// Check A·A⁻¹ ≈ I column-wise.
	for col := 0; col < d; col++ {
		e := make([]float64, d)
		for i := 0; i < d; i++ {
			e[i] = inv[i][col]
		}
		prod := matVec(a, e)
		for i := 0; i < d; i++ {
			want := 0.0
			if i == col {
				want = 1.0
			}
			if math.Abs(prod[i]-want) > 1e-8 {
				t.Fatalf("A·A⁻¹[%d][%d] = %f, want %f", i, col, prod[i], want)
			}
		}
	}
}
