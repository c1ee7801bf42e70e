package policy

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/variant-controller/internal/store"
)

func TestUCB1EmptyCandidates(t *testing.T) {
	u := NewUCB1(store.NewMemStore(), DefaultUCB1Config(), nil)
	if _, err := u.Select(testCtx(), nil); err != ErrNoCandidates {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
}

func TestUCB1ExhaustsUntriedFirst(t *testing.T) {
	u := NewUCB1(store.NewMemStore(), DefaultUCB1Config(), nil)
	ctx := testCtx()
	candidates := []string{"a", "b", "c"}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		sel, err := u.Select(ctx, candidates)
		if err != nil {
			t.Fatal(err)
		}
		if seen[sel.Arm] {
			t.Fatalf("re-selected %s before exhausting untried arms", sel.Arm)
		}
		if !math.IsInf(sel.Score, 1) {
			t.Fatalf("untried pick should report +Inf, got %f", sel.Score)
		}
		if sel.Meta.Kind != MetaOptimisticInit {
			t.Fatalf("expected optimistic_init, got %s", sel.Meta.Kind)
		}
		if !sel.Exploration {
			t.Fatal("optimistic init is exploration")
		}
		seen[sel.Arm] = true
		if err := u.Update(ctx, sel.Arm, 0.5); err != nil {
			t.Fatal(err)
		}
	}
	if len(seen) != 3 {
		t.Fatalf("expected all 3 arms tried, got %d", len(seen))
	}
}

func TestUCB1UntriedIsDeterministicallyFirst(t *testing.T) {
	u := NewUCB1(store.NewMemStore(), DefaultUCB1Config(), nil)
	ctx := testCtx()
	u.Update(ctx, "a", 0.9)

	sel, err := u.Select(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if sel.Arm != "b" {
		t.Fatalf("expected first untried arm b, got %s", sel.Arm)
	}
}

func TestUCB1ExploitationPrefersBestAverage(t *testing.T) {
	cfg := DefaultUCB1Config()
	cfg.C = 0.01 // hold the bonus small
	u := NewUCB1(store.NewMemStore(), cfg, nil)
	ctx := testCtx()

	u.Update(ctx, "a", 0.9)
	u.Update(ctx, "b", 0.5)
	u.Update(ctx, "c", 0.1)

	sel, err := u.Select(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if sel.Arm != "a" {
		t.Fatalf("expected a with bonus held small, got %s", sel.Arm)
	}
	if sel.Exploration {
		t.Fatal("all arms tried: not exploration")
	}
	if sel.Meta.Kind != MetaUCB1 {
		t.Fatalf("expected ucb1 meta, got %s", sel.Meta.Kind)
	}
	if sel.Meta.Bounds["a"] <= sel.Meta.Bounds["b"] {
		t.Fatal("bound for a should exceed bound for b")
	}
}

func TestUCB1SingleArmPlainAverage(t *testing.T) {
	u := NewUCB1(store.NewMemStore(), DefaultUCB1Config(), nil)
	ctx := testCtx()

	u.Update(ctx, "only", 0.7)

	// totalPulls == 1 → bonus skipped, score is the plain average.
	sel, err := u.Select(ctx, []string{"only"})
	if err != nil {
		t.Fatal(err)
	}
	if math.IsNaN(sel.Score) || math.IsInf(sel.Score, 0) {
		t.Fatalf("score must be finite at totalPulls<=1, got %f", sel.Score)
	}
	if math.Abs(sel.Score-0.7) > 1e-12 {
		t.Fatalf("expected plain average 0.7, got %f", sel.Score)
	}
}

func TestUCB1BonusGrowsWithTotalPulls(t *testing.T) {
	u := NewUCB1(store.NewMemStore(), DefaultUCB1Config(), nil)
	ctx := testCtx()

	u.Update(ctx, "a", 0.5)
	u.Update(ctx, "b", 0.5)

	sel1, _ := u.Select(ctx, []string{"a"})
	for i := 0; i < 10; i++ {
		u.Update(ctx, "b", 0.5)
	}
	sel2, _ := u.Select(ctx, []string{"a"})

	// a untouched, total pulls grew → its bound must rise.
	if sel2.Score <= sel1.Score {
		t.Fatalf("bound should grow with total pulls: %f then %f", sel1.Score, sel2.Score)
	}
}

func TestUCB1HistoryCap(t *testing.T) {
	cfg := DefaultUCB1Config()
	cfg.HistoryCap = 5
	u := NewUCB1(store.NewMemStore(), cfg, nil)
	ctx := testCtx()

	for i := 0; i < 12; i++ {
		u.Update(ctx, "a", float64(i))
	}
	a, ok := u.Arm("a")
	if !ok {
		t.Fatal("arm missing")
	}
	if len(a.RewardHistory) != 5 {
		t.Fatalf("expected capped history of 5, got %d", len(a.RewardHistory))
	}
	if a.RewardHistory[4] != 11 {
		t.Fatalf("expected newest rewards retained, tail %f", a.RewardHistory[4])
	}
	if a.NPulls != 12 {
		t.Fatalf("pull count must not be capped, got %d", a.NPulls)
	}
}

func TestUCB1RoundTrip(t *testing.T) {
	snap := store.NewMemStore()
	u := NewUCB1(snap, DefaultUCB1Config(), nil)
	ctx := testCtx()

	u.Update(ctx, "a", 0.9)
	u.Update(ctx, "a", 0.7)
	u.Update(ctx, "b", 0.2)

	fresh := NewUCB1(snap, DefaultUCB1Config(), nil)
	want, _ := u.Arm("a")
	got, ok := fresh.Arm("a")
	if !ok {
		t.Fatal("arm lost across reload")
	}
	if got.NPulls != want.NPulls {
		t.Fatalf("pulls drifted: want %d, got %d", want.NPulls, got.NPulls)
	}
	if math.Abs(got.TotalReward-want.TotalReward) > 1e-9 {
		t.Fatalf("total reward drifted: want %f, got %f", want.TotalReward, got.TotalReward)
	}
	if fresh.Statistics().TotalPulls != 3 {
		t.Fatalf("total pulls drifted: got %d", fresh.Statistics().TotalPulls)
	}
}

func TestUCB1ColdStartOnCorruptSnapshot(t *testing.T) {
	snap := store.NewMemStore()
	snap.Save([]byte("garbage"))
	u := NewUCB1(snap, DefaultUCB1Config(), nil)
	if u.Statistics().TotalPulls != 0 {
		t.Fatal("expected cold start on corrupt snapshot")
	}
}
