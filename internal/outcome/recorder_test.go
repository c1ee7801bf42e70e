package outcome

import (
	"database/sql"
	"math"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func dur(v float64) *float64 { return &v }

func TestRecorderRecordAndRecent(t *testing.T) {
	rec, err := NewRecorder(newTestDB(t))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		err := rec.Record(Record{
			Agent: "builder", TaskType: "debugging", Arm: "v1",
			Reward: float64(i) / 10, Success: i%2 == 0,
			Duration: dur(30), Errors: i, Exploration: i == 0,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	recent, err := rec.Recent("builder", "debugging", "v1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recent))
	}
	// Newest first.
	if recent[0].Errors != 4 {
		t.Fatalf("expected newest record first, got errors=%d", recent[0].Errors)
	}
	if recent[0].Duration == nil || *recent[0].Duration != 30 {
		t.Fatal("duration lost in round trip")
	}
}

func TestRecorderRecentScopedToContext(t *testing.T) {
	rec, _ := NewRecorder(newTestDB(t))
	rec.Record(Record{Agent: "a", TaskType: "t", Arm: "v1", Reward: 1, Success: true})
	rec.Record(Record{Agent: "a", TaskType: "t", Arm: "v2", Reward: 0, Success: false})
	rec.Record(Record{Agent: "b", TaskType: "t", Arm: "v1", Reward: 0, Success: false})

	recent, err := rec.Recent("a", "t", "v1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected 1 record for (a,t,v1), got %d", len(recent))
	}
}

func TestRecorderBaseline(t *testing.T) {
	rec, _ := NewRecorder(newTestDB(t))
	rewards := []float64{0.8, 0.6, -0.2, 0.4}
	successes := []bool{true, true, false, true}
	errors := []int{0, 1, 3, 0}
	for i := range rewards {
		rec.Record(Record{
			Agent: "a", TaskType: "t", Arm: "v1",
			Reward: rewards[i], Success: successes[i], Errors: errors[i],
		})
	}

	b, err := rec.Baseline("a", "t", "v1")
	if err != nil {
		t.Fatal(err)
	}
	if b.Samples != 4 {
		t.Fatalf("expected 4 samples, got %d", b.Samples)
	}
	if math.Abs(b.SuccessRate-0.75) > 1e-9 {
		t.Fatalf("success rate: want 0.75, got %f", b.SuccessRate)
	}
	if math.Abs(b.AvgReward-0.4) > 1e-9 {
		t.Fatalf("avg reward: want 0.4, got %f", b.AvgReward)
	}
	if math.Abs(b.ErrorRate-1.0) > 1e-9 {
		t.Fatalf("error rate: want 1.0, got %f", b.ErrorRate)
	}
}

func TestBaselineEmptyContext(t *testing.T) {
	rec, _ := NewRecorder(newTestDB(t))
	b, err := rec.Baseline("nobody", "nothing", "never")
	if err != nil {
		t.Fatal(err)
	}
	if b.Samples != 0 {
		t.Fatalf("expected empty baseline, got %d samples", b.Samples)
	}
}

func TestSummarizeMatchesBaseline(t *testing.T) {
	records := []Record{
		{Reward: 0.8, Success: true, Errors: 0},
		{Reward: 0.2, Success: false, Errors: 2},
	}
	b := Summarize(records)
	if b.Samples != 2 || b.SuccessRate != 0.5 || b.ErrorRate != 1.0 {
		t.Fatalf("unexpected summary %+v", b)
	}
	if math.Abs(b.AvgReward-0.5) > 1e-9 {
		t.Fatalf("avg reward: want 0.5, got %f", b.AvgReward)
	}
}

func TestConfidenceWeighsRecentEvidence(t *testing.T) {
	rec, _ := NewRecorder(newTestDB(t))

	// Old bad outcomes, recent good outcomes.
	old := time.Now().Add(-30 * 24 * time.Hour)
	for i := 0; i < 5; i++ {
		rec.Record(Record{Agent: "a", TaskType: "t", Arm: "v1", Reward: -0.8, CreatedAt: old})
	}
	for i := 0; i < 5; i++ {
		rec.Record(Record{Agent: "a", TaskType: "t", Arm: "v1", Reward: 0.8, Success: true})
	}

	conf, n, err := rec.Confidence("a", "t", "v1", 7*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 10 {
		t.Fatalf("expected 10 rows counted, got %d", n)
	}
	// Unweighted average reward is 0 → confidence 0.5; decay should pull it
	// well above that.
	if conf < 0.7 {
		t.Fatalf("recent evidence should dominate, got confidence %f", conf)
	}
}

func TestConfidenceEmpty(t *testing.T) {
	rec, _ := NewRecorder(newTestDB(t))
	conf, n, err := rec.Confidence("a", "t", "v1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if conf != 0 || n != 0 {
		t.Fatalf("expected zero confidence with no rows, got %f/%d", conf, n)
	}
}

func TestRegistryRegisterAndList(t *testing.T) {
	db := newTestDB(t)
	reg, err := NewRegistry(db)
	if err != nil {
		t.Fatal(err)
	}

	for _, arm := range []string{"v1", "v2", "v3"} {
		if err := reg.RegisterArm("builder", arm); err != nil {
			t.Fatal(err)
		}
	}
	// Re-register is a no-op, not an error.
	if err := reg.RegisterArm("builder", "v1"); err != nil {
		t.Fatal(err)
	}

	arms, err := reg.ListArms("builder")
	if err != nil {
		t.Fatal(err)
	}
	if len(arms) != 3 {
		t.Fatalf("expected 3 arms, got %v", arms)
	}

	none, err := reg.ListArms("stranger")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no arms for unknown agent, got %v", none)
	}
}
