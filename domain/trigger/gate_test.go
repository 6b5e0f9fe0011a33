package trigger

import (
	"math"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type step struct {
	at   float64 // seconds since epoch
	hit  bool
	want bool
}

func runSteps(t *testing.T, g *Gate, clk *ManualClock, steps []step) {
	t.Helper()
	for i, s := range steps {
		clk.Set(epoch.Add(time.Duration(s.at * float64(time.Second))))
		if got := g.Observe(s.hit); got != s.want {
			t.Fatalf("step %d (t=%.1f hit=%v): got fire=%v want %v (streak=%d)", i, s.at, s.hit, got, s.want, g.Streak())
		}
	}
}

func TestGate_SingleHitIntervalBlocksSecondFire(t *testing.T) {
	clk := NewManualClock(epoch)
	g := NewGate(1, 5, clk)
	runSteps(t, g, clk, []step{
		{0, true, true},
		{1, true, false},
	})
}

func TestGate_MissResetsStreak(t *testing.T) {
	clk := NewManualClock(epoch)
	g := NewGate(3, 0, clk)
	runSteps(t, g, clk, []step{
		{0, true, false},
		{1, true, false},
		{2, false, false},
		{3, true, false},
		{4, true, false},
		{5, true, true},
	})
	if g.Streak() != 0 {
		t.Fatalf("expected streak reset after fire, got %d", g.Streak())
	}
}

func TestGate_StreakPreservedWhileIntervalPending(t *testing.T) {
	clk := NewManualClock(epoch)
	g := NewGate(2, 5, clk)
	runSteps(t, g, clk, []step{
		{0, true, false},
		{0.5, true, true},
		{1, true, false},
		{1.5, true, false},
	})
	if g.Streak() != 2 || g.State() != StateArmed {
		t.Fatalf("expected armed with streak 2, got streak=%d state=%v", g.Streak(), g.State())
	}
	runSteps(t, g, clk, []step{{5.5, true, true}})
}

func TestGate_CoercesParameters(t *testing.T) {
	g := NewGate(0, -3, nil)
	if g.ConfirmHits() != 1 || g.MinInterval() != 0 {
		t.Fatalf("unexpected coercion confirm=%d interval=%v", g.ConfirmHits(), g.MinInterval())
	}
	if g := NewGate(2, math.NaN(), nil); g.MinInterval() != 0 {
		t.Fatalf("NaN interval not coerced: %v", g.MinInterval())
	}
	if !g.Observe(true) || !g.Observe(true) {
		t.Fatalf("zero interval gate should fire on every hit")
	}
}

func TestGate_FirstFireNeverBlocked(t *testing.T) {
	clk := NewManualClock(time.Time{})
	g := NewGate(1, 3600, clk)
	if !g.Observe(true) {
		t.Fatalf("first fire must not wait for the interval")
	}
	if _, fired := g.LastFire(); !fired {
		t.Fatalf("expected fired flag")
	}
}

func TestGate_States(t *testing.T) {
	g := NewGate(2, 0, NewManualClock(epoch))
	if g.State() != StateIdle {
		t.Fatalf("expected Idle, got %v", g.State())
	}
	g.Observe(true)
	if g.State() != StateAccumulating {
		t.Fatalf("expected Accumulating, got %v", g.State())
	}
	g.Observe(false)
	if g.State() != StateIdle || g.Streak() != 0 {
		t.Fatalf("expected Idle after miss, got %v streak=%d", g.State(), g.Streak())
	}
}

func TestGate_ConfirmTwoRespectsInterval(t *testing.T) {
	clk := NewManualClock(epoch)
	g := NewGate(2, 5, clk)
	runSteps(t, g, clk, []step{
		{0, true, false},
		{0, true, true},
		{1, true, false},
		{1, true, false},
	})
	if g.Streak() != 2 {
		t.Fatalf("expected streak kept at 2 while interval pending, got %d", g.Streak())
	}
}

func TestGate_SingleConfirmMissThenHit(t *testing.T) {
	clk := NewManualClock(epoch)
	g := NewGate(1, 0, clk)
	for i := 0; i < 3; i++ {
		if g.Observe(false) || g.Streak() != 0 {
			t.Fatalf("miss %d: expected no fire and streak 0, got streak %d", i, g.Streak())
		}
	}
	if !g.Observe(true) {
		t.Fatalf("expected immediate fire")
	}
}

func TestGate_MissBeforeConfirmRestartsFromOne(t *testing.T) {
	clk := NewManualClock(epoch)
	g := NewGate(3, 0, clk)
	g.Observe(true)
	g.Observe(true)
	if g.Observe(false) || g.Streak() != 0 {
		t.Fatalf("expected reset, streak=%d", g.Streak())
	}
	if g.Observe(true) || g.Streak() != 1 {
		t.Fatalf("expected streak 1 after restart, got %d", g.Streak())
	}
}
