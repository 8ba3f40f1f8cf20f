package scheduling

import (
	"testing"
	"time"
)

func fixedRand(v int64) func(int64) int64 {
	return func(n int64) int64 {
		if v >= n {
			return n - 1
		}
		return v
	}
}

func TestStaggerNoCollision(t *testing.T) {
	p := NewStaggerPlanner(0, DefaultMinStagger, DefaultMaxRandomStagger)
	p.Int64N = func(int64) int64 { t.Fatal("random source used without collisions"); return 0 }

	target := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	existing := []time.Time{target.Add(-6 * time.Minute), target.Add(10 * time.Minute)}

	if d := p.Delay(target, existing); d != 0 {
		t.Fatalf("delay = %v, want 0", d)
	}
}

func TestStaggerCountsInclusiveWindow(t *testing.T) {
	p := NewStaggerPlanner(5*time.Minute, time.Minute, 2*time.Minute)
	p.Int64N = fixedRand(int64(30 * time.Second))

	target := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	existing := []time.Time{
		target.Add(-5 * time.Minute), // boundary, counted
		target,
		target.Add(5 * time.Minute), // boundary, counted
		target.Add(5*time.Minute + time.Second),
	}

	if n := p.Collisions(target, existing); n != 3 {
		t.Fatalf("collisions = %d, want 3", n)
	}
	want := 3*time.Minute + 30*time.Second
	if d := p.Delay(target, existing); d != want {
		t.Fatalf("delay = %v, want %v", d, want)
	}
}

func TestStaggerRandomBounded(t *testing.T) {
	p := NewStaggerPlanner(0, DefaultMinStagger, DefaultMaxRandomStagger)
	target := time.Now()
	existing := []time.Time{target}

	for i := 0; i < 200; i++ {
		d := p.Delay(target, existing)
		if d < DefaultMinStagger || d >= DefaultMinStagger+DefaultMaxRandomStagger {
			t.Fatalf("delay %v outside [%v, %v)", d, DefaultMinStagger, DefaultMinStagger+DefaultMaxRandomStagger)
		}
	}
}

func TestStaggerRange(t *testing.T) {
	p := NewStaggerPlanner(2*time.Minute, 0, 0)
	target := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	lo, hi := p.Range(target)
	if !lo.Equal(target.Add(-2*time.Minute)) || !hi.Equal(target.Add(2*time.Minute)) {
		t.Fatalf("range = [%v, %v]", lo, hi)
	}
}
