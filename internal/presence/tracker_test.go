package presence

import (
	"testing"
	"time"
)

func TestIsOnlineWindow(t *testing.T) {
	tr := NewTracker()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	window := 120 * time.Second

	tr.MarkActive("p1", base)

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"immediately", base, true},
		{"within window", base.Add(119 * time.Second), true},
		{"just inside", base.Add(window - time.Nanosecond), true},
		{"exactly at window", base.Add(window), false},
		{"past window", base.Add(window + time.Second), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tr.IsOnline("p1", tc.now, window); got != tc.want {
				t.Fatalf("IsOnline at %v = %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}

func TestIsOnlineUnknownPlayer(t *testing.T) {
	tr := NewTracker()
	if tr.IsOnline("ghost", time.Now(), time.Minute) {
		t.Fatal("never-seen player should be offline")
	}
}

func TestMarkActiveRefreshes(t *testing.T) {
	tr := NewTracker()
	base := time.Now()
	window := time.Minute

	tr.MarkActive("p1", base)
	tr.MarkActive("p1", base.Add(2*time.Minute))

	if !tr.IsOnline("p1", base.Add(2*time.Minute+30*time.Second), window) {
		t.Fatal("refreshed activity should keep player online")
	}
}

func TestTwoIndependentWindows(t *testing.T) {
	tr := NewTracker()
	base := time.Now()
	tr.MarkActive("p1", base)

	now := base.Add(200 * time.Second)
	if tr.IsOnline("p1", now, 120*time.Second) {
		t.Fatal("player should be stale for the simulation window")
	}
	if !tr.IsOnline("p1", now, 300*time.Second) {
		t.Fatal("player should still be online for the display window")
	}
}

func TestForget(t *testing.T) {
	tr := NewTracker()
	tr.MarkActive("p1", time.Now())
	tr.Forget("p1")
	if _, ok := tr.LastSeen("p1"); ok {
		t.Fatal("forgotten player should have no record")
	}
}
