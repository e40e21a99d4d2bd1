package ratelimit

import (
	"testing"
	"time"
)

func TestCooldownSpacing(t *testing.T) {
	t.Parallel()
	l := New()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	if !l.CanSend("telegram", "c1", 60*time.Second, 50, base) {
		t.Fatal("first send should be allowed")
	}
	l.RecordSend("telegram", "c1", base)

	if l.CanSend("telegram", "c1", 60*time.Second, 50, base.Add(30*time.Second)) {
		t.Fatal("send inside cooldown window should be denied")
	}
	// Exactly elapsed cooldown is allowed.
	if !l.CanSend("telegram", "c1", 60*time.Second, 50, base.Add(60*time.Second)) {
		t.Fatal("send at cooldown boundary should be allowed")
	}
	// Cooldown is per (platform, campaign) pair.
	if !l.CanSend("telegram", "c2", 60*time.Second, 50, base.Add(time.Second)) {
		t.Fatal("other campaign should not share the cooldown")
	}
}

func TestDailyLimit(t *testing.T) {
	t.Parallel()
	l := New()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		now := base.Add(time.Duration(i) * 2 * time.Minute)
		if !l.CanSend("telegram", "c1", time.Minute, 3, now) {
			t.Fatalf("send %d should be allowed", i)
		}
		l.RecordSend("telegram", "c1", now)
	}

	now := base.Add(time.Hour)
	if l.CanSend("telegram", "c1", time.Minute, 3, now) {
		t.Fatal("daily limit reached; send should be denied")
	}
	// The limit is per platform, not per campaign.
	if l.CanSend("telegram", "c2", time.Minute, 3, now) {
		t.Fatal("daily limit is platform-wide")
	}
	// Other platforms keep their own budget.
	if !l.CanSend("facebook", "c1", time.Minute, 3, now) {
		t.Fatal("other platform should have its own counter")
	}
	// A new day starts a fresh bucket.
	if !l.CanSend("telegram", "c1", time.Minute, 3, base.AddDate(0, 0, 1)) {
		t.Fatal("next day should reset the counter")
	}
}

func TestCanSendIsPure(t *testing.T) {
	t.Parallel()
	l := New()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		if !l.CanSend("telegram", "c1", time.Minute, 1, now) {
			t.Fatal("repeated CanSend must not consume budget")
		}
	}
	l.RecordSend("telegram", "c1", now)
	if l.CanSend("telegram", "c1", time.Minute, 1, now.Add(2*time.Minute)) {
		t.Fatal("daily limit of 1 exhausted by the recorded send")
	}
}

func TestDayCountsRetained(t *testing.T) {
	t.Parallel()
	l := New()
	day1 := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 2, 0, 1, 0, 0, time.UTC)

	l.RecordSend("telegram", "c1", day1)
	l.RecordSend("telegram", "c1", day2)
	l.RecordSend("facebook", "c2", day2)

	counts := l.DayCounts()
	if counts["2025-06-01"]["telegram"] != 1 {
		t.Fatalf("day1 telegram = %d, want 1", counts["2025-06-01"]["telegram"])
	}
	if counts["2025-06-02"]["telegram"] != 1 || counts["2025-06-02"]["facebook"] != 1 {
		t.Fatalf("day2 counts = %v", counts["2025-06-02"])
	}

	// The snapshot is a copy; mutating it must not leak back.
	counts["2025-06-01"]["telegram"] = 99
	if l.DayCounts()["2025-06-01"]["telegram"] != 1 {
		t.Fatal("DayCounts must return a copy")
	}
}
