// Package ratelimit tracks per-campaign cooldown spacing and per-platform
// daily send counters.
//
// The state is process-wide and intentionally not durable; counters reset
// on restart but stay consistent within a run.
package ratelimit

import (
	"sync"
	"time"
)

const dayFormat = "2006-01-02"

// Limiter is safe for concurrent use. CanSend is a pure read so callers
// can re-check without side effects; RecordSend is the explicit mutation,
// called once per confirmed successful send.
type Limiter struct {
	mu       sync.RWMutex
	lastSend map[string]time.Time
	// days keeps one bucket per calendar day so history stays available
	// for analytics; buckets are never rolled into a single counter.
	days map[string]map[string]int
}

func New() *Limiter {
	return &Limiter{
		lastSend: map[string]time.Time{},
		days:     map[string]map[string]int{},
	}
}

func pairKey(platform, campaignID string) string { return platform + "|" + campaignID }

// CanSend reports whether a send for (platform, campaignID) is allowed at
// now, under the campaign's cooldown and the platform's daily limit.
func (l *Limiter) CanSend(platform, campaignID string, cooldown time.Duration, dailyLimit int, now time.Time) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.days[now.Format(dayFormat)][platform] >= dailyLimit {
		return false
	}
	if last, ok := l.lastSend[pairKey(platform, campaignID)]; ok && now.Sub(last) < cooldown {
		return false
	}
	return true
}

// RecordSend marks a confirmed send: it stamps the pair's last-send time
// and increments today's platform counter.
func (l *Limiter) RecordSend(platform, campaignID string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastSend[pairKey(platform, campaignID)] = now

	day := now.Format(dayFormat)
	if l.days[day] == nil {
		l.days[day] = map[string]int{}
	}
	l.days[day][platform]++
}

// DayCounts returns a copy of all per-day platform counters, keyed by
// YYYY-MM-DD date.
func (l *Limiter) DayCounts() map[string]map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]map[string]int, len(l.days))
	for day, counts := range l.days {
		cp := make(map[string]int, len(counts))
		for platform, n := range counts {
			cp[platform] = n
		}
		out[day] = cp
	}
	return out
}
