// Package campaign defines the campaign record, its lifecycle, and the
// persistence contract.
package campaign

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
)

// Terminal reports whether no further execution is permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusPartial
}

var (
	ErrNotFound       = errors.New("campaign not found")
	ErrNoValidTargets = errors.New("no approved target groups")
)

// Campaign is one unit of outbound work. Groups only ever contains
// destinations that were approved at creation time; Cooldown and
// DailyLimit are clamped to policy bounds before storage.
type Campaign struct {
	ID          string        `json:"id"`
	Platform    string        `json:"platform"`
	Groups      []string      `json:"groups"`
	Template    string        `json:"template"`
	ScheduleAt  time.Time     `json:"schedule_at,omitzero"`
	Cooldown    time.Duration `json:"cooldown"`
	DailyLimit  int           `json:"daily_limit"`
	Status      Status        `json:"status"`
	SentCount   int           `json:"sent_count"`
	FailedCount int           `json:"failed_count"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Due reports whether the scheduler should pick the campaign up at now.
func (c Campaign) Due(now time.Time) bool {
	return c.Status == StatusPending && !c.ScheduleAt.IsZero() && !c.ScheduleAt.After(now)
}

// Store is the durable authority for campaign records. Create and Update
// must be flushed to the backing store before returning; Update is a full
// overwrite (last-writer-wins).
type Store interface {
	Create(ctx context.Context, c Campaign) error
	Get(ctx context.Context, id string) (Campaign, error) // ErrNotFound
	Update(ctx context.Context, c Campaign) error
	List(ctx context.Context) ([]Campaign, error)
}
