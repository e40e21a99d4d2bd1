package campaign

import (
	"context"
	"fmt"
	"time"

	"campaignbot/internal/compliance"
	"campaignbot/pkg/logx"
)

// Bounds are the server-enforced policy limits applied to every new
// campaign, regardless of what the caller asked for.
type Bounds struct {
	MinCooldown   time.Duration
	MaxDailyLimit int
}

func (b Bounds) withDefaults() Bounds {
	if b.MinCooldown <= 0 {
		b.MinCooldown = 60 * time.Second
	}
	if b.MaxDailyLimit <= 0 {
		b.MaxDailyLimit = 50
	}
	return b
}

// Clamp forces cooldown up to the floor and dailyLimit down to the
// ceiling. A non-positive dailyLimit means "use the ceiling".
func (b Bounds) Clamp(cooldown time.Duration, dailyLimit int) (time.Duration, int) {
	if cooldown < b.MinCooldown {
		cooldown = b.MinCooldown
	}
	if dailyLimit <= 0 || dailyLimit > b.MaxDailyLimit {
		dailyLimit = b.MaxDailyLimit
	}
	return cooldown, dailyLimit
}

type CreateRequest struct {
	Platform   string
	Groups     []string
	Message    string
	ScheduleAt time.Time
	Cooldown   time.Duration
	DailyLimit int
}

// Service creates campaigns: content validation, consent filtering, limit
// clamping, durable persistence.
type Service struct {
	store  Store
	gate   *compliance.Gate
	bounds Bounds
	log    logx.Logger
	now    func() time.Time
}

func NewService(store Store, gate *compliance.Gate, bounds Bounds, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		store:  store,
		gate:   gate,
		bounds: bounds.withDefaults(),
		log:    log,
		now:    time.Now,
	}
}

// Create validates the request and persists a pending campaign.
//
// A message failing content rules rejects the whole request
// (*compliance.ValidationError). Unapproved groups are silently dropped;
// if none survive, ErrNoValidTargets. Limits are clamped before storage.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Campaign, error) {
	if req.Platform == "" {
		return Campaign{}, &compliance.ValidationError{Reason: "platform is required"}
	}
	if err := s.gate.ValidateMessage(req.Message); err != nil {
		return Campaign{}, err
	}

	targets := make([]string, 0, len(req.Groups))
	for _, g := range req.Groups {
		ok, err := s.gate.IsApproved(ctx, req.Platform, g)
		if err != nil {
			return Campaign{}, err
		}
		if !ok {
			s.log.Warn("group not approved; excluded from campaign",
				logx.String("platform", req.Platform), logx.String("group", g))
			continue
		}
		targets = append(targets, g)
	}
	if len(targets) == 0 {
		return Campaign{}, ErrNoValidTargets
	}

	now := s.now()
	cooldown, dailyLimit := s.bounds.Clamp(req.Cooldown, req.DailyLimit)
	c := Campaign{
		ID:         fmt.Sprintf("%s_%d", req.Platform, now.UnixNano()),
		Platform:   req.Platform,
		Groups:     targets,
		Template:   req.Message,
		ScheduleAt: req.ScheduleAt,
		Cooldown:   cooldown,
		DailyLimit: dailyLimit,
		Status:     StatusPending,
		CreatedAt:  now,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return Campaign{}, fmt.Errorf("persist campaign %s: %w", c.ID, err)
	}

	s.log.Info("campaign created",
		logx.String("campaign", c.ID),
		logx.String("platform", c.Platform),
		logx.Int("targets", len(c.Groups)),
		logx.Duration("cooldown", c.Cooldown),
		logx.Int("daily_limit", c.DailyLimit))
	return c, nil
}
