// Package dispatch executes campaigns: it drives each destination through
// the rate limiter and a Sender, records per-destination outcomes, and
// moves the campaign to a terminal state.
package dispatch

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"campaignbot/internal/campaign"
	"campaignbot/internal/ratelimit"
	"campaignbot/pkg/logx"
)

const skipReasonRateLimit = "rate limit exceeded"

type Config struct {
	// Jitter widens the inter-send delay to [cooldown, cooldown+Jitter].
	// The range is heuristic pacing, not a compliance bound, so it stays
	// configurable.
	Jitter time.Duration
}

func (c Config) withDefaults() Config {
	if c.Jitter <= 0 {
		c.Jitter = 10 * time.Second
	}
	return c
}

// Outcome records what happened to one destination.
type Outcome struct {
	Group  string    `json:"group"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at,omitzero"`
}

// Result aggregates one Execute run.
type Result struct {
	CampaignID  string    `json:"campaign_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Sent        []Outcome `json:"sent"`
	Failed      []Outcome `json:"failed"`
	Skipped     []Outcome `json:"skipped"`
	TotalSent   int       `json:"total_sent"`
	TotalFailed int       `json:"total_failed"`
}

// Engine orchestrates campaign execution. Executions for the same
// campaign id are serialized with a per-id lock, closing the
// check-then-act race on campaign status.
type Engine struct {
	store   campaign.Store
	limiter *ratelimit.Limiter
	sender  Sender
	log     logx.Logger

	cfgMu sync.RWMutex
	cfg   Config

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	randf func() float64

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

type Option func(*Engine)

// WithClock overrides the engine's time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSleeper overrides the inter-send delay (tests).
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// WithRand overrides the jitter source (tests).
func WithRand(f func() float64) Option {
	return func(e *Engine) { e.randf = f }
}

func New(store campaign.Store, limiter *ratelimit.Limiter, sender Sender, cfg Config, log logx.Logger, opts ...Option) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Engine{
		store:   store,
		limiter: limiter,
		sender:  sender,
		log:     log,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		sleep:   sleepCtx,
		randf:   rand.Float64,
		locks:   map[string]*sync.Mutex{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Apply swaps pacing config at runtime.
func (e *Engine) Apply(cfg Config) {
	e.cfgMu.Lock()
	e.cfg = cfg.withDefaults()
	e.cfgMu.Unlock()
}

func (e *Engine) jitter() time.Duration {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg.Jitter
}

func (e *Engine) lockFor(id string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	mu, ok := e.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[id] = mu
	}
	return mu
}

// Execute runs a campaign to a terminal state.
//
// It fails fast with campaign.ErrNotFound for unknown ids and
// ErrAlreadyTerminal for completed/partial campaigns. Destinations are
// processed in list order; a fault on one never aborts the loop. The
// running transition and the final state are both persisted; persistence
// failures are fatal for the operation.
func (e *Engine) Execute(ctx context.Context, id string) (*Result, error) {
	mu := e.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	c, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status.Terminal() {
		return nil, fmt.Errorf("%s (%s): %w", c.ID, c.Status, ErrAlreadyTerminal)
	}

	res := &Result{CampaignID: c.ID, StartedAt: e.now()}
	log := e.log.With(logx.String("campaign", c.ID), logx.String("platform", c.Platform))

	// Persist running before iterating so a crash mid-run is observable
	// as running rather than silently re-enterable as pending.
	c.Status = campaign.StatusRunning
	if err := e.store.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("persist running transition for %s: %w", c.ID, err)
	}
	log.Info("campaign execution started", logx.Int("targets", len(c.Groups)))

	cancelled := false
	for i, group := range c.Groups {
		if cancelled {
			res.Skipped = append(res.Skipped, Outcome{Group: group, Reason: "execution cancelled", At: e.now()})
			continue
		}

		if !e.limiter.CanSend(c.Platform, c.ID, c.Cooldown, c.DailyLimit, e.now()) {
			log.Debug("destination skipped", logx.String("group", group), logx.String("reason", skipReasonRateLimit))
			res.Skipped = append(res.Skipped, Outcome{Group: group, Reason: skipReasonRateLimit, At: e.now()})
			continue
		}

		ok, sendErr := e.send(ctx, c.Platform, group, c.Template)
		switch {
		case sendErr != nil:
			c.FailedCount++
			res.Failed = append(res.Failed, Outcome{Group: group, Reason: sendErr.Error(), At: e.now()})
			log.Warn("delivery fault", logx.String("group", group), logx.Err(sendErr))
		case !ok:
			c.FailedCount++
			res.Failed = append(res.Failed, Outcome{Group: group, Reason: "send failed", At: e.now()})
			log.Warn("send refused", logx.String("group", group))
		default:
			// Budget is consumed only on confirmed success.
			e.limiter.RecordSend(c.Platform, c.ID, e.now())
			c.SentCount++
			res.Sent = append(res.Sent, Outcome{Group: group, At: e.now()})
			log.Debug("message sent", logx.String("group", group))
		}

		// Pace absolute request rate between attempted sends,
		// independent of the per-destination cooldown check.
		if i < len(c.Groups)-1 {
			d := c.Cooldown + time.Duration(e.randf()*float64(e.jitter()))
			if err := e.sleep(ctx, d); err != nil {
				// Shutdown: the remaining destinations become skips so
				// the campaign still reaches a persisted terminal state.
				log.Warn("inter-send delay cancelled; finishing early", logx.Err(err))
				cancelled = true
			}
		}
	}

	if c.FailedCount == 0 {
		c.Status = campaign.StatusCompleted
	} else {
		c.Status = campaign.StatusPartial
	}
	// The final write must survive ctx cancellation during shutdown.
	if err := e.store.Update(context.WithoutCancel(ctx), c); err != nil {
		return nil, fmt.Errorf("persist final state for %s: %w", c.ID, err)
	}

	res.FinishedAt = e.now()
	res.TotalSent = c.SentCount
	res.TotalFailed = c.FailedCount
	log.Info("campaign execution finished",
		logx.String("status", string(c.Status)),
		logx.Int("sent", len(res.Sent)),
		logx.Int("failed", len(res.Failed)),
		logx.Int("skipped", len(res.Skipped)),
		logx.Duration("dur", res.FinishedAt.Sub(res.StartedAt)))
	return res, nil
}

// send shields the loop from panicking Sender implementations; a panic is
// a delivery fault for that destination only.
func (e *Engine) send(ctx context.Context, platform, group, text string) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()
	return e.sender.Send(ctx, platform, group, text)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tmr.C:
		return nil
	}
}
