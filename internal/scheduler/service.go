// Package scheduler polls for due campaigns and hands them to the
// dispatch engine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"campaignbot/internal/campaign"
	"campaignbot/internal/dispatch"
	"campaignbot/pkg/logx"
)

type Config struct {
	Enabled      bool
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 60 * time.Second
	}
	return c
}

// Executor is what the scheduler needs from the dispatch engine.
type Executor interface {
	Execute(ctx context.Context, id string) (*dispatch.Result, error)
}

// Service runs a fixed-interval poll loop. Campaigns discovered in one
// tick execute sequentially; overlapping ticks are skipped, and the
// engine's own status check keeps a second execution of the same
// campaign out.
type Service struct {
	cfg    Config
	store  campaign.Store
	engine Executor
	log    logx.Logger
	now    func() time.Time

	mu      sync.Mutex
	c       *cron.Cron
	stopCh  chan struct{}
	baseCtx context.Context

	tickMu sync.Mutex
}

func New(cfg Config, store campaign.Store, engine Executor, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg.withDefaults(),
		store:  store,
		engine: engine,
		log:    log,
		now:    time.Now,
	}
}

func (s *Service) Enabled() bool { return s.cfg.Enabled }

// Start launches the poll loop. Executions use ctx, so process shutdown
// cancels in-flight delays while Stop alone does not.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.baseCtx = ctx

	s.c = cron.New()
	spec := fmt.Sprintf("@every %s", s.cfg.PollInterval)
	if _, err := s.c.AddFunc(spec, s.tick); err != nil {
		// Only reachable with a malformed interval; fall back to the default.
		s.log.Error("invalid poll interval", logx.Err(err), logx.Duration("interval", s.cfg.PollInterval))
		_, _ = s.c.AddFunc("@every 1m", s.tick)
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.Duration("poll_interval", s.cfg.PollInterval))
}

// Stop halts polling and waits (bounded by ctx) for the current tick.
// In-flight executions are not aborted.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	c := s.c
	s.stopCh = nil
	s.c = nil
	s.mu.Unlock()

	close(stopCh)
	if c != nil {
		select {
		case <-c.Stop().Done():
			s.log.Info("scheduler stopped")
		case <-ctx.Done():
			s.log.Warn("scheduler stop timed out; tick continues in background")
		}
	}
}

func (s *Service) tick() {
	// A slow sequential run can outlast the poll interval; let the next
	// tick pass instead of piling up.
	if !s.tickMu.TryLock() {
		s.log.Debug("poll tick overlapped; skipping")
		return
	}
	defer s.tickMu.Unlock()

	s.mu.Lock()
	stopCh := s.stopCh
	ctx := s.baseCtx
	s.mu.Unlock()
	if stopCh == nil || ctx == nil {
		return
	}

	campaigns, err := s.store.List(ctx)
	if err != nil {
		s.log.Warn("poll list failed", logx.Err(err))
		return
	}

	now := s.now()
	for _, c := range campaigns {
		if !c.Due(now) {
			continue
		}
		// Honor Stop between campaigns, never mid-execution.
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		s.log.Info("executing scheduled campaign", logx.String("campaign", c.ID))
		if _, err := s.engine.Execute(ctx, c.ID); err != nil {
			switch {
			case errors.Is(err, dispatch.ErrAlreadyTerminal), errors.Is(err, campaign.ErrNotFound):
				s.log.Debug("scheduled campaign no longer runnable", logx.String("campaign", c.ID), logx.Err(err))
			default:
				s.log.Warn("scheduled execution failed", logx.String("campaign", c.ID), logx.Err(err))
			}
		}
	}
}
