// Package app wires the campaign engine together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"campaignbot/internal/adapters/loopback"
	"campaignbot/internal/adapters/telegram"
	"campaignbot/internal/campaign"
	"campaignbot/internal/compliance"
	"campaignbot/internal/config"
	"campaignbot/internal/dispatch"
	"campaignbot/internal/ratelimit"
	"campaignbot/internal/scheduler"
	"campaignbot/internal/storage"
	"campaignbot/pkg/logx"
)

type App struct {
	mgr    *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store     storage.Store
	gate      *compliance.Gate
	limiter   *ratelimit.Limiter
	campaigns *campaign.Service
	engine    *dispatch.Engine
	sched     *scheduler.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logxConfig(cfg.Logging))
	mgr.SetLogger(log.With(logx.String("comp", "config")))
	mgr.SetValidator(func(_ context.Context, c *config.Config) error { return Validate(c) })

	busyTimeout, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	gate := compliance.NewGate(gateConfig(cfg.Policy), store, log.With(logx.String("comp", "compliance")))
	limiter := ratelimit.New()

	mux := dispatch.NewMux()
	mux.SetFallback(loopback.New(log.With(logx.String("comp", "sender"))))
	if cfg.Telegram != nil && strings.TrimSpace(cfg.Telegram.Token) != "" {
		tg, err := telegram.New(telegram.Config{
			Token:      cfg.Telegram.Token,
			RatePerSec: cfg.Telegram.RatePerSec,
		}, log.With(logx.String("comp", "telegram")))
		if err != nil {
			_ = store.Close()
			logSvc.Close()
			return nil, err
		}
		mux.Register("telegram", tg)
	}

	jitter, _ := config.ParseDurationOrDefault("dispatch.jitter", cfg.Dispatch.Jitter, 10*time.Second)
	engine := dispatch.New(store, limiter, mux, dispatch.Config{Jitter: jitter},
		log.With(logx.String("comp", "dispatch")))

	minCooldown, _ := config.ParseDurationOrDefault("policy.min_cooldown", cfg.Policy.MinCooldown, 60*time.Second)
	campaigns := campaign.NewService(store, gate, campaign.Bounds{
		MinCooldown:   minCooldown,
		MaxDailyLimit: cfg.Policy.MaxDailyLimit,
	}, log.With(logx.String("comp", "campaign")))

	poll, _ := config.ParseDurationOrDefault("scheduler.poll_interval", cfg.Scheduler.PollInterval, 60*time.Second)
	sched := scheduler.New(scheduler.Config{
		Enabled:      cfg.Scheduler.Enabled,
		PollInterval: poll,
	}, store, engine, log.With(logx.String("comp", "scheduler")))

	return &App{
		mgr:       mgr,
		logSvc:    logSvc,
		log:       log,
		store:     store,
		gate:      gate,
		limiter:   limiter,
		campaigns: campaigns,
		engine:    engine,
		sched:     sched,
	}, nil
}

// Start launches the scheduler and the config hot-reload loop.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.sched.Enabled() {
		a.sched.Start(runCtx)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.mgr.Watch(runCtx)
	}()

	updates := a.mgr.Subscribe(2)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				a.applyConfig(cfg)
			}
		}
	}()

	a.log.Info("campaignbot started", logx.Bool("scheduler", a.sched.Enabled()))
	return nil
}

// applyConfig hot-applies the reloadable subset. Storage driver, telegram
// credentials and the poll interval need a restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.logSvc.Apply(logxConfig(cfg.Logging))
	a.gate.Apply(gateConfig(cfg.Policy))
	jitter, _ := config.ParseDurationOrDefault("dispatch.jitter", cfg.Dispatch.Jitter, 10*time.Second)
	a.engine.Apply(dispatch.Config{Jitter: jitter})
	a.log.Info("runtime config applied")
}

// Stop halts the scheduler, waits for background loops and closes the
// store. In-flight executions finish on their own.
func (a *App) Stop(ctx context.Context) error {
	a.sched.Stop(ctx)
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	err := a.store.Close()
	a.log.Info("campaignbot stopped")
	a.logSvc.Close()
	return err
}

func (a *App) Logger() logx.Logger { return a.log }

// ---- operation facade ----

func (a *App) ApproveGroup(ctx context.Context, platform, groupID, adminContact string) error {
	return a.gate.Approve(ctx, platform, groupID, adminContact)
}

func (a *App) DeactivateGroup(ctx context.Context, platform, groupID string) error {
	return a.gate.Deactivate(ctx, platform, groupID)
}

func (a *App) CreateCampaign(ctx context.Context, req campaign.CreateRequest) (campaign.Campaign, error) {
	return a.campaigns.Create(ctx, req)
}

func (a *App) ExecuteCampaign(ctx context.Context, id string) (*dispatch.Result, error) {
	return a.engine.Execute(ctx, id)
}

func (a *App) Campaigns(ctx context.Context) ([]campaign.Campaign, error) {
	return a.store.List(ctx)
}
