package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"campaignbot/internal/campaign"
	"campaignbot/internal/dispatch"
	"campaignbot/internal/storage"
	"campaignbot/pkg/logx"
)

type fakeExecutor struct {
	mu       sync.Mutex
	executed []string
	err      error
}

func (f *fakeExecutor) Execute(_ context.Context, id string) (*dispatch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, id)
	if f.err != nil {
		return nil, f.err
	}
	return &dispatch.Result{CampaignID: id}, nil
}

func (f *fakeExecutor) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.executed...)
}

func seed(t *testing.T, store campaign.Store, id string, status campaign.Status, schedule time.Time) {
	t.Helper()
	err := store.Create(context.Background(), campaign.Campaign{
		ID: id, Platform: "telegram", Groups: []string{"g1"},
		Template: "hello", Cooldown: time.Minute, DailyLimit: 10,
		Status: status, ScheduleAt: schedule, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestTickExecutesDueCampaignsOnly(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	now := time.Now()
	seed(t, store, "due_1", campaign.StatusPending, now.Add(-time.Minute))
	seed(t, store, "future_1", campaign.StatusPending, now.Add(time.Hour))
	seed(t, store, "unscheduled_1", campaign.StatusPending, time.Time{})
	seed(t, store, "done_1", campaign.StatusCompleted, now.Add(-time.Minute))
	seed(t, store, "running_1", campaign.StatusRunning, now.Add(-time.Minute))

	exec := &fakeExecutor{}
	s := New(Config{Enabled: true, PollInterval: time.Hour}, store, exec, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	s.tick()

	calls := exec.calls()
	if len(calls) != 1 || calls[0] != "due_1" {
		t.Fatalf("executed = %v, want [due_1]", calls)
	}
}

func TestTickSurvivesExecutorErrors(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	now := time.Now()
	seed(t, store, "due_a", campaign.StatusPending, now.Add(-2*time.Minute))
	seed(t, store, "due_b", campaign.StatusPending, now.Add(-time.Minute))

	exec := &fakeExecutor{err: dispatch.ErrAlreadyTerminal}
	s := New(Config{Enabled: true, PollInterval: time.Hour}, store, exec, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	s.tick()

	if got := len(exec.calls()); got != 2 {
		t.Fatalf("executed %d campaigns, want 2 (errors must not abort the tick)", got)
	}
}

func TestStopPreventsFurtherTicks(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	seed(t, store, "due_x", campaign.StatusPending, time.Now().Add(-time.Minute))

	exec := &fakeExecutor{}
	s := New(Config{Enabled: true, PollInterval: time.Hour}, store, exec, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	s.Stop(context.Background())

	s.tick()

	if got := len(exec.calls()); got != 0 {
		t.Fatalf("executed %d campaigns after Stop, want 0", got)
	}
}

func TestPollLoopFires(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	seed(t, store, "due_y", campaign.StatusPending, time.Now().Add(-time.Minute))

	exec := &fakeExecutor{}
	s := New(Config{Enabled: true, PollInterval: 20 * time.Millisecond}, store, exec, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	deadline := time.After(3 * time.Second)
	for {
		if len(exec.calls()) > 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("poll loop never executed the due campaign")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
