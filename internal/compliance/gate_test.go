package compliance

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"campaignbot/pkg/logx"
)

type memApprovals struct {
	mu sync.Mutex
	m  map[string]Approval
}

func newMemApprovals() *memApprovals { return &memApprovals{m: map[string]Approval{}} }

func (s *memApprovals) PutApproval(_ context.Context, a Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[a.Platform+"|"+a.GroupID] = a
	return nil
}

func (s *memApprovals) GetApproval(_ context.Context, platform, groupID string) (Approval, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.m[platform+"|"+groupID]
	return a, ok, nil
}

func (s *memApprovals) ListApprovals(_ context.Context) ([]Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Approval, 0, len(s.m))
	for _, a := range s.m {
		out = append(out, a)
	}
	return out, nil
}

func TestValidateMessage(t *testing.T) {
	t.Parallel()
	g := NewGate(Config{}, newMemApprovals(), logx.Nop())

	tests := []struct {
		name   string
		text   string
		reason string // substring of the expected reason; empty means valid
	}{
		{name: "plain text", text: "Hello, we are hosting a meetup on Saturday."},
		{name: "empty", text: ""},
		{name: "keyword", text: "You are today's lucky winner", reason: "winner"},
		{name: "keyword case-insensitive", text: "ACT NOW before it is gone", reason: "act now"},
		{name: "too long", text: strings.Repeat("a", 1001), reason: "1000 character limit"},
		{name: "excessive caps", text: "HELLO EVERYONE PLEASE READ", reason: "capitalization"},
		{name: "caps under half", text: "OK fine, sounds good to me"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := g.ValidateMessage(tt.text)
			if tt.reason == "" {
				if err != nil {
					t.Fatalf("ValidateMessage(%q) = %v, want nil", tt.text, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateMessage(%q) = nil, want reason containing %q", tt.text, tt.reason)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error type = %T, want *ValidationError", err)
			}
			if !strings.Contains(verr.Reason, tt.reason) {
				t.Fatalf("reason = %q, want substring %q", verr.Reason, tt.reason)
			}
		})
	}
}

// The keyword rule must fire before the capitalization rule.
func TestValidateMessageKeywordWinsOverCaps(t *testing.T) {
	t.Parallel()
	g := NewGate(Config{}, newMemApprovals(), logx.Nop())

	err := g.ValidateMessage("WIN A FREE PRIZE NOW!!!")
	if err == nil {
		t.Fatal("expected rejection")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if !strings.Contains(verr.Reason, "prize") {
		t.Fatalf("reason = %q, want the keyword violation, not capitalization", verr.Reason)
	}
}

func TestApprovalLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	g := NewGate(Config{}, newMemApprovals(), logx.Nop())

	ok, err := g.IsApproved(ctx, "telegram", "g1")
	if err != nil {
		t.Fatalf("IsApproved: %v", err)
	}
	if ok {
		t.Fatal("unapproved group reported approved")
	}

	if err := g.Approve(ctx, "telegram", "g1", "admin@example.org"); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	// Approve is idempotent.
	if err := g.Approve(ctx, "telegram", "g1", "admin@example.org"); err != nil {
		t.Fatalf("second Approve: %v", err)
	}
	ok, err = g.IsApproved(ctx, "telegram", "g1")
	if err != nil || !ok {
		t.Fatalf("IsApproved after Approve = (%v, %v), want (true, nil)", ok, err)
	}

	if err := g.Deactivate(ctx, "telegram", "g1"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	ok, err = g.IsApproved(ctx, "telegram", "g1")
	if err != nil {
		t.Fatalf("IsApproved after Deactivate: %v", err)
	}
	if ok {
		t.Fatal("deactivated group still reported approved")
	}
}

func TestDeactivateUnknownGroup(t *testing.T) {
	t.Parallel()
	g := NewGate(Config{}, newMemApprovals(), logx.Nop())
	err := g.Deactivate(context.Background(), "telegram", "ghost")
	if !errors.Is(err, ErrNoApproval) {
		t.Fatalf("Deactivate unknown = %v, want ErrNoApproval", err)
	}
}

func TestApplySwapsKeywords(t *testing.T) {
	t.Parallel()
	g := NewGate(Config{}, newMemApprovals(), logx.Nop())

	if err := g.ValidateMessage("special giveaway tonight"); err != nil {
		t.Fatalf("unexpected rejection before Apply: %v", err)
	}
	g.Apply(Config{ProhibitedKeywords: []string{"giveaway"}})
	if err := g.ValidateMessage("special giveaway tonight"); err == nil {
		t.Fatal("expected rejection after Apply")
	}
	// Default keywords were replaced, not merged.
	if err := g.ValidateMessage("grand prize draw"); err != nil {
		t.Fatalf("old keyword still active after Apply: %v", err)
	}
}
