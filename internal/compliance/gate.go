// Package compliance gates outbound messaging on content policy and
// destination consent.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"campaignbot/pkg/logx"
)

// DefaultProhibitedKeywords is the built-in solicitation/urgency term set,
// matched case-insensitively as substrings.
var DefaultProhibitedKeywords = []string{
	"spam", "scam", "fake", "click here", "act now",
	"limited time", "urgent", "winner", "prize",
}

const (
	DefaultMaxMessageLength = 1000
	DefaultMaxCapsRatio     = 0.5
)

// ErrNoApproval is returned when an operation targets a consent record
// that was never created.
var ErrNoApproval = errors.New("no approval record")

// ValidationError reports the first content rule a message violated.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Approval is a durable consent record for one (platform, group) pair.
// It is only ever created by an explicit Approve call.
type Approval struct {
	Platform     string
	GroupID      string
	AdminContact string
	ApprovedAt   time.Time
	Active       bool
}

// ApprovalStore persists consent records. Writes must be durable before
// returning.
type ApprovalStore interface {
	PutApproval(ctx context.Context, a Approval) error
	GetApproval(ctx context.Context, platform, groupID string) (Approval, bool, error)
	ListApprovals(ctx context.Context) ([]Approval, error)
}

type Config struct {
	ProhibitedKeywords []string
	MaxMessageLength   int
	MaxCapsRatio       float64
}

func (c Config) withDefaults() Config {
	if len(c.ProhibitedKeywords) == 0 {
		c.ProhibitedKeywords = DefaultProhibitedKeywords
	}
	if c.MaxMessageLength <= 0 {
		c.MaxMessageLength = DefaultMaxMessageLength
	}
	if c.MaxCapsRatio <= 0 {
		c.MaxCapsRatio = DefaultMaxCapsRatio
	}
	return c
}

// Gate validates message content and answers consent queries.
type Gate struct {
	mu       sync.RWMutex
	cfg      Config
	keywords []string // lowercased

	approvals ApprovalStore
	log       logx.Logger
	now       func() time.Time
}

func NewGate(cfg Config, approvals ApprovalStore, log logx.Logger) *Gate {
	if log.IsZero() {
		log = logx.Nop()
	}
	g := &Gate{approvals: approvals, log: log, now: time.Now}
	g.Apply(cfg)
	return g
}

// Apply swaps the content policy at runtime (config hot reload).
func (g *Gate) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	low := make([]string, 0, len(cfg.ProhibitedKeywords))
	for _, kw := range cfg.ProhibitedKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			low = append(low, kw)
		}
	}
	g.mu.Lock()
	g.cfg = cfg
	g.keywords = low
	g.mu.Unlock()
}

// ValidateMessage checks text against the content rules in fixed order:
// prohibited keyword, then length, then capitalization. The first violated
// rule wins; nil means the message passed.
func (g *Gate) ValidateMessage(text string) error {
	g.mu.RLock()
	keywords := g.keywords
	maxLen := g.cfg.MaxMessageLength
	maxCaps := g.cfg.MaxCapsRatio
	g.mu.RUnlock()

	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return &ValidationError{Reason: fmt.Sprintf("message contains prohibited keyword: %s", kw)}
		}
	}

	runes := []rune(text)
	if len(runes) > maxLen {
		return &ValidationError{Reason: fmt.Sprintf("message exceeds %d character limit", maxLen)}
	}

	if len(runes) > 0 {
		upper := 0
		for _, r := range runes {
			if unicode.IsUpper(r) {
				upper++
			}
		}
		if float64(upper)/float64(len(runes)) > maxCaps {
			return &ValidationError{Reason: "message contains excessive capitalization"}
		}
	}

	return nil
}

// IsApproved reports whether the pair has an active consent record.
func (g *Gate) IsApproved(ctx context.Context, platform, groupID string) (bool, error) {
	a, ok, err := g.approvals.GetApproval(ctx, platform, groupID)
	if err != nil {
		return false, fmt.Errorf("get approval %s/%s: %w", platform, groupID, err)
	}
	return ok && a.Active, nil
}

// Approve upserts an active consent record with a fresh timestamp. The
// record is durable once Approve returns.
func (g *Gate) Approve(ctx context.Context, platform, groupID, adminContact string) error {
	a := Approval{
		Platform:     platform,
		GroupID:      groupID,
		AdminContact: adminContact,
		ApprovedAt:   g.now(),
		Active:       true,
	}
	if err := g.approvals.PutApproval(ctx, a); err != nil {
		return fmt.Errorf("persist approval %s/%s: %w", platform, groupID, err)
	}
	g.log.Info("group approved", logx.String("platform", platform), logx.String("group", groupID))
	return nil
}

// Deactivate marks an existing consent record inactive. Campaigns created
// earlier are unaffected; only future creation is blocked.
func (g *Gate) Deactivate(ctx context.Context, platform, groupID string) error {
	a, ok, err := g.approvals.GetApproval(ctx, platform, groupID)
	if err != nil {
		return fmt.Errorf("get approval %s/%s: %w", platform, groupID, err)
	}
	if !ok {
		return fmt.Errorf("%s/%s: %w", platform, groupID, ErrNoApproval)
	}
	a.Active = false
	if err := g.approvals.PutApproval(ctx, a); err != nil {
		return fmt.Errorf("persist approval %s/%s: %w", platform, groupID, err)
	}
	g.log.Info("group deactivated", logx.String("platform", platform), logx.String("group", groupID))
	return nil
}
