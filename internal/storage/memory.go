package storage

import (
	"context"
	"sync"

	"campaignbot/internal/campaign"
	"campaignbot/internal/compliance"
)

// Memory is a map-backed Store. It satisfies the durability contract only
// for the lifetime of the process; intended for tests and ephemeral runs.
type Memory struct {
	mu        sync.RWMutex
	campaigns map[string]campaign.Campaign
	approvals map[string]compliance.Approval
}

func NewMemory() *Memory {
	return &Memory{
		campaigns: map[string]campaign.Campaign{},
		approvals: map[string]compliance.Approval{},
	}
}

func cloneCampaign(c campaign.Campaign) campaign.Campaign {
	c.Groups = append([]string(nil), c.Groups...)
	return c
}

func (s *Memory) Create(_ context.Context, c campaign.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.ID] = cloneCampaign(c)
	return nil
}

func (s *Memory) Get(_ context.Context, id string) (campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return campaign.Campaign{}, campaign.ErrNotFound
	}
	return cloneCampaign(c), nil
}

func (s *Memory) Update(_ context.Context, c campaign.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.ID] = cloneCampaign(c)
	return nil
}

func (s *Memory) List(_ context.Context) ([]campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]campaign.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		out = append(out, cloneCampaign(c))
	}
	return out, nil
}

func approvalKey(platform, groupID string) string { return platform + "|" + groupID }

func (s *Memory) PutApproval(_ context.Context, a compliance.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvals[approvalKey(a.Platform, a.GroupID)] = a
	return nil
}

func (s *Memory) GetApproval(_ context.Context, platform, groupID string) (compliance.Approval, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.approvals[approvalKey(platform, groupID)]
	return a, ok, nil
}

func (s *Memory) ListApprovals(_ context.Context) ([]compliance.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]compliance.Approval, 0, len(s.approvals))
	for _, a := range s.approvals {
		out = append(out, a)
	}
	return out, nil
}

func (s *Memory) Close() error { return nil }
