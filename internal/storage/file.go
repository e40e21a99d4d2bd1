package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"campaignbot/internal/campaign"
	"campaignbot/internal/compliance"
	"campaignbot/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.campaigns.json
//   - <prefix>.approvals.json
//
// Every write rewrites the affected snapshot atomically (tmp + fsync +
// rename), so a write that returned is on disk.
type fileStore struct {
	log logx.Logger

	mu            sync.Mutex
	campaignsPath string
	approvalsPath string

	campaigns map[string]campaign.Campaign
	approvals map[string]compliance.Approval
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(filepath.Base(path)))
	prefix := filepath.Join(dir, base)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:           log,
		campaignsPath: prefix + ".campaigns.json",
		approvalsPath: prefix + ".approvals.json",
		campaigns:     map[string]campaign.Campaign{},
		approvals:     map[string]compliance.Approval{},
	}
	if err := loadSnapshot(s.campaignsPath, &s.campaigns); err != nil {
		return nil, fmt.Errorf("load campaigns snapshot: %w", err)
	}
	if err := loadSnapshot(s.approvalsPath, &s.approvals); err != nil {
		return nil, fmt.Errorf("load approvals snapshot: %w", err)
	}
	return s, nil
}

func loadSnapshot[T any](path string, out *map[string]T) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(out)
}

func writeSnapshot(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *fileStore) flushCampaignsLocked() error {
	return writeSnapshot(s.campaignsPath, s.campaigns)
}

func (s *fileStore) flushApprovalsLocked() error {
	return writeSnapshot(s.approvalsPath, s.approvals)
}

func (s *fileStore) Create(_ context.Context, c campaign.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.ID] = cloneCampaign(c)
	return s.flushCampaignsLocked()
}

func (s *fileStore) Get(_ context.Context, id string) (campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return campaign.Campaign{}, campaign.ErrNotFound
	}
	return cloneCampaign(c), nil
}

func (s *fileStore) Update(_ context.Context, c campaign.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.ID] = cloneCampaign(c)
	return s.flushCampaignsLocked()
}

func (s *fileStore) List(_ context.Context) ([]campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]campaign.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		out = append(out, cloneCampaign(c))
	}
	return out, nil
}

func (s *fileStore) PutApproval(_ context.Context, a compliance.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvals[approvalKey(a.Platform, a.GroupID)] = a
	return s.flushApprovalsLocked()
}

func (s *fileStore) GetApproval(_ context.Context, platform, groupID string) (compliance.Approval, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.approvals[approvalKey(platform, groupID)]
	return a, ok, nil
}

func (s *fileStore) ListApprovals(_ context.Context) ([]compliance.Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]compliance.Approval, 0, len(s.approvals))
	for _, a := range s.approvals {
		out = append(out, a)
	}
	return out, nil
}

func (s *fileStore) Close() error { return nil }
