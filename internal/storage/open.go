package storage

import (
	"errors"
	"strings"
	"time"

	"campaignbot/internal/campaign"
	"campaignbot/internal/compliance"
	"campaignbot/pkg/logx"
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (modernc, cgo-free)
//   - "file": dependency-free JSON snapshot files
//   - "memory": in-process only (tests, ephemeral runs)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence collaborator: one backend serves both the
// campaign store and the approval store. Writes are flushed before the
// call returns.
type Store interface {
	campaign.Store
	compliance.ApprovalStore
	Close() error
}

// Open initializes the configured driver.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "file":
		return openFile(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
