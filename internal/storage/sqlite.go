package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"campaignbot/internal/campaign"
	"campaignbot/internal/compliance"
	"campaignbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &sqliteStore{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return s, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Create(ctx context.Context, c campaign.Campaign) error {
	return s.upsertCampaign(ctx, c)
}

func (s *sqliteStore) Update(ctx context.Context, c campaign.Campaign) error {
	return s.upsertCampaign(ctx, c)
}

func (s *sqliteStore) upsertCampaign(ctx context.Context, c campaign.Campaign) error {
	groups, err := json.Marshal(c.Groups)
	if err != nil {
		return err
	}
	var schedule any
	if !c.ScheduleAt.IsZero() {
		schedule = c.ScheduleAt.Format(time.RFC3339Nano)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO campaigns(id, platform, groups_json, template, schedule_at, cooldown_seconds, daily_limit, status, sent_count, failed_count, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   platform=excluded.platform, groups_json=excluded.groups_json,
		   template=excluded.template, schedule_at=excluded.schedule_at,
		   cooldown_seconds=excluded.cooldown_seconds, daily_limit=excluded.daily_limit,
		   status=excluded.status, sent_count=excluded.sent_count,
		   failed_count=excluded.failed_count, created_at=excluded.created_at`,
		c.ID, c.Platform, string(groups), c.Template, schedule,
		int64(c.Cooldown/time.Second), c.DailyLimit, string(c.Status),
		c.SentCount, c.FailedCount, c.CreatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) Get(ctx context.Context, id string) (campaign.Campaign, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, platform, groups_json, template, schedule_at, cooldown_seconds, daily_limit, status, sent_count, failed_count, created_at
		 FROM campaigns WHERE id = ?`, id)
	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return campaign.Campaign{}, campaign.ErrNotFound
	}
	return c, err
}

func (s *sqliteStore) List(ctx context.Context) ([]campaign.Campaign, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, platform, groups_json, template, schedule_at, cooldown_seconds, daily_limit, status, sent_count, failed_count, created_at
		 FROM campaigns ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []campaign.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(r rowScanner) (campaign.Campaign, error) {
	var (
		c               campaign.Campaign
		groupsJSON      string
		schedule        sql.NullString
		cooldownSeconds int64
		status          string
		createdAt       string
	)
	err := r.Scan(&c.ID, &c.Platform, &groupsJSON, &c.Template, &schedule,
		&cooldownSeconds, &c.DailyLimit, &status, &c.SentCount, &c.FailedCount, &createdAt)
	if err != nil {
		return campaign.Campaign{}, err
	}
	if err := json.Unmarshal([]byte(groupsJSON), &c.Groups); err != nil {
		return campaign.Campaign{}, fmt.Errorf("campaign %s: decode groups: %w", c.ID, err)
	}
	if schedule.Valid && schedule.String != "" {
		t, err := time.Parse(time.RFC3339Nano, schedule.String)
		if err != nil {
			return campaign.Campaign{}, fmt.Errorf("campaign %s: decode schedule_at: %w", c.ID, err)
		}
		c.ScheduleAt = t
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return campaign.Campaign{}, fmt.Errorf("campaign %s: decode created_at: %w", c.ID, err)
	}
	c.CreatedAt = t
	c.Cooldown = time.Duration(cooldownSeconds) * time.Second
	c.Status = campaign.Status(status)
	return c, nil
}

func (s *sqliteStore) PutApproval(ctx context.Context, a compliance.Approval) error {
	active := 0
	if a.Active {
		active = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO approvals(platform, group_id, admin_contact, approved_at, active)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(platform, group_id) DO UPDATE SET
		   admin_contact=excluded.admin_contact, approved_at=excluded.approved_at, active=excluded.active`,
		a.Platform, a.GroupID, a.AdminContact, a.ApprovedAt.Format(time.RFC3339Nano), active,
	)
	return err
}

func (s *sqliteStore) GetApproval(ctx context.Context, platform, groupID string) (compliance.Approval, bool, error) {
	var (
		a          compliance.Approval
		approvedAt string
		active     int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT platform, group_id, admin_contact, approved_at, active FROM approvals WHERE platform = ? AND group_id = ?`,
		platform, groupID,
	).Scan(&a.Platform, &a.GroupID, &a.AdminContact, &approvedAt, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return compliance.Approval{}, false, nil
	}
	if err != nil {
		return compliance.Approval{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, approvedAt)
	if err != nil {
		return compliance.Approval{}, false, fmt.Errorf("approval %s/%s: decode approved_at: %w", platform, groupID, err)
	}
	a.ApprovedAt = t
	a.Active = active != 0
	return a, true, nil
}

func (s *sqliteStore) ListApprovals(ctx context.Context) ([]compliance.Approval, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT platform, group_id, admin_contact, approved_at, active FROM approvals ORDER BY platform, group_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []compliance.Approval
	for rows.Next() {
		var (
			a          compliance.Approval
			approvedAt string
			active     int
		)
		if err := rows.Scan(&a.Platform, &a.GroupID, &a.AdminContact, &approvedAt, &active); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, approvedAt)
		if err != nil {
			return nil, fmt.Errorf("approval %s/%s: decode approved_at: %w", a.Platform, a.GroupID, err)
		}
		a.ApprovedAt = t
		a.Active = active != 0
		out = append(out, a)
	}
	return out, rows.Err()
}
