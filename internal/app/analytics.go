package app

import (
	"context"
	"sort"

	"campaignbot/internal/campaign"
)

// Analytics is an aggregate snapshot over all stored campaigns plus the
// in-memory rate-limiter counters.
type Analytics struct {
	TotalCampaigns int                       `json:"total_campaigns"`
	ByStatus       map[campaign.Status]int   `json:"by_status"`
	TotalSent      int                       `json:"total_sent"`
	TotalFailed    int                       `json:"total_failed"`
	SuccessRate    float64                   `json:"success_rate"` // percent
	Platforms      []string                  `json:"platforms"`
	DailySends     map[string]map[string]int `json:"daily_sends"`
}

func (a *App) Analytics(ctx context.Context) (Analytics, error) {
	campaigns, err := a.store.List(ctx)
	if err != nil {
		return Analytics{}, err
	}

	out := Analytics{
		TotalCampaigns: len(campaigns),
		ByStatus:       make(map[campaign.Status]int, 4),
		DailySends:     a.limiter.DayCounts(),
	}
	platforms := make(map[string]struct{})
	for _, c := range campaigns {
		out.ByStatus[c.Status]++
		out.TotalSent += c.SentCount
		out.TotalFailed += c.FailedCount
		platforms[c.Platform] = struct{}{}
	}
	if total := out.TotalSent + out.TotalFailed; total > 0 {
		out.SuccessRate = float64(out.TotalSent) / float64(total) * 100
	}
	out.Platforms = make([]string, 0, len(platforms))
	for p := range platforms {
		out.Platforms = append(out.Platforms, p)
	}
	sort.Strings(out.Platforms)
	return out, nil
}
