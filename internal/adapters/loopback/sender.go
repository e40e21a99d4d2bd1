// Package loopback is a stand-in sender for platforms without a wired
// API adapter: it logs the delivery and reports success.
package loopback

import (
	"context"

	"campaignbot/pkg/logx"
)

type Sender struct {
	log logx.Logger
}

func New(log logx.Logger) *Sender {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sender{log: log}
}

func (s *Sender) Send(ctx context.Context, platform, groupID, text string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.log.Info("delivery simulated",
		logx.String("platform", platform),
		logx.String("group", groupID),
		logx.Int("len", len(text)))
	return true, nil
}
