// Package telegram delivers campaign messages through the Telegram Bot
// API. Send-only: the dispatch engine has no inbound surface.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"campaignbot/pkg/logx"
)

type Config struct {
	Token string
	// RatePerSec caps outbound API calls; Telegram throttles bots hard
	// around 30 messages/second.
	RatePerSec int
}

type Sender struct {
	bot     *tele.Bot
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, log logx.Logger) (*Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 25
	}
	return &Sender{
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}, nil
}

func (s *Sender) Send(ctx context.Context, platform, groupID, text string) (bool, error) {
	if !strings.EqualFold(platform, "telegram") {
		return false, fmt.Errorf("telegram sender: unsupported platform %q", platform)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return false, err
	}
	if _, err := s.bot.Send(recipientFor(groupID), text); err != nil {
		return false, err
	}
	s.log.Debug("telegram message delivered", logx.String("group", groupID))
	return true, nil
}

// recipientFor accepts numeric chat ids and @usernames.
func recipientFor(groupID string) tele.Recipient {
	if n, err := strconv.ParseInt(groupID, 10, 64); err == nil {
		return tele.ChatID(n)
	}
	return chatRef(groupID)
}

type chatRef string

func (c chatRef) Recipient() string { return string(c) }
