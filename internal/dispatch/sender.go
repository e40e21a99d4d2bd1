package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Sender delivers one message to one destination. A false return is an
// explicit delivery refusal; an error is a delivery fault. Real platform
// API integration lives behind this interface.
type Sender interface {
	Send(ctx context.Context, platform, groupID, text string) (bool, error)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, platform, groupID, text string) (bool, error)

func (f SenderFunc) Send(ctx context.Context, platform, groupID, text string) (bool, error) {
	return f(ctx, platform, groupID, text)
}

// Mux routes sends to per-platform senders, with an optional fallback for
// platforms without a dedicated adapter.
type Mux struct {
	mu       sync.RWMutex
	senders  map[string]Sender
	fallback Sender
}

func NewMux() *Mux {
	return &Mux{senders: map[string]Sender{}}
}

func (m *Mux) Register(platform string, s Sender) {
	m.mu.Lock()
	m.senders[strings.ToLower(platform)] = s
	m.mu.Unlock()
}

func (m *Mux) SetFallback(s Sender) {
	m.mu.Lock()
	m.fallback = s
	m.mu.Unlock()
}

func (m *Mux) Send(ctx context.Context, platform, groupID, text string) (bool, error) {
	m.mu.RLock()
	s, ok := m.senders[strings.ToLower(platform)]
	if !ok {
		s = m.fallback
	}
	m.mu.RUnlock()

	if s == nil {
		return false, fmt.Errorf("%w: %s", ErrNoSender, platform)
	}
	return s.Send(ctx, platform, groupID, text)
}
