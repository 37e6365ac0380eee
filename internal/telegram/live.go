package telegram

import (
	"context"
	"strings"
	"sync"
	"time"
)

const cursor = " ▌"

// LiveMessage renders a growing reply by editing one message, at most once
// per interval.
type LiveMessage struct {
	mu       sync.Mutex
	edit     func(ctx context.Context, text string) error
	interval time.Duration
	buf      strings.Builder
	last     time.Time
	shown    string
	now      func() time.Time
}

func NewLiveMessage(edit func(ctx context.Context, text string) error, interval time.Duration) *LiveMessage {
	return &LiveMessage{edit: edit, interval: interval, now: time.Now}
}

// Append adds a reply increment and refreshes the message when the interval
// has passed since the previous edit. Edit errors are ignored; the next
// refresh retries with the full text.
func (m *LiveMessage) Append(ctx context.Context, delta string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if delta == "" {
		return
	}
	m.buf.WriteString(delta)

	now := m.now()
	if now.Sub(m.last) < m.interval {
		return
	}
	text := m.buf.String() + cursor
	if text == m.shown {
		return
	}
	m.last = now
	if err := m.edit(ctx, text); err == nil {
		m.shown = text
	}
}
