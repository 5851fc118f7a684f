// Package notify defines the notification channel contract. Every configured
// channel is active at the same time; Broadcast fans a message out to all of
// them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pulseboard/pulse/registry"
)

// DomainKey is the key this contract is registered under.
const DomainKey = "notifications"

// Extensions is the namespace notification channels contribute to.
var Extensions = registry.NewNamespace("providers/notify")

// ErrInvalidMessage is returned for a message no channel can deliver.
var ErrInvalidMessage = errors.New("invalid notification message")

// MaxBodyLength bounds Message.Body in runes.
const MaxBodyLength = 4000

// Notifier delivers messages to one channel.
type Notifier interface {
	registry.Provider

	// Send delivers msg and returns the channel's receipt. It does not
	// retry on 4xx responses.
	Send(ctx context.Context, msg Message) (*Receipt, error)
}

// Candidate describes a notification channel before activation.
type Candidate = registry.Candidate[Notifier]

// Contribute adds a channel module to the notify namespace.
func Contribute(id string, c Candidate) {
	Extensions.Contribute(id, func() ([]any, error) {
		return []any{c}, nil
	})
}

// Severity tags a message for channels that render it.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Message is a channel-neutral notification.
type Message struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Severity Severity          `json:"severity,omitempty"`
	URL      string            `json:"url,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// Validate requires a title or a body and bounds the body length.
func (m Message) Validate() error {
	if strings.TrimSpace(m.Title) == "" && strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("%w: title or body is required", ErrInvalidMessage)
	}
	if n := utf8.RuneCountInString(m.Body); n > MaxBodyLength {
		return fmt.Errorf("%w: body has %d characters, limit is %d", ErrInvalidMessage, n, MaxBodyLength)
	}
	switch m.Severity {
	case "", SeverityInfo, SeverityWarning, SeverityCritical:
	default:
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidMessage, m.Severity)
	}
	return nil
}

// Text renders the message as plain text for channels without rich layout.
func (m Message) Text() string {
	var b strings.Builder
	if m.Title != "" {
		b.WriteString(m.Title)
	}
	if m.Body != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.Body)
	}
	if m.URL != "" {
		b.WriteString("\n")
		b.WriteString(m.URL)
	}
	return b.String()
}

// Receipt confirms a delivery.
type Receipt struct {
	Provider    string    `json:"provider"`
	ID          string    `json:"id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
// A negative n is treated as zero.
func Truncate(s string, n int) string {
	n = max(n, 0)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 1 {
		return string([]rune(s)[:n])
	}
	return string([]rune(s)[:n-1]) + "…"
}
