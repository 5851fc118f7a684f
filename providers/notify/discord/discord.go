// Package discord delivers notifications through a Discord webhook.
package discord

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/pulseboard/pulse/internal/config"
	"github.com/pulseboard/pulse/internal/httpclient"
	"github.com/pulseboard/pulse/internal/logging"
	"github.com/pulseboard/pulse/providers/notify"
)

// EnvWebhookURL holds the channel webhook, https://discord.com/api/webhooks/<id>/<token>.
const EnvWebhookURL = "DISCORD_WEBHOOK_URL"

// Discord limits.
const (
	maxTitle       = 256
	maxDescription = 4096
	maxFields      = 25
	maxFieldValue  = 1024
)

var severityColor = map[notify.Severity]int{
	notify.SeverityInfo:     0x3498DB,
	notify.SeverityWarning:  0xF1C40F,
	notify.SeverityCritical: 0xE74C3C,
}

func init() {
	notify.Contribute("discord", notify.Candidate{
		Name:         "discord",
		DisplayName:  "Discord",
		IsConfigured: IsConfigured,
		New: func() (notify.Notifier, error) {
			return New(config.Get(EnvWebhookURL, ""))
		},
	})
}

// IsConfigured requires an absolute https webhook URL.
func IsConfigured() bool {
	raw, ok := config.Lookup(EnvWebhookURL)
	if !ok {
		return false
	}
	u, err := url.Parse(raw)
	return err == nil && u.Scheme == "https" && u.Host != ""
}

// Notifier implements notify.Notifier.
type Notifier struct {
	webhook string
	client  *httpclient.BaseClient
}

// New creates a notifier for webhook. wait=true is added so Discord returns
// the created message.
func New(webhook string) (*Notifier, error) {
	u, err := url.Parse(webhook)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("discord: invalid webhook URL")
	}
	// wait=true makes Discord return the created message.
	q := u.Query()
	q.Set("wait", "true")
	u.RawQuery = q.Encode()

	return &Notifier{
		webhook: u.String(),
		client:  httpclient.New("discord", 10*time.Second, logging.Default().With("discord", nil)),
	}, nil
}

func (n *Notifier) Name() string        { return "discord" }
func (n *Notifier) DisplayName() string { return "Discord" }

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
}

type webhookPayload struct {
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds"`
}

type webhookMessage struct {
	ID string `json:"id"`
}

// Send posts msg as one embed. The receipt ID is the Discord message ID.
func (n *Notifier) Send(ctx context.Context, msg notify.Message) (*notify.Receipt, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	req, err := httpclient.NewJSONRequest(ctx, http.MethodPost, n.webhook, buildPayload(msg))
	if err != nil {
		return nil, err
	}

	var created webhookMessage
	if err := n.client.DoJSON(ctx, req, &created); err != nil {
		return nil, err
	}
	return &notify.Receipt{Provider: n.Name(), ID: created.ID, DeliveredAt: time.Now().UTC()}, nil
}

func buildPayload(msg notify.Message) webhookPayload {
	e := embed{
		Title:       notify.Truncate(msg.Title, maxTitle),
		Description: notify.Truncate(msg.Body, maxDescription),
		URL:         msg.URL,
		Color:       severityColor[msg.Severity],
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}

	keys := make([]string, 0, len(msg.Fields))
	for k := range msg.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if len(e.Fields) == maxFields {
			break
		}
		e.Fields = append(e.Fields, embedField{Name: k, Value: notify.Truncate(msg.Fields[k], maxFieldValue), Inline: true})
	}
	return webhookPayload{Username: "Pulse", Embeds: []embed{e}}
}
