// Package slack delivers notifications through a Slack incoming webhook.
package slack

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pulseboard/pulse/internal/config"
	"github.com/pulseboard/pulse/internal/httpclient"
	"github.com/pulseboard/pulse/internal/logging"
	"github.com/pulseboard/pulse/providers/notify"
)

// EnvWebhookURL holds an incoming webhook URL.
const EnvWebhookURL = "SLACK_WEBHOOK_URL"

var severityEmoji = map[notify.Severity]string{
	notify.SeverityInfo:     ":information_source:",
	notify.SeverityWarning:  ":warning:",
	notify.SeverityCritical: ":rotating_light:",
}

func init() {
	notify.Contribute("slack", notify.Candidate{
		Name:         "slack",
		DisplayName:  "Slack",
		IsConfigured: IsConfigured,
		New: func() (notify.Notifier, error) {
			return New(config.Get(EnvWebhookURL, ""))
		},
	})
}

// IsConfigured requires an https webhook URL.
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

// New creates a notifier posting to webhook.
func New(webhook string) (*Notifier, error) {
	if u, err := url.Parse(webhook); err != nil || u.Host == "" {
		return nil, fmt.Errorf("slack: invalid webhook URL")
	}
	return &Notifier{
		webhook: webhook,
		client:  httpclient.New("slack", 10*time.Second, logging.Default().With("slack", nil)),
	}, nil
}

func (n *Notifier) Name() string        { return "slack" }
func (n *Notifier) DisplayName() string { return "Slack" }

type text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type block struct {
	Type   string `json:"type"`
	Text   *text  `json:"text,omitempty"`
	Fields []text `json:"fields,omitempty"`
}

type payload struct {
	Text   string  `json:"text"`
	Blocks []block `json:"blocks"`
}

// Send posts the message. Incoming webhooks answer with a plain "ok" and no
// message ID, so the receipt carries a generated delivery ID.
func (n *Notifier) Send(ctx context.Context, msg notify.Message) (*notify.Receipt, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	req, err := httpclient.NewJSONRequest(ctx, http.MethodPost, n.webhook, buildPayload(msg))
	if err != nil {
		return nil, err
	}
	if err := n.client.DoJSON(ctx, req, nil); err != nil {
		return nil, err
	}
	return &notify.Receipt{Provider: n.Name(), ID: uuid.NewString(), DeliveredAt: time.Now().UTC()}, nil
}

func buildPayload(msg notify.Message) payload {
	var blocks []block
	if msg.Title != "" {
		blocks = append(blocks, block{Type: "header", Text: &text{Type: "plain_text", Text: notify.Truncate(msg.Title, 150)}})
	}

	var body strings.Builder
	if emoji, ok := severityEmoji[msg.Severity]; ok {
		body.WriteString(emoji + " ")
	}
	body.WriteString(msg.Body)
	if msg.URL != "" {
		fmt.Fprintf(&body, "\n<%s|Open>", msg.URL)
	}
	if strings.TrimSpace(body.String()) != "" {
		blocks = append(blocks, block{Type: "section", Text: &text{Type: "mrkdwn", Text: notify.Truncate(body.String(), 3000)}})
	}

	if len(msg.Fields) > 0 {
		keys := make([]string, 0, len(msg.Fields))
		for k := range msg.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := block{Type: "section"}
		for _, k := range keys {
			if len(fields.Fields) == 10 {
				break
			}
			fields.Fields = append(fields.Fields, text{Type: "mrkdwn", Text: fmt.Sprintf("*%s*\n%s", k, msg.Fields[k])})
		}
		blocks = append(blocks, fields)
	}

	return payload{Text: notify.Truncate(msg.Text(), 3000), Blocks: blocks}
}
