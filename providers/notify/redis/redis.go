// Package redis publishes notifications to a Redis pub/sub channel so that
// other services can fan them out.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/pulseboard/pulse/internal/config"
	"github.com/pulseboard/pulse/internal/logging"
	"github.com/pulseboard/pulse/providers/notify"
	"github.com/pulseboard/pulse/registry"
)

const (
	EnvURL     = "NOTIFY_REDIS_URL"
	EnvChannel = "NOTIFY_REDIS_CHANNEL"

	DefaultChannel = "pulse:notifications"
)

func init() {
	notify.Contribute("redis", notify.Candidate{
		Name:         "redis",
		DisplayName:  "Redis Pub/Sub",
		IsConfigured: IsConfigured,
		New: func() (notify.Notifier, error) {
			return NewFromURL(config.Get(EnvURL, ""), config.Get(EnvChannel, DefaultChannel))
		},
	})
}

// IsConfigured parses the URL without dialing.
func IsConfigured() bool {
	raw, ok := config.Lookup(EnvURL)
	if !ok {
		return false
	}
	_, err := redis.ParseURL(raw)
	return err == nil
}

// Event is the JSON document published for every message.
type Event struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	Message   notify.Message `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
}

// Notifier implements notify.Notifier.
type Notifier struct {
	client  *redis.Client
	channel string
	logger  registry.Logger
}

// NewFromURL parses a redis:// or rediss:// URL and creates the client. No
// connection is made until the first Send.
func NewFromURL(rawURL, channel string) (*Notifier, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid %s: %w", EnvURL, err)
	}
	return New(redis.NewClient(opt), channel), nil
}

// New wraps an existing client. The notifier owns it and closes it on Close.
func New(client *redis.Client, channel string) *Notifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Notifier{
		client:  client,
		channel: channel,
		logger:  logging.Default().With("redis-notify", map[string]interface{}{"channel": channel}),
	}
}

func (n *Notifier) Name() string        { return "redis" }
func (n *Notifier) DisplayName() string { return "Redis Pub/Sub" }

// Send publishes msg wrapped in an Event. A publish nobody receives still
// succeeds. The receipt ID is the event ID.
func (n *Notifier) Send(ctx context.Context, msg notify.Message) (*notify.Receipt, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	event := Event{ID: uuid.NewString(), Source: "pulse", Message: msg, Timestamp: now}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("redis: failed to encode event: %w", err)
	}

	receivers, err := n.client.Publish(ctx, n.channel, data).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: publish to %s failed: %w", n.channel, err)
	}
	if receivers == 0 {
		n.logger.Warn("Notification published with no subscribers", map[string]interface{}{"event_id": event.ID})
	}
	return &notify.Receipt{Provider: n.Name(), ID: event.ID, DeliveredAt: now}, nil
}

// Close closes the client.
func (n *Notifier) Close() error {
	return n.client.Close()
}
