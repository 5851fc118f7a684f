// Package kafka produces notifications as records on a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/pulseboard/pulse/internal/config"
	"github.com/pulseboard/pulse/internal/logging"
	"github.com/pulseboard/pulse/providers/notify"
	"github.com/pulseboard/pulse/registry"
)

const (
	EnvBrokers     = "NOTIFY_KAFKA_BROKERS"
	EnvTopic       = "NOTIFY_KAFKA_TOPIC"
	EnvCreateTopic = "NOTIFY_KAFKA_CREATE_TOPIC"

	DefaultTopic = "pulse.notifications"
)

func init() {
	notify.Contribute("kafka", notify.Candidate{
		Name:         "kafka",
		DisplayName:  "Kafka",
		IsConfigured: IsConfigured,
		New: func() (notify.Notifier, error) {
			create, _ := strconv.ParseBool(config.Get(EnvCreateTopic, "false"))
			return Dial(Config{
				Brokers:     config.List(EnvBrokers),
				Topic:       config.Get(EnvTopic, DefaultTopic),
				CreateTopic: create,
			})
		},
	})
}

// IsConfigured requires at least one broker and every broker to be a
// host:port pair.
func IsConfigured() bool {
	return validBrokers(config.List(EnvBrokers)) == nil
}

func validBrokers(brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("kafka: %s is empty", EnvBrokers)
	}
	for _, b := range brokers {
		host, port, err := net.SplitHostPort(b)
		if err != nil || host == "" || port == "" {
			return fmt.Errorf("kafka: invalid broker address %q", b)
		}
	}
	return nil
}

// Config selects the brokers and topic. CreateTopic creates the topic with
// broker defaults before the first record is produced.
type Config struct {
	Brokers     []string
	Topic       string
	CreateTopic bool
}

// producer is the part of *kgo.Client the notifier uses.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Notifier implements notify.Notifier.
type Notifier struct {
	producer producer
	topic    string
	logger   registry.Logger

	// ensure runs before produce when topic creation is on, until it
	// first succeeds.
	ensure   func(ctx context.Context) error
	ensureMu sync.Mutex
	created  bool
}

// Dial creates a franz-go client. No connection is made until the first
// Send.
func Dial(cfg Config) (*Notifier, error) {
	if err := validBrokers(cfg.Brokers); err != nil {
		return nil, err
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ClientID("pulse"),
		kgo.ProducerLinger(0),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: failed to create client: %w", err)
	}

	n := newNotifier(client, cfg.Topic)
	if cfg.CreateTopic {
		admin := kadm.NewClient(client)
		n.ensure = func(ctx context.Context) error {
			return createTopic(ctx, admin, cfg.Topic)
		}
	}
	return n, nil
}

func newNotifier(p producer, topic string) *Notifier {
	return &Notifier{
		producer: p,
		topic:    topic,
		logger:   logging.Default().With("kafka-notify", map[string]interface{}{"topic": topic}),
	}
}

func createTopic(ctx context.Context, admin *kadm.Client, topic string) error {
	resp, err := admin.CreateTopic(ctx, -1, -1, nil, topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("kafka: failed to create topic %s: %w", topic, err)
	}
	return nil
}

func (n *Notifier) Name() string        { return "kafka" }
func (n *Notifier) DisplayName() string { return "Kafka" }

// Send produces one record keyed by severity and waits for the broker
// acknowledgement. The receipt ID is topic/partition/offset.
func (n *Notifier) Send(ctx context.Context, msg notify.Message) (*notify.Receipt, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	if err := n.ensureTopic(ctx); err != nil {
		return nil, err
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("kafka: failed to encode message: %w", err)
	}

	severity := msg.Severity
	if severity == "" {
		severity = notify.SeverityInfo
	}
	record := &kgo.Record{
		Topic: n.topic,
		Key:   []byte(severity),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "content_type", Value: []byte("application/json")},
		},
	}

	produced, err := n.producer.ProduceSync(ctx, record).First()
	if err != nil {
		return nil, fmt.Errorf("kafka: produce to %s failed: %w", n.topic, err)
	}

	n.logger.Debug("Notification produced", map[string]interface{}{
		"partition": produced.Partition,
		"offset":    produced.Offset,
	})
	return &notify.Receipt{
		Provider:    n.Name(),
		ID:          fmt.Sprintf("%s/%d/%d", produced.Topic, produced.Partition, produced.Offset),
		DeliveredAt: time.Now().UTC(),
	}, nil
}

// ensureTopic creates the topic if needed. Failures are not remembered so a
// later Send retries once the broker is reachable.
func (n *Notifier) ensureTopic(ctx context.Context) error {
	if n.ensure == nil {
		return nil
	}
	n.ensureMu.Lock()
	defer n.ensureMu.Unlock()
	if n.created {
		return nil
	}
	if err := n.ensure(ctx); err != nil {
		n.logger.Warn("Topic creation failed, will retry on next send", map[string]interface{}{
			"operation": "kafka_ensure_topic",
			"error":     err.Error(),
		})
		return err
	}
	n.created = true
	return nil
}

// Close shuts down the client.
func (n *Notifier) Close() error {
	n.producer.Close()
	return nil
}
