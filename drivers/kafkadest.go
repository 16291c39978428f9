package drivers

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"

	"github.com/flowlog-io/flowlog/internal/logmsg"
	"github.com/flowlog-io/flowlog/internal/logwriter"
	"github.com/flowlog-io/flowlog/internal/refack"
)

// KafkaDestConfig configures a KafkaDest.
type KafkaDestConfig struct {
	Brokers []string
	Topic   string
	Metrics *kprom.Metrics
}

// KafkaDest is a LogWriter-contract participant (spec.md §4.6) that
// produces each delivered message's MESSAGE field to a Kafka topic,
// synchronously, and acks PROCESSED or ABORTED by the produce result.
type KafkaDest struct {
	cfg    KafkaDestConfig
	client *kgo.Client
}

// NewKafkaDest constructs a KafkaDest.
func NewKafkaDest(cfg KafkaDestConfig) (*KafkaDest, error) {
	opts := []kgo.Opt{kgo.SeedBrokers(cfg.Brokers...)}
	if cfg.Metrics != nil {
		opts = append(opts, kgo.WithHooks(cfg.Metrics))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("drivers: kafka dest client: %w", err)
	}
	return &KafkaDest{cfg: cfg, client: client}, nil
}

// Close releases the underlying Kafka client.
func (d *KafkaDest) Close() {
	d.client.Close()
}

var messageHandle = logmsg.HandleForName("MESSAGE")

// Write implements the logwriter.Delivery contract (spec.md §4.6): it
// produces msg's MESSAGE field synchronously and acks exactly once
// before returning.
func (d *KafkaDest) Write(ctx context.Context, delivery *logwriter.Delivery) error {
	msg := delivery.Message()
	value, _ := msg.GetValue(messageHandle)

	rec := &kgo.Record{Topic: d.cfg.Topic, Value: value}
	results := d.client.ProduceSync(ctx, rec)

	if err := results.FirstErr(); err != nil {
		delivery.Ack(refack.Aborted)
		delivery.Release()
		return fmt.Errorf("drivers: kafka produce: %w", err)
	}

	delivery.Ack(refack.Processed)
	delivery.Release()
	return nil
}
