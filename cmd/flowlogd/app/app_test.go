package app

import (
	"context"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kfake"
	"github.com/twmb/franz-go/pkg/kgo"
)

// TestAppRoutesMessageEndToEnd drives the whole module table — store,
// host id, and a single Kafka-to-Kafka route — against an embedded
// broker, checking that a message produced to the source topic
// arrives on the destination topic. The persisted bookmark is not
// checked here.
func TestAppRoutesMessageEndToEnd(t *testing.T) {
	cluster, err := kfake.NewCluster(kfake.NumBrokers(1), kfake.SeedTopics(1, "in-topic", "out-topic"))
	require.NoError(t, err)
	t.Cleanup(cluster.Close)
	addr := cluster.ListenAddrs()[0]

	producer, err := kgo.NewClient(kgo.SeedBrokers(addr))
	require.NoError(t, err)
	t.Cleanup(producer.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	produceResult := producer.ProduceSync(ctx, &kgo.Record{Topic: "in-topic", Value: []byte("hello")})
	require.NoError(t, produceResult.FirstErr())

	cfg := Config{
		Target:  All,
		DataDir: t.TempDir(),
		Routes: []RouteConfig{{
			Name:      "r1",
			Brokers:   []string{addr},
			Topic:     "in-topic",
			DestTopic: "out-topic",
		}},
	}
	require.NoError(t, cfg.ApplyDefaults())

	a, err := New(cfg, log.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop() })

	consumer, err := kgo.NewClient(kgo.SeedBrokers(addr), kgo.ConsumeTopics("out-topic"))
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	fetchCtx, fetchCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer fetchCancel()

	var got []byte
	for got == nil {
		fetches := consumer.PollFetches(fetchCtx)
		if fetchCtx.Err() != nil {
			t.Fatalf("timed out waiting for the routed record")
		}
		fetches.EachRecord(func(r *kgo.Record) { got = r.Value })
	}
	require.Equal(t, "hello", string(got))
}
