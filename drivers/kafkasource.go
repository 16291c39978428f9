package drivers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"

	"github.com/flowlog-io/flowlog/internal/acktracker"
	"github.com/flowlog-io/flowlog/internal/bookmark"
	"github.com/flowlog-io/flowlog/internal/logreader"
	"github.com/flowlog-io/flowlog/internal/persist"
)

// KafkaSourceConfig configures a KafkaSource (spec.md §6.1, §6.2).
type KafkaSourceConfig struct {
	Brokers   []string
	Topic     string
	Partition int32
	Group     string // used only to namespace the bookmark key

	Store   persist.Store
	Metrics *kprom.Metrics
}

// KafkaSource is a logreader.LogProtoServer reading one Kafka
// topic/partition at a fixed offset, with its read position persisted
// as a bookmark keyed per spec.md §6.2.
type KafkaSource struct {
	cfg    KafkaSourceConfig
	client *kgo.Client

	pending []*kgo.Record
}

// NewKafkaSource constructs a KafkaSource and resumes from whatever
// offset is already persisted under this config's bookmark key,
// falling back to the partition's log start if none is found.
func NewKafkaSource(cfg KafkaSourceConfig) (*KafkaSource, error) {
	startOffset := kgo.NewOffset().AtStart()
	if cfg.Store != nil {
		if h, _, _, err := cfg.Store.LookupEntry(KafkaBookmarkKey(cfg.Group, cfg.Topic, cfg.Partition)); err == nil {
			if buf, err := cfg.Store.MapEntry(h); err == nil {
				if offset, ok, err := DecodeKafkaOffset(buf); err == nil && ok {
					startOffset = kgo.NewOffset().At(offset)
				}
				_ = cfg.Store.UnmapEntry(h)
			}
		}
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{
			cfg.Topic: {cfg.Partition: startOffset},
		}),
	}
	if cfg.Metrics != nil {
		opts = append(opts, kgo.WithHooks(cfg.Metrics))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("drivers: kafka source client: %w", err)
	}

	return &KafkaSource{cfg: cfg, client: client}, nil
}

// Close releases the underlying Kafka client.
func (s *KafkaSource) Close() {
	s.client.Close()
}

// Handshake is a no-op: kgo.NewClient has already established
// connectivity by the time a KafkaSource exists.
func (s *KafkaSource) Handshake() (logreader.HandshakeStatus, error) {
	return logreader.HandshakeSuccess, nil
}

// Prepare always asks the reader to reschedule immediately: kgo
// manages its own connections and in-flight fetch requests
// internally, so there is no raw fd for the reader's poller to watch
// the way a byte-stream proto would use (spec.md §4.5.1's POLL_IO
// branch does not apply to this proto).
func (s *KafkaSource) Prepare() (logreader.PrepareResult, error) {
	return logreader.PrepareResult{Action: logreader.ActionForceSchedule}, nil
}

// fetchPollTimeout bounds one PollFetches call so a fetch job blocked
// waiting on new records can never stall Reader.Close (spec.md
// §4.5.3) — without it, an idle partition would leave PollFetches
// blocked on context.Background() forever.
const fetchPollTimeout = 5 * time.Second

// Fetch pops one buffered record, refilling the buffer with a
// PollFetches call when empty, and stamps the tracker's bookmark with
// this record's offset.
func (s *KafkaSource) Fetch(rec *acktracker.Record) (logreader.FetchResult, error) {
	if len(s.pending) == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), fetchPollTimeout)
		fetches := s.client.PollFetches(ctx)
		cancel()
		// an expired poll deadline on an idle partition is not an error:
		// it falls through to FetchNoData below.
		if errs := fetches.Errors(); len(errs) > 0 && !errors.Is(errs[0].Err, context.DeadlineExceeded) {
			return logreader.FetchResult{Status: logreader.FetchError}, errs[0].Err
		}
		fetches.EachRecord(func(r *kgo.Record) {
			s.pending = append(s.pending, r)
		})
		if len(s.pending) == 0 {
			return logreader.FetchResult{Status: logreader.FetchNoData}, nil
		}
	}

	r := s.pending[0]
	s.pending = s.pending[1:]

	if rec.Bookmark != nil {
		s.stampBookmark(rec.Bookmark, r.Offset)
	}

	return logreader.FetchResult{
		Status:  logreader.FetchSuccess,
		Message: r.Value,
		Aux: map[string][]byte{
			"KAFKA_KEY": r.Key,
		},
	}, nil
}

func (s *KafkaSource) stampBookmark(b *bookmark.Bookmark, offset int64) {
	_, body := EncodeKafkaOffset(offset)
	b.Body = body
}

// NewKafkaBookmark builds the NewBookmarkFunc a Factory needs to bind
// bookmarks to this source's store and key.
func (s *KafkaSource) NewKafkaBookmark() acktracker.NewBookmarkFunc {
	key := KafkaBookmarkKey(s.cfg.Group, s.cfg.Topic, s.cfg.Partition)
	store := s.cfg.Store
	return func() *bookmark.Bookmark {
		return bookmark.New(store, func(b *bookmark.Bookmark) error {
			if store == nil {
				return nil
			}
			h, err := store.AllocEntry(key, len(b.Body))
			if err != nil {
				return err
			}
			buf, err := store.MapEntry(h)
			if err != nil {
				return err
			}
			copy(buf, b.Body)
			if err := store.UnmapEntry(h); err != nil {
				return err
			}
			if ls, ok := store.(*persist.LocalStore); ok {
				ls.SetVersion(h, kafkaBookmarkVersion)
			}
			return store.Commit()
		}, func(*bookmark.Bookmark) {})
	}
}
