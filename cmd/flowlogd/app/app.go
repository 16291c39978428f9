// Package app wires flowlogd's modules together: a persist store, the
// process's host identity, and one logreader/logsource/logwriter
// pipeline per configured route (spec.md §9 "Global state" and §4.5's
// source/reader/writer flow, generalized from one compiled-in pipe to
// a config-driven list of them).
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/plugin/kprom"

	"github.com/flowlog-io/flowlog/drivers"
	"github.com/flowlog-io/flowlog/internal/acktracker"
	"github.com/flowlog-io/flowlog/internal/hostid"
	"github.com/flowlog-io/flowlog/internal/logmsg"
	"github.com/flowlog-io/flowlog/internal/logreader"
	"github.com/flowlog-io/flowlog/internal/logsource"
	"github.com/flowlog-io/flowlog/internal/logwriter"
	"github.com/flowlog-io/flowlog/internal/persist"
	"github.com/flowlog-io/flowlog/internal/stats"
)

// pipeline is one route's fully wired source→reader→destination chain.
type pipeline struct {
	name string

	kafkaSource *drivers.KafkaSource
	kafkaDest   *drivers.KafkaDest
	source      *logsource.Source
	reader      *logreader.Reader
}

// App is the root datastructure, grounded on frigg/app.App's
// module-table bootstrap (spec.md §9).
type App struct {
	cfg    Config
	logger log.Logger

	store     persist.Store
	hostCtx   *hostid.Context
	pipelines []*pipeline
}

// New builds an App, initialising cfg.Target and every module it
// depends on, in dependency order.
func New(cfg Config, logger log.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}
	if err := a.init(cfg.Target); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) init(m moduleName) error {
	for _, dep := range orderedDeps(m) {
		if err := a.initModule(dep); err != nil {
			return err
		}
	}
	return a.initModule(m)
}

// Run blocks until stop is closed, typically by a signal handler in
// main — the equivalent of frigg/app.App.Run blocking on its server,
// without a server of our own to block on.
func (a *App) Run(stop <-chan struct{}) error {
	<-stop
	return nil
}

// Stop tears down every initialised module in reverse dependency
// order.
func (a *App) Stop() error {
	deps := orderedDeps(a.cfg.Target)
	a.stopModule(a.cfg.Target)
	for i := len(deps) - 1; i >= 0; i-- {
		a.stopModule(deps[i])
	}
	return nil
}

// newPipeline wires one route's source, ack tracker, reader, and
// destination together. logsource.Source and logreader.Reader each
// need to call into the other (the source's ack hook wakes the
// reader; the reader polls the source's window before fetching), so
// the source is built first against a forwarding wakeup closure and
// the reader is patched in once it exists — the same indirection
// cmd/frigg/app.App.init avoids by building strictly in dependency
// order, adapted here because source and reader are mutual peers
// rather than a dependency chain.
func (a *App) newPipeline(rc RouteConfig) (*pipeline, error) {
	var metrics *kprom.Metrics
	if prometheus.DefaultRegisterer != nil {
		metrics = kprom.NewMetrics("flowlog_"+sanitizeMetricName(rc.Name), kprom.Registerer(prometheus.DefaultRegisterer))
	}

	kafkaSource, err := drivers.NewKafkaSource(drivers.KafkaSourceConfig{
		Brokers:   rc.Brokers,
		Topic:     rc.Topic,
		Partition: rc.Partition,
		Group:     rc.Group,
		Store:     a.store,
		Metrics:   metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}

	kafkaDest, err := drivers.NewKafkaDest(drivers.KafkaDestConfig{
		Brokers: rc.DestBrokers,
		Topic:   rc.DestTopic,
		Metrics: metrics,
	})
	if err != nil {
		kafkaSource.Close()
		return nil, fmt.Errorf("dest: %w", err)
	}

	factory := acktracker.Factory{
		Kind:       trackerKind(rc.AckTracker),
		WindowSize: rc.InitWindowSize,
		StatsID:    rc.Name,
	}
	if factory.Kind == acktracker.KindBatched {
		factory.BatchSize = rc.BatchSize
		factory.BatchTimeout = rc.BatchTimeout()
		factory.OnBatchAcked = func(records []*acktracker.Record) {
			for _, rec := range records {
				if err := rec.Bookmark.Save(); err != nil {
					level.Warn(a.logger).Log("msg", "bookmark save failed", "route", rc.Name, "err", err)
					continue
				}
				stats.BookmarksSaved.WithLabelValues(rc.Name).Inc()
			}
		}
	}

	var reader *logreader.Reader
	wakeup := func() {
		if reader != nil {
			reader.Wakeup()
		}
	}

	hostCtx := a.hostCtx
	routeLogger := log.With(a.logger, "route", rc.Name)

	source := logsource.New(
		logsource.Options{InitWindowSize: rc.InitWindowSize, StatsID: rc.Name},
		factory,
		kafkaSource.NewKafkaBookmark(),
		wakeup,
		func(msg *logmsg.LogMessage) {
			a.deliver(routeLogger, rc, kafkaDest, msg)
		},
	)

	reader = logreader.New(
		logreader.Options{
			FetchLimit: rc.FetchLimit,
			StatsID:    rc.Name,
			Stamp: func(msg *logmsg.LogMessage) {
				msg.SetHostID(hostCtx.HostID())
				msg.SetRcptID(hostCtx.NextRcptID())
			},
		},
		kafkaSource,
		logreader.NoopPoll{},
		source,
		routeLogger,
	)

	return &pipeline{
		name:        rc.Name,
		kafkaSource: kafkaSource,
		kafkaDest:   kafkaDest,
		source:      source,
		reader:      reader,
	}, nil
}

// deliver hands a fetched message to its route's Kafka destination,
// upgrading a protected delivery via MakeWritable before producing it
// (spec.md §4.6 "make_writable").
func (a *App) deliver(logger log.Logger, rc RouteConfig, dest *drivers.KafkaDest, msg *logmsg.LogMessage) {
	rcptID := msg.RcptID()
	delivery := logwriter.MakeWritable(logwriter.Begin(msg, true))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := dest.Write(ctx, delivery); err != nil {
		level.Warn(logger).Log(
			"msg", "write failed",
			"err", err,
			"correlation_id", a.hostCtx.CorrelationID(rcptID),
		)
	}
}

func trackerKind(name string) acktracker.Kind {
	switch strings.ToLower(name) {
	case "instant_bookmarkless":
		return acktracker.KindInstantBookmarkless
	case "consecutive":
		return acktracker.KindConsecutive
	case "batched":
		return acktracker.KindBatched
	default:
		return acktracker.KindInstant
	}
}

func sanitizeMetricName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
