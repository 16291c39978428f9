package app

import (
	"flag"
	"fmt"
	"strings"
	"time"
)

// RouteConfig describes one Kafka-to-Kafka pipeline: a source
// topic/partition, the ack-tracker variant binding delivery to a
// persisted bookmark, and the destination topic (spec.md §6.1, §6.2).
type RouteConfig struct {
	Name string `yaml:"name"`

	Brokers   []string `yaml:"brokers"`
	Topic     string   `yaml:"topic"`
	Partition int32    `yaml:"partition"`
	Group     string   `yaml:"group"`

	DestBrokers []string `yaml:"dest_brokers"`
	DestTopic   string   `yaml:"dest_topic"`

	InitWindowSize int    `yaml:"init_window_size"`
	FetchLimit     int    `yaml:"fetch_limit"`
	AckTracker     string `yaml:"ack_tracker"` // instant | instant_bookmarkless | consecutive | batched

	BatchSize       int    `yaml:"batch_size"`
	BatchTimeoutRaw string `yaml:"batch_timeout"` // parsed with time.ParseDuration, e.g. "5s"

	batchTimeout time.Duration
}

// BatchTimeout is the parsed form of BatchTimeoutRaw, valid once
// applyDefaults has run.
func (r RouteConfig) BatchTimeout() time.Duration { return r.batchTimeout }

// applyDefaults fills in the defaults a route gets when the config
// file leaves a field at its zero value, and resolves
// BatchTimeoutRaw.
func (r *RouteConfig) applyDefaults() error {
	if r.InitWindowSize == 0 {
		r.InitWindowSize = 1000
	}
	if r.FetchLimit == 0 {
		r.FetchLimit = 100
	}
	if r.AckTracker == "" {
		r.AckTracker = "instant"
	}
	if len(r.DestBrokers) == 0 {
		r.DestBrokers = r.Brokers
	}
	if r.BatchTimeoutRaw != "" {
		d, err := time.ParseDuration(r.BatchTimeoutRaw)
		if err != nil {
			return fmt.Errorf("route %s: batch_timeout: %w", r.Name, err)
		}
		r.batchTimeout = d
	}
	return nil
}

func (r RouteConfig) validate() error {
	if r.Name == "" {
		return fmt.Errorf("route: name is required")
	}
	if len(r.Brokers) == 0 || r.Topic == "" {
		return fmt.Errorf("route %s: brokers and topic are required", r.Name)
	}
	if r.DestTopic == "" {
		return fmt.Errorf("route %s: dest_topic is required", r.Name)
	}
	switch strings.ToLower(r.AckTracker) {
	case "instant", "instant_bookmarkless", "consecutive", "batched":
	default:
		return fmt.Errorf("route %s: unrecognised ack_tracker %q", r.Name, r.AckTracker)
	}
	if strings.ToLower(r.AckTracker) == "batched" && r.BatchSize <= 0 && r.batchTimeout <= 0 {
		return fmt.Errorf("route %s: batched tracker needs batch_size and/or batch_timeout", r.Name)
	}
	return nil
}

// Config is the root config for App (spec.md §6, §9 "Global state").
type Config struct {
	Target   moduleName `yaml:"target,omitempty"`
	LogLevel string     `yaml:"log_level,omitempty"`
	DataDir  string     `yaml:"data_dir,omitempty"`

	Routes []RouteConfig `yaml:"routes,omitempty"`
}

// RegisterFlags registers the flags every target shares; routes
// themselves come only from the config file, since a flag set has no
// natural way to describe a list of them.
func (c *Config) RegisterFlags(f *flag.FlagSet) {
	c.Target = All
	c.LogLevel = "info"
	c.DataDir = "./data"

	f.Var(&c.Target, "target", "target module (default all)")
	f.StringVar(&c.LogLevel, "log.level", c.LogLevel, "one of debug, info, warn, error")
	f.StringVar(&c.DataDir, "data-dir", c.DataDir, "directory holding the host id and route bookmarks")
}

// ApplyDefaults fills in every route's defaults and validates the
// result. Called once, after the config file and flags have both
// been applied.
func (c *Config) ApplyDefaults() error {
	for i := range c.Routes {
		if err := c.Routes[i].applyDefaults(); err != nil {
			return err
		}
		if err := c.Routes[i].validate(); err != nil {
			return err
		}
	}
	return nil
}
