package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/drone/envsubst"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	"gopkg.in/yaml.v3"

	"github.com/flowlog-io/flowlog/cmd/flowlogd/app"
)

const appName = "flowlogd"

func init() {
	prometheus.MustRegister(version.NewCollector(appName))
}

func main() {
	printVersion := flag.Bool("version", false, "Print this build's version information")

	config, configVerify, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed parsing config: %v\n", err)
		os.Exit(1)
	}
	if *printVersion {
		fmt.Println(version.Print(appName))
		os.Exit(0)
	}

	logger := newLogger(config.LogLevel)

	if configVerify {
		os.Exit(0)
	}

	a, err := app.New(*config, logger)
	if err != nil {
		level.Error(logger).Log("msg", "error initialising flowlogd", "err", err)
		os.Exit(1)
	}

	level.Info(logger).Log("msg", "starting flowlogd", "version", version.Info())

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
	}()

	if err := a.Run(stop); err != nil {
		level.Error(logger).Log("msg", "error running flowlogd", "err", err)
	}

	if err := a.Stop(); err != nil {
		level.Error(logger).Log("msg", "error stopping flowlogd", "err", err)
		os.Exit(1)
	}
}

func newLogger(levelName string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	var lvl level.Option
	switch levelName {
	case "debug":
		lvl = level.AllowDebug()
	case "warn":
		lvl = level.AllowWarn()
	case "error":
		lvl = level.AllowError()
	default:
		lvl = level.AllowInfo()
	}
	return level.NewFilter(logger, lvl)
}

// loadConfig mirrors cmd/tempo/main.go's loadConfig: find -config.file
// and -config.expand-env early (with a throwaway, error-silent flag
// set, since flag.Parse stops at the first unknown flag), apply
// config-file values, then let the command line override them.
func loadConfig() (*app.Config, bool, error) {
	const (
		configFileOption      = "config.file"
		configExpandEnvOption = "config.expand-env"
		configVerifyOption    = "config.verify"
	)

	var (
		configFile      string
		configExpandEnv bool
		configVerify    bool
	)

	args := os.Args[1:]
	config := &app.Config{}

	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&configFile, configFileOption, "", "")
	fs.BoolVar(&configExpandEnv, configExpandEnvOption, false, "")
	fs.BoolVar(&configVerify, configVerifyOption, false, "")

	for len(args) > 0 {
		_ = fs.Parse(args)
		args = args[1:]
	}

	config.RegisterFlags(flag.CommandLine)

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read configFile %s: %w", configFile, err)
		}
		if configExpandEnv {
			s, err := envsubst.EvalEnv(string(buf))
			if err != nil {
				return nil, false, fmt.Errorf("failed to expand env vars from configFile %s: %w", configFile, err)
			}
			buf = []byte(s)
		}
		if err := yaml.Unmarshal(buf, config); err != nil {
			return nil, false, fmt.Errorf("failed to parse configFile %s: %w", configFile, err)
		}
	}

	ignoreFlag(flag.CommandLine, configFileOption, false)
	ignoreFlag(flag.CommandLine, configExpandEnvOption, true)
	ignoreFlag(flag.CommandLine, configVerifyOption, true)
	flag.Parse()

	if err := config.ApplyDefaults(); err != nil {
		return nil, false, err
	}

	return config, configVerify, nil
}

// ignoreFlag registers a flag already consumed by the pre-pass above,
// so flag.Parse's final pass doesn't reject it as unknown. isBool
// registers it as a bool flag, matching the pre-pass, so a bare
// -config.verify needs no value.
func ignoreFlag(f *flag.FlagSet, name string, isBool bool) {
	if f.Lookup(name) != nil {
		return
	}
	if isBool {
		var discard bool
		f.BoolVar(&discard, name, false, "(see config.file pre-pass)")
		return
	}
	var discard string
	f.StringVar(&discard, name, "", "(see config.file pre-pass)")
}
