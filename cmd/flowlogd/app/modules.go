package app

import (
	"fmt"
	"strings"

	"github.com/go-kit/log/level"

	"github.com/flowlog-io/flowlog/internal/hostid"
	"github.com/flowlog-io/flowlog/internal/persist"
)

type moduleName int

// The modules that make up flowlogd.
const (
	Store moduleName = iota
	HostID
	Routes
	All
)

func (m *moduleName) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var val string
	if err := unmarshal(&val); err != nil {
		return err
	}
	return m.Set(val)
}

func (m moduleName) String() string {
	switch m {
	case Store:
		return "store"
	case HostID:
		return "host-id"
	case Routes:
		return "routes"
	case All:
		return "all"
	default:
		panic(fmt.Sprintf("unknown module name: %d", m))
	}
}

func (m *moduleName) Set(s string) error {
	switch strings.ToLower(s) {
	case "store":
		*m = Store
	case "host-id":
		*m = HostID
	case "routes":
		*m = Routes
	case "all":
		*m = All
	default:
		return fmt.Errorf("unrecognised module name: %s", s)
	}
	return nil
}

func (a *App) initStore() (err error) {
	a.store, err = persist.NewLocalStore(a.cfg.DataDir)
	return err
}

func (a *App) initHostID() (err error) {
	a.hostCtx, err = hostid.Load(a.store)
	return err
}

func (a *App) initRoutes() error {
	for _, rc := range a.cfg.Routes {
		p, err := a.newPipeline(rc)
		if err != nil {
			return fmt.Errorf("route %s: %w", rc.Name, err)
		}
		a.pipelines = append(a.pipelines, p)
	}
	for _, p := range a.pipelines {
		p.reader.Start()
	}
	return nil
}

func (a *App) stopRoutes() error {
	for _, p := range a.pipelines {
		p.reader.Close()
		p.source.DisableBookmarkSaving()
		p.source.Deinit()
		p.kafkaSource.Close()
		p.kafkaDest.Close()
	}
	return nil
}

// listDeps recursively gets a list of dependencies for a passed moduleName.
func listDeps(m moduleName) []moduleName {
	deps := modules[m].deps
	for _, d := range modules[m].deps {
		deps = append(deps, listDeps(d)...)
	}
	return deps
}

// orderedDeps gets a list of all dependencies ordered so that items are always after any of their dependencies.
func orderedDeps(m moduleName) []moduleName {
	deps := uniqueDeps(listDeps(m))
	added := map[moduleName]bool{}

	result := make([]moduleName, 0, len(deps))

	for len(result) < len(deps) {
	OUTER:
		for _, name := range deps {
			if added[name] {
				continue
			}
			for _, dep := range modules[name].deps {
				if !added[dep] {
					continue OUTER
				}
			}
			added[name] = true
			result = append(result, name)
		}
	}

	return result
}

// uniqueDeps returns the unique list of input dependencies, guaranteeing input order stability.
func uniqueDeps(deps []moduleName) []moduleName {
	result := make([]moduleName, 0, len(deps))
	uniq := map[moduleName]bool{}
	for _, dep := range deps {
		if !uniq[dep] {
			result = append(result, dep)
			uniq[dep] = true
		}
	}
	return result
}

type module struct {
	deps []moduleName
	init func(a *App) error
	stop func(a *App) error
}

var modules = map[moduleName]module{
	Store: {
		init: (*App).initStore,
	},

	HostID: {
		deps: []moduleName{Store},
		init: (*App).initHostID,
	},

	Routes: {
		deps: []moduleName{Store, HostID},
		init: (*App).initRoutes,
		stop: (*App).stopRoutes,
	},

	All: {
		deps: []moduleName{Routes},
	},
}

func (a *App) initModule(m moduleName) error {
	level.Info(a.logger).Log("msg", "initialising", "module", m)
	if modules[m].init != nil {
		if err := modules[m].init(a); err != nil {
			return fmt.Errorf("error initialising module %s: %w", m, err)
		}
	}
	return nil
}

func (a *App) stopModule(m moduleName) {
	level.Info(a.logger).Log("msg", "stopping", "module", m)
	if modules[m].stop != nil {
		if err := modules[m].stop(a); err != nil {
			level.Error(a.logger).Log("msg", "error stopping", "module", m, "err", err)
		}
	}
}
