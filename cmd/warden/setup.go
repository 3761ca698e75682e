package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/warden/internal/audit"
	"github.com/yairfalse/warden/internal/check"
	"github.com/yairfalse/warden/internal/checks"
	"github.com/yairfalse/warden/internal/config"
	"github.com/yairfalse/warden/internal/discovery"
	"github.com/yairfalse/warden/internal/emitter"
	"github.com/yairfalse/warden/internal/engine"
	"github.com/yairfalse/warden/internal/fanout"
	"github.com/yairfalse/warden/internal/filter"
	"github.com/yairfalse/warden/internal/policy"
	"github.com/yairfalse/warden/internal/store"
	"github.com/yairfalse/warden/internal/telemetry"
	"github.com/yairfalse/warden/pkg/resource"
)

// overrides are command line values that take precedence over the config
// file. Zero values leave the file setting alone.
type overrides struct {
	regions   []string
	profile   string
	checks    []string
	resources []string
	output    string
	workers   int
	timeout   time.Duration
	debug     bool
}

// loadConfig reads path, or the defaults when path is empty, and applies o.
func loadConfig(path string, o overrides) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}

	if len(o.regions) > 0 {
		cfg.AWS.Regions = o.regions
	}
	if o.profile != "" {
		cfg.AWS.Profile = o.profile
	}
	if len(o.checks) > 0 {
		cfg.Audit.Checks = o.checks
	}
	if len(o.resources) > 0 {
		cfg.Audit.Resources = o.resources
	}
	if o.output != "" {
		cfg.Output.Path = o.output
	}
	if o.workers > 0 {
		cfg.Audit.MaxWorkers = o.workers
	}
	if o.timeout > 0 {
		cfg.Audit.CallTimeout = o.timeout
	}
	if o.debug {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// parseKinds validates the configured resource kinds.
func parseKinds(names []string) ([]resource.Kind, error) {
	known := make(map[resource.Kind]bool)
	for _, k := range resource.Kinds() {
		known[k] = true
	}
	kinds := make([]resource.Kind, 0, len(names))
	for _, n := range names {
		k := resource.Kind(n)
		if !known[k] {
			return nil, fmt.Errorf("unknown resource kind %q", n)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// buildRunner registers the built-in checks and any custom rego checks.
func buildRunner(ctx context.Context, cfg *config.Config) (*check.Runner, error) {
	runner := check.NewRunner(cfg.Audit.CheckWorkers)
	checks.Register(runner)

	if cfg.Audit.CustomChecks != "" {
		custom, err := policy.Load(ctx, cfg.Audit.CustomChecks)
		if err != nil {
			return nil, err
		}
		for _, c := range custom {
			if _, exists := runner.Get(c.Metadata().ID); exists {
				return nil, fmt.Errorf("custom check %s: id already registered", c.Metadata().ID)
			}
			runner.Register(c)
		}
	}
	return runner, nil
}

// buildEmitter assembles the configured sinks. reports is where JSON goes
// when no output path is set.
func buildEmitter(cfg *config.Config, provider *telemetry.Provider, reports *os.File) (emitter.Emitter, error) {
	var sinks []emitter.Emitter
	fail := func(err error) (emitter.Emitter, error) {
		closeSinks(sinks)
		return nil, err
	}

	if cfg.Output.Format == "json" {
		if cfg.Output.Path != "" {
			e, err := emitter.NewJSONFileEmitter(cfg.Output.Path)
			if err != nil {
				return fail(err)
			}
			sinks = append(sinks, e)
		} else {
			sinks = append(sinks, emitter.NewJSONEmitter(reports))
		}
	}

	metrics, err := emitter.NewMetricsEmitter(provider)
	if err != nil {
		return fail(err)
	}
	sinks = append(sinks, metrics)

	if cfg.Storage.Path != "" {
		s, err := store.Open(cfg.Storage.Path)
		if err != nil {
			return fail(fmt.Errorf("open history: %w", err))
		}
		sinks = append(sinks, emitter.NewHistoryEmitter(s, cfg.Storage.KeepRuns))
	}

	return emitter.NewMultiEmitter(sinks...), nil
}

// closeSinks closes every sink, logging failures.
func closeSinks(sinks []emitter.Emitter) {
	for _, e := range sinks {
		if err := e.Close(); err != nil {
			log.Warn().Err(err).Msg("close emitter")
		}
	}
}

// buildEngine resolves the account and wires the audit pipeline.
func buildEngine(ctx context.Context, cfg *config.Config, provider *telemetry.Provider, emit emitter.Emitter) (*engine.Engine, error) {
	resources, err := filter.New(cfg.Audit.Resources)
	if err != nil {
		return nil, err
	}
	selector, err := filter.NewCheckSelector(cfg.Audit.Checks, cfg.Audit.ExcludeChecks)
	if err != nil {
		return nil, err
	}
	kinds, err := parseKinds(cfg.Audit.Kinds)
	if err != nil {
		return nil, err
	}

	runner, err := buildRunner(ctx, cfg)
	if err != nil {
		return nil, err
	}
	runner.SetObserver(provider)

	actx, err := audit.NewSession().Open(ctx, audit.SessionConfig{
		Profile: cfg.AWS.Profile,
		Regions: cfg.AWS.Regions,
		Filter:  resources,
	})
	if err != nil {
		return nil, fmt.Errorf("open audit session: %w", err)
	}

	return engine.New(engine.Options{
		Context: actx,
		Clients: discovery.SDKClients(),
		Fanout: fanout.Options{
			MaxWorkers:  cfg.Audit.MaxWorkers,
			CallTimeout: cfg.Audit.CallTimeout,
			Observer:    provider,
		},
		Kinds:     kinds,
		Checks:    runner,
		Selector:  selector,
		Resources: resources,
		Emitter:   emit,
		Recorder:  provider,
	})
}
