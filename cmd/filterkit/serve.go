package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/filterkit/admin"
	"github.com/kbukum/filterkit/bootstrap"
	"github.com/kbukum/filterkit/chain"
	"github.com/kbukum/filterkit/filter"
	"github.com/kbukum/filterkit/journal"
	"github.com/kbukum/filterkit/lifecycle"
	"github.com/kbukum/filterkit/logger"
	"github.com/kbukum/filterkit/observability"
	"github.com/kbukum/filterkit/sse"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Build the configured chains and serve the admin API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			app, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}

// newApp assembles the process: telemetry, the transition journal, the
// lifecycle registry, the declared chains and the admin server.
func newApp(ctx context.Context, cfg *Config) (*bootstrap.App[*Config], error) {
	logger.Init(&cfg.Logging)
	log := logger.GetGlobalLogger()

	var lcOpts []lifecycle.Option
	var shutdownTelemetry func(context.Context) error
	if cfg.Telemetry.Enabled {
		observer, shutdown, err := initTelemetry(ctx, cfg)
		if err != nil {
			return nil, err
		}
		lcOpts = append(lcOpts, lifecycle.WithObserver(observer))
		shutdownTelemetry = shutdown
	}
	var recorder *journal.Recorder
	if cfg.Journal.Enabled {
		sink, err := journal.NewSink(&cfg.Journal)
		if err != nil {
			return nil, err
		}
		recorder = journal.NewRecorder(cfg.Journal, sink, cfg.Name, log.WithComponent("journal"))
		lcOpts = append(lcOpts, lifecycle.WithObserver(recorder))
	}
	var events *sse.Component
	if cfg.Admin.Enabled && cfg.Admin.Events {
		events = sse.NewComponent(log.WithComponent("sse"))
		lcOpts = append(lcOpts, lifecycle.WithObserver(events.Feed()))
	}

	app, err := bootstrap.NewApp(cfg,
		bootstrap.WithLogger(log),
		bootstrap.WithLifecycleOptions(lcOpts...),
	)
	if err != nil {
		return nil, err
	}
	// Registered first so it stops last and records the final destroys.
	if recorder != nil {
		if err := app.RegisterComponent(recorder); err != nil {
			return nil, err
		}
	}

	chains := newChainSet(app.Lifecycle, log.WithComponent("chain"))
	app.OnStart(func(ctx context.Context) error {
		if err := chains.build(ctx, cfg.Chains); err != nil {
			return errors.Join(err, chains.clear(ctx))
		}
		return nil
	})
	app.OnStop(chains.clear)
	if shutdownTelemetry != nil {
		app.OnStop(shutdownTelemetry)
	}

	if cfg.Admin.Enabled {
		adminOpts := []admin.Option{
			admin.WithHealthChecker(app.Components.HealthAll),
			admin.WithServiceName(cfg.Name),
		}
		// The hub is registered first so it outlives the server on shutdown.
		if events != nil {
			if err := app.RegisterComponent(events); err != nil {
				return nil, err
			}
			adminOpts = append(adminOpts, admin.WithEventHub(events.Hub()))
		}
		srv := admin.New(cfg.Admin, app.Lifecycle, log.WithComponent("admin"), adminOpts...)
		if err := app.RegisterComponent(srv); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// initTelemetry installs the OTLP providers and returns the lifecycle
// metrics observer plus the provider shutdown.
func initTelemetry(ctx context.Context, cfg *Config) (lifecycle.Observer, func(context.Context) error, error) {
	tel, err := observability.Init(ctx, &observability.Config{
		ServiceName:    cfg.Name,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
		Interval:       cfg.Telemetry.Interval,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init telemetry: %w", err)
	}
	return tel.Lifecycle, tel.Shutdown, nil
}

// chainSet owns the chains declared in config. Filters of the same kind
// are one shared instance across all chains.
type chainSet struct {
	lifecycle *lifecycle.Registry
	log       *logger.Logger
	shared    map[string]filter.Filter
	chains    []*chain.Chain
}

func newChainSet(lc *lifecycle.Registry, log *logger.Logger) *chainSet {
	return &chainSet{
		lifecycle: lc,
		log:       log,
		shared: map[string]filter.Filter{
			"logging": filter.NewLogging(log),
		},
	}
}

func (s *chainSet) build(ctx context.Context, decls []ChainConfig) error {
	for _, decl := range decls {
		c := chain.New(s.lifecycle, chain.WithName(decl.Name), chain.WithLogger(s.log))
		s.chains = append(s.chains, c)
		for _, kind := range decl.Filters {
			f, ok := s.shared[kind]
			if !ok {
				return fmt.Errorf("chain %s: unknown filter %q", decl.Name, kind)
			}
			if err := c.AddLast(ctx, kind, f); err != nil {
				return fmt.Errorf("chain %s: %w", decl.Name, err)
			}
		}
		s.log.Info("Chain built", logger.Fields(
			logger.FieldChain, c.Name(),
			logger.FieldSessionID, c.SessionID(),
			"filters", c.Names(),
		))
	}
	return nil
}

func (s *chainSet) clear(ctx context.Context) error {
	var errs []error
	for i := len(s.chains) - 1; i >= 0; i-- {
		errs = append(errs, s.chains[i].Clear(ctx))
	}
	s.chains = nil
	return errors.Join(errs...)
}
