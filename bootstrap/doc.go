// Package bootstrap wires a filterkit process together: config defaults
// and validation, logger initialization, the shared lifecycle registry and
// the component registry that starts and stops long-running pieces.
//
//	app, err := bootstrap.NewApp(&cfg, bootstrap.WithLifecycleOptions(lifecycle.WithObserver(metrics)))
//	app.RegisterComponent(adminServer)
//	app.OnStop(func(ctx context.Context) error { return chains.Clear(ctx) })
//	return app.Run(ctx)
//
// Run starts components in registration order, runs OnStart hooks, checks
// health, runs OnReady hooks, then blocks until SIGINT/SIGTERM or context
// cancellation and shuts down in reverse.
package bootstrap
