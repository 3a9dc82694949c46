package commands

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"estate-listings/httpapi"
	"estate-listings/worker"
)

// ServeAction runs the HTTP API until interrupted.
var ServeAction = withApp(func(ctx context.Context, cmd *cli.Command, app *AppContext) error {
	token := app.Config.HTTP.APIToken
	if token == "" {
		return errors.New("API_TOKEN must be set to serve the API")
	}
	addr := app.Config.HTTP.Addr
	if a := cmd.String("addr"); a != "" {
		addr = a
	}

	srv := httpapi.NewServer(app.QueryEngine(), app.Client, httpapi.StaticToken{Token: token}, app.DB.PingContext, app.Logger)
	return srv.ListenAndServe(ctx, addr)
})

// WorkerAction consumes the task queue and, unless disabled, schedules maintenance.
var WorkerAction = withApp(func(ctx context.Context, cmd *cli.Command, app *AppContext) error {
	cfg := app.Config
	queues := cfg.Worker.Queues
	if q := cmd.StringSlice("queue"); len(q) > 0 {
		queues = q
	}
	concurrency := cfg.Worker.Concurrency
	if c := cmd.Int("concurrency"); c > 0 {
		concurrency = c
	}

	d := worker.NewDispatcher(app.Queue, worker.Options{
		Queues:       queues,
		Concurrency:  concurrency,
		PollInterval: cfg.Worker.PollInterval,
		RetryDelay:   cfg.Queue.RetryDelay,
	}, app.Logger)
	worker.Register(d, app.Ingestor(), app.Maintenance(), app.Client, cfg.Maintenance.StaleAfterDays)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.Run(gctx) })
	if !cmd.Bool("no-schedule") {
		s := worker.NewScheduler(app.Client, cfg.Maintenance.Interval, cfg.Maintenance.StaleAfterDays, app.Logger)
		g.Go(func() error { return s.Run(gctx) })
	}
	return g.Wait()
})
