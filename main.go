package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"estate-listings/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "estate-listings",
		Usage: "real-estate listing ingestion, queue workers and query API",
		Flags: []cli.Flag{commands.EnvFlag},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve the listings HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address (default HTTP_ADDR)"},
				},
				Action: commands.ServeAction,
			},
			{
				Name:  "worker",
				Usage: "consume the task queue",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "queue", Usage: "queues to consume (default WORKER_QUEUES)"},
					&cli.IntFlag{Name: "concurrency", Usage: "parallel tasks (default WORKER_CONCURRENCY)"},
					&cli.BoolFlag{Name: "no-schedule", Usage: "do not queue periodic maintenance"},
				},
				Action: commands.WorkerAction,
			},
			{
				Name:      "enqueue",
				Usage:     "queue raw listings for ingestion",
				ArgsUsage: "--file listings.json",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "JSON object or array, - for stdin", Value: "-"},
					&cli.BoolFlag{Name: "sync", Usage: "ingest in-process and print per-item results"},
				},
				Action: commands.EnqueueAction,
			},
			{
				Name:  "deactivate",
				Usage: "mark stale listings inactive",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "days", Usage: "age in days (default STALE_AFTER_DAYS)"},
					&cli.BoolFlag{Name: "sync", Usage: "run now instead of queueing"},
				},
				Action: commands.DeactivateAction,
			},
			{
				Name:  "stats",
				Usage: "print listing statistics",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "print JSON"},
				},
				Action: commands.StatsAction,
			},
			{
				Name:  "export",
				Usage: "export matching listings as CSV or JSON",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "format", Value: "csv", Usage: "csv or json"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output file, - for stdout"},
				}, commands.FilterFlags...),
				Action: commands.ExportAction,
			},
			{
				Name:  "scrape",
				Usage: "scrape Airbnb search pages and queue the listings",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "search page to start from (default SCRAPER_START_URL)"},
					&cli.IntFlag{Name: "pages", Usage: "pages to follow (default PAGES_TO_SCRAPE)"},
					&cli.BoolFlag{Name: "dry-run", Usage: "print payloads instead of queueing"},
				},
				Action: commands.ScrapeAction,
			},
			{
				Name:  "task",
				Usage: "inspect queued tasks",
				Commands: []*cli.Command{
					{
						Name:      "status",
						Usage:     "show one task",
						ArgsUsage: "<id>",
						Action:    commands.TaskStatusAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
