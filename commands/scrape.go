package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"estate-listings/scraper/airbnb"
)

// ScrapeAction scrapes Airbnb search pages and queues the results for ingestion.
// With --dry-run the payloads are printed instead.
var ScrapeAction = withApp(func(ctx context.Context, cmd *cli.Command, app *AppContext) error {
	cfg := app.Config.Scraper
	if u := cmd.String("url"); u != "" {
		cfg.StartURL = u
	}
	if p := cmd.Int("pages"); p > 0 {
		cfg.PagesToScrape = p
	}

	browser := airbnb.NewBrowserFetcher(ctx, cfg.ChromeBin, app.Logger)
	defer browser.Close()
	s := airbnb.New(cfg, browser, app.Logger)

	if cmd.Bool("dry-run") {
		listings, err := s.Scrape(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.Root().Writer, listings)
	}

	receipt, err := s.Run(ctx, app.Client)
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, receipt)
})

// TaskStatusAction prints one task by id.
var TaskStatusAction = withApp(func(ctx context.Context, cmd *cli.Command, app *AppContext) error {
	id := cmd.Args().First()
	if id == "" {
		return cli.Exit("usage: task status <id>", 2)
	}
	t, err := app.Client.Status(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, t)
})
