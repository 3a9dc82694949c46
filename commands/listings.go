package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"estate-listings/config"
	"estate-listings/models"
	"estate-listings/services"
	"estate-listings/utils"
)

// FilterFlags are the listing filters shared by export.
var FilterFlags = []cli.Flag{
	&cli.StringFlag{Name: "source", Usage: "exact source"},
	&cli.StringFlag{Name: "property-type", Usage: "exact property type"},
	&cli.StringFlag{Name: "location", Usage: "case-insensitive location substring"},
	&cli.FloatFlag{Name: "min-price"},
	&cli.FloatFlag{Name: "max-price"},
	&cli.FloatFlag{Name: "min-rooms"},
	&cli.FloatFlag{Name: "max-rooms"},
	&cli.FloatFlag{Name: "min-area"},
	&cli.FloatFlag{Name: "max-area"},
	&cli.TimestampFlag{Name: "created-after", Config: cli.TimestampConfig{Layouts: []string{time.RFC3339, "2006-01-02"}}},
	&cli.TimestampFlag{Name: "created-before", Config: cli.TimestampConfig{Layouts: []string{time.RFC3339, "2006-01-02"}}},
	&cli.StringFlag{Name: "sort-by", Value: "created_at"},
	&cli.StringFlag{Name: "sort-order", Value: "desc"},
}

func paramsFromFlags(cmd *cli.Command) services.ListingParams {
	p := services.NewListingParams()
	f := &p.Filter
	f.Source = cmd.String("source")
	f.PropertyType = cmd.String("property-type")
	f.Location = cmd.String("location")

	floats := map[string]**float64{
		"min-price": &f.MinPrice, "max-price": &f.MaxPrice,
		"min-rooms": &f.MinRooms, "max-rooms": &f.MaxRooms,
		"min-area": &f.MinArea, "max-area": &f.MaxArea,
	}
	for name, target := range floats {
		if cmd.IsSet(name) {
			v := cmd.Float(name)
			*target = &v
		}
	}
	if cmd.IsSet("created-after") {
		t := cmd.Timestamp("created-after")
		f.CreatedAfter = &t
	}
	if cmd.IsSet("created-before") {
		t := cmd.Timestamp("created-before")
		f.CreatedBefore = &t
	}
	p.SortBy = cmd.String("sort-by")
	p.SortOrder = cmd.String("sort-order")
	return p
}

// readPayloads accepts a JSON object or an array of objects.
func readPayloads(r io.Reader) ([]models.RawListing, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	if len(body) > 0 && body[0] == '{' {
		var one models.RawListing
		if err := dec.Decode(&one); err != nil {
			return nil, fmt.Errorf("decode listing: %w", err)
		}
		return []models.RawListing{one}, nil
	}
	var many []models.RawListing
	if err := dec.Decode(&many); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}
	return many, nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// syncRetry gives in-process ingestion the same budget and fixed delay a
// worker would apply to a queued task.
func syncRetry(cfg config.QueueConfig, logger *utils.Logger) *utils.RetryConfig {
	return &utils.RetryConfig{
		MaxAttempts: cfg.MaxRetries + 1,
		BaseDelay:   cfg.RetryDelay,
		Fixed:       true,
		Logger:      logger,
	}
}

// EnqueueAction reads payloads from --file (or stdin) and queues them, or with
// --sync ingests them in-process and prints the per-item results.
var EnqueueAction = withApp(func(ctx context.Context, cmd *cli.Command, app *AppContext) error {
	in, err := openInput(cmd.String("file"))
	if err != nil {
		return err
	}
	defer in.Close()

	payloads, err := readPayloads(in)
	if err != nil {
		return err
	}

	if cmd.Bool("sync") {
		results := app.Ingestor().IngestBatch(ctx, payloads, syncRetry(app.Config.Queue, app.Logger))
		return printJSON(cmd.Root().Writer, results)
	}

	receipt, err := app.Client.IngestBatch(ctx, payloads)
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, receipt)
})

// DeactivateAction soft-deletes stale listings now (--sync) or via the queue.
var DeactivateAction = withApp(func(ctx context.Context, cmd *cli.Command, app *AppContext) error {
	days := cmd.Int("days")
	if days == 0 {
		days = app.Config.Maintenance.StaleAfterDays
	}

	if cmd.Bool("sync") {
		n, err := app.Maintenance().DeactivateStale(ctx, days)
		if err != nil {
			return err
		}
		return printJSON(cmd.Root().Writer, map[string]any{"status": "success", "updated_count": n})
	}

	id, err := app.Client.DeactivateStale(ctx, days)
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, map[string]string{"task_id": id, "status": string(models.TaskQueued)})
})

// StatsAction prints the listing summary, as a report or with --json.
var StatsAction = withApp(func(ctx context.Context, cmd *cli.Command, app *AppContext) error {
	stats, err := app.QueryEngine().Stats(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return printJSON(cmd.Root().Writer, stats)
	}
	services.PrintStats(cmd.Root().Writer, stats)
	return nil
})

// ExportAction writes every matching listing to --output (or stdout).
var ExportAction = withApp(func(ctx context.Context, cmd *cli.Command, app *AppContext) error {
	format, err := services.ParseExportFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	var out io.Writer = cmd.Root().Writer
	if path := cmd.String("output"); path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}

	n, err := app.QueryEngine().Export(ctx, paramsFromFlags(cmd), format, out)
	if err != nil {
		return err
	}
	app.Logger.Info("Exported %d listings", n)
	return nil
})
