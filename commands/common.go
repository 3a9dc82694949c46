package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"estate-listings/config"
	"estate-listings/services"
	"estate-listings/storage"
	"estate-listings/utils"
	"estate-listings/worker"
)

// EnvFlag is shared by every command.
var EnvFlag = &cli.StringFlag{
	Name:  "env",
	Usage: "path to the .env file",
	Value: ".env",
}

// AppContext holds what a command needs: config, logger, database and services.
type AppContext struct {
	Config *config.Config
	Logger *utils.Logger
	DB     *sql.DB
	Store  *storage.PostgresStore
	Queue  *storage.PostgresQueue
	Client *worker.Client
}

// NewAppContext loads configuration and connects to PostgreSQL.
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	logger := utils.NewLoggerWithConfig(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	db, err := storage.Open(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	store, err := storage.NewPostgresStore(ctx, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	queue, err := storage.NewPostgresQueue(ctx, db, cfg.Queue.VisibilityTimeout)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &AppContext{
		Config: cfg,
		Logger: logger,
		DB:     db,
		Store:  store,
		Queue:  queue,
		Client: worker.NewClient(queue, cfg.Queue.MaxRetries, logger),
	}, nil
}

// Close releases the database pool.
func (ac *AppContext) Close() {
	if err := ac.Store.Close(); err != nil {
		ac.Logger.Warn("Closing database: %v", err)
	}
}

// Ingestor builds the ingestion service.
func (ac *AppContext) Ingestor() *services.Ingestor {
	return services.NewIngestor(ac.Store, ac.Logger)
}

// Maintenance builds the maintenance service.
func (ac *AppContext) Maintenance() *services.Maintenance {
	return services.NewMaintenance(ac.Store, ac.Logger)
}

// QueryEngine builds the read-side service.
func (ac *AppContext) QueryEngine() *services.QueryEngine {
	return services.NewQueryEngine(ac.Store, ac.Logger)
}

func withApp(fn func(ctx context.Context, cmd *cli.Command, app *AppContext) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		app, err := NewAppContext(ctx, cmd.String("env"))
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(ctx, cmd, app)
	}
}
