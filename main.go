package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/Billy-Davies-2/knockout-pool/internal/config"
	"github.com/Billy-Davies-2/knockout-pool/internal/dal"
	"github.com/Billy-Davies-2/knockout-pool/internal/logger"
	"github.com/Billy-Davies-2/knockout-pool/internal/mocks"
)

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Failed to read .env", "error", err)
	}
	logger.Init()

	if err := newApp().Run(os.Args); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// app carries the resolved configuration into every command
type app struct {
	cfg        config.Config
	tournament *config.Tournament
}

func newApp() *cli.App {
	a := &app{}
	def := config.Default()

	return &cli.App{
		Name:  "knockout-pool",
		Usage: "score a knockout tournament prediction pool",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env", Usage: "development or production (ENVIRONMENT)", Value: def.Environment},
			&cli.StringFlag{Name: "edition", Usage: "built-in edition or path to a tournament YAML file (EDITION)", Value: def.Edition},
			&cli.StringFlag{Name: "db-driver", Usage: "memory, sqlite or postgres (DB_DRIVER)", Value: def.DBDriver},
			&cli.StringFlag{Name: "sqlite-file", Usage: "SQLite database file (SQLITE_FILE)", Value: def.SQLiteFile},
			&cli.StringFlag{Name: "database-url", Usage: "Postgres connection string (DATABASE_URL)"},
			&cli.StringFlag{Name: "nats-url", Usage: "NATS server in production (NATS_URL)", Value: def.NATSURL},
			&cli.StringFlag{Name: "nats-subject", Usage: "subject carrying pool events (NATS_SUBJECT)", Value: def.NATSSubject},
			&cli.StringFlag{Name: "port", Usage: "HTTP port (PORT)", Value: def.Port},
			&cli.StringFlag{Name: "grpc-port", Usage: "gRPC port (GRPC_PORT)", Value: def.GRPCPort},
		},
		Before: a.configure,
		Commands: []*cli.Command{
			a.serveCommand(),
			a.createCommand(),
			a.loadCommand(),
			a.recomputeCommand(),
			a.printCommand(),
			a.slotsCommand(),
			a.exportCommand(),
			a.demoCommand(),
		},
	}
}

// configure overlays explicitly set flags on the environment configuration
func (a *app) configure(c *cli.Context) error {
	cfg := config.FromEnv()
	overlay := map[string]*string{
		"env":          &cfg.Environment,
		"edition":      &cfg.Edition,
		"db-driver":    &cfg.DBDriver,
		"sqlite-file":  &cfg.SQLiteFile,
		"database-url": &cfg.DatabaseURL,
		"nats-url":     &cfg.NATSURL,
		"nats-subject": &cfg.NATSSubject,
		"port":         &cfg.Port,
		"grpc-port":    &cfg.GRPCPort,
	}
	for name, dst := range overlay {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	t, err := config.LoadTournament(cfg.Edition)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.tournament = t
	logger.Debug("Configuration loaded", "environment", cfg.Environment, "edition", t.Name(), "driver", cfg.DBDriver)
	return nil
}

// openStore connects the configured storage driver
func (a *app) openStore() (dal.Store, error) {
	switch a.cfg.DBDriver {
	case "sqlite":
		s, err := dal.NewSQLiteDAL(a.cfg.SQLiteFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to SQLite database", "file", a.cfg.SQLiteFile)
		return s, nil
	case "postgres":
		if a.cfg.DatabaseURL == "" {
			return mocks.NewMockPostgresDAL(a.cfg.SQLiteFile)
		}
		s, err := dal.NewPostgresDAL(a.cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to Postgres database")
		return s, nil
	default:
		logger.Info("Using in-memory data store")
		return dal.NewMemoryDAL(), nil
	}
}
