package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/Billy-Davies-2/knockout-pool/internal/auth"
	"github.com/Billy-Davies-2/knockout-pool/internal/clickhouse"
	"github.com/Billy-Davies-2/knockout-pool/internal/engine"
	grpcserver "github.com/Billy-Davies-2/knockout-pool/internal/grpc"
	"github.com/Billy-Davies-2/knockout-pool/internal/handlers"
	"github.com/Billy-Davies-2/knockout-pool/internal/logger"
	"github.com/Billy-Davies-2/knockout-pool/internal/metrics"
	"github.com/Billy-Davies-2/knockout-pool/internal/mocks"
	"github.com/Billy-Davies-2/knockout-pool/internal/models"
	"github.com/Billy-Davies-2/knockout-pool/internal/pubsub"
)

const shutdownTimeout = 15 * time.Second

// eventBus is the cross-instance transport behind the local pub/sub
type eventBus interface {
	pubsub.Upstream
	Ping() error
	Close()
}

// auditStore records committed cycles and serves score history
type auditStore interface {
	RecordCycle(ctx context.Context, report models.CycleReport) error
	ScoreHistory(ctx context.Context, participantID int) ([]models.ScorePoint, error)
	Ping(ctx context.Context) error
	Close() error
}

func (a *app) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP and gRPC APIs with the recompute worker",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "worker-interval", Usage: "minimum time between worker recomputes", Value: time.Second},
			&cli.BoolFlag{Name: "recompute-on-start", Usage: "run one cycle before serving", Value: true},
		},
		Action: a.serve,
	}
}

func (a *app) openBus() (eventBus, error) {
	if a.cfg.Development() {
		logger.Info("Starting embedded NATS server for local development")
		bus, err := pubsub.NewEmbeddedNATSPubSub(pubsub.EmbeddedNATSOptions{
			Port:    -1,
			Subject: a.cfg.NATSSubject,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to start embedded NATS: %w", err)
		}
		logger.Info("Embedded NATS server ready", "url", bus.GetServerURL())
		return bus, nil
	}

	bus, err := pubsub.NewNATSPubSub(a.cfg.NATSURL, a.cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("Connected to NATS", "url", a.cfg.NATSURL, "subject", bus.Subject())
	return bus, nil
}

func (a *app) openAudit() (auditStore, error) {
	if a.cfg.Development() {
		logger.Info("Using mock ClickHouse for local development (no ClickHouse server required)")
		return mocks.NewMockClickHouseClient(), nil
	}

	ch := a.cfg.ClickHouse
	client, err := clickhouse.NewClient(ch.Addr, ch.Database, ch.User, ch.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	logger.Info("Connected to ClickHouse", "address", ch.Addr, "database", ch.Database)
	return client, nil
}

func (a *app) authProvider() auth.AuthProvider {
	if a.cfg.Development() {
		logger.Info("Using mock authentication for local development (no Authentik server required)")
		return auth.NewMockAuth()
	}
	logger.Info("Using Authentik authentication", "url", a.cfg.Authentik.BaseURL)
	return auth.NewAuthentikAuth(&auth.AuthentikConfig{
		BaseURL:      a.cfg.Authentik.BaseURL,
		ClientID:     a.cfg.Authentik.ClientID,
		ClientSecret: a.cfg.Authentik.ClientSecret,
		RedirectURL:  a.cfg.Authentik.RedirectURL,
		Scopes:       []string{"openid", "profile", "email"},
	})
}

func (a *app) serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting knockout pool", "edition", a.tournament.Name(), "environment", a.cfg.Environment)

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	bus, err := a.openBus()
	if err != nil {
		return err
	}
	defer bus.Close()
	events := pubsub.NewWithUpstream(bus)

	audit, err := a.openAudit()
	if err != nil {
		return err
	}
	defer audit.Close()

	recorder := metrics.NewRecorder()
	svc := engine.NewService(store, a.tournament,
		engine.WithPublisher(events),
		engine.WithAuditSink(audit),
		engine.WithObserver(recorder),
	)

	if c.Bool("recompute-on-start") {
		if _, err := svc.Recompute(ctx); err != nil {
			logger.Error("Initial recompute failed", "error", err)
		}
	}

	health := handlers.NewHealth().
		Critical("database", store.Ping).
		Optional("nats", func(context.Context) error { return bus.Ping() }).
		Optional("clickhouse", audit.Ping)

	router := handlers.NewRouter(handlers.NewAPIHandlers(svc, events, audit), handlers.RouterOptions{
		Auth:    a.authProvider(),
		Health:  health,
		Metrics: recorder.Handler(),
		Observe: recorder,
	})

	// No write timeout: the SSE stream stays open
	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + a.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	grpcServer := grpcserver.NewGRPCServer(svc, events)
	worker := engine.NewWorker(svc, events, c.Duration("worker-interval"))

	g, gctx := errgroup.WithContext(ctx)
	// Open SSE streams end with the server context
	httpServer.BaseContext = func(net.Listener) context.Context { return gctx }

	g.Go(func() error {
		logger.Info("HTTP server starting", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", "0.0.0.0:"+a.cfg.GRPCPort)
		if err != nil {
			return fmt.Errorf("failed to listen for gRPC: %w", err)
		}
		logger.Info("gRPC server starting", "address", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", "timeout", shutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", "error", err)
			httpServer.Close()
		}
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server shutdown complete", "worker_runs", worker.Runs())
	return nil
}
