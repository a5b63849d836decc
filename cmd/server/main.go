package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"oidcbridge/internal/idp/adapter"
	"oidcbridge/internal/idp/handler"
	"oidcbridge/internal/idp/interaction"
	"oidcbridge/internal/idp/metrics"
	"oidcbridge/internal/idp/store/artifact"
	"oidcbridge/internal/idp/store/client"
	jwttoken "oidcbridge/internal/jwt_token"
	"oidcbridge/internal/platform/config"
	"oidcbridge/internal/platform/httpserver"
	"oidcbridge/internal/platform/logger"
	"oidcbridge/internal/platform/postgres"
	platformredis "oidcbridge/internal/platform/redis"
	httptransport "oidcbridge/internal/transport/http"
	"oidcbridge/pkg/platform/audit"
)

// main wires the stores, the adapter registry the flow engine consumes, the
// interaction orchestrator and the HTTP surface. Business logic lives in the
// internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	m := metrics.New()

	var (
		artifacts       artifact.Store
		clients         client.Registry
		interactionOpts []interaction.Option
	)

	switch {
	case cfg.PostgresDSN != "":
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		artifacts = artifact.NewPostgres(db, artifact.WithPostgresMetrics(m))
		clients = client.NewPostgres(db)

		if cfg.RedisURL != "" {
			rdb, err := platformredis.New(ctx, cfg.RedisURL)
			if err != nil {
				return err
			}
			defer func() { _ = rdb.Close() }()
			// Redis serves the hot artifact path; Postgres keeps the client
			// registry durable.
			artifacts = artifact.NewRedis(rdb, artifact.WithRedisMetrics(m))
		} else {
			// Grant and interaction writes share one SQL transaction only
			// when the artifacts actually live in Postgres.
			interactionOpts = append(interactionOpts, interaction.WithTxRunner(postgres.NewTxRunner(db)))
		}
	default:
		log.Warn("no postgres DSN configured, using in-memory stores")
		artifacts = artifact.NewMemory()
		clients = client.NewMemory()
	}

	var publisher audit.Publisher = audit.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := kafkaPublisher.Close(context.Background()); err != nil {
				log.Error("audit publisher close failed", "error", err)
			}
		}()
		publisher = kafkaPublisher
	}

	registry, err := adapter.NewRegistry(artifacts, clients,
		adapter.WithLogger(log),
		adapter.WithMetrics(m),
		adapter.WithAuditPublisher(publisher),
	)
	if err != nil {
		return err
	}

	interactions, err := interaction.New(artifacts, cfg.InteractionTTL,
		append(interactionOpts,
			interaction.WithLogger(log),
			interaction.WithMetrics(m),
			interaction.WithAuditPublisher(publisher),
		)...,
	)
	if err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "oidcbridge", "admin-portal")
	h := handler.New(interactions, clients, registry, log, jwttoken.NewValidator(jwtService))
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(h))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting oidcbridge", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
