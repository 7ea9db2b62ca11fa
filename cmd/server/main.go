package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"rostertrail/internal/history"
	"rostertrail/internal/history/engine"
	"rostertrail/internal/history/handler"
	historymetrics "rostertrail/internal/history/metrics"
	"rostertrail/internal/history/phototrack"
	"rostertrail/internal/history/publisher"
	"rostertrail/internal/history/query"
	"rostertrail/internal/history/recorder"
	"rostertrail/internal/history/store"
	memorystore "rostertrail/internal/history/store/memory"
	postgresstore "rostertrail/internal/history/store/postgres"
	httpapi "rostertrail/internal/http"
	jwttoken "rostertrail/internal/jwt_token"
	"rostertrail/internal/platform/config"
	"rostertrail/internal/platform/httpserver"
	"rostertrail/internal/platform/logger"
	"rostertrail/internal/platform/metrics"
	platformredis "rostertrail/internal/platform/redis"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditStore, photoStore, closeDB, err := buildStores(cfg)
	if err != nil {
		log.Error("store setup failed", "error", err)
		os.Exit(1)
	}
	defer closeDB()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis setup failed", "error", err)
		os.Exit(1)
	}
	var hashCache phototrack.HashCache
	if redisClient != nil {
		hashCache = phototrack.NewRedisHashCache(redisClient.Client)
		defer redisClient.Close()
	}

	histMetrics := historymetrics.New()
	httpMetrics := metrics.New()
	policy := history.DefaultPolicy()

	pub := publisher.New(cfg.Publisher.Buffer, log, histMetrics)

	recorderSvc := recorder.New(auditStore, policy, log, histMetrics, pub)
	tracker := phototrack.New(photoStore, hashCache, log, histMetrics, pub)
	querySvc := query.New(auditStore, photoStore, policy, log, histMetrics)
	// CRUD collaborators record through the engine; the HTTP layer only
	// consumes its read side.
	eng := engine.New(recorderSvc, tracker, querySvc)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "rostertrail", "rostertrail-api")
	historyHandler := handler.New(eng, log, jwttoken.NewJWTServiceAdapter(jwtService))

	router := httpapi.NewRouter(historyHandler, log, httpMetrics)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting rostertrail", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := publisher.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka setup failed", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		g.Go(func() error {
			if err := pub.Run(ctx, sink); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// buildStores selects Postgres stores when a DSN is configured and falls
// back to the in-memory pair for local development.
func buildStores(cfg config.Server) (store.AuditStore, store.PhotoStore, func(), error) {
	if cfg.Postgres.DSN == "" {
		return memorystore.NewAuditStore(), memorystore.NewPhotoStore(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return postgresstore.NewAuditStore(db), postgresstore.NewPhotoStore(db), func() { db.Close() }, nil
}
