package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/photodex/internal/config"
	"github.com/kailas-cloud/photodex/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/photodex/internal/db/redis"
	"github.com/kailas-cloud/photodex/internal/jobs"
	logpkg "github.com/kailas-cloud/photodex/internal/logger"
	"github.com/kailas-cloud/photodex/internal/media/exif"
	"github.com/kailas-cloud/photodex/internal/media/timezone"
	"github.com/kailas-cloud/photodex/internal/metrics"
	"github.com/kailas-cloud/photodex/internal/queue"
	imagerepo "github.com/kailas-cloud/photodex/internal/repository/image"
	"github.com/kailas-cloud/photodex/internal/repository/querycache"
	"github.com/kailas-cloud/photodex/internal/repository/searchquery"
	"github.com/kailas-cloud/photodex/internal/storage"
	chiTransport "github.com/kailas-cloud/photodex/internal/transport/chi"
	"github.com/kailas-cloud/photodex/internal/transport/nominatim"
	openaiEmb "github.com/kailas-cloud/photodex/internal/transport/openai"
	cataloguc "github.com/kailas-cloud/photodex/internal/usecase/catalog"
	embeddinguc "github.com/kailas-cloud/photodex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/photodex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/photodex/internal/usecase/ingest"
	jobuc "github.com/kailas-cloud/photodex/internal/usecase/job"
	searchuc "github.com/kailas-cloud/photodex/internal/usecase/search"
	"github.com/kailas-cloud/photodex/internal/version"
)

// nominatimRate is the public Nominatim usage policy limit.
const nominatimRate = 1.0

// jobQueue is the queue surface the composition root needs.
type jobQueue interface {
	Enqueue(ctx context.Context, job queue.Job) error
	Start(ctx context.Context, h queue.Handler)
	Shutdown()
}

func main() {
	env := config.GetEnv()
	cfg := config.MustLoad(env)

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting photodex",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("queue_driver", cfg.Queue.Driver),
		zap.String("storage_driver", cfg.Storage.Driver),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("photodex stopped with error", zap.Error(err))
	}
	logger.Info("photodex stopped gracefully")
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterJobMetrics()
	metrics.RegisterHTTPMetrics()

	// Durable store
	pool, err := postgres.NewPool(ctx, postgres.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create database pool: %w", err)
	}
	defer pool.Close()

	if err := postgres.WaitForReady(ctx, pool, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	logger.Info("Connected to database")

	// Fast query cache tier
	cache, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Cache.Addrs,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	if err != nil {
		return fmt.Errorf("create cache store: %w", err)
	}
	defer cache.Close()

	// Embedding provider chain: OpenAI-compatible provider -> client (limits, checks)
	provider, err := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:         cfg.Embedding.APIKey,
		BaseURL:        cfg.Embedding.BaseURL,
		Project:        cfg.Embedding.Project,
		Model:          cfg.Embedding.Model,
		Dimensions:     cfg.Embedding.Dimensions,
		MaxImagePixels: cfg.Embedding.MaxImagePixels,
		Timeout:        time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("create embedding provider: %w", err)
	}
	var limiter *rate.Limiter
	if cfg.Embedding.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Embedding.RateLimit), max(cfg.Embedding.RateBurst, 1))
	}
	embedder := embeddinguc.NewClient(provider, limiter, logger)
	logger.Info("Embedding client created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	files, err := buildStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	jobQ, err := buildQueue(ctx, cfg.Queue, logger)
	if err != nil {
		return err
	}

	// Capture dates and date filters share the default zone's calendar days
	defaultLoc, err := time.LoadLocation(cfg.Geo.DefaultTimezone)
	if err != nil {
		return fmt.Errorf("load default timezone: %w", err)
	}

	// Repositories
	images := imagerepo.New(pool, defaultLoc)
	queries := querycache.New(
		embedder, cache, searchquery.New(pool), cfg.Cache.QueryTTL(), metrics.QueryCacheTotal, logger,
	)

	// Use cases
	runner := jobuc.NewRunner(images, files, embedder, jobQ, jobuc.Options{
		MaxAttempts:       cfg.Jobs.MaxAttempts,
		RetryBackoff:      cfg.Jobs.RetryBackoff(),
		ProcessingTimeout: cfg.Jobs.ProcessingTimeout(),
	}, logger)

	var geocoder ingestuc.Geocoder
	if !cfg.Geo.Disabled {
		geocoder = nominatim.New(nominatim.Config{
			BaseURL:    cfg.Geo.NominatimURL,
			UserAgent:  cfg.Geo.UserAgent,
			Timeout:    time.Duration(cfg.Geo.TimeoutSec) * time.Second,
			RatePerSec: nominatimRate,
		}, logger)
	}
	var zones ingestuc.ZoneFinder
	if finder, err := timezone.NewFinder(); err != nil {
		logger.Warn("Timezone finder unavailable, using default timezone", zap.Error(err))
	} else {
		zones = finder
	}

	ingestSvc := ingestuc.New(images, exif.New(), geocoder, zones, files, jobQ, ingestuc.Options{
		Language:        cfg.Geo.Language,
		DefaultLocation: defaultLoc,
	})
	searchSvc := searchuc.New(images, queries)
	catalogSvc := cataloguc.New(images, files)
	healthSvc := healthuc.New(pool, cache, embedder)

	// Workers and sweeps
	jobQ.Start(ctx, runner)
	scheduler := jobs.NewScheduler(runner, jobs.Config{
		RetryFailedCron:       cfg.Jobs.RetryFailedCron,
		ReclaimCron:           cfg.Jobs.ReclaimCron,
		RequeuePendingOnStart: cfg.Jobs.RequeuePendingOnStart,
	}, logger)
	if err := scheduler.Start(ctx); err != nil {
		jobQ.Shutdown()
		return fmt.Errorf("start scheduler: %w", err)
	}

	// HTTP
	server := chiTransport.NewServer(chiTransport.Deps{
		Ingest:  ingestSvc,
		Search:  searchSvc,
		Catalog: catalogSvc,
		Jobs:    runner,
		Cache:   queries,
		Health:  healthSvc,
		Links:   files,
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)
	mountMedia(r, cfg.Storage)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Received shutdown signal")

		timeout := time.Duration(cfg.HTTP.ShutdownSec) * time.Second
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		scheduler.Stop(timeout)
		jobQ.Shutdown()
		if err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait() //nolint:wrapcheck // goroutines wrap
}

func buildStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Driver {
	case "minio":
		m, err := storage.NewMinio(storage.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			Region:    cfg.Minio.Region,
			UseSSL:    cfg.Minio.UseSSL,
			PublicURL: cfg.Minio.PublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("create minio storage: %w", err)
		}
		if err := m.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket: %w", err)
		}
		return m, nil
	default:
		l, err := storage.NewLocal(cfg.Local.Root, cfg.Local.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("create local storage: %w", err)
		}
		return l, nil
	}
}

func buildQueue(ctx context.Context, cfg config.QueueConfig, logger *zap.Logger) (jobQueue, error) {
	if cfg.Driver != "redis" {
		return queue.NewPool(cfg.Workers, cfg.Buffer, logger), nil
	}

	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    cfg.Addrs,
		Password: cfg.Password,
	})
	stream := queue.NewStream(client, queue.StreamConfig{
		Stream:        cfg.Stream,
		Group:         cfg.Group,
		ClaimInterval: time.Duration(cfg.ClaimIntervalSec) * time.Second,
	}, logger)
	if err := stream.EnsureGroup(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ensure stream group: %w", err)
	}
	return stream, nil
}

// mountMedia serves local storage files when the public base URL is a path on this server.
func mountMedia(r chi.Router, cfg config.StorageConfig) {
	if cfg.Driver == "minio" || !strings.HasPrefix(cfg.Local.BaseURL, "/") {
		return
	}
	prefix := strings.TrimRight(cfg.Local.BaseURL, "/")
	r.Handle(prefix+"/*", http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.Local.Root))))
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
