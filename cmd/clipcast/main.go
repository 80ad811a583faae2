package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"github.com/clipcast/clipcast/internal/config"
	"github.com/clipcast/clipcast/internal/infra/cache"
	"github.com/clipcast/clipcast/internal/infra/database"
	"github.com/clipcast/clipcast/internal/infra/repository"
	"github.com/clipcast/clipcast/internal/present/rest"
	"github.com/clipcast/clipcast/internal/service"
	"github.com/clipcast/clipcast/internal/usecase"
)

func main() {
	configPath := flag.String("config", "/etc/clipcast/config.yaml", "path to config file")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error(
			"Failed to load config",
			slog.String("error", err.Error()),
			slog.String("module", "main"),
		)
		os.Exit(1)
	}

	if conf.Server.EnableTrace {
		cleanup, err := setupTraceProvider(conf.Server.TraceEndpoint)
		if err != nil {
			slog.Error(
				"Failed to setup trace provider",
				slog.String("error", err.Error()),
				slog.String("module", "main"),
			)
			os.Exit(1)
		}
		defer cleanup()
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		slog.Error(
			"Failed to connect database",
			slog.String("error", err.Error()),
			slog.String("module", "main"),
		)
		os.Exit(1)
	}

	err = database.MigratePostgres(db)
	if err != nil {
		slog.Error(
			"Failed to migrate database",
			slog.String("error", err.Error()),
			slog.String("module", "main"),
		)
		os.Exit(1)
	}

	rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)

	documents := repository.NewDocumentRepository(db)
	edges := repository.NewEdgeRepository(db)

	var store usecase.DocumentStore = documents
	if conf.Server.MemcachedAddr != "" {
		mc := database.NewMemcached(conf.Server.MemcachedAddr)
		store = repository.NewLookupCache(documents, mc, conf.View.CacheCollections, int32(conf.View.CacheTTLSeconds))
	}

	counts := cache.NewEdgeCounts(rdb, documents, time.Duration(conf.View.EdgeCountTTL)*time.Second)
	signal := service.NewSignalService(rdb)

	view := usecase.NewViewUsecase(store, conf.View.MaxPageSize, conf.View.CursorSecret)
	toggle := usecase.NewToggleUsecase(store, edges, signal, counts)

	// Channel stats aggregate over raw SQL sums; they bypass the lookup
	// cache on purpose.
	stats := service.NewChannelStatsService(documents, counts)

	handler := rest.NewHandler(view, toggle, stats, signal)

	e := echo.New()
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("clipcast"))
	}

	handler.RegisterRoutes(e)

	e.Logger.Fatal(e.Start(conf.Server.ListenAddr))
}

func setupTraceProvider(endpoint string) (func(), error) {
	ctx := context.Background()

	exporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	resource := sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String("clipcast"),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func() {
		if err := provider.Shutdown(ctx); err != nil {
			slog.Error(
				"Failed to shutdown trace provider",
				slog.String("error", err.Error()),
				slog.String("module", "main"),
			)
		}
	}, nil
}
