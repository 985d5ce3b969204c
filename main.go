package main

import (
	"context"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"shoplist-api/api"
	"shoplist-api/config"
	"shoplist-api/storage"
	"shoplist-api/suggest"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.StandardLogger()

	store, err := newStore(cfg, logger)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	var suggester api.Suggester
	if cfg.SuggestEnabled() {
		suggester = suggest.New(
			suggest.ParseModels(cfg.SuggestURL, cfg.SuggestKey, cfg.SuggestModels),
			suggest.WithTimeout(cfg.SuggestTimeout),
			suggest.WithLogger(logger),
		)
	} else {
		log.Info("SUGGEST_API_URL or SUGGEST_MODELS not set, suggestions disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.HTTPErrorHandler(logger)
	e.Use(middleware.Recover())
	e.Use(api.CORS(cfg.CORSOrigins))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{Subsystem: "shoplist"}))
	e.Use(api.GzipRequestMiddleware())
	e.GET("/metrics", echoprometheus.NewHandler())

	opts := api.DefaultOptions()
	opts.DefaultTitle = cfg.DefaultTitle
	opts.MaxBodyBytes = cfg.MaxBodyBytes
	api.Register(e, store, suggester, opts, logger)

	e.Logger.Fatal(e.Start(cfg.ListenAddr))
}

func newStore(cfg config.Config, logger *log.Logger) (api.Storage, error) {
	var rc *redis.Client
	if cfg.RedisConn != "" {
		redisOpts, err := storage.ParseRedisOptions(cfg.RedisConn)
		if err != nil {
			return nil, err
		}
		rc = redis.NewClient(redisOpts)
	}

	if cfg.Backend == config.BackendRedis {
		return storage.NewRedisStore(rc), nil
	}

	table, err := storage.NewTableStore(cfg.StorageConn, cfg.ListsTable)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := table.EnsureTable(ctx); err != nil {
		return nil, err
	}
	if cfg.CacheTTL > 0 {
		return storage.NewCache(table, rc, cfg.CacheTTL, logger), nil
	}
	return table, nil
}
