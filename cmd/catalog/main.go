package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"MenuStore/internal/assets"
	"MenuStore/internal/auth"
	"MenuStore/internal/catalog"
	"MenuStore/internal/config"
	"MenuStore/internal/events"
	"MenuStore/pkg/kit"
)

const startupTimeout = 10 * time.Second

func main() {
	service := "catalog"

	cfg, cfgErr := config.Load()
	log := kit.NewLogger(service, cfg.LogFile)
	defer func() { _ = log.Sync() }()

	if cfgErr != nil {
		log.Fatal("invalid configuration", zap.Error(cfgErr))
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatal("open catalog backend failed", zap.Error(err), zap.String("driver", cfg.DataDriver))
	}
	defer closeBackend()

	assetStore, err := openAssets(cfg)
	if err != nil {
		log.Fatal("open asset store failed", zap.Error(err), zap.String("driver", cfg.AssetDriver))
	}

	publisher, closePublisher := openPublisher(cfg, log)
	defer closePublisher()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := catalog.New(catalog.Deps{
		Store:   catalog.NewDocumentStore(backend, catalog.UUIDs{}, log),
		Assets:  assetStore,
		Events:  publisher,
		Log:     log,
		Metrics: catalog.NewMetrics(reg),
	})

	s := &catalog.Server{
		Catalog:        c,
		Log:            log,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
	if cfg.AssetDriver == config.AssetsLocal {
		s.UploadDir = cfg.UploadDir
	}
	if fi, err := os.Stat(cfg.StaticDir); err == nil && fi.IsDir() {
		s.StaticDir = cfg.StaticDir
	}

	if cfg.AuthEnabled() {
		gate, err := newGate(cfg)
		if err != nil {
			log.Fatal("init auth gate failed", zap.Error(err))
		}
		s.RequireAuth = auth.Require(gate)
		if cfg.JWTSecret != "" {
			s.Auth = (&auth.Server{Log: log, Gate: gate, TrustedProxies: cfg.TrustedProxies}).Routes()
		}
	} else {
		log.Warn("API_PASSWORD is not set, product changes are not authenticated")
	}

	h := catalog.NewHandler(s, catalog.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.MetricsEnabled,
		MetricsToken:   cfg.MetricsToken,
		CORSOrigin:     cfg.CORSOrigin,
	})

	log.Info("catalog configured",
		zap.String("data_driver", cfg.DataDriver),
		zap.String("source", backend.Source()),
		zap.String("asset_driver", cfg.AssetDriver),
		zap.Bool("auth", cfg.AuthEnabled()),
		zap.Bool("events", cfg.AMQPURL != ""),
	)

	if err := kit.RunHTTPServer(":"+cfg.Port, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

func openBackend(ctx context.Context, cfg config.Config) (catalog.Backend, func(), error) {
	switch cfg.DataDriver {
	case config.DriverPostgres:
		db, err := catalog.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		b := catalog.NewPostgresBackend(db, cfg.DocumentName)
		if err := b.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return b, func() { _ = db.Close() }, nil

	case config.DriverRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		b := catalog.NewRedisBackend(rdb, cfg.RedisKey)
		if err := b.Ping(ctx); err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		return b, func() { _ = rdb.Close() }, nil

	default:
		return catalog.NewFileBackend(cfg.DataFile), func() {}, nil
	}
}

func openAssets(cfg config.Config) (assets.Store, error) {
	if cfg.AssetDriver == config.AssetsS3 {
		sess, err := assets.NewS3Session(cfg.AWSRegion, cfg.S3Endpoint)
		if err != nil {
			return nil, err
		}
		return assets.NewS3Store(sess, cfg.S3Bucket, cfg.MaxUploadBytes), nil
	}
	return assets.NewLocalStore(cfg.UploadDir, cfg.MaxUploadBytes), nil
}

func openPublisher(cfg config.Config, log *zap.Logger) (catalog.Publisher, func()) {
	if cfg.AMQPURL == "" {
		return catalog.NopPublisher{}, func() {}
	}

	p, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue)
	if err != nil {
		log.Warn("rabbitmq unavailable, change events are disabled", zap.Error(err))
		return catalog.NopPublisher{}, func() {}
	}
	return p, closeQuietly(p)
}

func newGate(cfg config.Config) (*auth.Gate, error) {
	var tokens *auth.TokenMaker
	if cfg.JWTSecret != "" {
		tokens = auth.NewTokenMaker(cfg.JWTSecret)
	}
	if cfg.APIPasswordHash != "" {
		return auth.NewGateFromHash(cfg.APIPasswordHash, tokens, cfg.TokenTTL)
	}
	return auth.NewGate(cfg.APIPassword, bcrypt.DefaultCost, tokens, cfg.TokenTTL)
}

func closeQuietly(c io.Closer) func() {
	return func() { _ = c.Close() }
}
