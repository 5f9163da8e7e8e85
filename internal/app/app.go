// Package app wires configuration, storage, the HTTP server and the token
// sweeper into one process lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexus-webapi/nexus/internal/auth"
	"github.com/nexus-webapi/nexus/internal/authz"
	"github.com/nexus-webapi/nexus/internal/config"
	"github.com/nexus-webapi/nexus/internal/db"
	nexushttp "github.com/nexus-webapi/nexus/internal/http"
	"github.com/nexus-webapi/nexus/internal/logging"
	"github.com/nexus-webapi/nexus/internal/settings"
	"github.com/nexus-webapi/nexus/internal/store"
	"github.com/nexus-webapi/nexus/internal/sweeper"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Migrate opens the database, runs migrations and seeds the built-in
// permission keys.
func Migrate(ctx context.Context, app config.AppConfig) error {
	dsn, err := config.LoadDatabaseDSN(app)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	defer closeDB(conn)
	if errPrepare := prepareSchema(ctx, conn); errPrepare != nil {
		return errPrepare
	}
	log.Info("database migrated")
	return nil
}

// RunServer serves the API and runs the token sweeper until ctx is done.
func RunServer(ctx context.Context, app config.AppConfig) error {
	cfg, err := config.Load(app)
	if err != nil {
		return err
	}
	logCloser, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()
	gin.SetMode(ginMode(cfg.Server.Mode))

	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer closeDB(conn)
	if errPrepare := prepareSchema(ctx, conn); errPrepare != nil {
		return errPrepare
	}
	if errRefresh := settings.Refresh(ctx, conn); errRefresh != nil {
		log.WithError(errRefresh).Warn("settings refresh failed; using defaults")
	}

	gormStore := store.NewGorm(conn)
	issuer := auth.NewIssuer(gormStore, cfg.JWT.TokenOptions())
	authorizer := authz.NewAuthorizer(gormStore, authz.DefaultPolicies()...)

	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled() {
		client, errRedis := connectRedis(ctx, cfg.Redis)
		if errRedis != nil {
			return errRedis
		}
		defer func() { _ = client.Close() }()
		redisClient = client
	}
	tokenSweeper := sweeper.New(gormStore, sweeper.Options{
		Interval:   cfg.Sweeper.Interval,
		Redis:      redisClient,
		LockKey:    cfg.Sweeper.LockKey,
		LockTTL:    cfg.Sweeper.LockTTL,
		SettingsDB: conn,
	})

	router, err := nexushttp.NewRouter(nexushttp.Deps{
		DB:                conn,
		Store:             gormStore,
		Auth:              auth.NewService(gormStore, gormStore, issuer),
		Authorizer:        authorizer,
		Token:             cfg.JWT.TokenOptions(),
		TrustedProxies:    cfg.Server.TrustedProxies,
		AttemptsPerMinute: cfg.Server.AttemptsPerMinute,
		Development:       gin.Mode() == gin.DebugMode,
	})
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tokenSweeper.Run(gctx)
	})
	g.Go(func() error {
		log.Infof("nexus listening on %s", cfg.Server.Addr)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return fmt.Errorf("http: serve: %w", errServe)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down http server")
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return fmt.Errorf("http: shutdown: %w", errShutdown)
		}
		return nil
	})
	errWait := g.Wait()
	log.Infof("token sweeper %s", tokenSweeper.State())
	return errWait
}

func prepareSchema(ctx context.Context, conn *gorm.DB) error {
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return errMigrate
	}
	return db.SeedPermissions(conn.WithContext(ctx), permissionKeys(authz.DefaultPolicies()))
}

func permissionKeys(policies []authz.Policy) []string {
	seen := make(map[string]struct{}, len(policies))
	keys := make([]string, 0, len(policies))
	for _, p := range policies {
		if _, ok := seen[p.Key]; ok || p.Key == "" {
			continue
		}
		seen[p.Key] = struct{}{}
		keys = append(keys, p.Key)
	}
	return keys
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, errPing)
	}
	return client, nil
}

func ginMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case gin.DebugMode:
		return gin.DebugMode
	case gin.TestMode:
		return gin.TestMode
	default:
		return gin.ReleaseMode
	}
}

func closeDB(conn *gorm.DB) {
	if sqlDB, errDB := conn.DB(); errDB == nil {
		_ = sqlDB.Close()
	}
}
