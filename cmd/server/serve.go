package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/aura/internal/analytics"
	"github.com/iliyamo/aura/internal/catalog"
	"github.com/iliyamo/aura/internal/config"
	"github.com/iliyamo/aura/internal/database"
	"github.com/iliyamo/aura/internal/handler"
	"github.com/iliyamo/aura/internal/mailer"
	"github.com/iliyamo/aura/internal/metrics"
	"github.com/iliyamo/aura/internal/middleware"
	"github.com/iliyamo/aura/internal/repository"
	"github.com/iliyamo/aura/internal/router"
	publisher "github.com/iliyamo/aura/internal/service"
	"github.com/iliyamo/aura/internal/storage"
	"github.com/iliyamo/aura/internal/trailer"
	"github.com/iliyamo/aura/internal/upstream"
	"github.com/iliyamo/aura/internal/verification"
)

func newServeCommand() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, migrate bool) error {
	cfg := config.Load()
	log := newLogger(cfg)
	defer func() { _ = log.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()

	if migrate {
		m, err := database.NewMigrator(db, log)
		if err != nil {
			return err
		}
		if err := m.Up(); err != nil {
			return err
		}
	}

	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.Warn("redis unavailable; cache and rate limit disabled", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	m := metrics.New()

	upCfg := config.LoadUpstreamConfig()
	policy := upstream.PolicyFromConfig(upCfg)
	limiter := upstream.NewLimiter(upCfg.RequestsPerSecond, upCfg.Burst)
	httpClient := &http.Client{}

	tmdb, err := catalog.New(upCfg.TMDBAccessToken, upCfg.TMDBBaseURL,
		upstream.NewCaller("tmdb", policy, limiter, log, m),
		catalog.WithHTTPClient(httpClient),
		catalog.WithAPIKey(upCfg.TMDBAPIKey),
		catalog.WithLanguage(upCfg.TMDBLanguage))
	if err != nil {
		return err
	}
	youtube := trailer.New(upCfg.YouTubeAPIKey, upCfg.YouTubeBaseURL,
		upstream.NewCaller("youtube", policy, nil, log, m), httpClient, log)

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	profiles := repository.NewProfileRepo(db)
	codes := repository.NewVerificationRepo(db)
	movies := repository.NewMovieRepo(db)
	watchlist := repository.NewWatchlistRepo(db)
	ratings := repository.NewRatingRepo(db)
	views := repository.NewViewRepo(db)

	sender := mailer.New(config.LoadMailConfig(), log)
	verifier := verification.NewService(db, codes, users, sender, log)
	tracker := analytics.NewTracker(views, movies)

	events := publisher.New(cfg.AMQPURL, log)
	defer events.Close()

	storageCfg := config.LoadStorageConfig()
	avatars, err := storage.New(ctx, storageCfg, log)
	if err != nil {
		return err
	}

	cacheCfg := config.LoadCacheConfig()
	movieHandler := &handler.MovieHandler{
		Catalog:   tmdb,
		Movies:    movies,
		Trailers:  youtube,
		Watchlist: watchlist,
		Ratings:   ratings,
		Views:     tracker,
		Events:    events,
		Metrics:   m,
		Logger:    log,
	}

	e := router.New(log, m)
	router.RegisterRoutes(e, db, m)
	router.RegisterAuth(e, &handler.AuthHandler{
		Cfg:          cfg,
		DB:           db,
		Users:        users,
		Tokens:       tokens,
		Profiles:     profiles,
		Verification: verifier,
		Events:       events,
		Metrics:      m,
		Logger:       log,
	}, cfg.JWTSecret, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	router.RegisterProfile(e, &handler.ProfileHandler{
		BcryptCost:     cfg.BcryptCost,
		MaxAvatarBytes: storageCfg.MaxAvatarBytes,
		Users:          users,
		Profiles:       profiles,
		Watchlist:      watchlist,
		Ratings:        ratings,
		Avatars:        avatars,
		Logger:         log,
	}, cfg.JWTSecret)
	router.RegisterMovies(e, movieHandler, cfg.JWTSecret, middleware.NewRedisCache(cacheCfg, rdb))
	router.RegisterSupervisor(e, &handler.SupervisorHandler{
		Movies:    movieHandler,
		Toggler:   movies,
		Analytics: tracker,
		Cache:     middleware.NewCachePurger(cacheCfg, rdb),
		Logger:    log,
	}, cfg.JWTSecret)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
