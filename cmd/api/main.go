package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"keyframe/server/internal/adapter/repo"
	"keyframe/server/internal/domain"
	httpapi "keyframe/server/internal/http"
	"keyframe/server/internal/http/handlers"
	"keyframe/server/internal/infra"
	"keyframe/server/internal/job"
	imageprovider "keyframe/server/internal/providers/image"
	videoprovider "keyframe/server/internal/providers/video"
	"keyframe/server/internal/ratelimit"
	"keyframe/server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	runner := infra.NewSQLRunner(dbpool, logger)

	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	var windowStore ratelimit.WindowStore
	if redisClient != nil {
		windowStore = ratelimit.NewRedisStore(redisClient)
		logger.Info().Msg("rate limiting backed by redis")
	} else {
		windowStore = ratelimit.NewMemoryStore()
		logger.Warn().Msg("REDIS_URL not set, rate limiting is process-local")
	}
	limiter := ratelimit.New(windowStore)

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure artifact storage")
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	imageClient := imageprovider.NewClient(imageprovider.Options{
		APIKey:     cfg.ImageAPIKey,
		BaseURL:    cfg.ImageBaseURL,
		Model:      cfg.ImageModel,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	videoClient := videoprovider.NewClient(videoprovider.Options{
		APIKey:     cfg.VideoAPIKey,
		BaseURL:    cfg.VideoBaseURL,
		Model:      cfg.VideoModel,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	frames := imageprovider.NewAdapter(imageClient, fileStore, cfg.StorageBaseURL, cfg.ImageTimeout)
	interp := videoprovider.NewAdapter(videoClient, cfg.VideoTimeout, cfg.VideoPollPeriod)

	jobStore := repo.NewJobStore(runner)
	ledger := repo.NewCreditLedger(runner)

	orchestrator := job.NewOrchestrator(jobStore, ledger, limiter, frames, interp, logger, job.Config{
		FrameTimeout: cfg.ImageTimeout,
		VideoTimeout: cfg.VideoTimeout,
		RateWindow:   cfg.RateLimitWindow,
		RateLimits: map[domain.UserPlan]int{
			domain.UserPlanFree:    cfg.RateLimitFreePerWin,
			domain.UserPlanPro:     cfg.RateLimitProPerWin,
			domain.UserPlanPremium: cfg.RateLimitPremiumPerWin,
		},
	})
	defer orchestrator.Close()

	// Settle whatever a previous process left behind before taking traffic.
	if err := orchestrator.RecoverUnsettled(ctx, cfg.VideoTimeout+time.Minute); err != nil {
		logger.Error().Err(err).Msg("startup recovery sweep failed")
	}

	app := handlers.NewApp(orchestrator, ledger, logger)
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:         logger,
		Throttle:       limiter,
		ThrottlePerMin: cfg.HTTPThrottlePerMin,
		AllowedOrigins: []string{"http://localhost:3000"},
		StaticDir:      storagePath,
	})

	server := infra.NewHTTPServer(cfg, router)
	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
