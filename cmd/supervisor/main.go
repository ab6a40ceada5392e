package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"stratlab/internal/allocator"
	"stratlab/internal/competition"
	"stratlab/internal/config"
	cronrunner "stratlab/internal/cron"
	"stratlab/internal/db"
	"stratlab/internal/graduation"
	"stratlab/internal/handler"
	"stratlab/internal/health"
	"stratlab/internal/killswitch"
	"stratlab/internal/logger"
	"stratlab/internal/registry"
	gormrepository "stratlab/internal/repository/gorm"
	"stratlab/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("STRAT_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	envOnly := false
	if envOnlyRaw := os.Getenv("STRAT_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	reg := &registry.Service{Repo: store, Logger: logger}
	pauseMgr := &service.PauseManager{Registry: reg, Logger: logger}
	healthMon := &health.Monitor{Config: cfg.Health, Repo: store, Registry: reg, Logger: logger}
	gradEngine := &graduation.Engine{Config: cfg.Graduation, Repo: store, Registry: reg, Logger: logger}
	alloc := &allocator.Allocator{Config: cfg.Allocator, Repo: store, Registry: reg, Logger: logger}
	leaderboard := &competition.Engine{Config: cfg.Competition, Repo: store, Logger: logger}
	killSwitch := &killswitch.Manager{Config: cfg.KillSwitch, Repo: store, Registry: reg, Logger: logger}
	supervisor := &service.Supervisor{
		Config:     cfg.Scheduler,
		Registry:   reg,
		Health:     healthMon,
		Graduation: gradEngine,
		Allocator:  alloc,
		KillSwitch: killSwitch,
		Logger:     logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm, Monitor: healthMon}
	healthHandler.Register(engine)
	strategyHandler := &handler.StrategyHandler{
		Registry:   reg,
		Pause:      pauseMgr,
		Graduation: gradEngine,
		Board:      leaderboard,
		Repo:       store,
	}
	strategyHandler.Register(engine)
	leaderboardHandler := &handler.LeaderboardHandler{Engine: leaderboard}
	leaderboardHandler.Register(engine)
	killSwitchHandler := &handler.KillSwitchHandler{Manager: killSwitch}
	killSwitchHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Scheduler.Enabled {
		_, err = cronRunner.Add(cfg.Scheduler.TickSpec, func(ctx context.Context) {
			if err := supervisor.RunOnce(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("supervision tick failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("cron register supervision tick failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
