package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/upwork-job-applier/internal/archive"
	"github.com/justsurfingit/upwork-job-applier/internal/config"
	"github.com/justsurfingit/upwork-job-applier/internal/database"
	"github.com/justsurfingit/upwork-job-applier/internal/handlers"
	"github.com/justsurfingit/upwork-job-applier/internal/logger"
	"github.com/justsurfingit/upwork-job-applier/internal/metrics"
	"github.com/justsurfingit/upwork-job-applier/internal/notify"
	"github.com/justsurfingit/upwork-job-applier/internal/runlock"
	"github.com/justsurfingit/upwork-job-applier/internal/services"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Configuration (.env + environment)
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Error loading configuration: ", err)
	}

	zlog, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatal("Error building logger: ", err)
	}
	defer zlog.Sync()
	zlog.Info("⚙️ configuration loaded", zap.Stringer("config", cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Database Connection
	db, err := database.Connect(cfg.Database, zlog)
	if err != nil {
		zlog.Fatal("❌ database unavailable", zap.Error(err))
	}

	// 3. Initialize Core Services (Dependencies)
	m := metrics.New()
	llmService, err := services.NewLLMService(ctx, cfg.LLM, zlog, m)
	if err != nil {
		zlog.Fatal("❌ failed to create LLM client", zap.Error(err))
	}
	userService := services.NewUserService(db, cfg.SessionTTL)
	jobService, err := services.NewJobService(db)
	if err != nil {
		zlog.Fatal("❌ failed to create job service", zap.Error(err))
	}
	jobService.HighScore = cfg.Pipeline.HighScore
	promptService := services.NewPromptService(db, userService)

	// 4. Archive + Notifications
	archiveWriter := archive.NewWriter(cfg.DataDir)
	var sender notify.Sender
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegramSender(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			zlog.Warn("⚠️ telegram disabled", zap.Error(err))
		} else {
			sender = tg
			zlog.Info("✅ telegram notifications enabled")
		}
	}
	notifications := notify.NewStore(cfg.DataDir, sender, zlog)

	// 5. Pipeline
	pipeline := services.NewPipeline(services.Pipeline{
		Jobs:      jobService,
		Scorer:    services.NewScoringService(llmService, promptService, cfg.Pipeline.ScoringMode, zlog),
		Generator: services.NewApplicationService(llmService, promptService, zlog),
		Archive:   archiveWriter,
		Notifier:  notifications,
		Users:     userService,
		Profile:   services.FileProfile{Path: cfg.ProfilePath},
		Config:    cfg.Pipeline,
		Metrics:   m,
	}, zlog)

	// 6. Run lock: redis when configured, otherwise in-process
	var locker runlock.Locker = runlock.NewMemoryLocker()
	if cfg.Redis.Addr != "" {
		rdb := runlock.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := rdb.Ping(ctx).Err(); err != nil {
			zlog.Warn("⚠️ redis unreachable, using in-memory run lock", zap.Error(err))
		} else {
			locker = runlock.NewRedisLocker(rdb, cfg.Redis.LockTTL)
			zlog.Info("✅ redis run lock connected", zap.String("addr", cfg.Redis.Addr))
		}
	}

	// 7. Expired session sweeper
	go sweepSessions(ctx, userService, zlog)

	// 8. Setup Router & Routes
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.Deps{
		Users:         userService,
		Jobs:          jobService,
		Prompts:       promptService,
		Pipeline:      pipeline,
		Archive:       archiveWriter,
		Notifications: notifications,
		Locker:        locker,
		Metrics:       m,
		Log:           zlog,
		CORSOrigins:   cfg.CORSOrigins(),
	})

	srv := &http.Server{Addr: cfg.ServerAddr(), Handler: router}
	go func() {
		zlog.Info("🚀 server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("🛑 shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
}

func sweepSessions(ctx context.Context, users *services.UserService, zlog *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := users.CleanupExpiredSessions(ctx)
			if err != nil {
				zlog.Warn("⚠️ session cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				zlog.Info("🧹 expired sessions cleaned", zap.Int64("count", n))
			}
		}
	}
}
