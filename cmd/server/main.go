package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"roomspace/internal/api"
	"roomspace/internal/availability"
	"roomspace/internal/config"
	"roomspace/internal/database"
	"roomspace/internal/lifecycle"
	"roomspace/internal/metrics"
	"roomspace/internal/models"
	"roomspace/internal/notify"
	"roomspace/internal/remind"
	"roomspace/internal/suggest"
	"roomspace/internal/sweep"
	"roomspace/internal/timeutil"
	"roomspace/internal/walkin"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("ROOMSPACE_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	clock, err := timeutil.NewClock(cfg.Timezone)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid timezone")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()
	db.SetBookingDefaults(models.BookingRule{
		GracePeriodMinutes: cfg.GracePeriod(),
		MaxDurationMinutes: cfg.MaxDuration(),
		MaxAdvanceDays:     cfg.MaxAdvanceDays(),
	})

	var rdb *redis.Client
	var demand suggest.DemandSource
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		demand = suggest.NewRedisDemand(rdb)
	} else {
		logger.Warn().Msg("redis not configured, suggestions score without demand data")
		demand = suggest.StaticDemand{}
	}

	var sender notify.Sender
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != 0 {
		tg, err := notify.NewTelegramSender(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init telegram sender")
		}
		sender = tg
	} else {
		logger.Info().Msg("telegram not configured, notifications go to the log")
		sender = &notify.LogSender{Logger: logger}
	}
	notifier := notify.NewDispatcher(sender, 20, logger)

	suggester := suggest.NewEngine(db, demand, clock, logger)
	detector := availability.NewDetector(db, suggester, clock, logger)
	lifecycleSvc := lifecycle.NewService(db, detector, notifier, clock, logger)
	walkins := walkin.NewService(db, notifier, clock, logger)
	sweeper := sweep.NewSweeper(db, notifier, clock, cfg.SweepInterval(), logger)

	var reminders *remind.Processor
	if cfg.Reminders.Enabled {
		reminders = remind.NewProcessor(db, notifier, clock, cfg.ReminderInterval(), logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper.Start(ctx)
	defer sweeper.Stop()
	if reminders != nil {
		reminders.Start(ctx)
		defer reminders.Stop()
	}

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(db, database.BackupConfig{
			Enabled:       true,
			Interval:      time.Duration(cfg.Backup.IntervalHours) * time.Hour,
			StoragePath:   cfg.Backup.Path,
			RetentionDays: cfg.Backup.RetentionDays,
		}, &logger)
		go backup.Start(ctx)
	}

	go startHealthServer(ctx, cfg.Server.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		port := cfg.Monitoring.PrometheusPort
		if port == 0 {
			port = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, port, &logger)
	}

	server := api.NewServer(db, detector, suggester, lifecycleSvc, walkins, sweeper, reminders, cfg.CronToken, logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Int("port", cfg.Server.Port).Str("timezone", cfg.Timezone).Msg("reservation engine started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("api server error")
	}
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
