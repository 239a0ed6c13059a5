package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/MG177/certificate-generator-v2-sub000/internal/api"
	"github.com/MG177/certificate-generator-v2-sub000/internal/config"
	"github.com/MG177/certificate-generator-v2-sub000/internal/domain"
	"github.com/MG177/certificate-generator-v2-sub000/internal/pkg/distlock"
	"github.com/MG177/certificate-generator-v2-sub000/internal/ratelimit"
	"github.com/MG177/certificate-generator-v2-sub000/internal/render"
	"github.com/MG177/certificate-generator-v2-sub000/internal/repository/postgres"
	"github.com/MG177/certificate-generator-v2-sub000/internal/service/delivery"
	"github.com/MG177/certificate-generator-v2-sub000/internal/service/event"
	"github.com/MG177/certificate-generator-v2-sub000/internal/smtp"
)

func main() {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}
	log.Println("Connected to database")

	var redisClient *redis.Client
	if cfg.Email.RateLimitStore == "redis" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("parse redis url: %v", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}
	limiter := buildLimiter(redisClient)

	templates, err := render.NewStore(cfg.Storage.TemplateDir)
	if err != nil {
		log.Fatalf("template store: %v", err)
	}

	eventRepo := postgres.NewEventRepo(db)
	logRepo := postgres.NewEmailLogRepo(db)

	eventSvc := event.NewService(eventRepo, event.Defaults{
		SMTPHost:    cfg.Email.DefaultHost,
		SMTPPort:    cfg.Email.DefaultPort,
		Username:    cfg.Email.Username,
		Password:    cfg.Email.Password,
		FromName:    cfg.Email.DefaultFromName,
		FromAddress: cfg.Email.DefaultFromAddress,
	})

	deliverySvc := delivery.NewService(delivery.Deps{
		Events:  eventRepo,
		Logs:    logRepo,
		Limiter: limiter,
		Transport: func(c domain.EmailConfig) delivery.Transport {
			return smtp.NewClient(c)
		},
		Render:      templates.Certificate,
		HourlyLimit: cfg.Email.HourlyLimit,
		BatchSize:   cfg.Email.BatchSize,
		BatchDelay:  cfg.Email.BatchDelay(),
	})

	handlers := api.NewHandlers(eventSvc, deliverySvc, templates, cfg.Storage.MaxUploadBytes())
	server := api.NewServer(handlers, cfg.Server.AllowedOrigins)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweepLock := distlock.NewLock(redisClient, db, "email-log-retention", cfg.Retention.SweepInterval())
	go runRetentionSweep(ctx, deliverySvc, cfg.Retention, sweepLock)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

func buildLimiter(redisClient *redis.Client) ratelimit.Limiter {
	if redisClient != nil {
		log.Println("Using Redis-backed rate limiter")
		return ratelimit.NewRedis(redisClient)
	}
	log.Println("Using in-memory rate limiter")
	return ratelimit.NewMemory()
}

// runRetentionSweep purges expired email log entries on an interval. The
// distributed lock keeps multiple instances from sweeping at once.
func runRetentionSweep(ctx context.Context, svc *delivery.Service, cfg config.RetentionConfig, lock distlock.DistLock) {
	ticker := time.NewTicker(cfg.SweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := lock.Acquire(ctx)
			if err != nil {
				log.Printf("retention sweep lock: %v", err)
				continue
			}
			if !ok {
				continue
			}
			n, err := svc.PurgeLogs(ctx, cfg.EmailLogMaxAge())
			if relErr := lock.Release(ctx); relErr != nil {
				log.Printf("retention sweep unlock: %v", relErr)
			}
			if err != nil {
				log.Printf("retention sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("retention sweep removed %d email log entries", n)
			}
		}
	}
}
