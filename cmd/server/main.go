package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/falconsupport/api/internal/auth"
	"github.com/falconsupport/api/internal/blob"
	"github.com/falconsupport/api/internal/cache"
	"github.com/falconsupport/api/internal/config"
	"github.com/falconsupport/api/internal/database"
	"github.com/falconsupport/api/internal/guide"
	"github.com/falconsupport/api/internal/handler"
	"github.com/falconsupport/api/internal/identity"
	"github.com/falconsupport/api/internal/mail"
	"github.com/falconsupport/api/internal/middleware"
	"github.com/falconsupport/api/internal/ratelimit"
	"github.com/falconsupport/api/internal/scheduler"
	"github.com/falconsupport/api/internal/store"
	"github.com/falconsupport/api/internal/store/memstore"
	"github.com/falconsupport/api/internal/ticket"
	"github.com/falconsupport/api/internal/validator"
)

func main() {
	cfg := config.Load()

	// Initialize record store
	var records store.Store
	if cfg.UseMemoryStore() {
		log.Println("Using in-memory record store; data is lost on restart")
		records = memstore.New()
	} else {
		db, err := database.Connect(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := database.Migrate(db); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		records = store.NewGormStore(db)
	}

	// Initialize Redis for one-time tokens and rate limits
	var kv cache.Store
	redisCache, err := cache.NewRedisCache(cfg.RedisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v", err)
		// Continue with process-local tokens and counters (fail-open)
		kv = cache.NewMemoryStore()
	} else {
		defer redisCache.Close()
		kv = redisCache
	}

	var mailer mail.Mailer
	if cfg.MailgunDomain != "" && cfg.MailgunAPIKey != "" {
		mailer = mail.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailFrom)
	} else {
		log.Println("Mailgun not configured; mail will be logged")
		mailer = &mail.LogMailer{}
	}

	blobs, err := blob.NewDiskStore(cfg.BlobDir)
	if err != nil {
		log.Fatalf("Failed to open blob store: %v", err)
	}

	v := validator.New()
	identityService := identity.NewService(records, kv, mailer, identity.Options{
		AllowedDomain: cfg.AllowedEmailDomain,
		JWTSecret:     cfg.JWTSecret,
		LinkBaseURL:   cfg.FrontendURL,
	})
	ticketService := ticket.NewService(records, blobs, v)
	guideService := guide.NewService(records, blobs, v, cfg.PublicBaseURL)

	// Initialize and start the orphan sweeper if enabled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sweeper handler.StatusReporter
	if cfg.SweepEnabled {
		s := scheduler.NewOrphanSweeper(records, records, blobs, scheduler.SweeperConfig{
			Interval: cfg.SweepInterval,
			Grace:    cfg.SweepGrace,
		})
		go s.Start(ctx)
		defer s.Stop()
		sweeper = s
		log.Println("Background orphan sweeper started")
	}

	r := handler.NewRouter(handler.Deps{
		Identity:      identityService,
		Tickets:       ticketService,
		Guides:        guideService,
		Blobs:         blobs,
		Limiter:       ratelimit.NewLimiter(kv, nil),
		Sessions:      auth.NewSessionCodec(cfg.CookieHashKey, cfg.CookieBlockKey, strings.HasPrefix(cfg.PublicBaseURL, "https://")),
		GoogleConfig:  auth.NewGoogleConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL),
		JWTSecret:     cfg.JWTSecret,
		FrontendURL:   cfg.FrontendURL,
		PublicBaseURL: cfg.PublicBaseURL,
		Sweeper:       sweeper,
	})

	h, err := middleware.Compress(r)
	if err != nil {
		log.Fatalf("Failed to set up compression: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("API server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
}
