package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/secure-file-share/internal/config"
	"github.com/iliyamo/secure-file-share/internal/database"
	"github.com/iliyamo/secure-file-share/internal/handler"
	"github.com/iliyamo/secure-file-share/internal/queue"
	"github.com/iliyamo/secure-file-share/internal/repository"
	"github.com/iliyamo/secure-file-share/internal/router"
	"github.com/iliyamo/secure-file-share/internal/storage"
)

func main() {
	_ = godotenv.Load() // optional .env for local development

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	blobs, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	users := repository.NewUserRepo(db)
	sessions := repository.NewSessionRepo(db)
	files := repository.NewFileRepo(db)

	retention := time.Duration(cfg.GrantRetentionMin) * time.Minute
	rdb := config.NewRedisClient() // nil when unreachable; consumers degrade

	// Grant store: Redis when reachable (atomic Lua consume, TTL-based
	// GC), durable MySQL otherwise.
	var grants repository.GrantStore
	if rdb != nil {
		grants = repository.NewRedisGrantStore(rdb, retention)
		log.Printf("grant store: redis")
	} else {
		grants = repository.NewGrantRepo(db)
		log.Printf("grant store: mysql")
	}

	// Background delivery of verification mails.
	go func() {
		if err := queue.StartVerificationConsumer(); err != nil {
			log.Printf("verification consumer stopped: %v", err)
		}
	}()

	// Best-effort GC of expired grants past the audit retention window.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if n, err := grants.DeleteExpired(ctx, retention); err != nil {
				log.Printf("grant gc: %v", err)
			} else if n > 0 {
				log.Printf("grant gc: removed %d expired grants", n)
			}
			cancel()
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, sessions),
		config.LoadRateLimitConfig(), rdb, cfg.JWTSecret)
	router.RegisterFiles(e,
		handler.NewFileHandler(cfg, files, blobs),
		handler.NewDownloadHandler(cfg, files, grants, blobs),
		cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
