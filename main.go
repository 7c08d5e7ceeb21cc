package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"admitchat/internal/api"
	"admitchat/internal/auth"
	"admitchat/internal/config"
	"admitchat/internal/redis"
	"admitchat/internal/relay"
	"admitchat/internal/service/account"
	"admitchat/internal/service/conversation"
	"admitchat/internal/service/faq"
	"admitchat/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("ADMITCHAT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := newLogger(cfg.BasicConfig.LogLevel)
	slog.SetDefault(logger)

	dbType := os.Getenv("ADMITCHAT_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("create redis client: %v", err)
		}
		defer rdb.Close()
	}

	// Create necessary tables: users, messages, user_tokens
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	accounts := account.NewService(db, logger)
	if err := accounts.EnsureAdmin(context.Background(), cfg.Admin); err != nil {
		log.Fatalf("seed admin account: %v", err)
	}

	conversations := conversation.NewService(db, cfg.Admin.ID, logger)
	faqService := faq.NewService(cfg.FAQ, logger)

	tokenTTL := time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute
	authService := auth.NewService(db, rdb, cfg.Admin.ID, tokenTTL)

	cleanCtx, cleanCancel := context.WithCancel(context.Background())
	defer cleanCancel()
	cleanInterval := time.Duration(cfg.Auth.CleanIntervalMinutes) * time.Minute
	authService.StartTokenCleaner(cleanCtx, cleanInterval)

	hub := relay.NewHub(authService, logger)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	handlers := api.NewHandler(accounts, conversations, faqService, authService, hub, rdb)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
