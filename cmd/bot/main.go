package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cephalgo/diary-bot/internal/assistant"
	"github.com/cephalgo/diary-bot/internal/bot"
	"github.com/cephalgo/diary-bot/internal/orchestrator"
	"github.com/cephalgo/diary-bot/internal/scheduler"
	"github.com/cephalgo/diary-bot/internal/session"
	"github.com/cephalgo/diary-bot/internal/speech"
	"github.com/cephalgo/diary-bot/internal/storage"
	"github.com/cephalgo/diary-bot/pkg/config"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Optional .env for local runs; real deployments use the environment.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	var sessions session.Store
	if cfg.Redis.UseRedis {
		logger.Info("Using redis session store", zap.String("addr", cfg.Redis.Addr))
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		sessions = session.NewRedisStore(client, cfg.Redis.SessionTTL)
	} else {
		logger.Info("Using in-memory session store")
		sessions = session.NewMemoryStore()
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	tokens := speech.NewIAMTokenSource(cfg.Yandex.OAuthToken, httpClient, logger)
	if _, err := tokens.Token(ctx); err != nil {
		logger.Fatal("Failed to obtain IAM token", zap.Error(err))
	}
	go tokens.Run(ctx, cfg.Yandex.TokenRefresh)

	agent := assistant.New(cfg.OpenAI.APIKey, cfg.OpenAI.PollInterval, cfg.OpenAI.PollTimeout, logger)

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		logger.Fatal("Failed to load timezone", zap.Error(err), zap.String("timezone", cfg.Scheduler.Timezone))
	}

	tgBot, err := bot.New(cfg.Telegram.Token, cfg.Telegram.ThrottlePeriod,
		cfg.Telegram.ThrottleMaxRate, store, sessions, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	sched, err := scheduler.New(store, tgBot, location, logger)
	if err != nil {
		logger.Fatal("Failed to create scheduler", zap.Error(err))
	}

	orch := orchestrator.New(orchestrator.Deps{
		Storage:    store,
		Sessions:   sessions,
		Agent:      agent,
		Transport:  tgBot,
		Recognizer: speech.NewRecognizer(tokens, cfg.Yandex.FolderID, httpClient, logger),
		Synth:      speech.NewSynthesizer(tokens, cfg.Yandex.FolderID, httpClient, logger),
		Translator: speech.NewTranslator(tokens, cfg.Yandex.FolderID, httpClient, logger),
		Transcoder: speech.NewTranscoder(),
		Reminders:  sched,
		Assistants: orchestrator.AssistantIDs{
			Registration: cfg.OpenAI.RegistrationAssistantID,
			Survey:       cfg.OpenAI.SurveyAssistantID,
		},
		Logger: logger,
	})
	tgBot.SetOrchestrator(orch)
	sched.SetOnFire(orch.BeginSurvey)

	if err := sched.Restore(ctx); err != nil {
		logger.Error("Failed to restore reminder triggers", zap.Error(err))
	}
	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			logger.Error("Failed to stop scheduler", zap.Error(err))
		}
	}()

	tgBot.Start(ctx)
}
