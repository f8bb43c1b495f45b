package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"localchat/internal/ai"
	"localchat/internal/cache"
	"localchat/internal/config"
	"localchat/internal/model"
	rabbitmqClient "localchat/internal/platform/rabbitmq"
	redisClient "localchat/internal/platform/redis"
	sqliteClient "localchat/internal/platform/sqlite"
	"localchat/internal/repository"
	"localchat/internal/task"
	"localchat/internal/vectorstore"
	"localchat/internal/worker"
)

type App struct {
	Config          *config.Config
	Logger          *zap.Logger
	DB              *gorm.DB
	Redis           *redis.Client    // nil when the transcript cache is disabled
	MQConn          *amqp.Connection // nil when background pulls run in-process
	LLM             *ai.Client
	Transcriber     *ai.Transcriber // nil when whisper is not configured
	VectorStore     vectorstore.Store
	TranscriptCache *cache.TranscriptCache
	PullRunner      task.PullRunner
	PullWorker      *worker.PullWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	logger, err := newLogger(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("create logger failed: %w", err)
	}

	db, err := sqliteClient.New(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.Message{}); err != nil {
		return nil, fmt.Errorf("auto migrate messages table failed: %w", err)
	}

	var redisCli *redis.Client
	var transcriptCache *cache.TranscriptCache
	if cfg.Redis.Addr != "" {
		redisCli, err = redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		transcriptCache = cache.NewTranscriptCache(
			redisCli,
			time.Duration(cfg.Redis.TranscriptTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.TranscriptDirtyTTLSeconds)*time.Second,
		)
	}

	llm := ai.NewClient(ai.ClientConfig{
		BaseURL:     cfg.Ollama.BaseURL,
		ChatTimeout: cfg.ChatTimeout(),
		ListTimeout: cfg.ListTimeout(),
		PullTimeout: cfg.PullTimeout(),
		PullRetries: cfg.Ollama.PullRetries,
	}, logger)

	var transcriber *ai.Transcriber
	if cfg.Whisper.BaseURL != "" {
		transcriber = ai.NewTranscriber(cfg.Whisper.BaseURL, cfg.WhisperTimeout())
	}

	store, err := vectorstore.NewChroma(vectorstore.Config{
		URL:            cfg.Chroma.URL,
		Collection:     cfg.Chroma.Collection,
		OllamaURL:      cfg.Ollama.BaseURL,
		EmbeddingModel: cfg.Ollama.EmbeddingModel,
	})
	if err != nil {
		return nil, err
	}

	messageRepo := repository.NewMessageRepository(db)
	executor := worker.NewPullExecutor(llm, messageRepo, logger)

	var mqConn *amqp.Connection
	var pullRunner task.PullRunner
	var pullWorker *worker.PullWorker
	if cfg.RabbitMQ.URL != "" {
		mqConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return nil, err
		}
		pullWorker = worker.NewPullWorker(mqConn, executor, cfg.RabbitMQ.PullQueue, logger)
		if err := pullWorker.Start(ctx); err != nil {
			return nil, fmt.Errorf("start pull worker failed: %w", err)
		}
		pullRunner = rabbitmqClient.NewPullPublisher(mqConn, cfg.RabbitMQ.PullQueue)
	} else {
		pullRunner = task.NewGoRunner(executor.Execute)
	}

	return &App{
		Config:          cfg,
		Logger:          logger,
		DB:              db,
		Redis:           redisCli,
		MQConn:          mqConn,
		LLM:             llm,
		Transcriber:     transcriber,
		VectorStore:     store,
		TranscriptCache: transcriptCache,
		PullRunner:      pullRunner,
		PullWorker:      pullWorker,
		StartedAt:       time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.PullWorker != nil {
		a.PullWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return closeErr
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
