// Package bootstrap is the composition root: it builds every collaborator from
// config and owns their lifecycle.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"kyc-backend/internal/agent"
	"kyc-backend/internal/compliance"
	"kyc-backend/internal/extract"
	"kyc-backend/internal/ingest"
	"kyc-backend/internal/intent"
	"kyc-backend/internal/kyc"
	"kyc-backend/internal/llm"
	openai "kyc-backend/internal/llm/openai"
	"kyc-backend/internal/mail"
	"kyc-backend/internal/mail/gmail"
	"kyc-backend/internal/notify"
	"kyc-backend/internal/queue"
	"kyc-backend/internal/services/health"
	"kyc-backend/internal/shared/config"
	"kyc-backend/internal/shared/metrics"
	"kyc-backend/internal/shared/server"
	"kyc-backend/internal/shared/server/middleware"
	"kyc-backend/internal/shared/storage/db"
	"kyc-backend/internal/shared/storage/object"
	localstore "kyc-backend/internal/shared/storage/object/local"
	s3store "kyc-backend/internal/shared/storage/object/s3"
	"kyc-backend/internal/shared/telemetry"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// App holds shared dependencies.
type App struct {
	Config  config.Config
	Router  *gin.Engine
	DB      *sql.DB
	Redis   *redis.Client
	Store   object.ObjectStore
	Queue   queue.Client
	Records kyc.RecordStore
	Seen    ingest.SeenStore
	Inbox   mail.Inbox
	Sender  mail.Sender
	Metrics *metrics.Metrics
	Health  *health.Service
	Agent   *agent.Service
}

// Options override collaborators, mainly for tests.
type Options struct {
	Inbox   mail.Inbox
	Sender  mail.Sender
	LLM     llm.Client
	OCR     extract.OCR
	Metrics *metrics.Metrics
}

// Build prepares every dependency and the HTTP router.
func Build(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	app := &App{
		Config:  cfg,
		Metrics: opts.Metrics,
		Health:  health.NewService(),
	}
	if app.Metrics == nil {
		app.Metrics = metrics.New(nil)
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	if sqlDB != nil {
		app.Records = &kyc.SQLRepo{DB: sqlDB}
		app.Health.Register("database", sqlDB.PingContext)
	} else {
		app.Records = kyc.NewMemoryRepo()
	}

	if app.Store, err = buildStore(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}
	if app.Redis, err = buildRedis(cfg); err != nil {
		app.Close()
		return nil, err
	}
	if app.Redis != nil {
		app.Health.Register("redis", func(ctx context.Context) error { return app.Redis.Ping(ctx).Err() })
	}
	app.Seen = buildSeen(app)

	if app.Queue, err = buildQueue(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}

	app.Inbox, app.Sender = opts.Inbox, opts.Sender
	if app.Inbox == nil || app.Sender == nil {
		inbox, sender, err := buildMail(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
		if app.Inbox == nil {
			app.Inbox = inbox
		}
		if app.Sender == nil {
			app.Sender = sender
		}
	}

	llmClient, answerer, ocr, err := buildLLM(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	if opts.LLM != nil {
		llmClient = opts.LLM
	}
	if opts.OCR != nil {
		ocr = opts.OCR
	}

	evaluator := compliance.New()
	ingestor := &ingest.Ingestor{
		Extractor: extract.New(ocr),
		LLM:       llmClient,
		Evaluator: evaluator,
		Archive:   app.Store,
		Metrics:   app.Metrics,
	}
	app.Agent = &agent.Service{
		Emails: &ingest.Service{
			Inbox:    app.Inbox,
			Ingestor: ingestor,
			Records:  app.Records,
			Seen:     app.Seen,
			Metrics:  app.Metrics,
			Query:    cfg.GmailQuery,
		},
		Records:            app.Records,
		Notifier:           &notify.Engine{Sender: app.Sender, Log: app.Records, Metrics: app.Metrics},
		Evaluator:          evaluator,
		Classifier:         intent.KeywordClassifier{},
		Answerer:           answerer,
		Metrics:            app.Metrics,
		ReminderWindowDays: cfg.ReminderWindowDays,
	}

	deps := server.Deps{
		Config:  cfg,
		Health:  app.Health,
		Metrics: app.Metrics,
		Routes:  []server.RouteRegistrar{agent.NewHandler(app.Agent)},
	}
	if app.Redis != nil {
		deps.RateStore = middleware.NewRedisRateStore(app.Redis)
	}
	app.Router = server.NewRouter(deps)
	return app, nil
}

// Close releases connections opened by Build.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			telemetry.Warn("bootstrap.redis.close_failed", map[string]any{"error": err.Error()})
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			telemetry.Warn("bootstrap.db.close_failed", map[string]any{"error": err.Error()})
		}
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Info("bootstrap.db.memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, errors.New("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB, cfg.DatabaseURL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, errors.New("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildRedis(cfg config.Config) (*redis.Client, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// buildSeen prefers Redis, then the database, then process memory.
func buildSeen(app *App) ingest.SeenStore {
	switch {
	case app.Redis != nil:
		return ingest.NewRedisSeen(app.Redis, ingest.DefaultSeenTTL)
	case app.DB != nil:
		return &ingest.SQLSeen{DB: app.DB}
	default:
		return ingest.NewMemorySeen()
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.SQSQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.SQSQueueURL, cfg.AWSRegion)
}

func buildMail(ctx context.Context, cfg config.Config) (mail.Inbox, mail.Sender, error) {
	if !fileExists(cfg.GmailCredentialsFile) || !fileExists(cfg.GmailTokenFile) {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.mail.disabled", map[string]any{
				"credentials_file": cfg.GmailCredentialsFile,
				"token_file":       cfg.GmailTokenFile,
			})
			return mail.EmptyInbox{}, mail.LogSender{}, nil
		}
		return nil, nil, fmt.Errorf("gmail credentials %q and token %q are required", cfg.GmailCredentialsFile, cfg.GmailTokenFile)
	}

	httpClient, err := gmail.NewHTTPClient(ctx, cfg.GmailCredentialsFile, cfg.GmailTokenFile)
	if err != nil {
		return nil, nil, err
	}
	client := gmail.New(httpClient, gmail.WithMaxResults(cfg.GmailMaxResults))
	return client, client, nil
}

func buildLLM(cfg config.Config) (llm.Client, llm.Answerer, extract.OCR, error) {
	placeholder := llm.PlaceholderClient{}
	baseURL := cfg.LLMBaseURL
	switch cfg.LLMProvider {
	case "openai":
	case "groq":
		if baseURL == "" {
			baseURL = groqBaseURL
		}
	default:
		telemetry.Warn("bootstrap.llm.disabled", map[string]any{"provider": cfg.LLMProvider})
		return placeholder, placeholder, nil, nil
	}

	if strings.TrimSpace(cfg.LLMAPIKey) == "" || strings.TrimSpace(cfg.LLMModel) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.llm.disabled", map[string]any{"provider": cfg.LLMProvider, "reason": "LLM_API_KEY or LLM_MODEL empty"})
			return placeholder, placeholder, nil, nil
		}
	}
	client, err := openai.NewClient(cfg.LLMAPIKey, cfg.LLMModel, baseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	return llm.NewRetrying(client), client, openai.NewVisionOCR(client, cfg.OCRModel), nil
}

func fileExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
