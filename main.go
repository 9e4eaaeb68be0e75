package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"github.com/dskvich/voice-relay-bot/pkg/api"
	"github.com/dskvich/voice-relay-bot/pkg/api/handler"
	"github.com/dskvich/voice-relay-bot/pkg/auth"
	"github.com/dskvich/voice-relay-bot/pkg/azure"
	"github.com/dskvich/voice-relay-bot/pkg/converter"
	"github.com/dskvich/voice-relay-bot/pkg/database"
	"github.com/dskvich/voice-relay-bot/pkg/domain"
	"github.com/dskvich/voice-relay-bot/pkg/logger"
	"github.com/dskvich/voice-relay-bot/pkg/moderation"
	"github.com/dskvich/voice-relay-bot/pkg/repository"
	"github.com/dskvich/voice-relay-bot/pkg/services"
	"github.com/dskvich/voice-relay-bot/pkg/telegram"
	"github.com/dskvich/voice-relay-bot/pkg/workers"
)

type Config struct {
	TelegramBotToken          string  `env:"TELEGRAM_BOT_TOKEN,required,notEmpty"`
	TelegramAuthorizedUserIDs []int64 `env:"TELEGRAM_AUTHORIZED_USER_IDS" envSeparator:","`
	TelegramUsePolling        bool    `env:"TELEGRAM_USE_POLLING" envDefault:"false"`
	TelegramPollTimeout       int     `env:"TELEGRAM_POLL_TIMEOUT" envDefault:"60"`
	ResponseSenders           int     `env:"RESPONSE_SENDERS" envDefault:"4"`

	Port          int           `env:"PORT" envDefault:"3001"`
	WebhookDomain string        `env:"WEBHOOK_DOMAIN"`
	WebhookPath   string        `env:"WEBHOOK_PATH" envDefault:"/webhook"`
	AdminToken    string        `env:"ADMIN_TOKEN"`
	RateLimit     int           `env:"HTTP_RATE_LIMIT" envDefault:"200"`
	RateWindow    time.Duration `env:"HTTP_RATE_WINDOW" envDefault:"15s"`

	RedisURL string `env:"REDIS_URL"`
	PgURL    string `env:"DATABASE_URL"`

	AzureOpenAIEndpoint   string        `env:"AZURE_OPENAI_ENDPOINT"`
	AzureOpenAIKey        string        `env:"AZURE_OPENAI_KEY"`
	AzureOpenAIDeployment string        `env:"AZURE_OPENAI_DEPLOYMENT"`
	AzureOpenAIAPIVersion string        `env:"AZURE_OPENAI_API_VERSION" envDefault:"2024-01-01"`
	ChatMaxTokens         int           `env:"CHAT_MAX_TOKENS" envDefault:"500"`
	ChatTimeout           time.Duration `env:"CHAT_TIMEOUT" envDefault:"60s"`

	AzureSTTEndpoint string        `env:"AZURE_STT_ENDPOINT"`
	AzureSTTKey      string        `env:"AZURE_STT_KEY"`
	STTLanguage      string        `env:"STT_LANGUAGE" envDefault:"en-US"`
	STTTimeout       time.Duration `env:"STT_TIMEOUT" envDefault:"120s"`

	AzureTTSEndpoint string        `env:"AZURE_TTS_ENDPOINT"`
	AzureTTSKey      string        `env:"AZURE_TTS_KEY"`
	TTSVoice         string        `env:"TTS_VOICE" envDefault:"en-US-AriaNeural"`
	TTSTimeout       time.Duration `env:"TTS_TIMEOUT" envDefault:"120s"`

	TextSystemPrompt  string        `env:"TEXT_SYSTEM_PROMPT" envDefault:"You are a polite assistant. Answer short and clear."`
	TextTemperature   float32       `env:"TEXT_TEMPERATURE" envDefault:"0.25"`
	VoiceSystemPrompt string        `env:"VOICE_SYSTEM_PROMPT" envDefault:"You are a helpful assistant. Keep answers concise."`
	VoiceTemperature  float32       `env:"VOICE_TEMPERATURE" envDefault:"0.3"`
	DownloadTimeout   time.Duration `env:"DOWNLOAD_TIMEOUT" envDefault:"60s"`
	ConvertToWAV      bool          `env:"AUDIO_CONVERT_TO_WAV" envDefault:"false"`
	FFmpegPath        string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`

	Cooldown            time.Duration `env:"COOLDOWN" envDefault:"2s"`
	StrikeLimit         int64         `env:"STRIKE_LIMIT" envDefault:"3"`
	StrikeWindow        time.Duration `env:"STRIKE_WINDOW" envDefault:"24h"`
	BlockDuration       time.Duration `env:"BLOCK_DURATION" envDefault:"1h"`
	ModerationBlocklist []string      `env:"MODERATION_BLOCKLIST" envSeparator:"," envDefault:"spamlink.com,illegal"`

	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogNoColor bool   `env:"LOG_NO_COLOR" envDefault:"false"`
}

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(os.Stderr, logger.DefaultOptions)))

	if err := runMain(); err != nil {
		slog.Error("shutting down due to error", logger.Err(err))
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func runMain() error {
	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case s := <-sigCh:
			slog.Info("shutting down due to signal", "signal", s.String())
			cancelFn()
		case <-ctx.Done():
		}
	}()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogger(os.Stderr, cfg)

	workerGroup, cleanup, err := setupWorkers(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	return workerGroup.Start(ctx)
}

func loadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing env config: %w", err)
	}
	return cfg, nil
}

func setupLogger(out io.Writer, cfg Config) {
	opts := *logger.DefaultOptions
	opts.Level = logger.ParseLevel(cfg.LogLevel)
	opts.NoColor = cfg.LogNoColor
	slog.SetDefault(slog.New(logger.NewHandler(out, &opts)))
}

func webhookURL(cfg Config) string {
	if cfg.WebhookDomain == "" {
		return ""
	}
	path := cfg.WebhookPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(cfg.WebhookDomain, "/") + path
}

func setupStore(ctx context.Context, cfg Config) (services.KeyedStore, func(), error) {
	switch {
	case cfg.RedisURL != "":
		store, err := repository.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("creating redis store: %w", err)
		}
		slog.Info("admission state stored in redis")
		return store, func() { _ = store.Close() }, nil

	case cfg.PgURL != "":
		db, err := database.NewPostgres(ctx, cfg.PgURL)
		if err != nil {
			return nil, nil, fmt.Errorf("creating db: %w", err)
		}
		slog.Info("admission state stored in postgres")
		return repository.NewPostgresStore(db, time.Now), func() { _ = db.Close() }, nil

	default:
		slog.Warn("no REDIS_URL or DATABASE_URL, admission state is kept in memory")
		return repository.NewMemoryStore(time.Now), func() {}, nil
	}
}

func setupWorkers(ctx context.Context, cfg Config) (workers.Group, func(), error) {
	telegramClient, err := telegram.NewClient(cfg.TelegramBotToken)
	if err != nil {
		return nil, nil, fmt.Errorf("creating telegram client: %w", err)
	}

	store, closeStore, err := setupStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	responseCh := make(chan domain.Response)

	admission := services.NewAdmissionService(store, services.AdmissionConfig{
		Cooldown:      cfg.Cooldown,
		StrikeLimit:   cfg.StrikeLimit,
		StrikeWindow:  cfg.StrikeWindow,
		BlockDuration: cfg.BlockDuration,
	}, time.Now)

	moderator := moderation.NewKeywordFilter(cfg.ModerationBlocklist)

	chatService := services.NewChatService(azure.NewChatClient(azure.ChatConfig{
		Endpoint:   cfg.AzureOpenAIEndpoint,
		APIKey:     cfg.AzureOpenAIKey,
		Deployment: cfg.AzureOpenAIDeployment,
		APIVersion: cfg.AzureOpenAIAPIVersion,
		MaxTokens:  cfg.ChatMaxTokens,
		Timeout:    cfg.ChatTimeout,
	}))

	textService := services.NewTextService(
		moderator,
		admission,
		chatService,
		telegramClient,
		services.PromptConfig{SystemPrompt: cfg.TextSystemPrompt, Temperature: cfg.TextTemperature},
		responseCh,
	)

	var audioConverter services.AudioConverter
	if cfg.ConvertToWAV {
		audioConverter = converter.NewOggToWAV(cfg.FFmpegPath)
	}

	voiceService := services.NewVoiceService(
		telegramClient,
		audioConverter,
		azure.NewSpeechToText(azure.SpeechToTextConfig{
			Endpoint: cfg.AzureSTTEndpoint,
			Key:      cfg.AzureSTTKey,
			Language: cfg.STTLanguage,
			Timeout:  cfg.STTTimeout,
		}),
		moderator,
		chatService,
		azure.NewTextToSpeech(azure.TextToSpeechConfig{
			Endpoint: cfg.AzureTTSEndpoint,
			Key:      cfg.AzureTTSKey,
			Voice:    cfg.TTSVoice,
			Timeout:  cfg.TTSTimeout,
		}),
		telegramClient,
		services.VoiceConfig{
			Prompt:          services.PromptConfig{SystemPrompt: cfg.VoiceSystemPrompt, Temperature: cfg.VoiceTemperature},
			DownloadTimeout: cfg.DownloadTimeout,
		},
		responseCh,
	)

	updateHandler := telegram.NewHandler(admission, textService, voiceService, responseCh)

	webhookUpdates := make(chan tgbotapi.Update, 100)
	var updates <-chan tgbotapi.Update = webhookUpdates
	cleanup := closeStore

	if cfg.TelegramUsePolling {
		polled, err := telegramClient.StartPolling(cfg.TelegramPollTimeout)
		if err != nil {
			closeStore()
			return nil, nil, fmt.Errorf("starting polling: %w", err)
		}
		updates = polled
		cleanup = func() {
			telegramClient.StopPolling()
			closeStore()
		}
		slog.Info("receiving updates by long polling")
	} else if url := webhookURL(cfg); url != "" {
		if err := telegramClient.SetWebhook(ctx, url); err != nil {
			slog.Error("registering webhook at start-up", logger.Err(err))
		}
	}

	listener := workers.NewTelegramUpdateListener(
		updates,
		telegramClient,
		auth.NewAuthenticator(cfg.TelegramAuthorizedUserIDs),
		updateHandler,
		responseCh,
		cfg.ResponseSenders,
	)

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.Config{
		Polling:     cfg.TelegramUsePolling,
		WebhookPath: cfg.WebhookPath,
		AdminToken:  cfg.AdminToken,
		RateLimit:   cfg.RateLimit,
		RateWindow:  cfg.RateWindow,
	}, handler.NewWebhook(telegramClient, webhookURL(cfg), webhookUpdates, listener.Stopped()))

	workerGroup := workers.Group{
		listener,
		workers.NewHTTPServer(fmt.Sprintf(":%d", cfg.Port), router),
	}

	return workerGroup, cleanup, nil
}
