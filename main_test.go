package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Port != 3001 || cfg.WebhookPath != "/webhook" || cfg.ResponseSenders != 4 {
		t.Errorf("http defaults = %d %q %d", cfg.Port, cfg.WebhookPath, cfg.ResponseSenders)
	}
	if cfg.Cooldown != 2*time.Second || cfg.StrikeLimit != 3 || cfg.StrikeWindow != 24*time.Hour || cfg.BlockDuration != time.Hour {
		t.Errorf("admission defaults = %v %d %v %v", cfg.Cooldown, cfg.StrikeLimit, cfg.StrikeWindow, cfg.BlockDuration)
	}
	if cfg.RateLimit != 200 || cfg.RateWindow != 15*time.Second {
		t.Errorf("rate defaults = %d per %v", cfg.RateLimit, cfg.RateWindow)
	}
	if cfg.TextTemperature != 0.25 || cfg.VoiceTemperature != 0.3 || cfg.ChatMaxTokens != 500 {
		t.Errorf("chat defaults = %v %v %d", cfg.TextTemperature, cfg.VoiceTemperature, cfg.ChatMaxTokens)
	}
	if strings.Join(cfg.ModerationBlocklist, ",") != "spamlink.com,illegal" {
		t.Errorf("blocklist = %v", cfg.ModerationBlocklist)
	}
	if cfg.TTSVoice != "en-US-AriaNeural" || cfg.STTLanguage != "en-US" || cfg.AzureOpenAIAPIVersion != "2024-01-01" {
		t.Errorf("azure defaults = %q %q %q", cfg.TTSVoice, cfg.STTLanguage, cfg.AzureOpenAIAPIVersion)
	}
}

func TestLoadConfig_RequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error without TELEGRAM_BOT_TOKEN")
	}
}

func TestLoadConfig_Lists(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_AUTHORIZED_USER_IDS", "1,2,3")
	t.Setenv("MODERATION_BLOCKLIST", "foo,bar")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if len(cfg.TelegramAuthorizedUserIDs) != 3 || cfg.TelegramAuthorizedUserIDs[2] != 3 {
		t.Errorf("user ids = %v", cfg.TelegramAuthorizedUserIDs)
	}
	if strings.Join(cfg.ModerationBlocklist, ",") != "foo,bar" {
		t.Errorf("blocklist = %v", cfg.ModerationBlocklist)
	}
}

func TestWebhookURL(t *testing.T) {
	tests := []struct {
		domain, path, want string
	}{
		{"", "/webhook", ""},
		{"https://bot.example.com", "/webhook", "https://bot.example.com/webhook"},
		{"https://bot.example.com/", "/hook", "https://bot.example.com/hook"},
		{"https://bot.example.com", "hook", "https://bot.example.com/hook"},
	}

	for _, tt := range tests {
		got := webhookURL(Config{WebhookDomain: tt.domain, WebhookPath: tt.path})
		if got != tt.want {
			t.Errorf("webhookURL(%q, %q) = %q, want %q", tt.domain, tt.path, got, tt.want)
		}
	}
}

func TestSetupStore_DefaultsToMemory(t *testing.T) {
	store, cleanup, err := setupStore(context.Background(), Config{})
	if err != nil {
		t.Fatalf("setupStore: %v", err)
	}
	defer cleanup()

	ok, err := store.SetNX(context.Background(), "k", "v", time.Second)
	if err != nil || !ok {
		t.Fatalf("SetNX = %v, %v", ok, err)
	}
}

func TestSetupLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	setupLogger(&buf, Config{LogLevel: "warn", LogNoColor: true})

	slog.Info("hidden")
	slog.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("log output = %q", out)
	}
}
