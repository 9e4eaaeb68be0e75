package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dskvich/voice-relay-bot/pkg/domain"
	"github.com/dskvich/voice-relay-bot/pkg/logger"
	"github.com/dskvich/voice-relay-bot/pkg/metrics"
)

type client struct {
	bot *tgbotapi.BotAPI
}

func NewClient(token string) (*client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating bot api instance: %w", err)
	}

	slog.Info("authorized on telegram", "account", bot.Self.UserName)

	return &client{bot: bot}, nil
}

// SendResponse is the single sink for pipeline results: it logs and counts the
// attached error, then delivers the audio or text to the chat.
func (c *client) SendResponse(ctx context.Context, response *domain.Response) {
	if response.Err != nil {
		c.reportError(ctx, response)
	}

	if response.Audio != nil {
		err := c.sendAudio(response.ChatID, response.Audio)
		if err == nil {
			metrics.ObserveReply("audio")
			// Long replies do not fit in a caption.
			if captionTruncated(response.Audio.Caption) && response.Text != "" {
				c.deliverText(ctx, response.ChatID, response.Text)
			}
			return
		}
		metrics.ObserveFailure(domain.KindDelivery)
		slog.WarnContext(ctx, "sending audio, falling back to text", "chatID", response.ChatID, logger.Err(err))
	}

	if response.Text != "" {
		c.deliverText(ctx, response.ChatID, response.Text)
	}
}

func (c *client) reportError(ctx context.Context, response *domain.Response) {
	kind := domain.KindOf(response.Err)
	metrics.ObserveFailure(kind)

	if kind == domain.KindSynthesis {
		slog.WarnContext(ctx, "Pipeline degraded", "kind", kind, "chatID", response.ChatID, logger.Err(response.Err))
		return
	}
	slog.ErrorContext(ctx, "Pipeline failed", "kind", kind, "chatID", response.ChatID, logger.Err(response.Err))
}

func (c *client) deliverText(ctx context.Context, chatID int64, text string) {
	if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		metrics.ObserveFailure(domain.KindDelivery)
		slog.ErrorContext(ctx, "sending message", "chatID", chatID, logger.Err(err))
		return
	}
	metrics.ObserveReply("text")
}

func (c *client) sendAudio(chatID int64, audio *domain.Audio) error {
	cfg := tgbotapi.NewAudio(chatID, tgbotapi.FileBytes{Name: audio.Name, Bytes: audio.Data})
	cfg.Caption = caption(audio.Caption)

	if _, err := c.bot.Send(cfg); err != nil {
		return fmt.Errorf("sending audio: %w", err)
	}
	return nil
}

func caption(text string) string {
	runes := []rune(text)
	if len(runes) <= domain.MaxCaptionLength {
		return text
	}
	return string(runes[:domain.MaxCaptionLength-1]) + "…"
}

func captionTruncated(text string) bool {
	return len([]rune(text)) > domain.MaxCaptionLength
}

func (c *client) SendChatAction(ctx context.Context, chatID int64, action domain.ChatAction) {
	if _, err := c.bot.Request(tgbotapi.NewChatAction(chatID, string(action))); err != nil {
		slog.WarnContext(ctx, "sending chat action", "action", action, logger.Err(err))
	}
}

// FileURL resolves a Telegram file id into a direct download link.
func (c *client) FileURL(_ context.Context, fileID string) (string, error) {
	link, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("getting file url: %w", err)
	}
	return link, nil
}

func (c *client) SetWebhook(ctx context.Context, url string) error {
	cfg, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("building webhook config: %w", err)
	}
	if _, err := c.bot.Request(cfg); err != nil {
		return fmt.Errorf("setting webhook: %w", err)
	}

	slog.InfoContext(ctx, "Webhook registered", "url", url)
	return nil
}

// StartPolling removes any registered webhook and starts long polling.
func (c *client) StartPolling(timeout int) (tgbotapi.UpdatesChannel, error) {
	if _, err := c.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return nil, fmt.Errorf("deleting webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeout

	return c.bot.GetUpdatesChan(u), nil
}

func (c *client) StopPolling() {
	c.bot.StopReceivingUpdates()
}
