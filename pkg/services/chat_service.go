package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dskvich/voice-relay-bot/pkg/domain"
)

type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, exchange domain.ChatExchange) (string, error)
}

type chatService struct {
	completer ChatCompleter
}

func NewChatService(completer ChatCompleter) *chatService {
	return &chatService{completer: completer}
}

// Respond asks the chat collaborator for a single reply and trims it to the
// Telegram-safe length.
func (c *chatService) Respond(ctx context.Context, exchange domain.ChatExchange) (string, error) {
	slog.DebugContext(ctx, "Calling chat completion", "contentLength", len(exchange.UserContent), "temperature", exchange.Temperature)

	reply, err := c.completer.CreateChatCompletion(ctx, exchange)
	if err != nil {
		return "", domain.Wrap(domain.KindChat, fmt.Errorf("creating chat completion: %w", err))
	}
	if reply == "" {
		return "", domain.NewError(domain.KindChat, errors.New("empty chat completion"))
	}

	return TruncateReply(reply), nil
}

// TruncateReply cuts reply to domain.MaxReplyLength characters and appends the truncation marker.
func TruncateReply(reply string) string {
	runes := []rune(reply)
	if len(runes) <= domain.MaxReplyLength {
		return reply
	}
	return string(runes[:domain.MaxReplyLength]) + domain.TruncationMarker
}
