package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/dskvich/voice-relay-bot/pkg/domain"
	"github.com/dskvich/voice-relay-bot/pkg/metrics"
)

type Moderator interface {
	Moderate(ctx context.Context, text string) (domain.Verdict, error)
}

type StrikeRecorder interface {
	RecordStrike(ctx context.Context, userID domain.UserID) (domain.Strike, error)
}

type Responder interface {
	Respond(ctx context.Context, exchange domain.ChatExchange) (string, error)
}

type ChatActionSender interface {
	SendChatAction(ctx context.Context, chatID int64, action domain.ChatAction)
}

type PromptConfig struct {
	SystemPrompt string
	Temperature  float32
}

var DefaultTextPrompt = PromptConfig{
	SystemPrompt: "You are a polite assistant. Answer short and clear.",
	Temperature:  0.25,
}

type textService struct {
	moderator  Moderator
	strikes    StrikeRecorder
	responder  Responder
	actions    ChatActionSender
	prompt     PromptConfig
	responseCh chan<- domain.Response
}

func NewTextService(
	moderator Moderator,
	strikes StrikeRecorder,
	responder Responder,
	actions ChatActionSender,
	prompt PromptConfig,
	responseCh chan<- domain.Response,
) *textService {
	return &textService{
		moderator:  moderator,
		strikes:    strikes,
		responder:  responder,
		actions:    actions,
		prompt:     prompt,
		responseCh: responseCh,
	}
}

func (t *textService) GenerateFromText(ctx context.Context, chatID int64, userID domain.UserID, text string) {
	if strings.TrimSpace(text) == "" || utf8.RuneCountInString(text) > domain.MaxTextLength {
		t.responseCh <- domain.Response{
			ChatID: chatID,
			Text:   domain.MessageInvalidInput,
			Err:    domain.NewError(domain.KindValidation, fmt.Errorf("text length %d outside 1..%d", utf8.RuneCountInString(text), domain.MaxTextLength)),
		}
		return
	}

	verdict, err := t.moderator.Moderate(ctx, text)
	if err != nil {
		t.responseCh <- domain.Response{ChatID: chatID, Text: domain.MessageChatFailed, Err: fmt.Errorf("moderating text: %w", err)}
		return
	}
	if verdict.Blocked {
		metrics.ObserveModerationRejection("text")
		t.responseCh <- t.strike(ctx, chatID, userID, verdict)
		return
	}

	t.actions.SendChatAction(ctx, chatID, domain.ChatActionTyping)

	reply, err := t.responder.Respond(ctx, domain.ChatExchange{
		SystemPrompt: t.prompt.SystemPrompt,
		UserContent:  text,
		Temperature:  t.prompt.Temperature,
	})
	if err != nil {
		t.responseCh <- domain.Response{ChatID: chatID, Text: domain.MessageChatFailed, Err: err}
		return
	}

	t.responseCh <- domain.Response{ChatID: chatID, Text: reply}
}

func (t *textService) strike(ctx context.Context, chatID int64, userID domain.UserID, verdict domain.Verdict) domain.Response {
	slog.InfoContext(ctx, "Text rejected by moderation", "reason", verdict.Reason)

	strike, err := t.strikes.RecordStrike(ctx, userID)
	if err != nil {
		return domain.Response{
			ChatID: chatID,
			Text:   domain.MessageNotAllowed,
			Err:    domain.NewError(domain.KindInternal, fmt.Errorf("recording strike: %w", err)),
		}
	}
	if strike.Escalated {
		return domain.Response{ChatID: chatID, Text: domain.MessageStrikeBlocked}
	}
	return domain.Response{ChatID: chatID, Text: domain.MessageNotAllowed}
}
