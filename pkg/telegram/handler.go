package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dskvich/voice-relay-bot/pkg/domain"
	"github.com/dskvich/voice-relay-bot/pkg/logger"
)

const startCommand = "start"

type AdmissionController interface {
	Check(ctx context.Context, userID domain.UserID) (domain.Admission, error)
}

type TextService interface {
	GenerateFromText(ctx context.Context, chatID int64, userID domain.UserID, text string)
}

type VoiceService interface {
	GenerateFromVoice(ctx context.Context, chatID int64, userID domain.UserID, fileID string)
}

type handler struct {
	admission    AdmissionController
	textService  TextService
	voiceService VoiceService
	responseCh   chan<- domain.Response
}

func NewHandler(
	admission AdmissionController,
	textService TextService,
	voiceService VoiceService,
	responseCh chan<- domain.Response,
) *handler {
	return &handler{
		admission:    admission,
		textService:  textService,
		voiceService: voiceService,
		responseCh:   responseCh,
	}
}

func (h *handler) HandleUpdate(ctx context.Context, update *tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}

	// Stickers, photos and the like are not answered and do not touch the cooldown.
	if msg.Voice == nil && msg.Text == "" {
		slog.DebugContext(ctx, "Ignoring unsupported message")
		return
	}

	chatID, userID := msg.Chat.ID, msg.From.ID

	if !h.admit(ctx, chatID, userID) {
		return
	}

	switch {
	case msg.Voice != nil:
		h.voiceService.GenerateFromVoice(ctx, chatID, userID, msg.Voice.FileID)

	case msg.IsCommand() && msg.Command() == startCommand:
		h.responseCh <- domain.Response{ChatID: chatID, Text: domain.MessageGreeting}

	default:
		h.textService.GenerateFromText(ctx, chatID, userID, msg.Text)
	}
}

func (h *handler) admit(ctx context.Context, chatID int64, userID domain.UserID) bool {
	admission, err := h.admission.Check(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "Admission store unavailable, letting the message through", logger.Err(err))
	}

	switch {
	case admission.Allowed:
		return true
	case admission.Blocked:
		h.responseCh <- domain.Response{ChatID: chatID, Text: domain.MessageBlocked}
	default:
		h.responseCh <- domain.Response{ChatID: chatID, Text: fmt.Sprintf(domain.MessageCooldownFormat, admission.WaitSeconds)}
	}
	return false
}
