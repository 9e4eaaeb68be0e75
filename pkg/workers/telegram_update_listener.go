package workers

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dskvich/voice-relay-bot/pkg/domain"
	"github.com/dskvich/voice-relay-bot/pkg/logger"
)

type Handler interface {
	HandleUpdate(ctx context.Context, update *tgbotapi.Update)
}

type Authenticator interface {
	IsAuthorized(userID int64) bool
}

type ResponseSender interface {
	SendResponse(ctx context.Context, response *domain.Response)
}

type telegramUpdateListener struct {
	updates       <-chan tgbotapi.Update
	sender        ResponseSender
	authenticator Authenticator
	handler       Handler
	responseCh    <-chan domain.Response
	senders       int
	stopped       chan struct{}
	wg            sync.WaitGroup
}

func NewTelegramUpdateListener(
	updates <-chan tgbotapi.Update,
	sender ResponseSender,
	authenticator Authenticator,
	handler Handler,
	responseCh <-chan domain.Response,
	senders int,
) *telegramUpdateListener {
	if senders <= 0 {
		senders = 1
	}
	return &telegramUpdateListener{
		updates:       updates,
		sender:        sender,
		authenticator: authenticator,
		handler:       handler,
		responseCh:    responseCh,
		senders:       senders,
		stopped:       make(chan struct{}),
	}
}

// Stopped is closed once the listener no longer accepts updates.
func (t *telegramUpdateListener) Stopped() <-chan struct{} { return t.stopped }

func (t *telegramUpdateListener) Name() string { return "telegram_listener_worker" }

// Start processes every update in its own goroutine while a pool of senders
// delivers responses, until ctx is done. In-flight updates are allowed to
// finish on shutdown.
func (t *telegramUpdateListener) Start(ctx context.Context) error {
	slog.Info("Starting worker", "name", t.Name(), "senders", t.senders)
	defer slog.Info("Worker stopped", "name", t.Name())

	// Updates outlive the listener context so that shutdown does not abort
	// half-done replies; collaborator timeouts still bound them.
	processCtx := context.WithoutCancel(ctx)

	stopSenders := make(chan struct{})
	var senders sync.WaitGroup
	senders.Add(t.senders)
	for i := 0; i < t.senders; i++ {
		go func() {
			defer senders.Done()
			t.deliver(processCtx, stopSenders)
		}()
	}

	t.receive(ctx, processCtx)
	close(t.stopped)

	// responseCh is unbuffered, so once every update is done its responses
	// are already in the hands of a sender.
	t.wg.Wait()
	close(stopSenders)
	senders.Wait()

	return nil
}

func (t *telegramUpdateListener) receive(ctx, processCtx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-t.updates:
			if !ok {
				return
			}
			t.wg.Add(1)
			go func(update tgbotapi.Update) {
				defer t.wg.Done()
				t.processUpdate(processCtx, &update)
			}(update)
		}
	}
}

func (t *telegramUpdateListener) deliver(ctx context.Context, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case response := <-t.responseCh:
			t.sender.SendResponse(ctx, &response)
		}
	}
}

func (t *telegramUpdateListener) processUpdate(ctx context.Context, update *tgbotapi.Update) {
	ctx = logger.ContextWithRequestID(ctx, update.UpdateID)

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		slog.DebugContext(ctx, "Skipping update without a message")
		return
	}

	chatID, userID := msg.Chat.ID, msg.From.ID
	ctx = logger.ContextWithUserID(ctx, userID)

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Recovered from panic while processing update", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	slog.InfoContext(ctx, "Processing update", "chatID", chatID)

	if !t.authenticator.IsAuthorized(userID) {
		slog.WarnContext(ctx, "Unauthorized access attempt")
		t.sender.SendResponse(ctx, &domain.Response{
			ChatID: chatID,
			Text:   fmt.Sprintf(domain.MessageUnauthorized, userID),
		})
		return
	}

	t.handler.HandleUpdate(ctx, update)
}
