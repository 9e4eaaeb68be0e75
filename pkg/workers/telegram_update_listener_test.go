package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dskvich/voice-relay-bot/pkg/domain"
	"github.com/dskvich/voice-relay-bot/pkg/logger"
)

type recordingSender struct {
	mu        sync.Mutex
	responses []domain.Response
}

func (r *recordingSender) SendResponse(_ context.Context, response *domain.Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, *response)
}

func (r *recordingSender) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, resp := range r.responses {
		out = append(out, resp.Text)
	}
	return out
}

type allowList map[int64]bool

func (a allowList) IsAuthorized(userID int64) bool { return len(a) == 0 || a[userID] }

// echoHandler replies through the response channel after a delay, and panics on "panic".
type echoHandler struct {
	responseCh chan<- domain.Response
	delay      time.Duration

	mu      sync.Mutex
	userIDs []int64
}

func (e *echoHandler) HandleUpdate(ctx context.Context, update *tgbotapi.Update) {
	if uid, ok := logger.UserIDFromContext(ctx); ok {
		e.mu.Lock()
		e.userIDs = append(e.userIDs, uid)
		e.mu.Unlock()
	}
	if update.Message.Text == "panic" {
		panic("handler bug")
	}
	time.Sleep(e.delay)
	e.responseCh <- domain.Response{ChatID: update.Message.Chat.ID, Text: "echo: " + update.Message.Text}
}

func message(updateID int, userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{UpdateID: updateID, Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: text,
	}}
}

func TestTelegramUpdateListener_DeliversAndDrainsOnShutdown(t *testing.T) {
	updates := make(chan tgbotapi.Update, 4)
	responseCh := make(chan domain.Response)
	sender := &recordingSender{}
	h := &echoHandler{responseCh: responseCh, delay: 50 * time.Millisecond}

	l := NewTelegramUpdateListener(updates, sender, allowList{1: true}, h, responseCh, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	updates <- message(1, 1, "hello")
	updates <- message(2, 2, "intruder")
	updates <- message(3, 1, "panic")
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}

	texts := sender.texts()
	want := map[string]bool{"echo: hello": false, "User 2 is not authorized to use this bot.": false}
	for _, text := range texts {
		if _, ok := want[text]; ok {
			want[text] = true
		}
	}
	for text, seen := range want {
		if !seen {
			t.Errorf("missing response %q in %v", text, texts)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, uid := range h.userIDs {
		if uid != 1 {
			t.Errorf("handler saw user %d", uid)
		}
	}
}

func TestTelegramUpdateListener_StopsWhenUpdatesClose(t *testing.T) {
	updates := make(chan tgbotapi.Update)
	close(updates)

	l := NewTelegramUpdateListener(updates, &recordingSender{}, allowList{}, &echoHandler{}, make(chan domain.Response), 0)
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-l.Stopped():
	default:
		t.Fatal("Stopped not closed after Start returned")
	}
}

// stallingSender blocks deliveries to chat 1 until released.
type stallingSender struct {
	recordingSender
	release chan struct{}
}

func (s *stallingSender) SendResponse(ctx context.Context, response *domain.Response) {
	if response.ChatID == 1 {
		<-s.release
	}
	s.recordingSender.SendResponse(ctx, response)
}

func TestTelegramUpdateListener_SlowDeliveryDoesNotStallOthers(t *testing.T) {
	updates := make(chan tgbotapi.Update)
	responseCh := make(chan domain.Response)
	sender := &stallingSender{release: make(chan struct{})}
	h := &echoHandler{responseCh: responseCh}

	l := NewTelegramUpdateListener(updates, sender, allowList{}, h, responseCh, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	updates <- message(1, 1, "slow")
	time.Sleep(20 * time.Millisecond)

	select {
	case updates <- message(2, 2, "fast"):
	case <-time.After(time.Second):
		t.Fatal("listener stopped accepting updates during a slow delivery")
	}

	deadline := time.After(time.Second)
	for len(sender.texts()) == 0 {
		select {
		case <-deadline:
			t.Fatal("second chat got no response while the first delivery was stalled")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if got := sender.texts(); got[0] != "echo: fast" {
		t.Fatalf("first delivered response = %q", got[0])
	}

	cancel()
	select {
	case <-l.Stopped():
	case <-time.After(time.Second):
		t.Fatal("Stopped not closed after cancel")
	}

	close(sender.release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
	if got := sender.texts(); len(got) != 2 {
		t.Errorf("responses = %v, want both delivered", got)
	}
}
