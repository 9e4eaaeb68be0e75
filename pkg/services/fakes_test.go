package services

import (
	"context"
	"sync"

	"github.com/dskvich/voice-relay-bot/pkg/domain"
)

type stubStrikes struct {
	mu     sync.Mutex
	calls  []domain.UserID
	strike domain.Strike
	err    error
}

func (s *stubStrikes) RecordStrike(_ context.Context, userID domain.UserID) (domain.Strike, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, userID)
	return s.strike, s.err
}

func (s *stubStrikes) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubResponder struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []domain.ChatExchange
}

func (s *stubResponder) Respond(_ context.Context, exchange domain.ChatExchange) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, exchange)
	return s.reply, s.err
}

func (s *stubResponder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type recordingActions struct {
	mu      sync.Mutex
	actions []domain.ChatAction
}

func (r *recordingActions) SendChatAction(_ context.Context, _ int64, action domain.ChatAction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
}

// collect runs fn and returns every response it produced.
func collect(fn func(ch chan<- domain.Response)) []domain.Response {
	ch := make(chan domain.Response, 16)
	fn(ch)
	close(ch)

	var out []domain.Response
	for r := range ch {
		out = append(out, r)
	}
	return out
}
