package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dskvich/voice-relay-bot/pkg/domain"
)

type stubAdmission struct {
	admission domain.Admission
	err       error
	calls     int
}

func (s *stubAdmission) Check(context.Context, domain.UserID) (domain.Admission, error) {
	s.calls++
	return s.admission, s.err
}

type recordingServices struct {
	texts  []string
	voices []string
}

func (r *recordingServices) GenerateFromText(_ context.Context, _ int64, _ domain.UserID, text string) {
	r.texts = append(r.texts, text)
}

func (r *recordingServices) GenerateFromVoice(_ context.Context, _ int64, _ domain.UserID, fileID string) {
	r.voices = append(r.voices, fileID)
}

func textUpdate(text string) *tgbotapi.Update {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: 2},
		Chat: &tgbotapi.Chat{ID: 1},
		Text: text,
	}
	if len(text) > 0 && text[0] == '/' {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return &tgbotapi.Update{Message: msg}
}

func voiceUpdate(fileID string) *tgbotapi.Update {
	return &tgbotapi.Update{Message: &tgbotapi.Message{
		From:  &tgbotapi.User{ID: 2},
		Chat:  &tgbotapi.Chat{ID: 1},
		Voice: &tgbotapi.Voice{FileID: fileID},
	}}
}

func TestHandler_HandleUpdate(t *testing.T) {
	allowed := domain.Admission{Allowed: true}

	tests := []struct {
		name          string
		update        *tgbotapi.Update
		admission     domain.Admission
		admissionErr  error
		wantTexts     int
		wantVoices    int
		wantResponse  string
		wantAdmission int
	}{
		{name: "text", update: textUpdate("hello"), admission: allowed, wantTexts: 1, wantAdmission: 1},
		{name: "voice", update: voiceUpdate("f1"), admission: allowed, wantVoices: 1, wantAdmission: 1},
		{name: "start command", update: textUpdate("/start"), admission: allowed, wantResponse: domain.MessageGreeting, wantAdmission: 1},
		{name: "other command goes to chat", update: textUpdate("/help"), admission: allowed, wantTexts: 1, wantAdmission: 1},
		{name: "blocked", update: textUpdate("hi"), admission: domain.Admission{Blocked: true}, wantResponse: domain.MessageBlocked, wantAdmission: 1},
		{name: "cooldown", update: voiceUpdate("f"), admission: domain.Admission{WaitSeconds: 2}, wantResponse: "Please wait 2s before sending again.", wantAdmission: 1},
		{name: "store failure lets message through", update: textUpdate("hi"), admission: allowed, admissionErr: errors.New("down"), wantTexts: 1, wantAdmission: 1},
		{name: "sticker ignored", update: &tgbotapi.Update{Message: &tgbotapi.Message{From: &tgbotapi.User{ID: 2}, Chat: &tgbotapi.Chat{ID: 1}, Sticker: &tgbotapi.Sticker{}}}},
		{name: "no message", update: &tgbotapi.Update{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adm := &stubAdmission{admission: tt.admission, err: tt.admissionErr}
			svc := &recordingServices{}
			ch := make(chan domain.Response, 4)

			NewHandler(adm, svc, svc, ch).HandleUpdate(context.Background(), tt.update)
			close(ch)

			if len(svc.texts) != tt.wantTexts || len(svc.voices) != tt.wantVoices {
				t.Errorf("texts=%v voices=%v", svc.texts, svc.voices)
			}
			if adm.calls != tt.wantAdmission {
				t.Errorf("admission calls = %d, want %d", adm.calls, tt.wantAdmission)
			}

			var got []string
			for r := range ch {
				got = append(got, r.Text)
			}
			switch {
			case tt.wantResponse == "" && len(got) != 0:
				t.Errorf("unexpected responses %v", got)
			case tt.wantResponse != "" && (len(got) != 1 || got[0] != tt.wantResponse):
				t.Errorf("responses = %v, want %q", got, tt.wantResponse)
			}
		})
	}
}
