package azure

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dskvich/voice-relay-bot/pkg/domain"
)

const (
	DefaultVoice = "en-US-AriaNeural"
	outputFormat = "audio-16khz-32kbitrate-mono-mp3"
)

var ssmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
	`"`, "&quot;",
)

type TextToSpeechConfig struct {
	Endpoint string
	Key      string
	Voice    string
	Timeout  time.Duration
}

type textToSpeech struct {
	cfg TextToSpeechConfig
	hc  *http.Client
}

func NewTextToSpeech(cfg TextToSpeechConfig) *textToSpeech {
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &textToSpeech{cfg: cfg, hc: newHTTPClient(cfg.Timeout)}
}

// Synthesize returns MP3 audio for text.
func (t *textToSpeech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if t.cfg.Endpoint == "" || t.cfg.Key == "" {
		return nil, domain.NewError(domain.KindConfig, fmt.Errorf("text to speech: %w", domain.ErrNotConfigured))
	}

	audio, err := post(ctx, t.hc, joinURL(t.cfg.Endpoint, "/cognitiveservices/v1"), map[string]string{
		"Ocp-Apim-Subscription-Key": t.cfg.Key,
		"Content-Type":              "application/ssml+xml",
		"X-Microsoft-OutputFormat":  outputFormat,
		"User-Agent":                userAgent,
	}, strings.NewReader(BuildSSML(t.cfg.Voice, text)))
	if err != nil {
		return nil, fmt.Errorf("sending synthesis request: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("synthesis returned no audio")
	}

	return audio, nil
}

// BuildSSML wraps escaped text in a single-voice SSML document.
func BuildSSML(voice, text string) string {
	return `<speak version="1.0" xml:lang="en-US"><voice name="` + ssmlEscaper.Replace(voice) + `">` +
		ssmlEscaper.Replace(text) + `</voice></speak>`
}
