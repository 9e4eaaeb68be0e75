package azure

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dskvich/voice-relay-bot/pkg/domain"
	"github.com/dskvich/voice-relay-bot/pkg/extract"
)

const DefaultSTTLanguage = "en-US"

// A RecognitionStatus other than Success means nothing was recognized.
var transcriptStrategies = []extract.Strategy{
	extract.Unless("RecognitionStatus", "Success"),
	extract.Path("DisplayText"),
	extract.Path("displayText"),
	extract.Path("text"),
	extract.Raw(),
}

type SpeechToTextConfig struct {
	Endpoint string
	Key      string
	Language string
	Timeout  time.Duration
}

type speechToText struct {
	cfg SpeechToTextConfig
	hc  *http.Client
}

func NewSpeechToText(cfg SpeechToTextConfig) *speechToText {
	if cfg.Language == "" {
		cfg.Language = DefaultSTTLanguage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &speechToText{cfg: cfg, hc: newHTTPClient(cfg.Timeout)}
}

// Transcribe uploads the audio file and returns the recognized text. An empty
// string with a nil error means the service recognized nothing.
func (s *speechToText) Transcribe(ctx context.Context, audioFilePath string) (string, error) {
	if s.cfg.Endpoint == "" || s.cfg.Key == "" {
		return "", domain.NewError(domain.KindConfig, fmt.Errorf("speech to text: %w", domain.ErrNotConfigured))
	}

	f, err := os.Open(audioFilePath)
	if err != nil {
		return "", fmt.Errorf("opening audio file: %w", err)
	}
	defer f.Close()

	u := joinURL(s.cfg.Endpoint, "/speech/recognition/conversation/cognitiveservices/v1") +
		"?language=" + url.QueryEscape(s.cfg.Language)

	body, err := post(ctx, s.hc, u, map[string]string{
		"Ocp-Apim-Subscription-Key": s.cfg.Key,
		"Content-Type":              AudioContentType(audioFilePath),
		"Accept":                    "application/json",
	}, f)
	if err != nil {
		return "", fmt.Errorf("sending recognition request: %w", err)
	}

	return strings.TrimSpace(extract.First(body, transcriptStrategies...)), nil
}

// AudioContentType maps a file extension onto the content type the speech service expects.
func AudioContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ogg", ".oga", ".opus":
		return "audio/ogg; codecs=opus"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "audio/wav"
	}
}
