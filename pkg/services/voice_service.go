package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/dskvich/voice-relay-bot/pkg/domain"
	"github.com/dskvich/voice-relay-bot/pkg/logger"
	"github.com/dskvich/voice-relay-bot/pkg/metrics"
)

const voiceTempPattern = "tg_voice_*.oga"

var errNoSpeech = errors.New("no speech recognized")

type FileLocator interface {
	FileURL(ctx context.Context, fileID string) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioFilePath string) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type AudioConverter interface {
	ConvertToWAV(ctx context.Context, inputPath string) (string, error)
}

var DefaultVoicePrompt = PromptConfig{
	SystemPrompt: "You are a helpful assistant. Keep answers concise.",
	Temperature:  0.3,
}

type VoiceConfig struct {
	Prompt          PromptConfig
	DownloadTimeout time.Duration
	// TempDir is where downloaded audio is kept until transcription; empty means os.TempDir.
	TempDir string
}

type voiceService struct {
	locator     FileLocator
	converter   AudioConverter
	transcriber Transcriber
	moderator   Moderator
	responder   Responder
	synthesizer Synthesizer
	actions     ChatActionSender
	cfg         VoiceConfig
	hc          *http.Client
	responseCh  chan<- domain.Response
}

// NewVoiceService wires the voice pipeline. converter may be nil, in which case
// the downloaded file goes to the transcriber as is.
func NewVoiceService(
	locator FileLocator,
	converter AudioConverter,
	transcriber Transcriber,
	moderator Moderator,
	responder Responder,
	synthesizer Synthesizer,
	actions ChatActionSender,
	cfg VoiceConfig,
	responseCh chan<- domain.Response,
) *voiceService {
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 60 * time.Second
	}
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = cfg.DownloadTimeout

	return &voiceService{
		locator:     locator,
		converter:   converter,
		transcriber: transcriber,
		moderator:   moderator,
		responder:   responder,
		synthesizer: synthesizer,
		actions:     actions,
		cfg:         cfg,
		hc:          hc,
		responseCh:  responseCh,
	}
}

func (v *voiceService) GenerateFromVoice(ctx context.Context, chatID int64, userID domain.UserID, fileID string) {
	defer func() {
		if r := recover(); r != nil {
			v.responseCh <- domain.Response{
				ChatID: chatID,
				Text:   domain.MessageVoiceFailed,
				Err:    domain.NewError(domain.KindInternal, fmt.Errorf("panic in voice pipeline: %v\n%s", r, debug.Stack())),
			}
		}
	}()

	slog.InfoContext(ctx, "Processing voice message", "userID", userID)

	v.actions.SendChatAction(ctx, chatID, domain.ChatActionRecordVoice)

	transcript, err := v.transcribe(ctx, fileID)
	if err != nil {
		text := domain.MessageRecognitionFailed
		if domain.KindOf(err) == domain.KindDownload {
			text = domain.MessageVoiceFailed
		}
		v.responseCh <- domain.Response{ChatID: chatID, Text: text, Err: err}
		return
	}

	verdict, err := v.moderator.Moderate(ctx, transcript)
	if err != nil {
		v.responseCh <- domain.Response{ChatID: chatID, Text: domain.MessageVoiceFailed, Err: fmt.Errorf("moderating transcript: %w", err)}
		return
	}
	if verdict.Blocked {
		// Voice violations are refused without a strike.
		metrics.ObserveModerationRejection("voice")
		slog.InfoContext(ctx, "Transcript rejected by moderation", "reason", verdict.Reason)
		v.responseCh <- domain.Response{ChatID: chatID, Text: domain.MessageVoiceNotAllowed}
		return
	}

	v.actions.SendChatAction(ctx, chatID, domain.ChatActionTyping)

	reply, err := v.responder.Respond(ctx, domain.ChatExchange{
		SystemPrompt: v.cfg.Prompt.SystemPrompt,
		UserContent:  transcript,
		Temperature:  v.cfg.Prompt.Temperature,
	})
	if err != nil {
		v.responseCh <- domain.Response{ChatID: chatID, Text: domain.MessageChatFailed, Err: err}
		return
	}

	audio, err := v.synthesizer.Synthesize(ctx, reply)
	if err != nil {
		v.responseCh <- domain.Response{
			ChatID: chatID,
			Text:   reply,
			Err:    domain.Wrap(domain.KindSynthesis, fmt.Errorf("synthesizing reply: %w", err)),
		}
		return
	}

	v.responseCh <- domain.Response{
		ChatID: chatID,
		Text:   reply,
		Audio:  &domain.Audio{Name: "reply.mp3", Data: audio, Caption: reply},
	}
}

// transcribe downloads the voice file and runs speech recognition on it. Every
// temp file is gone by the time it returns.
func (v *voiceService) transcribe(ctx context.Context, fileID string) (string, error) {
	path, err := v.download(ctx, fileID)
	if err != nil {
		return "", domain.Wrap(domain.KindDownload, err)
	}
	defer v.remove(ctx, path)

	audioPath := path
	if v.converter != nil {
		converted, err := v.converter.ConvertToWAV(ctx, path)
		if converted != "" && converted != path {
			defer v.remove(ctx, converted)
		}
		if err != nil {
			return "", domain.Wrap(domain.KindTranscription, fmt.Errorf("converting audio: %w", err))
		}
		audioPath = converted
	}

	text, err := v.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return "", domain.Wrap(domain.KindTranscription, fmt.Errorf("transcribing audio: %w", err))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.NewError(domain.KindTranscription, errNoSpeech)
	}

	slog.DebugContext(ctx, "Voice transcribed", "transcriptLength", len(text))
	return text, nil
}

func (v *voiceService) download(ctx context.Context, fileID string) (string, error) {
	fileURL, err := v.locator.FileURL(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("resolving file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := v.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading voice file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading voice file: unexpected status code %d", resp.StatusCode)
	}

	f, err := os.CreateTemp(v.cfg.TempDir, voiceTempPattern)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		v.remove(ctx, f.Name())
		return "", fmt.Errorf("saving voice file: %w", err)
	}
	if err := f.Close(); err != nil {
		v.remove(ctx, f.Name())
		return "", fmt.Errorf("closing voice file: %w", err)
	}

	return f.Name(), nil
}

func (v *voiceService) remove(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.WarnContext(ctx, "removing temp file", "path", path, logger.Err(err))
	}
}
