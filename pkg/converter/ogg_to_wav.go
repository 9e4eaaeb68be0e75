package converter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

const defaultFFmpeg = "ffmpeg"

// OggToWAV re-encodes Telegram voice notes into 16 kHz mono PCM WAV with ffmpeg.
type OggToWAV struct {
	binary string
}

func NewOggToWAV(binary string) *OggToWAV {
	if binary == "" {
		binary = defaultFFmpeg
	}
	return &OggToWAV{binary: binary}
}

// ConvertToWAV writes the converted file next to inputPath and returns its path.
// The caller owns both files.
func (o *OggToWAV) ConvertToWAV(ctx context.Context, inputPath string) (string, error) {
	if _, err := exec.LookPath(o.binary); err != nil {
		return "", fmt.Errorf("looking for `%s`: %w", o.binary, err)
	}

	outputPath := inputPath + ".wav"

	slog.DebugContext(ctx, "Converting voice message to wav", "inputPath", inputPath, "outputPath", outputPath)

	cmd := exec.CommandContext(ctx, o.binary,
		"-y", "-loglevel", "error",
		"-i", inputPath,
		"-ar", "16000", "-ac", "1",
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return outputPath, fmt.Errorf("running `%s`: %w: %s", o.binary, err, strings.TrimSpace(stderr.String()))
	}

	return outputPath, nil
}
