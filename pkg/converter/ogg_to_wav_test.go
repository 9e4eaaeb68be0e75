package converter

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestOggToWAV_MissingBinary(t *testing.T) {
	c := NewOggToWAV("ffmpeg-does-not-exist-here")

	out, err := c.ConvertToWAV(context.Background(), "voice.oga")
	if err == nil {
		t.Fatal("expected error for a missing binary")
	}
	if out != "" {
		t.Errorf("output path = %q, want empty", out)
	}
}

func TestOggToWAV_InvalidInput(t *testing.T) {
	if _, err := exec.LookPath(defaultFFmpeg); err != nil {
		t.Skip("ffmpeg not installed")
	}

	in := filepath.Join(t.TempDir(), "voice.oga")
	if err := os.WriteFile(in, []byte("not audio"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := NewOggToWAV("").ConvertToWAV(context.Background(), in)
	if err == nil {
		t.Fatal("expected ffmpeg to reject garbage input")
	}
	if out != in+".wav" {
		t.Errorf("output path = %q", out)
	}
}
