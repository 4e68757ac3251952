package speech

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// Transcoder converts Telegram voice clips (ogg/opus) into the codec the
// recognizer accepts. Stateless; each call works in its own temp files.
type Transcoder struct {
	ffmpegPath string
}

func NewTranscoder() *Transcoder {
	return &Transcoder{ffmpegPath: "ffmpeg"}
}

// ToMP3 converts the clip and guarantees temp-file cleanup on every path.
func (t *Transcoder) ToMP3(ctx context.Context, audio []byte) ([]byte, error) {
	dir := os.TempDir()
	id := uuid.New().String()
	src := filepath.Join(dir, "voice-"+id+".oga")
	dst := filepath.Join(dir, "voice-"+id+".mp3")
	defer os.Remove(src)
	defer os.Remove(dst)

	if err := os.WriteFile(src, audio, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write voice clip: %w", err)
	}

	cmd := exec.CommandContext(ctx, t.ffmpegPath, "-y", "-i", src, "-f", "mp3", dst)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, string(out))
	}

	converted, err := os.ReadFile(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to read converted audio: %w", err)
	}
	return converted, nil
}
