// Package media handles remote file fetching and audio normalization
// for playback-compatible delivery.
package media

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bridge/internal/config"
)

// audioExtensions are the upload extensions that get normalized to mp3
// before sending; WhatsApp voice playback prefers mono mp3.
var audioExtensions = map[string]bool{
	".webm": true,
	".ogg":  true,
	".wav":  true,
	".m4a":  true,
	".aac":  true,
}

// Transcoder shells out to ffmpeg. Normalization is best-effort
// everywhere it is used; callers keep the original file on failure.
type Transcoder struct {
	cfg    config.MediaConfig
	logger *zap.Logger
}

// NewTranscoder builds a transcoder from media settings.
func NewTranscoder(cfg config.MediaConfig, logger *zap.Logger) *Transcoder {
	return &Transcoder{cfg: cfg, logger: logger}
}

// Available reports whether the ffmpeg binary can be invoked.
func (t *Transcoder) Available(ctx context.Context) bool {
	err := exec.CommandContext(ctx, t.cfg.FFmpegPath, "-version").Run()
	return err == nil
}

// NormalizeAudio converts the input file to mono mp3 at the configured
// bitrate and sample rate.
func (t *Transcoder) NormalizeAudio(ctx context.Context, inputPath, outputPath string) error {
	if !t.Available(ctx) {
		return fmt.Errorf("ffmpeg not available at %q", t.cfg.FFmpegPath)
	}

	cmd := exec.CommandContext(ctx, t.cfg.FFmpegPath,
		"-i", inputPath,
		"-acodec", "mp3",
		"-ab", t.cfg.AudioBitrate,
		"-ar", t.cfg.SampleRate,
		"-ac", t.cfg.Channels,
		"-y",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(string(output)))
	}

	t.logger.Info("audio normalized",
		zap.String("input", inputPath),
		zap.String("output", outputPath))
	return nil
}

// NeedsNormalization reports whether a file name looks like an audio
// format that should be converted before sending.
func NeedsNormalization(fileName string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(fileName))]
}

// MP3Name swaps the file extension for .mp3.
func MP3Name(fileName string) string {
	ext := filepath.Ext(fileName)
	return strings.TrimSuffix(fileName, ext) + ".mp3"
}
