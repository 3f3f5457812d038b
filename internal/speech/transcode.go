package speech

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"

	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/logger"
)

// canonicalBitDepth is the PCM sample width the recognizer is configured for
const canonicalBitDepth = 16

// Transcoder converts arbitrary uploaded audio to canonical WAV.
type Transcoder interface {
	Transcode(ctx context.Context, audio []byte) ([]byte, error)
}

// FFmpeg transcodes through the ffmpeg binary. Input and output go through
// temporary files so container formats that need seeking (m4a, wav headers)
// work.
type FFmpeg struct {
	Path       string
	SampleRate int
}

// Transcode converts audio to mono 16-bit WAV at the configured sample rate.
func (f *FFmpeg) Transcode(ctx context.Context, audio []byte) ([]byte, error) {
	binary := f.Path
	if binary == "" {
		binary = "ffmpeg"
	}

	dir, err := os.MkdirTemp("", "krishisahay-audio-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			GetLogger().Warn("failed to remove temp audio directory",
				logger.String("path", dir),
				logger.Error(err))
		}
	}()

	inPath := filepath.Join(dir, "input")
	outPath := filepath.Join(dir, "output.wav")
	if err := os.WriteFile(inPath, audio, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write audio input: %w", err)
	}

	cmd := exec.CommandContext(ctx, binary, //nolint:gosec // G204: binary from config, args are fixed
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", inPath,
		"-ac", "1",
		"-ar", fmt.Sprint(f.SampleRate),
		"-sample_fmt", "s16",
		"-f", "wav",
		outPath)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcoded audio: %w", err)
	}
	return out, nil
}

// isCanonical reports whether data is already a mono 16-bit PCM WAV at sampleRate.
func isCanonical(data []byte, sampleRate int) bool {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return false
	}
	return decoder.WavAudioFormat == 1 &&
		decoder.NumChans == 1 &&
		decoder.BitDepth == canonicalBitDepth &&
		int(decoder.SampleRate) == sampleRate
}

// peakAmplitude decodes a canonical WAV and returns its peak absolute sample
// value normalized to 0..1.
func peakAmplitude(data []byte) (float64, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return 0, errors.New(err).
			Component("speech").
			Category(errors.CategoryAudio).
			Context("operation", "decode_wav").
			Build()
	}
	if buf == nil || len(buf.Data) == 0 {
		return 0, nil
	}

	fullScale := math.Pow(2, float64(buf.SourceBitDepth)-1)
	if buf.SourceBitDepth == 0 {
		fullScale = math.Pow(2, canonicalBitDepth-1)
	}

	var peak int
	for _, s := range buf.Data {
		if s < 0 {
			s = -s
		}
		peak = max(peak, s)
	}
	return float64(peak) / fullScale, nil
}
