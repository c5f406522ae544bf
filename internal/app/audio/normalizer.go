// Package audio normalizes uploaded audio into the canonical form the
// transcription engine requires: mono, 16kHz, signed 16-bit little-endian
// PCM WAV.
package audio

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/elvisthlg/whisper-api/internal/app/transcribe"
)

// FFmpegNormalizer shells out to ffmpeg for the conversion.
type FFmpegNormalizer struct {
	bin    string
	logger *zap.Logger
}

// NewFFmpegNormalizer creates a normalizer using the given ffmpeg binary.
func NewFFmpegNormalizer(bin string, logger *zap.Logger) *FFmpegNormalizer {
	return &FFmpegNormalizer{
		bin:    bin,
		logger: logger,
	}
}

// Normalize converts the uploaded bytes to 16kHz mono s16le WAV bytes.
// Both temporary files are removed on every exit path. Failures are
// returned as *transcribe.ConversionError carrying ffmpeg's diagnostics.
func (n *FFmpegNormalizer) Normalize(ctx context.Context, src []byte) ([]byte, error) {
	in, err := os.CreateTemp("", "upload-*.audio")
	if err != nil {
		return nil, &transcribe.ConversionError{Err: err}
	}
	defer os.Remove(in.Name())

	if _, err := in.Write(src); err != nil {
		in.Close()
		return nil, &transcribe.ConversionError{Err: err}
	}
	if err := in.Close(); err != nil {
		return nil, &transcribe.ConversionError{Err: err}
	}

	outPath := in.Name() + ".normalized.wav"
	defer os.Remove(outPath)

	args := normalizeArgs(in.Name(), outPath)
	cmd := exec.CommandContext(ctx, n.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	n.logger.Debug("running ffmpeg", zap.String("bin", n.bin), zap.Strings("args", args))

	if err := cmd.Run(); err != nil {
		return nil, &transcribe.ConversionError{
			Diag: toolDiagnostic(stderr.Bytes(), stdout.Bytes()),
			Err:  err,
		}
	}

	pcm, err := os.ReadFile(outPath)
	if err != nil {
		return nil, &transcribe.ConversionError{
			Diag: "ffmpeg produced no output file",
			Err:  err,
		}
	}
	if len(pcm) == 0 {
		return nil, &transcribe.ConversionError{Diag: "ffmpeg produced an empty file"}
	}

	return pcm, nil
}

func normalizeArgs(inPath, outPath string) []string {
	return []string{
		"-y",
		"-i", inPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// toolDiagnostic picks the most useful subprocess output for logging.
func toolDiagnostic(stderr, stdout []byte) string {
	if s := strings.TrimSpace(string(stderr)); s != "" {
		return s
	}
	if s := strings.TrimSpace(string(stdout)); s != "" {
		return s
	}
	return "unknown tool error"
}
