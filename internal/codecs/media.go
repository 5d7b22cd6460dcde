package codecs

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"transmute/internal/converter"
	"transmute/internal/deps"
	"transmute/internal/formats"
	"transmute/internal/logging"
	"transmute/internal/services"
)

// transcoder shells out to ffmpeg for audio and video conversions.
type transcoder struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

func newTranscoder(binary string, timeout time.Duration, logger *slog.Logger) (*transcoder, error) {
	resolved, err := deps.ResolveFFmpegPath(binary)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "codecs", "load media", "ffmpeg unavailable", err)
	}
	return &transcoder{binary: resolved, timeout: timeout, logger: logger}, nil
}

// convert runs one ffmpeg invocation bounded by the configured media
// timeout. Output goes to a hidden sibling file that is renamed into place on
// success.
//
// Options:
//   - audio_bitrate: e.g. "192k"
//   - video_bitrate: e.g. "2M"
//   - sample_rate: audio sample rate in Hz
//   - crf: constant rate factor for video encoders that support it
func (t *transcoder) convert(ctx context.Context, pair formats.Pair, sourcePath, targetPath string, opts converter.Options) error {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	partial := filepath.Join(filepath.Dir(targetPath), "."+strings.TrimSuffix(filepath.Base(targetPath), filepath.Ext(targetPath))+".partial."+string(pair.Target))
	defer func() { _ = os.Remove(partial) }()

	args := ffmpegArgs(pair, sourcePath, partial, opts)
	started := time.Now()
	cmd := exec.CommandContext(ctx, t.binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w (%v)", ctx.Err(), err)
		}
		return services.Wrap(services.ErrExternalTool, "codecs", "ffmpeg", pair.String(), fmt.Errorf("%w: %s", err, lastLines(stderr.String(), 5)))
	}
	if err := os.Rename(partial, targetPath); err != nil {
		return fmt.Errorf("rename transcoded output: %w", err)
	}

	t.logger.Debug("ffmpeg transcode finished",
		logging.String(logging.FieldPair, pair.String()),
		logging.String("source", filepath.Base(sourcePath)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// ffmpegArgs builds the argument list for a single transcode.
func ffmpegArgs(pair formats.Pair, sourcePath, targetPath string, opts converter.Options) []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y", "-i", sourcePath}

	audioOnly := slices.Contains(audioFormats, string(pair.Target))
	if audioOnly {
		args = append(args, "-vn")
	}
	if bitrate := opts.String("audio_bitrate", ""); bitrate != "" {
		args = append(args, "-b:a", bitrate)
	}
	if rate := opts.Int("sample_rate", 0); rate > 0 {
		args = append(args, "-ar", strconv.Itoa(rate))
	}
	if !audioOnly {
		if bitrate := opts.String("video_bitrate", ""); bitrate != "" {
			args = append(args, "-b:v", bitrate)
		}
		if crf := opts.Int("crf", -1); crf >= 0 {
			args = append(args, "-crf", strconv.Itoa(crf))
		}
	}
	return append(args, targetPath)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}
