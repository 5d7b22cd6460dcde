package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// DefaultFFmpeg is the binary name used when no ffmpeg path is configured.
const DefaultFFmpeg = "ffmpeg"

// ChromeCandidates lists the browser names probed on PATH, in order.
var ChromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
}

// Tool is an external program one or more codecs shell out to. Codecs holds
// the catalog entry names that are skipped when the tool is missing.
type Tool struct {
	Name        string
	Codecs      []string
	Configured  string
	Candidates  []string
	Description string
}

// Status is the outcome of locating a Tool.
type Status struct {
	Name        string   `json:"name"`
	Codecs      []string `json:"codecs"`
	Command     string   `json:"command"`
	Description string   `json:"description"`
	Available   bool     `json:"available"`
	Detail      string   `json:"detail,omitempty"`
}

// FFmpeg describes the transcoder behind the audio, video and
// video-to-audio codecs.
func FFmpeg(configured string) Tool {
	return Tool{
		Name:        "FFmpeg",
		Codecs:      []string{"audio", "video", "video-audio"},
		Configured:  configured,
		Candidates:  []string{DefaultFFmpeg},
		Description: "Required for audio and video conversions",
	}
}

// Chrome describes the headless browser behind HTML to PDF printing.
func Chrome(configured string) Tool {
	return Tool{
		Name:        "Chrome",
		Codecs:      []string{"htmlpdf"},
		Configured:  configured,
		Candidates:  ChromeCandidates,
		Description: "Required for HTML to PDF printing",
	}
}

// CodecTools lists every external program the shipped codecs can use.
func CodecTools(ffmpegBinary, chromeBinary string) []Tool {
	return []Tool{FFmpeg(ffmpegBinary), Chrome(chromeBinary)}
}

// Resolve returns the absolute path of the configured command, or of the
// first candidate found on PATH when none is configured.
func (t Tool) Resolve() (string, error) {
	if configured := strings.TrimSpace(t.Configured); configured != "" {
		path, err := exec.LookPath(configured)
		if err != nil {
			return "", fmt.Errorf("%s binary %q not found: %w", strings.ToLower(t.Name), configured, err)
		}
		return path, nil
	}
	if len(t.Candidates) == 0 {
		return "", fmt.Errorf("%s: command not configured", strings.ToLower(t.Name))
	}
	for _, name := range t.Candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no %s binary found (tried %s)", strings.ToLower(t.Name), strings.Join(t.Candidates, ", "))
}

// command is what Resolve would look up first, for reporting.
func (t Tool) command() string {
	if configured := strings.TrimSpace(t.Configured); configured != "" {
		return configured
	}
	if len(t.Candidates) > 0 {
		return t.Candidates[0]
	}
	return ""
}

// Check locates every tool.
func Check(tools []Tool) []Status {
	results := make([]Status, 0, len(tools))
	for _, tool := range tools {
		status := Status{
			Name:        tool.Name,
			Codecs:      append([]string(nil), tool.Codecs...),
			Command:     tool.command(),
			Description: tool.Description,
		}
		if path, err := tool.Resolve(); err != nil {
			status.Detail = err.Error()
		} else {
			status.Command = path
			status.Available = true
		}
		results = append(results, status)
	}
	return results
}

// ResolveFFmpegPath resolves the configured ffmpeg, falling back to "ffmpeg"
// on PATH.
func ResolveFFmpegPath(configured string) (string, error) {
	return FFmpeg(configured).Resolve()
}

// ResolveChromePath resolves the configured browser, otherwise the first of
// ChromeCandidates found on PATH.
func ResolveChromePath(configured string) (string, error) {
	return Chrome(configured).Resolve()
}
