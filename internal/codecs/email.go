package codecs

import (
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"
	"github.com/microcosm-cc/bluemonday"

	"transmute/internal/converter"
	"transmute/internal/fileutil"
	"transmute/internal/formats"
	"transmute/internal/textutil"
)

var mailHeaders = []string{"From", "To", "Cc", "Subject", "Date"}

// mailReader renders RFC 5322 messages as plain text or sanitized HTML.
type mailReader struct {
	ugc    *bluemonday.Policy
	strict *bluemonday.Policy
}

func newMailReader() *mailReader {
	return &mailReader{
		ugc:    bluemonday.UGCPolicy(),
		strict: bluemonday.StrictPolicy(),
	}
}

// convert parses an .eml file.
//
// Options:
//   - headers: include the From/To/Cc/Subject/Date block (default true)
//   - attachments: list attachment names and sizes (default true)
//   - extract_dir: also save attachments into this directory
func (m *mailReader) convert(ctx context.Context, pair formats.Pair, sourcePath, targetPath string, opts converter.Options) error {
	file, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("open message: %w", err)
	}
	defer file.Close()

	envelope, err := enmime.ReadEnvelope(file)
	if err != nil {
		return fmt.Errorf("parse message: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if dir := opts.String("extract_dir", ""); dir != "" {
		if err := extractAttachments(envelope, dir); err != nil {
			return err
		}
	}

	var out string
	switch pair.Target {
	case "txt":
		out = m.renderText(envelope, opts)
	case "html":
		out = m.renderHTML(envelope, opts)
	default:
		return fmt.Errorf("email codec cannot convert %s", pair)
	}
	return fileutil.WriteFileAtomic(targetPath, func(w io.Writer) error {
		_, err := io.WriteString(w, out)
		return err
	})
}

func (m *mailReader) renderText(env *enmime.Envelope, opts converter.Options) string {
	var b strings.Builder
	if opts.Bool("headers", true) {
		for _, name := range mailHeaders {
			if value := strings.TrimSpace(env.GetHeader(name)); value != "" {
				fmt.Fprintf(&b, "%s: %s\n", name, value)
			}
		}
		b.WriteString("\n")
	}

	body := strings.TrimSpace(env.Text)
	if body == "" && env.HTML != "" {
		body = strings.TrimSpace(html.UnescapeString(m.strict.Sanitize(env.HTML)))
	}
	b.WriteString(body)
	b.WriteString("\n")

	if opts.Bool("attachments", true) && len(env.Attachments) > 0 {
		fmt.Fprintf(&b, "\nAttachments (%d):\n", len(env.Attachments))
		for _, att := range env.Attachments {
			fmt.Fprintf(&b, "- %s (%s)\n", attachmentName(att), formatBytes(int64(len(att.Content))))
		}
	}
	return b.String()
}

func (m *mailReader) renderHTML(env *enmime.Envelope, opts converter.Options) string {
	subject := strings.TrimSpace(env.GetHeader("Subject"))
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	b.WriteString(html.EscapeString(subject))
	b.WriteString("</title>\n</head>\n<body>\n")

	if opts.Bool("headers", true) {
		b.WriteString("<table class=\"headers\">\n")
		for _, name := range mailHeaders {
			if value := strings.TrimSpace(env.GetHeader(name)); value != "" {
				fmt.Fprintf(&b, "<tr><th>%s</th><td>%s</td></tr>\n", name, html.EscapeString(value))
			}
		}
		b.WriteString("</table>\n<hr>\n")
	}

	if env.HTML != "" {
		b.WriteString(m.ugc.Sanitize(env.HTML))
	} else {
		b.WriteString(textToHTML(env.Text))
	}

	if opts.Bool("attachments", true) && len(env.Attachments) > 0 {
		fmt.Fprintf(&b, "\n<h3>Attachments (%d)</h3>\n<ul>\n", len(env.Attachments))
		for _, att := range env.Attachments {
			fmt.Fprintf(&b, "<li>%s (%s)</li>\n", html.EscapeString(attachmentName(att)), formatBytes(int64(len(att.Content))))
		}
		b.WriteString("</ul>\n")
	}
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}

// extractAttachments writes every attachment into dir under a sanitized
// name. Name collisions get a numeric suffix.
func extractAttachments(env *enmime.Envelope, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create attachment directory: %w", err)
	}
	used := make(map[string]int, len(env.Attachments))
	for _, att := range env.Attachments {
		name := textutil.SanitizeFileName(attachmentName(att))
		if name == "" || name == "." || name == ".." {
			name = "unnamed"
		}
		if n := used[name]; n > 0 {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
		}
		used[name]++
		content := att.Content
		if err := fileutil.WriteFileAtomic(filepath.Join(dir, name), func(w io.Writer) error {
			_, err := w.Write(content)
			return err
		}); err != nil {
			return fmt.Errorf("save attachment %s: %w", name, err)
		}
	}
	return nil
}

func attachmentName(part *enmime.Part) string {
	if part.FileName != "" {
		return part.FileName
	}
	return "unnamed"
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
