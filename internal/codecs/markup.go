package codecs

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"transmute/internal/converter"
	"transmute/internal/fileutil"
	"transmute/internal/formats"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// markup converts between markdown, HTML, and plain text. HTML produced from
// or consumed by the codec passes through a UGC sanitizer first, so scripts,
// event handlers, and javascript: URLs never survive a conversion.
type markup struct {
	renderer goldmark.Markdown
	ugc      *bluemonday.Policy
	strict   *bluemonday.Policy
	toMD     *md.Converter
}

func newMarkup() *markup {
	return &markup{
		renderer: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		ugc:      bluemonday.UGCPolicy(),
		strict:   bluemonday.StrictPolicy(),
		toMD:     md.NewConverter("", true, nil),
	}
}

// convert handles every markup pair.
//
// Options:
//   - title: document title for full HTML output (default: source file name)
//   - fragment: emit an HTML body fragment instead of a full document
func (m *markup) convert(ctx context.Context, pair formats.Pair, sourcePath, targetPath string, opts converter.Options) error {
	raw, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("read %s: %w", pair.Source, err)
	}

	var out string
	switch source := sourceKind(pair.Source); {
	case source == "md" && pair.Target == "html":
		body, err := m.markdownToHTML(raw)
		if err != nil {
			return err
		}
		out = m.document(body, sourcePath, opts)
	case source == "md" && pair.Target == "txt":
		body, err := m.markdownToHTML(raw)
		if err != nil {
			return err
		}
		out = m.plainText(body)
	case source == "md" && pair.Target == "md":
		out = string(raw)
	case source == "html" && pair.Target == "md":
		out, err = m.htmlToMarkdown(string(raw))
		if err != nil {
			return err
		}
	case source == "html" && pair.Target == "txt":
		out = m.plainText(string(raw))
	case source == "txt" && pair.Target == "html":
		out = m.document(textToHTML(string(raw)), sourcePath, opts)
	case source == "txt" && pair.Target == "md":
		out = string(raw)
	default:
		return fmt.Errorf("markup codec cannot convert %s", pair)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(targetPath, func(w io.Writer) error {
		_, err := io.WriteString(w, out)
		return err
	})
}

func sourceKind(f formats.Format) string {
	if f == "markdown" {
		return "md"
	}
	return string(f)
}

func (m *markup) markdownToHTML(src []byte) (string, error) {
	var buf bytes.Buffer
	if err := m.renderer.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return m.ugc.Sanitize(buf.String()), nil
}

func (m *markup) htmlToMarkdown(source string) (string, error) {
	out, err := m.toMD.ConvertString(m.ugc.Sanitize(source))
	if err != nil {
		return "", fmt.Errorf("convert html to markdown: %w", err)
	}
	return strings.TrimSpace(out) + "\n", nil
}

func (m *markup) plainText(source string) string {
	text := html.UnescapeString(m.strict.Sanitize(source))
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	text = blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text) + "\n"
}

func (m *markup) document(body, sourcePath string, opts converter.Options) string {
	if opts.Bool("fragment", false) {
		return body
	}
	title := opts.String("title", strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath)))
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title>\n</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}

// textToHTML escapes plain text and turns blank-line separated blocks into
// paragraphs.
func textToHTML(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var b strings.Builder
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(block), "\n", "<br>\n"))
		b.WriteString("</p>\n")
	}
	return b.String()
}
