package codecs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	pdfread "github.com/ledongthuc/pdf"

	"transmute/internal/converter"
	"transmute/internal/fileutil"
	"transmute/internal/formats"
)

var errNoText = errors.New("pdf has no extractable text")

// extractPDFText writes the text layer of every page, pages separated by a
// blank line. Scanned documents without a text layer fail.
//
// Options:
//   - page_breaks: separate pages with a form feed instead (default false)
func extractPDFText(ctx context.Context, pair formats.Pair, sourcePath, targetPath string, opts converter.Options) error {
	file, reader, err := pdfread.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	separator := "\n\n"
	if opts.Bool("page_breaks", false) {
		separator = "\n\f"
	}

	fonts := make(map[string]*pdfread.Font)
	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := page.Font(name)
				fonts[name] = &font
			}
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			return fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	body := strings.Join(pages, separator)
	if strings.TrimSpace(body) == "" {
		return errNoText
	}
	return fileutil.WriteFileAtomic(targetPath, func(w io.Writer) error {
		_, err := io.WriteString(w, body+"\n")
		return err
	})
}
