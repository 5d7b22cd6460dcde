package codecs

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/jung-kurt/gofpdf"

	"transmute/internal/converter"
	"transmute/internal/fileutil"
	"transmute/internal/formats"
)

const defaultPDFFont = "Helvetica"

// pdfWriter lays out text, markdown, and CSV sources on PDF pages using
// gofpdf's core fonts. Raster images are placed on a single page.
type pdfWriter struct {
	font string
}

func newPDFWriter(font string) *pdfWriter {
	if strings.TrimSpace(font) == "" {
		font = defaultPDFFont
	}
	return &pdfWriter{font: font}
}

// convert renders sourcePath into a PDF document.
//
// Options:
//   - orientation: "P" or "L" (default "P", CSV defaults to "L")
//   - page_size: gofpdf page size name (default "A4")
//   - font_size: body font size in points (default 11)
//   - margin: page margin in millimetres for images (default 10)
func (p *pdfWriter) convert(ctx context.Context, pair formats.Pair, sourcePath, targetPath string, opts converter.Options) error {
	if slices.Contains(imageSources, string(pair.Source)) {
		return p.convertImage(ctx, sourcePath, targetPath, opts)
	}
	raw, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("read %s: %w", pair.Source, err)
	}

	orientation := "P"
	if pair.Source == "csv" {
		orientation = "L"
	}
	pdf := gofpdf.New(opts.String("orientation", orientation), "mm", opts.String("page_size", "A4"), "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	size := float64(opts.Int("font_size", 11))
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	switch pair.Source {
	case "txt":
		p.addPlainText(pdf, tr, string(raw), size)
	case "md":
		p.addMarkdown(pdf, tr, string(raw), size)
	case "csv":
		if err := p.addTable(pdf, tr, raw, size, csvDelimiter(opts)); err != nil {
			return err
		}
	default:
		return fmt.Errorf("pdf codec cannot convert %s", pair)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return writePDF(pdf, targetPath)
}

func writePDF(pdf *gofpdf.Fpdf, targetPath string) error {
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("layout pdf: %w", err)
	}
	return fileutil.WriteFileAtomic(targetPath, func(w io.Writer) error {
		if err := pdf.Output(w); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		return nil
	})
}

// convertImage scales the image to fit the page inside the margins and
// centres it. Orientation follows the image unless set explicitly.
func (p *pdfWriter) convertImage(ctx context.Context, sourcePath, targetPath string, opts converter.Options) error {
	img, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return fmt.Errorf("image has no pixels")
	}

	var encoded bytes.Buffer
	if err := imaging.Encode(&encoded, img, imaging.PNG); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	orientation := "P"
	if bounds.Dx() > bounds.Dy() {
		orientation = "L"
	}
	margin := float64(opts.Int("margin", 10))
	if margin < 0 {
		margin = 0
	}
	pdf := gofpdf.New(opts.String("orientation", orientation), "mm", opts.String("page_size", "A4"), "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.AddPage()

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("source", imageOpts, &encoded)

	pageWidth, pageHeight := pdf.GetPageSize()
	availWidth := pageWidth - 2*margin
	availHeight := pageHeight - 2*margin
	scale := min(availWidth/float64(bounds.Dx()), availHeight/float64(bounds.Dy()))
	width := float64(bounds.Dx()) * scale
	height := float64(bounds.Dy()) * scale
	x := (pageWidth - width) / 2
	y := (pageHeight - height) / 2
	pdf.ImageOptions("source", x, y, width, height, false, imageOpts, 0, "")

	return writePDF(pdf, targetPath)
}

func (p *pdfWriter) addPlainText(pdf *gofpdf.Fpdf, tr func(string) string, text string, size float64) {
	pdf.SetFont(p.font, "", size)
	pdf.MultiCell(0, size*0.5, tr(strings.ReplaceAll(text, "\r\n", "\n")), "", "", false)
}

// addMarkdown renders headings in bold at a larger size and list items with
// a bullet; everything else flows as paragraphs.
func (p *pdfWriter) addMarkdown(pdf *gofpdf.Fpdf, tr func(string) string, text string, size float64) {
	lineHeight := size * 0.5
	inFence := false
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			pdf.SetFont("Courier", "", size-1)
			pdf.MultiCell(0, lineHeight, tr(line), "", "", false)
			continue
		}

		switch {
		case trimmed == "":
			pdf.Ln(lineHeight)
		case strings.HasPrefix(trimmed, "#"):
			level := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
			heading := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			headingSize := size + float64(max(0, 8-2*level))
			pdf.SetFont(p.font, "B", headingSize)
			pdf.MultiCell(0, headingSize*0.55, tr(heading), "", "", false)
			pdf.Ln(1)
		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			pdf.SetFont(p.font, "", size)
			pdf.MultiCell(0, lineHeight, tr("- "+stripInline(trimmed[2:])), "", "", false)
		default:
			pdf.SetFont(p.font, "", size)
			pdf.MultiCell(0, lineHeight, tr(stripInline(trimmed)), "", "", false)
		}
	}
}

// stripInline removes the common inline emphasis markers.
func stripInline(s string) string {
	return strings.NewReplacer("**", "", "__", "", "`", "").Replace(s)
}

func (p *pdfWriter) addTable(pdf *gofpdf.Fpdf, tr func(string) string, raw []byte, size float64, comma rune) error {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("decode csv: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("decode csv: no rows")
	}

	columns := 0
	for _, row := range rows {
		columns = max(columns, len(row))
	}
	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	width := (pageWidth - left - right) / float64(columns)
	height := size * 0.6
	pdf.SetFillColor(230, 230, 230)

	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
		}
		pdf.SetFont(p.font, style, size)
		for c := 0; c < columns; c++ {
			cell := ""
			if c < len(row) {
				cell = fitCell(pdf, tr, row[c], width-2)
			}
			pdf.CellFormat(width, height, cell, "1", 0, "L", i == 0, 0, "")
		}
		pdf.Ln(-1)
	}
	return nil
}

// fitCell translates text for the core font and shortens it with an
// ellipsis until it fits width.
func fitCell(pdf *gofpdf.Fpdf, tr func(string) string, text string, width float64) string {
	if out := tr(text); pdf.GetStringWidth(out) <= width {
		return out
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(tr(string(runes)+"...")) > width {
		runes = runes[:len(runes)-1]
	}
	return tr(string(runes) + "...")
}
