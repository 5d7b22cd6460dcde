package codecs

import (
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/xuri/excelize/v2"

	"transmute/internal/converter"
	"transmute/internal/fileutil"
	"transmute/internal/formats"
)

const defaultSheet = "Sheet1"

// readWorkbook converts one worksheet of an xlsx workbook. The first row is
// the header; data targets receive one record per following row.
//
// Options:
//   - sheet_name: worksheet to read (takes precedence over sheet_index)
//   - sheet_index: zero-based worksheet position (default 0)
//   - plus the options of the data codec for data targets
func readWorkbook(ctx context.Context, pair formats.Pair, sourcePath, targetPath string, opts converter.Options) error {
	book, err := excelize.OpenFile(sourcePath)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	sheet, err := pickSheet(book, opts)
	if err != nil {
		return err
	}
	rows, err := book.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return fileutil.WriteFileAtomic(targetPath, func(w io.Writer) error {
		switch pair.Target {
		case "html":
			return writeSheetHTML(w, sheet, rows)
		case "txt":
			_, err := fmt.Fprintf(w, "Sheet: %s\n\n%s\n", sheet, sheetTable(rows).Render())
			return err
		}
		if err := encodeData(pair.Target, sheetRecords(rows), w, opts); err != nil {
			return fmt.Errorf("encode %s: %w", pair.Target, err)
		}
		return nil
	})
}

func pickSheet(book *excelize.File, opts converter.Options) (string, error) {
	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	if name := opts.String("sheet_name", ""); name != "" {
		for _, sheet := range sheets {
			if sheet == name {
				return sheet, nil
			}
		}
		return "", fmt.Errorf("sheet %q not found (have %s)", name, strings.Join(sheets, ", "))
	}
	index := opts.Int("sheet_index", 0)
	if index < 0 || index >= len(sheets) {
		return "", fmt.Errorf("sheet_index %d out of range (workbook has %d sheets)", index, len(sheets))
	}
	return sheets[index], nil
}

// sheetRecords keys every data row by the header row. Cells are typed the
// same way CSV cells are.
func sheetRecords(rows [][]string) []any {
	if len(rows) == 0 {
		return []any{}
	}
	header := rows[0]
	records := make([]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(map[string]any, len(header))
		for i, name := range header {
			if i < len(row) {
				record[name] = typedCell(row[i])
			} else {
				record[name] = ""
			}
		}
		records = append(records, record)
	}
	return records
}

// sheetTable lays rows out with the first row as header. Short rows are
// padded to the widest row.
func sheetTable(rows [][]string) table.Writer {
	columns := 0
	for _, row := range rows {
		columns = max(columns, len(row))
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.Style().Format.Header = text.FormatDefault
	for i, row := range rows {
		cells := make(table.Row, columns)
		for c := range cells {
			if c < len(row) {
				cells[c] = row[c]
			} else {
				cells[c] = ""
			}
		}
		if i == 0 {
			tw.AppendHeader(cells)
			continue
		}
		tw.AppendRow(cells)
	}
	return tw
}

func writeSheetHTML(w io.Writer, sheet string, rows [][]string) error {
	title := html.EscapeString(sheet)
	_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
table { border-collapse: collapse; width: 100%%; }
th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
th { background-color: #f2f2f2; }
</style>
</head>
<body>
<h2>%s</h2>
%s
</body>
</html>
`, title, title, sheetTable(rows).RenderHTML())
	return err
}

// writeWorkbook lays the records of a data document out on a single sheet.
//
// Options:
//   - sheet_name: worksheet name (default "Sheet1")
//   - row_path: dotted path to the records
//   - plus the decoding options of the data codec
func writeWorkbook(ctx context.Context, pair formats.Pair, sourcePath, targetPath string, opts converter.Options) error {
	raw, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("read %s: %w", pair.Source, err)
	}
	doc, err := decodeData(pair.Source, raw, opts)
	if err != nil {
		return fmt.Errorf("decode %s: %w", pair.Source, err)
	}
	records, err := recordsFor(doc, opts)
	if err != nil {
		return fmt.Errorf("encode xlsx: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	book := excelize.NewFile()
	defer book.Close()
	sheet := opts.String("sheet_name", defaultSheet)
	if sheet != defaultSheet {
		if err := book.SetSheetName(defaultSheet, sheet); err != nil {
			return fmt.Errorf("name sheet: %w", err)
		}
	}

	header := recordColumns(records)
	headerRow := make([]any, len(header))
	for i, name := range header {
		headerRow[i] = name
	}
	if err := book.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := make([]any, len(header))
		for c, key := range header {
			row[c] = sheetValue(rec[key])
		}
		if err := book.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	return fileutil.WriteFileAtomic(targetPath, func(w io.Writer) error {
		if _, err := book.WriteTo(w); err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
		return nil
	})
}

// sheetValue keeps scalars typed so numbers and booleans land as such in the
// sheet; nested values are written as JSON text.
func sheetValue(v any) any {
	switch v.(type) {
	case nil, string, bool, int, int64, uint64, float64:
		return v
	}
	return cellString(v)
}
