package codecs

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/net/html/charset"
	"gopkg.in/yaml.v3"

	"transmute/internal/converter"
	"transmute/internal/fileutil"
	"transmute/internal/formats"
)

// recordsKey holds top-level lists when the target format requires a table
// at the document root.
const recordsKey = "records"

var errNotTabular = errors.New("document is not a list of records")

// Keys used when an XML element carries attributes.
const (
	xmlAttrsKey = "@attrs"
	xmlTextKey  = "#text"
)

// maxRecordSearchDepth bounds how far tabular targets look for a list of
// records inside wrapper objects.
const maxRecordSearchDepth = 5

// convertData decodes the source into a generic document and re-encodes it.
//
// Options:
//   - delimiter: single-character CSV field separator (default ",")
//   - indent: spaces used for JSON, YAML and text output (default 2)
//   - root: XML root element name (default "document")
//   - preserve_attrs: keep XML attributes under "@attrs" (default true)
//   - items_key: wrap repeated XML elements in an object under this key
//   - row_path: dotted path to the records for CSV output
func convertData(ctx context.Context, pair formats.Pair, sourcePath, targetPath string, opts converter.Options) error {
	raw, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("read %s: %w", pair.Source, err)
	}
	doc, err := decodeData(pair.Source, raw, opts)
	if err != nil {
		return fmt.Errorf("decode %s: %w", pair.Source, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(targetPath, func(w io.Writer) error {
		if err := encodeData(pair.Target, doc, w, opts); err != nil {
			return fmt.Errorf("encode %s: %w", pair.Target, err)
		}
		return nil
	})
}

func decodeData(format formats.Format, raw []byte, opts converter.Options) (any, error) {
	var doc any
	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, err
		}
		return normalizeJSONNumbers(doc), nil
	case "yaml", "yml":
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		return doc, nil
	case "toml":
		var table map[string]any
		if err := toml.Unmarshal(raw, &table); err != nil {
			return nil, err
		}
		return table, nil
	case "csv":
		return decodeCSV(raw, opts)
	case "xml":
		return decodeXML(raw, opts)
	}
	return nil, fmt.Errorf("unsupported data format %q", format)
}

func encodeData(format formats.Format, doc any, w io.Writer, opts converter.Options) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", strings.Repeat(" ", opts.Int("indent", 2)))
		return enc.Encode(doc)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(opts.Int("indent", 2))
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(w).Encode(tomlRoot(doc))
	case "csv":
		return encodeCSV(doc, w, opts)
	case "xml":
		return encodeXML(doc, w, opts.String("root", "document"))
	case "txt":
		return encodeOutline(doc, w, opts.Int("indent", 2))
	}
	return fmt.Errorf("unsupported data format %q", format)
}

// normalizeJSONNumbers turns json.Number values into int64 when integral and
// float64 otherwise so that TOML and YAML encoders keep integer types.
func normalizeJSONNumbers(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		for k, child := range typed {
			typed[k] = normalizeJSONNumbers(child)
		}
		return typed
	case []any:
		for i, child := range typed {
			typed[i] = normalizeJSONNumbers(child)
		}
		return typed
	case json.Number:
		if n, err := typed.Int64(); err == nil {
			return n
		}
		if f, err := typed.Float64(); err == nil {
			return f
		}
		return typed.String()
	}
	return v
}

func csvDelimiter(opts converter.Options) rune {
	d := opts.String("delimiter", ",")
	if d == `\t` || d == "tab" {
		return '\t'
	}
	return []rune(d)[0]
}

// decodeCSV reads a header row followed by records. Each record becomes a
// map keyed by header; values that parse as numbers or booleans are typed.
func decodeCSV(raw []byte, opts converter.Options) (any, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.Comma = csvDelimiter(opts)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []any{}, nil
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
	return records, nil
}

func typedCell(cell string) any {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return cell
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	// Only spelled-out booleans; "T", "F", "1" and "0" stay as written.
	switch strings.ToLower(trimmed) {
	case "true":
		return true
	case "false":
		return false
	}
	return cell
}

// encodeCSV writes a list of records (or a table holding one under
// "records") as CSV. Columns are the sorted keys of the first record followed
// by keys introduced by later records; nested values are written as JSON.
func encodeCSV(doc any, w io.Writer, opts converter.Options) error {
	records, err := recordsFor(doc, opts)
	if err != nil {
		return err
	}
	header := recordColumns(records)

	writer := csv.NewWriter(w)
	writer.Comma = csvDelimiter(opts)
	if err := writer.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for _, rec := range records {
		for i, key := range header {
			row[i] = cellString(rec[key])
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// recordsFor applies the row_path option before flattening doc into records.
func recordsFor(doc any, opts converter.Options) ([]map[string]any, error) {
	if rowPath := opts.String("row_path", ""); rowPath != "" {
		current := doc
		for _, part := range strings.Split(rowPath, ".") {
			m, ok := asMap(current)
			if !ok {
				return nil, fmt.Errorf("row_path %q: %q is not an object", rowPath, part)
			}
			if current, ok = m[part]; !ok {
				return nil, fmt.Errorf("row_path %q: missing %q", rowPath, part)
			}
		}
		doc = current
	}
	return tabular(doc)
}

// recordColumns returns the sorted keys of the first record followed by keys
// introduced by later records.
func recordColumns(records []map[string]any) []string {
	var header []string
	for _, rec := range records {
		for _, key := range sortedKeys(rec) {
			if !slices.Contains(header, key) {
				header = append(header, key)
			}
		}
	}
	return header
}

func tabular(doc any) ([]map[string]any, error) {
	switch typed := doc.(type) {
	case []any:
		out := make([]map[string]any, 0, len(typed))
		for _, item := range typed {
			rec, ok := asMap(item)
			if !ok {
				out = append(out, map[string]any{"value": item})
				continue
			}
			out = append(out, rec)
		}
		return out, nil
	case map[string]any:
		if inner, ok := typed[recordsKey]; ok && len(typed) == 1 {
			return tabular(inner)
		}
		if list, ok := findRecords(typed, 0); ok {
			return tabular(list)
		}
		return []map[string]any{typed}, nil
	}
	return nil, errNotTabular
}

// findRecords descends through single-key wrapper objects, as produced by
// XML documents, looking for a list whose items are all objects.
func findRecords(v any, depth int) ([]any, bool) {
	if depth > maxRecordSearchDepth {
		return nil, false
	}
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return nil, false
		}
		for _, item := range list {
			if _, ok := asMap(item); !ok {
				return nil, false
			}
		}
		return list, true
	}
	m, ok := asMap(v)
	if !ok || len(m) != 1 {
		return nil, false
	}
	return findRecords(m[sortedKeys(m)[0]], depth+1)
}

func asMap(v any) (map[string]any, bool) {
	switch typed := v.(type) {
	case map[string]any:
		return typed, true
	case map[any]any:
		out := make(map[string]any, len(typed))
		for k, val := range typed {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cellString(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case map[string]any, []any:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(encoded)
	}
	return fmt.Sprint(v)
}

func tomlRoot(doc any) any {
	if m, ok := asMap(doc); ok {
		return m
	}
	return map[string]any{recordsKey: doc}
}

// encodeXML renders doc as nested elements. List items become <item>
// elements; map keys are emitted in sorted order.
func encodeXML(doc any, w io.Writer, root string) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := writeXMLElement(enc, xmlName(root), doc); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func writeXMLElement(enc *xml.Encoder, name string, v any) error {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if m, ok := asMap(v); ok {
		for _, key := range sortedKeys(m) {
			if err := writeXMLElement(enc, xmlName(key), m[key]); err != nil {
				return err
			}
		}
	} else if list, ok := v.([]any); ok {
		for _, item := range list {
			if err := writeXMLElement(enc, "item", item); err != nil {
				return err
			}
		}
	} else if v != nil {
		if err := enc.EncodeToken(xml.CharData(fmt.Sprint(v))); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// xmlName maps an arbitrary key onto a valid element name.
func xmlName(key string) string {
	var b strings.Builder
	for i, r := range key {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		case i > 0 && (r == '-' || r == '.' || (r >= '0' && r <= '9')):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "item"
	}
	return b.String()
}

// xmlNode is an element collected while decoding.
type xmlNode struct {
	name     string
	attrs    []xml.Attr
	children []*xmlNode
	text     strings.Builder
}

// decodeXML turns the root element's content into a generic document. Child
// elements become keys, repeated children become lists, and text-only
// elements become strings. The root element name itself is dropped.
func decodeXML(raw []byte, opts converter.Options) (any, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = charset.NewReaderLabel

	var (
		stack []*xmlNode
		root  *xmlNode
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			node := &xmlNode{name: t.Name.Local, attrs: t.Attr}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, node)
			} else if root != nil {
				return nil, errors.New("multiple root elements")
			} else {
				root = node
			}
			stack = append(stack, node)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("no root element")
	}
	return xmlValue(root, opts.Bool("preserve_attrs", true), opts.String("items_key", "")), nil
}

func xmlValue(node *xmlNode, preserveAttrs bool, itemsKey string) any {
	text := strings.TrimSpace(node.text.String())
	withAttrs := preserveAttrs && len(node.attrs) > 0

	if len(node.children) == 0 && !withAttrs {
		return text
	}

	out := make(map[string]any)
	if withAttrs {
		attrs := make(map[string]any, len(node.attrs))
		for _, attr := range node.attrs {
			attrs[attr.Name.Local] = attr.Value
		}
		out[xmlAttrsKey] = attrs
	}

	var order []string
	groups := make(map[string][]any)
	for _, child := range node.children {
		if _, seen := groups[child.name]; !seen {
			order = append(order, child.name)
		}
		groups[child.name] = append(groups[child.name], xmlValue(child, preserveAttrs, itemsKey))
	}
	for _, name := range order {
		items := groups[name]
		switch {
		case len(items) == 1:
			out[name] = items[0]
		case itemsKey != "":
			out[name] = map[string]any{itemsKey: items}
		default:
			out[name] = items
		}
	}

	if text != "" && len(node.children) == 0 {
		out[xmlTextKey] = text
	}
	return out
}

// encodeOutline writes doc as an indented key/value outline. Lists of
// objects are introduced by "-" lines; a top-level list is numbered.
func encodeOutline(doc any, w io.Writer, indent int) error {
	if indent < 0 {
		indent = 2
	}
	var buf bytes.Buffer
	writeOutline(&buf, doc, indent, 0)
	_, err := w.Write(buf.Bytes())
	return err
}

func writeOutline(buf *bytes.Buffer, v any, indent, level int) {
	pad := strings.Repeat(" ", level*indent)
	step := strings.Repeat(" ", indent)
	if m, ok := asMap(v); ok {
		for _, key := range sortedKeys(m) {
			switch child := m[key].(type) {
			case []any:
				fmt.Fprintf(buf, "%s%s:\n", pad, key)
				for _, item := range child {
					if _, nested := asMap(item); nested {
						fmt.Fprintf(buf, "%s%s-\n", pad, step)
						writeOutline(buf, item, indent, level+2)
						continue
					}
					fmt.Fprintf(buf, "%s%s- %s\n", pad, step, cellString(item))
				}
			default:
				if _, nested := asMap(child); nested {
					fmt.Fprintf(buf, "%s%s:\n", pad, key)
					writeOutline(buf, child, indent, level+1)
					continue
				}
				fmt.Fprintf(buf, "%s%s: %s\n", pad, key, cellString(child))
			}
		}
		return
	}
	if list, ok := v.([]any); ok {
		for i, item := range list {
			fmt.Fprintf(buf, "%s%d.\n", pad, i+1)
			writeOutline(buf, item, indent, level+1)
		}
		return
	}
	fmt.Fprintf(buf, "%s%s\n", pad, cellString(v))
}
