package formats

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category groups formats by content type for administrative views.
type Category string

const (
	CategoryDocument Category = "document"
	CategoryImage    Category = "image"
	CategoryAudio    Category = "audio"
	CategoryVideo    Category = "video"
	CategoryData     Category = "data"
)

type categoryEntry struct {
	category Category
	formats  []Format
}

var categories = []categoryEntry{
	{CategoryDocument, []Format{"pdf", "docx", "doc", "odt", "txt", "md", "markdown", "html", "rtf", "eml"}},
	{CategoryImage, []Format{"jpg", "jpeg", "png", "gif", "bmp", "webp", "tiff", "tif", "ico", "svg"}},
	{CategoryAudio, []Format{"mp3", "wav", "ogg", "flac", "aac", "m4a"}},
	{CategoryVideo, []Format{"mp4", "avi", "mov", "wmv", "mkv", "webm"}},
	{CategoryData, []Format{"json", "xml", "yaml", "yml", "csv", "toml", "xlsx", "xls"}},
}

var byFormat map[Format]Category

func init() {
	byFormat = make(map[Format]Category)
	for _, entry := range categories {
		for _, f := range entry.formats {
			byFormat[f] = entry.category
		}
	}
}

// Categories returns the known categories in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	for i, entry := range categories {
		out[i] = entry.category
	}
	return out
}

// CategoryFormats returns the well-known formats of a category.
func CategoryFormats(c Category) []Format {
	for _, entry := range categories {
		if entry.category == c {
			out := make([]Format, len(entry.formats))
			copy(out, entry.formats)
			return out
		}
	}
	return nil
}

// CategoryOf returns the category of f, if known.
func CategoryOf(f Format) (Category, bool) {
	c, ok := byFormat[Normalize(string(f))]
	return c, ok
}

// Title renders the category for display ("Document").
func (c Category) Title() string {
	return cases.Title(language.English).String(string(c))
}
