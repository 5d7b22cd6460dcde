package registry

import (
	"slices"

	"transmute/internal/formats"
)

// FormatInfo lists the direct conversions touching one format.
type FormatInfo struct {
	CanConvertFrom []formats.Format `json:"can_convert_from"`
	CanConvertTo   []formats.Format `json:"can_convert_to"`
}

// CategoryDetails groups format information for one category.
type CategoryDetails struct {
	Category formats.Category                `json:"category"`
	Formats  map[formats.Format]FormatInfo `json:"formats"`
}

// Matrix returns, for every format with a direct capability, the formats it
// can be converted from and to.
func (r *Registry) Matrix() map[formats.Format]FormatInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matrix := make(map[formats.Format]FormatInfo)
	for pair := range r.caps {
		src := matrix[pair.Source]
		src.CanConvertTo = append(src.CanConvertTo, pair.Target)
		matrix[pair.Source] = src

		dst := matrix[pair.Target]
		dst.CanConvertFrom = append(dst.CanConvertFrom, pair.Source)
		matrix[pair.Target] = dst
	}
	for f, info := range matrix {
		slices.Sort(info.CanConvertFrom)
		slices.Sort(info.CanConvertTo)
		matrix[f] = info
	}
	return matrix
}

// FormatDetails groups the matrix by well-known category, omitting formats
// that have no conversions. Categories without any convertible format are
// left out.
func (r *Registry) FormatDetails() []CategoryDetails {
	matrix := r.Matrix()
	var out []CategoryDetails
	for _, category := range formats.Categories() {
		entry := CategoryDetails{Category: category, Formats: map[formats.Format]FormatInfo{}}
		for _, f := range formats.CategoryFormats(category) {
			info, ok := matrix[f]
			if !ok || (len(info.CanConvertFrom) == 0 && len(info.CanConvertTo) == 0) {
				continue
			}
			entry.Formats[f] = info
		}
		if len(entry.Formats) > 0 {
			out = append(out, entry)
		}
	}
	return out
}
