package converter

import (
	"context"

	"transmute/internal/fileutil"
	"transmute/internal/formats"
)

// Identity returns the converter used when source and target formats match:
// a verified byte copy.
func Identity(format formats.Format) Converter {
	f := formats.Normalize(string(format))
	return New(f, f, func(_ context.Context, sourcePath, targetPath string, _ Options) error {
		return fileutil.CopyFile(sourcePath, targetPath)
	})
}
