package converter

import (
	"context"
	"fmt"
	"runtime/debug"

	"transmute/internal/fileutil"
	"transmute/internal/formats"
)

// ConvertFunc performs the transformation for a single pair. The source is
// known to exist and be non-empty, and the target directory exists.
type ConvertFunc func(ctx context.Context, sourcePath, targetPath string, opts Options) error

type funcConverter struct {
	pair formats.Pair
	fn   ConvertFunc
}

// New wraps fn as a Converter for the pair with SafeConvert guards applied.
func New(source, target formats.Format, fn ConvertFunc) Converter {
	return &funcConverter{pair: formats.NewPair(string(source), string(target)), fn: fn}
}

func (c *funcConverter) Source() formats.Format { return c.pair.Source }
func (c *funcConverter) Target() formats.Format { return c.pair.Target }

func (c *funcConverter) Convert(ctx context.Context, sourcePath, targetPath string, opts Options) Result {
	return guard(ctx, c.pair, sourcePath, targetPath, func() Result {
		return FromError(c.fn(ctx, sourcePath, targetPath, opts))
	})
}

// SafeConvert runs c with the shared guards: the source must exist and be
// non-empty, the target directory is created, panics become failures, and a
// reported success without a non-empty target is downgraded to a failure.
func SafeConvert(ctx context.Context, c Converter, sourcePath, targetPath string, opts Options) Result {
	if c == nil {
		return Failed("no converter")
	}
	pair := formats.Pair{Source: c.Source(), Target: c.Target()}
	return guard(ctx, pair, sourcePath, targetPath, func() Result {
		return c.Convert(ctx, sourcePath, targetPath, opts)
	})
}

func guard(ctx context.Context, pair formats.Pair, sourcePath, targetPath string, run func() Result) (res Result) {
	if err := ctx.Err(); err != nil {
		return Failed("%s: %v", pair, err)
	}
	if _, err := fileutil.RequireNonEmpty(sourcePath); err != nil {
		return Failed("invalid source: %v", err)
	}
	if err := fileutil.EnsureParentDir(targetPath); err != nil {
		return FromError(err)
	}

	defer func() {
		if r := recover(); r != nil {
			res = Failed("%s converter panicked: %v\n%s", pair, r, debug.Stack())
		}
	}()

	res = run()
	if !res.OK {
		if res.Err == "" {
			res.Err = fmt.Sprintf("%s conversion failed", pair)
		}
		return res
	}
	if _, err := fileutil.RequireNonEmpty(targetPath); err != nil {
		return Failed("%s produced no output: %v", pair, err)
	}
	return res
}
