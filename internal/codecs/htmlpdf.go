package codecs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"transmute/internal/converter"
	"transmute/internal/deps"
	"transmute/internal/fileutil"
	"transmute/internal/formats"
	"transmute/internal/logging"
	"transmute/internal/services"
)

// chromePrinter prints HTML documents to PDF with headless Chrome.
type chromePrinter struct {
	binary string
	logger *slog.Logger
}

func newChromePrinter(configured string, logger *slog.Logger) (*chromePrinter, error) {
	binary, err := deps.ResolveChromePath(configured)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "codecs", "load htmlpdf", "chrome unavailable", err)
	}
	return &chromePrinter{binary: binary, logger: logger}, nil
}

// convert loads sourcePath in a fresh headless browser and prints it.
//
// Options:
//   - timeout_seconds: limit for the whole browser session (default 60)
//   - landscape: print in landscape orientation
//   - background: print background graphics (default true)
func (c *chromePrinter) convert(ctx context.Context, pair formats.Pair, sourcePath, targetPath string, opts converter.Options) error {
	absolute, err := filepath.Abs(sourcePath)
	if err != nil {
		return fmt.Errorf("resolve source path: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(opts.Int("timeout_seconds", 60))*time.Second)
	defer cancel()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(c.binary),
		chromedp.DisableGPU,
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	var pdf []byte
	err = chromedp.Run(taskCtx,
		chromedp.Navigate("file://"+filepath.ToSlash(absolute)),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(opts.Bool("background", true)).
				WithLandscape(opts.Bool("landscape", false)).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "codecs", "print pdf", pair.String(), err)
	}

	c.logger.Debug("printed html to pdf",
		logging.String("source", filepath.Base(sourcePath)),
		logging.Int("bytes", len(pdf)),
	)
	return fileutil.WriteFileAtomic(targetPath, func(w io.Writer) error {
		_, err := w.Write(pdf)
		return err
	})
}
