package codecs

import (
	"context"
	"log/slog"

	"transmute/internal/config"
	"transmute/internal/converter"
	"transmute/internal/formats"
	"transmute/internal/logging"
	"transmute/internal/registry"
)

// Catalog entry names. They double as the values accepted by the
// codecs.disabled configuration list.
const (
	NameData       = "data"
	NameSheetRead  = "xlsx-read"
	NameSheetWrite = "xlsx-write"
	NameMarkup     = "markup"
	NamePDF        = "pdf"
	NamePDFText    = "pdf-text"
	NameEmail      = "email"
	NameHTMLPDF    = "htmlpdf"
	NameImage      = "image"
	NameAudio      = "audio"
	NameVideo      = "video"
	NameExtract    = "video-audio"
)

var (
	dataFormats   = []string{"csv", "json", "yaml", "yml", "toml"}
	dataSources   = append(append([]string{}, dataFormats...), "xml")
	dataTargets   = append(append([]string{}, dataFormats...), "xml", "txt")
	sheetTargets  = append(append([]string{}, dataFormats...), "xml", "txt", "html")
	imageSources  = []string{"png", "jpg", "jpeg", "gif", "bmp", "tif", "tiff", "webp"}
	imageTargets  = []string{"png", "jpg", "jpeg", "gif", "bmp", "tif", "tiff"}
	audioFormats  = []string{"mp3", "wav", "ogg", "flac", "aac", "m4a"}
	videoFormats  = []string{"mp4", "avi", "mov", "mkv", "webm"}
	pdfSources    = append([]string{"txt", "md", "csv"}, imageSources...)
	markupSources = []string{"md", "markdown", "html", "txt"}
	markupTargets = []string{"md", "html", "txt"}
)

// Catalog returns the shipped converter providers. Entries disabled in cfg
// are omitted; entries whose external dependencies are missing fail to load
// and are skipped by discovery.
func Catalog(cfg *config.Config, logger *slog.Logger) registry.Catalog {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	logger = logging.NewComponentLogger(logger, "codecs")

	all := []converter.Descriptor{
		{
			Name:    NameData,
			Sources: dataSources,
			Targets: dataTargets,
			Load:    staticLoad(convertData),
		},
		{
			Name:    NameSheetRead,
			Sources: []string{"xlsx"},
			Targets: sheetTargets,
			Load:    staticLoad(readWorkbook),
		},
		{
			Name:    NameSheetWrite,
			Sources: dataSources,
			Targets: []string{"xlsx"},
			Load:    staticLoad(writeWorkbook),
		},
		{
			Name:    NameMarkup,
			Sources: markupSources,
			Targets: markupTargets,
			Load:    staticLoad(newMarkup().convert),
		},
		{
			Name:    NamePDF,
			Sources: pdfSources,
			Targets: []string{"pdf"},
			Load:    staticLoad(newPDFWriter(cfg.Codecs.PDFFont).convert),
		},
		{
			Name:    NamePDFText,
			Sources: []string{"pdf"},
			Targets: []string{"txt"},
			Load:    staticLoad(extractPDFText),
		},
		{
			Name:    NameEmail,
			Sources: []string{"eml"},
			Targets: []string{"txt", "html"},
			Load:    staticLoad(newMailReader().convert),
		},
		{
			Name:    NameHTMLPDF,
			Sources: []string{"html"},
			Targets: []string{"pdf"},
			Load: func(ctx context.Context) (converter.Factory, error) {
				printer, err := newChromePrinter(cfg.Codecs.ChromeBinary, logger)
				if err != nil {
					return nil, err
				}
				return factoryFor(printer.convert), nil
			},
		},
		{
			Name:    NameImage,
			Sources: imageSources,
			Targets: imageTargets,
			Load:    staticLoad(newImageEncoder(cfg.Codecs.ImageQuality).convert),
		},
		mediaDescriptor(NameAudio, audioFormats, audioFormats, cfg, logger),
		mediaDescriptor(NameVideo, videoFormats, videoFormats, cfg, logger),
		mediaDescriptor(NameExtract, videoFormats, audioFormats, cfg, logger),
	}

	return registry.CatalogFunc(func() []converter.Descriptor {
		out := make([]converter.Descriptor, 0, len(all))
		for _, desc := range all {
			if !cfg.CodecEnabled(desc.Name) {
				logger.Debug("codec disabled by configuration", logging.String("codec", desc.Name))
				continue
			}
			out = append(out, desc)
		}
		return out
	})
}

func mediaDescriptor(name string, sources, targets []string, cfg *config.Config, logger *slog.Logger) converter.Descriptor {
	return converter.Descriptor{
		Name:    name,
		Sources: sources,
		Targets: targets,
		Load: func(ctx context.Context) (converter.Factory, error) {
			transcoder, err := newTranscoder(cfg.Codecs.FFmpegBinary, cfg.MediaTimeout(), logger)
			if err != nil {
				return nil, err
			}
			return factoryFor(transcoder.convert), nil
		},
	}
}

// pairFunc is a conversion routine that dispatches on the pair it serves.
type pairFunc func(ctx context.Context, pair formats.Pair, sourcePath, targetPath string, opts converter.Options) error

func factoryFor(fn pairFunc) converter.Factory {
	return func(pair formats.Pair) converter.Converter {
		return converter.New(pair.Source, pair.Target, func(ctx context.Context, sourcePath, targetPath string, opts converter.Options) error {
			return fn(ctx, pair, sourcePath, targetPath, opts)
		})
	}
}

func staticLoad(fn pairFunc) func(context.Context) (converter.Factory, error) {
	return func(context.Context) (converter.Factory, error) {
		return factoryFor(fn), nil
	}
}
