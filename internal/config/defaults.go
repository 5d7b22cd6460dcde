package config

const (
	defaultConfigPath          = "~/.config/transmute/config.toml"
	defaultLogDir              = "~/.local/share/transmute/logs"
	defaultHistoryDB           = "~/.local/share/transmute/history.db"
	defaultWorkers             = 4
	defaultPollIntervalMS      = 100
	defaultStopTimeoutSeconds  = 5
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultFFmpegBinary        = "ffmpeg"
	defaultMediaTimeoutSeconds = 600
	defaultPDFFont             = "Helvetica"
	defaultImageQuality        = 90
	defaultNotifyTimeout       = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir(),
			LogDir:    defaultLogDir,
			HistoryDB: defaultHistoryDB,
		},
		Batch: Batch{
			Workers:            defaultWorkers,
			PollIntervalMS:     defaultPollIntervalMS,
			StopTimeoutSeconds: defaultStopTimeoutSeconds,
			Optimize:           true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Codecs: Codecs{
			FFmpegBinary:        defaultFFmpegBinary,
			MediaTimeoutSeconds: defaultMediaTimeoutSeconds,
			PDFFont:             defaultPDFFont,
			ImageQuality:        defaultImageQuality,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeout,
		},
		History: History{
			Enabled: true,
		},
	}
}
