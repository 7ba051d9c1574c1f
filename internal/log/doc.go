// Package log builds the slog loggers used by onionwatch.
//
// Every logger wraps its handler in a SecureHandler, which masks the
// VirusTotal key, SMTP password, Slack webhook URL, per-site cookies and
// similar credentials before a record is written. Values are matched by
// attribute key and by pattern, so a webhook URL logged under a neutral key
// such as "url" is still masked.
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
package log
