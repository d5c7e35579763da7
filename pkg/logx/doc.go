// Package logx is a small structured-logging wrapper over zerolog.
//
// It is used by the components that come up before the full slog-based
// logging service exists (config manager, storage). The zero value is a
// safe no-op logger.
package logx
