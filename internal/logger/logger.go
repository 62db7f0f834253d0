// Package logger provides structured loggers for different components of the
// MME. It wraps logrus and exposes category-specific log entries such as
// MainLog, RegistryLog, SouthboundLog, etc. The logging level and caller
// reporting can be adjusted at runtime via InitLog.
package logger

import (
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

const (
	moduleNameMME = "MME"
)

var (
	initOnce sync.Once

	// MainLog is the primary logger for high-level lifecycle events
	// (startup, shutdown, major state transitions).
	MainLog *log.Entry

	// CfgLog is used for configuration loading, validation, and printing.
	CfgLog *log.Entry

	// RegistryLog is for subscriber registry activity (attach, detach,
	// handover, paging, identity procedures).
	RegistryLog *log.Entry

	// SouthboundLog is for the S1AP event receiver (decoding, enqueueing).
	SouthboundLog *log.Entry

	// NotifierLog is for registration notification delivery to downstream
	// consumers.
	NotifierLog *log.Entry

	// DispatchLog is for the single-writer dispatch loop and timeout sweeps.
	DispatchLog *log.Entry

	// HistoryLog is for the in-memory notification history buffer.
	HistoryLog *log.Entry

	// SbiLog is for the read-only status API and outbound eNB commands.
	SbiLog *log.Entry
)

// InitLog configures the global logrus settings and initializes all category
// loggers. It is safe to call multiple times; the first call wins.
// Subsequent calls will update the log level and reportCaller flag.
func InitLog(levelString string, reportCaller bool) error {
	var initErr error

	initOnce.Do(func() {
		// Global formatter settings
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})

		// Initialize category loggers with default level (info).
		log.SetLevel(log.InfoLevel)
		log.SetReportCaller(reportCaller)

		MainLog = log.WithFields(log.Fields{
			"module":   moduleNameMME,
			"category": "MAIN",
		})
		CfgLog = log.WithFields(log.Fields{
			"module":   moduleNameMME,
			"category": "CFG",
		})
		RegistryLog = log.WithFields(log.Fields{
			"module":   moduleNameMME,
			"category": "REGISTRY",
		})
		SouthboundLog = log.WithFields(log.Fields{
			"module":   moduleNameMME,
			"category": "SOUTHBOUND",
		})
		NotifierLog = log.WithFields(log.Fields{
			"module":   moduleNameMME,
			"category": "NOTIFIER",
		})
		DispatchLog = log.WithFields(log.Fields{
			"module":   moduleNameMME,
			"category": "DISPATCH",
		})
		HistoryLog = log.WithFields(log.Fields{
			"module":   moduleNameMME,
			"category": "HISTORY",
		})
		SbiLog = log.WithFields(log.Fields{
			"module":   moduleNameMME,
			"category": "SBI",
		})
	})

	// Parse and apply the requested log level on every call.
	parsedLevel, parseErr := parseLogLevel(levelString)
	if parseErr != nil {
		// Fallback to info if parsing fails, but still return an error
		log.SetLevel(log.InfoLevel)
		if CfgLog != nil {
			CfgLog.Warnf("invalid log level %q, falling back to info: %v", levelString, parseErr)
		}
		initErr = parseErr
	} else {
		log.SetLevel(parsedLevel)
	}

	// Update report caller according to the latest configuration.
	log.SetReportCaller(reportCaller)

	return initErr
}

// parseLogLevel converts a string log level (case-insensitive) into a logrus.Level.
func parseLogLevel(levelString string) (log.Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(levelString))

	switch normalized {
	case "trace":
		return log.TraceLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	case "fatal":
		return log.FatalLevel, nil
	case "panic":
		return log.PanicLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("unknown log level: %s", levelString)
	}
}
