// Package logger provides the structured logging interface used across albumzip.
//
// It wraps zerolog with a small API:
//   - levelled logging (Debug, Info, Warn, Error)
//   - fields attached through WithField / WithFields / WithError
//   - coloured console output, or JSON with logging.format: json
//   - optional tee into a log file
//   - a process-wide logger through Initialize and GetLogger
//
// Usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("part_number", item.Identifier)
//	log.Info("Navigating to album")
//
// Tests use NewNopLogger to silence output or NewTestLogger to assert on what
// was logged.
package logger
