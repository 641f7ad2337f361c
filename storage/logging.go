package storage

import "github.com/sirupsen/logrus"

// componentLogger tags log entries with the emitting component. A nil
// logger falls back to the process-wide standard logger.
func componentLogger(logger *logrus.Logger, component string) *logrus.Entry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logger.WithField("component", component)
}

// ParseLogLevel maps a config log level onto logrus, defaulting to info.
func ParseLogLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}
