// Package logger provides the small levelled logging interface shared by the
// synthesis pipeline. Algorithms report recoverable diagnostics through it rather
// than failing.
package logger

// LogLevel - log level type
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	// LogError does not exit
	LogError
)

var logLevelPrefix = map[LogLevel]string{
	LogDebug: "DEBUG",
	LogInfo:  "INFO",
	LogWarn:  "WARN",
	LogError: "ERROR",
}

// String returns the level prefix used in log lines
func (l LogLevel) String() string {
	return logLevelPrefix[l]
}

// ILogger - Generic logger interface
type ILogger interface {
	Printf(level LogLevel, format string, a ...interface{})
	Debugf(format string, a ...interface{})
	Infof(format string, a ...interface{})
	Warnf(format string, a ...interface{})
	Errorf(format string, a ...interface{})
}

// OrNull returns l, or a NullLogger when l is nil
func OrNull(l ILogger) ILogger {
	if l == nil {
		return &NullLogger{}
	}
	return l
}
