package logger

import (
	"fmt"
	"log"
)

// StdOutLogger writes level-prefixed lines through the standard log package,
// dropping anything below its level
type StdOutLogger struct {
	logLevel LogLevel
}

// NewStdOutLogger creates a logger that prints messages at level and above
func NewStdOutLogger(level LogLevel) *StdOutLogger {
	return &StdOutLogger{logLevel: level}
}

func (l *StdOutLogger) Printf(level LogLevel, format string, a ...interface{}) {
	if level < l.logLevel {
		return
	}
	txt := logLevelPrefix[level] + ": " + fmt.Sprintf(format, a...)
	log.Println(txt)
}
func (l *StdOutLogger) Debugf(format string, a ...interface{}) {
	l.Printf(LogDebug, format, a...)
}
func (l *StdOutLogger) Infof(format string, a ...interface{}) {
	l.Printf(LogInfo, format, a...)
}
func (l *StdOutLogger) Warnf(format string, a ...interface{}) {
	l.Printf(LogWarn, format, a...)
}
func (l *StdOutLogger) Errorf(format string, a ...interface{}) {
	l.Printf(LogError, format, a...)
}

func (l *StdOutLogger) SetLogLevel(level LogLevel) {
	l.logLevel = level
}
func (l *StdOutLogger) GetLogLevel() LogLevel {
	return l.logLevel
}
