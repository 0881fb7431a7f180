package logger

import (
	"fmt"
	"strings"
	"sync"
)

// MemoryLogger keeps formatted lines in memory. Used by tests to check which
// diagnostics were emitted.
type MemoryLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *MemoryLogger) Printf(level LogLevel, format string, a ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, logLevelPrefix[level]+": "+fmt.Sprintf(format, a...))
}
func (l *MemoryLogger) Debugf(format string, a ...interface{}) {
	l.Printf(LogDebug, format, a...)
}
func (l *MemoryLogger) Infof(format string, a ...interface{}) {
	l.Printf(LogInfo, format, a...)
}
func (l *MemoryLogger) Warnf(format string, a ...interface{}) {
	l.Printf(LogWarn, format, a...)
}
func (l *MemoryLogger) Errorf(format string, a ...interface{}) {
	l.Printf(LogError, format, a...)
}

// Lines returns a copy of everything logged so far
func (l *MemoryLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// Contains reports whether any logged line contains substr
func (l *MemoryLogger) Contains(substr string) bool {
	for _, line := range l.Lines() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}
