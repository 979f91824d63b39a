package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level filters log output.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger writes timestamped, leveled lines to a console writer and,
// optionally, an append-only log file.
type Logger struct {
	mu           sync.Mutex
	level        Level
	output       io.Writer
	timeFormat   string
	logFile      *os.File
	warningCount int64
	errorCount   int64
}

// New creates a logger writing to out at the given level.
func New(level Level, out io.Writer) *Logger {
	if out == nil {
		out = os.Stdout
	}
	return &Logger{
		level:      level,
		output:     out,
		timeFormat: "2006-01-02 15:04:05",
	}
}

// OpenLogFile opens path for append-only writing; every line is written to
// both the console writer and the file. O_SYNC keeps the file current even
// if the process dies mid-run.
func (l *Logger) OpenLogFile(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile != nil {
		l.logFile.Close()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_SYNC, 0o600)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", path, err)
	}
	l.logFile = f
	return nil
}

// CloseLogFile closes the log file if one is open.
func (l *Logger) CloseLogFile() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile == nil {
		return nil
	}
	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// SetLevel changes the minimum level emitted.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// WarningCount reports how many warnings were logged.
func (l *Logger) WarningCount() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.warningCount
}

// ErrorCount reports how many errors were logged.
func (l *Logger) ErrorCount() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errorCount
}

func (l *Logger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }

func (l *Logger) Warning(format string, args ...any) {
	l.mu.Lock()
	l.warningCount++
	l.mu.Unlock()
	l.log(LevelWarning, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.mu.Lock()
	l.errorCount++
	l.mu.Unlock()
	l.log(LevelError, format, args...)
}

func (l *Logger) log(level Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	line := fmt.Sprintf("%s [%s] %s\n",
		time.Now().Format(l.timeFormat), level, fmt.Sprintf(format, args...))
	fmt.Fprint(l.output, line)
	if l.logFile != nil {
		fmt.Fprint(l.logFile, line)
	}
}
