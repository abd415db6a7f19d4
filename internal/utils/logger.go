package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

// Logger writes timestamped lines to a log file. A nil *Logger is valid and
// prints to stdout.
type Logger struct {
	mu        sync.Mutex
	writeFile *os.File
	echo      io.Writer
}

// defaultLogPath returns the log path next to the running executable.
func defaultLogPath() string {
	exe, err := os.Executable()
	if err == nil {
		if resolved, rerr := filepath.EvalSymlinks(exe); rerr == nil && resolved != "" {
			exe = resolved
		}
		return NewPaths(filepath.Dir(exe)).LogFile()
	}
	return NewPaths(filepath.Join(os.TempDir(), "qsec")).LogFile()
}

// NewLogger opens logFile for appending. If the file cannot be opened, lines
// go to stdout instead.
func NewLogger(logFile string) *Logger {
	logger := &Logger{}
	if logFile == "" {
		logFile = defaultLogPath()
	}
	_ = os.MkdirAll(filepath.Dir(logFile), 0o755)

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: Error opening log file (%s): %v\n", time.Now().Format(timestampLayout), logFile, err)
		return logger
	}
	logger.writeFile = f
	return logger
}

// SetEcho mirrors every line to w in addition to the file. Pass nil to stop.
func (l *Logger) SetEcho(w io.Writer) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.echo = w
	l.mu.Unlock()
}

// Write appends a timestamped message to the log (or stdout when no file).
func (l *Logger) Write(message string) {
	logMessage := fmt.Sprintf("%s: %s\n", time.Now().Format(timestampLayout), message)
	if l == nil {
		fmt.Print(logMessage)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.echo != nil {
		_, _ = io.WriteString(l.echo, logMessage)
	}
	if l.writeFile != nil {
		_, _ = l.writeFile.WriteString(logMessage)
		_ = l.writeFile.Sync()
		return
	}
	if l.echo == nil {
		fmt.Print(logMessage)
	}
}

// Writef formats and writes a message.
func (l *Logger) Writef(format string, args ...any) {
	l.Write(fmt.Sprintf(format, args...))
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writeFile != nil {
		l.writeFile.Close()
		l.writeFile = nil
	}
}

// File returns the underlying write file handle when available.
func (l *Logger) File() *os.File {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeFile
}
