// Package runlog writes the append-only audit log of analyzed files.
package runlog

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the run log name inside the logs directory.
const FileName = "analyzer.log"

// TimeLayout prefixes every entry.
const TimeLayout = "2006-01-02 15:04:05"

// Log appends one timestamped line per entry. Entries are never read back.
type Log struct {
	mu  sync.Mutex
	w   io.WriteCloser
	now func() time.Time
}

// Open appends to <dir>/analyzer.log, rotating by size.
func Open(dir string) *Log {
	return New(&lumberjack.Logger{
		Filename:   filepath.Join(dir, FileName),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     90, // days
	})
}

// New wraps an arbitrary writer.
func New(w io.WriteCloser) *Log {
	return &Log{w: w, now: time.Now}
}

// Entry appends "<timestamp> - <message>".
func (l *Log) Entry(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	msg = strings.ReplaceAll(msg, "\n", " ")

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := fmt.Fprintf(l.w, "%s - %s\n", l.now().Format(TimeLayout), msg)
	return err
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	return l.w.Close()
}
