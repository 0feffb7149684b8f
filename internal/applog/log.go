// Package applog sets up the per-invocation zerolog logger.
//
// Every invocation truncates the log file, so it only ever describes the
// last command run. The same file is handed to spawned subprocesses as their
// stderr, which is what ProcessFailedError points the user at.
package applog

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Log is the invocation logger plus the file backing it.
type Log struct {
	zerolog.Logger
	File *os.File
}

// Open truncates path and returns a logger writing JSON lines to it. Records
// at warn level and above are mirrored to console in human-readable form.
func Open(path, level string, console io.Writer) (*Log, error) {
	return open(path, level, console, os.O_TRUNC)
}

// Append is Open without truncation. Shell completion uses it so that a
// tab press never erases the log of the previous command.
func Append(path, level string, console io.Writer) (*Log, error) {
	return open(path, level, console, 0)
}

func open(path, level string, console io.Writer, flag int) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|flag, 0o600)
	if err != nil {
		return nil, err
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	writers := []io.Writer{f}
	if console != nil {
		writers = append(writers, minLevelWriter{
			w:   zerolog.ConsoleWriter{Out: console, NoColor: true, PartsExclude: []string{zerolog.TimestampFieldName}},
			min: zerolog.WarnLevel,
		})
	}
	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().
		Timestamp().
		Int("invocation_pid", os.Getpid()).
		Logger()
	return &Log{Logger: logger, File: f}, nil
}

// Nop returns a logger that discards everything and has no backing file.
func Nop() *Log {
	return &Log{Logger: zerolog.Nop()}
}

// Path is the backing file path, or "" for a Nop log.
func (l *Log) Path() string {
	if l == nil || l.File == nil {
		return ""
	}
	return l.File.Name()
}

// Sink is where subprocess stderr should go.
func (l *Log) Sink() io.Writer {
	if l == nil || l.File == nil {
		return io.Discard
	}
	return l.File
}

func (l *Log) Close() error {
	if l == nil || l.File == nil {
		return nil
	}
	return l.File.Close()
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

// minLevelWriter drops records below min.
type minLevelWriter struct {
	w   io.Writer
	min zerolog.Level
}

func (m minLevelWriter) Write(p []byte) (int, error) {
	return m.w.Write(p)
}

func (m minLevelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l < m.min {
		return len(p), nil
	}
	return m.w.Write(p)
}
