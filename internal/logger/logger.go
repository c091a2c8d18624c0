// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger owns the rotating current.log handle described in §4.18:
// line-oriented, mutex-protected writes, with rename-and-reopen rotation
// on reinit (e.g. `/clear`).
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

func getLevelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m" // red
	case level >= slog.LevelWarn:
		return "\033[33m" // yellow
	case level >= slog.LevelInfo:
		return "\033[36m" // cyan
	default:
		return "\033[90m" // gray
	}
}

func isTerminal(file *os.File) bool {
	if fileInfo, err := file.Stat(); err == nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// coloredTextHandler wraps a slog.TextHandler and colors the level token
// when writing to a terminal, matching hector's simple/verbose format
// distinction.
type coloredTextHandler struct {
	handler slog.Handler
	writer  io.Writer
	simple  bool
}

func (h *coloredTextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *coloredTextHandler) Handle(ctx context.Context, record slog.Record) error {
	colorCode := getLevelColor(record.Level)
	resetCode := "\033[0m"

	var buf strings.Builder
	if !h.simple && !record.Time.IsZero() {
		buf.WriteString(record.Time.Format("2006/01/02 15:04:05 "))
	}
	levelStr := record.Level.String()
	if levelStr == "WARNING" {
		levelStr = "WARN"
	}
	buf.WriteString(colorCode)
	buf.WriteString(strings.ToUpper(levelStr))
	buf.WriteString(resetCode)
	buf.WriteString(" ")
	buf.WriteString(record.Message)

	record.Attrs(func(a slog.Attr) bool {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
		return true
	})
	buf.WriteString("\n")

	_, err := h.writer.Write([]byte(buf.String()))
	return err
}

func (h *coloredTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &coloredTextHandler{handler: h.handler.WithAttrs(attrs), writer: h.writer, simple: h.simple}
}

func (h *coloredTextHandler) WithGroup(name string) slog.Handler {
	return &coloredTextHandler{handler: h.handler.WithGroup(name), writer: h.writer, simple: h.simple}
}

// Logger wraps an *slog.Logger bound to a rotating file handle.
type Logger struct {
	mu      sync.Mutex
	dir     string
	file    *os.File
	slogger *slog.Logger
	format  string
	level   slog.Level
}

// New ensures <workDir>/.ikigai/logs/ exists and opens current.log for
// append (§4.18).
func New(workDir string, level slog.Level, format string) (*Logger, error) {
	dir := filepath.Join(workDir, ".ikigai", "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	l := &Logger{dir: dir, format: format, level: level}
	if err := l.openCurrent(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Logger) openCurrent() error {
	path := filepath.Join(l.dir, "current.log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	l.file = file

	simple := l.format == "simple" || l.format == ""
	base := slog.NewTextHandler(file, &slog.HandlerOptions{Level: l.level})
	var handler slog.Handler = base
	if isTerminal(file) {
		handler = &coloredTextHandler{handler: base, writer: file, simple: simple}
	}
	l.slogger = slog.New(handler)
	slog.SetDefault(l.slogger)
	return nil
}

// Reinit renames current.log to current.<timestamp>.log and opens a fresh
// file (§4.18, triggered by `/clear`). now is injected so rotation is
// deterministic under test.
func (l *Logger) Reinit(now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		_ = l.file.Close()
	}

	currentPath := filepath.Join(l.dir, "current.log")
	rotatedPath := filepath.Join(l.dir, "current."+now.Format("20060102T150405")+".log")
	if _, err := os.Stat(currentPath); err == nil {
		if err := os.Rename(currentPath, rotatedPath); err != nil {
			return err
		}
	}
	return l.openCurrent()
}

// Slog returns the wrapped *slog.Logger. Rotation is serialized by mu so a
// Reinit never races a concurrent Slog() write.
func (l *Logger) Slog() *slog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slogger
}

// Close closes the current log file handle.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
