package logbook

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog"
)

// Level represents the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logbook writes JSON diagnostics lines and can replay the most recent ones
// for the on-screen log panel.
type Logbook struct {
	path   string
	out    *fileWriter
	logger zerolog.Logger
	mu     sync.Mutex // serializes Tail reads
}

// fileWriter guards the log file so Close can run while loggers handed out
// by Logger are still writing. Writes after Close are dropped.
type fileWriter struct {
	mu   sync.Mutex
	file *os.File
}

func (w *fileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return len(p), nil
	}
	return w.file.Write(p)
}

func (w *fileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// New creates a logbook that appends to the provided path.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "logbook: ensure log dir")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "logbook: open log file")
	}
	out := &fileWriter{file: f}
	return &Logbook{
		path:   path,
		out:    out,
		logger: zerolog.New(out).With().Timestamp().Logger(),
	}, nil
}

// Discard returns a logbook that drops every entry.
func Discard() *Logbook {
	return &Logbook{logger: zerolog.New(io.Discard)}
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Close releases the file handle.
func (l *Logbook) Close() error {
	if l == nil || l.out == nil {
		return nil
	}
	return l.out.Close()
}

// Logger exposes the structured logger for callers that attach fields.
func (l *Logbook) Logger() *zerolog.Logger {
	if l == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return &l.logger
}

// Append writes a single entry to the logbook.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	var evt *zerolog.Event
	switch level {
	case LevelWarn:
		evt = l.logger.Warn()
	case LevelError:
		evt = l.logger.Error()
	default:
		evt = l.logger.Info()
	}
	evt.Msg(strings.TrimSpace(message))
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}

type entry struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Tail returns up to maxLines of the most recent log entries rendered as
// "15:04:05 LEVEL message" plus the total number of entries in the file.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil || l.path == "" || maxLines <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if text := strings.TrimSpace(scanner.Text()); text != "" {
			lines = append(lines, text)
		}
	}
	total := len(lines)
	if total == 0 {
		return nil, 0
	}
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, humanize(line))
	}
	return out, total
}

func humanize(line string) string {
	var e entry
	if err := json.Unmarshal([]byte(line), &e); err != nil {
		return line
	}
	stamp := e.Time
	if ts, err := time.Parse(time.RFC3339, e.Time); err == nil {
		stamp = ts.Local().Format("15:04:05")
	}
	msg := e.Message
	if e.Error != "" {
		msg = strings.TrimSpace(msg + ": " + e.Error)
	}
	return fmt.Sprintf("%s %-5s %s", stamp, strings.ToUpper(e.Level), msg)
}
