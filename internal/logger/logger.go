// Package logger writes "timestamp - LEVEL - message" lines to a daily
// log file and mails CRITICAL records to an operator address.
package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LevelCritical sits above slog.LevelError. Records at this level are
// forwarded to the mail notifier when one is configured.
const LevelCritical = slog.LevelError + 4

type Options struct {
	// Dir is the log directory. Empty means log to stdout.
	Dir string
	// Mailer receives CRITICAL records. Nil disables mail alerts.
	Mailer MailSender
}

func New(opts Options) (*slog.Logger, error) {
	var w io.Writer = os.Stdout
	if opts.Dir != "" {
		dw, err := newDailyWriter(opts.Dir)
		if err != nil {
			return nil, err
		}
		w = dw
	}

	var h slog.Handler = newLineHandler(w, slog.LevelInfo)
	if opts.Mailer != nil {
		h = &mailOnCritical{inner: h, mailer: opts.Mailer}
	}
	return slog.New(h), nil
}

// Critical logs at LevelCritical, which slog has no shorthand for.
func Critical(l *slog.Logger, msg string, args ...any) {
	l.Log(context.Background(), LevelCritical, msg, args...)
}

// dailyWriter appends to <dir>/chatgpt_bot_YYYY-MM-DD.log and switches
// files when the date rolls over.
type dailyWriter struct {
	mu  sync.Mutex
	dir string
	day string
	f   *os.File
}

func newDailyWriter(dir string) (*dailyWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}
	return &dailyWriter{dir: dir}, nil
}

func (w *dailyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := time.Now().Format("2006-01-02")
	if w.f == nil || day != w.day {
		if w.f != nil {
			w.f.Close()
		}
		name := filepath.Join(w.dir, "chatgpt_bot_"+day+".log")
		f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return 0, err
		}
		w.f = f
		w.day = day
	}
	return w.f.Write(p)
}

// lineHandler is a minimal slog.Handler producing
// "2006-01-02 15:04:05 - LEVEL - message key=value" lines.
type lineHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Level
	attrs []slog.Attr
}

func newLineHandler(w io.Writer, level slog.Level) *lineHandler {
	return &lineHandler{mu: &sync.Mutex{}, w: w, level: level}
}

func (h *lineHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level
}

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	var b bytes.Buffer
	b.WriteString(r.Time.Format("2006-01-02 15:04:05"))
	b.WriteString(" - ")
	b.WriteString(levelName(r.Level))
	b.WriteString(" - ")
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(b.Bytes())
	return err
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &lineHandler{mu: h.mu, w: h.w, level: h.level, attrs: merged}
}

// Groups are flattened; the line format has no nesting.
func (h *lineHandler) WithGroup(string) slog.Handler { return h }

func levelName(l slog.Level) string {
	if l >= LevelCritical {
		return "CRITICAL"
	}
	return l.String()
}
