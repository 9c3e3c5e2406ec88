// Package publish delivers saved report documents: download naming, a
// SQLite blob store behind shareable ids, a directory sink and webhooks.
package publish

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Report is one saved document.
type Report struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	HTML      string    `json:"html,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink receives saved reports.
type Sink interface {
	Publish(ctx context.Context, r Report) error
	Close() error
}

// Router fans a report out to every sink. One failing sink does not block
// the others: failures are logged and the first one is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

func (r *Router) Publish(ctx context.Context, rep Report) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Publish(ctx, rep); err != nil {
			r.logger.Warn("publish: sink failed", "report", rep.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// FileName is the download name of a report: "<slug>-report.html".
func FileName(name string) string {
	slug := Slug(name)
	if slug == "" {
		return "report.html"
	}
	return slug + "-report.html"
}

// Slug lowercases name, folds accented letters to ASCII and joins the
// remaining ASCII alphanumeric runs with hyphens. Other characters separate.
func Slug(name string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if r < 0x80 && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}
