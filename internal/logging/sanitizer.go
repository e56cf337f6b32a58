package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"custodia/internal/crypto"
)

const redactedValue = "[REDACTED]"

var (
	sensitiveKeyParts = []string{
		"private", "secret", "passcode", "password", "token",
		"signature", "stamp", "authorization",
	}
	fingerprintKeys = map[string]struct{}{
		"public_key": {},
		"payload_id": {},
	}
)

// SanitizingHandler redacts key material and fingerprints identifiers before
// records reach the wrapped handler.
type SanitizingHandler struct {
	next slog.Handler
}

// WrapHandler returns next wrapped in a SanitizingHandler.
func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &SanitizingHandler{next: next}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(SanitizeAttr(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SanitizingHandler{next: h.next.WithAttrs(sanitizeAttrs(attrs))}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name)}
}

// SanitizeAttr redacts or fingerprints a single attribute.
func SanitizeAttr(attr slog.Attr) slog.Attr {
	key := strings.TrimSpace(attr.Key)
	lower := strings.ToLower(key)
	if _, ok := fingerprintKeys[lower]; ok {
		return slog.String(key+"_fp", Fingerprint(valueToString(attr.Value)))
	}
	if isSensitiveKey(lower) {
		return slog.String(key, redactedValue)
	}
	if attr.Value.Kind() == slog.KindGroup {
		return slog.Attr{Key: key, Value: slog.GroupValue(sanitizeAttrs(attr.Value.Group())...)}
	}
	return attr
}

// Fingerprint returns a short stable identifier safe to log.
func Fingerprint(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return "fp_" + crypto.FingerprintHex(value)[:16]
}

func sanitizeAttrs(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, SanitizeAttr(attr))
	}
	return out
}

func isSensitiveKey(key string) bool {
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

func valueToString(v slog.Value) string {
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return fmt.Sprint(v.Any())
}
