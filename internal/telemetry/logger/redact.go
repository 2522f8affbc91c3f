package logger

import (
	"log/slog"
	"strings"
)

// Keys whose values are credentials. Fully redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"credential",
	"bearer",
	"api_key",
	"apikey",
}

// Keys whose values identify a device or visitor. Partially masked so
// log lines stay correlatable.
var identifierKeyPatterns = []string{
	"adid",
	"idfa",
	"advertising_id",
	"visitor_id",
	"device_id",
}

const redactedValue = "***REDACTED***"

func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		v := a.Value.String()
		if v == "" {
			return a
		}
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
		if IsIdentifierKey(a.Key) {
			return slog.String(a.Key, MaskIdentifier(v))
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// MaskIdentifier keeps the first and last three characters of v.
//
//	38400000-8cf0-11bd-b23e-10b96e40000d -> 384...00d
func MaskIdentifier(v string) string {
	if len(v) <= 8 {
		return "***"
	}
	return v[:3] + "..." + v[len(v)-3:]
}

// IsSensitiveKey checks if a key name suggests a credential.
func IsSensitiveKey(key string) bool {
	return containsAny(strings.ToLower(key), sensitiveKeyPatterns)
}

// IsIdentifierKey checks if a key name suggests a device or visitor id.
func IsIdentifierKey(key string) bool {
	return containsAny(strings.ToLower(key), identifierKeyPatterns)
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
