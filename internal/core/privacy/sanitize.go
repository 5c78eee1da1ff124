// Package privacy strips patient-identifying and raw image content from anything
// that is logged or written to the audit trail.
package privacy

import (
	"regexp"
	"strings"
	"unicode"

	"scan-prediction-service/internal/core/domain"
)

const (
	Redacted     = "[REDACTED]"
	RedactedBlob = "[REDACTED_BLOB]"
	RedactedPath = "[REDACTED_PATH]"
)

// SensitiveKeys are redacted wherever they appear, longest first so the
// alternation prefers the most specific name.
var SensitiveKeys = []string{
	"date_of_birth",
	"patient_name",
	"image_tensor",
	"image_bytes",
	"image_data",
	"first_name",
	"file_bytes",
	"last_name",
	"full_name",
	"raw_image",
	"address",
	"tensor",
	"email",
	"phone",
	"dob",
	"mrn",
	"ssn",
}

var (
	keyAlternation = `\b(?:` + strings.Join(SensitiveKeys, "|") + `)\b`

	// Unquoted values run to the next delimiter so multi-word names are covered.
	keyValuePattern = regexp.MustCompile(`(?i)["']?` + keyAlternation + `["']?\s*[:=]\s*(?:"[^"]*"|'[^']*'|[^,;}\]\r\n]+)`)
	bareKeyPattern  = regexp.MustCompile(`(?i)` + keyAlternation)
	blobPattern     = regexp.MustCompile(`(?:\\x[0-9a-fA-F]{2}){4,}|[A-Za-z0-9+/_-]{64,}={0,2}`)
	pathPattern     = regexp.MustCompile(`(?:[A-Za-z]:\\|~?/)[^\s"']+|[\w.-]+(?:/[\w.-]+){2,}`)
	spacePattern    = regexp.MustCompile(`\s+`)
)

// SanitizeMessage returns msg with sensitive keys and their values, binary-looking
// blobs and file paths outside the artifact namespace redacted. The result is
// truncated to the audit message column width.
func SanitizeMessage(msg string) string {
	msg = strings.Map(func(r rune) rune {
		if r == unicode.ReplacementChar || (!unicode.IsPrint(r) && !unicode.IsSpace(r)) {
			return -1
		}
		return r
	}, msg)

	msg = RedactKeys(msg)
	msg = blobPattern.ReplaceAllString(msg, RedactedBlob)
	msg = pathPattern.ReplaceAllStringFunc(msg, func(p string) string {
		if strings.HasPrefix(strings.TrimPrefix(p, "./"), domain.ArtifactNamespace) {
			return p
		}
		return RedactedPath
	})
	msg = strings.TrimSpace(spacePattern.ReplaceAllString(msg, " "))

	return truncate(msg, domain.MaxAuditMessageLength)
}

// RedactKeys removes sensitive key/value pairs and any remaining sensitive key names.
func RedactKeys(s string) string {
	s = keyValuePattern.ReplaceAllString(s, Redacted)
	return bareKeyPattern.ReplaceAllString(s, Redacted)
}

// SanitizeEvent sanitizes the message of an audit event in place.
func SanitizeEvent(ev *domain.AuditEvent) {
	if ev == nil || ev.Message == nil {
		return
	}
	msg := SanitizeMessage(*ev.Message)
	if msg == "" {
		ev.Message = nil
		return
	}
	ev.Message = &msg
}

// SanitizeFields returns a copy of fields with sensitive keys and raw byte values redacted.
func SanitizeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = sanitizeValue(k, v)
	}
	return out
}

func sanitizeValue(key string, v any) any {
	if IsSensitiveKey(key) {
		return Redacted
	}
	switch val := v.(type) {
	case []byte:
		return RedactedBlob
	case string:
		return blobPattern.ReplaceAllString(RedactKeys(val), RedactedBlob)
	}
	return v
}

// IsSensitiveKey reports whether key names sensitive data.
func IsSensitiveKey(key string) bool {
	return bareKeyPattern.MatchString(key)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
