package sanitize

import (
	"fmt"
	"net/url"
	"strings"

	"confd/internal/types"
)

// Default substrings marking a key as sensitive for masking purposes.
// Matching is case-insensitive.
var DefaultSensitiveKeys = []string{
	"JWT_SECRET",
	"PRIVATE_KEY",
	"API_KEY",
	"SECRET",
	"PASSWORD",
	"TOKEN",
	"CREDENTIAL",
}

// Allowed schemes for database connection URLs
var allowedDBSchemes = map[string]bool{
	"postgresql": true,
	"mysql":      true,
	"mongodb":    true,
}

// Sanitizer validates and cleans configuration values and produces
// masked views of sensitive ones.
type Sanitizer struct {
	sensitiveKeys []string
}

// New creates a Sanitizer with the default sensitive-key rules
func New() *Sanitizer {
	return NewWithSensitiveKeys(DefaultSensitiveKeys)
}

// NewWithSensitiveKeys creates a Sanitizer with a custom sensitive-key list
func NewWithSensitiveKeys(keys []string) *Sanitizer {
	normalized := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			normalized = append(normalized, strings.ToUpper(k))
		}
	}
	return &Sanitizer{sensitiveKeys: normalized}
}

// Sanitize cleans every value in the map: control characters are stripped,
// surrounding whitespace trimmed, database URLs checked against the scheme
// allow-list and plain URLs canonicalized with credentials and fragment
// removed. Returns a new map; the input is not modified.
func (s *Sanitizer) Sanitize(values map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for key, value := range values {
		cleaned := stripControlChars(value)
		cleaned = strings.TrimSpace(cleaned)

		lower := strings.ToLower(key)
		switch {
		case strings.Contains(lower, "database") || strings.Contains(lower, "db"):
			sanitized, err := sanitizeDatabaseURL(key, cleaned)
			if err != nil {
				return nil, err
			}
			cleaned = sanitized
		case strings.Contains(lower, "url"):
			sanitized, err := sanitizeURL(key, cleaned)
			if err != nil {
				return nil, err
			}
			cleaned = sanitized
		}

		out[key] = cleaned
	}
	return out, nil
}

// stripControlChars removes bytes in [0x00,0x1F] and 0x7F
func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7F {
			return -1
		}
		return r
	}, s)
}

// sanitizeDatabaseURL enforces the scheme allow-list and rejects values
// with embedded semicolons
func sanitizeDatabaseURL(key, value string) (string, error) {
	if strings.Contains(value, ";") {
		return "", &types.SanitizationError{
			Key:    key,
			Value:  value,
			Reason: "database URL must not contain semicolons",
		}
	}

	scheme, _, found := strings.Cut(value, "://")
	if !found || !allowedDBSchemes[strings.ToLower(scheme)] {
		return "", &types.SanitizationError{
			Key:    key,
			Value:  value,
			Reason: fmt.Sprintf("database URL scheme must be one of postgresql, mysql, mongodb, got %q", scheme),
		}
	}

	return value, nil
}

// sanitizeURL parses the value as a URL, strips fragment and user info and
// returns the canonical re-serialization
func sanitizeURL(key, value string) (string, error) {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", &types.SanitizationError{
			Key:    key,
			Value:  value,
			Reason: "value is not a valid URL",
		}
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	return u.String(), nil
}
