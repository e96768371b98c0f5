package sanitize

import "strings"

// shortMask replaces sensitive values of 8 characters or fewer
const shortMask = "****"

// IsSensitiveKey reports whether the key name matches one of the configured
// sensitive substrings, case-insensitively
func (s *Sanitizer) IsSensitiveKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, marker := range s.sensitiveKeys {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// MaskValue returns the display form of a single key/value pair. Sensitive
// values longer than 8 characters keep their first and last 4 characters
// with the middle replaced by asterisks; shorter non-empty values become a
// fixed 4-character mask. Non-sensitive values pass through unchanged.
func (s *Sanitizer) MaskValue(key, value string) string {
	if !s.IsSensitiveKey(key) {
		return value
	}
	return mask(value)
}

// MaskSensitiveValues applies MaskValue to every entry, returning a new map
func (s *Sanitizer) MaskSensitiveValues(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for key, value := range values {
		out[key] = s.MaskValue(key, value)
	}
	return out
}

func mask(value string) string {
	if value == "" {
		return value
	}
	if len(value) <= 8 {
		return shortMask
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}
