package utils

import "strings"

// GetContentType returns the content type based on the format
func GetContentType(format string) string {
	switch strings.ToLower(format) {
	case "json":
		return "application/json"
	case "csv":
		return "text/csv"
	case "yaml", "yml":
		return "application/x-yaml"
	case "txt":
		return "text/plain"
	default:
		// Default to a generic binary stream content type
		return "application/octet-stream"
	}
}
