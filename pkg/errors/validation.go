package errors

import (
	"strings"
	"unicode"
)

// maxPathLength bounds input and output paths accepted from flags, env and config.
const maxPathLength = 4096

// ValidatePath validates a local file path taken from user input.
//
// Validation rules:
//   - Path cannot be empty or whitespace
//   - Maximum length of 4096 bytes
//   - No null bytes or control characters
//
// Absolute and relative paths are both accepted.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}

// ValidateRedisURL checks that a cache URL uses a redis scheme.
func ValidateRedisURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidConfig, "redis URL cannot be empty")
	}
	if !strings.HasPrefix(rawURL, "redis://") && !strings.HasPrefix(rawURL, "rediss://") {
		return New(ErrCodeInvalidConfig, "redis URL must use redis:// or rediss:// scheme")
	}
	return nil
}
