package errors

import (
	"strings"
	"unicode"
)

// ValidateIdentifier validates a zone or template identifier.
//
// Identifiers appear in log lines, reports and HTTP routes, so the rules are
// conservative:
//   - No empty identifiers
//   - No control characters
//   - Maximum length of 128 characters
func ValidateIdentifier(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return New(ErrCodeInvalidConfig, "%s cannot be empty", kind)
	}
	if len(id) > 128 {
		return New(ErrCodeInvalidConfig, "%s too long (max 128 characters)", kind)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidConfig, "%s %q contains control characters", kind, id)
		}
	}
	return nil
}

// ValidateFilename validates an output filename for safety.
// It must be a simple basename: no separators, no traversal, no hidden files.
func ValidateFilename(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPath, "filename cannot be empty")
	}

	const maxFilenameLength = 255
	if len(name) > maxFilenameLength {
		return New(ErrCodeInvalidPath, "filename too long (max %d bytes)", maxFilenameLength)
	}

	for _, r := range name {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "filename contains invalid characters")
		}
	}

	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidPath, "filename cannot contain path separators")
	}

	if name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return New(ErrCodeInvalidPath, "filename cannot be a hidden file")
	}

	return nil
}
