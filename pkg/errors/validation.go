package errors

import (
	"strings"
	"unicode"
)

// ValidateHash checks that hash looks like an abbreviated or full object id:
// 4 to 64 hexadecimal digits.
func ValidateHash(hash string) error {
	if hash == "" {
		return New(ErrCodeInvalidHash, "hash cannot be empty")
	}
	if len(hash) < 4 || len(hash) > 64 {
		return New(ErrCodeInvalidHash, "hash must have 4 to 64 characters: %q", hash)
	}
	for _, r := range hash {
		if !unicode.Is(unicode.ASCII_Hex_Digit, r) {
			return New(ErrCodeInvalidHash, "hash contains non-hex character %q", r)
		}
	}
	return nil
}

// ValidatePath validates a repository path relative to a served root.
// It prevents path traversal and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// ValidateRange checks a half-open row range against a row count.
func ValidateRange(from, to, count int) error {
	if from < 0 || to < from || to > count {
		return New(ErrCodeInvalidInput, "row range [%d, %d) outside [0, %d)", from, to, count)
	}
	return nil
}
