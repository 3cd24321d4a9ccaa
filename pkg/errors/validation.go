package errors

import (
	"unicode"
)

// MaxIDLength is the longest node or session identifier accepted by
// [ValidateID].
const MaxIDLength = 256

// ValidateID validates an identifier received from outside the process
// (URL path parameters, CLI flags).
//
// The validation rules are intentionally conservative:
//   - No empty IDs
//   - No control characters
//   - Maximum length of MaxIDLength bytes
func ValidateID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "id cannot be empty")
	}

	if len(id) > MaxIDLength {
		return New(ErrCodeInvalidInput, "id too long (max %d characters)", MaxIDLength)
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "id contains invalid control characters")
		}
	}

	return nil
}
