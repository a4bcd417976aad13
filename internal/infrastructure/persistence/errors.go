package persistence

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// isDuplicateKey reports whether the error is a unique-constraint violation.
// The string checks cover drivers that predate gorm's error translation.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
