// Package repository holds the gorm-backed data access for the durable store.
package repository

import (
	"errors"

	"isupipe/internal/models"

	"gorm.io/gorm"
)

// mapNotFound turns gorm's missing-row error into the application's NOT_FOUND.
func mapNotFound(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return err
}

// likeContains builds a LIKE pattern matching s anywhere, escaping wildcards with '!'.
func likeContains(s string) string {
	escaped := make([]rune, 0, len(s)+2)
	escaped = append(escaped, '%')
	for _, r := range s {
		switch r {
		case '!', '%', '_':
			escaped = append(escaped, '!')
		}
		escaped = append(escaped, r)
	}
	return string(append(escaped, '%'))
}
