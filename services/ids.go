package services

import (
	"fmt"

	"github.com/google/uuid"
)

// newKey returns a push key. Version 7 UUIDs sort by creation time, so keys
// generated later compare greater.
func newKey() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return id.String(), nil
}
