// Package uuid provides request id generation.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates time-ordered UUID v7 strings, falling back to v4 when the
// v7 source fails.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUID7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err == nil {
		return id.String(), nil
	}
	v4, errV4 := uuid.NewRandom()
	if errV4 != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return v4.String(), nil
}
