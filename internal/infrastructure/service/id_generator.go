// Package service contains small infrastructure adapters behind
// application-layer interfaces.
package service

import (
	"github.com/google/uuid"
)

// UUIDGenerator issues random UUIDv4 identifiers. It backs event IDs and
// user-achievement row IDs.
type UUIDGenerator struct{}

// NewUUIDGenerator creates a new UUID generator.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NewID returns a new UUIDv4 string.
func (g *UUIDGenerator) NewID() string {
	return uuid.NewString()
}
