package uuid

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid"
)

// Alphabet used for session and instance IDs, safe in URL paths and redis channel payloads
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Generator UUID generator interface
type Generator interface {
	Generate() (string, error)
}

// NanoIDGenerator UUID implementation using NanoID
type NanoIDGenerator struct {
	Length int
}

var _ Generator = &NanoIDGenerator{}

// NewNanoIDGenerator create a new `NanoIDGenerator` instance
func NewNanoIDGenerator(length int) *NanoIDGenerator {
	if length < 1 {
		panic("length must be larger than 1")
	}
	return &NanoIDGenerator{Length: length}
}

// Generate generate UUID
func (ns *NanoIDGenerator) Generate() (string, error) {
	id, err := gonanoid.Generate(Alphabet, ns.Length)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return id, nil
}
