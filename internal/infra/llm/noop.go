package llm

import (
	"context"
	"errors"
)

// ErrNoOp is returned by NoOp for every prompt, so callers use their
// deterministic fallbacks. It is meant for local runs without API keys.
var ErrNoOp = errors.New("llm disabled")

// NoOp is a Generator that never produces text.
type NoOp struct{}

// NewNoOp creates a NoOp generator.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Generate always fails with ErrNoOp.
func (NoOp) Generate(context.Context, string) (string, error) {
	return "", ErrNoOp
}

// Name implements Generator.
func (NoOp) Name() string {
	return ProviderNoOp
}
