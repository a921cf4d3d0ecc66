// Package inference talks to the external language model that proposes coin names.
//
// The model is a black box. This package owns the prompt, the response section
// contract (see ParseResponse) and an HTTP adapter for OpenAI-compatible endpoints.
package inference

import (
	"context"

	"memecoin-signal-lab/internal/domain"
)

// Gateway returns the raw completion text for a prompt.
// Implementations must honour ctx cancellation.
type Gateway interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ImageDescriber produces an ImageAnalysis for a media URL.
// Returns (nil, nil) when the URL is not a usable image.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, imageURL string) (*domain.ImageAnalysis, error)
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f GatewayFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
