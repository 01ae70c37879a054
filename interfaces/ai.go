package interfaces

import (
	"context"

	"github.com/cadrius/mailpipe/dto"
)

// AIService is an OpenAI compatible chat completion endpoint.
type AIService interface {
	Complete(ctx context.Context, request dto.CompletionRequest) (string, error)
}
