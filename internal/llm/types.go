package llm

import "context"

// Client is what the conversation loop needs from a model backend.
type Client interface {
	HasCredential() bool
	ClassifyContinuation(ctx context.Context, image []byte, turnIndex int) bool
	GenerateNextMessage(ctx context.Context, image []byte, history string, turnIndex int) string
}

var _ Client = (*OpenAIClient)(nil)
