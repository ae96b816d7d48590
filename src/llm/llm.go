package llm

import (
	"context"

	"datachat/src/embedding"
)

// Turn is one prior conversation turn handed to the provider as context.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// Provider generates answers from a question, retrieved context documents
// and recent conversation history. Prompt templating is the provider's
// concern; callers never construct prompts.
type Provider interface {
	Generate(ctx context.Context, question string, contextDocs []embedding.SimilarityResult, history []Turn) (string, error)
	// GenerateStream calls onChunk for every generated text fragment, in
	// order. A non-nil error from onChunk stops generation.
	GenerateStream(ctx context.Context, question string, contextDocs []embedding.SimilarityResult, history []Turn, onChunk func(chunk string) error) error
}
