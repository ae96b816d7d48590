package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"datachat/src/embedding"
)

const systemPrompt = `You are a helpful assistant that answers questions based on the provided context.
Use the context documents to answer the user's question. If the context does not contain
enough information, say so instead of guessing.`

// OllamaProvider generates responses through a local Ollama server using
// the langchaingo client.
type OllamaProvider struct {
	model llms.Model
}

var _ Provider = (*OllamaProvider)(nil)

// NewOllamaProvider creates a provider bound to one reasoning model.
func NewOllamaProvider(serverURL, model string) (*OllamaProvider, error) {
	if model == "" {
		return nil, fmt.Errorf("reasoning model name is required")
	}
	client, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama llm client: %w", err)
	}
	return &OllamaProvider{model: client}, nil
}

func (p *OllamaProvider) Generate(ctx context.Context, question string, contextDocs []embedding.SimilarityResult, history []Turn) (string, error) {
	resp, err := p.model.GenerateContent(ctx, buildMessages(question, contextDocs, history))
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	return resp.Choices[0].Content, nil
}

func (p *OllamaProvider) GenerateStream(ctx context.Context, question string, contextDocs []embedding.SimilarityResult, history []Turn, onChunk func(chunk string) error) error {
	_, err := p.model.GenerateContent(ctx, buildMessages(question, contextDocs, history),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			return onChunk(string(chunk))
		}),
	)
	if err != nil {
		return fmt.Errorf("llm streaming generation failed: %w", err)
	}
	return nil
}

// buildMessages assembles the chat transcript: system prompt with the
// retrieved context, recent history turns, then the question.
func buildMessages(question string, contextDocs []embedding.SimilarityResult, history []Turn) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, formatContext(contextDocs)))

	for _, turn := range history {
		role := llms.ChatMessageTypeHuman
		if turn.Role == "assistant" {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, turn.Content))
	}

	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, question))
	return messages
}

func formatContext(contextDocs []embedding.SimilarityResult) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	if len(contextDocs) == 0 {
		return b.String()
	}
	b.WriteString("\n\nContext documents:\n")
	spent := 0
	for i, doc := range contextDocs {
		// Results arrive ordered by similarity, so truncation keeps the
		// best matches.
		spent += EstimateTokenCount(doc.Text)
		if i > 0 && spent > contextTokenBudget {
			break
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, doc.Text)
	}
	return b.String()
}
