package embedding

import (
	"context"
	"fmt"

	"datachat/src/infrastructure/integrations/ollama"
)

// OllamaEmbedder implements Embedder over the Ollama embeddings API.
type OllamaEmbedder struct {
	client *ollama.Client
	model  string
}

// NewOllamaEmbedder creates an embedder bound to one model. All texts
// indexed and queried through it share that model.
func NewOllamaEmbedder(client *ollama.Client, model string) (*OllamaEmbedder, error) {
	if client == nil {
		return nil, fmt.Errorf("ollama client is required")
	}
	if model == "" {
		return nil, fmt.Errorf("embedding model name is required")
	}
	return &OllamaEmbedder{client: client, model: model}, nil
}

func (e *OllamaEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return e.client.Embed(ctx, e.model, texts)
}
