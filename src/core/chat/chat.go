package chat

import (
	"context"
	"fmt"
	"time"

	"datachat/src/embedding"
	"datachat/src/llm"
	"datachat/src/log"
)

const (
	defaultMaxResults  = 5
	defaultHistorySize = 10
)

// Searcher answers top-k similarity queries over the vector index.
type Searcher interface {
	SearchSimilar(ctx context.Context, query string, k int) ([]embedding.SimilarityResult, error)
}

// Turn is one stored conversation turn.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryStore is the append-only conversation store keyed by user name.
type HistoryStore interface {
	Add(ctx context.Context, userName, role, content string, metadata map[string]interface{}) error
	GetRecent(ctx context.Context, userName string, limit int) ([]Turn, error)
}

// Request is one chat question from a user.
type Request struct {
	UserName       string `json:"user_name"`
	Message        string `json:"message"`
	MaxResults     int    `json:"max_results,omitempty"`
	IncludeHistory bool   `json:"include_history"`
}

// Source describes one context document used to answer a question.
// RelevanceScore is 1 - distance, present only for cosine-style
// distances in [0,1]; it is a display convenience, nothing more.
type Source struct {
	Content        string                 `json:"content"`
	Metadata       map[string]interface{} `json:"metadata"`
	RelevanceScore *float64               `json:"relevance_score,omitempty"`
}

// Response is the answer to one chat request.
type Response struct {
	UserName  string    `json:"user_name"`
	Answer    string    `json:"response"`
	Sources   []Source  `json:"sources"`
	CreatedAt time.Time `json:"timestamp"`
}

// StreamEvent is one chunk of a streaming chat response.
type StreamEvent struct {
	Type    string   `json:"type"` // "sources", "content" or "done"
	Content string   `json:"content,omitempty"`
	Sources []Source `json:"sources,omitempty"`
}

// Service orchestrates the RAG chat flow: retrieve similar documents,
// generate an answer with the active LLM provider and persist both turns.
type Service struct {
	searcher Searcher
	provider *llm.Holder
	history  HistoryStore
}

// NewService wires the chat service. The provider holder may be swapped
// at runtime to change LLM backends without restarting.
func NewService(searcher Searcher, provider *llm.Holder, history HistoryStore) (*Service, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("llm provider holder is required")
	}
	if history == nil {
		return nil, fmt.Errorf("history store is required")
	}
	return &Service{
		searcher: searcher,
		provider: provider,
		history:  history,
	}, nil
}

// SwapProvider installs a new LLM provider for subsequent requests.
func (s *Service) SwapProvider(provider llm.Provider) {
	s.provider.Swap(provider)
}

// History returns a user's most recent turns, oldest first.
func (s *Service) History(ctx context.Context, userName string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = defaultHistorySize
	}
	turns, err := s.history.GetRecent(ctx, userName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	return turns, nil
}

// Chat answers one request. A search error propagates; it is never
// conflated with an empty result list.
func (s *Service) Chat(ctx context.Context, req Request) (*Response, error) {
	turns, docs, err := s.retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	answer, err := s.provider.Get().Generate(ctx, req.Message, docs, toLLMTurns(turns))
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}

	if err := s.persistTurns(ctx, req, answer, docs); err != nil {
		return nil, err
	}

	return &Response{
		UserName:  req.UserName,
		Answer:    answer,
		Sources:   toSources(docs),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// ChatStream answers one request, emitting the sources first, then
// content chunks as they are generated, then a final done event.
// History is persisted once streaming completes.
func (s *Service) ChatStream(ctx context.Context, req Request, emit func(StreamEvent) error) error {
	turns, docs, err := s.retrieve(ctx, req)
	if err != nil {
		return err
	}

	if err := emit(StreamEvent{Type: "sources", Sources: toSources(docs)}); err != nil {
		return err
	}

	var full string
	err = s.provider.Get().GenerateStream(ctx, req.Message, docs, toLLMTurns(turns), func(chunk string) error {
		full += chunk
		return emit(StreamEvent{Type: "content", Content: chunk})
	})
	if err != nil {
		return fmt.Errorf("failed to generate streaming response: %w", err)
	}

	if err := s.persistTurns(ctx, req, full, docs); err != nil {
		return err
	}

	return emit(StreamEvent{Type: "done"})
}

func (s *Service) retrieve(ctx context.Context, req Request) ([]Turn, []embedding.SimilarityResult, error) {
	var turns []Turn
	if req.IncludeHistory {
		recent, err := s.history.GetRecent(ctx, req.UserName, defaultHistorySize)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load chat history: %w", err)
		}
		turns = recent
	}

	k := req.MaxResults
	if k <= 0 {
		k = defaultMaxResults
	}
	docs, err := s.searcher.SearchSimilar(ctx, req.Message, k)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to search similar documents: %w", err)
	}
	return turns, docs, nil
}

func (s *Service) persistTurns(ctx context.Context, req Request, answer string, docs []embedding.SimilarityResult) error {
	if err := s.history.Add(ctx, req.UserName, "user", req.Message, nil); err != nil {
		return fmt.Errorf("failed to save user message: %w", err)
	}

	sourceMeta := make([]interface{}, len(docs))
	for i, doc := range docs {
		sourceMeta[i] = doc.Metadata
	}
	err := s.history.Add(ctx, req.UserName, "assistant", answer, map[string]interface{}{"sources": sourceMeta})
	if err != nil {
		return fmt.Errorf("failed to save assistant message: %w", err)
	}

	log.Debug("persisted chat turns", "user", req.UserName, "sources", len(docs))
	return nil
}

func toLLMTurns(turns []Turn) []llm.Turn {
	out := make([]llm.Turn, len(turns))
	for i, t := range turns {
		out[i] = llm.Turn{Role: t.Role, Content: t.Content}
	}
	return out
}

func toSources(docs []embedding.SimilarityResult) []Source {
	sources := make([]Source, len(docs))
	for i, doc := range docs {
		src := Source{
			Content:  doc.Text,
			Metadata: doc.Metadata,
		}
		if doc.Distance >= 0 && doc.Distance <= 1 {
			score := 1 - doc.Distance
			src.RelevanceScore = &score
		}
		sources[i] = src
	}
	return sources
}
