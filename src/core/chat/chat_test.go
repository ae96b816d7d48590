package chat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datachat/src/core/chat"
	"datachat/src/embedding"
	"datachat/src/llm"
)

type fakeSearcher struct {
	results []embedding.SimilarityResult
	err     error
	lastK   int
}

func (f *fakeSearcher) SearchSimilar(ctx context.Context, query string, k int) ([]embedding.SimilarityResult, error) {
	f.lastK = k
	return f.results, f.err
}

type storedTurn struct {
	user     string
	role     string
	content  string
	metadata map[string]interface{}
}

type fakeHistory struct {
	turns    []chat.Turn
	stored   []storedTurn
	err      error
	gotLimit int
}

func (f *fakeHistory) Add(ctx context.Context, userName, role, content string, metadata map[string]interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, storedTurn{user: userName, role: role, content: content, metadata: metadata})
	return nil
}

func (f *fakeHistory) GetRecent(ctx context.Context, userName string, limit int) ([]chat.Turn, error) {
	f.gotLimit = limit
	return f.turns, f.err
}

type fakeProvider struct {
	answer      string
	chunks      []string
	err         error
	lastHistory []llm.Turn
	lastDocs    []embedding.SimilarityResult
}

func (f *fakeProvider) Generate(ctx context.Context, question string, docs []embedding.SimilarityResult, history []llm.Turn) (string, error) {
	f.lastDocs = docs
	f.lastHistory = history
	return f.answer, f.err
}

func (f *fakeProvider) GenerateStream(ctx context.Context, question string, docs []embedding.SimilarityResult, history []llm.Turn, onChunk func(string) error) error {
	if f.err != nil {
		return f.err
	}
	for _, chunk := range f.chunks {
		if err := onChunk(chunk); err != nil {
			return err
		}
	}
	return nil
}

func newService(t *testing.T, searcher *fakeSearcher, provider *fakeProvider, history *fakeHistory) *chat.Service {
	t.Helper()
	svc, err := chat.NewService(searcher, llm.NewHolder(provider), history)
	require.NoError(t, err)
	return svc
}

func TestChatAnswersWithSources(t *testing.T) {
	searcher := &fakeSearcher{results: []embedding.SimilarityResult{
		{ID: "1", Text: "kettle specs", Metadata: map[string]interface{}{"category": "kitchen"}, Distance: 0.2},
		{ID: "2", Text: "mug specs", Distance: 1.7},
	}}
	provider := &fakeProvider{answer: "It is a kettle."}
	history := &fakeHistory{}
	svc := newService(t, searcher, provider, history)

	resp, err := svc.Chat(context.Background(), chat.Request{UserName: "ann", Message: "what is it?"})
	require.NoError(t, err)

	assert.Equal(t, "It is a kettle.", resp.Answer)
	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "kettle specs", resp.Sources[0].Content)
	require.NotNil(t, resp.Sources[0].RelevanceScore, "cosine-range distances get a relevance score")
	assert.InDelta(t, 0.8, *resp.Sources[0].RelevanceScore, 1e-9)
	assert.Nil(t, resp.Sources[1].RelevanceScore, "distances beyond 1 carry no relevance score")
}

func TestChatPersistsBothTurns(t *testing.T) {
	searcher := &fakeSearcher{results: []embedding.SimilarityResult{{ID: "1", Text: "doc"}}}
	provider := &fakeProvider{answer: "answer"}
	history := &fakeHistory{}
	svc := newService(t, searcher, provider, history)

	_, err := svc.Chat(context.Background(), chat.Request{UserName: "ann", Message: "q"})
	require.NoError(t, err)

	require.Len(t, history.stored, 2)
	assert.Equal(t, "user", history.stored[0].role)
	assert.Equal(t, "q", history.stored[0].content)
	assert.Equal(t, "assistant", history.stored[1].role)
	assert.Contains(t, history.stored[1].metadata, "sources")
}

func TestChatUsesHistoryWhenRequested(t *testing.T) {
	searcher := &fakeSearcher{}
	provider := &fakeProvider{answer: "a"}
	history := &fakeHistory{turns: []chat.Turn{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}}
	svc := newService(t, searcher, provider, history)

	_, err := svc.Chat(context.Background(), chat.Request{UserName: "ann", Message: "q", IncludeHistory: true})
	require.NoError(t, err)
	require.Len(t, provider.lastHistory, 2)
	assert.Equal(t, "earlier question", provider.lastHistory[0].Content)

	provider.lastHistory = nil
	_, err = svc.Chat(context.Background(), chat.Request{UserName: "ann", Message: "q"})
	require.NoError(t, err)
	assert.Empty(t, provider.lastHistory, "history is only loaded on request")
}

func TestChatDefaultsMaxResults(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := newService(t, searcher, &fakeProvider{answer: "a"}, &fakeHistory{})

	_, err := svc.Chat(context.Background(), chat.Request{UserName: "ann", Message: "q"})
	require.NoError(t, err)
	assert.Equal(t, 5, searcher.lastK)

	_, err = svc.Chat(context.Background(), chat.Request{UserName: "ann", Message: "q", MaxResults: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, searcher.lastK)
}

func TestChatEmptyResultsIsNotAnError(t *testing.T) {
	svc := newService(t, &fakeSearcher{}, &fakeProvider{answer: "no idea"}, &fakeHistory{})

	resp, err := svc.Chat(context.Background(), chat.Request{UserName: "ann", Message: "q"})
	require.NoError(t, err)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, "no idea", resp.Answer)
}

func TestChatSearchErrorPropagates(t *testing.T) {
	svc := newService(t, &fakeSearcher{err: errors.New("index down")}, &fakeProvider{}, &fakeHistory{})

	_, err := svc.Chat(context.Background(), chat.Request{UserName: "ann", Message: "q"})
	require.Error(t, err)
}

func TestChatStreamEventOrder(t *testing.T) {
	searcher := &fakeSearcher{results: []embedding.SimilarityResult{{ID: "1", Text: "doc", Distance: 0.3}}}
	provider := &fakeProvider{chunks: []string{"par", "tial"}}
	history := &fakeHistory{}
	svc := newService(t, searcher, provider, history)

	var events []chat.StreamEvent
	err := svc.ChatStream(context.Background(), chat.Request{UserName: "ann", Message: "q"}, func(e chat.StreamEvent) error {
		events = append(events, e)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, events, 4)
	assert.Equal(t, "sources", events[0].Type)
	require.Len(t, events[0].Sources, 1)
	assert.Equal(t, "content", events[1].Type)
	assert.Equal(t, "par", events[1].Content)
	assert.Equal(t, "tial", events[2].Content)
	assert.Equal(t, "done", events[3].Type)

	require.Len(t, history.stored, 2)
	assert.Equal(t, "partial", history.stored[1].content, "the full streamed answer is persisted")
}

func TestHistoryDefaultsLimit(t *testing.T) {
	history := &fakeHistory{turns: []chat.Turn{{Role: "user", Content: "q"}}}
	svc := newService(t, &fakeSearcher{}, &fakeProvider{answer: "a"}, history)

	turns, err := svc.History(context.Background(), "ann", 0)
	require.NoError(t, err)
	assert.Len(t, turns, 1)
	assert.Equal(t, 10, history.gotLimit)

	_, err = svc.History(context.Background(), "ann", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, history.gotLimit)
}

func TestSwapProviderTakesEffect(t *testing.T) {
	first := &fakeProvider{answer: "first"}
	svc := newService(t, &fakeSearcher{}, first, &fakeHistory{})

	resp, err := svc.Chat(context.Background(), chat.Request{UserName: "ann", Message: "q"})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Answer)

	svc.SwapProvider(&fakeProvider{answer: "second"})
	resp, err = svc.Chat(context.Background(), chat.Request{UserName: "ann", Message: "q"})
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Answer)
}
