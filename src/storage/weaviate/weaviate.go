package weaviate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"datachat/src/embedding"
)

// Index adapts a Weaviate class to the embedding.VectorIndex contract.
// Documents are stored with two fixed properties: the embeddable content
// and the sanitized metadata serialized as a JSON string, so arbitrary
// per-source metadata never requires schema changes.
type Index struct {
	client    *weaviate.Client
	className string
}

var _ embedding.VectorIndex = (*Index)(nil)

// NewIndex creates an index adapter over the given class name.
func NewIndex(client *weaviate.Client, className string) *Index {
	return &Index{
		client:    client,
		className: className,
	}
}

// EnsureReady creates the class if it does not exist yet.
func (w *Index) EnsureReady(ctx context.Context) error {
	exists, err := w.classExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check if class exists: %v", err)
	}
	if exists {
		return nil
	}

	class := &models.Class{
		Class: w.className,
		Properties: []*models.Property{
			{
				Name:        "content",
				DataType:    []string{"text"},
				Description: "The embeddable text of the document",
			},
			{
				Name:        "metadata",
				DataType:    []string{"text"},
				Description: "Document metadata serialized as JSON",
			},
		},
		Vectorizer: "none",
	}

	if err := w.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create Weaviate class: %v", err)
	}
	return nil
}

// classExists checks if the class exists in the schema
func (w *Index) classExists(ctx context.Context) (bool, error) {
	schema, err := w.client.Schema().Getter().Do(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get schema: %v", err)
	}

	for _, class := range schema.Classes {
		if class.Class == w.className {
			return true, nil
		}
	}

	return false, nil
}

// Count returns the number of objects in the class.
func (w *Index) Count(ctx context.Context) (int, error) {
	meta := graphql.Field{
		Name:   "meta",
		Fields: []graphql.Field{{Name: "count"}},
	}
	result, err := w.client.GraphQL().Aggregate().
		WithClassName(w.className).
		WithFields(meta).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate object count: %v", err)
	}

	data, ok := result.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("unexpected aggregate response shape")
	}
	entries, ok := data[w.className].([]interface{})
	if !ok || len(entries) == 0 {
		return 0, nil
	}
	entry, ok := entries[0].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("unexpected aggregate entry shape")
	}
	metaMap, ok := entry["meta"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("aggregate response missing meta")
	}
	count, ok := metaMap["count"].(float64)
	if !ok {
		return 0, fmt.Errorf("aggregate response missing count")
	}
	return int(count), nil
}

// AddObjects upserts a batch of objects in a single operation, keeping
// the caller-generated ids.
func (w *Index) AddObjects(ctx context.Context, objects []embedding.IndexObject) error {
	objs := make([]*models.Object, len(objects))
	for i, obj := range objects {
		encoded, err := json.Marshal(obj.Metadata)
		if err != nil {
			return fmt.Errorf("failed to serialize metadata for %s: %v", obj.ID, err)
		}
		objs[i] = &models.Object{
			ID:    strfmt.UUID(obj.ID),
			Class: w.className,
			Properties: map[string]interface{}{
				"content":  obj.Text,
				"metadata": string(encoded),
			},
			Vector: obj.Vector,
		}
	}

	batcher := w.client.Batch().ObjectsBatcher()
	resp, err := batcher.WithObjects(objs...).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to batch add vectors: %v", err)
	}
	if len(resp) == 0 {
		return fmt.Errorf("batch operation returned no results")
	}

	return nil
}

// QueryNearest performs vector similarity search, returning up to limit
// hits ordered by ascending distance.
func (w *Index) QueryNearest(ctx context.Context, vector []float32, limit int) ([]embedding.SimilarityResult, error) {
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "metadata"},
		{Name: "_additional { id distance }"},
	}

	nearVector := w.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	result, err := w.client.GraphQL().Get().
		WithClassName(w.className).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %v", err)
	}

	var hits []embedding.SimilarityResult
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return hits, nil
	}
	objects, ok := data[w.className].([]interface{})
	if !ok {
		return hits, nil
	}

	for _, obj := range objects {
		objMap, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		additional, ok := objMap["_additional"].(map[string]interface{})
		if !ok {
			continue
		}

		hit := embedding.SimilarityResult{}
		if id, ok := additional["id"].(string); ok {
			hit.ID = id
		}
		if distance, ok := additional["distance"].(float64); ok {
			hit.Distance = distance
		}
		if content, ok := objMap["content"].(string); ok {
			hit.Text = content
		}
		if raw, ok := objMap["metadata"].(string); ok && raw != "" {
			metadata := map[string]interface{}{}
			if err := json.Unmarshal([]byte(raw), &metadata); err == nil {
				hit.Metadata = metadata
			}
		}
		hits = append(hits, hit)
	}

	return hits, nil
}
