package weaviate

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"deepsearch/src/core/rag"
)

const (
	DefaultClassName = "DocumentChunk"

	// Upper bound on entries a single document may own in the index; the
	// source-tag lookup pages up to this many ids in one query.
	maxEntriesPerSource = 10000
)

// Embedder produces embedding vectors. Indexing and querying must share one
// embedding space, so the same Embedder serves both.
type Embedder interface {
	GetEmbedding(ctx context.Context, model string, text string) ([]float32, error)
}

// Index owns the handle to the remote vector collection and implements
// rag.VectorIndex on top of it. The collection class is ensured lazily on
// first use; a failed initialization is retried on the next call rather
// than being cached for the life of the process.
type Index struct {
	client         *weaviate.Client
	embedder       Embedder
	className      string
	embeddingModel string

	mu    sync.Mutex
	ready bool
}

// NewIndex creates a vector index client. No connection is made until the
// first operation.
func NewIndex(client *weaviate.Client, embedder Embedder, className, embeddingModel string) (*Index, error) {
	if client == nil {
		return nil, fmt.Errorf("weaviate client is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if className == "" {
		className = DefaultClassName
	}
	if embeddingModel == "" {
		return nil, fmt.Errorf("embedding model is required")
	}

	return &Index{
		client:         client,
		embedder:       embedder,
		className:      className,
		embeddingModel: embeddingModel,
	}, nil
}

// ensureReady creates the collection class on first use. Safe to call from
// concurrent operations; only one caller performs the initialization.
func (i *Index) ensureReady(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.ready {
		return nil
	}

	exists, err := i.classExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check if class exists: %w", err)
	}
	if !exists {
		class := &models.Class{
			Class:             i.className,
			Vectorizer:        "none",
			VectorIndexConfig: map[string]interface{}{"distance": "cosine"},
			Properties: []*models.Property{
				{
					Name:        "content",
					DataType:    []string{"text"},
					Description: "The text of the chunk",
				},
				{
					Name:        "source",
					DataType:    []string{"text"},
					Description: "Filename of the document the chunk was cut from",
				},
			},
		}
		if err := i.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
			return fmt.Errorf("failed to create class %s: %w", i.className, err)
		}
	}

	i.ready = true
	return nil
}

func (i *Index) classExists(ctx context.Context) (bool, error) {
	schema, err := i.client.Schema().Getter().Do(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get schema: %w", err)
	}

	for _, class := range schema.Classes {
		if class.Class == i.className {
			return true, nil
		}
	}
	return false, nil
}

// Count implements rag.VectorIndex
func (i *Index) Count(ctx context.Context) (int, error) {
	if err := i.ensureReady(ctx); err != nil {
		return 0, err
	}

	result, err := i.client.GraphQL().Aggregate().
		WithClassName(i.className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate %s: %w", i.className, err)
	}
	if len(result.Errors) > 0 {
		return 0, fmt.Errorf("aggregate query failed: %s", result.Errors[0].Message)
	}

	agg, ok := result.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("malformed aggregate response: missing Aggregate")
	}
	objects, ok := agg[i.className].([]interface{})
	if !ok || len(objects) == 0 {
		return 0, fmt.Errorf("malformed aggregate response: missing class data")
	}
	first, ok := objects[0].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("malformed aggregate response: unexpected class shape")
	}
	meta, ok := first["meta"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("malformed aggregate response: missing meta")
	}
	count, ok := meta["count"].(float64)
	if !ok {
		return 0, fmt.Errorf("malformed aggregate response: missing count")
	}

	return int(count), nil
}

// Add implements rag.VectorIndex
func (i *Index) Add(ctx context.Context, texts []string, sources []string, ids []string) error {
	if len(texts) != len(sources) || len(texts) != len(ids) {
		return fmt.Errorf("texts, sources and ids must be index-aligned: got %d/%d/%d",
			len(texts), len(sources), len(ids))
	}
	if len(texts) == 0 {
		return nil
	}
	if err := i.ensureReady(ctx); err != nil {
		return err
	}

	objects := make([]*models.Object, len(texts))
	for n, text := range texts {
		vector, err := i.embedder.GetEmbedding(ctx, i.embeddingModel, text)
		if err != nil {
			return fmt.Errorf("failed to embed chunk %s: %w", ids[n], err)
		}
		objects[n] = &models.Object{
			Class:  i.className,
			ID:     strfmt.UUID(ids[n]),
			Vector: vector,
			Properties: map[string]interface{}{
				"content": text,
				"source":  sources[n],
			},
		}
	}

	resp, err := i.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to batch add objects: %w", err)
	}
	if len(resp) == 0 {
		return fmt.Errorf("batch add returned no results")
	}
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("failed to add entry %s: %s", obj.ID, obj.Result.Errors.Error[0].Message)
		}
	}

	return nil
}

// Query implements rag.VectorIndex
func (i *Index) Query(ctx context.Context, query string, k int) ([]rag.QueryHit, error) {
	if err := i.ensureReady(ctx); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = rag.DefaultTopK
	}

	vector, err := i.embedder.GetEmbedding(ctx, i.embeddingModel, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	nearVector := i.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	result, err := i.client.GraphQL().Get().
		WithClassName(i.className).
		WithFields(
			graphql.Field{Name: "content"},
			graphql.Field{Name: "source"},
			graphql.Field{Name: "_additional { id distance }"},
		).
		WithNearVector(nearVector).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("vector query failed: %s", result.Errors[0].Message)
	}

	objects, err := i.classObjects(result)
	if err != nil {
		return nil, err
	}

	hits := make([]rag.QueryHit, 0, len(objects))
	for _, obj := range objects {
		objMap, ok := obj.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("malformed query response: unexpected object shape")
		}
		content, ok := objMap["content"].(string)
		if !ok {
			return nil, fmt.Errorf("malformed query response: missing content")
		}
		source, ok := objMap["source"].(string)
		if !ok {
			return nil, fmt.Errorf("malformed query response: missing source")
		}

		hit := rag.QueryHit{Text: content, Source: source}
		if additional, ok := objMap["_additional"].(map[string]interface{}); ok {
			if distance, ok := additional["distance"].(float64); ok {
				hit.Distance = distance
			}
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

// GetIDsBySource implements rag.VectorIndex
func (i *Index) GetIDsBySource(ctx context.Context, source string) ([]string, error) {
	if err := i.ensureReady(ctx); err != nil {
		return nil, err
	}

	result, err := i.client.GraphQL().Get().
		WithClassName(i.className).
		WithFields(graphql.Field{Name: "_additional { id }"}).
		WithWhere(sourceFilter(source)).
		WithLimit(maxEntriesPerSource).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to look up entries by source: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("source lookup failed: %s", result.Errors[0].Message)
	}

	objects, err := i.classObjects(result)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(objects))
	for _, obj := range objects {
		objMap, ok := obj.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("malformed lookup response: unexpected object shape")
		}
		additional, ok := objMap["_additional"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("malformed lookup response: missing _additional")
		}
		id, ok := additional["id"].(string)
		if !ok {
			return nil, fmt.Errorf("malformed lookup response: missing id")
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// DeleteBySource implements rag.VectorIndex
func (i *Index) DeleteBySource(ctx context.Context, source string) error {
	if err := i.ensureReady(ctx); err != nil {
		return err
	}

	// Deleting a source with no entries matches nothing and succeeds.
	_, err := i.client.Batch().ObjectsBatchDeleter().
		WithClassName(i.className).
		WithWhere(sourceFilter(source)).
		WithOutput("minimal").
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete entries by source: %w", err)
	}

	return nil
}

func sourceFilter(source string) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{"source"}).
		WithOperator(filters.Equal).
		WithValueText(source)
}

// classObjects unwraps the Get payload for the index class. An absent or
// nil object list is an empty result, anything else malformed is an error.
func (i *Index) classObjects(result *models.GraphQLResponse) ([]interface{}, error) {
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("malformed response: missing Get")
	}
	raw, present := data[i.className]
	if !present || raw == nil {
		return nil, nil
	}
	objects, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("malformed response: unexpected class payload")
	}
	return objects, nil
}
