package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/askdata/backend/pkg/logger"
)

// Embedder turns text into vectors. Satisfied by the LLM client.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore keeps the current dataset's context chunks in a Milvus
// collection. Each upload replaces the whole collection, mirroring the
// single-dataset storage model.
type VectorStore struct {
	client         client.Client
	embedder       Embedder
	collectionName string
	vectorDim      int
}

func NewVectorStore(endpoint, apiKey, collectionName string, vectorDim int, embedder Embedder) (*VectorStore, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Vector store initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &VectorStore{
		client:         c,
		embedder:       embedder,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (s *VectorStore) Close() error {
	return s.client.Close()
}

// Reset drops the collection if it exists and recreates it empty. Called
// on every dataset upload before indexing the new chunks.
func (s *VectorStore) Reset(ctx context.Context) error {
	has, err := s.client.HasCollection(ctx, s.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		if err := s.client.DropCollection(ctx, s.collectionName); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
	}

	collSchema := &entity.Schema{
		CollectionName: s.collectionName,
		Description:    "Dataset context chunks",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     false,
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", s.vectorDim),
				},
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "4096",
				},
			},
		},
	}

	if err := s.client.CreateCollection(ctx, collSchema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, _ := entity.NewIndexIvfFlat(entity.L2, 128)
	if err := s.client.CreateIndex(ctx, s.collectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := s.client.LoadCollection(ctx, s.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection reset", zap.String("collection", s.collectionName))

	return nil
}

// Index embeds the chunks and inserts them. Chunk IDs are positional,
// which is enough because Reset empties the collection first.
func (s *VectorStore) Index(ctx context.Context, chunks []string) error {
	if len(chunks) == 0 {
		return nil
	}

	embeddings, err := s.embedder.GenerateBatchEmbeddings(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(embeddings))
	}

	ids := make([]int64, len(chunks))
	for i := range chunks {
		ids[i] = int64(i)
	}

	_, err = s.client.Insert(
		ctx,
		s.collectionName,
		"",
		entity.NewColumnInt64("chunk_id", ids),
		entity.NewColumnFloatVector("embedding", s.vectorDim, embeddings),
		entity.NewColumnVarChar("text", chunks),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := s.client.Flush(ctx, s.collectionName, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Context chunks indexed", zap.Int("count", len(chunks)))

	return nil
}

// Retrieve embeds the question, searches the collection, and joins the
// matched chunk texts into a single context block.
func (s *VectorStore) Retrieve(ctx context.Context, question string, topK int) (string, error) {
	embedding, err := s.embedder.GenerateEmbedding(ctx, question)
	if err != nil {
		return "", fmt.Errorf("failed to embed question: %w", err)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := s.client.Search(
		ctx,
		s.collectionName,
		[]string{},
		"",
		[]string{"text"},
		[]entity.Vector{entity.FloatVector(embedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return "", fmt.Errorf("failed to search: %w", err)
	}

	var texts []string
	for _, sr := range searchResult {
		textCol := sr.Fields.GetColumn("text")
		if textCol == nil {
			continue
		}
		for i := 0; i < sr.ResultCount; i++ {
			text, err := textCol.Get(i)
			if err != nil {
				continue
			}
			if str, ok := text.(string); ok {
				texts = append(texts, str)
			}
		}
	}

	logger.Debug("Context retrieved",
		zap.Int("topK", topK),
		zap.Int("chunks", len(texts)),
	)

	return strings.Join(texts, "\n\n"), nil
}
