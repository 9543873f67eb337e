package retrieval

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/adalundhe/scriptorium/core/errors"
)

const (
	// EmbeddingModel and EmbeddingDimensions are fixed for the whole
	// index: every stored vector and every query vector must come from
	// the same model at the same dimensionality or scores are garbage.
	EmbeddingModel      = "text-embedding-3-small"
	EmbeddingDimensions = 512
)

// Embedder turns texts into dense vectors. Implementations must return
// one vector per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}

// EmbeddingsClient is the slice of the OpenAI SDK the embedder uses,
// split out so tests can substitute a mock.
type EmbeddingsClient interface {
	New(ctx context.Context, params openai.EmbeddingNewParams) (*openai.CreateEmbeddingResponse, error)
}

type realEmbeddingsClient struct {
	client openai.Client
}

func (r *realEmbeddingsClient) New(ctx context.Context, params openai.EmbeddingNewParams) (*openai.CreateEmbeddingResponse, error) {
	return r.client.Embeddings.New(ctx, params)
}

// OpenAIEmbedder embeds text with the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client EmbeddingsClient
}

// NewOpenAIEmbedder creates an embedder backed by the live API.
func NewOpenAIEmbedder(apiKey string) *OpenAIEmbedder {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIEmbedder{client: &realEmbeddingsClient{client: client}}
}

// NewOpenAIEmbedderWithClient creates an embedder with an injected
// client, for tests.
func NewOpenAIEmbedderWithClient(client EmbeddingsClient) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client}
}

func (e *OpenAIEmbedder) Dimensions() int { return EmbeddingDimensions }
func (e *OpenAIEmbedder) Model() string   { return EmbeddingModel }

// Embed vectorizes the given texts in one batch call.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:      EmbeddingModel,
		Dimensions: openai.Int(EmbeddingDimensions),
	})
	if err != nil {
		return nil, errors.New(errors.ClassProviderUnavailable, "embed texts", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.New(errors.ClassProviderUnavailable, "embedding count mismatch", nil)
	}

	vectors := make([][]float32, len(texts))
	for _, datum := range resp.Data {
		vec := make([]float32, len(datum.Embedding))
		for i, v := range datum.Embedding {
			vec[i] = float32(v)
		}
		vectors[datum.Index] = vec
	}
	return vectors, nil
}

// HashEmbedder is a deterministic offline embedder for tests: texts
// sharing words land near each other, distinct texts do not. Not a real
// semantic model.
type HashEmbedder struct {
	Dims int
}

// NewHashEmbedder creates a hash embedder with the given
// dimensionality, defaulting to the production dimensionality.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = EmbeddingDimensions
	}
	return &HashEmbedder{Dims: dims}
}

func (e *HashEmbedder) Dimensions() int { return e.Dims }
func (e *HashEmbedder) Model() string   { return "hash-embedder" }

// Embed maps each word to a fixed bucket and normalizes the result.
func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, e.Dims)
		start := 0
		for pos := 0; pos <= len(text); pos++ {
			if pos == len(text) || text[pos] == ' ' || text[pos] == '\n' {
				if pos > start {
					h := fnv.New32a()
					h.Write([]byte(text[start:pos]))
					vec[h.Sum32()%uint32(e.Dims)] += 1
				}
				start = pos + 1
			}
		}
		normalize(vec)
		vectors[i] = vec
	}
	return vectors, nil
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
