// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

package embedding

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

var (
	// ErrEmptyInput is returned when Embed is called with empty text.
	ErrEmptyInput = errors.New("embedding: input text is empty")

	// ErrNoEmbeddingInResponse is returned when the provider returned no vector.
	ErrNoEmbeddingInResponse = errors.New("embedding: no embedding in response")

	// ErrDimensionMismatch is returned when a vector has unexpected length.
	ErrDimensionMismatch = errors.New("embedding: dimension mismatch")
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIConfig configures the OpenAI embedder.
type OpenAIConfig struct {
	APIKey string

	// BaseURL overrides the API endpoint for compatible providers.
	BaseURL string

	// Default: text-embedding-3-small
	Model string

	// Default: 1536
	Dimensions int
}

// OpenAIEmbedder calls the OpenAI embeddings API via the official SDK.
type OpenAIEmbedder struct {
	sdk        openaisdk.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder creates an embedder.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("embedding: api key is required for the openai provider")
	}
	if cfg.Model == "" {
		cfg.Model = string(openaisdk.EmbeddingModelTextEmbedding3Small)
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 1536
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIEmbedder{
		sdk:        openaisdk.NewClient(opts...),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed returns the embedding of text. The vector has the configured dimensions.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	resp, err := e.sdk.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(text),
		},
		Model:      openaisdk.EmbeddingModel(e.model),
		Dimensions: param.NewOpt(int64(e.dimensions)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	emb := resp.Data[0].Embedding
	if len(emb) != e.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb), e.dimensions)
	}
	out := make([]float32, len(emb))
	for i := range emb {
		out[i] = float32(emb[i])
	}
	return out, nil
}

// HashEmbedder is a deterministic feature-hashing embedder. Each token and
// token bigram is hashed into a signed bucket; the result is L2-normalized.
// It needs no network and suits development and tests.
type HashEmbedder struct {
	Dimensions int
}

// NewHashEmbedder creates a hashing embedder with the given dimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &HashEmbedder{Dimensions: dimensions}
}

// Embed hashes the normalized tokens of text.
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens := strings.Fields(Normalize(text))
	if len(tokens) == 0 {
		return nil, ErrEmptyInput
	}

	vec := make([]float64, h.Dimensions)
	add := func(feature string, weight float64) {
		f := fnv.New64a()
		_, _ = f.Write([]byte(feature)) //nolint:errcheck // hash writes never fail
		sum := f.Sum64()
		bucket := int(sum % uint64(h.Dimensions)) //nolint:gosec // modulo keeps the value in range
		if sum&(1<<63) != 0 {
			weight = -weight
		}
		vec[bucket] += weight
	}
	for i, tok := range tokens {
		add(tok, 1)
		if i > 0 {
			add(tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return nil, ErrEmptyInput
	}
	norm = math.Sqrt(norm)
	out := make([]float32, h.Dimensions)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}
