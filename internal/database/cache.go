package database

import (
	"context"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// ReferenceCache adapts a ReferenceEmbeddingStore to facematch.EmbeddingCache
// for a single embedding model.
type ReferenceCache struct {
	Backend ReferenceEmbeddingStore
	Model   string
}

// Lookup returns the cached embedding for an image hash.
func (c ReferenceCache) Lookup(ctx context.Context, key string) (facematch.Embedding, bool, error) {
	stored, err := c.Backend.GetReferenceEmbedding(ctx, key, c.Model)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, nil
	}
	return stored.Embedding, true, nil
}

// Store saves the embedding for an image hash.
func (c ReferenceCache) Store(ctx context.Context, key string, emb facematch.Embedding) error {
	return c.Backend.SaveReferenceEmbedding(ctx, StoredReferenceEmbedding{
		ImageSHA256: key,
		Model:       c.Model,
		Embedding:   emb,
		Dim:         len(emb),
	})
}
