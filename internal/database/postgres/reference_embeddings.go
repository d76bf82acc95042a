package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/pgvector/pgvector-go"
)

// ReferenceEmbeddingRepository caches reference image embeddings in a pgvector column
type ReferenceEmbeddingRepository struct {
	pool *Pool
}

// NewReferenceEmbeddingRepository creates a new PostgreSQL reference embedding repository
func NewReferenceEmbeddingRepository(pool *Pool) *ReferenceEmbeddingRepository {
	return &ReferenceEmbeddingRepository{pool: pool}
}

// GetReferenceEmbedding retrieves a cached embedding, returns nil if not found
func (r *ReferenceEmbeddingRepository) GetReferenceEmbedding(ctx context.Context, imageSHA256, model string) (*database.StoredReferenceEmbedding, error) {
	var emb database.StoredReferenceEmbedding
	var vec pgvector.Vector

	err := r.pool.QueryRow(ctx, `
		SELECT image_sha256, model, embedding, dim, created_at
		FROM reference_embeddings
		WHERE image_sha256 = $1 AND model = $2
	`, imageSHA256, model).Scan(&emb.ImageSHA256, &emb.Model, &vec, &emb.Dim, &emb.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query reference embedding: %w", err)
	}

	emb.Embedding = vec.Slice()
	return &emb, nil
}

// SaveReferenceEmbedding stores or replaces a cached embedding
func (r *ReferenceEmbeddingRepository) SaveReferenceEmbedding(ctx context.Context, emb database.StoredReferenceEmbedding) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reference_embeddings (image_sha256, model, embedding, dim)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (image_sha256, model) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			dim = EXCLUDED.dim,
			created_at = NOW()
	`, emb.ImageSHA256, emb.Model, pgvector.NewVector(emb.Embedding), len(emb.Embedding))
	if err != nil {
		return fmt.Errorf("save reference embedding: %w", err)
	}
	return nil
}
