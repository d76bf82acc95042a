package facematch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// RosterEntry is one enrolled student as seen at session start.
type RosterEntry struct {
	StudentID int64
	Name      string
	ImagePath string
}

// SkipReason explains why a roster entry has no known face.
type SkipReason string

// Skip reasons reported by RegistryBuilder.Build.
const (
	SkipNoImage    SkipReason = "no_image"
	SkipUnreadable SkipReason = "unreadable_image"
	SkipNoFace     SkipReason = "no_face"
	SkipEmbedError SkipReason = "embedding_failed"
)

// SkippedEntry records a roster entry that was left out of the registry.
type SkippedEntry struct {
	StudentID int64
	Name      string
	Reason    SkipReason
	Err       error
}

// Detector finds face boxes in an image. May return an empty slice.
type Detector interface {
	DetectFaces(ctx context.Context, img image.Image) ([]BBox, error)
}

// Embedder computes the embedding of one detected face.
type Embedder interface {
	EmbedFace(ctx context.Context, img image.Image, box BBox) (Embedding, error)
}

// EmbeddingCache stores reference embeddings keyed by image content hash.
type EmbeddingCache interface {
	Lookup(ctx context.Context, key string) (Embedding, bool, error)
	Store(ctx context.Context, key string, emb Embedding) error
}

// Registry is the immutable known-face set of one session or batch run.
type Registry struct {
	faces   []KnownFace
	skipped []SkippedEntry
}

// NewRegistry creates a registry from known faces. The slice is copied.
func NewRegistry(faces []KnownFace) *Registry {
	return &Registry{faces: append([]KnownFace(nil), faces...)}
}

// Len returns the number of known faces.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.faces)
}

// Faces returns a copy of the known faces in roster order.
func (r *Registry) Faces() []KnownFace {
	if r == nil {
		return nil
	}
	return append([]KnownFace(nil), r.faces...)
}

// StudentIDs returns the student IDs in roster order.
func (r *Registry) StudentIDs() []int64 {
	if r == nil {
		return nil
	}
	ids := make([]int64, len(r.faces))
	for i, f := range r.faces {
		ids[i] = f.StudentID
	}
	return ids
}

// Skipped returns the roster entries that were left out, in roster order.
func (r *Registry) Skipped() []SkippedEntry {
	if r == nil {
		return nil
	}
	return append([]SkippedEntry(nil), r.skipped...)
}

// RegistryBuilder builds registries from roster snapshots.
type RegistryBuilder struct {
	Detector Detector
	Embedder Embedder
	// Cache is optional.
	Cache EmbeddingCache
	// ImageDir is searched by normalized student name when an entry has no image path.
	ImageDir string
}

// Build computes the registry for a roster snapshot.
// Entries without a usable reference image are skipped and logged, never returned as errors.
// Only context cancellation aborts the build.
func (b *RegistryBuilder) Build(ctx context.Context, roster []RosterEntry) (*Registry, error) {
	snapshot := append([]RosterEntry(nil), roster...)
	reg := &Registry{faces: make([]KnownFace, 0, len(snapshot))}

	var dirIndex map[string]string
	for _, entry := range snapshot {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("build registry: %w", err)
		}

		path := entry.ImagePath
		if path == "" && b.ImageDir != "" {
			if dirIndex == nil {
				dirIndex = indexImageDir(b.ImageDir)
			}
			path = dirIndex[NormalizeStudentName(entry.Name)]
		}
		if path == "" {
			reg.skip(entry, SkipNoImage, nil)
			continue
		}

		emb, reason, err := b.referenceEmbedding(ctx, path)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("build registry: %w", ctx.Err())
		}
		if reason != "" {
			reg.skip(entry, reason, err)
			continue
		}
		reg.faces = append(reg.faces, KnownFace{StudentID: entry.StudentID, Embedding: emb})
	}

	return reg, nil
}

// referenceEmbedding returns the embedding of the first face in the image at path,
// or a skip reason.
func (b *RegistryBuilder) referenceEmbedding(ctx context.Context, path string) (Embedding, SkipReason, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, SkipUnreadable, err
	}

	key := contentKey(data)
	if b.Cache != nil {
		emb, ok, err := b.Cache.Lookup(ctx, key)
		if err != nil {
			log.Printf("warning: reference embedding cache lookup failed for %s: %v", path, err)
		} else if ok {
			return emb, "", nil
		}
	}

	img, err := DecodeImage(data)
	if err != nil {
		return nil, SkipUnreadable, err
	}

	boxes, err := b.Detector.DetectFaces(ctx, img)
	if err != nil {
		return nil, SkipEmbedError, fmt.Errorf("detect faces: %w", err)
	}
	if len(boxes) == 0 {
		return nil, SkipNoFace, nil
	}

	// Reference images are single-subject; only the first face counts.
	emb, err := b.Embedder.EmbedFace(ctx, img, boxes[0])
	if err != nil {
		return nil, SkipEmbedError, fmt.Errorf("embed face: %w", err)
	}

	if b.Cache != nil {
		if err := b.Cache.Store(ctx, key, emb); err != nil {
			log.Printf("warning: failed to cache reference embedding for %s: %v", path, err)
		}
	}
	return emb, "", nil
}

func (r *Registry) skip(entry RosterEntry, reason SkipReason, err error) {
	if err != nil {
		log.Printf("registry: skipping student %d (%s): %s: %v", entry.StudentID, entry.Name, reason, err)
	} else {
		log.Printf("registry: skipping student %d (%s): %s", entry.StudentID, entry.Name, reason)
	}
	r.skipped = append(r.skipped, SkippedEntry{
		StudentID: entry.StudentID,
		Name:      entry.Name,
		Reason:    reason,
		Err:       err,
	})
}

// indexImageDir maps normalized file stems to paths. Unreadable directories yield an empty index.
func indexImageDir(dir string) map[string]string {
	index := make(map[string]string)
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("warning: cannot read student image directory %s: %v", dir, err)
		return index
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		key := NormalizeStudentName(stem)
		if _, dup := index[key]; !dup {
			index[key] = filepath.Join(dir, e.Name())
		}
	}
	return index
}

func contentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
