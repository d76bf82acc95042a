package facematch

import (
	"context"
	"image"
	"sync"
)

// stubDetector returns fixed boxes for every image.
type stubDetector struct {
	boxes []BBox
	err   error
	calls int
	seen  []image.Rectangle
}

func (d *stubDetector) DetectFaces(_ context.Context, img image.Image) ([]BBox, error) {
	d.calls++
	d.seen = append(d.seen, img.Bounds())
	return d.boxes, d.err
}

// keyedEmbedder returns the embedding registered for a box's left edge.
type keyedEmbedder struct {
	byLeft map[int]Embedding
	err    error
	calls  int
}

func (e *keyedEmbedder) EmbedFace(_ context.Context, _ image.Image, box BBox) (Embedding, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.byLeft[box.Left], nil
}

// widthDetector reports one full-image face, or none for 1px wide images.
type widthDetector struct{ calls int }

func (d *widthDetector) DetectFaces(_ context.Context, img image.Image) ([]BBox, error) {
	d.calls++
	if img.Bounds().Dx() == 1 {
		return nil, nil
	}
	return []BBox{BBoxFromRect(img.Bounds())}, nil
}

// widthEmbedder encodes the image width into a one-dimensional embedding.
type widthEmbedder struct{ calls int }

func (e *widthEmbedder) EmbedFace(_ context.Context, img image.Image, _ BBox) (Embedding, error) {
	e.calls++
	return Embedding{float32(img.Bounds().Dx())}, nil
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string]Embedding
}

func (c *memoryCache) Lookup(_ context.Context, key string) (Embedding, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	emb, ok := c.data[key]
	return emb, ok, nil
}

func (c *memoryCache) Store(_ context.Context, key string, emb Embedding) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string]Embedding)
	}
	c.data[key] = emb
	return nil
}
