// Package faceservice talks to the external face detection and embedding server.
package faceservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Client computes face boxes and embeddings using the face server.
// It implements facematch.Detector and facematch.Embedder.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new face service client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = constants.DefaultFaceServiceURL
	}
	if timeout <= 0 {
		timeout = constants.DefaultFaceServiceTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// detectResponse represents the response from the detection endpoint
type detectResponse struct {
	FacesCount int         `json:"faces_count"`
	Boxes      [][]float64 `json:"boxes"` // [x1, y1, x2, y2]
}

// embedResponse represents the response from the face embedding endpoint
type embedResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// healthResponse is returned by GET /health
type healthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

// postMultipartImage encodes img as JPEG and posts it with optional extra form fields.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, img image.Image, fields map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if err := jpeg.Encode(part, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// DetectFaces returns the face boxes found in img. Malformed boxes are dropped.
func (c *Client) DetectFaces(ctx context.Context, img image.Image) ([]facematch.BBox, error) {
	body, err := c.postMultipartImage(ctx, "/detect/face", img, nil)
	if err != nil {
		return nil, err
	}

	var detResp detectResponse
	if err := json.Unmarshal(body, &detResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	boxes := make([]facematch.BBox, 0, len(detResp.Boxes))
	for _, raw := range detResp.Boxes {
		if b, ok := facematch.BBoxFromCorners(raw); ok {
			boxes = append(boxes, b)
		}
	}
	return boxes, nil
}

// EmbedFace computes the embedding of the face inside box.
func (c *Client) EmbedFace(ctx context.Context, img image.Image, box facematch.BBox) (facematch.Embedding, error) {
	corners := box.Corners()
	parts := make([]string, len(corners))
	for i, v := range corners {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}

	body, err := c.postMultipartImage(ctx, "/embed/face", img, map[string]string{"bbox": strings.Join(parts, ",")})
	if err != nil {
		return nil, err
	}

	var embResp embedResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(embResp.Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}

	return embResp.Embedding, nil
}

// Health checks that the face server is reachable and returns its model name.
func (c *Client) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	var h healthResponse
	if err := json.Unmarshal(body, &h); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return h.Model, nil
}
