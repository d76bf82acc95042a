package video

import (
	"bytes"
	"errors"
	"image"
	"io"
	"testing"
)

func TestRawReader(t *testing.T) {
	// Two 2x1 frames: first red, second blue.
	data := []byte{
		255, 0, 0, 255, 255, 0, 0, 255,
		0, 0, 255, 255, 0, 0, 255, 255,
	}
	rr := newRawReader(bytes.NewReader(data), 2, 1, 2, nil)

	img, err := rr.ReadFrame()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, _, _, _ := img.At(1, 0).RGBA()
	if r>>8 != 255 {
		t.Errorf("expected red pixel, got r=%d", r>>8)
	}
	if img.Bounds() != image.Rect(0, 0, 2, 1) {
		t.Errorf("unexpected bounds %v", img.Bounds())
	}

	if err := rr.SkipFrame(); err != nil {
		t.Fatalf("skip: %v", err)
	}
	if _, err := rr.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestRawReader_Truncated(t *testing.T) {
	data := make([]byte, 8+3) // one full 2x1 frame, then 3 stray bytes
	rr := newRawReader(bytes.NewReader(data), 2, 1, 0, nil)

	if _, err := rr.ReadFrame(); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if _, err := rr.ReadFrame(); !errors.Is(err, ErrTruncatedFrame) {
		t.Errorf("expected ErrTruncatedFrame, got %v", err)
	}
}

func TestRawReader_DecoderExitError(t *testing.T) {
	exitErr := errors.New("exit status 1")
	rr := newRawReader(bytes.NewReader(nil), 2, 1, 0, func() error { return exitErr })

	if err := rr.SkipFrame(); !errors.Is(err, exitErr) {
		t.Errorf("expected decoder error at EOF, got %v", err)
	}
}
