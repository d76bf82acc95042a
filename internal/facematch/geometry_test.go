package facematch

import (
	"encoding/json"
	"image"
	"math"
	"testing"
)

func TestComputeIoU(t *testing.T) {
	tests := []struct {
		name     string
		a        BBox
		b        BBox
		expected float64
	}{
		{
			name:     "identical boxes",
			a:        BBox{Top: 0, Right: 10, Bottom: 10, Left: 0},
			b:        BBox{Top: 0, Right: 10, Bottom: 10, Left: 0},
			expected: 1.0,
		},
		{
			name:     "no overlap",
			a:        BBox{Top: 0, Right: 10, Bottom: 10, Left: 0},
			b:        BBox{Top: 20, Right: 30, Bottom: 30, Left: 20},
			expected: 0.0,
		},
		{
			name:     "partial overlap",
			a:        BBox{Top: 0, Right: 10, Bottom: 10, Left: 0},
			b:        BBox{Top: 5, Right: 15, Bottom: 15, Left: 5},
			expected: 25.0 / 175.0, // intersection=25, union=100+100-25=175
		},
		{
			name:     "one inside other",
			a:        BBox{Top: 0, Right: 20, Bottom: 20, Left: 0},
			b:        BBox{Top: 5, Right: 15, Bottom: 15, Left: 5},
			expected: 100.0 / 400.0,
		},
		{
			name:     "empty boxes",
			a:        BBox{},
			b:        BBox{},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComputeIoU(tt.a, tt.b)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("ComputeIoU(%v, %v) = %v, want %v", tt.a, tt.b, result, tt.expected)
			}
		})
	}
}

func TestBBoxFromCorners(t *testing.T) {
	tests := []struct {
		name     string
		corners  []float64
		expected BBox
		ok       bool
	}{
		{"pixel box", []float64{10, 20, 50, 80}, BBox{Top: 20, Right: 50, Bottom: 80, Left: 10}, true},
		{"rounds fractions", []float64{10.4, 19.6, 49.5, 80.2}, BBox{Top: 20, Right: 50, Bottom: 80, Left: 10}, true},
		{"too short", []float64{1, 2, 3}, BBox{}, false},
		{"zero width", []float64{10, 10, 10, 40}, BBox{}, false},
		{"inverted", []float64{50, 80, 10, 20}, BBox{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BBoxFromCorners(tt.corners)
			if ok != tt.ok {
				t.Fatalf("BBoxFromCorners(%v) ok = %v, want %v", tt.corners, ok, tt.ok)
			}
			if got != tt.expected {
				t.Errorf("BBoxFromCorners(%v) = %+v, want %+v", tt.corners, got, tt.expected)
			}
		})
	}
}

func TestBBoxScaleAndClamp(t *testing.T) {
	b := BBox{Top: 10, Right: 40, Bottom: 30, Left: 20}

	scaled := b.Scale(4)
	want := BBox{Top: 40, Right: 160, Bottom: 120, Left: 80}
	if scaled != want {
		t.Errorf("Scale(4) = %+v, want %+v", scaled, want)
	}

	if b.Scale(1) != b {
		t.Error("Scale(1) should return the box unchanged")
	}

	clamped := BBox{Top: -5, Right: 120, Bottom: 50, Left: 90}.Clamp(image.Rect(0, 0, 100, 100))
	wantClamped := BBox{Top: 0, Right: 100, Bottom: 50, Left: 90}
	if clamped != wantClamped {
		t.Errorf("Clamp = %+v, want %+v", clamped, wantClamped)
	}
}

func TestBBoxJSON(t *testing.T) {
	b := BBox{Top: 1, Right: 2, Bottom: 3, Left: 4}

	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "[1,2,3,4]" {
		t.Errorf("expected [top,right,bottom,left], got %s", data)
	}

	var back BBox
	if err := json.Unmarshal([]byte("[5,6,7,8]"), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != (BBox{Top: 5, Right: 6, Bottom: 7, Left: 8}) {
		t.Errorf("unexpected decoded box %+v", back)
	}

	if err := json.Unmarshal([]byte("[1,2,3]"), &back); err == nil {
		t.Error("expected error for three element array")
	}
}
