package embed

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNorm(t *testing.T) {
	tests := []struct {
		name     string
		input    []float64
		expected float64
	}{
		{"zero vector", []float64{0, 0, 0}, 0},
		{"unit axis", []float64{1, 0, 0}, 1},
		{"pythagorean", []float64{3, 4}, 5},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Norm(tt.input); !almostEqual(got, tt.expected) {
				t.Errorf("Norm(%v) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float64{3, 4})
	if !almostEqual(Norm(v), 1) {
		t.Errorf("normalized vector should have unit norm, got %v", Norm(v))
	}
	if !almostEqual(v[0], 0.6) || !almostEqual(v[1], 0.8) {
		t.Errorf("Normalize([3 4]) = %v, want [0.6 0.8]", v)
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	v := Normalize([]float64{0, 0})
	if v[0] != 0 || v[1] != 0 {
		t.Errorf("zero vector should normalize to itself, got %v", v)
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := []float64{3, 4}
	Normalize(in)
	if in[0] != 3 || in[1] != 4 {
		t.Errorf("Normalize mutated its input: %v", in)
	}
}

func TestDot(t *testing.T) {
	if got := Dot([]float64{1, 2, 3}, []float64{4, 5, 6}); !almostEqual(got, 32) {
		t.Errorf("Dot = %v, want 32", got)
	}
}

func TestDotMismatchedLengths(t *testing.T) {
	if got := Dot([]float64{1, 2}, []float64{1}); got != 0 {
		t.Errorf("mismatched lengths should score zero, got %v", got)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float64
		expected float64
	}{
		{"identical", []float64{1, 2}, []float64{1, 2}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); !almostEqual(got, tt.expected) {
				t.Errorf("Cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestCosineScaleInvariant(t *testing.T) {
	a := []float64{1, 2, 3}
	scaled := []float64{10, 20, 30}
	if got := Cosine(a, scaled); !almostEqual(got, 1) {
		t.Errorf("cosine should ignore magnitude, got %v", got)
	}
}

func TestMean(t *testing.T) {
	got := Mean([][]float64{{1, 2}, {3, 4}})
	if !almostEqual(got[0], 2) || !almostEqual(got[1], 3) {
		t.Errorf("Mean = %v, want [2 3]", got)
	}
}

func TestMeanEmpty(t *testing.T) {
	if got := Mean(nil); got != nil {
		t.Errorf("Mean of no vectors should be nil, got %v", got)
	}
}

func TestMeanSingleVector(t *testing.T) {
	got := Mean([][]float64{{5, 7}})
	if !almostEqual(got[0], 5) || !almostEqual(got[1], 7) {
		t.Errorf("Mean of one vector should equal it, got %v", got)
	}
}
