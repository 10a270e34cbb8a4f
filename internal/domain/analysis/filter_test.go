package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"car-inspect/internal/domain/entity"
)

func TestAreaFilter_IgnoresConfidence(t *testing.T) {
	in := []entity.RawDetection{
		{Label: "scratch", Confidence: 0.99, Box: entity.Rect{Width: 0.05, Height: 0.1}}, // 0.5%
		{Label: "scratch", Confidence: 0.01, Box: entity.Rect{Width: 0.2, Height: 0.1}},  // 2%
		{Label: "dent", Confidence: 1, Box: entity.Rect{Width: 0.001, Height: 0.9}},      // 0.09%
		{Label: "rust", Confidence: 0.5, Box: entity.Rect{Width: -0.2, Height: -0.2}},    // вырожденная
	}

	out := NewAreaFilter(DefaultMinArea)(in)
	require.Len(t, out, 1)
	require.Equal(t, 0.01, out[0].Confidence)
}

func TestChain_SkipsNil(t *testing.T) {
	in := []entity.RawDetection{
		{Label: "dent", Confidence: 0.4, Box: entity.Rect{Width: 0.5, Height: 0.5}},
		{Label: "dent", Confidence: 0.4, Box: entity.Rect{Width: 0.5, Height: 0.1}},
	}
	out := Chain(nil, NewAreaFilter(0.01), NewAreaFilter(0.1))(in)
	require.Len(t, out, 1)
}

func TestFiniteFilter_DropsNaNAndInf(t *testing.T) {
	box := entity.Rect{Width: 0.5, Height: 0.5}
	in := []entity.RawDetection{
		{Label: "scratch", Confidence: math.NaN(), Box: box},
		{Label: "scratch", Confidence: math.Inf(1), Box: box},
		{Label: "dent", Confidence: 0.4, Box: entity.Rect{X: math.NaN(), Width: 0.5, Height: 0.5}},
		{Label: "rust", Confidence: 0.7, Box: box},
	}

	out := NewFiniteFilter()(in)
	require.Len(t, out, 1)
	require.Equal(t, "rust", out[0].Label)
}
