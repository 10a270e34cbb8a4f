package vision

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeYOLO(t *testing.T) {
	// 2 класса, 3 кандидата; столбец i соответствует кандидату
	data := []float32{
		// cx
		100, 50, 300,
		// cy
		50, 50, 300,
		// w
		40, 20, 100,
		// h
		20, 20, 100,
		// scratch
		0.9, 0.01, 0.2,
		// dent
		0.1, 0.02, 0.6,
	}
	dets, err := decodeYOLO(data, []int{1, 6, 3}, []string{"scratch", "dent"}, 400, DefaultScoreFloor)
	require.NoError(t, err)
	require.Len(t, dets, 2)

	require.Equal(t, "scratch", dets[0].Label)
	require.InDelta(t, 0.9, dets[0].Confidence, 1e-6)
	require.InDelta(t, 0.2, dets[0].Box.X, 1e-6)
	require.InDelta(t, 0.85, dets[0].Box.Y, 1e-6)
	require.InDelta(t, 0.1, dets[0].Box.Width, 1e-6)
	require.InDelta(t, 0.05, dets[0].Box.Height, 1e-6)

	require.Equal(t, "dent", dets[1].Label)
	require.InDelta(t, 0.6, dets[1].Confidence, 1e-6)
}

func TestDecodeYOLO_ClipsToFrame(t *testing.T) {
	data := []float32{0, 0, 100, 100, 0.5}
	dets, err := decodeYOLO(data, []int{1, 5, 1}, nil, 100, DefaultScoreFloor)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	require.Equal(t, "class_0", dets[0].Label)
	require.InDelta(t, 0, dets[0].Box.X, 1e-9)
	require.InDelta(t, 0.5, dets[0].Box.Y, 1e-9)
	require.InDelta(t, 0.5, dets[0].Box.Width, 1e-9)
	require.InDelta(t, 0.5, dets[0].Box.Height, 1e-9)
}

func TestDecodeYOLO_BadShape(t *testing.T) {
	_, err := decodeYOLO([]float32{1, 2, 3}, []int{1, 3}, nil, 640, DefaultScoreFloor)
	require.Error(t, err)

	_, err = decodeYOLO([]float32{1, 2, 3}, []int{1, 6, 2}, nil, 640, DefaultScoreFloor)
	require.Error(t, err)
}

func TestClassScores(t *testing.T) {
	got := classScores([]float32{0.25, 0.75}, []string{"clean", "dirty"})
	require.Len(t, got, 2)
	require.InDelta(t, 0.25, got[0].Confidence, 1e-6)
	require.InDelta(t, 0.75, got[1].Confidence, 1e-6)

	logits := classScores([]float32{2, 2}, []string{"clean", "dirty"})
	require.InDelta(t, 0.5, logits[0].Confidence, 1e-9)
	require.InDelta(t, 0.5, logits[1].Confidence, 1e-9)

	require.Nil(t, classScores(nil, nil))
}
