package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"

	"car-inspect/internal/domain/entity"
)

func TestDamageScore_MeanOfMaxima(t *testing.T) {
	dets := []entity.Detection{
		det("scratch", 0.8, entity.Rect{Width: 0.2, Height: 0.1}),
		det("SCRATCH", 0.3, entity.Rect{Width: 0.2, Height: 0.1}),
		det("dent", 0.4, entity.Rect{Width: 0.1, Height: 0.1}),
		det("mirror", 1.0, entity.Rect{Width: 0.1, Height: 0.1}),
	}
	require.InDelta(t, 0.4, DamageScore(dets, DefaultDamageClasses), 1e-9)
}

func TestDamageScore_Empty(t *testing.T) {
	require.Zero(t, DamageScore(nil, DefaultDamageClasses))
	require.Zero(t, DamageScore([]entity.Detection{det("dent", 1, entity.Rect{})}, nil))
}

func TestDamageScore_Clamped(t *testing.T) {
	dets := []entity.Detection{det("dent", 3.5, entity.Rect{Width: 0.5, Height: 0.5})}
	require.Equal(t, 1.0, DamageScore(dets, []string{"Dent"}))
}
