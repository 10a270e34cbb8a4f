package report

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"car-inspect/internal/domain/entity"
)

func TestTextDescriber_Damaged(t *testing.T) {
	rep := &entity.InspectionReport{
		Damaged: true,
		Result: entity.FusedResult{
			Detections: []entity.Detection{
				{Label: "scratch", Confidence: 0.75, Box: entity.Rect{Width: 0.5, Height: 0.5}},
			},
			ClassCoverage:  map[string]float64{"scratch": 0.25, "dent": 0, "rust": 0},
			TotalCoverage:  0.25,
			DamageScore:    0.5,
			OraclesQueried: 2,
			OracleErrors:   1,
		},
		Cleanliness: entity.NewCleanlinessEstimate(0.25),
	}

	desc, err := NewTextDescriber().Describe(context.Background(), rep)
	require.NoError(t, err)
	require.Contains(t, desc.Text, "Повреждения обнаружены")
	require.Contains(t, desc.Text, "Итоговая повреждённость: 50%")
	require.Contains(t, desc.Text, "Покрытие: 25%")
	require.Contains(t, desc.Text, "• scratch: уверенность 75%, покрытие 25%")
	require.NotContains(t, desc.Text, "dent")
	require.Contains(t, desc.Text, "75% грязный • 25% чистый")
	require.Contains(t, desc.Text, "рекомендуется мойка")
	require.Contains(t, desc.Text, "Не ответили моделей: 1 из 2")
}

func TestTextDescriber_NoOracles(t *testing.T) {
	rep := &entity.InspectionReport{
		Result:      entity.FusedResult{ClassCoverage: map[string]float64{}},
		Cleanliness: entity.FallbackCleanliness(),
	}

	desc, err := NewTextDescriber().Describe(context.Background(), rep)
	require.NoError(t, err)
	require.Contains(t, desc.Text, "Повреждения не обнаружены")
	require.NotContains(t, desc.Text, "По типам дефектов")
	require.Contains(t, desc.Text, "Модели повреждений не подключены")
}

func TestTextDescriber_NilReport(t *testing.T) {
	_, err := NewTextDescriber().Describe(context.Background(), nil)
	require.Error(t, err)
}
