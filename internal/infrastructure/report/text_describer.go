// Package report превращает отчёт инспекции в текст для чата.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"car-inspect/internal/domain/analysis"
	"car-inspect/internal/domain/entity"
	"car-inspect/internal/domain/port"
)

// TextDescriber описывает отчёт обычным текстом на русском.
type TextDescriber struct{}

func NewTextDescriber() TextDescriber {
	return TextDescriber{}
}

func (TextDescriber) Describe(ctx context.Context, report *entity.InspectionReport) (*entity.Description, error) {
	_ = ctx
	if report == nil {
		return nil, fmt.Errorf("nil report")
	}
	res := report.Result

	var b strings.Builder
	if report.Damaged {
		b.WriteString("⚠️ Повреждения обнаружены\n")
	} else {
		b.WriteString("✅ Повреждения не обнаружены\n")
	}
	fmt.Fprintf(&b, "Итоговая повреждённость: %d%%\n", percent(res.DamageScore))
	fmt.Fprintf(&b, "Покрытие: %d%%\n", percent(res.TotalCoverage))

	classes := make([]string, 0, len(res.ClassCoverage))
	for cls := range res.ClassCoverage {
		classes = append(classes, cls)
	}
	sort.Strings(classes)
	maxima := analysis.ClassMaxima(res.Detections, classes)

	if len(res.Detections) > 0 {
		b.WriteString("\nПо типам дефектов:\n")
		for _, cls := range classes {
			if maxima[cls] == 0 {
				continue
			}
			fmt.Fprintf(&b, "• %s: уверенность %d%%, покрытие %d%%\n",
				cls, percent(maxima[cls]), percent(res.ClassCoverage[cls]))
		}
	}

	c := report.Cleanliness
	fmt.Fprintf(&b, "\n🧽 Чистота: %d%% грязный • %d%% чистый", percent(c.PDirty), percent(c.PClean))
	if c.Label() == entity.Dirty {
		b.WriteString(" (рекомендуется мойка)")
	}

	if res.OraclesQueried == 0 {
		b.WriteString("\n\nℹ️ Модели повреждений не подключены, результат пустой.")
	} else if res.OracleErrors > 0 {
		fmt.Fprintf(&b, "\n\nℹ️ Не ответили моделей: %d из %d.", res.OracleErrors, res.OraclesQueried)
	}

	return &entity.Description{Text: b.String()}, nil
}

// percent округляет вниз, как в процентах на экране приложения.
func percent(v float64) int {
	return int(v * 100)
}

var _ port.DefectDescriber = TextDescriber{}
