package port

import (
	"context"

	"car-inspect/internal/domain/entity"
)

// ReportRepository интерфейс хранилища отчётов
type ReportRepository interface {
	// Save сохраняет отчёт
	Save(ctx context.Context, report *entity.InspectionReport) error

	// Get возвращает отчёт по ID
	Get(ctx context.Context, id string) (*entity.InspectionReport, error)
}
