package port

import (
	"context"

	"car-inspect/internal/domain/entity"
)

// DefectDescriber интерфейс описателя отчёта
type DefectDescriber interface {
	// Describe генерирует текстовое описание найденных дефектов и чистоты
	Describe(ctx context.Context, report *entity.InspectionReport) (*entity.Description, error)
}
