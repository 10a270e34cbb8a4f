package port

import (
	"context"
	"image"

	"car-inspect/internal/domain/entity"
)

// DetectionOracle интерфейс обученного детектора дефектов
type DetectionOracle interface {
	// Name возвращает имя модели для логов и метрик
	Name() string

	// DetectStatic ищет объекты на фотографии; может блокироваться
	DetectStatic(ctx context.Context, img image.Image) ([]entity.RawDetection, error)

	// DetectFrame ищет объекты на кадре видеопотока, поворачивая его по orientation
	DetectFrame(frame image.Image, orientation entity.Orientation) ([]entity.RawDetection, error)
}

// Classifier интерфейс классификатора изображения целиком
type Classifier interface {
	// Classify возвращает метки классов с уверенностями
	Classify(ctx context.Context, img image.Image) ([]entity.Classification, error)
}
