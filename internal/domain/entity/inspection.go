package entity

import (
	"errors"
	"time"
)

// ErrUndecodableImage возвращается, когда байты не удалось декодировать в изображение.
var ErrUndecodableImage = errors.New("image cannot be decoded")

// FusedResult хранит итог анализа одного изображения или кадра.
type FusedResult struct {
	Detections     []Detection        `json:"detections"`
	ImageWidth     int                `json:"image_width"`
	ImageHeight    int                `json:"image_height"`
	ClassCoverage  map[string]float64 `json:"class_coverage"`
	TotalCoverage  float64            `json:"total_coverage"`
	DamageScore    float64            `json:"damage_score"`
	OraclesQueried int                `json:"oracles_queried"`
	OracleErrors   int                `json:"oracle_errors"`
}

// InspectionReport полный отчёт по фотографии: повреждения и чистота.
type InspectionReport struct {
	ID          string              `json:"id"`
	CreatedAt   time.Time           `json:"created_at"`
	Result      FusedResult         `json:"result"`
	Cleanliness CleanlinessEstimate `json:"cleanliness"`
	Damaged     bool                `json:"damaged"`
}

// Description текстовое описание отчёта для пользователя.
type Description struct {
	Text string
}
