package port

import "time"

// Причины, по которым планировщик отбрасывает кадр.
const (
	DropThrottled = "throttled"
	DropBusy      = "busy"
)

// PipelineRecorder собирает метрики конвейера инспекции
type PipelineRecorder interface {
	// OracleCall фиксирует вызов модели, err != nil для неудачного вызова
	OracleCall(oracle string, took time.Duration, err error)

	// FrameOffered фиксирует поступивший кадр
	FrameOffered()

	// FrameDropped фиксирует отброшенный кадр и причину
	FrameDropped(reason string)

	// InferenceDone фиксирует завершённый инференс по кадру
	InferenceDone(took time.Duration, detections int)

	// SetBusy отражает, идёт ли сейчас инференс
	SetBusy(busy bool)
}
