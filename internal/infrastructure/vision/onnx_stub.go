//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"fmt"
	"image"

	"car-inspect/internal/domain/entity"
	"car-inspect/internal/domain/port"
)

var errNoGoCV = fmt.Errorf("gocv build tag is not enabled: %w", ErrUnavailable)

// ONNXDetector заглушка без OpenCV.
type ONNXDetector struct {
	name string
}

// NewONNXDetector возвращает ошибку, если сборка без тега gocv.
func NewONNXDetector(name, path string, labels []string, opts Options) (*ONNXDetector, error) {
	_ = path
	_ = labels
	_ = opts
	return nil, errNoGoCV
}

func (d *ONNXDetector) Name() string { return d.name }

// DetectStatic возвращает ошибку, если сборка без тега gocv.
func (d *ONNXDetector) DetectStatic(ctx context.Context, img image.Image) ([]entity.RawDetection, error) {
	_ = ctx
	_ = img
	return nil, errNoGoCV
}

// DetectFrame возвращает ошибку, если сборка без тега gocv.
func (d *ONNXDetector) DetectFrame(frame image.Image, orientation entity.Orientation) ([]entity.RawDetection, error) {
	_ = frame
	_ = orientation
	return nil, errNoGoCV
}

func (d *ONNXDetector) Close() error { return nil }

// ONNXClassifier заглушка без OpenCV.
type ONNXClassifier struct{}

// NewONNXClassifier возвращает ошибку, если сборка без тега gocv.
func NewONNXClassifier(path string, labels []string, opts Options) (*ONNXClassifier, error) {
	_ = path
	_ = labels
	_ = opts
	return nil, errNoGoCV
}

// Classify возвращает ошибку, если сборка без тега gocv.
func (c *ONNXClassifier) Classify(ctx context.Context, img image.Image) ([]entity.Classification, error) {
	_ = ctx
	_ = img
	return nil, errNoGoCV
}

func (c *ONNXClassifier) Close() error { return nil }

var (
	_ port.DetectionOracle = (*ONNXDetector)(nil)
	_ port.Classifier      = (*ONNXClassifier)(nil)
)
