package app

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"time"

	"car-inspect/internal/domain/entity"
)

type fakeOracle struct {
	name   string
	dets   []entity.RawDetection
	err    error
	delay  time.Duration
	panics bool
	before func()
	calls  atomic.Int32
}

func (f *fakeOracle) Name() string { return f.name }

func (f *fakeOracle) DetectStatic(ctx context.Context, img image.Image) ([]entity.RawDetection, error) {
	return f.detect()
}

func (f *fakeOracle) DetectFrame(frame image.Image, orientation entity.Orientation) ([]entity.RawDetection, error) {
	return f.detect()
}

func (f *fakeOracle) detect() ([]entity.RawDetection, error) {
	f.calls.Add(1)
	if f.before != nil {
		f.before()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panics {
		panic("model crashed")
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]entity.RawDetection, len(f.dets))
	copy(out, f.dets)
	return out, nil
}

type fakeClassifier struct {
	out []entity.Classification
	err error
}

func (f *fakeClassifier) Classify(ctx context.Context, img image.Image) ([]entity.Classification, error) {
	return f.out, f.err
}

type fakeDecoder struct{}

func (fakeDecoder) Decode(data []byte) (image.Image, error) {
	if string(data) != "jpeg" {
		return nil, errors.New("unknown format")
	}
	return image.NewRGBA(image.Rect(0, 0, 64, 48)), nil
}

func raw(label string, conf float64, box entity.Rect) entity.RawDetection {
	return entity.RawDetection{Label: label, Confidence: conf, Box: box}
}

// scenarioOracles две царапины с IoU ≈ 0.9 и вмятина в отдельных моделях.
func scenarioOracles() []*fakeOracle {
	return []*fakeOracle{
		{name: "scratches", dets: []entity.RawDetection{
			raw("scratch", 0.8, entity.Rect{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.1}),
			raw("scratch", 0.6, entity.Rect{X: 0.11, Y: 0.1, Width: 0.2, Height: 0.1}),
		}},
		{name: "dent", dets: []entity.RawDetection{
			raw("dent", 0.4, entity.Rect{X: 0.6, Y: 0.6, Width: 0.1, Height: 0.1}),
		}},
		{name: "rust"},
	}
}
