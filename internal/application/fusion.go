package app

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"car-inspect/internal/domain/analysis"
	"car-inspect/internal/domain/entity"
	"car-inspect/internal/domain/port"
)

// FusionConfig задаёт параметры фильтрации, слияния и скоринга.
type FusionConfig struct {
	MinArea         float64
	IoUThreshold    float64
	CoverageSamples int
	DamageClasses   []string
}

// DefaultFusionConfig возвращает значения по умолчанию.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		MinArea:         analysis.DefaultMinArea,
		IoUThreshold:    analysis.DefaultIoUThreshold,
		CoverageSamples: analysis.DefaultCoverageSamples,
		DamageClasses:   analysis.DefaultDamageClasses,
	}
}

// FusionEngine запускает все модели на одном входе и сливает их ответы.
// Набор моделей фиксируется при создании и дальше только читается.
type FusionEngine struct {
	oracles  []port.DetectionOracle
	filter   analysis.Postprocessor
	cfg      FusionConfig
	log      *zap.SugaredLogger
	recorder port.PipelineRecorder
}

// NewFusionEngine создаёт движок; nil-модели (не загрузившиеся) пропускаются.
func NewFusionEngine(oracles []port.DetectionOracle, cfg FusionConfig, log *zap.SugaredLogger, recorder port.PipelineRecorder) *FusionEngine {
	loaded := make([]port.DetectionOracle, 0, len(oracles))
	for _, o := range oracles {
		if o != nil {
			loaded = append(loaded, o)
		}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if cfg.CoverageSamples <= 0 {
		cfg.CoverageSamples = analysis.DefaultCoverageSamples
	}
	if cfg.IoUThreshold <= 0 {
		cfg.IoUThreshold = analysis.DefaultIoUThreshold
	}

	return &FusionEngine{
		oracles:  loaded,
		filter:   analysis.Chain(analysis.NewFiniteFilter(), analysis.NewAreaFilter(cfg.MinArea)),
		cfg:      cfg,
		log:      log,
		recorder: recorder,
	}
}

// Available возвращает число загруженных моделей.
func (e *FusionEngine) Available() int {
	return len(e.oracles)
}

// DetectStatic запускает все модели параллельно и ждёт всех перед слиянием.
// Ошибка возвращается только если отменён ctx.
func (e *FusionEngine) DetectStatic(ctx context.Context, img image.Image) (*entity.FusedResult, error) {
	results := make([][]entity.RawDetection, len(e.oracles))
	errs := make([]error, len(e.oracles))

	var g errgroup.Group
	for i, o := range e.oracles {
		i, o := i, o
		g.Go(func() error {
			// каждая задача пишет только в свой слот
			results[i], errs[i] = e.invoke(o, func() ([]entity.RawDetection, error) {
				return o.DetectStatic(ctx, img)
			})
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	return e.fuse(results, errs, b.Dx(), b.Dy()), nil
}

// DetectFrame вызывает модели по очереди в текущей горутине.
func (e *FusionEngine) DetectFrame(frame entity.Frame) *entity.FusedResult {
	results := make([][]entity.RawDetection, len(e.oracles))
	errs := make([]error, len(e.oracles))
	for i, o := range e.oracles {
		results[i], errs[i] = e.invoke(o, func() ([]entity.RawDetection, error) {
			return o.DetectFrame(frame.Pixels, frame.Orientation)
		})
	}

	w, h := frame.Size()
	return e.fuse(results, errs, w, h)
}

// invoke вызывает модель, превращая панику в ошибку.
func (e *FusionEngine) invoke(o port.DetectionOracle, call func() ([]entity.RawDetection, error)) (dets []entity.RawDetection, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			dets, err = nil, fmt.Errorf("oracle %s panicked: %v", o.Name(), r)
		}
		e.recorder.OracleCall(o.Name(), time.Since(start), err)
	}()

	dets, err = call()
	if err != nil {
		return nil, fmt.Errorf("oracle %s: %w", o.Name(), err)
	}
	return dets, nil
}

func (e *FusionEngine) fuse(results [][]entity.RawDetection, errs []error, width, height int) *entity.FusedResult {
	var combined error
	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			combined = multierr.Append(combined, err)
		}
	}
	if combined != nil {
		e.log.Warnw("oracle calls failed", "failed", failed, "total", len(errs), "error", combined)
	}

	all := make([]entity.Detection, 0)
	for _, raw := range results {
		for _, r := range e.filter(raw) {
			all = append(all, entity.NewDetection(r))
		}
	}

	dets := analysis.Suppress(all, e.cfg.IoUThreshold)
	return &entity.FusedResult{
		Detections:     dets,
		ImageWidth:     width,
		ImageHeight:    height,
		ClassCoverage:  analysis.CoverageByClass(dets, e.cfg.DamageClasses, e.cfg.CoverageSamples),
		TotalCoverage:  analysis.TotalCoverage(dets, e.cfg.CoverageSamples),
		DamageScore:    analysis.DamageScore(dets, e.cfg.DamageClasses),
		OraclesQueried: len(e.oracles),
		OracleErrors:   failed,
	}
}

type nopRecorder struct{}

func (nopRecorder) OracleCall(string, time.Duration, error) {}
func (nopRecorder) FrameOffered()                          {}
func (nopRecorder) FrameDropped(string)                    {}
func (nopRecorder) InferenceDone(time.Duration, int)       {}
func (nopRecorder) SetBusy(bool)                           {}
