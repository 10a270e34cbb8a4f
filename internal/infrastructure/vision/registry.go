package vision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"car-inspect/internal/domain/port"
)

// ErrUnknownKind в описании модели указан незарегистрированный тип.
var ErrUnknownKind = errors.New("unknown oracle kind")

const (
	KindONNX   = "onnx"
	KindRemote = "remote"
)

// OracleSpec описывает одну модель: "name=kind:target".
type OracleSpec struct {
	Name   string
	Kind   string
	Target string
	Labels []string
}

func (s OracleSpec) String() string {
	return fmt.Sprintf("%s=%s:%s", s.Name, s.Kind, s.Target)
}

// ParseSpec разбирает одно описание модели.
func ParseSpec(raw string) (OracleSpec, error) {
	raw = strings.TrimSpace(raw)
	name, rest, ok := strings.Cut(raw, "=")
	if !ok {
		return OracleSpec{}, fmt.Errorf("oracle spec %q: expected name=kind:target", raw)
	}
	kind, target, ok := strings.Cut(rest, ":")
	name, kind, target = strings.TrimSpace(name), strings.TrimSpace(kind), strings.TrimSpace(target)
	if !ok || name == "" || kind == "" || target == "" {
		return OracleSpec{}, fmt.Errorf("oracle spec %q: expected name=kind:target", raw)
	}
	return OracleSpec{Name: name, Kind: strings.ToLower(kind), Target: target}, nil
}

// ParseSpecs разбирает список описаний через запятую. Пустая строка даёт пустой список.
func ParseSpecs(raw string) ([]OracleSpec, error) {
	var specs []OracleSpec
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		spec, err := ParseSpec(part)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[spec.Name]; dup {
			return nil, fmt.Errorf("oracle %q declared twice", spec.Name)
		}
		seen[spec.Name] = struct{}{}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Options общие параметры адаптеров.
type Options struct {
	InputSize           int
	ClassifierInputSize int
	ScoreFloor          float64
	Timeout             time.Duration
}

func (o Options) withDefaults() Options {
	if o.InputSize <= 0 {
		o.InputSize = DefaultInputSize
	}
	if o.ClassifierInputSize <= 0 {
		o.ClassifierInputSize = 224
	}
	if o.ScoreFloor <= 0 {
		o.ScoreFloor = DefaultScoreFloor
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultRemoteTimeout
	}
	return o
}

// DetectorFactory строит детектор по описанию.
type DetectorFactory func(spec OracleSpec, opts Options) (port.DetectionOracle, error)

// ClassifierFactory строит классификатор по описанию.
type ClassifierFactory func(spec OracleSpec, opts Options) (port.Classifier, error)

// Registry хранит фабрики моделей по типу.
type Registry struct {
	opts        Options
	log         *zap.SugaredLogger
	detectors   map[string]DetectorFactory
	classifiers map[string]ClassifierFactory
	closers     []io.Closer
}

// NewRegistry создаёт реестр со встроенными типами onnx и remote.
func NewRegistry(opts Options, log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := &Registry{
		opts:        opts.withDefaults(),
		log:         log,
		detectors:   make(map[string]DetectorFactory),
		classifiers: make(map[string]ClassifierFactory),
	}

	r.RegisterDetector(KindONNX, func(spec OracleSpec, opts Options) (port.DetectionOracle, error) {
		return NewONNXDetector(spec.Name, spec.Target, spec.Labels, opts)
	})
	r.RegisterDetector(KindRemote, func(spec OracleSpec, opts Options) (port.DetectionOracle, error) {
		return NewRemoteDetector(spec.Name, spec.Target, opts.Timeout), nil
	})
	r.RegisterClassifier(KindONNX, func(spec OracleSpec, opts Options) (port.Classifier, error) {
		return NewONNXClassifier(spec.Target, spec.Labels, opts)
	})
	r.RegisterClassifier(KindRemote, func(spec OracleSpec, opts Options) (port.Classifier, error) {
		return NewRemoteClassifier(spec.Target, opts.Timeout), nil
	})
	return r
}

// RegisterDetector добавляет или заменяет фабрику детекторов.
func (r *Registry) RegisterDetector(kind string, f DetectorFactory) {
	r.detectors[strings.ToLower(kind)] = f
}

// RegisterClassifier добавляет или заменяет фабрику классификаторов.
func (r *Registry) RegisterClassifier(kind string, f ClassifierFactory) {
	r.classifiers[strings.ToLower(kind)] = f
}

// Kinds возвращает зарегистрированные типы детекторов.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.detectors))
	for k := range r.detectors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// BuildDetectors строит детекторы в порядке описаний.
// Модель, которую не удалось построить, пропускается с предупреждением в логе.
func (r *Registry) BuildDetectors(specs []OracleSpec) []port.DetectionOracle {
	out := make([]port.DetectionOracle, 0, len(specs))
	for _, spec := range specs {
		f, ok := r.detectors[spec.Kind]
		if !ok {
			r.log.Warnw("oracle skipped", "oracle", spec.Name, "kind", spec.Kind, "error", ErrUnknownKind)
			continue
		}
		d, err := f(spec, r.opts)
		if err != nil {
			r.log.Warnw("oracle skipped", "oracle", spec.Name, "kind", spec.Kind, "error", err)
			continue
		}
		r.track(d)
		r.log.Infow("oracle loaded", "oracle", spec.Name, "kind", spec.Kind)
		out = append(out, d)
	}
	return out
}

// BuildClassifier строит классификатор чистоты; nil, если описания нет или построить не удалось.
func (r *Registry) BuildClassifier(spec *OracleSpec) port.Classifier {
	if spec == nil {
		return nil
	}
	f, ok := r.classifiers[spec.Kind]
	if !ok {
		r.log.Warnw("classifier skipped", "classifier", spec.Name, "kind", spec.Kind, "error", ErrUnknownKind)
		return nil
	}
	c, err := f(*spec, r.opts)
	if err != nil {
		r.log.Warnw("classifier skipped", "classifier", spec.Name, "kind", spec.Kind, "error", err)
		return nil
	}
	r.track(c)
	r.log.Infow("classifier loaded", "classifier", spec.Name, "kind", spec.Kind)
	return c
}

func (r *Registry) track(v any) {
	if c, ok := v.(io.Closer); ok {
		r.closers = append(r.closers, c)
	}
}

// Close освобождает загруженные модели.
func (r *Registry) Close() error {
	var err error
	for _, c := range r.closers {
		err = multierr.Append(err, c.Close())
	}
	r.closers = nil
	return err
}

// HealthChecker модель, доступность которой можно проверить заранее.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// CheckHealth проверяет доступность удалённых моделей. Недоступность только логируется:
// запросы к такой модели будут падать по отдельности и не ломают слияние.
func (r *Registry) CheckHealth(ctx context.Context, oracles []port.DetectionOracle) {
	for _, o := range oracles {
		hc, ok := o.(HealthChecker)
		if !ok {
			continue
		}
		if err := hc.CheckHealth(ctx); err != nil {
			r.log.Warnw("oracle health check failed", "oracle", o.Name(), "error", err)
		}
	}
}
