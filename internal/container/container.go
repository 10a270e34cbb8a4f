package container

import (
	"context"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"car-inspect/config"
	httpapi "car-inspect/internal/api/http"
	app "car-inspect/internal/application"
	"car-inspect/internal/domain/port"
	"car-inspect/internal/infrastructure/metrics"
	"car-inspect/internal/infrastructure/report"
	"car-inspect/internal/infrastructure/storage"
	"car-inspect/internal/infrastructure/vision"
)

type Container struct {
	UserService       *app.UserService
	InspectionService *app.InspectionService
	FusionEngine      *app.FusionEngine
	Scheduler         *app.FrameScheduler
	Metrics           *metrics.Pipeline
	HTTPHandler       http.Handler

	registry *vision.Registry
}

// Oracles построенные модели, которые передаются в New.
type Oracles struct {
	Detectors  []port.DetectionOracle
	Classifier port.Classifier
}

// BuildOracles строит модели из конфигурации. Ненастроенные или сломанные
// модели пропускаются, сервис при этом запускается.
func BuildOracles(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (Oracles, *vision.Registry) {
	registry := vision.NewRegistry(vision.Options{
		InputSize:  cfg.ONNXInputSize,
		ScoreFloor: cfg.ONNXScoreFloor,
		Timeout:    cfg.OracleTimeout,
	}, log.Named("registry"))

	detectors := registry.BuildDetectors(cfg.Detectors)
	registry.CheckHealth(ctx, detectors)

	return Oracles{
		Detectors:  detectors,
		Classifier: registry.BuildClassifier(cfg.Classifier),
	}, registry
}

func New(cfg *config.Config, oracles Oracles, registry *vision.Registry, log *zap.SugaredLogger) *Container {
	clk := clock.New()
	rec := metrics.New()

	engine := app.NewFusionEngine(oracles.Detectors, app.FusionConfig{
		MinArea:         cfg.MinArea,
		IoUThreshold:    cfg.IoUThreshold,
		CoverageSamples: cfg.CoverageSamples,
		DamageClasses:   cfg.DamageClasses,
	}, log.Named("fusion"), rec)

	userService := app.NewUserService(storage.NewMemoryUserRepository())
	inspectionService := app.NewInspectionService(app.InspectionDeps{
		Users:            userService,
		Engine:           engine,
		Classifier:       oracles.Classifier,
		Describer:        report.NewTextDescriber(),
		Decoder:          vision.NewDecoder(),
		Reports:          storage.NewMemoryReportRepository(storage.DefaultReportCapacity),
		DamagedThreshold: cfg.DamagedThreshold,
		Clock:            clk,
		Log:              log.Named("inspection"),
	})

	scheduler := app.NewFrameScheduler(engine, app.SchedulerConfig{
		TargetRate: cfg.TargetRate,
	}, clk, log.Named("scheduler"), rec)

	handlers := httpapi.NewHandlers(inspectionService, scheduler, httpapi.Options{
		HasClassifier:  oracles.Classifier != nil,
		Metrics:        rec.Handler(),
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, log.Named("http"))

	return &Container{
		UserService:       userService,
		InspectionService: inspectionService,
		FusionEngine:      engine,
		Scheduler:         scheduler,
		Metrics:           rec,
		HTTPHandler:       httpapi.NewRouter(handlers),
		registry:          registry,
	}
}

// NewHTTPServer создаёт HTTP-сервер. Shutdown закрывает живую сессию,
// чтобы завершились открытые SSE-потоки.
func (c *Container) NewHTTPServer(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           c.HTTPHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(c.Scheduler.Close)
	return srv
}

// Close останавливает живую сессию и освобождает модели.
func (c *Container) Close() error {
	c.Scheduler.Close()
	if c.registry == nil {
		return nil
	}
	return c.registry.Close()
}
