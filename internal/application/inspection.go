package app

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"car-inspect/internal/domain/analysis"
	"car-inspect/internal/domain/entity"
	"car-inspect/internal/domain/port"
)

// DefaultDamagedThreshold оценка, начиная с которой авто считается повреждённым.
const DefaultDamagedThreshold = 0.5

var (
	errNoReport          = errors.New("no inspection report yet")
	ErrInspectionRunning = errors.New("inspection is already running")
)

// InspectionService собирает детекцию повреждений и оценку чистоты в отчёт.
type InspectionService struct {
	users            *UserService
	engine           *FusionEngine
	classifier       port.Classifier
	describer        port.DefectDescriber
	decoder          port.ImageDecoder
	reports          port.ReportRepository
	damagedThreshold float64
	clock            clock.Clock
	log              *zap.SugaredLogger
}

// InspectionOutput содержит отчёт и его текстовое описание.
type InspectionOutput struct {
	Report      *entity.InspectionReport
	Description *entity.Description
}

// InspectionDeps зависимости сервиса инспекции; classifier и describer необязательны.
type InspectionDeps struct {
	Users            *UserService
	Engine           *FusionEngine
	Classifier       port.Classifier
	Describer        port.DefectDescriber
	Decoder          port.ImageDecoder
	Reports          port.ReportRepository
	DamagedThreshold float64
	Clock            clock.Clock
	Log              *zap.SugaredLogger
}

// NewInspectionService создаёт сервис, который управляет инспекцией фото.
func NewInspectionService(deps InspectionDeps) *InspectionService {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop().Sugar()
	}
	if deps.DamagedThreshold <= 0 {
		deps.DamagedThreshold = DefaultDamagedThreshold
	}

	return &InspectionService{
		users:            deps.Users,
		engine:           deps.Engine,
		classifier:       deps.Classifier,
		describer:        deps.Describer,
		decoder:          deps.Decoder,
		reports:          deps.Reports,
		damagedThreshold: deps.DamagedThreshold,
		clock:            deps.Clock,
		log:              deps.Log,
	}
}

// Engine возвращает движок слияния.
func (s *InspectionService) Engine() *FusionEngine {
	return s.engine
}

// Decode декодирует изображение; единственная жёсткая ошибка статического пути.
func (s *InspectionService) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", entity.ErrUndecodableImage)
	}
	img, err := s.decoder.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrUndecodableImage, err)
	}
	return img, nil
}

// DetectAll ищет повреждения на фото. Отсутствие детекций не ошибка.
func (s *InspectionService) DetectAll(ctx context.Context, img image.Image) (*entity.FusedResult, error) {
	return s.engine.DetectStatic(ctx, img)
}

// ClassifyCleanliness оценивает чистоту; при любой ошибке возвращает 0.5/0.5.
func (s *InspectionService) ClassifyCleanliness(ctx context.Context, img image.Image) (est entity.CleanlinessEstimate) {
	if s.classifier == nil {
		return entity.FallbackCleanliness()
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Warnw("classifier panicked", "panic", r)
			est = entity.FallbackCleanliness()
		}
	}()

	cls, err := s.classifier.Classify(ctx, img)
	if err != nil {
		s.log.Warnw("cleanliness classifier failed", "error", err)
		return entity.FallbackCleanliness()
	}
	return analysis.Reconcile(cls)
}

// Inspect декодирует фото, параллельно запускает детекцию и классификацию
// чистоты и сохраняет отчёт.
func (s *InspectionService) Inspect(ctx context.Context, data []byte) (*entity.InspectionReport, error) {
	img, err := s.Decode(data)
	if err != nil {
		return nil, err
	}

	var (
		result      *entity.FusedResult
		cleanliness entity.CleanlinessEstimate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		result, err = s.DetectAll(gctx, img)
		return err
	})
	g.Go(func() error {
		cleanliness = s.ClassifyCleanliness(gctx, img)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("inspect: %w", err)
	}

	report := &entity.InspectionReport{
		ID:          uuid.NewString(),
		CreatedAt:   s.clock.Now(),
		Result:      *result,
		Cleanliness: cleanliness,
		Damaged:     result.DamageScore >= s.damagedThreshold,
	}

	if s.reports != nil {
		if err := s.reports.Save(ctx, report); err != nil {
			s.log.Warnw("report not saved", "report", report.ID, "error", err)
		}
	}

	s.log.Infow("inspection finished",
		"report", report.ID,
		"detections", len(result.Detections),
		"damage", result.DamageScore,
		"coverage", result.TotalCoverage,
		"cleanliness", cleanliness.Label(),
	)
	return report, nil
}

// ProcessPhoto проводит инспекцию для пользователя бота и описывает результат.
func (s *InspectionService) ProcessPhoto(ctx context.Context, userID, chatID int64, photo []byte) (*InspectionOutput, error) {
	user, err := s.users.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	if user.Busy() {
		return nil, ErrInspectionRunning
	}
	if _, err := s.users.SetState(ctx, userID, chatID, entity.StateProcessing); err != nil {
		return nil, err
	}

	report, err := s.Inspect(ctx, photo)
	if err != nil {
		if _, serr := s.users.Cancel(ctx, userID, chatID); serr != nil {
			s.log.Warnw("user state not reset", "user", userID, "error", serr)
		}
		return nil, err
	}

	if err := s.users.Finish(ctx, userID, report.ID); err != nil {
		return nil, err
	}

	return s.describe(ctx, report)
}

// LastReport возвращает последний отчёт пользователя с описанием.
func (s *InspectionService) LastReport(ctx context.Context, userID, chatID int64) (*InspectionOutput, error) {
	user, err := s.users.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	if user.LastReportID == "" || s.reports == nil {
		return nil, errNoReport
	}

	report, err := s.reports.Get(ctx, user.LastReportID)
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, report)
}

func (s *InspectionService) describe(ctx context.Context, report *entity.InspectionReport) (*InspectionOutput, error) {
	out := &InspectionOutput{Report: report}
	if s.describer == nil {
		return out, nil
	}

	desc, err := s.describer.Describe(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("describe report: %w", err)
	}
	out.Description = desc
	return out, nil
}

// IsNoReport сообщает, что у пользователя ещё нет отчётов.
func IsNoReport(err error) bool {
	return errors.Is(err, errNoReport)
}
