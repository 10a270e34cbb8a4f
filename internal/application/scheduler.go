package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"car-inspect/internal/domain/entity"
	"car-inspect/internal/domain/port"
)

// ErrSchedulerClosed возвращается при подаче кадра в остановленный планировщик.
var ErrSchedulerClosed = errors.New("frame scheduler is closed")

// DefaultTargetRate целевая частота инференса, кадров в секунду.
const DefaultTargetRate = 10.0

// FrameDetector путь обработки кадра в движке слияния.
type FrameDetector interface {
	DetectFrame(frame entity.Frame) *entity.FusedResult
}

// SchedulerConfig параметры живой сессии.
type SchedulerConfig struct {
	TargetRate       float64 // инференсов в секунду
	SubscriberBuffer int     // размер буфера канала подписчика
}

// LiveState снимок состояния планировщика.
type LiveState struct {
	Busy            bool                `json:"busy"`
	LastInference   time.Time           `json:"last_inference"`
	Offered         uint64              `json:"offered"`
	Accepted        uint64              `json:"accepted"`
	DroppedThrottle uint64              `json:"dropped_throttle"`
	DroppedBusy     uint64              `json:"dropped_busy"`
	Completed       uint64              `json:"completed"`
	Subscribers     int                 `json:"subscribers"`
	Latest          *entity.FusedResult `json:"latest,omitempty"`
}

type frameJob struct {
	frame entity.Frame
	reply chan *entity.FusedResult
}

// FrameScheduler пропускает кадры к движку не чаще TargetRate раз в секунду
// и не более одного инференса одновременно. Лишние кадры отбрасываются,
// очереди нет. Состояние меняется только методами планировщика и его воркером.
//
// Зависший вызов модели держит busy до своего завершения; таймаутов нет.
type FrameScheduler struct {
	detector FrameDetector
	clock    clock.Clock
	limiter  *rate.Limiter
	log      *zap.SugaredLogger
	recorder port.PipelineRecorder
	bufSize  int

	mu            sync.Mutex
	busy          bool
	closed        bool
	lastInference time.Time
	latest        *entity.FusedResult
	offered       uint64
	accepted      uint64
	dropThrottle  uint64
	dropBusy      uint64
	completed     uint64

	subsMu sync.Mutex
	subs   map[string]chan entity.FusedResult

	jobs chan frameJob
	done chan struct{}
	wg   sync.WaitGroup
}

// NewFrameScheduler создаёт планировщик и запускает его воркер.
func NewFrameScheduler(detector FrameDetector, cfg SchedulerConfig, clk clock.Clock, log *zap.SugaredLogger, recorder port.PipelineRecorder) *FrameScheduler {
	if cfg.TargetRate <= 0 {
		cfg.TargetRate = DefaultTargetRate
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = 1
	}
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	s := &FrameScheduler{
		detector: detector,
		clock:    clk,
		limiter:  rate.NewLimiter(rate.Limit(cfg.TargetRate), 1),
		log:      log,
		recorder: recorder,
		bufSize:  cfg.SubscriberBuffer,
		subs:     make(map[string]chan entity.FusedResult),
		jobs:     make(chan frameJob, 1),
		done:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()
	return s
}

// Offer передаёт кадр воркеру, не дожидаясь результата.
// Возвращает false, если кадр отброшен.
func (s *FrameScheduler) Offer(frame entity.Frame) (bool, error) {
	return s.admit(frame, nil)
}

// OfferFrame передаёт кадр и, если он принят, ждёт результат инференса.
// Для отброшенного кадра возвращает (nil, false, nil). Отмена ctx не
// прерывает инференс: результат всё равно будет опубликован подписчикам.
func (s *FrameScheduler) OfferFrame(ctx context.Context, frame entity.Frame) (*entity.FusedResult, bool, error) {
	reply := make(chan *entity.FusedResult, 1)
	ok, err := s.admit(frame, reply)
	if err != nil || !ok {
		return nil, false, err
	}

	select {
	case res := <-reply:
		return res, true, nil
	case <-ctx.Done():
		return nil, true, ctx.Err()
	}
}

func (s *FrameScheduler) admit(frame entity.Frame, reply chan *entity.FusedResult) (bool, error) {
	if frame.Timestamp.IsZero() {
		frame.Timestamp = s.clock.Now()
	}
	now := frame.Timestamp

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrSchedulerClosed
	}
	s.offered++
	s.recorder.FrameOffered()

	if s.limiter.TokensAt(now) < 1 {
		s.dropThrottle++
		s.recorder.FrameDropped(port.DropThrottled)
		return false, nil
	}
	if s.busy {
		s.dropBusy++
		s.recorder.FrameDropped(port.DropBusy)
		s.log.Debugw("frame dropped, inference in flight", "ts", now)
		return false, nil
	}

	s.limiter.AllowN(now, 1)
	s.busy = true
	s.lastInference = now
	s.accepted++
	s.recorder.SetBusy(true)

	// в буфере всегда есть место: пока busy, второй кадр сюда не попадёт
	s.jobs <- frameJob{frame: frame, reply: reply}
	return true, nil
}

func (s *FrameScheduler) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			// принятый до остановки кадр всё равно обрабатываем
			select {
			case job := <-s.jobs:
				s.process(job)
			default:
			}
			return
		case job := <-s.jobs:
			s.process(job)
		}
	}
}

func (s *FrameScheduler) process(job frameJob) {
	start := s.clock.Now()
	res := s.detector.DetectFrame(job.frame)
	s.recorder.InferenceDone(s.clock.Since(start), len(res.Detections))

	// следующий кадр обработает этот же воркер только после publish,
	// поэтому порядок публикаций совпадает с порядком инференсов
	s.mu.Lock()
	s.latest = res
	s.completed++
	s.busy = false
	s.recorder.SetBusy(false)
	s.mu.Unlock()

	s.publish(*res)
	if job.reply != nil {
		job.reply <- res
	}
}

// publish отдаёт результат каждому подписчику; у отстающего подписчика
// самый старый непрочитанный результат заменяется новым.
func (s *FrameScheduler) publish(res entity.FusedResult) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for id, ch := range s.subs {
		select {
		case ch <- res:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- res:
		default:
			s.log.Debugw("subscriber lagging, result skipped", "subscriber", id)
		}
	}
}

// Subscribe регистрирует подписчика на результаты живой сессии.
func (s *FrameScheduler) Subscribe() (string, <-chan entity.FusedResult) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := uuid.NewString()
	ch := make(chan entity.FusedResult, s.bufSize)
	s.subs[id] = ch
	s.log.Debugw("subscriber added", "subscriber", id, "total", len(s.subs))
	return id, ch
}

// Unsubscribe удаляет подписчика и закрывает его канал.
func (s *FrameScheduler) Unsubscribe(id string) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

// Latest возвращает последний завершённый результат или nil.
func (s *FrameScheduler) Latest() *entity.FusedResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// State возвращает снимок состояния.
func (s *FrameScheduler) State() LiveState {
	s.subsMu.Lock()
	subs := len(s.subs)
	s.subsMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return LiveState{
		Busy:            s.busy,
		LastInference:   s.lastInference,
		Offered:         s.offered,
		Accepted:        s.accepted,
		DroppedThrottle: s.dropThrottle,
		DroppedBusy:     s.dropBusy,
		Completed:       s.completed,
		Subscribers:     subs,
		Latest:          s.latest,
	}
}

// Close останавливает воркер (дожидаясь текущего инференса) и закрывает каналы подписчиков.
func (s *FrameScheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()

	s.subsMu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subsMu.Unlock()
}
