// Package httpapi обслуживает HTTP-запросы инспекции: фото, живые кадры, состояние.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	app "car-inspect/internal/application"
	"car-inspect/internal/domain/entity"
)

const (
	// DefaultMaxUploadBytes предел размера загружаемого изображения.
	DefaultMaxUploadBytes = 20 << 20
	// DefaultRequestTimeout предел времени на статическую инспекцию.
	DefaultRequestTimeout = 60 * time.Second

	imageField       = "image"
	orientationField = "orientation"
)

// Handlers обслуживает запросы к сервисам приложения.
type Handlers struct {
	inspection     *app.InspectionService
	live           *app.FrameScheduler
	hasClassifier  bool
	metrics        http.Handler
	maxUpload      int64
	requestTimeout time.Duration
	log            *zap.SugaredLogger
}

// Options необязательные параметры HTTP-поверхности.
type Options struct {
	HasClassifier  bool
	Metrics        http.Handler
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

func NewHandlers(inspection *app.InspectionService, live *app.FrameScheduler, opts Options, log *zap.SugaredLogger) *Handlers {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handlers{
		inspection:     inspection,
		live:           live,
		hasClassifier:  opts.HasClassifier,
		metrics:        opts.Metrics,
		maxUpload:      opts.MaxUploadBytes,
		requestTimeout: opts.RequestTimeout,
		log:            log,
	}
}

type healthResponse struct {
	Status     string `json:"status"`
	Oracles    int    `json:"oracles"`
	Classifier bool   `json:"classifier"`
	LiveBusy   bool   `json:"live_busy"`
}

// Health сообщает, сколько моделей загружено. Ноль моделей не ошибка:
// сервис отвечает пустыми результатами.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "ok",
		Oracles:    h.inspection.Engine().Available(),
		Classifier: h.hasClassifier,
	}
	if resp.Oracles == 0 {
		resp.Status = "degraded"
	}
	if h.live != nil {
		resp.LiveBusy = h.live.State().Busy
	}
	writeJSON(w, http.StatusOK, resp)
}

// Inspect полная инспекция фото: повреждения и чистота.
func (h *Handlers) Inspect(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readImage(w, r)
	if !ok {
		return
	}

	report, err := h.inspection.Inspect(r.Context(), data)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Detect только детекция повреждений.
func (h *Handlers) Detect(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readImage(w, r)
	if !ok {
		return
	}

	img, err := h.inspection.Decode(data)
	if err != nil {
		h.writeError(w, err)
		return
	}
	result, err := h.inspection.DetectAll(r.Context(), img)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type cleanlinessResponse struct {
	entity.CleanlinessEstimate
	Label entity.Cleanliness `json:"label"`
}

// Cleanliness только оценка чистоты.
func (h *Handlers) Cleanliness(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readImage(w, r)
	if !ok {
		return
	}

	img, err := h.inspection.Decode(data)
	if err != nil {
		h.writeError(w, err)
		return
	}
	est := h.inspection.ClassifyCleanliness(r.Context(), img)
	writeJSON(w, http.StatusOK, cleanlinessResponse{CleanlinessEstimate: est, Label: est.Label()})
}

// OfferFrame подаёт кадр в живую сессию. 200 с результатом, если кадр принят,
// 204, если отброшен.
func (h *Handlers) OfferFrame(w http.ResponseWriter, r *http.Request) {
	if h.live == nil {
		http.Error(w, "live session is not running", http.StatusServiceUnavailable)
		return
	}
	data, ok := h.readImage(w, r)
	if !ok {
		return
	}

	img, err := h.inspection.Decode(data)
	if err != nil {
		h.writeError(w, err)
		return
	}

	frame := entity.Frame{
		Pixels:      img,
		Orientation: entity.ParseOrientation(r.FormValue(orientationField)),
	}
	result, accepted, err := h.live.OfferFrame(r.Context(), frame)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !accepted {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// LiveState отдаёт снимок состояния живой сессии.
func (h *Handlers) LiveState(w http.ResponseWriter, r *http.Request) {
	if h.live == nil {
		http.Error(w, "live session is not running", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, h.live.State())
}

// LiveStream транслирует результаты живой сессии как server-sent events.
func (h *Handlers) LiveStream(w http.ResponseWriter, r *http.Request) {
	if h.live == nil {
		http.Error(w, "live session is not running", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	id, updates := h.live.Subscribe()
	defer h.live.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: hello\ndata: {\"subscription\":%q}\n\n", id)
	flusher.Flush()

	clientGone := r.Context().Done()
	for {
		select {
		case res, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(res)
			if err != nil {
				h.log.Warnw("marshal live result", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: result\ndata: %s\n\n", data)
			flusher.Flush()
		case <-clientGone:
			return
		}
	}
}

// readImage читает файл изображения из multipart-поля image или сырое тело запроса.
func (h *Handlers) readImage(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	var src io.Reader = r.Body
	if isMultipart(r) {
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			h.writeError(w, err)
			return nil, false
		}
		file, _, err := r.FormFile(imageField)
		if err != nil {
			http.Error(w, "Failed to get file", http.StatusBadRequest)
			return nil, false
		}
		defer file.Close()
		src = file
	}

	data, err := io.ReadAll(src)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	if len(data) == 0 {
		http.Error(w, "empty image", http.StatusBadRequest)
		return nil, false
	}
	return data, true
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, entity.ErrUndecodableImage):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &tooLarge):
		http.Error(w, "image too large", http.StatusRequestEntityTooLarge)
	case errors.Is(err, app.ErrSchedulerClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.log.Errorw("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
