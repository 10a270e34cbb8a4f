package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"car-inspect/internal/domain/entity"
	"car-inspect/internal/domain/port"
)

// DefaultRemoteTimeout таймаут HTTP-клиента удалённой модели.
const DefaultRemoteTimeout = 10 * time.Second

// remoteClient отправляет кадр во внешний inference-сервис multipart-запросом.
type remoteClient struct {
	url        string
	httpClient *http.Client
}

func newRemoteClient(url string, timeout time.Duration) remoteClient {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return remoteClient{
		url:        strings.TrimRight(url, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c remoteClient) post(ctx context.Context, img image.Image, out any) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if err := imaging.Encode(part, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("inference failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CheckHealth проверяет доступность сервиса по {url}/health.
func (c remoteClient) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ml service unhealthy: %d", resp.StatusCode)
	}
	return nil
}

// remoteBox рамка в пикселях отправленного изображения, начало в левом верхнем углу.
type remoteBox struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

type remoteDetections struct {
	Detections  []remoteBox `json:"detections"`
	ImageWidth  int         `json:"image_width"`
	ImageHeight int         `json:"image_height"`
}

// RemoteDetector детектор во внешнем inference-сервисе.
type RemoteDetector struct {
	remoteClient
	name string
}

// NewRemoteDetector создаёт адаптер к сервису по адресу url.
func NewRemoteDetector(name, url string, timeout time.Duration) *RemoteDetector {
	return &RemoteDetector{remoteClient: newRemoteClient(url, timeout), name: name}
}

func (d *RemoteDetector) Name() string { return d.name }

// DetectStatic отправляет фото в сервис и переводит рамки в нормализованные координаты.
func (d *RemoteDetector) DetectStatic(ctx context.Context, img image.Image) ([]entity.RawDetection, error) {
	var resp remoteDetections
	if err := d.post(ctx, img, &resp); err != nil {
		return nil, err
	}

	w, h := resp.ImageWidth, resp.ImageHeight
	if w <= 0 || h <= 0 {
		w, h = img.Bounds().Dx(), img.Bounds().Dy()
	}

	out := make([]entity.RawDetection, 0, len(resp.Detections))
	for _, b := range resp.Detections {
		out = append(out, entity.RawDetection{
			Label:      b.Class,
			Confidence: b.Confidence,
			Box:        entity.RectFromPixels(b.X, b.Y, b.Width, b.Height, w, h),
		})
	}
	return out, nil
}

// DetectFrame поворачивает кадр и отправляет его так же, как фото.
// Время ответа ограничено таймаутом клиента.
func (d *RemoteDetector) DetectFrame(frame image.Image, orientation entity.Orientation) ([]entity.RawDetection, error) {
	return d.DetectStatic(context.Background(), Upright(frame, orientation))
}

type remoteClasses struct {
	Classes []struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"classes"`
}

// RemoteClassifier классификатор во внешнем inference-сервисе.
type RemoteClassifier struct {
	remoteClient
}

// NewRemoteClassifier создаёт адаптер к классификатору по адресу url.
func NewRemoteClassifier(url string, timeout time.Duration) *RemoteClassifier {
	return &RemoteClassifier{remoteClient: newRemoteClient(url, timeout)}
}

// Classify возвращает метки с уверенностями в порядке ответа сервиса.
func (c *RemoteClassifier) Classify(ctx context.Context, img image.Image) ([]entity.Classification, error) {
	var resp remoteClasses
	if err := c.post(ctx, img, &resp); err != nil {
		return nil, err
	}

	out := make([]entity.Classification, 0, len(resp.Classes))
	for _, cl := range resp.Classes {
		out = append(out, entity.Classification{Label: cl.Label, Confidence: cl.Confidence})
	}
	return out, nil
}

var (
	_ port.DetectionOracle = (*RemoteDetector)(nil)
	_ port.Classifier      = (*RemoteClassifier)(nil)
)
