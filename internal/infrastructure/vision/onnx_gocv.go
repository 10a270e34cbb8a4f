//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"car-inspect/internal/domain/entity"
	"car-inspect/internal/domain/port"
)

// onnxNet загруженная сеть. gocv.Net не потокобезопасен, поэтому вызовы сериализуются.
type onnxNet struct {
	mu   sync.Mutex
	net  gocv.Net
	size int
}

func loadNet(path string, size int) (*onnxNet, error) {
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("load onnx model %q: %w", path, ErrUnavailable)
	}
	if size <= 0 {
		size = DefaultInputSize
	}
	return &onnxNet{net: net, size: size}, nil
}

// forward прогоняет изображение через сеть и возвращает плоский выход и его форму.
func (n *onnxNet) forward(img image.Image, size image.Point) ([]float32, []int, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, nil, fmt.Errorf("image to mat: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, nil, errors.New("empty image")
	}

	// ImageToMatRGB отдаёт BGR, сеть ждёт RGB.
	blob := gocv.BlobFromImage(mat, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	n.mu.Lock()
	defer n.mu.Unlock()

	n.net.SetInput(blob, "")
	out := n.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, nil, fmt.Errorf("read output: %w", err)
	}
	// данные принадлежат out, копируем до Close
	cp := make([]float32, len(data))
	copy(cp, data)
	return cp, out.Size(), nil
}

func (n *onnxNet) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.net.Close()
}

// ONNXDetector локальный YOLO-детектор на OpenCV DNN.
type ONNXDetector struct {
	name   string
	labels []string
	floor  float64
	net    *onnxNet
}

// NewONNXDetector загружает модель из файла path.
func NewONNXDetector(name, path string, labels []string, opts Options) (*ONNXDetector, error) {
	opts = opts.withDefaults()
	net, err := loadNet(path, opts.InputSize)
	if err != nil {
		return nil, err
	}
	return &ONNXDetector{name: name, labels: labels, floor: opts.ScoreFloor, net: net}, nil
}

func (d *ONNXDetector) Name() string { return d.name }

// DetectStatic запускает модель на фотографии.
func (d *ONNXDetector) DetectStatic(ctx context.Context, img image.Image) ([]entity.RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := d.net.size
	data, shape, err := d.net.forward(img, image.Pt(size, size))
	if err != nil {
		return nil, err
	}
	return decodeYOLO(data, shape, d.labels, size, d.floor)
}

// DetectFrame поворачивает кадр и запускает модель.
func (d *ONNXDetector) DetectFrame(frame image.Image, orientation entity.Orientation) ([]entity.RawDetection, error) {
	return d.DetectStatic(context.Background(), Upright(frame, orientation))
}

// Close освобождает сеть.
func (d *ONNXDetector) Close() error { return d.net.Close() }

// ONNXClassifier классификатор изображения целиком.
type ONNXClassifier struct {
	labels []string
	net    *onnxNet
}

// NewONNXClassifier загружает модель классификатора из файла path.
func NewONNXClassifier(path string, labels []string, opts Options) (*ONNXClassifier, error) {
	opts = opts.withDefaults()
	net, err := loadNet(path, opts.ClassifierInputSize)
	if err != nil {
		return nil, err
	}
	return &ONNXClassifier{labels: labels, net: net}, nil
}

// Classify возвращает вероятности классов.
func (c *ONNXClassifier) Classify(ctx context.Context, img image.Image) ([]entity.Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := c.net.size
	data, _, err := c.net.forward(img, image.Pt(size, size))
	if err != nil {
		return nil, err
	}
	return classScores(data, c.labels), nil
}

// Close освобождает сеть.
func (c *ONNXClassifier) Close() error { return c.net.Close() }

var (
	_ port.DetectionOracle = (*ONNXDetector)(nil)
	_ port.Classifier      = (*ONNXClassifier)(nil)
)
