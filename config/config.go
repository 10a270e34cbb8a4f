package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"go.uber.org/multierr"

	"car-inspect/internal/infrastructure/vision"
)

type Config struct {
	TelegramToken string
	HTTPAddr      string
	LogLevel      string
	LogEncoding   string

	MinArea          float64
	IoUThreshold     float64
	CoverageSamples  int
	DamageClasses    []string
	TargetRate       float64
	DamagedThreshold float64
	MaxUploadBytes   int64

	Detectors  []vision.OracleSpec
	Classifier *vision.OracleSpec

	ONNXInputSize  int
	ONNXScoreFloor float64
	OracleTimeout  time.Duration
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		HTTPAddr:      envString("HTTP_ADDR", ":8080"),
		LogLevel:      envString("LOG_LEVEL", "info"),
		LogEncoding:   envString("LOG_ENCODING", "console"),
		DamageClasses: envList("DAMAGE_CLASSES", "scratch,dent,rust"),
	}

	var err error
	if cfg.MinArea, err = envFloat("MIN_AREA", 0.01); err != nil {
		return nil, err
	}
	if cfg.IoUThreshold, err = envFloat("IOU_THRESHOLD", 0.5); err != nil {
		return nil, err
	}
	if cfg.CoverageSamples, err = envInt("COVERAGE_SAMPLES", 200); err != nil {
		return nil, err
	}
	if cfg.TargetRate, err = envFloat("TARGET_RATE", 10); err != nil {
		return nil, err
	}
	if cfg.DamagedThreshold, err = envFloat("DAMAGED_THRESHOLD", 0.5); err != nil {
		return nil, err
	}
	maxUpload, err := envInt("MAX_UPLOAD_BYTES", 20<<20)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)
	if cfg.ONNXInputSize, err = envInt("ONNX_INPUT_SIZE", vision.DefaultInputSize); err != nil {
		return nil, err
	}
	if cfg.ONNXScoreFloor, err = envFloat("ONNX_SCORE_FLOOR", vision.DefaultScoreFloor); err != nil {
		return nil, err
	}
	if cfg.OracleTimeout, err = envDuration("ORACLE_TIMEOUT", vision.DefaultRemoteTimeout); err != nil {
		return nil, err
	}

	if cfg.Detectors, err = vision.ParseSpecs(os.Getenv("DETECTORS")); err != nil {
		return nil, err
	}
	for i := range cfg.Detectors {
		key := "DETECTOR_LABELS_" + strings.ToUpper(cfg.Detectors[i].Name)
		cfg.Detectors[i].Labels = envList(key, "")
	}

	if raw := strings.TrimSpace(os.Getenv("CLASSIFIER")); raw != "" {
		spec, err := vision.ParseSpec(raw)
		if err != nil {
			return nil, err
		}
		spec.Labels = envList("CLASSIFIER_LABELS", "clean,dirty")
		cfg.Classifier = &spec
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет диапазоны числовых параметров.
func (c *Config) Validate() error {
	var errs []error
	if c.MinArea < 0 || c.MinArea > 1 {
		errs = append(errs, fmt.Errorf("MIN_AREA must be in [0, 1], got %v", c.MinArea))
	}
	if c.IoUThreshold <= 0 || c.IoUThreshold > 1 {
		errs = append(errs, fmt.Errorf("IOU_THRESHOLD must be in (0, 1], got %v", c.IoUThreshold))
	}
	if c.CoverageSamples < 1 {
		errs = append(errs, fmt.Errorf("COVERAGE_SAMPLES must be >= 1, got %d", c.CoverageSamples))
	}
	if c.TargetRate <= 0 {
		errs = append(errs, fmt.Errorf("TARGET_RATE must be > 0, got %v", c.TargetRate))
	}
	if c.DamagedThreshold < 0 || c.DamagedThreshold > 1 {
		errs = append(errs, fmt.Errorf("DAMAGED_THRESHOLD must be in [0, 1], got %v", c.DamagedThreshold))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES must be > 0, got %d", c.MaxUploadBytes))
	}
	if c.ONNXInputSize <= 0 {
		errs = append(errs, fmt.Errorf("ONNX_INPUT_SIZE must be > 0, got %d", c.ONNXInputSize))
	}
	return multierr.Combine(errs...)
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envList(key, def string) []string {
	raw := envString(key, def)
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
