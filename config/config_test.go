package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"car-inspect/internal/infrastructure/vision"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, 0.01, cfg.MinArea)
	require.Equal(t, 0.5, cfg.IoUThreshold)
	require.Equal(t, 200, cfg.CoverageSamples)
	require.Equal(t, []string{"scratch", "dent", "rust"}, cfg.DamageClasses)
	require.Equal(t, 10.0, cfg.TargetRate)
	require.Equal(t, int64(20<<20), cfg.MaxUploadBytes)
	require.Empty(t, cfg.Detectors)
	require.Nil(t, cfg.Classifier)
}

func TestLoad_Oracles(t *testing.T) {
	t.Setenv("DETECTORS", "yolo=onnx:/models/yolo.onnx,cloud=remote:http://ml/predict")
	t.Setenv("DETECTOR_LABELS_YOLO", "scratch, dent ,rust")
	t.Setenv("CLASSIFIER", "wash=remote:http://ml/classify")
	t.Setenv("TARGET_RATE", "5")
	t.Setenv("ORACLE_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Detectors, 2)
	require.Equal(t, []string{"scratch", "dent", "rust"}, cfg.Detectors[0].Labels)
	require.Empty(t, cfg.Detectors[1].Labels)
	require.Equal(t, vision.KindRemote, cfg.Classifier.Kind)
	require.Equal(t, []string{"clean", "dirty"}, cfg.Classifier.Labels)
	require.Equal(t, 5.0, cfg.TargetRate)
	require.Equal(t, 3*time.Second, cfg.OracleTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"MIN_AREA":         "1.5",
		"IOU_THRESHOLD":    "0",
		"COVERAGE_SAMPLES": "0",
		"TARGET_RATE":      "-1",
		"DETECTORS":        "broken",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_NotANumber(t *testing.T) {
	t.Setenv("COVERAGE_SAMPLES", "many")
	_, err := Load()
	require.Error(t, err)
}
