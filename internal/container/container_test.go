package container

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"car-inspect/config"
	"car-inspect/internal/infrastructure/vision"
)

func testConfig() *config.Config {
	return &config.Config{
		MinArea:          0.01,
		IoUThreshold:     0.5,
		CoverageSamples:  50,
		DamageClasses:    []string{"scratch", "dent", "rust"},
		TargetRate:       10,
		DamagedThreshold: 0.5,
		MaxUploadBytes:   1 << 20,
		ONNXInputSize:    640,
		Detectors: []vision.OracleSpec{
			{Name: "yolo", Kind: vision.KindONNX, Target: "/nonexistent/yolo.onnx"},
		},
	}
}

func TestNew_StartsWithoutOracles(t *testing.T) {
	log := zap.NewNop().Sugar()
	cfg := testConfig()

	oracles, registry := BuildOracles(context.Background(), cfg, log)
	require.Empty(t, oracles.Detectors)
	require.Nil(t, oracles.Classifier)

	c := New(cfg, oracles, registry, log)
	defer func() { require.NoError(t, c.Close()) }()

	require.Zero(t, c.FusionEngine.Available())

	rec := httptest.NewRecorder()
	c.HTTPHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

func TestHTTPServer_ShutdownWithOpenLiveStream(t *testing.T) {
	log := zap.NewNop().Sugar()
	cfg := testConfig()
	c := New(cfg, Oracles{}, nil, log)
	defer func() { require.NoError(t, c.Close()) }()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := c.NewHTTPServer(ln.Addr().String())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/v1/live/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	for lines.Scan() && !strings.HasPrefix(lines.Text(), "event: hello") {
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.True(t, errors.Is(<-served, http.ErrServerClosed))
}
