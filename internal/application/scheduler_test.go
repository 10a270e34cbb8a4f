package app

import (
	"context"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"car-inspect/internal/domain/entity"
)

type stubDetector struct {
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	calls       atomic.Int32
	started     chan struct{}
	release     chan struct{}
}

func (d *stubDetector) DetectFrame(frame entity.Frame) *entity.FusedResult {
	n := d.inFlight.Add(1)
	for {
		m := d.maxInFlight.Load()
		if n <= m || d.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	d.calls.Add(1)
	if d.started != nil {
		d.started <- struct{}{}
	}
	if d.release != nil {
		<-d.release
	}
	d.inFlight.Add(-1)

	w, h := frame.Size()
	return &entity.FusedResult{Detections: []entity.Detection{}, ImageWidth: w, ImageHeight: h}
}

func testFrame(ts time.Time) entity.Frame {
	return entity.Frame{
		Pixels:      image.NewRGBA(image.Rect(0, 0, 32, 24)),
		Orientation: entity.OrientationRight,
		Timestamp:   ts,
	}
}

func TestFrameScheduler_RateLimit(t *testing.T) {
	det := &stubDetector{}
	s := NewFrameScheduler(det, SchedulerConfig{TargetRate: 10}, clock.NewMock(), nil, nil)
	defer s.Close()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var accepted []time.Time
	for i := 0; i < 300; i++ {
		ts := base.Add(time.Duration(i) * 30 * time.Millisecond)
		res, ok, err := s.OfferFrame(context.Background(), testFrame(ts))
		require.NoError(t, err)
		if ok {
			require.NotNil(t, res)
			accepted = append(accepted, ts)
		}
	}

	// кадры каждые 30 мс, пропускается каждый четвёртый (120 мс)
	require.Len(t, accepted, 75)
	for i := 0; i+10 < len(accepted); i++ {
		require.GreaterOrEqual(t, accepted[i+10].Sub(accepted[i]), time.Second)
	}

	st := s.State()
	require.Equal(t, uint64(300), st.Offered)
	require.Equal(t, uint64(75), st.Accepted)
	require.Equal(t, uint64(225), st.DroppedThrottle)
	require.Equal(t, uint64(75), st.Completed)
	require.Equal(t, int32(75), det.calls.Load())
}

func TestFrameScheduler_SingleFlight(t *testing.T) {
	det := &stubDetector{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s := NewFrameScheduler(det, SchedulerConfig{TargetRate: 10}, clock.NewMock(), nil, nil)
	defer s.Close()

	_, updates := s.Subscribe()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	ok, err := s.Offer(testFrame(base))
	require.NoError(t, err)
	require.True(t, ok)
	<-det.started

	// интервал позволяет, но инференс ещё идёт
	for i := 1; i <= 5; i++ {
		ok, err = s.Offer(testFrame(base.Add(time.Duration(i) * time.Second)))
		require.NoError(t, err)
		require.False(t, ok)
	}
	st := s.State()
	require.True(t, st.Busy)
	require.Equal(t, uint64(5), st.DroppedBusy)

	close(det.release)
	select {
	case res := <-updates:
		require.Equal(t, 32, res.ImageWidth)
		require.Equal(t, 24, res.ImageHeight)
	case <-time.After(2 * time.Second):
		t.Fatal("result was not published")
	}
	require.Eventually(t, func() bool { return !s.State().Busy }, time.Second, 5*time.Millisecond)

	ok, err = s.Offer(testFrame(base.Add(10 * time.Second)))
	require.NoError(t, err)
	require.True(t, ok)
	<-det.started
	require.Eventually(t, func() bool { return s.State().Completed == 2 }, time.Second, 5*time.Millisecond)

	require.Equal(t, int32(1), det.maxInFlight.Load())
	require.Equal(t, int32(2), det.calls.Load())
}

func TestFrameScheduler_UsesClockWhenTimestampMissing(t *testing.T) {
	mock := clock.NewMock()
	s := NewFrameScheduler(&stubDetector{}, SchedulerConfig{TargetRate: 10}, mock, nil, nil)
	defer s.Close()

	_, ok, err := s.OfferFrame(context.Background(), testFrame(time.Time{}))
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = s.OfferFrame(context.Background(), testFrame(time.Time{}))
	require.NoError(t, err)
	require.False(t, ok)

	mock.Add(150 * time.Millisecond)
	_, ok, err = s.OfferFrame(context.Background(), testFrame(time.Time{}))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, mock.Now(), s.State().LastInference)
}

func TestFrameScheduler_LaggingSubscriberGetsLatest(t *testing.T) {
	s := NewFrameScheduler(&stubDetector{}, SchedulerConfig{TargetRate: 10, SubscriberBuffer: 1}, clock.NewMock(), nil, nil)
	defer s.Close()

	id, updates := s.Subscribe()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		frame := testFrame(base.Add(time.Duration(i) * time.Second))
		frame.Pixels = image.NewRGBA(image.Rect(0, 0, 10+i, 10))
		_, ok, err := s.OfferFrame(context.Background(), frame)
		require.NoError(t, err)
		require.True(t, ok)
	}

	res := <-updates
	require.Equal(t, 12, res.ImageWidth)
	require.Equal(t, 12, s.Latest().ImageWidth)

	s.Unsubscribe(id)
	_, open := <-updates
	require.False(t, open)
}

func TestFrameScheduler_Close(t *testing.T) {
	s := NewFrameScheduler(&stubDetector{}, SchedulerConfig{}, clock.NewMock(), nil, nil)
	_, updates := s.Subscribe()

	s.Close()
	s.Close()

	_, open := <-updates
	require.False(t, open)

	ok, err := s.Offer(testFrame(time.Now()))
	require.ErrorIs(t, err, ErrSchedulerClosed)
	require.False(t, ok)
}

func TestFrameScheduler_WithFusionEngine(t *testing.T) {
	engine := NewFusionEngine(toPorts(scenarioOracles()), DefaultFusionConfig(), nil, nil)
	s := NewFrameScheduler(engine, SchedulerConfig{TargetRate: 10}, clock.NewMock(), nil, nil)
	defer s.Close()

	res, ok, err := s.OfferFrame(context.Background(), testFrame(time.Now()))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, res.Detections, 2)
	require.InDelta(t, 0.4, res.DamageScore, 1e-9)
	require.Equal(t, 32, res.ImageWidth)
}
