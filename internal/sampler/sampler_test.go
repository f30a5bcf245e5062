package sampler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acunetix2/sysmonitor/internal/metrics"
	"github.com/acunetix2/sysmonitor/internal/store"
	"github.com/acunetix2/sysmonitor/internal/testutil"
	"github.com/acunetix2/sysmonitor/pkg/models"
)

var (
	cpuOnly    = []models.MetricFamily{models.FamilyCPU}
	cpuAndMem  = []models.MetricFamily{models.FamilyCPU, models.FamilyMemory}
	errBroken  = errors.New("collector broken")
	fastTicker = Schedule{Interval: 20 * time.Millisecond, Timeout: 50 * time.Millisecond}
)

func counting(n *atomic.Int64) metrics.Collector {
	return metrics.CollectorFunc(func(context.Context) (models.Payload, error) {
		return models.CPUPayload{CoreCount: 1, UsagePercent: float64(n.Add(1))}, nil
	})
}

func memoryOK() metrics.Collector {
	return metrics.CollectorFunc(func(context.Context) (models.Payload, error) {
		return models.MemoryPayload{TotalBytes: 100, UsedBytes: 40, AvailableBytes: 60}, nil
	})
}

func failing(n *atomic.Int64) metrics.Collector {
	return metrics.CollectorFunc(func(context.Context) (models.Payload, error) {
		n.Add(1)
		return nil, errBroken
	})
}

// observePeak records n as the highest concurrency seen so far
func observePeak(peak *atomic.Int64, n int64) {
	for {
		p := peak.Load()
		if n <= p || peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func TestSampler_FillsRingInOrder(t *testing.T) {
	log, _ := testutil.Logger()
	st := store.New(5, cpuOnly)

	var calls atomic.Int64
	s := New(st, map[models.MetricFamily]metrics.Collector{models.FamilyCPU: counting(&calls)},
		Options{Families: map[models.MetricFamily]Schedule{models.FamilyCPU: fastTicker}}, log)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() >= 8 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	h := st.History(models.FamilyCPU)
	require.Len(t, h, 5)
	for i := 1; i < len(h); i++ {
		prev := h[i-1].Payload.(models.CPUPayload).UsagePercent
		cur := h[i].Payload.(models.CPUPayload).UsagePercent
		assert.Equal(t, prev+1, cur, "history must hold consecutive samples")
		assert.False(t, h[i].Timestamp.Before(h[i-1].Timestamp))
	}
}

func TestSampler_FailingFamilyDoesNotStallOthers(t *testing.T) {
	log, _ := testutil.Logger()
	st := store.New(10, cpuAndMem)

	var failures atomic.Int64
	s := New(st, map[models.MetricFamily]metrics.Collector{
		models.FamilyCPU:    failing(&failures),
		models.FamilyMemory: memoryOK(),
	}, Options{Families: map[models.MetricFamily]Schedule{
		models.FamilyCPU:    fastTicker,
		models.FamilyMemory: fastTicker,
	}}, log)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		return len(st.History(models.FamilyMemory)) >= 5
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Empty(t, st.History(models.FamilyCPU))

	h, ok := st.Health(models.FamilyCPU)
	require.True(t, ok)
	assert.True(t, h.Failing())
	assert.GreaterOrEqual(t, h.ConsecutiveFailures, 1)
	require.NotNil(t, h.LastError)
	assert.Equal(t, models.ReasonUnknown, h.LastError.Reason)

	mh, _ := st.Health(models.FamilyMemory)
	assert.False(t, mh.Failing())
}

func TestSampler_HealthyFamilyKeepsItsCadence(t *testing.T) {
	const (
		interval = 20 * time.Millisecond
		duration = 400 * time.Millisecond
	)

	tests := []struct {
		name       string
		collector  metrics.Collector
		wantReason models.CollectionReason
	}{
		{
			name: "always unavailable",
			collector: metrics.CollectorFunc(func(context.Context) (models.Payload, error) {
				return nil, models.NewCollectionError(models.FamilyCPU, models.ReasonUnavailable, "no sensor")
			}),
			wantReason: models.ReasonUnavailable,
		},
		{
			name: "hangs past its timeout",
			collector: metrics.CollectorFunc(func(context.Context) (models.Payload, error) {
				time.Sleep(150 * time.Millisecond)
				return nil, models.ErrUnavailable
			}),
			wantReason: models.ReasonTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, _ := testutil.Logger()
			st := store.New(100, cpuAndMem)

			s := New(st, map[models.MetricFamily]metrics.Collector{
				models.FamilyCPU:    tt.collector,
				models.FamilyMemory: memoryOK(),
			}, Options{Families: map[models.MetricFamily]Schedule{
				models.FamilyCPU:    {Interval: interval, Timeout: 10 * time.Millisecond},
				models.FamilyMemory: {Interval: interval, Timeout: 10 * time.Millisecond},
			}}, log)

			require.NoError(t, s.Start(context.Background()))
			time.Sleep(duration)
			require.NoError(t, s.Stop())

			want := float64(duration / interval)
			assert.InDelta(t, want, float64(len(st.History(models.FamilyMemory))), want*0.3)
			assert.Empty(t, st.History(models.FamilyCPU))

			h, _ := st.Health(models.FamilyCPU)
			require.NotNil(t, h.LastError)
			assert.Equal(t, tt.wantReason, h.LastError.Reason)
			assert.Equal(t, models.FamilyCPU, h.LastError.Family)
		})
	}
}

func TestSampler_TimeoutIsRecorded(t *testing.T) {
	log, _ := testutil.Logger()
	st := store.New(5, cpuOnly)

	slow := metrics.CollectorFunc(func(ctx context.Context) (models.Payload, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	s := New(st, map[models.MetricFamily]metrics.Collector{models.FamilyCPU: slow},
		Options{Families: map[models.MetricFamily]Schedule{
			models.FamilyCPU: {Interval: 50 * time.Millisecond, Timeout: 10 * time.Millisecond},
		}}, log)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		h, _ := st.Health(models.FamilyCPU)
		return h.LastError != nil
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	h, _ := st.Health(models.FamilyCPU)
	assert.True(t, errors.Is(h.LastError, models.ErrTimeout))
	assert.Equal(t, models.FamilyCPU, h.LastError.Family)
	assert.Empty(t, st.History(models.FamilyCPU))
}

func TestSampler_StopAbandonsStuckCollector(t *testing.T) {
	log, hook := testutil.Logger()
	st := store.New(10, cpuAndMem)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	stuck := metrics.CollectorFunc(func(context.Context) (models.Payload, error) {
		once.Do(func() { close(entered) })
		<-release
		return models.CPUPayload{CoreCount: 1}, nil
	})

	s := New(st, map[models.MetricFamily]metrics.Collector{
		models.FamilyCPU:    stuck,
		models.FamilyMemory: memoryOK(),
	}, Options{
		Families: map[models.MetricFamily]Schedule{
			models.FamilyCPU:    {Interval: 20 * time.Millisecond, Timeout: 10 * time.Millisecond},
			models.FamilyMemory: fastTicker,
		},
		GracePeriod: 100 * time.Millisecond,
	}, log)

	require.NoError(t, s.Start(context.Background()))
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("collector was never called")
	}

	began := time.Now()
	require.NoError(t, s.Stop())
	assert.Less(t, time.Since(began), time.Second)
	assert.False(t, s.Running())

	memAtStop := len(st.History(models.FamilyMemory))
	close(release)
	time.Sleep(100 * time.Millisecond)

	assert.Empty(t, st.History(models.FamilyCPU), "no snapshot may land after Stop")
	assert.Equal(t, memAtStop, len(st.History(models.FamilyMemory)))

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "Abandoning collector calls that did not finish within the grace period" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestSampler_NeverOverlapsCalls(t *testing.T) {
	log, _ := testutil.Logger()
	st := store.New(5, cpuOnly)

	var active, peak, calls atomic.Int64
	slow := metrics.CollectorFunc(func(context.Context) (models.Payload, error) {
		calls.Add(1)
		observePeak(&peak, active.Add(1))
		time.Sleep(60 * time.Millisecond)
		active.Add(-1)
		return models.CPUPayload{CoreCount: 1}, nil
	})

	s := New(st, map[models.MetricFamily]metrics.Collector{models.FamilyCPU: slow},
		Options{
			Families: map[models.MetricFamily]Schedule{
				models.FamilyCPU: {Interval: 5 * time.Millisecond, Timeout: 5 * time.Millisecond},
			},
			MaxBackoff:  20 * time.Millisecond,
			GracePeriod: time.Second,
		}, log)

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(300 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.GreaterOrEqual(t, calls.Load(), int64(1))
	assert.Equal(t, int64(1), peak.Load())

	h, _ := st.Health(models.FamilyCPU)
	require.NotNil(t, h.LastError)
	assert.True(t, errors.Is(h.LastError, models.ErrTimeout))
}

func TestSampler_RestartWaitsForAbandonedCall(t *testing.T) {
	log, _ := testutil.Logger()
	st := store.New(5, cpuOnly)

	release := make(chan struct{})
	var active, peak, calls atomic.Int64
	stuck := metrics.CollectorFunc(func(context.Context) (models.Payload, error) {
		calls.Add(1)
		observePeak(&peak, active.Add(1))
		defer active.Add(-1)
		<-release
		return models.CPUPayload{CoreCount: 1}, nil
	})

	s := New(st, map[models.MetricFamily]metrics.Collector{models.FamilyCPU: stuck},
		Options{
			Families: map[models.MetricFamily]Schedule{
				models.FamilyCPU: {Interval: 10 * time.Millisecond, Timeout: 10 * time.Millisecond},
			},
			MaxBackoff:  20 * time.Millisecond,
			GracePeriod: 30 * time.Millisecond,
		}, log)

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Stop())

	// The first call is still blocked when the sampler comes back
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Stop())
	close(release)

	assert.Equal(t, int64(1), peak.Load())
	assert.GreaterOrEqual(t, calls.Load(), int64(1))

	h, _ := st.Health(models.FamilyCPU)
	require.NotNil(t, h.LastError)
	assert.True(t, errors.Is(h.LastError, models.ErrTimeout))
	assert.Empty(t, st.History(models.FamilyCPU))
}

func TestSampler_BacksOffOnFailure(t *testing.T) {
	log, _ := testutil.Logger()
	st := store.New(5, cpuOnly)

	var calls atomic.Int64
	s := New(st, map[models.MetricFamily]metrics.Collector{models.FamilyCPU: failing(&calls)},
		Options{
			Families: map[models.MetricFamily]Schedule{
				models.FamilyCPU: {Interval: 10 * time.Millisecond, Timeout: 10 * time.Millisecond},
			},
			MaxBackoff: time.Second,
		}, log)

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(300 * time.Millisecond)
	require.NoError(t, s.Stop())

	// 10ms ticks would give ~30 calls; doubling delays give about 5
	assert.GreaterOrEqual(t, calls.Load(), int64(2))
	assert.LessOrEqual(t, calls.Load(), int64(10))

	h, _ := st.Health(models.FamilyCPU)
	assert.InDelta(t, float64(calls.Load()), float64(h.ConsecutiveFailures), 1)
}

func TestSampler_RejectsMismatchedPayload(t *testing.T) {
	log, _ := testutil.Logger()
	st := store.New(5, cpuOnly)

	wrong := metrics.CollectorFunc(func(context.Context) (models.Payload, error) {
		return models.MemoryPayload{}, nil
	})
	s := New(st, map[models.MetricFamily]metrics.Collector{models.FamilyCPU: wrong},
		Options{Families: map[models.MetricFamily]Schedule{models.FamilyCPU: fastTicker}}, log)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		h, _ := st.Health(models.FamilyCPU)
		return h.LastError != nil
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	h, _ := st.Health(models.FamilyCPU)
	assert.True(t, errors.Is(h.LastError, models.ErrCollectUnknown))
	assert.Empty(t, st.History(models.FamilyCPU))
}

func TestSampler_Lifecycle(t *testing.T) {
	log, _ := testutil.Logger()
	st := store.New(5, cpuOnly)

	var calls atomic.Int64
	s := New(st, map[models.MetricFamily]metrics.Collector{models.FamilyCPU: counting(&calls)},
		Options{Families: map[models.MetricFamily]Schedule{models.FamilyCPU: fastTicker}}, log)

	assert.False(t, s.Running())
	assert.True(t, errors.Is(s.Stop(), models.ErrNotRunning))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Running())
	assert.True(t, errors.Is(s.Start(context.Background()), models.ErrAlreadyStarted))

	require.NoError(t, s.Stop())
	assert.True(t, errors.Is(s.Stop(), models.ErrNotRunning))

	// Restart keeps appending to the same store
	before := calls.Load()
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() > before }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
}

func TestSampler_CancelledContextStops(t *testing.T) {
	log, _ := testutil.Logger()
	st := store.New(5, cpuOnly)

	var calls atomic.Int64
	s := New(st, map[models.MetricFamily]metrics.Collector{models.FamilyCPU: counting(&calls)},
		Options{Families: map[models.MetricFamily]Schedule{models.FamilyCPU: fastTicker}}, log)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return !s.Running() }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, errors.Is(s.Stop(), models.ErrNotRunning))

	before := calls.Load()
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() > before }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
}

func TestSampler_SkipsUnscheduledFamilies(t *testing.T) {
	log, _ := testutil.Logger()
	st := store.New(5, cpuAndMem)

	var cpuCalls atomic.Int64
	s := New(st, map[models.MetricFamily]metrics.Collector{
		models.FamilyCPU:    counting(&cpuCalls),
		models.FamilyMemory: memoryOK(),
	}, Options{Families: map[models.MetricFamily]Schedule{models.FamilyMemory: fastTicker}}, log)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		return len(st.History(models.FamilyMemory)) >= 2
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Zero(t, cpuCalls.Load())
}

func TestFamilyLoop_NextTickSkipsMissedTicks(t *testing.T) {
	t0 := testutil.NewClock().Now()
	l := &familyLoop{sched: Schedule{Interval: 100 * time.Millisecond}, next: t0}

	assert.Equal(t, 70*time.Millisecond, l.nextTick(t0.Add(30*time.Millisecond)))
	assert.Equal(t, t0.Add(100*time.Millisecond), l.next)

	// Collection overran by more than two intervals
	assert.Equal(t, 50*time.Millisecond, l.nextTick(t0.Add(350*time.Millisecond)))
	assert.Equal(t, t0.Add(400*time.Millisecond), l.next)
}
