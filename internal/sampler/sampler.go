// Package sampler drives every metric collector on its own cadence and feeds
// the results into the snapshot store.
//
// Each family runs in its own goroutine with its own timeout and backoff, so a
// failing or hanging collector only ever delays itself.
package sampler

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/acunetix2/sysmonitor/internal/metrics"
	"github.com/acunetix2/sysmonitor/internal/store"
	"github.com/acunetix2/sysmonitor/pkg/models"
)

const (
	DefaultTimeout     = 1 * time.Second
	DefaultMaxBackoff  = 30 * time.Second
	DefaultGracePeriod = 5 * time.Second
)

// Schedule is the cadence and per-call timeout of one family
type Schedule struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Options configures a Sampler
type Options struct {
	Families    map[models.MetricFamily]Schedule
	MaxBackoff  time.Duration // cap of the failure backoff
	GracePeriod time.Duration // how long Stop waits for outstanding collector calls
}

// pusher is the part of the store the sampler writes to
type pusher interface {
	Push(models.Snapshot) error
	RecordFailure(*models.CollectionError)
}

// Sampler runs one sampling loop per family
type Sampler struct {
	store      pusher
	collectors map[models.MetricFamily]metrics.Collector
	opts       Options
	log        *logrus.Entry

	mu  sync.Mutex
	cur *run // nil when stopped

	// inflight holds a family's token while its collector runs, across runs,
	// so an abandoned call blocks the family even after a restart
	inflight map[models.MetricFamily]chan struct{}

	// gate orders pushes against Stop: loops push under RLock, Stop clears live under Lock
	gate sync.RWMutex
	live *run // the run whose results are stored
}

// run is the state of one Start/Stop cycle
type run struct {
	cancel context.CancelFunc
	loops  sync.WaitGroup
	calls  sync.WaitGroup // collector calls, including abandoned ones
}

var _ pusher = (*store.Store)(nil)

// New creates a sampler. Families without a collector, or a collector without a
// schedule, are not sampled.
func New(s pusher, collectors map[models.MetricFamily]metrics.Collector, opts Options, log *logrus.Entry) *Sampler {
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	inflight := make(map[models.MetricFamily]chan struct{}, len(collectors))
	for family := range collectors {
		inflight[family] = make(chan struct{}, 1)
	}

	return &Sampler{
		store:      s,
		collectors: collectors,
		opts:       opts,
		log:        log.WithField("component", "sampler"),
		inflight:   inflight,
	}
}

// Start begins sampling every configured family and returns immediately.
// Cancelling ctx stops the sampler as Stop does.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur != nil {
		return models.ErrAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel}
	s.cur = r

	s.gate.Lock()
	s.live = r
	s.gate.Unlock()

	started := 0
	for _, family := range models.AllFamilies() {
		collector, ok := s.collectors[family]
		if !ok {
			continue
		}
		sched, ok := s.opts.Families[family]
		if !ok || sched.Interval <= 0 {
			continue
		}
		if sched.Timeout <= 0 {
			sched.Timeout = DefaultTimeout
		}

		r.loops.Add(1)
		go s.loop(loopCtx, newFamilyLoop(s, r, family, collector, sched))
		started++
	}

	go s.watch(loopCtx, r)

	s.log.WithField("families", started).Info("Sampler started")
	return nil
}

// watch stops the run when its context ends without a call to Stop
func (s *Sampler) watch(ctx context.Context, r *run) {
	<-ctx.Done()

	s.mu.Lock()
	owned := s.cur == r
	if owned {
		s.detach(r)
	}
	s.mu.Unlock()

	if owned {
		s.log.Info("Sampling context cancelled, sampler stopped")
		s.await(r)
	}
}

// Stop cancels all loops and waits for them, bounded by the grace period.
// No snapshot is pushed after Stop returns.
func (s *Sampler) Stop() error {
	s.mu.Lock()
	r := s.cur
	if r == nil {
		s.mu.Unlock()
		return models.ErrNotRunning
	}
	s.log.Info("Stopping sampler")
	s.detach(r)
	s.mu.Unlock()

	s.await(r)
	return nil
}

// detach cancels r and stops accepting its results. Callers hold s.mu.
func (s *Sampler) detach(r *run) {
	r.cancel()
	s.cur = nil

	s.gate.Lock()
	if s.live == r {
		s.live = nil
	}
	s.gate.Unlock()
}

// await waits for the loops and collector calls of r, up to the grace period
func (s *Sampler) await(r *run) {
	done := make(chan struct{})
	go func() {
		r.loops.Wait()
		r.calls.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Debug("Sampler stopped")
	case <-time.After(s.opts.GracePeriod):
		s.log.WithField("grace", s.opts.GracePeriod).Warn("Abandoning collector calls that did not finish within the grace period")
	}
}

// Running reports whether the sampler has been started and not stopped
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil
}

// push appends a snapshot of run r unless r has been stopped
func (s *Sampler) push(r *run, snap models.Snapshot) bool {
	s.gate.RLock()
	defer s.gate.RUnlock()

	if s.live != r {
		return false
	}
	if err := s.store.Push(snap); err != nil {
		s.log.WithError(err).WithField("family", snap.Family).Error("Failed to store snapshot")
		return false
	}
	return true
}

func (s *Sampler) recordFailure(r *run, cerr *models.CollectionError) {
	s.gate.RLock()
	defer s.gate.RUnlock()

	if s.live == r {
		s.store.RecordFailure(cerr)
	}
}

// loop is the per-family goroutine: wait for the tick, collect, push or back off
func (s *Sampler) loop(ctx context.Context, l *familyLoop) {
	defer l.run.loops.Done()

	timer := time.NewTimer(0) // first tick immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}

		started := time.Now()
		payload, err := l.collect(ctx)

		// Checked again after every collection so a cancelled loop never pushes
		if ctx.Err() != nil {
			return
		}

		var wait time.Duration
		if err != nil {
			wait = l.fail(err)
		} else {
			l.succeed(models.Snapshot{
				Family:             l.family,
				Timestamp:          started,
				Payload:            payload,
				CollectionDuration: time.Since(started),
			})
			wait = l.nextTick(time.Now())
		}

		timer.Reset(wait)
	}
}

// familyLoop is the state owned by one family's goroutine
type familyLoop struct {
	s         *Sampler
	run       *run
	family    models.MetricFamily
	collector metrics.Collector
	sched     Schedule
	log       *logrus.Entry

	backoff  *backoff.ExponentialBackOff
	failures int
	next     time.Time // nominal time of the next tick
}

type collectResult struct {
	payload models.Payload
	err     error
}

func newFamilyLoop(s *Sampler, r *run, family models.MetricFamily, c metrics.Collector, sched Schedule) *familyLoop {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = sched.Interval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = max(s.opts.MaxBackoff, sched.Interval)
	b.MaxElapsedTime = 0
	b.Reset()

	return &familyLoop{
		s:         s,
		run:       r,
		family:    family,
		collector: c,
		sched:     sched,
		log:       s.log.WithField("family", family),
		backoff:   b,
		next:      time.Now(),
	}
}

// collect invokes the collector with the family timeout. The call runs in its own
// goroutine; if it overruns it is abandoned and not called again until it returns.
func (l *familyLoop) collect(ctx context.Context) (models.Payload, error) {
	token := l.s.inflight[l.family]
	select {
	case token <- struct{}{}:
	default:
		return nil, models.NewCollectionError(l.family, models.ReasonTimeout, "previous collection still outstanding")
	}

	callCtx, cancel := context.WithTimeout(ctx, l.sched.Timeout)
	defer cancel()

	result := make(chan collectResult, 1)
	l.run.calls.Add(1)
	go func() {
		defer l.run.calls.Done()
		payload, err := l.collector.Collect(callCtx)
		<-token
		result <- collectResult{payload: payload, err: err}
	}()

	select {
	case r := <-result:
		if r.err != nil {
			return nil, metrics.Classify(l.family, r.err)
		}
		if r.payload == nil || r.payload.Family() != l.family {
			return nil, models.NewCollectionError(l.family, models.ReasonUnknown, "collector returned a mismatched payload")
		}
		return r.payload, nil

	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, models.NewCollectionError(l.family, models.ReasonTimeout, "collection exceeded %s", l.sched.Timeout)
	}
}

func (l *familyLoop) succeed(snap models.Snapshot) {
	if l.failures > 0 {
		l.log.WithField("failures", l.failures).Info("Collection recovered")
	}
	l.failures = 0
	l.backoff.Reset()

	if l.s.push(l.run, snap) {
		l.log.WithField("took", snap.CollectionDuration).Debug("Snapshot collected")
	}
}

// fail records the error and returns how long to back off
func (l *familyLoop) fail(err error) time.Duration {
	cerr := metrics.Classify(l.family, err)
	l.failures++
	l.s.recordFailure(l.run, cerr)

	wait := l.backoff.NextBackOff()
	if wait == backoff.Stop || wait <= 0 {
		wait = l.s.opts.MaxBackoff
	}

	// Realign to the schedule once the family recovers
	l.next = time.Now().Add(wait)

	l.log.WithFields(logrus.Fields{
		"reason":   cerr.Reason,
		"failures": l.failures,
		"retry_in": wait,
	}).WithError(err).Warn("Collection failed")

	return wait
}

// nextTick advances the nominal schedule past now, skipping missed ticks so that
// slow collections never accumulate drift
func (l *familyLoop) nextTick(now time.Time) time.Duration {
	interval := l.sched.Interval
	l.next = l.next.Add(interval)
	if behind := now.Sub(l.next); behind >= 0 {
		l.next = l.next.Add((behind/interval + 1) * interval)
	}
	return l.next.Sub(now)
}
