// Package store holds the most recent snapshots of every metric family.
//
// Each family owns its own ring buffer and lock, so a slow reader of one family
// never blocks writers of another.
package store

import (
	"sync"
	"time"

	"emperror.dev/errors"

	"github.com/acunetix2/sysmonitor/pkg/models"
)

// DefaultCapacity is the ring size used when none is configured
const DefaultCapacity = 60

// ErrOutOfOrder is returned by Push when a snapshot is older than the family's latest
const ErrOutOfOrder = errors.Sentinel("snapshot is older than the latest for its family")

// Clock provides the current time
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Health describes the collection state of one family
type Health struct {
	Family              models.MetricFamily     `json:"family"`
	LastSuccess         time.Time               `json:"last_success"`
	LastFailure         time.Time               `json:"last_failure"`
	LastError           *models.CollectionError `json:"-"`
	ConsecutiveFailures int                     `json:"consecutive_failures"`
	TotalFailures       uint64                  `json:"total_failures"`
	Samples             uint64                  `json:"samples"` // successful pushes since start
	Buffered            int                     `json:"buffered"`
}

// Failing reports whether the most recent collection attempt failed
func (h Health) Failing() bool {
	return h.LastError != nil
}

// familyBuffer is the per-family state. One writer, many readers.
type familyBuffer struct {
	mu     sync.RWMutex
	ring   *ring
	health Health
}

// Store is the single source of truth for latest and recent snapshots
type Store struct {
	capacity int
	families []models.MetricFamily
	buffers  map[models.MetricFamily]*familyBuffer // fixed after New, read without locking
	clock    Clock
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for staleness
func WithClock(c Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// New creates a store with one ring of the given capacity per family
func New(capacity int, families []models.MetricFamily, opts ...Option) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	s := &Store{
		capacity: capacity,
		buffers:  make(map[models.MetricFamily]*familyBuffer, len(families)),
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, f := range families {
		if _, exists := s.buffers[f]; exists {
			continue
		}
		s.families = append(s.families, f)
		s.buffers[f] = &familyBuffer{
			ring:   newRing(capacity),
			health: Health{Family: f},
		}
	}

	return s
}

// Capacity returns the per-family ring size
func (s *Store) Capacity() int {
	return s.capacity
}

// Families returns the families this store tracks, in registration order
func (s *Store) Families() []models.MetricFamily {
	return append([]models.MetricFamily(nil), s.families...)
}

// Has reports whether the family is tracked
func (s *Store) Has(f models.MetricFamily) bool {
	_, ok := s.buffers[f]
	return ok
}

// Push appends a snapshot to its family's ring, evicting the oldest on overflow.
// A successful push clears the family's failure state.
func (s *Store) Push(snap models.Snapshot) error {
	b, ok := s.buffers[snap.Family]
	if !ok {
		return &models.QueryError{Reason: models.ReasonUnknownFamily, Family: snap.Family}
	}
	if snap.Payload == nil {
		return errors.Errorf("%s snapshot has no payload", snap.Family)
	}
	if snap.Payload.Family() != snap.Family {
		return errors.Errorf("%s snapshot carries a %s payload", snap.Family, snap.Payload.Family())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if last, ok := b.ring.last(); ok && snap.Timestamp.Before(last.Timestamp) {
		return errors.WithStack(ErrOutOfOrder)
	}

	b.ring.push(snap)
	b.health.LastSuccess = snap.Timestamp
	b.health.LastError = nil
	b.health.ConsecutiveFailures = 0
	b.health.Samples++

	return nil
}

// RecordFailure notes a failed collection. The previous snapshot stays available.
func (s *Store) RecordFailure(cerr *models.CollectionError) {
	if cerr == nil {
		return
	}
	b, ok := s.buffers[cerr.Family]
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.health.LastFailure = s.clock.Now()
	b.health.LastError = cerr
	b.health.ConsecutiveFailures++
	b.health.TotalFailures++
}

// Latest returns the most recent snapshot, or false if none has been collected
func (s *Store) Latest(f models.MetricFamily) (models.Snapshot, bool) {
	b, ok := s.buffers[f]
	if !ok {
		return models.Snapshot{}, false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	snap, ok := b.ring.last()
	if !ok {
		return models.Snapshot{}, false
	}
	return snap.Clone(), true
}

// History returns a point-in-time copy of the family's ring, oldest first
func (s *Store) History(f models.MetricFamily) []models.Snapshot {
	b, ok := s.buffers[f]
	if !ok {
		return nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.ring.snapshot()
}

// Staleness returns the time since the last successful collection.
// The bool is false when the family has never been collected.
func (s *Store) Staleness(f models.MetricFamily) (time.Duration, bool) {
	b, ok := s.buffers[f]
	if !ok {
		return 0, false
	}

	b.mu.RLock()
	last := b.health.LastSuccess
	b.mu.RUnlock()

	return s.since(last)
}

func (s *Store) since(last time.Time) (time.Duration, bool) {
	if last.IsZero() {
		return 0, false
	}

	d := s.clock.Now().Sub(last)
	if d < 0 {
		d = 0
	}
	return d, true
}

// Health returns the collection state of a family
func (s *Store) Health(f models.MetricFamily) (Health, bool) {
	b, ok := s.buffers[f]
	if !ok {
		return Health{}, false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	h := b.health
	h.Buffered = b.ring.len()
	return h, true
}

// View is one family's history and health read together
type View struct {
	History   []models.Snapshot
	Health    Health
	Staleness time.Duration // zero when never collected
}

// View returns history, health and staleness taken under a single lock,
// so the health always describes exactly the returned history
func (s *Store) View(f models.MetricFamily) (View, bool) {
	b, ok := s.buffers[f]
	if !ok {
		return View{}, false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	v := View{
		History: b.ring.snapshot(),
		Health:  b.health,
	}
	v.Health.Buffered = len(v.History)
	v.Staleness, _ = s.since(b.health.LastSuccess)
	return v, true
}
