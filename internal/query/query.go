// Package query is the read side used by presenters: point-in-time views from the
// store and windowed statistics computed over a single consistent history copy.
package query

import (
	"time"

	"github.com/acunetix2/sysmonitor/internal/aggregate"
	"github.com/acunetix2/sysmonitor/internal/store"
	"github.com/acunetix2/sysmonitor/pkg/models"
)

// Source is the part of the store queries read from
type Source interface {
	Families() []models.MetricFamily
	Has(models.MetricFamily) bool
	Latest(models.MetricFamily) (models.Snapshot, bool)
	History(models.MetricFamily) []models.Snapshot
	Staleness(models.MetricFamily) (time.Duration, bool)
	Health(models.MetricFamily) (store.Health, bool)
	View(models.MetricFamily) (store.View, bool)
}

var _ Source = (*store.Store)(nil)

// Facade answers queries against a snapshot source
type Facade struct {
	src Source
}

// FieldStats holds windowed statistics of one field. Err is set when the field
// could not be computed; the other values are then zero.
type FieldStats struct {
	Average float64
	Peak    float64
	Rate    float64
	Err     error
}

// FamilySummary is a composite view of one family built from one store view
type FamilySummary struct {
	Family    models.MetricFamily
	Latest    *models.Snapshot // nil before the first successful collection
	Staleness time.Duration
	Health    store.Health
	Stats     map[aggregate.Field]FieldStats
}

// Stale reports whether the latest values are from before a failed attempt, or missing
func (s FamilySummary) Stale() bool {
	return s.Latest == nil || s.Health.Failing()
}

// New creates a facade over src
func New(src Source) *Facade {
	return &Facade{src: src}
}

func (q *Facade) check(f models.MetricFamily) error {
	if !q.src.Has(f) {
		return &models.QueryError{Reason: models.ReasonUnknownFamily, Family: f}
	}
	return nil
}

// Families lists the families held by the store
func (q *Facade) Families() []models.MetricFamily {
	return q.src.Families()
}

// Latest returns the most recent snapshot; ok is false when none exists yet
func (q *Facade) Latest(f models.MetricFamily) (models.Snapshot, bool, error) {
	if err := q.check(f); err != nil {
		return models.Snapshot{}, false, err
	}
	snap, ok := q.src.Latest(f)
	return snap, ok, nil
}

// History returns up to limit of the most recent snapshots, oldest first.
// A limit <= 0 returns everything buffered.
func (q *Facade) History(f models.MetricFamily, limit int) ([]models.Snapshot, error) {
	if err := q.check(f); err != nil {
		return nil, err
	}
	return aggregate.Window(q.src.History(f), limit), nil
}

// RollingAverage is the mean of field over the last window snapshots
func (q *Facade) RollingAverage(f models.MetricFamily, field aggregate.Field, window int) (float64, error) {
	if err := q.check(f); err != nil {
		return 0, err
	}
	return aggregate.RollingAverage(f, q.src.History(f), field, window)
}

// Rate is the per-second increase of a counter field over the last window snapshots
func (q *Facade) Rate(f models.MetricFamily, field aggregate.Field, window int) (float64, error) {
	if err := q.check(f); err != nil {
		return 0, err
	}
	return aggregate.Rate(f, q.src.History(f), field, window)
}

// Peak is the maximum of field over the last window snapshots
func (q *Facade) Peak(f models.MetricFamily, field aggregate.Field, window int) (float64, error) {
	if err := q.check(f); err != nil {
		return 0, err
	}
	return aggregate.Peak(f, q.src.History(f), field, window)
}

// Staleness is the time since the last successful collection; ok is false if there was none
func (q *Facade) Staleness(f models.MetricFamily) (time.Duration, bool, error) {
	if err := q.check(f); err != nil {
		return 0, false, err
	}
	d, ok := q.src.Staleness(f)
	return d, ok, nil
}

// Health returns the collection state of a family
func (q *Facade) Health(f models.MetricFamily) (store.Health, error) {
	if err := q.check(f); err != nil {
		return store.Health{}, err
	}
	h, _ := q.src.Health(f)
	return h, nil
}

// Summary computes the latest snapshot and average, peak and rate of each field.
// History, health and staleness come from one store view, so they agree with each other.
func (q *Facade) Summary(f models.MetricFamily, fields []aggregate.Field, window int) (FamilySummary, error) {
	if err := q.check(f); err != nil {
		return FamilySummary{}, err
	}

	view, _ := q.src.View(f)
	history := view.History

	sum := FamilySummary{
		Family:    f,
		Staleness: view.Staleness,
		Health:    view.Health,
		Stats:     make(map[aggregate.Field]FieldStats, len(fields)),
	}
	if n := len(history); n > 0 {
		latest := history[n-1]
		sum.Latest = &latest
	}

	for _, field := range fields {
		var st FieldStats
		if st.Average, st.Err = aggregate.RollingAverage(f, history, field, window); st.Err != nil {
			sum.Stats[field] = FieldStats{Err: st.Err}
			continue
		}
		st.Peak, _ = aggregate.Peak(f, history, field, window)
		st.Rate, _ = aggregate.Rate(f, history, field, window)
		sum.Stats[field] = st
	}

	return sum, nil
}

// ProcessCPU returns per-PID CPU usage derived from cumulative CPU time over the window
func (q *Facade) ProcessCPU(window int) (map[int32]float64, error) {
	if err := q.check(models.FamilyProcesses); err != nil {
		return nil, err
	}
	return aggregate.ProcessCPURates(q.src.History(models.FamilyProcesses), window)
}
