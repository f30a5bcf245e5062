// Package aggregate derives windowed statistics from snapshot histories.
//
// Every function is pure: it reads the history it is given, never the store,
// and returns the same result for the same input.
package aggregate

import (
	"time"

	"github.com/acunetix2/sysmonitor/pkg/models"
)

type point struct {
	at    time.Time
	value float64
}

// Window returns the last n snapshots of history, or all of them when n <= 0
func Window(history []models.Snapshot, n int) []models.Snapshot {
	if n <= 0 || n >= len(history) {
		return history
	}
	return history[len(history)-n:]
}

// points extracts field values from the window, skipping snapshots that lack the field
func points(family models.MetricFamily, history []models.Snapshot, f Field, window int) ([]point, error) {
	ext, err := lookup(family, f)
	if err != nil {
		return nil, err
	}

	var out []point
	for _, s := range Window(history, window) {
		if s.Family != family {
			continue
		}
		if v, ok := ext(s.Payload); ok {
			out = append(out, point{at: s.Timestamp, value: v})
		}
	}

	if len(out) == 0 {
		return nil, &models.QueryError{Reason: models.ReasonInsufficientData, Family: family, Field: string(f)}
	}
	return out, nil
}

// RollingAverage is the mean of field over the last window snapshots
func RollingAverage(family models.MetricFamily, history []models.Snapshot, f Field, window int) (float64, error) {
	pts, err := points(family, history, f, window)
	if err != nil {
		return 0, err
	}

	// Identical inputs must average to themselves exactly.
	first := pts[0].value
	same := true
	sum := 0.0
	for _, p := range pts {
		sum += p.value
		if p.value != first {
			same = false
		}
	}
	if same {
		return first, nil
	}
	return sum / float64(len(pts)), nil
}

// Peak is the maximum of field over the last window snapshots
func Peak(family models.MetricFamily, history []models.Snapshot, f Field, window int) (float64, error) {
	pts, err := points(family, history, f, window)
	if err != nil {
		return 0, err
	}

	peak := pts[0].value
	for _, p := range pts[1:] {
		if p.value > peak {
			peak = p.value
		}
	}
	return peak, nil
}

// Rate is the per-second increase of a monotonically increasing counter over the window.
// A single sample yields zero. When the counter decreases, the sample after the drop
// becomes the new baseline, so a reset never produces a negative rate.
func Rate(family models.MetricFamily, history []models.Snapshot, f Field, window int) (float64, error) {
	pts, err := points(family, history, f, window)
	if err != nil {
		return 0, err
	}

	base := 0
	for i := 1; i < len(pts); i++ {
		if pts[i].value < pts[i-1].value {
			base = i
		}
	}

	last := pts[len(pts)-1]
	first := pts[base]
	elapsed := last.at.Sub(first.at).Seconds()
	if elapsed <= 0 {
		return 0, nil
	}
	return (last.value - first.value) / elapsed, nil
}

// ProcessCPURates derives per-PID CPU usage, in percent of one core, from the
// cumulative CPU time of the first and last process snapshots in the window.
// Processes whose start time differs between the two are treated as new (PID reuse)
// and omitted, as are processes missing from the first snapshot.
func ProcessCPURates(history []models.Snapshot, window int) (map[int32]float64, error) {
	var lists []models.Snapshot
	for _, s := range Window(history, window) {
		if _, ok := s.Payload.(models.ProcessListPayload); ok {
			lists = append(lists, s)
		}
	}
	if len(lists) == 0 {
		return nil, &models.QueryError{Reason: models.ReasonInsufficientData, Family: models.FamilyProcesses}
	}

	rates := make(map[int32]float64)
	if len(lists) == 1 {
		return rates, nil
	}

	first := lists[0]
	last := lists[len(lists)-1]
	elapsed := last.Timestamp.Sub(first.Timestamp).Seconds()
	if elapsed <= 0 {
		return rates, nil
	}

	before := make(map[int32]models.ProcessInfo)
	for _, p := range first.Payload.(models.ProcessListPayload).Processes {
		before[p.PID] = p
	}

	for _, p := range last.Payload.(models.ProcessListPayload).Processes {
		prev, ok := before[p.PID]
		if !ok || !prev.StartTime.Equal(p.StartTime) {
			continue
		}
		delta := p.CPUTime - prev.CPUTime
		if delta < 0 {
			delta = 0
		}
		rates[p.PID] = delta / elapsed * 100
	}

	return rates, nil
}
