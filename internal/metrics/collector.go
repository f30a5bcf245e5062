// Package metrics provides gopsutil-backed collectors for every metric family.
package metrics

import (
	"context"
	"os"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/acunetix2/sysmonitor/pkg/models"
)

// Collector gathers one snapshot payload of a single metric family.
// Implementations must be safe to call repeatedly, but are never called
// concurrently with themselves.
type Collector interface {
	Collect(ctx context.Context) (models.Payload, error)
}

// CollectorFunc adapts a plain function to the Collector interface
type CollectorFunc func(ctx context.Context) (models.Payload, error)

func (f CollectorFunc) Collect(ctx context.Context) (models.Payload, error) {
	return f(ctx)
}

// Options tunes the default collectors
type Options struct {
	CPUSampleWindow time.Duration // blocking window for CPU percent; 0 measures since the previous call
	AllPartitions   bool          // include pseudo filesystems
	TopN            int           // processes kept per snapshot
}

// DefaultCollectors returns a collector for each requested family
func DefaultCollectors(families []models.MetricFamily, opts Options) map[models.MetricFamily]Collector {
	out := make(map[models.MetricFamily]Collector, len(families))
	for _, f := range families {
		switch f {
		case models.FamilyCPU:
			out[f] = NewCPUCollector(opts.CPUSampleWindow)
		case models.FamilyMemory:
			out[f] = NewMemoryCollector()
		case models.FamilyDisk:
			out[f] = NewDiskCollector(opts.AllPartitions)
		case models.FamilyNetwork:
			out[f] = NewNetworkCollector()
		case models.FamilyProcesses:
			out[f] = NewProcessCollector(opts.TopN)
		}
	}
	return out
}

// Classify converts a raw collector error into a CollectionError for family
func Classify(family models.MetricFamily, err error) *models.CollectionError {
	if err == nil {
		return nil
	}

	var cerr *models.CollectionError
	if errors.As(err, &cerr) {
		if cerr.Family == "" {
			cp := *cerr
			cp.Family = family
			return &cp
		}
		return cerr
	}

	reason := models.ReasonUnknown
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		reason = models.ReasonTimeout
	case errors.Is(err, os.ErrPermission), errors.Is(err, process.ErrorNotPermitted):
		reason = models.ReasonPermissionDenied
	case errors.Is(err, os.ErrNotExist), strings.Contains(err.Error(), "not implemented"):
		reason = models.ReasonUnavailable
	}

	return &models.CollectionError{Family: family, Reason: reason, Err: err}
}
