package metrics

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"

	"github.com/acunetix2/sysmonitor/pkg/models"
)

// CPUCollector measures overall CPU usage and load averages
type CPUCollector struct {
	sampleWindow time.Duration
}

// NewCPUCollector creates a CPU collector. A positive sampleWindow blocks for that long
// while measuring; zero reports usage since the previous call.
func NewCPUCollector(sampleWindow time.Duration) *CPUCollector {
	return &CPUCollector{sampleWindow: sampleWindow}
}

// Collect takes a single CPU usage measurement
func (c *CPUCollector) Collect(ctx context.Context) (models.Payload, error) {
	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, Classify(models.FamilyCPU, err)
	}

	// Overall usage, not per-core
	percentages, err := cpu.PercentWithContext(ctx, c.sampleWindow, false)
	if err != nil {
		return nil, Classify(models.FamilyCPU, err)
	}
	if len(percentages) == 0 {
		return nil, models.NewCollectionError(models.FamilyCPU, models.ReasonUnavailable, "no cpu usage reported")
	}

	payload := models.CPUPayload{
		CoreCount:    uint(cores),
		UsagePercent: percentages[0],
	}

	// Load average is not available on every platform
	if avg, err := load.AvgWithContext(ctx); err == nil {
		payload.LoadAvg = &models.LoadAvg{
			Load1:  avg.Load1,
			Load5:  avg.Load5,
			Load15: avg.Load15,
		}
	}

	return payload, nil
}
