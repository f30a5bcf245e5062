package metrics

import (
	"context"

	"github.com/shirou/gopsutil/v4/mem"

	"github.com/acunetix2/sysmonitor/pkg/models"
)

// MemoryCollector reads RAM and swap usage
type MemoryCollector struct{}

// NewMemoryCollector creates a new memory collector
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{}
}

// Collect takes a single memory usage measurement
func (m *MemoryCollector) Collect(ctx context.Context) (models.Payload, error) {
	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, Classify(models.FamilyMemory, err)
	}

	payload := memoryPayload(vmem.Total, vmem.Used, vmem.Available)

	// Swap is optional; hosts without it still report memory
	if swap, err := mem.SwapMemoryWithContext(ctx); err == nil && swap.Total > 0 {
		payload.Swap = &models.SwapUsage{
			TotalBytes: swap.Total,
			UsedBytes:  min(swap.Used, swap.Total),
		}
	}

	return payload, nil
}

// memoryPayload clamps used to total so the payload invariant always holds
func memoryPayload(total, used, available uint64) models.MemoryPayload {
	return models.MemoryPayload{
		TotalBytes:     total,
		UsedBytes:      min(used, total),
		AvailableBytes: min(available, total),
	}
}
