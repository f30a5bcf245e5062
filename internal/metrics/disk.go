package metrics

import (
	"context"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/acunetix2/sysmonitor/pkg/models"
)

// DiskCollector reports usage of every mounted partition and block device I/O counters
type DiskCollector struct {
	all bool
}

// NewDiskCollector creates a disk collector. When all is false pseudo filesystems are skipped.
func NewDiskCollector(all bool) *DiskCollector {
	return &DiskCollector{all: all}
}

// Collect reads usage per partition. Partitions that cannot be read are left out.
func (d *DiskCollector) Collect(ctx context.Context) (models.Payload, error) {
	partitions, err := disk.PartitionsWithContext(ctx, d.all)
	if err != nil {
		return nil, Classify(models.FamilyDisk, err)
	}

	payload := models.DiskPayload{Partitions: make([]models.DiskPartition, 0, len(partitions))}
	seen := make(map[string]bool)

	for _, partition := range partitions {
		if !d.all && shouldSkipFilesystem(partition.Fstype) {
			continue
		}
		if seen[partition.Mountpoint] {
			continue
		}

		usage, err := disk.UsageWithContext(ctx, partition.Mountpoint)
		if err != nil {
			if ctx.Err() != nil {
				return nil, Classify(models.FamilyDisk, ctx.Err())
			}
			continue
		}
		seen[partition.Mountpoint] = true

		payload.Partitions = append(payload.Partitions, models.DiskPartition{
			Device:     partition.Device,
			Mountpoint: partition.Mountpoint,
			FSType:     partition.Fstype,
			UsedBytes:  min(usage.Used, usage.Total),
			FreeBytes:  usage.Free,
			TotalBytes: usage.Total,
		})
	}

	// I/O counters are optional; some platforms and containers do not expose them
	if counters, err := disk.IOCountersWithContext(ctx); err == nil && len(counters) > 0 {
		payload.IO = make(map[string]models.DiskIOCounters, len(counters))
		for device, c := range counters {
			payload.IO[device] = models.DiskIOCounters{
				ReadBytes:  c.ReadBytes,
				WriteBytes: c.WriteBytes,
				ReadCount:  c.ReadCount,
				WriteCount: c.WriteCount,
			}
		}
	}

	return payload, nil
}

var skipFilesystems = map[string]bool{
	"tmpfs":    true,
	"devtmpfs": true,
	"devfs":    true,
	"proc":     true,
	"sysfs":    true,
	"cgroup":   true,
	"cgroup2":  true,
	"nsfs":     true,
	"overlay":  true,
	"squashfs": true,
	"iso9660":  true,
}

// shouldSkipFilesystem determines if a filesystem type should be skipped
func shouldSkipFilesystem(fstype string) bool {
	return skipFilesystems[fstype]
}
