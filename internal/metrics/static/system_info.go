package static

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/host"
)

// SystemInfo contains OS and kernel information
type SystemInfo struct {
	Hostname        string
	Platform        string
	PlatformFamily  string
	PlatformVersion string
	OS              string
	KernelVersion   string
	KernelArch      string
	Virtualization  string
	BootTime        time.Time
	Uptime          time.Duration
}

// CollectSystemInfo gathers OS, kernel, and virtualization information
func CollectSystemInfo(ctx context.Context) (*SystemInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, err
	}

	return &SystemInfo{
		Hostname:        info.Hostname,
		Platform:        info.Platform,
		PlatformFamily:  info.PlatformFamily,
		PlatformVersion: info.PlatformVersion,
		OS:              info.OS,
		KernelVersion:   info.KernelVersion,
		KernelArch:      info.KernelArch,
		Virtualization:  info.VirtualizationSystem,
		BootTime:        time.Unix(int64(info.BootTime), 0),
		Uptime:          time.Duration(info.Uptime) * time.Second,
	}, nil
}
