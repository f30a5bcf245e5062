package models

import (
	"sort"
	"time"
)

// Snapshot is one successful collection for a family. It is never mutated after creation.
type Snapshot struct {
	Family             MetricFamily  `json:"family"`
	Timestamp          time.Time     `json:"timestamp"`
	Payload            Payload       `json:"payload"`
	CollectionDuration time.Duration `json:"collection_duration"`
}

// Clone returns a deep copy of the snapshot
func (s Snapshot) Clone() Snapshot {
	if s.Payload != nil {
		s.Payload = s.Payload.clone()
	}
	return s
}

// Payload is the family-specific body of a snapshot.
// The set of implementations is closed: CPUPayload, MemoryPayload, DiskPayload,
// NetworkPayload and ProcessListPayload.
type Payload interface {
	Family() MetricFamily
	clone() Payload
}

// CPUPayload contains CPU usage information
type CPUPayload struct {
	CoreCount    uint     `json:"core_count"`
	UsagePercent float64  `json:"usage_percent"`
	LoadAvg      *LoadAvg `json:"load_avg,omitempty"` // nil where the platform has no load average
}

// LoadAvg holds the 1, 5 and 15 minute load averages
type LoadAvg struct {
	Load1  float64 `json:"load1"`
	Load5  float64 `json:"load5"`
	Load15 float64 `json:"load15"`
}

func (CPUPayload) Family() MetricFamily { return FamilyCPU }

func (p CPUPayload) clone() Payload {
	if p.LoadAvg != nil {
		l := *p.LoadAvg
		p.LoadAvg = &l
	}
	return p
}

// MemoryPayload contains memory usage information.
// UsedBytes never exceeds TotalBytes.
type MemoryPayload struct {
	TotalBytes     uint64     `json:"total_bytes"`
	UsedBytes      uint64     `json:"used_bytes"`
	AvailableBytes uint64     `json:"available_bytes"`
	Swap           *SwapUsage `json:"swap,omitempty"`
}

// SwapUsage contains swap memory usage information
type SwapUsage struct {
	TotalBytes uint64 `json:"total_bytes"`
	UsedBytes  uint64 `json:"used_bytes"`
}

func (MemoryPayload) Family() MetricFamily { return FamilyMemory }

func (p MemoryPayload) clone() Payload {
	if p.Swap != nil {
		s := *p.Swap
		p.Swap = &s
	}
	return p
}

// UsedPercent returns used memory as a percentage of total
func (p MemoryPayload) UsedPercent() float64 {
	if p.TotalBytes == 0 {
		return 0
	}
	return float64(p.UsedBytes) / float64(p.TotalBytes) * 100
}

// DiskPayload lists mounted partitions in collection order.
// Partitions that could not be read are omitted, not zero-filled.
type DiskPayload struct {
	Partitions []DiskPartition           `json:"partitions"`
	IO         map[string]DiskIOCounters `json:"io,omitempty"` // by device name; nil when unsupported
}

// DiskIOCounters are cumulative block device counters
type DiskIOCounters struct {
	ReadBytes  uint64 `json:"read_bytes"`
	WriteBytes uint64 `json:"write_bytes"`
	ReadCount  uint64 `json:"read_count"`
	WriteCount uint64 `json:"write_count"`
}

// DiskPartition contains usage of a single mounted filesystem
type DiskPartition struct {
	Device     string `json:"device"`     // Device path (e.g., /dev/sda1)
	Mountpoint string `json:"mountpoint"` // Mount point (e.g., /)
	FSType     string `json:"fstype"`     // Filesystem type (e.g., ext4, xfs)
	UsedBytes  uint64 `json:"used_bytes"`
	FreeBytes  uint64 `json:"free_bytes"`
	TotalBytes uint64 `json:"total_bytes"`
}

// UsedPercent returns used space as a percentage of total
func (d DiskPartition) UsedPercent() float64 {
	if d.TotalBytes == 0 {
		return 0
	}
	return float64(d.UsedBytes) / float64(d.TotalBytes) * 100
}

func (DiskPayload) Family() MetricFamily { return FamilyDisk }

func (p DiskPayload) clone() Payload {
	if p.Partitions != nil {
		p.Partitions = append([]DiskPartition(nil), p.Partitions...)
	}
	if p.IO != nil {
		io := make(map[string]DiskIOCounters, len(p.IO))
		for dev, c := range p.IO {
			io[dev] = c
		}
		p.IO = io
	}
	return p
}

// NetworkPayload maps interface name to its state
type NetworkPayload struct {
	Interfaces map[string]NetworkInterface `json:"interfaces"`
}

// NetworkInterface describes one interface. Optional fields are nil when unknown.
type NetworkInterface struct {
	IPv4      *string      `json:"ipv4,omitempty"`
	IPv6      *string      `json:"ipv6,omitempty"`
	MAC       *string      `json:"mac,omitempty"`
	MTU       *uint        `json:"mtu,omitempty"`
	SpeedMbps *uint        `json:"speed_mbps,omitempty"`
	IsUp      bool         `json:"is_up"`
	Counters  *NetCounters `json:"counters,omitempty"`
}

// NetCounters are monotonically increasing interface counters
type NetCounters struct {
	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
	ErrorsIn    uint64 `json:"errors_in"`
	ErrorsOut   uint64 `json:"errors_out"`
	DropsIn     uint64 `json:"drops_in"`
	DropsOut    uint64 `json:"drops_out"`
}

// Names returns the interface names in sorted order
func (p NetworkPayload) Names() []string {
	names := make([]string, 0, len(p.Interfaces))
	for name := range p.Interfaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (NetworkPayload) Family() MetricFamily { return FamilyNetwork }

func (p NetworkPayload) clone() Payload {
	if p.Interfaces == nil {
		return p
	}
	ifaces := make(map[string]NetworkInterface, len(p.Interfaces))
	for name, iface := range p.Interfaces {
		iface.IPv4 = cloneString(iface.IPv4)
		iface.IPv6 = cloneString(iface.IPv6)
		iface.MAC = cloneString(iface.MAC)
		iface.MTU = cloneUint(iface.MTU)
		iface.SpeedMbps = cloneUint(iface.SpeedMbps)
		if iface.Counters != nil {
			c := *iface.Counters
			iface.Counters = &c
		}
		ifaces[name] = iface
	}
	p.Interfaces = ifaces
	return p
}

// ProcessListPayload is the CPU-descending top-N of the process table
type ProcessListPayload struct {
	Processes []ProcessInfo `json:"processes"`
	Total     int           `json:"total"` // processes seen before truncation
}

// ProcessInfo describes a single process
type ProcessInfo struct {
	PID           int32     `json:"pid"`
	Name          string    `json:"name"`
	User          string    `json:"user"`
	Status        string    `json:"status"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	ThreadCount   int32     `json:"thread_count"`
	StartTime     time.Time `json:"start_time"`
	CPUTime       float64   `json:"cpu_time"` // user+system seconds
}

func (ProcessListPayload) Family() MetricFamily { return FamilyProcesses }

func (p ProcessListPayload) clone() Payload {
	if p.Processes != nil {
		p.Processes = append([]ProcessInfo(nil), p.Processes...)
	}
	return p
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneUint(u *uint) *uint {
	if u == nil {
		return nil
	}
	v := *u
	return &v
}
