package aggregate

import (
	"strconv"
	"strings"

	"github.com/acunetix2/sysmonitor/pkg/models"
)

// Field names a numeric value extracted from a snapshot payload.
// "name@key" narrows a summed field to one entity: an interface name,
// a mountpoint or a PID.
type Field string

const (
	CPUUsage     Field = "usage_percent"
	CPULoad1     Field = "load1"
	CPULoad5     Field = "load5"
	CPULoad15    Field = "load15"
	CPUCoreCount Field = "core_count"

	MemTotal     Field = "total_bytes"
	MemUsed      Field = "used_bytes"
	MemAvailable Field = "available_bytes"
	MemUsedPct   Field = "used_percent"
	MemSwapUsed  Field = "swap_used_bytes"

	DiskUsed    Field = "used_bytes"
	DiskFree    Field = "free_bytes"
	DiskTotal   Field = "total_bytes"
	DiskUsedPct Field = "used_percent"

	DiskReadBytes  Field = "read_bytes"
	DiskWriteBytes Field = "write_bytes"
	DiskReads      Field = "reads"
	DiskWrites     Field = "writes"

	NetBytesSent   Field = "bytes_sent"
	NetBytesRecv   Field = "bytes_recv"
	NetPacketsSent Field = "packets_sent"
	NetPacketsRecv Field = "packets_recv"
	NetErrorsIn    Field = "errors_in"
	NetErrorsOut   Field = "errors_out"
	NetDropsIn     Field = "drops_in"
	NetDropsOut    Field = "drops_out"
	NetUp          Field = "interfaces_up"

	ProcCount  Field = "count"
	ProcTotal  Field = "total"
	ProcCPU    Field = "cpu_percent"
	ProcMemory Field = "memory_percent"
)

// For narrows f to a single entity
func For(f Field, key string) Field {
	return Field(string(f) + "@" + key)
}

func (f Field) split() (string, string, bool) {
	return strings.Cut(string(f), "@")
}

// extractor returns the value of a field in a payload; false when the payload lacks it
type extractor func(p models.Payload) (float64, bool)

var cpuFields = map[string]func(models.CPUPayload) (float64, bool){
	string(CPUUsage):     func(p models.CPUPayload) (float64, bool) { return p.UsagePercent, true },
	string(CPUCoreCount): func(p models.CPUPayload) (float64, bool) { return float64(p.CoreCount), true },
	string(CPULoad1): func(p models.CPUPayload) (float64, bool) {
		if p.LoadAvg == nil {
			return 0, false
		}
		return p.LoadAvg.Load1, true
	},
	string(CPULoad5): func(p models.CPUPayload) (float64, bool) {
		if p.LoadAvg == nil {
			return 0, false
		}
		return p.LoadAvg.Load5, true
	},
	string(CPULoad15): func(p models.CPUPayload) (float64, bool) {
		if p.LoadAvg == nil {
			return 0, false
		}
		return p.LoadAvg.Load15, true
	},
}

var memFields = map[string]func(models.MemoryPayload) (float64, bool){
	string(MemTotal):     func(p models.MemoryPayload) (float64, bool) { return float64(p.TotalBytes), true },
	string(MemUsed):      func(p models.MemoryPayload) (float64, bool) { return float64(p.UsedBytes), true },
	string(MemAvailable): func(p models.MemoryPayload) (float64, bool) { return float64(p.AvailableBytes), true },
	string(MemUsedPct):   func(p models.MemoryPayload) (float64, bool) { return p.UsedPercent(), true },
	string(MemSwapUsed): func(p models.MemoryPayload) (float64, bool) {
		if p.Swap == nil {
			return 0, false
		}
		return float64(p.Swap.UsedBytes), true
	},
}

var diskFields = map[string]func(models.DiskPartition) uint64{
	string(DiskUsed):  func(d models.DiskPartition) uint64 { return d.UsedBytes },
	string(DiskFree):  func(d models.DiskPartition) uint64 { return d.FreeBytes },
	string(DiskTotal): func(d models.DiskPartition) uint64 { return d.TotalBytes },
}

var diskIOFields = map[string]func(models.DiskIOCounters) uint64{
	string(DiskReadBytes):  func(c models.DiskIOCounters) uint64 { return c.ReadBytes },
	string(DiskWriteBytes): func(c models.DiskIOCounters) uint64 { return c.WriteBytes },
	string(DiskReads):      func(c models.DiskIOCounters) uint64 { return c.ReadCount },
	string(DiskWrites):     func(c models.DiskIOCounters) uint64 { return c.WriteCount },
}

var netFields = map[string]func(models.NetCounters) uint64{
	string(NetBytesSent):   func(c models.NetCounters) uint64 { return c.BytesSent },
	string(NetBytesRecv):   func(c models.NetCounters) uint64 { return c.BytesRecv },
	string(NetPacketsSent): func(c models.NetCounters) uint64 { return c.PacketsSent },
	string(NetPacketsRecv): func(c models.NetCounters) uint64 { return c.PacketsRecv },
	string(NetErrorsIn):    func(c models.NetCounters) uint64 { return c.ErrorsIn },
	string(NetErrorsOut):   func(c models.NetCounters) uint64 { return c.ErrorsOut },
	string(NetDropsIn):     func(c models.NetCounters) uint64 { return c.DropsIn },
	string(NetDropsOut):    func(c models.NetCounters) uint64 { return c.DropsOut },
}

var procFields = map[string]func(models.ProcessInfo) float64{
	string(ProcCPU):    func(p models.ProcessInfo) float64 { return p.CPUPercent },
	string(ProcMemory): func(p models.ProcessInfo) float64 { return p.MemoryPercent },
}

// lookup resolves a field for a family, or returns ErrUnknownField
func lookup(family models.MetricFamily, f Field) (extractor, error) {
	name, key, keyed := f.split()
	unknown := &models.QueryError{Reason: models.ReasonUnknownField, Family: family, Field: string(f)}

	switch family {
	case models.FamilyCPU:
		fn, ok := cpuFields[name]
		if !ok || keyed {
			return nil, unknown
		}
		return func(p models.Payload) (float64, bool) {
			c, ok := p.(models.CPUPayload)
			if !ok {
				return 0, false
			}
			return fn(c)
		}, nil

	case models.FamilyMemory:
		fn, ok := memFields[name]
		if !ok || keyed {
			return nil, unknown
		}
		return func(p models.Payload) (float64, bool) {
			m, ok := p.(models.MemoryPayload)
			if !ok {
				return 0, false
			}
			return fn(m)
		}, nil

	case models.FamilyDisk:
		return diskExtractor(name, key, keyed, unknown)

	case models.FamilyNetwork:
		return netExtractor(name, key, keyed, unknown)

	case models.FamilyProcesses:
		return procExtractor(name, key, keyed, unknown)
	}

	return nil, &models.QueryError{Reason: models.ReasonUnknownFamily, Family: family}
}

func diskExtractor(name, mount string, keyed bool, unknown error) (extractor, error) {
	sum := func(parts []models.DiskPartition, fn func(models.DiskPartition) uint64) (uint64, bool) {
		var total uint64
		found := !keyed
		for _, d := range parts {
			if keyed && d.Mountpoint != mount {
				continue
			}
			found = true
			total += fn(d)
		}
		return total, found
	}

	if name == string(DiskUsedPct) {
		return func(p models.Payload) (float64, bool) {
			d, ok := p.(models.DiskPayload)
			if !ok {
				return 0, false
			}
			used, found := sum(d.Partitions, diskFields[string(DiskUsed)])
			total, _ := sum(d.Partitions, diskFields[string(DiskTotal)])
			if !found || total == 0 {
				return 0, found
			}
			return float64(used) / float64(total) * 100, true
		}, nil
	}

	if fn, ok := diskIOFields[name]; ok {
		return diskIOExtractor(fn, mount, keyed), nil
	}

	fn, ok := diskFields[name]
	if !ok {
		return nil, unknown
	}
	return func(p models.Payload) (float64, bool) {
		d, ok := p.(models.DiskPayload)
		if !ok {
			return 0, false
		}
		v, found := sum(d.Partitions, fn)
		return float64(v), found
	}, nil
}

// diskIOExtractor sums an I/O counter over devices, or reads one device when keyed
func diskIOExtractor(fn func(models.DiskIOCounters) uint64, device string, keyed bool) extractor {
	return func(p models.Payload) (float64, bool) {
		d, ok := p.(models.DiskPayload)
		if !ok || len(d.IO) == 0 {
			return 0, false
		}
		if keyed {
			c, ok := d.IO[device]
			if !ok {
				return 0, false
			}
			return float64(fn(c)), true
		}

		var total uint64
		for _, c := range d.IO {
			total += fn(c)
		}
		return float64(total), true
	}
}

func netExtractor(name, iface string, keyed bool, unknown error) (extractor, error) {
	if name == string(NetUp) {
		if keyed {
			return nil, unknown
		}
		return func(p models.Payload) (float64, bool) {
			n, ok := p.(models.NetworkPayload)
			if !ok {
				return 0, false
			}
			up := 0
			for _, i := range n.Interfaces {
				if i.IsUp {
					up++
				}
			}
			return float64(up), true
		}, nil
	}

	fn, ok := netFields[name]
	if !ok {
		return nil, unknown
	}
	return func(p models.Payload) (float64, bool) {
		n, ok := p.(models.NetworkPayload)
		if !ok {
			return 0, false
		}
		if keyed {
			i, ok := n.Interfaces[iface]
			if !ok || i.Counters == nil {
				return 0, false
			}
			return float64(fn(*i.Counters)), true
		}

		var total uint64
		found := false
		for _, i := range n.Interfaces {
			if i.Counters == nil {
				continue
			}
			found = true
			total += fn(*i.Counters)
		}
		return float64(total), found
	}, nil
}

func procExtractor(name, key string, keyed bool, unknown error) (extractor, error) {
	switch name {
	case string(ProcCount), string(ProcTotal):
		if keyed {
			return nil, unknown
		}
		total := name == string(ProcTotal)
		return func(p models.Payload) (float64, bool) {
			l, ok := p.(models.ProcessListPayload)
			if !ok {
				return 0, false
			}
			if total {
				return float64(l.Total), true
			}
			return float64(len(l.Processes)), true
		}, nil
	}

	fn, ok := procFields[name]
	if !ok {
		return nil, unknown
	}

	var pid int64
	if keyed {
		var err error
		if pid, err = strconv.ParseInt(key, 10, 32); err != nil {
			return nil, unknown
		}
	}

	return func(p models.Payload) (float64, bool) {
		l, ok := p.(models.ProcessListPayload)
		if !ok {
			return 0, false
		}
		var total float64
		for _, proc := range l.Processes {
			if keyed {
				if int64(proc.PID) == pid {
					return fn(proc), true
				}
				continue
			}
			total += fn(proc)
		}
		return total, !keyed
	}, nil
}
