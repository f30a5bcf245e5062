package testutil

import (
	"time"

	"github.com/acunetix2/sysmonitor/pkg/models"
)

// CPUSnapshot builds a CPU snapshot with the given usage at t
func CPUSnapshot(t time.Time, usage float64) models.Snapshot {
	return models.Snapshot{
		Family:    models.FamilyCPU,
		Timestamp: t,
		Payload:   models.CPUPayload{CoreCount: 4, UsagePercent: usage},
	}
}

// NetworkSnapshot builds a single-interface network snapshot with the given byte counters at t
func NetworkSnapshot(t time.Time, iface string, sent, recv uint64) models.Snapshot {
	return models.Snapshot{
		Family:    models.FamilyNetwork,
		Timestamp: t,
		Payload: models.NetworkPayload{Interfaces: map[string]models.NetworkInterface{
			iface: {IsUp: true, Counters: &models.NetCounters{BytesSent: sent, BytesRecv: recv}},
		}},
	}
}

// Series builds CPU snapshots one interval apart starting at start, one per value
func Series(start time.Time, interval time.Duration, values ...float64) []models.Snapshot {
	out := make([]models.Snapshot, 0, len(values))
	for i, v := range values {
		out = append(out, CPUSnapshot(start.Add(time.Duration(i)*interval), v))
	}
	return out
}
