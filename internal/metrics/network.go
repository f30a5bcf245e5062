package metrics

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	gopsutilNet "github.com/shirou/gopsutil/v4/net"

	"github.com/acunetix2/sysmonitor/pkg/models"
)

const defaultSysfsNet = "/sys/class/net"

// NetworkCollector reports addresses, link state and counters per interface
type NetworkCollector struct {
	sysfsNet string // link speed source; only present on Linux
}

// NewNetworkCollector creates a new network collector
func NewNetworkCollector() *NetworkCollector {
	return &NetworkCollector{sysfsNet: defaultSysfsNet}
}

// Collect enumerates interfaces and attaches their I/O counters
func (n *NetworkCollector) Collect(ctx context.Context) (models.Payload, error) {
	interfaces, err := gopsutilNet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, Classify(models.FamilyNetwork, err)
	}

	counters := make(map[string]gopsutilNet.IOCountersStat)
	if ioCounters, err := gopsutilNet.IOCountersWithContext(ctx, true); err == nil {
		for _, c := range ioCounters {
			counters[c.Name] = c
		}
	}

	payload := models.NetworkPayload{Interfaces: make(map[string]models.NetworkInterface, len(interfaces))}

	for _, iface := range interfaces {
		addrs := make([]string, 0, len(iface.Addrs))
		for _, a := range iface.Addrs {
			addrs = append(addrs, a.Addr)
		}

		entry := describeInterface(addrs, iface.HardwareAddr, iface.MTU, iface.Flags)
		entry.SpeedMbps = n.linkSpeed(iface.Name)

		if c, ok := counters[iface.Name]; ok {
			entry.Counters = &models.NetCounters{
				BytesSent:   c.BytesSent,
				BytesRecv:   c.BytesRecv,
				PacketsSent: c.PacketsSent,
				PacketsRecv: c.PacketsRecv,
				ErrorsIn:    c.Errin,
				ErrorsOut:   c.Errout,
				DropsIn:     c.Dropin,
				DropsOut:    c.Dropout,
			}
		}

		payload.Interfaces[iface.Name] = entry
	}

	return payload, nil
}

// describeInterface picks the first IPv4 and IPv6 address, the MAC and the link state
func describeInterface(addrs []string, hwAddr string, mtu int, flags []string) models.NetworkInterface {
	var entry models.NetworkInterface

	for _, addr := range addrs {
		// Parse IP from CIDR notation
		ip, _, err := net.ParseCIDR(addr)
		if err != nil {
			ip = net.ParseIP(addr)
		}
		if ip == nil {
			continue
		}

		s := ip.String()
		if ip.To4() != nil {
			if entry.IPv4 == nil {
				entry.IPv4 = &s
			}
		} else if entry.IPv6 == nil {
			entry.IPv6 = &s
		}
	}

	if hwAddr != "" {
		entry.MAC = &hwAddr
	}
	if mtu > 0 {
		m := uint(mtu)
		entry.MTU = &m
	}
	for _, f := range flags {
		if f == "up" {
			entry.IsUp = true
			break
		}
	}

	return entry
}

// linkSpeed reads the negotiated speed in Mbps; nil when unknown or the link is down
func (n *NetworkCollector) linkSpeed(name string) *uint {
	if n.sysfsNet == "" {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(n.sysfsNet, name, "speed"))
	if err != nil {
		return nil
	}

	speed, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || speed <= 0 {
		return nil
	}

	s := uint(speed)
	return &s
}
