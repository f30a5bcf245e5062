package static

import (
	"context"
	"net"
	"os"
	"strings"
	"time"

	gopsutilNet "github.com/shirou/gopsutil/v4/net"
)

// NetworkInfo contains host addressing information
type NetworkInfo struct {
	Hostname    string
	FQDN        string
	InternalIPs []string
	Timezone    string
}

// CollectNetworkInfo gathers hostname, FQDN and non-loopback addresses
func CollectNetworkInfo(ctx context.Context) (*NetworkInfo, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	interfaces, err := gopsutilNet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var addrs []string
	for _, iface := range interfaces {
		for _, a := range iface.Addrs {
			addrs = append(addrs, a.Addr)
		}
	}

	zone, _ := time.Now().Zone()

	return &NetworkInfo{
		Hostname:    hostname,
		FQDN:        lookupFQDN(ctx, hostname),
		InternalIPs: usableAddresses(addrs),
		Timezone:    zone,
	}, nil
}

// usableAddresses keeps non-loopback, specified IPs, IPv4 first
func usableAddresses(addrs []string) []string {
	var v4, v6 []string
	for _, addr := range addrs {
		// Parse IP from CIDR notation
		ip, _, err := net.ParseCIDR(addr)
		if err != nil {
			ip = net.ParseIP(addr)
		}
		if ip == nil || ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() {
			continue
		}
		if ip.To4() != nil {
			v4 = append(v4, ip.String())
		} else {
			v6 = append(v6, ip.String())
		}
	}
	return append(v4, v6...)
}

// lookupFQDN attempts a reverse lookup of the hostname, falling back to the hostname
func lookupFQDN(ctx context.Context, hostname string) string {
	addrs, err := net.DefaultResolver.LookupAddr(ctx, hostname)
	if err == nil && len(addrs) > 0 {
		return strings.TrimSuffix(addrs[0], ".")
	}
	return hostname
}
