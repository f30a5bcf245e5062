// Package render turns snapshots and host facts into terminal tables.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/acunetix2/sysmonitor/internal/metrics/static"
	"github.com/acunetix2/sysmonitor/internal/query"
	"github.com/acunetix2/sysmonitor/pkg/models"
)

const timeLayout = "2006-01-02 15:04:05"

// Presenter is the interface for showing metrics to a user
type Presenter interface {
	// Banner prints the startup banner in the given style
	Banner(style BannerStyle, version string) error

	// Rule prints a horizontal separator with a centered title
	Rule(title string) error

	System(info *static.HostInfo) error
	CPU(p models.CPUPayload) error
	Memory(p models.MemoryPayload) error
	Disk(p models.DiskPayload) error
	Network(p models.NetworkPayload) error
	Processes(p models.ProcessListPayload) error

	// Failure reports a family that could not be collected
	Failure(family models.MetricFamily, err error) error

	// Dashboard prints one frame of the live view
	Dashboard(q *query.Facade, opts DashboardOptions) error
}

// TextPresenter writes aligned plain-text tables
type TextPresenter struct {
	w     io.Writer
	width int
}

var _ Presenter = (*TextPresenter)(nil)

// NewTextPresenter creates a presenter writing to w
func NewTextPresenter(w io.Writer) *TextPresenter {
	return &TextPresenter{w: w, width: 72}
}

// table is a titled tabwriter section
type table struct {
	p  *TextPresenter
	tw *tabwriter.Writer
}

func (p *TextPresenter) table(title string, header ...string) *table {
	if title != "" {
		fmt.Fprintf(p.w, "\n%s\n", title)
	}
	t := &table{p: p, tw: tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)}
	if len(header) > 0 {
		t.row(header...)
		dashes := make([]string, len(header))
		for i, h := range header {
			dashes[i] = strings.Repeat("-", len(h))
		}
		t.row(dashes...)
	}
	return t
}

func (t *table) row(cells ...string) {
	fmt.Fprintln(t.tw, strings.Join(cells, "\t"))
}

func (t *table) flush() error {
	return t.tw.Flush()
}

// Rule prints a full-width separator with a centered title
func (p *TextPresenter) Rule(title string) error {
	title = " " + title + " "
	side := (p.width - len(title)) / 2
	if side < 3 {
		side = 3
	}
	_, err := fmt.Fprintf(p.w, "%s%s%s\n", strings.Repeat("─", side), title, strings.Repeat("─", side))
	return err
}

// System prints basic host information
func (p *TextPresenter) System(info *static.HostInfo) error {
	t := p.table("Basic System Information", "Metric", "Value")

	if s := info.System; s != nil {
		t.row("Hostname", s.Hostname)
		t.row("OS", strings.TrimSpace(s.Platform+" "+s.PlatformVersion))
		t.row("Kernel", s.KernelVersion)
		t.row("Architecture", s.KernelArch)
		if s.Virtualization != "" {
			t.row("Virtualization", s.Virtualization)
		}
		t.row("Boot Time", s.BootTime.Format(timeLayout))
		t.row("Uptime", formatUptime(s.Uptime))
	}
	if h := info.Hardware; h != nil {
		t.row("Processor", orDash(h.CPUModel))
		t.row("Cores", fmt.Sprintf("%d physical, %d logical", h.CPUCores, h.CPUThreads))
		t.row("Memory", formatBytes(h.TotalMemory))
	}
	if n := info.Network; n != nil {
		if n.FQDN != "" && n.FQDN != n.Hostname {
			t.row("FQDN", n.FQDN)
		}
		t.row("IP Address", orDash(strings.Join(n.InternalIPs, ", ")))
		t.row("Timezone", n.Timezone)
	}

	return t.flush()
}

// CPU prints core count, usage and load average
func (p *TextPresenter) CPU(c models.CPUPayload) error {
	t := p.table("CPU Information", "Metric", "Value")
	t.row("Cores", fmt.Sprintf("%d", c.CoreCount))
	t.row("Usage %", formatPercent(c.UsagePercent))
	if c.LoadAvg != nil {
		t.row("Load Avg", fmt.Sprintf("%.2f %.2f %.2f", c.LoadAvg.Load1, c.LoadAvg.Load5, c.LoadAvg.Load15))
	}
	return t.flush()
}

// Memory prints RAM and swap usage
func (p *TextPresenter) Memory(m models.MemoryPayload) error {
	t := p.table("Memory Information", "Metric", "Value")
	t.row("Total", formatBytes(m.TotalBytes))
	t.row("Used", fmt.Sprintf("%s (%s)", formatBytes(m.UsedBytes), formatPercent(m.UsedPercent())))
	t.row("Available", formatBytes(m.AvailableBytes))
	if m.Swap != nil {
		t.row("Swap", fmt.Sprintf("%s / %s", formatBytes(m.Swap.UsedBytes), formatBytes(m.Swap.TotalBytes)))
	}
	return t.flush()
}

// Disk prints one row per mounted partition
func (p *TextPresenter) Disk(d models.DiskPayload) error {
	t := p.table("Disk Usage", "Device", "Mountpoint", "Type", "Used", "Total", "Remaining", "Use%")
	for _, part := range d.Partitions {
		t.row(part.Device, part.Mountpoint, orDash(part.FSType),
			formatBytes(part.UsedBytes), formatBytes(part.TotalBytes), formatBytes(part.FreeBytes),
			formatPercent(part.UsedPercent()))
	}
	return t.flush()
}

// Network prints one row per interface, sorted by name
func (p *TextPresenter) Network(n models.NetworkPayload) error {
	t := p.table("Network Interfaces", "Interface", "IPv4", "IPv6", "MAC Address", "MTU", "Speed (Mbps)", "Status", "Sent", "Received")
	for _, name := range n.Names() {
		iface := n.Interfaces[name]
		sent, recv := "-", "-"
		if c := iface.Counters; c != nil {
			sent, recv = formatBytes(c.BytesSent), formatBytes(c.BytesRecv)
		}
		t.row(name, optString(iface.IPv4), optString(iface.IPv6), optString(iface.MAC),
			optUint(iface.MTU), optUint(iface.SpeedMbps), upDown(iface.IsUp), sent, recv)
	}
	return t.flush()
}

// Processes prints the ranked process list
func (p *TextPresenter) Processes(l models.ProcessListPayload) error {
	t := p.table(fmt.Sprintf("Running Processes (top %d of %d)", len(l.Processes), l.Total),
		"PID", "Name", "User", "Status", "CPU %", "Memory %", "Threads", "Start Time")
	for _, proc := range l.Processes {
		t.row(fmt.Sprintf("%d", proc.PID), orNA(proc.Name), orNA(proc.User), orDash(proc.Status),
			fmt.Sprintf("%.1f", proc.CPUPercent), fmt.Sprintf("%.1f", proc.MemoryPercent),
			fmt.Sprintf("%d", proc.ThreadCount), formatStart(proc.StartTime))
	}
	return t.flush()
}

// Failure prints a one-line notice for a family that could not be collected
func (p *TextPresenter) Failure(family models.MetricFamily, err error) error {
	_, werr := fmt.Fprintf(p.w, "\n%s: unavailable (%v)\n", family, err)
	return werr
}

func formatStart(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}
