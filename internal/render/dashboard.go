package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/acunetix2/sysmonitor/internal/aggregate"
	"github.com/acunetix2/sysmonitor/internal/query"
	"github.com/acunetix2/sysmonitor/pkg/models"
)

// DashboardOptions controls one frame of the live view
type DashboardOptions struct {
	Now          time.Time
	Window       int // samples used for averages and rates; <= 0 means all buffered
	TopProcesses int
}

// Family statuses shown in the dashboard
const (
	StatusOK      = "OK"
	StatusStale   = "STALE"
	StatusWaiting = "WAITING"
)

var dashboardFields = map[models.MetricFamily][]aggregate.Field{
	models.FamilyCPU:       {aggregate.CPUUsage},
	models.FamilyMemory:    {aggregate.MemUsedPct},
	models.FamilyDisk:      {aggregate.DiskUsedPct, aggregate.DiskReadBytes, aggregate.DiskWriteBytes},
	models.FamilyNetwork:   {aggregate.NetBytesRecv, aggregate.NetBytesSent},
	models.FamilyProcesses: {aggregate.ProcTotal},
}

// Status classifies a family summary for display
func Status(sum query.FamilySummary) string {
	switch {
	case sum.Health.Failing():
		return StatusStale
	case sum.Latest == nil:
		return StatusWaiting
	default:
		return StatusOK
	}
}

// Dashboard prints the family overview and the busiest processes
func (p *TextPresenter) Dashboard(q *query.Facade, opts DashboardOptions) error {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	window := "all buffered samples"
	if opts.Window > 0 {
		window = fmt.Sprintf("last %d samples", opts.Window)
	}
	fmt.Fprintf(p.w, "SYSMONITOR  %s  (%s)\n", opts.Now.Format(timeLayout), window)

	t := p.table("", "Family", "Status", "Age", "Details")
	var procs *query.FamilySummary
	for _, f := range q.Families() {
		sum, err := q.Summary(f, dashboardFields[f], opts.Window)
		if err != nil {
			t.row(f.String(), StatusStale, "-", err.Error())
			continue
		}
		if f == models.FamilyProcesses {
			procs = &sum
		}

		status := Status(sum)
		age := "-"
		if sum.Latest != nil {
			age = formatAge(sum.Staleness)
		}

		details := describe(sum)
		if status == StatusStale {
			details = strings.TrimSpace(fmt.Sprintf("%s  [%s, %d consecutive failures]",
				details, sum.Health.LastError.Error(), sum.Health.ConsecutiveFailures))
		}
		t.row(f.String(), status, age, details)
	}
	if err := t.flush(); err != nil {
		return err
	}

	if procs != nil && procs.Latest != nil && opts.TopProcesses > 0 {
		return p.busiest(q, procs.Latest, opts)
	}
	return nil
}

// describe is the one-line detail text of a family
func describe(sum query.FamilySummary) string {
	if sum.Latest == nil {
		return ""
	}

	switch payload := sum.Latest.Payload.(type) {
	case models.CPUPayload:
		s := fmt.Sprintf("usage %s", formatPercent(payload.UsagePercent))
		if st := sum.Stats[aggregate.CPUUsage]; st.Err == nil {
			s += fmt.Sprintf("  avg %s  peak %s", formatPercent(st.Average), formatPercent(st.Peak))
		}
		if payload.LoadAvg != nil {
			s += fmt.Sprintf("  load %.2f %.2f %.2f", payload.LoadAvg.Load1, payload.LoadAvg.Load5, payload.LoadAvg.Load15)
		}
		return s

	case models.MemoryPayload:
		s := fmt.Sprintf("used %s of %s (%s)", formatBytes(payload.UsedBytes), formatBytes(payload.TotalBytes),
			formatPercent(payload.UsedPercent()))
		if st := sum.Stats[aggregate.MemUsedPct]; st.Err == nil {
			s += fmt.Sprintf("  avg %s", formatPercent(st.Average))
		}
		return s

	case models.DiskPayload:
		parts := make([]string, 0, len(payload.Partitions))
		for _, d := range payload.Partitions {
			parts = append(parts, fmt.Sprintf("%s %s", d.Mountpoint, formatPercent(d.UsedPercent())))
		}
		read, write := sum.Stats[aggregate.DiskReadBytes], sum.Stats[aggregate.DiskWriteBytes]
		if read.Err == nil && write.Err == nil {
			parts = append(parts, fmt.Sprintf("read %s  write %s", formatRate(read.Rate), formatRate(write.Rate)))
		}
		return strings.Join(parts, "  ")

	case models.NetworkPayload:
		up := 0
		for _, i := range payload.Interfaces {
			if i.IsUp {
				up++
			}
		}
		s := fmt.Sprintf("%d/%d up", up, len(payload.Interfaces))
		recv, sent := sum.Stats[aggregate.NetBytesRecv], sum.Stats[aggregate.NetBytesSent]
		if recv.Err == nil && sent.Err == nil {
			s = fmt.Sprintf("rx %s  tx %s  %s", formatRate(recv.Rate), formatRate(sent.Rate), s)
		}
		return s

	case models.ProcessListPayload:
		return fmt.Sprintf("%d processes", payload.Total)
	}

	return ""
}

// busiest prints the top processes ranked by CPU derived over the window,
// falling back to the collector's own percentages when no rate is known yet
func (p *TextPresenter) busiest(q *query.Facade, latest *models.Snapshot, opts DashboardOptions) error {
	list, ok := latest.Payload.(models.ProcessListPayload)
	if !ok {
		return nil
	}

	rates, err := q.ProcessCPU(opts.Window)
	if err != nil || len(rates) == 0 {
		rates = nil
	}
	cpuOf := func(proc models.ProcessInfo) float64 {
		if rates == nil {
			return proc.CPUPercent
		}
		return rates[proc.PID]
	}

	procs := append([]models.ProcessInfo(nil), list.Processes...)
	sort.SliceStable(procs, func(i, j int) bool {
		ci, cj := cpuOf(procs[i]), cpuOf(procs[j])
		if ci != cj {
			return ci > cj
		}
		return procs[i].PID < procs[j].PID
	})
	if len(procs) > opts.TopProcesses {
		procs = procs[:opts.TopProcesses]
	}

	t := p.table("Busiest Processes", "PID", "Name", "User", "CPU %", "Memory %", "Threads")
	for _, proc := range procs {
		t.row(fmt.Sprintf("%d", proc.PID), orNA(proc.Name), orNA(proc.User),
			fmt.Sprintf("%.1f", cpuOf(proc)), fmt.Sprintf("%.1f", proc.MemoryPercent),
			fmt.Sprintf("%d", proc.ThreadCount))
	}
	return t.flush()
}
