package metrics

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/acunetix2/sysmonitor/pkg/models"
)

const (
	// DefaultTopN is the number of processes kept per snapshot
	DefaultTopN = 15

	// handleTTL is how long a process handle survives without being seen
	handleTTL = time.Minute
)

// trackedProcess keeps the gopsutil handle between collections so CPU percent is
// measured since the previous collection rather than reported as zero.
type trackedProcess struct {
	proc    *process.Process
	created int64 // ms since epoch, detects PID reuse
}

// ProcessCollector ranks processes by CPU usage
type ProcessCollector struct {
	topN    int
	handles *ttlcache.Cache[int32, *trackedProcess]
}

// NewProcessCollector creates a process collector keeping the top n entries
func NewProcessCollector(topN int) *ProcessCollector {
	if topN <= 0 {
		topN = DefaultTopN
	}

	return &ProcessCollector{
		topN: topN,
		handles: ttlcache.New(
			ttlcache.WithTTL[int32, *trackedProcess](handleTTL),
		),
	}
}

// Collect enumerates the whole process table, then ranks it
func (c *ProcessCollector) Collect(ctx context.Context) (models.Payload, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, Classify(models.FamilyProcesses, err)
	}

	infos := make([]models.ProcessInfo, 0, len(procs))
	for _, p := range procs {
		if ctx.Err() != nil {
			return nil, Classify(models.FamilyProcesses, ctx.Err())
		}

		// Processes that exit or deny access mid-scan are skipped
		if info, ok := c.inspect(ctx, p); ok {
			infos = append(infos, info)
		}
	}

	c.handles.DeleteExpired()

	return models.ProcessListPayload{
		Processes: rankProcesses(infos, c.topN),
		Total:     len(infos),
	}, nil
}

// inspect reads one process through its cached handle
func (c *ProcessCollector) inspect(ctx context.Context, p *process.Process) (models.ProcessInfo, bool) {
	created, err := p.CreateTimeWithContext(ctx)
	if err != nil {
		return models.ProcessInfo{}, false
	}

	handle := p
	if item := c.handles.Get(p.Pid); item != nil && item.Value().created == created {
		handle = item.Value().proc
	} else {
		c.handles.Set(p.Pid, &trackedProcess{proc: p, created: created}, ttlcache.DefaultTTL)
	}

	name, err := handle.NameWithContext(ctx)
	if err != nil {
		return models.ProcessInfo{}, false
	}

	times, err := handle.TimesWithContext(ctx)
	if err != nil {
		return models.ProcessInfo{}, false
	}

	cpuPercent, err := handle.PercentWithContext(ctx, 0)
	if err != nil {
		return models.ProcessInfo{}, false
	}

	// The remaining attributes are best effort
	user, _ := handle.UsernameWithContext(ctx)
	memPercent, _ := handle.MemoryPercentWithContext(ctx)
	threads, _ := handle.NumThreadsWithContext(ctx)

	status := ""
	if st, err := handle.StatusWithContext(ctx); err == nil && len(st) > 0 {
		status = strings.Join(st, ",")
	}

	return models.ProcessInfo{
		PID:           p.Pid,
		Name:          name,
		User:          user,
		Status:        status,
		CPUPercent:    cpuPercent,
		MemoryPercent: float64(memPercent),
		ThreadCount:   threads,
		StartTime:     time.UnixMilli(created),
		CPUTime:       times.User + times.System,
	}, true
}

// rankProcesses sorts by CPU descending (PID ascending on ties) and keeps the top n
func rankProcesses(infos []models.ProcessInfo, n int) []models.ProcessInfo {
	ranked := append([]models.ProcessInfo(nil), infos...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].CPUPercent != ranked[j].CPUPercent {
			return ranked[i].CPUPercent > ranked[j].CPUPercent
		}
		return ranked[i].PID < ranked[j].PID
	})

	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
