package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acunetix2/sysmonitor/internal/metrics/static"
	"github.com/acunetix2/sysmonitor/internal/query"
	"github.com/acunetix2/sysmonitor/internal/store"
	"github.com/acunetix2/sysmonitor/internal/testutil"
	"github.com/acunetix2/sysmonitor/pkg/models"
)

func ptr[T any](v T) *T { return &v }

func render(t *testing.T, fn func(p *TextPresenter) error) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, fn(NewTextPresenter(&buf)))
	return buf.String()
}

func TestParseBannerStyle(t *testing.T) {
	for in, want := range map[string]BannerStyle{"ascii": BannerASCII, "PANEL": BannerPanel, " big ": BannerBig, "": BannerPanel} {
		got, err := ParseBannerStyle(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseBannerStyle("fancy")
	assert.Error(t, err)
}

func TestBanner(t *testing.T) {
	for _, style := range []BannerStyle{BannerASCII, BannerPanel, BannerBig} {
		out := render(t, func(p *TextPresenter) error { return p.Banner(style, "1.2.3") })
		assert.Contains(t, out, "v1.2.3", style)
	}

	out := render(t, func(p *TextPresenter) error { return p.Banner(BannerPanel, "1.0.0") })
	assert.Contains(t, out, "SYSMONITOR")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	width := len([]rune(lines[0]))
	for _, l := range lines {
		assert.Equal(t, width, len([]rune(l)), "panel rows must line up: %q", l)
	}
}

func TestSystem(t *testing.T) {
	info := &static.HostInfo{
		System: &static.SystemInfo{Hostname: "web-1", Platform: "ubuntu", PlatformVersion: "24.04",
			KernelVersion: "6.8.0", KernelArch: "x86_64", Uptime: 26*time.Hour + 5*time.Minute},
		Network: &static.NetworkInfo{Hostname: "web-1", FQDN: "web-1.example.com", InternalIPs: []string{"10.0.0.5"}},
	}

	out := render(t, func(p *TextPresenter) error { return p.System(info) })
	assert.Contains(t, out, "Basic System Information")
	assert.Contains(t, out, "ubuntu 24.04")
	assert.Contains(t, out, "1d 2h 5m")
	assert.Contains(t, out, "web-1.example.com")
	assert.Contains(t, out, "10.0.0.5")
	assert.NotContains(t, out, "Processor", "missing hardware section is skipped")
}

func TestCPUAndMemory(t *testing.T) {
	out := render(t, func(p *TextPresenter) error {
		return p.CPU(models.CPUPayload{CoreCount: 8, UsagePercent: 12.34, LoadAvg: &models.LoadAvg{Load1: 0.5, Load5: 0.25, Load15: 1}})
	})
	assert.Contains(t, out, "12.3%")
	assert.Contains(t, out, "0.50 0.25 1.00")

	mem := models.MemoryPayload{TotalBytes: 8 << 30, UsedBytes: 2 << 30, AvailableBytes: 6 << 30}
	out = render(t, func(p *TextPresenter) error { return p.Memory(mem) })
	assert.Contains(t, out, datasize.ByteSize(8<<30).HumanReadable())
	assert.Contains(t, out, "25.0%")
	assert.NotContains(t, out, "Swap")
}

func TestDiskTable(t *testing.T) {
	out := render(t, func(p *TextPresenter) error {
		return p.Disk(models.DiskPayload{Partitions: []models.DiskPartition{
			{Device: "/dev/sda1", Mountpoint: "/", FSType: "ext4", UsedBytes: 30, FreeBytes: 70, TotalBytes: 100},
			{Device: "/dev/sdb1", Mountpoint: "/data", UsedBytes: 1, TotalBytes: 4},
		}})
	})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[3], "/dev/sda1")
	assert.Contains(t, lines[3], "30.0%")
	assert.Contains(t, lines[4], "25.0%")
	assert.Contains(t, lines[4], " - ", "missing filesystem type is dashed")
}

func TestNetworkTable(t *testing.T) {
	out := render(t, func(p *TextPresenter) error {
		return p.Network(models.NetworkPayload{Interfaces: map[string]models.NetworkInterface{
			"wlan0": {IsUp: false},
			"eth0": {IPv4: ptr("10.0.0.5"), MAC: ptr("aa:bb:cc:dd:ee:ff"), MTU: ptr(uint(1500)), SpeedMbps: ptr(uint(1000)),
				IsUp: true, Counters: &models.NetCounters{BytesSent: 2048, BytesRecv: 4096}},
		}})
	})

	eth := strings.Index(out, "eth0")
	wlan := strings.Index(out, "wlan0")
	require.True(t, eth > 0 && wlan > 0)
	assert.Less(t, eth, wlan, "interfaces are sorted")
	assert.Contains(t, out, "aa:bb:cc:dd:ee:ff")
	assert.Contains(t, out, "1500")
	assert.Contains(t, out, "Up")
	assert.Contains(t, out, "Down")
}

func TestProcessesTable(t *testing.T) {
	out := render(t, func(p *TextPresenter) error {
		return p.Processes(models.ProcessListPayload{Total: 120, Processes: []models.ProcessInfo{
			{PID: 1, Name: "init", User: "root", Status: "sleep", CPUPercent: 1.25, MemoryPercent: 0.5, ThreadCount: 1},
			{PID: 99},
		}})
	})
	assert.Contains(t, out, "top 2 of 120")
	assert.Contains(t, out, "init")
	assert.Contains(t, out, "N/A")
}

func TestFailure(t *testing.T) {
	out := render(t, func(p *TextPresenter) error {
		return p.Failure(models.FamilyDisk, models.NewCollectionError(models.FamilyDisk, models.ReasonPermissionDenied, "no access"))
	})
	assert.Contains(t, out, "disk: unavailable")
	assert.Contains(t, out, "no access")
}

func TestRule(t *testing.T) {
	out := render(t, func(p *TextPresenter) error { return p.Rule("Full Report") })
	assert.Contains(t, out, "─ Full Report ─")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "0h 59m", formatUptime(59*time.Minute+30*time.Second))
	assert.Equal(t, "2d 0h 1m", formatUptime(48*time.Hour+time.Minute))
	assert.Equal(t, "250ms", formatAge(250*time.Millisecond+300*time.Microsecond))
	assert.Equal(t, "1.5s", formatAge(1530*time.Millisecond))
	assert.Equal(t, "2m5s", formatAge(2*time.Minute+5*time.Second+400*time.Millisecond))
	assert.Equal(t, "-", optString(nil))
	assert.Equal(t, "-", optString(ptr("")))
	assert.Equal(t, "-", optUint(nil))
	assert.Equal(t, formatBytes(0)+"/s", formatRate(-5))
}

func TestDashboard(t *testing.T) {
	clock := testutil.NewClock()
	st := store.New(10, []models.MetricFamily{models.FamilyCPU, models.FamilyMemory, models.FamilyNetwork, models.FamilyProcesses},
		store.WithClock(clock))
	start := clock.Now()

	for _, s := range testutil.Series(start, time.Second, 10, 20, 30) {
		require.NoError(t, st.Push(s))
	}
	require.NoError(t, st.Push(testutil.NetworkSnapshot(start, "eth0", 0, 0)))
	require.NoError(t, st.Push(testutil.NetworkSnapshot(start.Add(2*time.Second), "eth0", 2048, 4096)))

	born := start.Add(-time.Hour)
	procs := func(at time.Time, a, b float64) models.Snapshot {
		return models.Snapshot{Family: models.FamilyProcesses, Timestamp: at, Payload: models.ProcessListPayload{
			Total: 2,
			Processes: []models.ProcessInfo{
				{PID: 10, Name: "idle", StartTime: born, CPUTime: a, CPUPercent: 90},
				{PID: 20, Name: "busy", StartTime: born, CPUTime: b},
			},
		}}
	}
	require.NoError(t, st.Push(procs(start, 0, 0)))
	require.NoError(t, st.Push(procs(start.Add(2*time.Second), 0.1, 1.5)))

	clock.Advance(2 * time.Second)
	st.RecordFailure(models.NewCollectionError(models.FamilyCPU, models.ReasonTimeout, "collection exceeded 3s"))

	out := render(t, func(p *TextPresenter) error {
		return p.Dashboard(query.New(st), DashboardOptions{Now: clock.Now(), TopProcesses: 5})
	})

	assert.Contains(t, out, "SYSMONITOR")
	assert.Contains(t, out, "all buffered samples")

	cpuLine := lineWith(t, out, "cpu ")
	assert.Contains(t, cpuLine, StatusStale)
	assert.Contains(t, cpuLine, "usage 30.0%", "last-known values stay visible")
	assert.Contains(t, cpuLine, "avg 20.0%")
	assert.Contains(t, cpuLine, "exceeded 3s")
	assert.Contains(t, cpuLine, "1 consecutive failures")

	assert.Contains(t, lineWith(t, out, "memory "), StatusWaiting)

	netLine := lineWith(t, out, "network ")
	assert.Contains(t, netLine, StatusOK)
	assert.Contains(t, netLine, "rx "+formatRate(2048))
	assert.Contains(t, netLine, "tx "+formatRate(1024))

	// Ranking uses CPU time deltas, not the collector's instantaneous percent
	busy := strings.Index(out, "busy")
	idle := strings.Index(out, "idle")
	require.True(t, busy > 0 && idle > 0)
	assert.Less(t, busy, idle)
	assert.Contains(t, lineWith(t, out, "busy"), "75.0")
}

func TestStatus(t *testing.T) {
	snap := testutil.CPUSnapshot(time.Now(), 1)
	failing := store.Health{LastError: models.NewCollectionError(models.FamilyCPU, models.ReasonUnknown, "boom")}

	assert.Equal(t, StatusWaiting, Status(query.FamilySummary{}))
	assert.Equal(t, StatusOK, Status(query.FamilySummary{Latest: &snap}))
	assert.Equal(t, StatusStale, Status(query.FamilySummary{Latest: &snap, Health: failing}))
	assert.Equal(t, StatusStale, Status(query.FamilySummary{Health: failing}))
}

func lineWith(t *testing.T, out, needle string) string {
	t.Helper()
	for _, l := range strings.Split(out, "\n") {
		if strings.HasPrefix(l, needle) || strings.Contains(l, " "+needle) {
			return l
		}
	}
	t.Fatalf("no line containing %q in:\n%s", needle, out)
	return ""
}
