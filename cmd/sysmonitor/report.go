package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/acunetix2/sysmonitor/internal/metrics"
	"github.com/acunetix2/sysmonitor/internal/metrics/static"
	"github.com/acunetix2/sysmonitor/internal/render"
	"github.com/acunetix2/sysmonitor/pkg/models"
)

const staticTimeout = 5 * time.Second

var systemCmd = &cobra.Command{
	Use:   "system",
	Short: "Show basic system information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showSystem(cmd.Context(), presenter(cmd))
	},
}

var cpuCmd = familyCommand("cpu", "Show CPU usage and details", models.FamilyCPU)
var memoryCmd = familyCommand("memory", "Show memory usage (RAM)", models.FamilyMemory)
var diskCmd = familyCommand("disk", "Show disk usage (SSD/HDD)", models.FamilyDisk)
var networkCmd = familyCommand("network", "Show detailed network interfaces info", models.FamilyNetwork)
var processesCmd = familyCommand("processes", "Show detailed running processes", models.FamilyProcesses)

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Show all of the above",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := presenter(cmd)
		ctx := cmd.Context()

		if err := p.Rule("System Monitor - Full Report"); err != nil {
			return err
		}
		if err := showSystem(ctx, p); err != nil {
			return err
		}
		// One failing family does not hide the others
		for _, f := range models.AllFamilies() {
			if err := showFamily(ctx, p, f); err != nil {
				if werr := p.Failure(f, err); werr != nil {
					return werr
				}
			}
		}
		return p.Rule("End of Report")
	},
}

func familyCommand(use, short string, family models.MetricFamily) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showFamily(cmd.Context(), presenter(cmd), family)
		},
	}
}

func presenter(cmd *cobra.Command) render.Presenter {
	return render.NewTextPresenter(cmd.OutOrStdout())
}

func showSystem(ctx context.Context, p render.Presenter) error {
	ctx, cancel := context.WithTimeout(ctx, staticTimeout)
	defer cancel()

	info, err := static.Collect(ctx)
	if err != nil {
		// Partial results are still worth showing
		log.WithError(err).Warn("Some host information is unavailable")
	}
	return p.System(info)
}

func showFamily(ctx context.Context, p render.Presenter, family models.MetricFamily) error {
	if family == models.FamilyProcesses {
		warnIfUnprivileged()
	}

	payload, err := collectOnce(ctx, family)
	if err != nil {
		return err
	}

	switch v := payload.(type) {
	case models.CPUPayload:
		return p.CPU(v)
	case models.MemoryPayload:
		return p.Memory(v)
	case models.DiskPayload:
		return p.Disk(v)
	case models.NetworkPayload:
		return p.Network(v)
	case models.ProcessListPayload:
		return p.Processes(v)
	}
	return models.NewCollectionError(family, models.ReasonUnknown, "unexpected payload %T", payload)
}

// collectOnce calls the family's collector directly with its configured timeout.
// Process CPU percentages are deltas between calls, so that collector is primed
// first and measured after the CPU sample window.
func collectOnce(ctx context.Context, family models.MetricFamily) (models.Payload, error) {
	collector := metrics.DefaultCollectors([]models.MetricFamily{family}, cfg.CollectorOptions())[family]
	timeout := cfg.Timeouts[family]

	call := func() (models.Payload, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		payload, err := collector.Collect(callCtx)
		if err != nil {
			return nil, metrics.Classify(family, err)
		}
		return payload, nil
	}

	if family == models.FamilyProcesses && cfg.CPUSampleWindow > 0 {
		if _, err := call(); err != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.CPUSampleWindow):
		}
	}

	return call()
}
