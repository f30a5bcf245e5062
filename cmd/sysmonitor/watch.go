package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/acunetix2/sysmonitor/internal/metrics"
	"github.com/acunetix2/sysmonitor/internal/query"
	"github.com/acunetix2/sysmonitor/internal/render"
	"github.com/acunetix2/sysmonitor/internal/sampler"
	"github.com/acunetix2/sysmonitor/internal/store"
)

const clearScreen = "\033[H\033[2J"

var (
	watchWindow int
	watchTop    int
	watchPlain  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously sample all families and show a live dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		warnIfUnprivileged()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return watch(ctx, cmd)
	},
}

func init() {
	watchCmd.Flags().IntVar(&watchWindow, "window", 10, "Samples used for averages and rates (0 for all buffered)")
	watchCmd.Flags().IntVar(&watchTop, "top", 10, "Number of busiest processes to show")
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "Append frames instead of redrawing the screen")
}

func watch(ctx context.Context, cmd *cobra.Command) error {
	entry := log.WithField("command", "watch")

	st := store.New(cfg.RingCapacity, cfg.EnabledFamilies)
	collectors := metrics.DefaultCollectors(cfg.EnabledFamilies, cfg.CollectorOptions())
	s := sampler.New(st, collectors, cfg.SamplerOptions(), entry)

	if err := s.Start(ctx); err != nil {
		return err
	}

	q := query.New(st)
	p := render.NewTextPresenter(cmd.OutOrStdout())
	out := cmd.OutOrStdout()

	ticker := time.NewTicker(cfg.Refresh)
	defer ticker.Stop()

	draw := func() error {
		if !watchPlain {
			fmt.Fprint(out, clearScreen)
		}
		return p.Dashboard(q, render.DashboardOptions{Window: watchWindow, TopProcesses: watchTop})
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\nReceived shutdown signal...")
			return s.Stop()
		case <-ticker.C:
			if err := draw(); err != nil {
				_ = s.Stop()
				return err
			}
		}
	}
}
