package main

import (
	"fmt"
	"os"

	"emperror.dev/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/acunetix2/sysmonitor/internal/config"
	"github.com/acunetix2/sysmonitor/internal/render"
)

var (
	cfgPath     string
	logLevel    string
	bannerStyle string
	showVersion bool

	cfg = config.Default()
	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "sysmonitor",
	Short: "SysMonitor - Cross-platform System Information Tool",
	Long: `SysMonitor shows host information and live CPU, memory, disk, network and process metrics.

Run a subcommand for a one-shot report, or "watch" for a continuously sampled dashboard.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			printVersion(cmd)
			return nil
		}
		style, err := render.ParseBannerStyle(bannerStyle)
		if err != nil {
			return err
		}
		return render.NewTextPresenter(cmd.OutOrStdout()).Banner(style, config.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultConfigPath, "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level. One of debug, info, warn, error, fatal, panic (overrides config and environment)")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show version and exit")
	rootCmd.Flags().StringVar(&bannerStyle, "style", string(render.BannerPanel), "Banner style: ascii | panel | big")

	rootCmd.AddCommand(systemCmd, cpuCmd, memoryCmd, diskCmd, networkCmd, processesCmd, allCmd, watchCmd)
}

// setup loads configuration from the env file, YAML, environment and flags, in that order
func setup(cmd *cobra.Command) error {
	log.SetOutput(os.Stderr)

	if err := config.LoadEnvFile(); err != nil {
		log.WithError(err).Warn("Failed to load env file")
	}

	loaded, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := loaded.ApplyEnv(); err != nil {
		return err
	}
	if logLevel != "" {
		loaded.LogLevel = logLevel
	}
	if err := loaded.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	level, err := logrus.ParseLevel(loaded.LogLevel)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	log.SetLevel(level)

	cfg = loaded
	log.WithFields(logrus.Fields{
		"config":   cfgPath,
		"families": cfg.EnabledFamilies,
		"capacity": cfg.RingCapacity,
	}).Debug("Configuration loaded")
	return nil
}

func printVersion(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sysmonitor v%s\n", config.Version)
	fmt.Fprintf(out, "Commit: %s\n", config.Commit)
	fmt.Fprintf(out, "Build Date: %s\n", config.BuildDate)
}

// warnIfUnprivileged notes that some process and disk details need root
func warnIfUnprivileged() {
	if os.Geteuid() != 0 {
		log.Warn("Running without root privileges. Some metrics may not be available.")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
