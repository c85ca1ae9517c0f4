package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmylchreest/wakelightd/internal/config"
	"github.com/jmylchreest/wakelightd/internal/events"
	"github.com/jmylchreest/wakelightd/internal/scheduler"
	"github.com/jmylchreest/wakelightd/internal/utils"
	"github.com/jmylchreest/wakelightd/pkg/schedule"
	"github.com/jmylchreest/wakelightd/pkg/wiz"
)

// newRootCommand creates the wakelightd command. Without a subcommand it runs the daemon.
func newRootCommand(version, commit, buildDate string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "wakelightd",
		Short:         "Sunrise wake light daemon for WiZ bulbs",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger.Info("Starting wakelightd",
				"version", version,
				"commit", commit,
				"buildDate", buildDate,
				"config", cfg.Path(),
			)
			return runWithSignals(cmd.Context(), cfg, logger)
		},
	}

	cmd.PersistentFlags().String("config", "", "Path to config file")
	cmd.PersistentFlags().String("log-level", config.LogLevelInfo, "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", config.LogFormatText, "Log format (text, json)")

	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newDiscoverCommand())
	cmd.AddCommand(newVersionCommand(version, commit, buildDate))
	return cmd
}

// loadConfig reads the config file and builds the logger. Logging flags take
// precedence over the config file.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(config.DaemonConfigFilename, configFile)
	if err != nil {
		return nil, nil, err
	}

	v := viper.New()
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	bindLogFlags(v, cmd.Flags())
	cfg.Logging.Level = utils.ValidateLogLevel(v.GetString("logging.level"))
	cfg.Logging.Format = utils.ValidateLogFormat(v.GetString("logging.format"))

	logger := utils.NewLogger(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	utils.SetAsDefaultLogger(logger)
	return cfg, logger, nil
}

// bindLogFlags binds the logging flags so they take precedence over the config file
func bindLogFlags(v *viper.Viper, flags *pflag.FlagSet) {
	v.BindPFlag("logging.level", flags.Lookup("log-level"))
	v.BindPFlag("logging.format", flags.Lookup("log-format"))
}

// runWithSignals runs the daemon until SIGINT or SIGTERM
func runWithSignals(parent context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Shutting down...", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	light := wiz.NewLight(cfg.BulbMAC, cfg.BroadcastAddr, logger, wiz.Options{
		Port:             cfg.Discovery.Port,
		DiscoveryTimeout: cfg.Discovery.Timeout,
		CommandTimeout:   cfg.Discovery.CommandTimeout,
	})
	d := &daemon{
		cfg:    cfg,
		light:  light,
		bus:    events.NewBus(),
		logger: logger,
	}
	return d.run(ctx)
}

// newCheckCommand validates the config and prints the weekly plan
func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print the weekly plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config:     %s\n", cfg.Path())
			fmt.Fprintf(out, "Bulb:       %s via %s\n", wiz.NormalizeMAC(cfg.BulbMAC), cfg.BroadcastAddr)
			fmt.Fprintf(out, "Brightness: up to %d, curve %s, %s\n", cfg.MaxBrightness, cfg.Effect.CurveName, cfg.Effect.Color())
			fmt.Fprintf(out, "Sampling:   every %s\n\n", cfg.Effect.SamplingInterval)

			table := pterm.TableData{{"Day", "Window"}}
			for i, w := range cfg.Schedule.Days() {
				plan := "off"
				if w != nil {
					plan = w.String()
				}
				table = append(table, []string{schedule.DayNames[i], plan})
			}
			if err := renderTable(out, table); err != nil {
				return err
			}

			now := time.Now()
			fmt.Fprintf(out, "Next plan:  %s\n", scheduler.NextTick(now, cfg.Scheduler.NextDayOffset).Format(time.RFC3339))
			return nil
		},
	}
}

// newConfigCommand prints the effective configuration
func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return cfg.WriteYAML(cmd.OutOrStdout())
		},
	}
}

// newDiscoverCommand lists the bulbs answering on the broadcast address
func newDiscoverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List WiZ bulbs answering on the broadcast address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			timeout, _ := cmd.Flags().GetDuration("timeout")
			if timeout <= 0 {
				timeout = cfg.Discovery.Timeout
			}

			bulbs, err := wiz.DiscoverAll(cmd.Context(), cfg.BroadcastAddr, cfg.Discovery.Port, timeout, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(bulbs) == 0 {
				fmt.Fprintln(out, "No bulbs found")
				return nil
			}
			want := wiz.NormalizeMAC(cfg.BulbMAC)
			table := pterm.TableData{{"MAC", "IP", "State", "Configured"}}
			for _, b := range bulbs {
				configured := "no"
				if b.MAC == want {
					configured = "yes"
				}
				state := pilotState(cmd.Context(), b, cfg, logger)
				table = append(table, []string{b.MAC, b.IP.String(), state, configured})
			}
			return renderTable(out, table)
		},
	}
	cmd.Flags().Duration("timeout", 0, "How long to listen for replies (default discovery.timeout)")
	return cmd
}

// pilotState asks a discovered bulb for its current state
func pilotState(ctx context.Context, b wiz.Bulb, cfg *config.Config, logger *slog.Logger) string {
	client, err := wiz.Dial(b.IP, cfg.Discovery.Port, logger, cfg.Discovery.CommandTimeout)
	if err != nil {
		return "unreachable"
	}
	defer client.Close()

	state, err := client.GetPilot(ctx)
	if err != nil {
		logger.Debug("light: failed to read state", "mac", b.MAC, "error", err)
		return "unreachable"
	}
	return state.String()
}

// renderTable prints data with a header row to w
func renderTable(w io.Writer, data pterm.TableData) error {
	table := pterm.DefaultTable.WithHasHeader().WithData(data)
	table.Writer = w
	return table.Render()
}

// newVersionCommand creates the version command
func newVersionCommand(version, commit, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", commit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
