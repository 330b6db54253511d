package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loykin/initd"
)

var version = "dev"

// RunFlags holds flags for the run command.
type RunFlags struct {
	ConfigPath string
}

func buildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "initd",
		Short:         "initd supervises services as an init process",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newValidateCmd(), newVersionCmd())
	return root
}

func newRunCmd() *cobra.Command {
	flags := &RunFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Launch all configured services and supervise them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervisor(cmd.Context(), flags.ConfigPath)
		},
	}
	cmd.Flags().StringVarP(&flags.ConfigPath, "config", "c", "/etc/initd/initd.toml", "path to TOML config")
	return cmd
}

func newValidateCmd() *cobra.Command {
	flags := &RunFlags{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initd.LoadConfig(flags.ConfigPath)
			if err != nil {
				return err
			}
			specs, err := cfg.Specs()
			if err != nil {
				return err
			}
			cmd.Printf("%s: ok (%d services)\n", flags.ConfigPath, len(specs))
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags.ConfigPath, "config", "c", "/etc/initd/initd.toml", "path to TOML config")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the initd version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("initd %s\n", version)
		},
	}
}

// runSupervisor wires config, logging, history, metrics and heartbeats
// around the supervisor and blocks until a termination signal.
func runSupervisor(ctx context.Context, configPath string) error {
	cfg, err := initd.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := initd.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = log.Close() }()

	sup := initd.New(initd.SupervisorConfig{
		GracePeriod:   cfg.Supervisor.GracePeriod,
		WatchdogTick:  cfg.Supervisor.WatchdogTick,
		RestartMax:    cfg.Supervisor.RestartMax,
		RestartWindow: cfg.Supervisor.RestartWindow,
	}, initd.NewExecSpawner(cfg.Capture), log)

	specs, err := cfg.Specs()
	if err != nil {
		return err
	}
	for _, spec := range specs {
		if err := sup.Register(spec); err != nil {
			return fmt.Errorf("register %s: %w", spec.Name, err)
		}
	}

	if cfg.HistoryDSN != "" {
		sink, err := initd.NewHistorySink(cfg.HistoryDSN)
		if err != nil {
			return fmt.Errorf("history sink: %w", err)
		}
		defer func() { _ = sink.Close() }()
		sup.SetHistorySinks(sink)
	}

	if cfg.MetricsListen != "" {
		if err := initd.RegisterMetricsDefault(); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		go func() { _ = initd.ServeMetrics(cfg.MetricsListen) }()
	}

	if cfg.HeartbeatSocket != "" {
		hb, err := initd.ListenHeartbeats(cfg.HeartbeatSocket)
		if err != nil {
			return fmt.Errorf("heartbeat socket: %w", err)
		}
		defer func() { _ = hb.Close() }()
		go func() {
			for name := range hb.Beats() {
				sup.Heartbeat(name)
			}
		}()
	}

	sup.LaunchAll()
	return sup.Run(ctx)
}
