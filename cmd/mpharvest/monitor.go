package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yuchenq/mpharvest/internal/monitor"
)

var monitorInterval int

// monitorCmd creates the "monitor" command group.
func monitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Manage the account monitor service",
		Long: `The monitor service checks accounts for new articles on a
per-account schedule. Settings persist across restarts.`,
	}

	cmd.AddCommand(monitorAddCmd())
	cmd.AddCommand(monitorListCmd())
	cmd.AddCommand(monitorRemoveCmd())
	cmd.AddCommand(monitorToggleCmd())
	cmd.AddCommand(monitorCheckCmd())
	cmd.AddCommand(monitorRunCmd())
	return cmd
}

// buildMonitor wires a monitor service on top of a fresh collector.
func buildMonitor() (*monitor.Service, func(), error) {
	cfg, logger, err := setup()
	if err != nil {
		return nil, nil, err
	}

	c, cleanup, err := buildCollector(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	service, err := monitor.NewService(c, cfg.Monitor.ConfigFile, cfg.Monitor.DefaultInterval, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return service, cleanup, nil
}

func monitorAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [account]",
		Short: "Add an account to the monitor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, cleanup, err := buildMonitor()
			if err != nil {
				return err
			}
			defer cleanup()

			err = service.Add(args[0], monitor.AccountConfig{
				IntervalMinutes: monitorInterval,
				Formats:         splitFormats(formatList),
				Enabled:         true,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Monitoring %s every %d minutes\n", args[0], monitorInterval)
			return nil
		},
	}
	cmd.Flags().IntVarP(&monitorInterval, "interval", "i", 60, "check interval in minutes")
	cmd.Flags().StringVarP(&formatList, "formats", "f", "", "comma-separated export formats")
	return cmd
}

func monitorListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List monitored accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, cleanup, err := buildMonitor()
			if err != nil {
				return err
			}
			defer cleanup()

			status := service.Status()
			if len(status) == 0 {
				fmt.Println("No accounts are monitored.")
				return nil
			}
			for _, s := range status {
				state := "disabled"
				if s.Config.Enabled {
					state = fmt.Sprintf("every %dm", s.Config.IntervalMinutes)
				}
				fmt.Printf("%-24s %-12s collected %d, errors %d", s.Account, state, s.TotalCollected, s.ErrorCount)
				if !s.LastCheckTime.IsZero() {
					fmt.Printf(", last check %s", s.LastCheckTime.Format("2006-01-02 15:04"))
				}
				if s.LastError != "" {
					fmt.Printf(", last error: %s", s.LastError)
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func monitorRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [account]",
		Short: "Stop monitoring an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, cleanup, err := buildMonitor()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := service.Remove(args[0]); err != nil {
				return err
			}
			fmt.Printf("Stopped monitoring %s\n", args[0])
			return nil
		},
	}
}

func monitorToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle [account]",
		Short: "Enable or disable checks for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, cleanup, err := buildMonitor()
			if err != nil {
				return err
			}
			defer cleanup()

			account := args[0]
			enabled := false
			for _, s := range service.Status() {
				if s.Account == account {
					enabled = s.Config.Enabled
				}
			}
			if enabled {
				err = service.Disable(account)
			} else {
				err = service.Enable(account)
			}
			if err != nil {
				return err
			}
			fmt.Printf("%s is now %s\n", account, map[bool]string{true: "disabled", false: "enabled"}[enabled])
			return nil
		},
	}
}

func monitorCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [account]",
		Short: "Check an account immediately, outside the schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, cleanup, err := buildMonitor()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result, err := service.ForceCheck(ctx, args[0])
			if err != nil {
				return err
			}
			printResult(result)
			if !result.Success {
				os.Exit(1)
			}
			return nil
		},
	}
}

func monitorRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the monitor service in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, cleanup, err := buildMonitor()
			if err != nil {
				return err
			}
			defer cleanup()

			enabled := 0
			for _, s := range service.Status() {
				if s.Config.Enabled {
					enabled++
				}
			}
			if enabled == 0 {
				return fmt.Errorf("no enabled accounts; add one with `mpharvest monitor add`")
			}

			service.Start()
			defer service.Stop()
			fmt.Printf("Monitor running with %d enabled accounts. Press Ctrl-C to stop.\n", enabled)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			fmt.Println("\nStopping monitor...")
			return nil
		},
	}
}
