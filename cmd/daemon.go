package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/grovetools/gitbutler/cli"
	"github.com/grovetools/gitbutler/config"
	"github.com/grovetools/gitbutler/internal/daemon/collector"
	"github.com/grovetools/gitbutler/internal/daemon/engine"
	"github.com/grovetools/gitbutler/internal/daemon/pidfile"
	"github.com/grovetools/gitbutler/internal/daemon/server"
	"github.com/grovetools/gitbutler/internal/daemon/store"
	"github.com/grovetools/gitbutler/pkg/daemon"
	"github.com/grovetools/gitbutler/pkg/models"
	"github.com/grovetools/gitbutler/pkg/paths"
	"github.com/grovetools/gitbutler/pkg/projects"
	"github.com/spf13/cobra"
)

// NewDaemonCmd returns the daemon command with subcommands.
func NewDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the session watcher daemon",
		Long:  "The daemon watches every registered project, records working tree activity as sessions and snapshots each finished session into the project's history.",
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func runningConfig(cfg *config.Config, started time.Time) *server.RunningConfig {
	return &server.RunningConfig{
		TickInterval:  cfg.Watcher.TickInterval,
		IdleTimeout:   cfg.Watcher.IdleTimeout,
		MaxSessionAge: cfg.Watcher.MaxSessionAge,
		HistoryRef:    cfg.Storage.HistoryRef,
		StartedAt:     started,
		PID:           os.Getpid(),
	}
}

func newDaemonStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		Long:  "Start the gitbutler daemon in foreground mode.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			logger := cli.GetLogger(cmd, "gitbutlerd")
			pidPath := paths.PidFilePath()
			sockPath := daemon.SocketPath(cfg)
			started := time.Now()

			// 1. Acquire Lock
			if err := pidfile.Acquire(pidPath); err != nil {
				return err
			}
			defer func() {
				if err := pidfile.Release(pidPath); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			// 2. Setup Store and Engine
			var cfgMu sync.RWMutex
			current := cfg
			st := store.New(store.DefaultRecent)
			eng := engine.New(st, func(p models.Project) collector.Collector {
				cfgMu.RLock()
				defer cfgMu.RUnlock()
				return collector.NewProjectCollector(p, current, logger.WithField("project", p.ID))
			}, logger)

			debounce := time.Duration(cfg.Daemon.RegistryDebounceMs) * time.Millisecond
			eng.Register(collector.NewRegistryCollector(projects.Default(), debounce, logger.WithField("collector", "registry")))

			// 3. Setup Server with engine
			srv := server.New(logger)
			srv.SetEngine(eng)
			srv.SetRunningConfig(runningConfig(cfg, started))

			// 4. Handle Signals
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			// 5. Reload settings when the configuration changes
			watcher, err := daemon.NewConfigWatcher(paths.ConfigDir(), time.Duration(cfg.Daemon.RegistryDebounceMs)*time.Millisecond, logger.WithField("component", "config-watcher"), func(next *config.Config) {
				cfgMu.Lock()
				current = next
				cfgMu.Unlock()
				srv.SetRunningConfig(runningConfig(next, started))
				eng.Restart()
			})
			if err != nil {
				logger.WithError(err).Warn("Configuration changes will need a restart")
			} else {
				go watcher.Start(ctx)
			}

			// 6. Start Engine in background
			engineDone := make(chan struct{})
			go func() {
				eng.Start(ctx)
				close(engineDone)
			}()

			go func() {
				<-ctx.Done()
				logger.Info("Received stop signal")

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Errorf("Server shutdown error: %v", err)
				}
			}()

			// 7. Start Server (Blocking)
			logger.WithField("pid", os.Getpid()).Info("Starting daemon")
			if err := srv.ListenAndServe(sockPath); err != nil && err != http.ErrServerClosed {
				cancel()
				<-engineDone
				return fmt.Errorf("server error: %w", err)
			}

			<-engineDone
			logger.Info("Daemon stopped")
			return nil
		},
	}
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := paths.PidFilePath()

			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}

			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}

			// Send SIGTERM
			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}

			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGTERM to process %d\n", pid)
			return nil
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}

			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Stopped")
				os.Exit(1) // Return non-zero for stopped state (useful for scripts)
			}

			socket := daemon.SocketPath(cfg)
			fmt.Fprintf(cmd.OutOrStdout(), "Running (PID: %d)\nSocket: %s\n", pid, socket)

			client := daemon.NewRemoteClient(socket)
			defer client.Close()
			if list, err := client.GetProjects(cmd.Context()); err == nil {
				watching := 0
				for _, p := range list {
					if p.Watching {
						watching++
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Projects: %d registered, %d watched\n", len(list), watching)
			}
			return nil
		},
	}
}
