package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"tasklist/internal/config"
	"tasklist/internal/logging"
	"tasklist/internal/result"
	"tasklist/internal/store"
	"tasklist/internal/task"
	"tasklist/pkg/cache"
	"tasklist/pkg/mq"
)

var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "tasklist",
		Short:         "Ranked task list with a web UI and JSON API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (yaml or .env)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(editCmd())
	rootCmd.AddCommand(rmCmd())
	rootCmd.AddCommand(moveCmd("up", task.Up))
	rootCmd.AddCommand(moveCmd("down", task.Down))
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(repairCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds what every command shares.
type app struct {
	cfg      *config.Config
	log      *log.Logger
	store    *store.Store
	bus      *mq.NATS
	mgr      *task.Manager
	exporter *result.Exporter
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	mode, err := task.ParseMoveMode(cfg.MoveMode)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.StoreDriver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	a := &app{cfg: cfg, log: logger, store: st}
	var pub mq.Publisher = mq.Noop{}
	if cfg.NATSURL != "" {
		bus, err := mq.DialNATS(cfg.NATSURL, "tasklist")
		if err != nil {
			st.Close()
			return nil, err
		}
		a.bus = bus
		pub = bus
	}

	a.mgr = task.NewManager(st,
		task.WithPublisher(pub),
		task.WithLogger(logger.WithPrefix("task")),
		task.WithMoveMode(mode),
	)
	a.exporter = result.NewExporter(a.mgr, cache.NewMemory(cfg.ExportCacheTTL))
	logger.Debug("ready", "driver", st.Driver(), "move_mode", mode, "nats", cfg.NATSURL != "")
	return a, nil
}

func (a *app) Close() {
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.log.Warn("nats close", "err", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("store close", "err", err)
	}
}

// withApp wraps a command body with app setup and teardown.
func withApp(run func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(ctx, a, cmd, args)
	}
}
