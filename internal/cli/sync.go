package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/voiceink-notion/internal/notion"
	"github.com/rcliao/voiceink-notion/internal/state"
	"github.com/rcliao/voiceink-notion/internal/syncer"
	"github.com/rcliao/voiceink-notion/internal/voiceink"
	"github.com/rcliao/voiceink-notion/internal/watch"
)

var syncCmd *cobra.Command

func init() {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Upload new transcriptions to Notion",
		Long:  "Uploads every transcription not yet in Notion, oldest first, then keeps polling. Use --once for a single pass.",
		Run:   runSync,
	}

	cmd.Flags().Bool("once", false, "Run a single sync cycle and exit")
	cmd.Flags().Bool("watch", false, "Also sync as soon as the VoiceInk database changes")
	cmd.Flags().Duration("interval", 0, "Time between cycles (default: sync_interval_seconds from config, 30s)")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics and /health on this address, e.g. :9464")

	syncCmd = cmd
	RootCmd.AddCommand(cmd)
}

func runSync(cmd *cobra.Command, args []string) {
	once, _ := cmd.Flags().GetBool("once")
	watchDB, _ := cmd.Flags().GetBool("watch")
	interval, _ := cmd.Flags().GetDuration("interval")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	cfg := loadValidConfig()
	if interval <= 0 {
		interval = cfg.SyncInterval()
	}
	db, err := getDBPath(cfg)
	if err != nil {
		exitErr("locate VoiceInk database", err)
	}

	store := openStateStore()
	unlock, err := store.Lock()
	if err != nil {
		exitErr("lock state", err)
	}

	err = doSync(commandContext(cmd), cmd.OutOrStdout(), syncRun{
		db:          db,
		store:       store,
		client:      newNotionClient(cfg),
		once:        once,
		watch:       watchDB,
		interval:    interval,
		metricsAddr: metricsAddr,
	})
	unlock()
	if err != nil {
		exitErr("sync", err)
	}
}

type syncRun struct {
	db          string
	store       *state.Store
	client      *notion.Client
	once        bool
	watch       bool
	interval    time.Duration
	metricsAddr string
}

// commandContext returns the context cobra gave cmd, falling back to the
// root's when cmd runs on behalf of another command.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	if ctx := cmd.Root().Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func doSync(parent context.Context, out io.Writer, r syncRun) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := prepareDatabase(ctx, r.client); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	opts := syncer.Options{
		Logger:   logger,
		Observer: func(res syncer.Result) { printResult(out, res) },
		OnCycle: func(rep syncer.Report, err error) {
			if err == nil && (rep.Pending > 0 || rep.Bootstrapped) {
				printReport(out, rep)
			}
		},
	}
	st := r.store.Load()
	logger.Debug("Loaded sync state", "path", r.store.Path(), "synced", st.Len(), "populated", st.NotionCachePopulated)

	if r.once {
		engine := syncer.NewEngine(voiceink.NewReader(r.db), r.client, r.store, opts)
		report, err := engine.SyncOnce(ctx, st)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		printReport(out, report)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	if r.metricsAddr != "" {
		reg, metrics, err := newMetricsRegistry()
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		opts.Metrics = metrics
		g.Go(func() error { return serveMetrics(gctx, r.metricsAddr, metricsRouter(reg)) })
	}

	if r.watch {
		trigger, err := watch.New(r.db, watch.DefaultDebounce, logger).Start(gctx)
		if err != nil {
			logger.Warn("Cannot watch VoiceInk database, polling only", "error", err)
		} else {
			opts.Trigger = trigger
		}
	}

	engine := syncer.NewEngine(voiceink.NewReader(r.db), r.client, r.store, opts)
	fmt.Fprintf(out, "Syncing %s every %s (Ctrl+C to stop)\n", r.db, r.interval)
	g.Go(func() error { return engine.RunForever(gctx, st, r.interval) })

	return g.Wait()
}

// prepareDatabase checks the Notion connection and adds missing properties.
func prepareDatabase(ctx context.Context, client *notion.Client) error {
	conn, err := client.TestConnection(ctx)
	if err != nil {
		return describeRemoteError(err)
	}
	logger.Info("Connected to Notion", "database", conn.DatabaseName, "id", client.DatabaseID())

	if err := client.SetupSchema(ctx); err != nil {
		return fmt.Errorf("prepare database schema: %w", err)
	}
	return nil
}

func describeRemoteError(err error) error {
	switch syncer.KindOf(err) {
	case syncer.KindRemoteAuth:
		return fmt.Errorf("notion rejected the API key: %w", err)
	case syncer.KindRemoteNotFound:
		return fmt.Errorf("notion database not found, check the id and that it is shared with the integration: %w", err)
	}
	return fmt.Errorf("connect to notion: %w", err)
}
