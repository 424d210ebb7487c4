package app

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"sdetails/internal/config"
	"sdetails/internal/export"
	"sdetails/internal/monitor"
	"sdetails/internal/render"
	"sdetails/internal/slurm"
	"sdetails/internal/transport"
	"sdetails/internal/tui"
)

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	return log
}

func Run(cfg config.Config) error {
	tr, err := buildTransport(cfg)
	if err != nil {
		return err
	}

	log := newLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := awaitSchedulerAvailability(ctx, tr, cfg.CommandTimeout, log); err != nil {
		return err
	}

	collector := slurm.NewCollector(tr, cfg.CommandTimeout, log)
	if cfg.Watch <= 0 {
		return runOnce(ctx, collector, cfg, log)
	}

	loopUpdates := make(chan monitor.Update, 8)
	loop := monitor.NewLoop(collector, cfg.Watch)
	go loop.Run(ctx, loopUpdates)

	var updates <-chan monitor.Update = loopUpdates
	if cfg.ExportPath != "" {
		updates = exportEachSnapshot(loopUpdates, cfg, log)
	}

	model := tui.NewModel(tui.Options{
		Source:    tr.Describe(),
		NoColor:   cfg.NoColor,
		NoSummary: cfg.NoSummary,
		Partition: cfg.Partition,
		SortKey:   cfg.SortKey,
		Threshold: cfg.UsageThreshold,
		Refresh:   cfg.Watch,
		Updates:   updates,
	})

	prog := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := prog.Run(); err != nil {
		return err
	}
	return nil
}

// exportEachSnapshot mirrors monitor updates to the TUI while rewriting the
// JSON snapshot on every successful pass, so watch mode exports the same way a
// single pass does. Write failures are logged and never break the stream.
func exportEachSnapshot(in <-chan monitor.Update, cfg config.Config, log *logrus.Logger) <-chan monitor.Update {
	out := make(chan monitor.Update, 8)
	go func() {
		defer close(out)
		for update := range in {
			if update.Snapshot != nil {
				rows := slurm.BuildRows(*update.Snapshot)
				slurm.SortRows(rows, cfg.SortKey)
				doc := export.Build(rows, update.Snapshot.CollectedAt)
				if err := export.WriteFile(cfg.ExportPath, doc); err != nil {
					log.WithError(err).Error("JSON export failed")
				}
			}
			out <- update
		}
	}()
	return out
}

func buildTransport(cfg config.Config) (transport.Transport, error) {
	switch cfg.Mode {
	case config.ModeLocal:
		return transport.NewLocalTransport(), nil
	case config.ModeRemote:
		return transport.NewSSHTransport(transport.SSHOptions{
			Target:         cfg.Target,
			ConfigPath:     cfg.SSHConfig,
			IdentityFile:   cfg.IdentityFile,
			Port:           cfg.Port,
			ConnectTimeout: cfg.ConnectTimeout,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported mode: %s", cfg.Mode)
	}
}

// runOnce executes a single pipeline pass: collect, aggregate, render, and
// optionally export. An export failure is reported but does not fail the run,
// since the table has already been printed.
func runOnce(ctx context.Context, collector *slurm.Collector, cfg config.Config, log *logrus.Logger) error {
	collectCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	snap, err := collector.Collect(collectCtx)
	if err != nil {
		return err
	}

	renderer := render.New(cfg.NoColor, cfg.UsageThreshold)
	rows := slurm.BuildRows(snap)
	slurm.SortRows(rows, cfg.SortKey)
	// The partition filter narrows the table only; the export always carries
	// the full normalized node set.
	view := slurm.FilterRows(rows, cfg.Partition)

	if !cfg.NoSummary {
		fmt.Fprintln(os.Stdout)
		fmt.Fprint(os.Stdout, renderer.Summary(slurm.Summarize(snap)))
		fmt.Fprintln(os.Stdout)
	}

	if cfg.Partition != "" && len(view) == 0 {
		fmt.Fprintf(os.Stdout, "Partition %q not found\n", cfg.Partition)
	} else {
		fmt.Fprint(os.Stdout, renderer.Table(view))
	}

	if cfg.ExportPath != "" {
		doc := export.Build(rows, snap.CollectedAt)
		if err := export.WriteFile(cfg.ExportPath, doc); err != nil {
			log.WithError(err).Error("JSON export failed")
		} else {
			fmt.Fprintf(os.Stdout, "Data exported to %s\n", cfg.ExportPath)
		}
	}
	return nil
}
