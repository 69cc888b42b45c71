package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tangle-tui/tangle/internal/config"
	"github.com/tangle-tui/tangle/pkg/component"
	"github.com/tangle-tui/tangle/pkg/devtools"
	"github.com/tangle-tui/tangle/pkg/observe"
	"github.com/tangle-tui/tangle/pkg/runtime"
	"github.com/tangle-tui/tangle/pkg/store"
	"github.com/tangle-tui/tangle/pkg/tangle"
	"github.com/tangle-tui/tangle/pkg/tui"
)

// dashboard is the demo component: a persisted counter plus an uptime
// ticker, both rendered through one view memo.
type dashboard struct {
	count *tangle.Signal[int]
	ticks *tangle.Signal[int]

	status *tangle.Memo[string]
}

func (d *dashboard) Init(sc *component.Scope) {
	d.ticks = component.Signal(sc, 0)
	d.status = component.Memo(sc, func() string {
		return fmt.Sprintf("counter %d · uptime %ds", d.count.Get(), d.ticks.Get())
	})

	stop := tangle.Interval(time.Second, func() {
		d.ticks.Update(func(n int) int { return n + 1 })
	})
	sc.OnCleanup(stop)
}

func (d *dashboard) View() string {
	return d.status.Get() + "\n\n+/-: change counter"
}

func demoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the demo counter dashboard",
		Long: `Run a small terminal dashboard backed by the reactive engine.

The counter persists across runs. With devtools enabled in tangle.yaml,
the engine's event stream and metrics are served while the demo runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}
			return runDemo(cfg)
		},
	}
	return cmd
}

func runDemo(cfg *config.Config) error {
	if !tui.IsTerminal() {
		return fmt.Errorf("demo needs an interactive terminal")
	}
	if cfg.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		tangle.DebugMode = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	metrics := observe.NewMetrics(observe.WithNamespace(cfg.Metrics.Namespace))
	hooks := metrics.Hooks()

	var dt *devtools.Server
	if cfg.Devtools.Enabled {
		dt = devtools.NewServer(devtools.Config{Addr: cfg.Devtools.Addr})
		hooks = tangle.MergeHooks(hooks, dt.Hooks())
		go func() {
			if err := dt.ListenAndServe(ctx); err != nil {
				slog.Error("devtools server failed", "error", err)
			}
		}()
	}
	tangle.SetHooks(hooks)

	loop := runtime.New()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(ctx)
	}()
	defer func() {
		loop.Close()
		<-loopDone
	}()

	d := &dashboard{}
	var inst *component.Instance
	var detach func()
	var setupErr error
	loop.Call(func() {
		d.count, detach, setupErr = store.PersistentSignal(db, "demo", "counter", 0)
		if setupErr != nil {
			return
		}
		inst = component.Mount(d, component.WithID("demo-dashboard"))
	})
	if setupErr != nil {
		return setupErr
	}
	defer func() {
		loop.Call(func() {
			inst.Unmount()
			detach()
		})
	}()

	driver := tui.NewDriver(loop, inst,
		tui.WithTitle("Tangle Demo"),
		tui.WithKeyHandler(func(k tea.KeyMsg) {
			switch k.String() {
			case "+", "=":
				d.count.Update(func(n int) int { return n + 1 })
			case "-":
				d.count.Update(func(n int) int { return n - 1 })
			}
		}),
	)
	return driver.Run(ctx)
}
