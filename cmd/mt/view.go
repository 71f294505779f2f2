package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/vanderheijden86/modeltree/pkg/config"
	"github.com/vanderheijden86/modeltree/pkg/debug"
	"github.com/vanderheijden86/modeltree/pkg/remote"
	"github.com/vanderheijden86/modeltree/pkg/search"
	"github.com/vanderheijden86/modeltree/pkg/tree"
	"github.com/vanderheijden86/modeltree/pkg/ui"
	"github.com/vanderheijden86/modeltree/pkg/watcher"
)

type viewOptions struct {
	mode      string
	depth     int
	remoteURL string
	noWatch   bool
	poll      bool
}

func newViewCommand(g *globalOptions) *cobra.Command {
	opts := &viewOptions{}
	cmd := &cobra.Command{
		Use:   "view <file>",
		Short: "Open a document in the interactive tree browser",
		Long: `Open a JSON or YAML document in the interactive tree browser.

The document is reloaded when its file changes on disk. With --remote, edits
are exchanged with other mt instances connected to the same mt serve hub.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return errNoTerminal
			}
			return runView(cmd.Context(), g.cfg, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Start in view or edit mode (default from config)")
	cmd.Flags().IntVar(&opts.depth, "depth", -1, "Levels expanded on load (default from config)")
	cmd.Flags().StringVar(&opts.remoteURL, "remote", "", "Websocket URL of an mt serve hub")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "Do not reload when the file changes")
	cmd.Flags().BoolVar(&opts.poll, "poll", false, "Watch by polling instead of file events")
	return cmd
}

// applyViewFlags overrides config with explicitly set flags.
func applyViewFlags(cfg config.Config, opts *viewOptions) config.Config {
	if opts.remoteURL != "" {
		cfg.Remote.URL = opts.remoteURL
	}
	if opts.noWatch {
		cfg.Watch.Enabled = false
	}
	if opts.poll {
		cfg.Watch.Poll = true
	}
	return cfg
}

func runView(ctx context.Context, cfg config.Config, path string, opts *viewOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg = applyViewFlags(cfg, opts)

	doc, err := loadDocument(path)
	if err != nil {
		return err
	}
	treeOpts, err := treeOptions(cfg, opts.mode, opts.depth)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, ctx := errgroup.WithContext(ctx)

	uiOpts := []ui.Option{ui.WithTitle(filepath.Base(path))}

	var source tree.Document = doc
	if cfg.Remote.URL != "" {
		settings := remote.DefaultSettings()
		if cfg.Remote.WriteTimeout > 0 {
			settings.WriteTimeout = cfg.Remote.WriteTimeout
		}
		client := remote.NewClient(cfg.Remote.URL, settings)
		group.Go(func() error { return client.Run(ctx) })
		source = remote.NewForwarder(doc, client)
		uiOpts = append(uiOpts, ui.WithRemote(client.Incoming()))
	}

	model := tree.New(source, treeOpts...)
	defer model.Close()

	store, err := openStateStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (expansion state not saved)\n", err)
		store = nil
	}
	if store != nil {
		defer store.Close()
	}
	key := documentKey(path)
	restoreState(store, key, model)

	engine := search.New(model,
		search.WithCaseSensitive(cfg.Search.CaseSensitive),
		search.WithReveal(cfg.Search.Reveal),
	)
	defer engine.Close()

	if cfg.Watch.Enabled {
		w, err := newWatcher(cfg.Watch, path)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		defer w.Stop()
		uiOpts = append(uiOpts, ui.WithReloads(w.Reloads()))
	}

	runErr := runTUIProgram(ui.New(doc, model, engine, uiOpts...))
	cancel()
	if err := group.Wait(); err != nil {
		debug.Log("view: background task: %v", err)
	}
	if err := saveState(store, key, model); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func newWatcher(cfg config.WatchConfig, path string) (*watcher.Watcher, error) {
	opts := []watcher.Option{
		watcher.WithPollInterval(cfg.PollInterval),
		watcher.WithForcePoll(cfg.Poll),
		watcher.WithOnError(func(err error) {
			debug.Log("watcher: %v", err)
		}),
	}
	if cfg.Debounce > 0 {
		opts = append(opts, watcher.WithDebounce(cfg.Debounce))
	}
	return watcher.New(path, opts...)
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for scripted runs: MT_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("MT_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}
				p.Quit()
			}()
		}
	}

	_, err := p.Run()
	if err != nil && errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
