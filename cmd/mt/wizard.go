package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/vanderheijden86/modeltree/pkg/config"
)

// configAnswers mirrors the editable settings as form fields.
type configAnswers struct {
	mode          string
	depth         string
	persist       bool
	backend       string
	caseSensitive bool
	reveal        bool
	watch         bool
	poll          bool
	remoteURL     string
}

func answersFrom(cfg config.Config) configAnswers {
	mode := cfg.UI.DefaultMode
	if mode == "" {
		mode = "view"
	}
	backend := cfg.Tree.StateBackend
	if backend == "" {
		backend = config.BackendJSON
	}
	return configAnswers{
		mode:          mode,
		depth:         strconv.Itoa(cfg.Tree.ExpandDepth),
		persist:       cfg.Tree.PersistState,
		backend:       backend,
		caseSensitive: cfg.Search.CaseSensitive,
		reveal:        cfg.Search.Reveal,
		watch:         cfg.Watch.Enabled,
		poll:          cfg.Watch.Poll,
		remoteURL:     cfg.Remote.URL,
	}
}

// apply copies the answers onto cfg and validates the result.
func (a configAnswers) apply(cfg config.Config) (config.Config, error) {
	depth, err := strconv.Atoi(strings.TrimSpace(a.depth))
	if err != nil {
		return cfg, fmt.Errorf("expand depth %q: %w", a.depth, config.ErrInvalid)
	}
	cfg.UI.DefaultMode = a.mode
	cfg.Tree.ExpandDepth = depth
	cfg.Tree.PersistState = a.persist
	cfg.Tree.StateBackend = a.backend
	cfg.Search.CaseSensitive = a.caseSensitive
	cfg.Search.Reveal = a.reveal
	cfg.Watch.Enabled = a.watch
	cfg.Watch.Poll = a.poll
	cfg.Remote.URL = strings.TrimSpace(a.remoteURL)
	return cfg, cfg.Validate()
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm falls back to accessible prompts when stdin is not a terminal.
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

func validateDepth(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return fmt.Errorf("enter a whole number of levels")
	}
	return nil
}

// runConfigWizard edits cfg interactively and saves it to path.
func runConfigWizard(cfg config.Config, path string) (config.Config, error) {
	a := answersFrom(cfg)
	var save = true

	form := newForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Start mode").
				Options(
					huh.NewOption("View (read only)", "view"),
					huh.NewOption("Edit", "edit"),
				).
				Value(&a.mode),
			huh.NewInput().
				Title("Levels expanded on load").
				Value(&a.depth).
				Validate(validateDepth),
			huh.NewConfirm().
				Title("Remember expand/collapse state?").
				Value(&a.persist),
			huh.NewSelect[string]().
				Title("State storage").
				Options(
					huh.NewOption("JSON file", config.BackendJSON),
					huh.NewOption("SQLite database", config.BackendSQLite),
				).
				Value(&a.backend),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Case-sensitive search?").
				Value(&a.caseSensitive),
			huh.NewConfirm().
				Title("Reveal the active match?").
				Description("Expands ancestors and moves the selection").
				Value(&a.reveal),
			huh.NewConfirm().
				Title("Reload when the file changes?").
				Value(&a.watch),
			huh.NewConfirm().
				Title("Force polling?").
				Description("Needed on some network filesystems").
				Value(&a.poll),
			huh.NewInput().
				Title("Hub URL (optional)").
				Placeholder("ws://127.0.0.1:7070/").
				Value(&a.remoteURL),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Save to %s?", path)).
				Value(&save).
				Affirmative("Save").
				Negative("Discard"),
		),
	)
	if err := form.Run(); err != nil {
		return cfg, err
	}
	next, err := a.apply(cfg)
	if err != nil {
		return cfg, err
	}
	if !save {
		return cfg, nil
	}
	return next, config.SaveTo(next, path)
}
