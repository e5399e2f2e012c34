package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/NuranDp/vscode-solution-explorer/pkg/config"
)

// errNoSolutions is printed when the workspace is empty and no form can
// be shown.
var errNoSolutions = errors.New(`no solutions registered.

Add one to ` + "~/.config/slnx/config.yaml" + `:

    solutions:
      - name: my-app
        file: ~/src/my-app/my-app.sln

or run slnx in a terminal to use the interactive setup.`)

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// runFirstRunSetup collects a first solution entry with a small form
// and saves the config. Non-TTY runs get actionable error text instead.
func runFirstRunSetup(cfg config.Config, configPath string) (config.Config, error) {
	if !isInteractive() {
		return cfg, errNoSolutions
	}

	var name, file, root string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Solution name").
				Description("Display name for this workspace").
				Value(&name).
				Validate(notEmpty("name")),
			huh.NewInput().
				Title("Solution file").
				Description("Path to the .sln or .slnf file").
				Value(&file).
				Validate(validSolutionFile),
			huh.NewInput().
				Title("Root folder").
				Description("Folder shown under the solution (empty: the file's directory)").
				Value(&root),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		return cfg, fmt.Errorf("setup cancelled: %w", err)
	}

	cfg.Solutions = append(cfg.Solutions, config.Solution{
		Name: strings.TrimSpace(name),
		File: strings.TrimSpace(file),
		Root: strings.TrimSpace(root),
	})

	if configPath != "" {
		if err := config.SaveTo(cfg, configPath); err != nil {
			return cfg, fmt.Errorf("saving config: %w", err)
		}
	} else if err := config.Save(cfg); err != nil {
		return cfg, fmt.Errorf("saving config: %w", err)
	}
	return cfg, nil
}

func notEmpty(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validSolutionFile(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("solution file is required")
	}
	switch strings.ToLower(filepath.Ext(s)) {
	case ".sln", ".slnf":
		return nil
	}
	return errors.New("expected a .sln or .slnf file")
}
