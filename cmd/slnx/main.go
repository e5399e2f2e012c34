package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/NuranDp/vscode-solution-explorer/internal/statestore"
	"github.com/NuranDp/vscode-solution-explorer/pkg/config"
	"github.com/NuranDp/vscode-solution-explorer/pkg/debug"
	"github.com/NuranDp/vscode-solution-explorer/pkg/explorer"
	"github.com/NuranDp/vscode-solution-explorer/pkg/export"
	"github.com/NuranDp/vscode-solution-explorer/pkg/loader"
	"github.com/NuranDp/vscode-solution-explorer/pkg/tree"
	"github.com/NuranDp/vscode-solution-explorer/pkg/ui"
	"github.com/NuranDp/vscode-solution-explorer/pkg/version"
	"github.com/NuranDp/vscode-solution-explorer/pkg/watcher"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: XDG config dir)")
	exportPath := flag.String("export", "", "Export an outline snapshot to this path and exit (format from extension: .svg or .png)")
	exportDepth := flag.Int("export-depth", 3, "How deep to materialize the tree for --export")
	ephemeral := flag.Bool("ephemeral", false, "Keep expansion state in memory only")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *help {
		fmt.Println("Usage: slnx [options]")
		fmt.Println("\nA solution browser for the terminal.")
		flag.PrintDefaults()
		os.Exit(0)
	}
	if *versionFlag {
		fmt.Printf("slnx %s\n", version.Version)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	finder := explorer.NewWorkspaceFinder(&cfg)
	if !finder.HasWorkspaceRoots() {
		cfg, err = runFirstRunSetup(cfg, *configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		finder = explorer.NewWorkspaceFinder(&cfg)
	}

	store, cleanup := openStore(cfg, *ephemeral)
	defer cleanup()

	factory := loader.New(loader.Options{
		IgnoreDirs: cfg.Tree.IgnoreDirs,
		ShowHidden: cfg.Tree.ShowHidden,
	})

	if *exportPath != "" {
		if err := runExport(finder, factory, store, *exportPath, *exportDepth); err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Outline written to %s\n", *exportPath)
		os.Exit(0)
	}

	// Warnings from the engine would tear up the live view; keep them
	// out of the terminal while the TUI owns it.
	if !debug.Enabled() {
		log.SetOutput(io.Discard)
	}

	bridge := ui.NewBridge()
	provider := explorer.NewProvider(finder, factory, store, bridge)

	w := startWatcher(cfg, finder, provider, *configPath)
	if w != nil {
		defer w.Stop()
	}

	m := ui.NewModel(provider, cfg, defaultExportPath())
	if err := runTUIProgram(m, bridge); err != nil {
		fmt.Fprintf(os.Stderr, "Error running solution browser: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// openStore picks the persistence backend for expansion state. Any
// backend trouble degrades to memory so the browser still starts.
func openStore(cfg config.Config, ephemeral bool) (tree.Store, func()) {
	if ephemeral || cfg.State.Backend == "memory" {
		return statestore.NewMemoryStore(), func() {}
	}

	path := cfg.StatePath()
	if path == "" {
		fmt.Fprintln(os.Stderr, "warning: no state directory, expansion state will not persist")
		return statestore.NewMemoryStore(), func() {}
	}

	if cfg.State.Backend == "file" {
		return statestore.NewFileStore(path), func() {}
	}

	store, err := statestore.OpenSQLite(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: state database unavailable (%v), expansion state will not persist\n", err)
		return statestore.NewMemoryStore(), func() {}
	}
	return store, func() { _ = store.Close() }
}

// runExport builds the tree headlessly and writes the outline.
func runExport(finder explorer.Finder, factory tree.NodeFactory, store tree.Store, path string, depth int) error {
	provider := explorer.NewProvider(finder, factory, store, nil)
	ctx := context.Background()
	roots, err := provider.GetChildren(ctx, nil)
	if err != nil {
		return err
	}
	return export.SaveOutline(ctx, export.OutlineOptions{
		Path:  path,
		Depth: depth,
		Roots: roots,
	})
}

// startWatcher watches the registered solution files plus the config
// file and routes change events into the provider. Returns nil when
// there is nothing watchable; the browser works fine without live
// reload.
func startWatcher(cfg config.Config, finder *explorer.WorkspaceFinder, provider *explorer.Provider, configPath string) *watcher.Watcher {
	if configPath == "" {
		configPath = config.ConfigPath()
	}

	var paths []string
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			paths = append(paths, configPath)
		}
	}
	sources, err := finder.Sources()
	if err == nil {
		for _, src := range sources {
			paths = append(paths, src.PrimaryFile)
		}
	}
	if len(paths) == 0 {
		return nil
	}

	w, err := watcher.New(paths, watcher.WithOnError(func(err error) {
		debug.Log("watch error: %v", err)
	}))
	if err != nil {
		debug.Log("watcher unavailable: %v", err)
		return nil
	}
	if err := w.Start(); err != nil {
		debug.Log("watcher start failed: %v", err)
		return nil
	}

	cleanConfig, _ := filepath.Abs(configPath)
	go func() {
		for ev := range w.Events() {
			if ev.Path == cleanConfig {
				provider.OnSolutionChanged()
				continue
			}
			provider.OnFileChanged(ev.Path)
		}
	}()
	return w
}

func defaultExportPath() string {
	if dir := config.DataDir(); dir != "" {
		return filepath.Join(dir, "solution-outline.svg")
	}
	return "solution-outline.svg"
}

func runTUIProgram(m ui.Model, bridge *ui.Bridge) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)
	bridge.Attach(p)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
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

	// Optional auto-quit for automated tests: set SLNX_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("SLNX_TUI_AUTOCLOSE_MS"); v != "" {
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

				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}

				p.Kill()
			}()
		}
	}

	_, err := p.Run()
	if err != nil && (errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted)) {
		return nil
	}
	return err
}
