// Package config handles loading and saving slnx configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/slnx/config.yaml
//   - Data:    ~/.local/share/slnx/ (exports, templates)
//   - State:   ~/.local/state/slnx/ (expansion state, focus cache)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Solution represents a registered solution in the config.
type Solution struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`           // Primary solution file (.sln or .slnf)
	Root string `yaml:"root,omitempty"` // Root folder; defaults to the file's directory
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	IndentWidth int  `yaml:"indent_width,omitempty"` // Spaces per tree level (default 2)
	Headless    bool `yaml:"headless,omitempty"`     // Compact header mode
}

// DiscoveryConfig controls auto-discovery of solutions.
type DiscoveryConfig struct {
	ScanPaths []string `yaml:"scan_paths,omitempty"` // Directories to scan for solution files
	MaxDepth  int      `yaml:"max_depth,omitempty"`  // How deep to scan (default 3)
}

// TreeConfig controls how directory contents appear in the tree.
type TreeConfig struct {
	IgnoreDirs []string `yaml:"ignore_dirs,omitempty"` // Directory names hidden from listings
	ShowHidden bool     `yaml:"show_hidden,omitempty"` // Include dot-prefixed entries
}

// StateConfig selects the persistence backend for expansion state.
type StateConfig struct {
	Backend string `yaml:"backend,omitempty"` // sqlite, file, memory
	Path    string `yaml:"path,omitempty"`    // Overrides the default state location
}

// Config is the top-level configuration for slnx.
type Config struct {
	Solutions []Solution      `yaml:"solutions,omitempty"`
	Favorites map[int]string  `yaml:"favorites,omitempty"` // Number key (1-9) -> solution name
	UI        UIConfig        `yaml:"ui,omitempty"`
	Discovery DiscoveryConfig `yaml:"discovery,omitempty"`
	Tree      TreeConfig      `yaml:"tree,omitempty"`
	State     StateConfig     `yaml:"state,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Favorites: make(map[int]string),
		UI: UIConfig{
			IndentWidth: 2,
		},
		Discovery: DiscoveryConfig{
			MaxDepth: 3,
		},
		Tree: TreeConfig{
			IgnoreDirs: []string{"bin", "obj", ".git", ".vs", "node_modules"},
		},
		State: StateConfig{
			Backend: "sqlite",
		},
	}
}

// ConfigDir returns the XDG config directory for slnx.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "slnx")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "slnx")
}

// DataDir returns the XDG data directory for slnx.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "slnx")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "slnx")
}

// StateDir returns the XDG state directory for slnx.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "slnx")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "slnx")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	// Ensure favorites map is initialized
	if cfg.Favorites == nil {
		cfg.Favorites = make(map[int]string)
	}

	// Expand ~ in solution and scan paths
	for i := range cfg.Solutions {
		cfg.Solutions[i].File = expandHome(cfg.Solutions[i].File)
		cfg.Solutions[i].Root = expandHome(cfg.Solutions[i].Root)
	}
	for i := range cfg.Discovery.ScanPaths {
		cfg.Discovery.ScanPaths[i] = expandHome(cfg.Discovery.ScanPaths[i])
	}
	cfg.State.Path = expandHome(cfg.State.Path)

	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// FindSolution returns the solution with the given name, or nil.
func (c Config) FindSolution(name string) *Solution {
	for i := range c.Solutions {
		if strings.EqualFold(c.Solutions[i].Name, name) {
			return &c.Solutions[i]
		}
	}
	return nil
}

// FavoriteSolution returns the solution assigned to number key n (1-9), or nil.
func (c Config) FavoriteSolution(n int) *Solution {
	name, ok := c.Favorites[n]
	if !ok {
		return nil
	}
	return c.FindSolution(name)
}

// SetFavorite assigns a solution name to a number key (1-9).
func (c *Config) SetFavorite(n int, solutionName string) {
	if c.Favorites == nil {
		c.Favorites = make(map[int]string)
	}
	if solutionName == "" {
		delete(c.Favorites, n)
	} else {
		c.Favorites[n] = solutionName
	}
}

// SolutionFavoriteNumber returns the favorite number (1-9) for a solution name, or 0 if not favorited.
func (c Config) SolutionFavoriteNumber(name string) int {
	for n, sname := range c.Favorites {
		if strings.EqualFold(sname, name) {
			return n
		}
	}
	return 0
}

// StatePath returns the path for the persistent state backend, honoring
// the configured override. Returns "" when no location can be determined.
func (c Config) StatePath() string {
	if c.State.Path != "" {
		return c.State.Path
	}
	dir := StateDir()
	if dir == "" {
		return ""
	}
	if c.State.Backend == "file" {
		return filepath.Join(dir, "state.json")
	}
	return filepath.Join(dir, "state.db")
}

// ResolvedFile returns the solution file path with ~ expanded.
func (s Solution) ResolvedFile() string {
	return expandHome(s.File)
}

// ResolvedRoot returns the root folder with ~ expanded, defaulting to
// the solution file's directory when unset.
func (s Solution) ResolvedRoot() string {
	if s.Root == "" {
		return filepath.Dir(s.ResolvedFile())
	}
	return expandHome(s.Root)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
