// Package paths resolves where the csvsource configuration file lives.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// ConfigDir is the per-project configuration directory.
	ConfigDir = ".csvsource"
	// ConfigFile is the file name inside ConfigDir.
	ConfigFile = "config.yaml"
)

// ResolveConfigFile turns user input into a configuration file path.
//
//   - "" or "." -> ".csvsource/config.yaml"
//   - "/p/project" -> "/p/project/.csvsource/config.yaml"
//   - "/p/project/.csvsource" -> "/p/project/.csvsource/config.yaml"
//   - "/p/settings" (holding config.yaml) -> "/p/settings/config.yaml"
//   - "/p/custom.yaml" -> "/p/custom.yaml"
//
// A ".csvsource/redirect" file holding a relative or absolute directory
// points at the configuration directory to use instead, so git worktrees can
// share one configuration.
func ResolveConfigFile(path string) string {
	if path == "" {
		path = "."
	}
	path = filepath.Clean(path)

	if isYAML(path) {
		return path
	}

	if filepath.Base(path) == ConfigDir {
		return filepath.Join(followRedirect(path), ConfigFile)
	}

	if _, err := os.Stat(filepath.Join(path, ConfigFile)); err == nil {
		return filepath.Join(path, ConfigFile)
	}

	return filepath.Join(followRedirect(filepath.Join(path, ConfigDir)), ConfigFile)
}

// UserConfigDir returns ~/.config/csvsource, or "" when there is no home.
func UserConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "csvsource")
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func followRedirect(dir string) string {
	content, err := os.ReadFile(filepath.Join(dir, "redirect")) //nolint:gosec // fixed name inside the config dir
	if err != nil {
		return dir
	}

	target := strings.TrimSpace(string(content))
	if target == "" {
		return dir
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Clean(filepath.Join(dir, target))
}
