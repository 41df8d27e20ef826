// Package paths resolves the configuration and data directories of the
// crudkit command.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user directories.
const AppName = "crudkit"

// Environment variables that override the directories.
const (
	EnvConfigDir = "CRUDKIT_CONFIG_DIR"
	EnvDataDir   = "CRUDKIT_DATA_DIR"
)

// platformDir holds platform lookups that tests override.
var platformDir = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the per-user configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/crudkit (fallback ~/.config/crudkit)
// Others:  os.UserConfigDir()/crudkit
func DefaultConfigDir() (string, error) {
	return userDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the per-user data directory.
//
// Linux:   $XDG_DATA_HOME/crudkit (fallback ~/.local/share/crudkit)
// Others:  os.UserConfigDir()/crudkit
func DefaultDataDir() (string, error) {
	return userDir("XDG_DATA_HOME", ".local", "share")
}

func userDir(xdgVar string, homeRel ...string) (string, error) {
	if platformDir.goos != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append(append([]string{home}, homeRel...), AppName)...), nil
}

// ResolveConfigDir picks the configuration directory: flag, then
// CRUDKIT_CONFIG_DIR, then DefaultConfigDir. The result is absolute.
func ResolveConfigDir(flag string) (string, error) {
	return firstAbs(DefaultConfigDir, flag, os.Getenv(EnvConfigDir))
}

// ResolveDataDir picks the data directory: flag, then the data_dir config
// value, then CRUDKIT_DATA_DIR, then DefaultDataDir. The result is absolute.
func ResolveDataDir(flag, configValue string) (string, error) {
	return firstAbs(DefaultDataDir, flag, configValue, os.Getenv(EnvDataDir))
}

func firstAbs(fallback func() (string, error), candidates ...string) (string, error) {
	for _, c := range candidates {
		if c != "" {
			return filepath.Abs(c)
		}
	}
	return fallback()
}
