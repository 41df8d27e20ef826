package paths

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlatform swaps the platform lookups for the duration of the test.
func fakePlatform(t *testing.T, goos, home, userConfig string) {
	t.Helper()
	saved := platformDir
	t.Cleanup(func() { platformDir = saved })
	platformDir.goos = goos
	platformDir.homeDir = func() (string, error) { return home, nil }
	platformDir.userConfigDir = func() (string, error) { return userConfig, nil }
}

func TestDefaultDirs_Linux(t *testing.T) {
	fakePlatform(t, "linux", "/home/ada", "")

	t.Run("XDG variables win", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
		t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
		got, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/xdg-config/crudkit", got)
		got, err = DefaultDataDir()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/xdg-data/crudkit", got)
	})

	t.Run("home fallbacks", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("XDG_DATA_HOME", "")
		got, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/home/ada/.config/crudkit", got)
		got, err = DefaultDataDir()
		require.NoError(t, err)
		assert.Equal(t, "/home/ada/.local/share/crudkit", got)
	})
}

func TestDefaultDirs_OtherPlatforms(t *testing.T) {
	fakePlatform(t, "darwin", "/Users/ada", "/Users/ada/Library/Application Support")

	got, err := DefaultConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/Users/ada/Library/Application Support/crudkit", got)

	got, err = DefaultDataDir()
	require.NoError(t, err)
	assert.Equal(t, "/Users/ada/Library/Application Support/crudkit", got)
}

func TestDefaultDirs_HomeError(t *testing.T) {
	fakePlatform(t, "linux", "", "")
	platformDir.homeDir = func() (string, error) { return "", errors.New("no home") }
	t.Setenv("XDG_CONFIG_HOME", "")

	_, err := DefaultConfigDir()
	assert.Error(t, err)
}

func TestResolveConfigDir(t *testing.T) {
	fakePlatform(t, "linux", "/home/ada", "")
	t.Setenv("XDG_CONFIG_HOME", "")

	tests := []struct {
		name   string
		flag   string
		envVal string
		want   string
	}{
		{"flag wins over env", "/explicit/config", "/env/config", "/explicit/config"},
		{"env wins when flag empty", "", "/env/config", "/env/config"},
		{"platform default when both empty", "", "", "/home/ada/.config/crudkit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfigDir, tt.envVal)
			got, err := ResolveConfigDir(tt.flag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDataDir(t *testing.T) {
	fakePlatform(t, "linux", "/home/ada", "")
	t.Setenv("XDG_DATA_HOME", "")

	tests := []struct {
		name        string
		flag        string
		configValue string
		envVal      string
		want        string
	}{
		{"flag wins over all", "/flag/data", "/config/data", "/env/data", "/flag/data"},
		{"config wins over env", "", "/config/data", "/env/data", "/config/data"},
		{"env when flag and config empty", "", "", "/env/data", "/env/data"},
		{"platform default when all empty", "", "", "", "/home/ada/.local/share/crudkit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDataDir, tt.envVal)
			got, err := ResolveDataDir(tt.flag, tt.configValue)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_RelativeBecomesAbsolute(t *testing.T) {
	t.Setenv(EnvConfigDir, "relative/env")
	got, err := ResolveConfigDir("")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got), "expected absolute path, got %s", got)

	t.Setenv(EnvDataDir, "")
	got, err = ResolveDataDir("", "relative/config")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got), "expected absolute path, got %s", got)
}
