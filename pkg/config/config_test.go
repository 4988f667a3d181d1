package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()

	fs := pflag.NewFlagSet("direct-printing", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))

	return fs
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

// isolate keeps the developer's own config.toml and environment out of the test.
func isolate(t *testing.T) {
	t.Helper()

	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	for _, key := range []string{"HTTP_HOST", "HTTP_PORT", "LOG_LEVEL", "CUPS_SERVER", "RELAY_ENABLED", "RELAY_SPACE", "RELAY_TOKEN", "RELAY_PRINTER", "NAMES_REPLACEMENTS"} {
		t.Setenv(EnvPrefix+"_"+key, "")
		require.NoError(t, os.Unsetenv(EnvPrefix+"_"+key))
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(flags(t))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.HTTP.Host)
	assert.Equal(t, 63856, cfg.HTTP.Port)
	assert.Equal(t, "127.0.0.1:63856", cfg.HTTP.Address())
	assert.Equal(t, int64(64<<20), cfg.HTTP.MaxBodySize)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSAllowOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "ipp://localhost:631", cfg.CUPS.Server)
	assert.Equal(t, "direct-printing", cfg.CUPS.Username)
	assert.Equal(t, time.Minute, cfg.Discovery.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Relay.JobTTL)
	assert.False(t, cfg.Relay.Enabled)
	assert.False(t, cfg.Discover)
	assert.Empty(t, cfg.Settings.Path)
	assert.Empty(t, cfg.File)
}

func TestLoad_File(t *testing.T) {
	isolate(t)

	path := writeConfig(t, `
[http]
port = 8080
cors_allow_origins = ["http://localhost:3000"]

[cups]
server = "ipp://print-server:631/"

[settings]
path = "/etc/direct-printing/settings.json"

[names]
replacements = ["Ã¤=ä"]
`)

	cfg, err := Load(flags(t, "--config", path))
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.HTTP.CORSAllowOrigins)
	assert.Equal(t, "ipp://print-server:631", cfg.CUPS.Server)
	assert.Equal(t, "/etc/direct-printing/settings.json", cfg.Settings.Path)
	assert.Equal(t, []string{"Ã¤=ä"}, cfg.Names.Replacements)
}

func TestLoad_FileInWorkingDirectory(t *testing.T) {
	isolate(t)

	require.NoError(t, os.WriteFile("config.toml", []byte("[log]\nlevel = \"debug\"\n"), 0o600))

	cfg, err := Load(flags(t))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NotEmpty(t, cfg.File)
}

func TestLoad_Priority(t *testing.T) {
	isolate(t)

	path := writeConfig(t, "[http]\nhost = \"0.0.0.0\"\nport = 8080\n\n[log]\nlevel = \"warn\"\n")

	t.Setenv("DIRECT_PRINTING_HTTP_PORT", "9090")
	t.Setenv("DIRECT_PRINTING_LOG_LEVEL", "error")

	cfg, err := Load(flags(t, "--config", path, "-p", "7070"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.HTTP.Host, "file over default")
	assert.Equal(t, "error", cfg.Log.Level, "env over file")
	assert.Equal(t, 7070, cfg.HTTP.Port, "flag over env")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)

	_, err := Load(flags(t, "--config", filepath.Join(t.TempDir(), "missing.toml")))

	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		file string
	}{
		{name: "port out of range", args: []string{"--port", "70000"}},
		{name: "cups server scheme", file: "[cups]\nserver = \"http://localhost:631\"\n"},
		{name: "bad replacement", file: "[names]\nreplacements = [\"nothing\"]\n"},
		{name: "relay without credentials", args: []string{"--relay"}},
		{name: "relay without printer", args: []string{"--relay"}, file: "[relay]\nspace = \"s\"\ntoken = \"t\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)

			args := tt.args
			if tt.file != "" {
				args = append(args, "--config", writeConfig(t, tt.file))
			}

			_, err := Load(flags(t, args...))
			assert.Error(t, err)
		})
	}
}

func TestLoad_Relay(t *testing.T) {
	isolate(t)

	t.Setenv("DIRECT_PRINTING_RELAY_SPACE", "space-1")
	t.Setenv("DIRECT_PRINTING_RELAY_TOKEN", "secret")
	t.Setenv("DIRECT_PRINTING_RELAY_PRINTER", "HP LaserJet")

	cfg, err := Load(flags(t, "--relay", "--discover"))
	require.NoError(t, err)

	assert.True(t, cfg.Relay.Enabled)
	assert.True(t, cfg.Discover)
	assert.Equal(t, "space-1", cfg.Relay.Space)
	assert.Equal(t, "HP LaserJet", cfg.Relay.Printer)
}
