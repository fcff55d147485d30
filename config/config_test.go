package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir into an empty dir so a stray .env in the package dir is not picked up
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAML(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "tiltball.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: "127.0.0.1:9000"
  ping_interval: 10s
log:
  level: debug
  format: console
room:
  frame_hz: 120
  broadcast_hz: 30
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.PingInterval)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 120, cfg.Room.FrameHz)
	// untouched keys keep their defaults
	assert.Equal(t, 64, cfg.Haptics.PoolSize)
}

func TestDotEnvAndEnvOverrides(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TILTBALL_HAPTICS_POOL_SIZE=8\n"), 0o644))
	t.Setenv("TILTBALL_ADDR", ":7000")
	t.Setenv("TILTBALL_FRAME_HZ", "30")
	t.Setenv("TILTBALL_BROADCAST_HZ", "10")
	t.Setenv("TILTBALL_ENV", "development")
	t.Cleanup(func() { _ = os.Unsetenv("TILTBALL_HAPTICS_POOL_SIZE") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 30, cfg.Room.FrameHz)
	assert.Equal(t, 10, cfg.Room.BroadcastHz)
	assert.Equal(t, 8, cfg.Haptics.PoolSize)
	assert.True(t, cfg.Log.Development)
}

func TestBadEnvValue(t *testing.T) {
	inTempDir(t)
	t.Setenv("TILTBALL_FRAME_HZ", "fast")
	_, err := Load("")
	assert.ErrorContains(t, err, "TILTBALL_FRAME_HZ")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Room.BroadcastHz = 90
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Log.Format = "xml"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Server.Addr = ""
	assert.Error(t, cfg.Validate())
}

func TestMissingFile(t *testing.T) {
	inTempDir(t)
	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestGetEnvVariable(t *testing.T) {
	t.Setenv("TILTBALL_TEST_VAR", "x")
	v, err := GetEnvVariable("TILTBALL_TEST_VAR")
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	_, err = GetEnvVariable("")
	assert.Error(t, err)
	_, err = GetEnvVariable("TILTBALL_TEST_UNSET_VAR")
	assert.Error(t, err)
}

func TestEmptyEnvKeepsDefault(t *testing.T) {
	inTempDir(t)
	t.Setenv("TILTBALL_ADDR", "")
	t.Setenv("TILTBALL_FRAME_HZ", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)
	assert.Equal(t, Default().Room.FrameHz, cfg.Room.FrameHz)
}
