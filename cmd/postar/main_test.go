package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postar/internal/selector"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "img"), 0o755))
	for _, name := range []string{"a.jpg", "b.png", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "img", name), []byte("x"), 0o600))
	}
	posts := "-- INICIO\nprimeiro\n-- FIM\n-- INICIO\nsegundo\n-- FIM\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "posts.txt"), []byte(posts), 0o600))

	cfg := `
telegram:
  token: "123:abc"
  target_chat_id: -100
logging:
  level: error
schedule:
  times: ["09:00", "21:15"]
  jitter_minutes: 5
  timezone: UTC
  days:
    mode: explicit
    names: ["sábado", "dom"]
content:
  posts_file: ` + filepath.Join(dir, "posts.txt") + `
  media:
    default_dir: ` + filepath.Join(dir, "img") + `
storage:
  driver: file
  path: ` + filepath.Join(dir, "state.json") + `
`
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(cfg), 0o600))
	return p
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheckCmd(t *testing.T) {
	cfg := writeConfig(t)
	out, err := execute(t, "check", "--config", cfg, "-n", "4")
	require.NoError(t, err)

	assert.Contains(t, out, "posts: 2 (types: default)")
	assert.Contains(t, out, "media default: 2 files")
	assert.Contains(t, out, "days: Saturday, Sunday")
	assert.Equal(t, 4, strings.Count(out, "next "))
	assert.Contains(t, out, "next 09:00: Sat")
}

func TestStateAndResetCmd(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "state", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "POOL")
	_, statErr := os.Stat(filepath.Join(filepath.Dir(cfg), "state.json"))
	assert.True(t, os.IsNotExist(statErr), "state must not write the state file")
	assert.Contains(t, out, selector.PostsKey)
	assert.Contains(t, out, selector.MediaKey("default"))

	out, err = execute(t, "reset", "--config", cfg, selector.PostsKey)
	require.NoError(t, err)
	assert.Equal(t, "reset posts\n", out)

	_, err = execute(t, "reset", "--config", cfg, "media:nope")
	assert.ErrorIs(t, err, selector.ErrUnknownPool)
}

func TestResetHelpWarnsAboutRunningDaemon(t *testing.T) {
	out, err := execute(t, "reset", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Stop the daemon first")
}

func TestCheckCmd_BadConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"telegram":{}}`), 0o600))
	_, err := execute(t, "check", "--config", p)
	assert.Error(t, err)
}
