package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validJSON = `{
  "telegram": {"token": "123:abc", "target_chat_id": -1001},
  "logging": {"level": "info", "console": true},
  "schedule": {"times": ["09:00", "18:30"], "jitter_minutes": 10, "days": {"mode": "random", "count": 3}},
  "content": {"posts_file": "./posts.txt", "media": {"categories": {"usuario": "./u", "revenda": "./r"}}},
  "storage": {"driver": "file", "path": "./state.json"}
}`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "config.json", validJSON))
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(-1001), cfg.Telegram.TargetChatID)
	assert.Equal(t, []string{"09:00", "18:30"}, cfg.Schedule.Times)
	assert.Equal(t, DaysRandom, NormalizeDaysMode(cfg.Schedule.Days.Mode))
	assert.Equal(t, DefaultCaptionLimit, cfg.Content.EffectiveCaptionLimit())
	assert.Same(t, cfg, m.Get())
}

func TestLoadYAMLAndTOML(t *testing.T) {
	t.Parallel()
	yamlBody := `
telegram:
  token: "123:abc"
  target_chat_id: 42
schedule:
  times: ["07:15"]
  jitter_minutes: 0
content:
  posts_file: posts.txt
  caption_limit: 1300
  media:
    default_dir: ./imagens
`
	cfg, err := NewManager(writeFile(t, "config.yaml", yamlBody)).Load()
	require.NoError(t, err)
	assert.Equal(t, 1300, cfg.Content.EffectiveCaptionLimit())
	assert.Equal(t, "./imagens", cfg.Content.Media.DefaultDir)

	tomlBody := `
[telegram]
token = "123:abc"
target_chat_id = 42

[schedule]
times = ["07:15"]
test_mode = true
test_interval = "3s"

[content]
posts_file = "posts.txt"

[content.media.categories]
usuario = "./u"
`
	cfg, err = NewManager(writeFile(t, "config.toml", tomlBody)).Load()
	require.NoError(t, err)
	assert.True(t, cfg.Schedule.TestMode)
	assert.Equal(t, "./u", cfg.Content.Media.Categories["usuario"])
	assert.Equal(t, "3s", cfg.Schedule.TestInterval)
}

func TestDecodeRejectsUnknownFieldsAndTrailingData(t *testing.T) {
	t.Parallel()
	_, err := Decode("c.json", []byte(`{"telegram": {"tokenx": "a"}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))

	_, err = Decode("c.json", []byte(`{} {}`))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		cfg, err := Decode("c.json", []byte(validJSON))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "missing token", mutate: func(c *Config) { c.Telegram.Token = "" }},
		{name: "missing target", mutate: func(c *Config) { c.Telegram.TargetChatID = 0 }},
		{name: "negative jitter", mutate: func(c *Config) { c.Schedule.JitterMinutes = -1 }},
		{name: "bad time", mutate: func(c *Config) { c.Schedule.Times = []string{"24:00"} }},
		{name: "no times", mutate: func(c *Config) { c.Schedule.Times = nil }},
		{name: "posts_per_day mismatch", mutate: func(c *Config) { c.Schedule.PostsPerDay = 3 }},
		{name: "random count", mutate: func(c *Config) { c.Schedule.Days.Count = 8 }},
		{name: "explicit without names", mutate: func(c *Config) { c.Schedule.Days = DaysConfig{Mode: "explicit"} }},
		{name: "unknown day mode", mutate: func(c *Config) { c.Schedule.Days.Mode = "weekly" }},
		{name: "bad timezone", mutate: func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }},
		{name: "no media", mutate: func(c *Config) { c.Content.Media = MediaConfig{} }},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "redis" }},
		{name: "bad test interval", mutate: func(c *Config) { c.Schedule.TestInterval = "soon" }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfig), "error %v should wrap ErrConfig", err)
		})
	}

	require.NoError(t, Validate(base()))
}

func TestTestModeSkipsTimes(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("c.json", []byte(validJSON))
	require.NoError(t, err)
	cfg.Schedule.Times = nil
	cfg.Schedule.TestMode = true
	require.NoError(t, Validate(cfg))
	assert.Equal(t, DefaultTestInterval, cfg.Schedule.TestIntervalOrDefault())
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	h, m, err := ParseHHMM("23:15")
	require.NoError(t, err)
	assert.Equal(t, 23, h)
	assert.Equal(t, 15, m)

	for _, bad := range []string{"24:00", "12:60", "1200", "ab:cd", ""} {
		_, _, err := ParseHHMM(bad)
		assert.Error(t, err, bad)
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	a, err := Decode("c.json", []byte(validJSON))
	require.NoError(t, err)
	b, err := Decode("c.json", []byte(validJSON))
	require.NoError(t, err)
	assert.Empty(t, SummarizeChange(a, b))

	b.Logging.Level = "debug"
	assert.Equal(t, []string{"logging"}, SummarizeChange(a, b))
	assert.False(t, RequiresRestart(SummarizeChange(a, b)))

	b.Schedule.JitterMinutes = 30
	assert.Equal(t, []string{"logging", "schedule"}, SummarizeChange(a, b))
	assert.True(t, RequiresRestart(SummarizeChange(a, b)))
}

func TestReloadPublishesValidChanges(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", validJSON)
	m := NewManager(path)
	_, err := m.Load()
	require.NoError(t, err)
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	// unchanged content: nothing published
	m.reload()
	assert.Len(t, sub, 0)

	// invalid content: rejected
	require.NoError(t, os.WriteFile(path, []byte(`{"telegram": {}}`), 0o600))
	m.reload()
	assert.Len(t, sub, 0)

	cfg, err := Decode(path, []byte(validJSON))
	require.NoError(t, err)
	cfg.Logging.Level = "debug"
	raw, err := jsonIndent(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	m.reload()
	require.Len(t, sub, 1)
	got := <-sub
	assert.Equal(t, "debug", got.Logging.Level)
	assert.Equal(t, "debug", m.Get().Logging.Level)
}

func jsonIndent(cfg *Config) ([]byte, error) {
	return json.MarshalIndent(cfg, "", "  ")
}

func TestParseDuration(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("x", "", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)

	d, err = ParseDurationOrDefault("x", " 2m ", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)

	_, err = ParseDurationField("storage.busy_timeout", "-1s")
	assert.ErrorIs(t, err, ErrConfig)

	_, err = ParseDurationField("storage.busy_timeout", "soon")
	assert.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "storage.busy_timeout")
}
