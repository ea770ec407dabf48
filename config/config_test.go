package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuya-switch/config"
	"tuya-switch/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_MQTT_PASSWORD", "s3cret")

	cfg, err := config.Load(writeConfig(t, `
registry:
  file: /etc/tuya/devices.json
command:
  delay: 2s
tuya:
  timeout: 1500ms
  attempts: 1
mqtt:
  enabled: true
  broker: mqtt://broker:1883
  password: ${TEST_MQTT_PASSWORD}
pushover:
  enabled: true
  token: app-token
  user_key: user-key
log:
  level: debug
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, "/etc/tuya/devices.json", cfg.Registry.File)
	assert.Equal(t, 6668, cfg.Tuya.Port)
	assert.Equal(t, 1, cfg.Tuya.Attempts)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "s3cret", cfg.MQTT.Password)
	assert.Equal(t, "tuya", cfg.MQTT.TopicPrefix)
	assert.True(t, cfg.Pushover.Enabled)
	assert.Equal(t, "user-key", cfg.Pushover.UserKey)
	assert.Equal(t, "json", cfg.Log.Format)

	delay, err := cfg.Delay()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, delay)

	timeout, err := cfg.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, timeout)
}

func TestDefault(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, "tuya-devices.json", cfg.Registry.File)
	assert.Equal(t, 3, cfg.Tuya.Attempts)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, cfg.MQTT.Enabled)

	delay, err := cfg.Delay()
	require.NoError(t, err)
	assert.Zero(t, delay)
}

func TestLoad_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")

	_, err := config.Load(path)
	assert.ErrorIs(t, err, domain.ErrConfigNotFound)
	assert.NotErrorIs(t, err, domain.ErrRegistryNotFound)
	assert.ErrorContains(t, err, "config file not found: "+path)
	assert.Equal(t, domain.ExitFileNotFound, domain.ExitCode(err))

	cfg, err := config.LoadOptional(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_Invalid(t *testing.T) {
	for name, content := range map[string]string{
		"yaml":           "registry: [unterminated",
		"delay":          "command:\n  delay: soon\n",
		"negative delay": "command:\n  delay: -1s\n",
		"timeout":        "tuya:\n  timeout: 0s\n",
		"attempts":       "tuya:\n  attempts: -2\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, content))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfigInvalid)
			assert.NotErrorIs(t, err, domain.ErrRegistryInvalid)
			assert.Equal(t, domain.ExitParseError, domain.ExitCode(err))
		})
	}
}
