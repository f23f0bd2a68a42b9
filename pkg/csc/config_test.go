package csc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, defaultConfig.Validate())

	cfg := defaultConfig
	cfg.S3Instance = "Tucson"
	assert.ErrorContains(t, cfg.Validate(), "invalid s3instance")

	cfg = defaultConfig
	cfg.S3Instance = ""
	assert.ErrorContains(t, cfg.Validate(), "invalid s3instance")

	cfg = defaultConfig
	cfg.Location = ""
	assert.ErrorContains(t, cfg.Validate(), "location must not be empty")
}

func TestApplyOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"s3instance: tucson\nmqtt:\n  host: tcp://broker:1883\n"), 0o644))

	cfg, err := ApplyOverride(defaultConfig, path)
	require.NoError(t, err)
	assert.Equal(t, "tucson", cfg.S3Instance)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Host)
	// untouched fields keep their stored values
	assert.Equal(t, defaultConfig.Location, cfg.Location)
	assert.Equal(t, defaultConfig.MQTT.TopicRoot, cfg.MQTT.TopicRoot)
}

func TestApplyOverrideEmptyPath(t *testing.T) {
	cfg, err := ApplyOverride(defaultConfig, "")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig, cfg)
}

func TestApplyOverrideErrors(t *testing.T) {
	_, err := ApplyOverride(defaultConfig, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read override file")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("s3instance: [oops"), 0o644))
	_, err = ApplyOverride(defaultConfig, bad)
	assert.ErrorContains(t, err, "failed to parse override file")

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("location: \"\"\n"), 0o644))
	_, err = ApplyOverride(defaultConfig, invalid)
	assert.ErrorContains(t, err, "location must not be empty")
}
