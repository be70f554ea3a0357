package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultWorkbook, cfg.GetWorkbook())
	assert.Equal(t, DefaultSheet, cfg.GetSheet())
	assert.Equal(t, DefaultK, cfg.GetDefaultK())
	assert.Equal(t, DefaultDBPath, cfg.GetDBPath())
	assert.Equal(t, DefaultAddr, cfg.GetAddr())
	assert.Equal(t, DefaultTopicPrefix, cfg.MQTT.GetTopicPrefix())
	assert.Equal(t, DefaultClientID, cfg.MQTT.GetClientID())
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workbook:
  path: consumo.xlsx
  sheet: dados
analysis:
  default_k: 3
cache:
  ttl: 10m
  watch_mod_time: true
mqtt:
  enabled: true
  broker: localhost:1883
`), 0600))

	t.Setenv("GRIDFLEX_WORKBOOK_SHEET", "override")
	t.Setenv("GRIDFLEX_SERVER_ADDR", ":9999")
	t.Setenv("GRIDFLEX_CACHE_TTL", "1h")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "consumo.xlsx", cfg.GetWorkbook())
	assert.Equal(t, "override", cfg.GetSheet())
	assert.Equal(t, 3, cfg.GetDefaultK())
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.True(t, cfg.Cache.WatchModTime)
	assert.Equal(t, ":9999", cfg.GetAddr())
	assert.Equal(t, "localhost:1883", cfg.MQTT.Broker)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := map[string]string{
		"k out of range": "analysis:\n  default_k: 9\n",
		"mqtt no broker": "mqtt:\n  enabled: true\n",
		"ha no token":    "home_assistant:\n  enabled: true\n  url: http://ha\n  entity_id: sensor.x\n",
		"malformed yaml": "workbook: [\n",
		"negative cache": "cache:\n  ttl: -1s\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0600))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := &Config{
		Workbook: WorkbookConfig{Path: "a.xlsx", Sheet: "s"},
		HomeAssistant: HAConfig{
			Enabled: true, URL: "http://ha:8123", Token: "t", EntityID: "sensor.flex",
		},
	}
	require.NoError(t, Save(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Workbook, loaded.Workbook)
	assert.Equal(t, cfg.HomeAssistant, loaded.HomeAssistant)
}

func TestDefaultIsValidAndRoundTrips(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultWorkbook, cfg.GetWorkbook())
	assert.Equal(t, DefaultK, cfg.GetDefaultK())

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
