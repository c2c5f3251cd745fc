package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphafox02/antsdr-dji-droneid/types"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()

	// The loader rejects paths outside the working directory, so the
	// fixture has to live under it
	dir, err := os.MkdirTemp(".", "configtest")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile_JSON(t *testing.T) {
	path := writeConfigFile(t, "gateway.json", `{
		"platform": {"org": "alphafox02", "id": "antsdr-1"},
		"nats": {"url": "nats://10.0.0.5:4222", "reconnect_wait": "5s"},
		"components": {
			"antsdr-main": {
				"type": "input",
				"name": "antsdr",
				"enabled": true,
				"config": {"host": "192.168.1.10", "port": 41030}
			}
		}
	}`)

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "alphafox02", cfg.Platform.Org)
	assert.Equal(t, "antsdr-1", cfg.Platform.ID)
	assert.Equal(t, "nats://10.0.0.5:4222", cfg.NATS.URL)
	assert.Equal(t, 5*time.Second, cfg.NATS.ReconnectWait)

	// Defaults survive the merge
	assert.Equal(t, -1, cfg.NATS.MaxReconnects)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)

	require.Contains(t, cfg.Components, "antsdr-main")
	comp := cfg.Components["antsdr-main"]
	assert.Equal(t, types.ComponentTypeInput, comp.Type)
	assert.Equal(t, "antsdr", comp.Name)
	assert.True(t, comp.Enabled)
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeConfigFile(t, "gateway.yaml", `
platform:
  org: alphafox02
  id: antsdr-1
nats:
  url: nats://localhost:4222
metrics:
  enabled: false
components:
  cot-main:
    type: output
    name: cot
    enabled: true
    config:
      host: 239.2.3.1
      port: 6969
`)

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "antsdr-1", cfg.Platform.ID)
	assert.False(t, cfg.Metrics.Enabled)
	require.Contains(t, cfg.Components, "cot-main")
	assert.Equal(t, types.ComponentTypeOutput, cfg.Components["cot-main"].Type)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := NewLoader().LoadFile("does-not-exist.json")
	assert.Error(t, err)
}

func TestLoadFile_InvalidExtension(t *testing.T) {
	path := writeConfigFile(t, "gateway.toml", "whatever")
	_, err := NewLoader().LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFile_ValidationFailure(t *testing.T) {
	// Missing platform.id
	path := writeConfigFile(t, "bad.json", `{"platform": {"org": "alphafox02"}}`)
	_, err := NewLoader().LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	t.Setenv("DRONEID_PLATFORM_ID", "antsdr-override")
	t.Setenv("DRONEID_NATS_URL", "nats://override:4222")

	path := writeConfigFile(t, "gateway.json", `{
		"platform": {"org": "alphafox02", "id": "antsdr-1"}
	}`)

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "antsdr-override", cfg.Platform.ID)
	assert.Equal(t, "nats://override:4222", cfg.NATS.URL)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Platform: PlatformConfig{Org: "alphafox02", ID: "antsdr-1"},
			NATS:     NATSConfig{URL: "nats://localhost:4222"},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("org normalized to lowercase", func(t *testing.T) {
		cfg := valid()
		cfg.Platform.Org = "AlphaFox02"
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "alphafox02", cfg.Platform.Org)
	})

	t.Run("org with invalid chars", func(t *testing.T) {
		cfg := valid()
		cfg.Platform.Org = "alpha fox"
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing org", func(t *testing.T) {
		cfg := valid()
		cfg.Platform.Org = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing nats url", func(t *testing.T) {
		cfg := valid()
		cfg.NATS.URL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad metrics port", func(t *testing.T) {
		cfg := valid()
		cfg.Metrics = MetricsConfig{Enabled: true, Port: 99999}
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad component", func(t *testing.T) {
		cfg := valid()
		cfg.Components = ComponentConfigs{
			"x": {Type: "banana", Name: "x", Config: json.RawMessage(`{}`)},
		}
		assert.Error(t, cfg.Validate())
	})
}

func TestSafeConfig(t *testing.T) {
	base := &Config{
		Platform: PlatformConfig{Org: "alphafox02", ID: "antsdr-1"},
		NATS:     NATSConfig{URL: "nats://localhost:4222"},
	}

	sc := NewSafeConfig(base)

	got := sc.Get()
	assert.Equal(t, "antsdr-1", got.Platform.ID)

	// Mutating the copy does not touch the stored config
	got.Platform.ID = "changed"
	assert.Equal(t, "antsdr-1", sc.Get().Platform.ID)

	// Update validates
	assert.Error(t, sc.Update(&Config{}))
	assert.Error(t, sc.Update(nil))

	updated := base.Clone()
	updated.Platform.ID = "antsdr-2"
	require.NoError(t, sc.Update(updated))
	assert.Equal(t, "antsdr-2", sc.Get().Platform.ID)
}

func TestValidateJSONDepth(t *testing.T) {
	assert.NoError(t, validateJSONDepth([]byte(`{"a":{"b":[1,2,3]}}`)))
	assert.Error(t, validateJSONDepth([]byte(`{"a":{"b":`)))
	assert.NoError(t, validateJSONDepth([]byte(`{"a":"}{"}`)))
}

func TestPlatformConfig_Meta(t *testing.T) {
	meta := PlatformConfig{Org: "alphafox02", ID: "antsdr-1"}.Meta()
	assert.Equal(t, "alphafox02", meta.Org)
	assert.Equal(t, "antsdr-1", meta.Platform)
}
