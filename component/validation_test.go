package component

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFactoryConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr bool
	}{
		{"empty config", "", false},
		{"simple object", `{"host":"192.168.1.10","port":41030}`, false},
		{"nested object", `{"ports":{"outputs":[{"name":"frames","subject":"droneid.frames.raw"}]}}`, false},
		{"invalid JSON", `{"host":`, true},
		{"null byte in string", "{\"host\":\"a\x00b\"}", true},
		{"too deep", deepJSON(15), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFactoryConfig(json.RawMessage(tt.config))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func deepJSON(depth int) string {
	var b strings.Builder
	for i := 0; i < depth; i++ {
		b.WriteString(`{"a":`)
	}
	b.WriteString("1")
	for i := 0; i < depth; i++ {
		b.WriteString("}")
	}
	return b.String()
}

type validatableConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (c *validatableConfig) Validate() error {
	if c.Port <= 0 {
		return fmt.Errorf("port must be positive")
	}
	return nil
}

func TestSafeUnmarshal(t *testing.T) {
	var cfg validatableConfig
	err := SafeUnmarshal(json.RawMessage(`{"host":"10.0.0.1","port":41030}`), &cfg)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", cfg.Host)
	assert.Equal(t, 41030, cfg.Port)
}

func TestSafeUnmarshal_ValidateRejects(t *testing.T) {
	var cfg validatableConfig
	err := SafeUnmarshal(json.RawMessage(`{"host":"10.0.0.1","port":-1}`), &cfg)
	assert.Error(t, err)
}

func TestSafeUnmarshal_EmptyConfigKeepsDefaults(t *testing.T) {
	cfg := validatableConfig{Host: "default", Port: 41030}
	err := SafeUnmarshal(nil, &cfg)
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Host)
}

func TestSafeUnmarshal_NonPointer(t *testing.T) {
	var cfg validatableConfig
	err := SafeUnmarshal(json.RawMessage(`{}`), cfg)
	assert.Error(t, err)
}

func TestValidateNetworkConfig(t *testing.T) {
	assert.NoError(t, ValidateNetworkConfig(41030, "0.0.0.0"))
	assert.NoError(t, ValidateNetworkConfig(6969, "192.168.1.10"))
	assert.NoError(t, ValidateNetworkConfig(8080, "*"))
	assert.NoError(t, ValidateNetworkConfig(8080, ""))
	assert.Error(t, ValidateNetworkConfig(0, "0.0.0.0"))
	assert.Error(t, ValidateNetworkConfig(8080, "not-an-ip"))
	assert.Error(t, ValidateNetworkConfig(8080, "300.1.1.1"))
}
