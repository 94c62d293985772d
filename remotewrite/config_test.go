package remotewrite

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/lambdametrics/core"
)

func TestImportURL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		port     int
		want     string
	}{
		{"bare host default port", "metrics.example.com", 443, "https://metrics.example.com/api/v1/import/prometheus"},
		{"bare host zero port", "metrics.example.com", 0, "https://metrics.example.com/api/v1/import/prometheus"},
		{"bare host custom port", "localhost", 8428, "http://localhost:8428/api/v1/import/prometheus"},
		{"bare host port 80", "localhost", 80, "http://localhost/api/v1/import/prometheus"},
		{"bare host trimmed", "  metrics.example.com ", 443, "https://metrics.example.com/api/v1/import/prometheus"},
		{"https url", "https://metrics.example.com", 443, "https://metrics.example.com/api/v1/import/prometheus"},
		{"http url keeps scheme", "http://store.local", 443, "http://store.local/api/v1/import/prometheus"},
		{"url with port", "http://127.0.0.1:9999", 443, "http://127.0.0.1:9999/api/v1/import/prometheus"},
		{"url gets custom port", "http://store.local", 8428, "http://store.local:8428/api/v1/import/prometheus"},
		{"url with base path", "https://gw.example.com/tenant-a/", 443, "https://gw.example.com/tenant-a/api/v1/import/prometheus"},
		{"url query dropped", "https://gw.example.com?x=1", 443, "https://gw.example.com/api/v1/import/prometheus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Config{Endpoint: tt.endpoint, Port: tt.port}.importURL()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImportURLInvalid(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
	}{
		{"unsupported scheme", "ftp://store.local"},
		{"no host", "http://"},
		{"unparseable", "http://[::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Config{Endpoint: tt.endpoint}.importURL()
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrInvalidConfiguration))
		})
	}
}

func TestConfigComplete(t *testing.T) {
	assert.False(t, Config{}.Complete())
	assert.False(t, Config{Endpoint: "   ", Tenant: "acme"}.Complete())
	assert.True(t, Config{Endpoint: "store.local"}.Complete())
}

func TestConfigFrom(t *testing.T) {
	rw := core.RemoteWriteConfig{
		Host:          "store.local",
		Port:          8428,
		TenantName:    "acme",
		Password:      "secret",
		FlushInterval: time.Second,
		FlushOnStart:  true,
		Disabled:      true,
	}

	cfg := ConfigFrom(rw)
	assert.Equal(t, Config{
		Endpoint:     "store.local",
		Port:         8428,
		Tenant:       "acme",
		Password:     "secret",
		Interval:     time.Second,
		FlushOnStart: true,
		Disabled:     true,
	}, cfg)
}

func TestConfigFieldsMaskPassword(t *testing.T) {
	fields := Config{Endpoint: "store.local", Tenant: "acme", Password: "secret"}.fields()
	assert.Equal(t, "*****", fields["password"])
	for k, v := range fields {
		if s, ok := v.(string); ok && s == "secret" {
			t.Errorf("field %s leaks the password", k)
		}
	}

	fields = Config{Endpoint: "store.local"}.fields()
	assert.Equal(t, "", fields["password"])
}
