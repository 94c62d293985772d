package remotewrite

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/itsneelabh/lambdametrics/core"
)

// ImportPath is the metric store's Prometheus text import endpoint.
const ImportPath = "/api/v1/import/prometheus"

// Config is the flusher's view of the remote write settings.
type Config struct {
	// Endpoint is a host name or a URL. A URL's scheme is used as given;
	// for a bare host the scheme follows the port.
	Endpoint string
	Port     int
	Tenant   string
	// Password only takes effect together with Tenant.
	Password string
	Interval time.Duration
	// FlushOnStart pushes once from New, before the first tick.
	FlushOnStart bool
	Disabled     bool
}

// ConfigFrom converts the layer configuration.
func ConfigFrom(rw core.RemoteWriteConfig) Config {
	return Config{
		Endpoint:     rw.Host,
		Port:         rw.Port,
		Tenant:       rw.TenantName,
		Password:     rw.Password,
		Interval:     rw.FlushInterval,
		FlushOnStart: rw.FlushOnStart,
		Disabled:     rw.Disabled,
	}
}

// Complete reports whether enough is configured to push. Only the endpoint
// is required.
func (c Config) Complete() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// importURL builds the full import URL.
//
// For a bare host, port 443 selects https and anything else http. A URL
// keeps its own scheme and port; a non-default configured port is added
// when the URL has none. Default ports are left out of the URL.
func (c Config) importURL() (string, error) {
	endpoint := strings.TrimSpace(c.Endpoint)
	port := c.Port
	if port == 0 {
		port = core.DefaultPort
	}

	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return "", fmt.Errorf("invalid endpoint %q: %v: %w", endpoint, err, core.ErrInvalidConfiguration)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", fmt.Errorf("unsupported endpoint scheme %q: %w", u.Scheme, core.ErrInvalidConfiguration)
		}
		if u.Host == "" {
			return "", fmt.Errorf("endpoint %q has no host: %w", endpoint, core.ErrInvalidConfiguration)
		}
		if u.Port() == "" && port != core.DefaultPort && !isDefaultPort(u.Scheme, port) {
			u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(port))
		}
		u.Path = strings.TrimRight(u.Path, "/") + ImportPath
		u.RawQuery = ""
		return u.String(), nil
	}

	scheme := "http"
	if port == 443 {
		scheme = "https"
	}
	host := endpoint
	if !isDefaultPort(scheme, port) {
		host = net.JoinHostPort(endpoint, strconv.Itoa(port))
	}
	return scheme + "://" + host + ImportPath, nil
}

func isDefaultPort(scheme string, port int) bool {
	return (scheme == "https" && port == 443) || (scheme == "http" && port == 80)
}

// fields describes the configuration for logs with the password masked.
func (c Config) fields() map[string]interface{} {
	password := ""
	if c.Password != "" {
		password = "*****"
	}
	return map[string]interface{}{
		"endpoint": c.Endpoint,
		"port":     c.Port,
		"tenant":   c.Tenant,
		"password": password,
		"complete": c.Complete(),
		"disabled": c.Disabled,
	}
}
