package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// defaultThreadCount is used when thread_count is absent or zero.
const defaultThreadCount = 4

// Config mirrors the TOML configuration file read at startup.
type Config struct {
	Auth           map[string]string `toml:"auth"`
	PfxCertPath    string            `toml:"pfx_cert_path"`
	PfxPass        string            `toml:"pfx_pass"`
	ThreadCount    int               `toml:"thread_count"`
	EnableLog      bool              `toml:"enable_log"`
	UDSMonitorPath string            `toml:"uds_monitor_path"`
	UDSClientPath  string            `toml:"uds_client_path"`
	TCPMonitorHost string            `toml:"tcp_monitor_host"`
	TCPClientHost  string            `toml:"tcp_client_host"`
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("The file %q can not be found", path)
		}
		return nil, err
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
	}

	if cfg.PfxCertPath == "" {
		return nil, fmt.Errorf("pfx_cert_path is required")
	}
	if cfg.ThreadCount <= 0 {
		cfg.ThreadCount = defaultThreadCount
	}

	return &cfg, nil
}

// UseTCP reports whether both TCP hosts are configured.
func (c *Config) UseTCP() bool {
	return c.TCPClientHost != "" && c.TCPMonitorHost != ""
}

// UseUDS reports whether both UDS paths are configured.
func (c *Config) UseUDS() bool {
	return c.UDSClientPath != "" && c.UDSMonitorPath != ""
}
