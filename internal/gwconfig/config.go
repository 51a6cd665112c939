// Package gwconfig loads and validates the gateway's proxy-level
// configuration: listener ports, the screens directory override, the
// default EBCDIC code page, and the initial log level.
package gwconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/neo6/tn3270gw/internal/gwlog"
)

// Config is the root proxy configuration, loaded once at startup from
// config.json in the directory passed to Load.
type Config struct {
	ProtocolName string `json:"protocolName"`

	ListenHost string `json:"listenHost"`
	ListenPort int    `json:"listenPort"`

	AdminHost string `json:"adminHost"`
	AdminPort int    `json:"adminPort"`

	// ScreensDir, when non-empty, is searched first, ahead of
	// internal/screens' own NEO6_CONFIG_DIR / ./config/screens /
	// workspace-fallback order, which still applies after it. Empty
	// means that order alone.
	ScreensDir string `json:"screensDir,omitempty"`

	DefaultCodepage string `json:"defaultCodepage"`
	LogLevel        string `json:"logLevel"`

	// ReloadConfigCron, when non-empty, is a cron expression passed to
	// internal/scheduler to trigger ReloadConfig on a schedule in
	// addition to the admin socket's on-demand command.
	ReloadConfigCron string `json:"reloadConfigCron,omitempty"`

	// TransactionMapPath, when non-empty, is loaded once at startup via
	// internal/txmap. The invocation router it describes is out of
	// scope; only the load is.
	TransactionMapPath string `json:"transactionMapPath,omitempty"`
}

// Default returns the configuration used when config.json is absent,
// matching spec.md §6's stated default TN3270 port.
func Default() Config {
	return Config{
		ProtocolName:    "tn3270",
		ListenHost:      "0.0.0.0",
		ListenPort:      2323,
		AdminHost:       "127.0.0.1",
		AdminPort:       2324,
		DefaultCodepage: "cp037",
		LogLevel:        "info",
	}
}

// Load reads config.json from configDir. A missing file is not an
// error: Load returns Default(). A present-but-malformed file is an
// error.
func Load(configDir string) (Config, error) {
	filePath := filepath.Join(configDir, "config.json")
	defaultConfig := Default()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			gwlog.Infof("gwconfig: %s not found, using defaults", filePath)
			return defaultConfig, nil
		}
		return defaultConfig, fmt.Errorf("gwconfig: read %s: %w", filePath, err)
	}

	cfg := defaultConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return defaultConfig, fmt.Errorf("gwconfig: parse %s: %w", filePath, err)
	}
	if err := cfg.Validate(); err != nil {
		return defaultConfig, fmt.Errorf("gwconfig: %s: %w", filePath, err)
	}
	gwlog.Infof("gwconfig: loaded %s", filePath)
	return cfg, nil
}

// Save writes cfg to config.json in configDir, creating or
// overwriting the file.
func Save(configDir string, cfg Config) error {
	filePath := filepath.Join(configDir, "config.json")
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("gwconfig: marshal: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("gwconfig: write %s: %w", filePath, err)
	}
	return nil
}

// Validate reports the first structural problem found, if any: ports
// out of range or colliding, an empty protocol name, or an
// unrecognized log level.
func (c Config) Validate() error {
	if c.ProtocolName == "" {
		return fmt.Errorf("gwconfig: protocolName must not be empty")
	}
	if err := validatePort("listenPort", c.ListenPort); err != nil {
		return err
	}
	if err := validatePort("adminPort", c.AdminPort); err != nil {
		return err
	}
	if c.ListenHost == c.AdminHost && c.ListenPort == c.AdminPort {
		return fmt.Errorf("gwconfig: listenPort and adminPort must not collide on %s", c.ListenHost)
	}
	if _, ok := gwlog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("gwconfig: unrecognized logLevel %q", c.LogLevel)
	}
	return nil
}

func validatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("gwconfig: %s %d out of range [1,65535]", field, port)
	}
	return nil
}
