// Package config loads ipcctl configuration from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gobeyondidentity/ipclink/pkg/audit"
	"github.com/gobeyondidentity/ipclink/pkg/journal"
	"github.com/gobeyondidentity/ipclink/pkg/protocol"
	"github.com/gobeyondidentity/ipclink/pkg/transport"
	"gopkg.in/yaml.v3"
)

// AppName names the config directory, the journal directory and the syslog app.
const AppName = "ipcctl"

// DefaultListenAddr is the gRPC health endpoint address used by ipcctl serve.
const DefaultListenAddr = ":50061"

// Config holds ipcctl configuration.
type Config struct {
	Link    LinkConfig    `yaml:"link"`
	Region  RegionConfig  `yaml:"region"`
	Journal JournalConfig `yaml:"journal"`
	Syslog  SyslogConfig  `yaml:"syslog"`
	Serve   ServeConfig   `yaml:"serve"`
}

// LinkConfig mirrors protocol.Config.
type LinkConfig struct {
	RunTimeout          time.Duration `yaml:"run_timeout"`
	BootTimeout         time.Duration `yaml:"boot_timeout"`
	DeviceActiveTimeout time.Duration `yaml:"device_active_timeout"`
	MsgVector           uint8         `yaml:"msg_vector"`
	DeviceVector        uint8         `yaml:"device_vector"`
}

// RegionConfig selects where the shared region lives.
type RegionConfig struct {
	// File backs the region with a shared mapping. Empty uses process memory.
	File         string `yaml:"file"`
	RemoveOnExit bool   `yaml:"remove_on_exit"`
	BusBase      uint64 `yaml:"bus_base"`
}

// JournalConfig controls the SQLite event journal.
type JournalConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// SyslogConfig controls forwarding of link events to syslog.
type SyslogConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Socket   string `yaml:"socket"`
	Facility string `yaml:"facility"`
}

// ServeConfig configures the health endpoint.
type ServeConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultConfig returns configuration with defaults.
func DefaultConfig() *Config {
	return &Config{
		Link: LinkConfig{
			RunTimeout:          protocol.DefaultRunTimeout,
			BootTimeout:         protocol.DefaultBootTimeout,
			DeviceActiveTimeout: protocol.DefaultConfig().DeviceActiveTimeout,
		},
		Journal: JournalConfig{Path: journal.DefaultPath(AppName)},
		Syslog:  SyslogConfig{Socket: "/dev/log", Facility: "daemon"},
		Serve:   ServeConfig{ListenAddr: DefaultListenAddr},
	}
}

// Path returns the default config file path (~/.config/ipcctl/config.yaml).
func Path() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, AppName, "config.yaml")
}

// Load reads the YAML file at path over the defaults. An empty path reads
// the default location, where a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = Path()
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv applies IPCCTL_* environment overrides.
func (c *Config) LoadFromEnv() error {
	var errs []error
	duration := func(name string, dst *time.Duration) {
		v := os.Getenv(name)
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = d
	}

	duration("IPCCTL_RUN_TIMEOUT", &c.Link.RunTimeout)
	duration("IPCCTL_BOOT_TIMEOUT", &c.Link.BootTimeout)
	duration("IPCCTL_DEVICE_ACTIVE_TIMEOUT", &c.Link.DeviceActiveTimeout)

	if v := os.Getenv("IPCCTL_REGION_FILE"); v != "" {
		c.Region.File = v
	}
	if v := os.Getenv("IPCCTL_BUS_BASE"); v != "" {
		base, err := strconv.ParseUint(v, 0, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("IPCCTL_BUS_BASE: %w", err))
		} else {
			c.Region.BusBase = base
		}
	}
	if v := os.Getenv("IPCCTL_JOURNAL"); v != "" {
		c.Journal.Path = v
	}
	if v := os.Getenv("IPCCTL_SYSLOG_SOCKET"); v != "" {
		c.Syslog.Enabled = true
		c.Syslog.Socket = v
	}
	if v := os.Getenv("IPCCTL_LISTEN"); v != "" {
		c.Serve.ListenAddr = v
	}
	return errors.Join(errs...)
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	errs := []error{c.Protocol().Validate()}
	if c.Serve.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("listen address is required"))
	}
	if !c.Journal.Disabled && c.Journal.Path == "" {
		errs = append(errs, fmt.Errorf("journal path is required unless the journal is disabled"))
	}
	if c.Syslog.Enabled {
		if _, err := parseFacility(c.Syslog.Facility); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Protocol returns the link settings as a protocol.Config.
func (c *Config) Protocol() protocol.Config {
	pc := protocol.DefaultConfig()
	pc.RunTimeout = c.Link.RunTimeout
	pc.BootTimeout = c.Link.BootTimeout
	pc.DeviceActiveTimeout = c.Link.DeviceActiveTimeout
	pc.MsgVector = c.Link.MsgVector
	pc.DeviceVector = c.Link.DeviceVector
	return pc
}

// Allocator returns the allocator selection for the region settings.
func (c *Config) Allocator() *transport.Config {
	return &transport.Config{
		RegionFile:   c.Region.File,
		RemoveOnFree: c.Region.RemoveOnExit,
		BusBase:      c.Region.BusBase,
	}
}

// SyslogWriterConfig returns the syslog writer settings.
func (c *Config) SyslogWriterConfig() (audit.SyslogConfig, error) {
	fac, err := parseFacility(c.Syslog.Facility)
	if err != nil {
		return audit.SyslogConfig{}, err
	}
	return audit.SyslogConfig{
		SocketPath: c.Syslog.Socket,
		AppName:    AppName,
		Facility:   fac,
	}, nil
}

func parseFacility(name string) (audit.Facility, error) {
	switch strings.ToLower(name) {
	case "", "daemon":
		return audit.FacDaemon, nil
	case "local0":
		return audit.FacLocal0, nil
	default:
		return 0, fmt.Errorf("unsupported syslog facility %q (use daemon or local0)", name)
	}
}
