package factory

import (
	"fmt"
	"net"
	"strings"

	"github.com/asaskevich/govalidator"
)

// MmeDefaultConfigPath is used by cmd/main.go when no -c flag is given.
const MmeDefaultConfigPath = "config/mmecfg.yaml"

// Config is the top-level configuration loaded from config/mmecfg.yaml.
type Config struct {
	Info       InfoSection       `yaml:"info"`
	Southbound SouthboundSection `yaml:"southbound"`
	Northbound NorthboundSection `yaml:"northbound"`
	Sbi        SbiSection        `yaml:"sbi"`
	Enb        EnbSection        `yaml:"enb"`
	Registry   RegistrySection   `yaml:"registry"`
	Logging    LoggingSection    `yaml:"logging"`
}

// ---------- info ----------

type InfoSection struct {
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
}

// ---------- southbound (eNodeB front-ends → MME) ----------

type SouthboundSection struct {
	ListenAddr string `yaml:"listenAddr"` // e.g. "0.0.0.0:8070"
}

// ---------- northbound (MME → subscriber-tracking consumers) ----------

type NorthboundSection struct {
	EnablePush bool   `yaml:"enablePush"` // push Reg/UnReg/CgiChange notifications
	NotifURI   string `yaml:"notifUri"`   // e.g. "http://127.0.0.1:8091/notify"
}

// ---------- sbi (status API) ----------

type SbiSection struct {
	ListenAddr   string `yaml:"listenAddr"`   // e.g. "0.0.0.0:8072"
	EnableStatus bool   `yaml:"enableStatus"` // expose /mme/v1 read-only API
}

// ---------- enb (MME → eNodeB commands) ----------

type EnbSection struct {
	EnableIdentityRequests bool   `yaml:"enableIdentityRequests"` // transmit IDENTITY REQUEST over HTTP
	CommandURI             string `yaml:"commandUri"`             // e.g. "http://127.0.0.1:8071/command"
}

// ---------- registry ----------

type RegistrySection struct {
	IdentityRequestTimeoutMs int `yaml:"identityRequestTimeoutMs"` // deadline for Identity Response
	SweepIntervalMs          int `yaml:"sweepIntervalMs"`          // cadence of timeout sweeps
	EventQueueSize           int `yaml:"eventQueueSize"`           // dispatcher queue capacity
	HistoryMaxItems          int `yaml:"historyMaxItems"`          // retained notifications; 0 = default
}

// ---------- logging ----------

type LoggingSection struct {
	Level        string `yaml:"level"` // "debug" | "info" | "warn" | "error"
	ReportCaller bool   `yaml:"reportCaller"`
}

// ---------- defaults ----------

func applyDefaults(cfg *Config) {
	// southbound
	if strings.TrimSpace(cfg.Southbound.ListenAddr) == "" {
		cfg.Southbound.ListenAddr = "0.0.0.0:8070"
	}
	// sbi
	if strings.TrimSpace(cfg.Sbi.ListenAddr) == "" {
		cfg.Sbi.ListenAddr = "0.0.0.0:8072"
	}
	// registry
	if cfg.Registry.IdentityRequestTimeoutMs <= 0 {
		cfg.Registry.IdentityRequestTimeoutMs = 5000
	}
	if cfg.Registry.SweepIntervalMs <= 0 {
		cfg.Registry.SweepIntervalMs = 1000
	}
	if cfg.Registry.EventQueueSize <= 0 {
		cfg.Registry.EventQueueSize = 1024
	}
	if cfg.Registry.HistoryMaxItems < 0 {
		cfg.Registry.HistoryMaxItems = 0
	}
	// logging
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
}

// ---------- validation helpers ----------

func isValidHostPort(hostport string) bool {
	// net.SplitHostPort requires a port; check first if it contains colon
	if !strings.Contains(hostport, ":") {
		return false
	}
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return false
	}
	if strings.TrimSpace(host) == "" || strings.TrimSpace(port) == "" {
		return false
	}
	return true
}

func isValidBaseURL(u string) bool {
	return govalidator.IsRequestURL(u)
}

// ---------- Validate ----------

func validateConfig(cfg *Config) error {
	// southbound.listenAddr
	if !isValidHostPort(cfg.Southbound.ListenAddr) {
		return fmt.Errorf("southbound.listenAddr is invalid: %q", cfg.Southbound.ListenAddr)
	}

	// northbound
	if cfg.Northbound.EnablePush {
		if !isValidBaseURL(cfg.Northbound.NotifURI) {
			return fmt.Errorf("northbound.notifUri invalid (enablePush=true): %q", cfg.Northbound.NotifURI)
		}
	}

	// sbi
	if cfg.Sbi.EnableStatus {
		if !isValidHostPort(cfg.Sbi.ListenAddr) {
			return fmt.Errorf("sbi.listenAddr is invalid: %q", cfg.Sbi.ListenAddr)
		}
	}

	// enb
	if cfg.Enb.EnableIdentityRequests {
		if !isValidBaseURL(cfg.Enb.CommandURI) {
			return fmt.Errorf("enb.commandUri invalid (enableIdentityRequests=true): %q", cfg.Enb.CommandURI)
		}
	}

	// registry
	if cfg.Registry.IdentityRequestTimeoutMs <= 0 {
		return fmt.Errorf("registry.identityRequestTimeoutMs must be > 0")
	}
	if cfg.Registry.SweepIntervalMs <= 0 {
		return fmt.Errorf("registry.sweepIntervalMs must be > 0")
	}
	if cfg.Registry.EventQueueSize <= 0 {
		return fmt.Errorf("registry.eventQueueSize must be > 0")
	}
	if cfg.Registry.HistoryMaxItems < 0 {
		return fmt.Errorf("registry.historyMaxItems must be >= 0")
	}

	// logging
	switch strings.ToLower(cfg.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level unsupported: %q", cfg.Logging.Level)
	}
	return nil
}
