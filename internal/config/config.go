// Package config defines SecurityConfig (spec §3) and its loading,
// defaulting, and validation rules (spec §6). Loading reuses the teacher's
// own pkg/jsonx.ParseJSONObject helper for strict, unknown-field-rejecting
// decoding rather than pulling in a config framework.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Digital-Defiance/mcp-process-sub000/internal/model"
	"github.com/Digital-Defiance/mcp-process-sub000/pkg/jsonx"
)

// ResourceLimits mirrors model.ResourceLimits with JSON tags; zero/omitted
// fields mean unbounded.
type ResourceLimits struct {
	MaxCPUPercent   float64 `json:"maxCpuPercent,omitempty"`
	MaxMemoryMB     float64 `json:"maxMemoryMB,omitempty"`
	MaxFileHandles  int     `json:"maxFileHandles,omitempty"`
	MaxCPUTimeSec   int64   `json:"maxCpuTimeSec,omitempty"`
	MaxChildProcess int     `json:"maxChildProcesses,omitempty"`
}

func (r ResourceLimits) ToModel() model.ResourceLimits {
	return model.ResourceLimits{
		MaxCPUPercent:   r.MaxCPUPercent,
		MaxMemoryMB:     r.MaxMemoryMB,
		MaxFileHandles:  r.MaxFileHandles,
		MaxCPUTimeSec:   r.MaxCPUTimeSec,
		MaxChildProcess: r.MaxChildProcess,
	}
}

// SecurityConfig is the supervisor's immutable security and operating
// policy, loaded once at startup (spec §3, §6).
type SecurityConfig struct {
	AllowedExecutables       []string          `json:"allowedExecutables"`
	AdditionalDangerousEnv   []string          `json:"additionalDangerousEnv,omitempty"`
	AllowedEnvVars           []string          `json:"allowedEnvVars,omitempty"`
	AllowedWorkingDirectories []string         `json:"allowedWorkingDirectories,omitempty"`
	BlockedWorkingDirectories []string         `json:"blockedWorkingDirectories,omitempty"`
	BlockShellInterpreters   bool              `json:"blockShellInterpreters"`
	BlockSetuidSetgid        bool              `json:"blockSetuidSetgid"`
	DefaultResourceLimits    ResourceLimits    `json:"defaultResourceLimits"`
	MaxResourceLimits        ResourceLimits    `json:"maxResourceLimits"`
	MaxConcurrentProcesses   int               `json:"maxConcurrentProcesses"`
	MaxProcessLifetimeSec    int64             `json:"maxProcessLifetimeSec,omitempty"`
	MaxLaunchesPerMinute     int               `json:"maxLaunchesPerMinute"`
	MaxLaunchesPerHour       int               `json:"maxLaunchesPerHour,omitempty"`
	AllowGracefulTermination bool              `json:"allowGracefulTermination"`
	AllowForcedTermination   bool              `json:"allowForcedTermination"`
	AllowStdinWrite          bool              `json:"allowStdinWrite"`
	DefaultTimeoutMs         int64             `json:"defaultTimeoutMs,omitempty"`
	EnableAuditLog           bool              `json:"enableAuditLog"`
}

// Default returns the supervisor's built-in defaults. The allowlist is
// intentionally empty: per spec §4.1's construction invariant, an empty
// allowlist must fail validation, forcing every deployment to explicitly
// choose what it permits.
func Default() *SecurityConfig {
	return &SecurityConfig{
		AllowedExecutables:       nil,
		BlockShellInterpreters:   true,
		BlockSetuidSetgid:        true,
		MaxConcurrentProcesses:   10,
		MaxLaunchesPerMinute:     10,
		AllowGracefulTermination: true,
		AllowForcedTermination:  true,
		AllowStdinWrite:         true,
		DefaultTimeoutMs:        5 * 60 * 1000,
		EnableAuditLog:          true,
	}
}

// Load reads and strictly decodes a SecurityConfig JSON document, then
// validates it.
func Load(path string) (*SecurityConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	defer f.Close()

	cfg := Default()
	if err := jsonx.ParseJSONObject(f, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the §4.1 construction invariant (non-empty allowlist),
// that working-directory entries are absolute, that maxConcurrentProcesses
// and maxLaunchesPerMinute are positive, and that any set maxCpuPercent is
// in (0, 100]. The other numeric fields are not range-checked. Every
// violation found is joined (not just the first) so an operator can fix a
// config file in one pass.
func Validate(cfg *SecurityConfig) error {
	var errs []error

	if len(cfg.AllowedExecutables) == 0 {
		errs = append(errs, errors.New("allowedExecutables must not be empty"))
	}
	for _, dir := range cfg.AllowedWorkingDirectories {
		if !filepath.IsAbs(dir) {
			errs = append(errs, fmt.Errorf("allowedWorkingDirectories entry %q must be absolute", dir))
		}
	}
	for _, dir := range cfg.BlockedWorkingDirectories {
		if !filepath.IsAbs(dir) {
			errs = append(errs, fmt.Errorf("blockedWorkingDirectories entry %q must be absolute", dir))
		}
	}
	if cfg.MaxConcurrentProcesses <= 0 {
		errs = append(errs, errors.New("maxConcurrentProcesses must be positive"))
	}
	if cfg.MaxLaunchesPerMinute <= 0 {
		errs = append(errs, errors.New("maxLaunchesPerMinute must be positive"))
	}
	if p := cfg.DefaultResourceLimits.MaxCPUPercent; p != 0 && (p <= 0 || p > 100) {
		errs = append(errs, errors.New("defaultResourceLimits.maxCpuPercent must be in (0, 100]"))
	}
	if p := cfg.MaxResourceLimits.MaxCPUPercent; p != 0 && (p <= 0 || p > 100) {
		errs = append(errs, errors.New("maxResourceLimits.maxCpuPercent must be in (0, 100]"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid security config: %w", errors.Join(errs...))
	}
	return nil
}

// Sample returns a populated, valid SecurityConfig suitable for writing out
// via --create-config.
func Sample() *SecurityConfig {
	cfg := Default()
	cfg.AllowedExecutables = []string{"node", "python3", "/usr/bin/git"}
	cfg.AllowedWorkingDirectories = []string{}
	cfg.DefaultResourceLimits = ResourceLimits{
		MaxCPUPercent: 80,
		MaxMemoryMB:   512,
	}
	cfg.MaxResourceLimits = ResourceLimits{
		MaxCPUPercent: 100,
		MaxMemoryMB:   4096,
	}
	return cfg
}

// WriteSample writes a formatted sample config to path.
func WriteSample(path string) error {
	data, err := json.MarshalIndent(Sample(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ResolvePath implements the CLI config-source priority order from spec §6.
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if env := os.Getenv("MCP_PROCESS_CONFIG_PATH"); env != "" {
		return env
	}
	for _, candidate := range []string{"./mcp-process-config.json", "./config/mcp-process.json"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
