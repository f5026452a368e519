package policy

import (
	"fmt"
	"strings"

	"github.com/Digital-Defiance/mcp-process-sub000/internal/errs"
	"go.uber.org/zap"
)

const (
	maxEnvValueLen   = 4096
	maxEnvTotalBytes = 65536
)

// SanitizeEnvironment implements spec §4.1's sanitizeEnvironment: strip
// hardcoded and configured dangerous keys, enforce an allowlist when one is
// configured, scan remaining values for injection substrings, and cap both
// per-value and aggregate size.
func (m *Manager) SanitizeEnvironment(env map[string]string) (map[string]string, error) {
	allow := make(map[string]struct{}, len(m.cfg.AllowedEnvVars))
	for _, k := range m.cfg.AllowedEnvVars {
		allow[k] = struct{}{}
	}
	additional := make(map[string]struct{}, len(m.cfg.AdditionalDangerousEnv))
	for _, k := range m.cfg.AdditionalDangerousEnv {
		additional[k] = struct{}{}
	}

	clean := make(map[string]string, len(env))
	var total int
	for k, v := range env {
		if isHardcodedDangerousEnv(k) {
			continue
		}
		if _, blocked := additional[k]; blocked {
			continue
		}
		if len(allow) > 0 {
			if _, ok := allow[k]; !ok {
				m.AuditSecurityViolation("EnvVarBlocked", zap.String("key", k))
				return nil, errs.New(errs.EnvVarBlocked, fmt.Sprintf("env var %q is not in the allowlist", k))
			}
		}
		for _, s := range envInjectionSubstrings {
			if strings.Contains(v, s) {
				m.AuditSecurityViolation("EnvVarInjection", zap.String("key", k))
				return nil, errs.New(errs.EnvVarInjection, fmt.Sprintf("env var %q rejected by security scan", k))
			}
		}
		if len(v) > maxEnvValueLen {
			m.AuditSecurityViolation("EnvVarTooLong", zap.String("key", k))
			return nil, errs.New(errs.EnvVarTooLong, fmt.Sprintf("env var %q exceeds %d bytes", k, maxEnvValueLen))
		}
		total += len(k) + len(v)
		if total > maxEnvTotalBytes {
			m.AuditSecurityViolation("EnvSizeExceeded", zap.Int("totalBytes", total))
			return nil, errs.New(errs.EnvSizeExceeded, fmt.Sprintf("environment exceeds %d bytes", maxEnvTotalBytes))
		}
		clean[k] = v
	}
	return clean, nil
}
