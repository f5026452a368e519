// Package policy implements the Security Manager: the six-layer validation
// pipeline, environment sanitization, rate limiting, and the managed-pid
// registry used to gate signals (spec §4.1). It is the sole authority
// deciding whether a launch, termination, or signal is permitted.
package policy

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Digital-Defiance/mcp-process-sub000/internal/config"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/errs"
	"go.uber.org/zap"
)

// Manager is the supervisor's security gate. One Manager is constructed per
// supervisor instance and shared by every component that needs to validate
// or audit an operation.
type Manager struct {
	cfg    *config.SecurityConfig
	logger *zap.Logger
	audit  *zap.Logger

	mu          sync.Mutex
	managedPIDs map[uint32]struct{}

	rateMu   sync.Mutex
	launches map[string][]time.Time // agentID -> launch timestamps within the window
}

// New validates cfg (construction invariant: an empty allowlist is
// rejected) and returns a ready Manager.
func New(cfg *config.SecurityConfig, logger, audit *zap.Logger) (*Manager, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:         cfg,
		logger:      logger.Named("policy"),
		audit:       audit,
		managedPIDs: make(map[uint32]struct{}),
		launches:    make(map[string][]time.Time),
	}, nil
}

// Config returns the immutable security configuration.
func (m *Manager) Config() *config.SecurityConfig {
	return m.cfg
}

// resolved holds the outcome of step 1 (resolve).
type resolved struct {
	path     string
	basename string
}

// ValidateExecutable runs the six-layer pipeline from spec §4.1 in order,
// returning the first violation encountered.
func (m *Manager) ValidateExecutable(executable string, args []string) (resolvedPath string, err error) {
	r, err := m.resolve(executable)
	if err != nil {
		m.AuditSecurityViolation("ExecutableNotFound", zap.String("executable", executable))
		return "", errs.Wrap(errs.ExecutableNotFound, fmt.Sprintf("cannot resolve executable %q", executable), err)
	}

	if isDangerousExecutable(r.basename) {
		m.AuditSecurityViolation("DangerousExecutable", zap.String("executable", r.basename))
		return "", errs.New(errs.DangerousExecutable, fmt.Sprintf("%q is always blocked", r.basename))
	}

	if m.cfg.BlockShellInterpreters && isShellInterpreter(r.basename) {
		m.AuditSecurityViolation("ShellBlocked", zap.String("executable", r.basename))
		return "", errs.New(errs.ShellBlocked, fmt.Sprintf("shell interpreter %q is blocked", r.basename))
	}

	if m.cfg.BlockSetuidSetgid {
		setuid, err := hasSetuidOrSetgid(r.path)
		if err != nil {
			m.logger.Warn("setuid/setgid probe failed", zap.String("path", r.path), zap.Error(err))
		} else if setuid {
			m.AuditSecurityViolation("SetuidBlocked", zap.String("executable", r.path))
			return "", errs.New(errs.SetuidBlocked, fmt.Sprintf("%q has the setuid/setgid bit set", r.path))
		}
	}

	if !m.matchesAllowlist(r) {
		m.AuditSecurityViolation("NotInAllowlist", zap.String("executable", r.path))
		return "", errs.New(errs.NotInAllowlist, fmt.Sprintf("%q is not in the executable allowlist", r.path))
	}

	for _, arg := range args {
		if code, bad := scanArgument(arg); bad {
			m.AuditSecurityViolation(string(code), zap.String("argument", arg))
			return "", errs.New(code, fmt.Sprintf("argument %q rejected by security scan", arg))
		}
	}

	m.AuditOperation("validateExecutable", r.path, 0, "allowed")
	return r.path, nil
}

// resolve performs a PATH-equivalent lookup (spec §4.1 layer 1).
func (m *Manager) resolve(executable string) (resolved, error) {
	path, err := exec.LookPath(executable)
	if err != nil {
		return resolved{}, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return resolved{path: abs, basename: filepath.Base(abs)}, nil
}

// matchesAllowlist implements spec §4.1 layer 5: exact match against the
// resolved path or basename, or a glob match (entries containing "*") tried
// against both.
func (m *Manager) matchesAllowlist(r resolved) bool {
	for _, entry := range m.cfg.AllowedExecutables {
		if strings.Contains(entry, "*") {
			if ok, _ := filepath.Match(entry, r.path); ok {
				return true
			}
			if ok, _ := filepath.Match(entry, r.basename); ok {
				return true
			}
			continue
		}
		if entry == r.path || entry == r.basename {
			return true
		}
	}
	return false
}

// scanArgument implements spec §4.1 layer 6.
func scanArgument(arg string) (errs.Code, bool) {
	for _, s := range argInjectionSubstrings {
		if strings.Contains(arg, s) {
			return errs.ArgumentInjection, true
		}
	}
	for _, s := range pathTraversalSubstrings {
		if strings.Contains(arg, s) {
			return errs.ArgumentTraversal, true
		}
	}
	return "", false
}

// ValidateWorkingDirectory implements spec §4.1's validateWorkingDirectory.
func (m *Manager) ValidateWorkingDirectory(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errs.Wrap(errs.WorkingDirectoryRestricted, "cannot resolve working directory", err)
	}
	for _, blocked := range m.cfg.BlockedWorkingDirectories {
		if abs == blocked || isDescendant(abs, blocked) {
			m.AuditSecurityViolation("WorkingDirectoryRestricted", zap.String("cwd", abs))
			return errs.New(errs.WorkingDirectoryRestricted, fmt.Sprintf("%q is a blocked working directory", abs))
		}
	}
	if len(m.cfg.AllowedWorkingDirectories) == 0 {
		return nil
	}
	for _, allowed := range m.cfg.AllowedWorkingDirectories {
		if abs == allowed || isDescendant(abs, allowed) {
			return nil
		}
	}
	m.AuditSecurityViolation("WorkingDirectoryRestricted", zap.String("cwd", abs))
	return errs.New(errs.WorkingDirectoryRestricted, fmt.Sprintf("%q is not an allowed working directory", abs))
}

func isDescendant(path, ancestor string) bool {
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, strings.TrimSuffix(ancestor, sep)+sep)
}

// CheckConcurrentLimit implements spec §4.1's checkConcurrentLimit.
func (m *Manager) CheckConcurrentLimit() error {
	m.mu.Lock()
	n := len(m.managedPIDs)
	m.mu.Unlock()
	if n >= m.cfg.MaxConcurrentProcesses {
		return errs.New(errs.ConcurrentLimitExceeded, fmt.Sprintf("concurrent process limit %d reached", m.cfg.MaxConcurrentProcesses))
	}
	return nil
}

// CheckLaunchRateLimit implements spec §4.1's checkLaunchRateLimit: a
// per-agent rolling 60s window.
func (m *Manager) CheckLaunchRateLimit(agentID string) error {
	now := time.Now()
	window := now.Add(-60 * time.Second)

	m.rateMu.Lock()
	defer m.rateMu.Unlock()

	stamps := m.launches[agentID]
	kept := stamps[:0]
	for _, t := range stamps {
		if t.After(window) {
			kept = append(kept, t)
		}
	}
	limit := m.cfg.MaxLaunchesPerMinute
	if limit <= 0 {
		limit = 10
	}
	if len(kept) >= limit {
		m.launches[agentID] = kept
		return errs.New(errs.RateLimitExceeded, fmt.Sprintf("launch rate limit %d/min exceeded for agent %q", limit, agentID))
	}
	m.launches[agentID] = append(kept, now)
	return nil
}

// ValidateSignalTarget implements spec §4.1's validateSignalTarget and is
// the sole enforcement point for invariant I2.
func (m *Manager) ValidateSignalTarget(pid uint32) error {
	m.mu.Lock()
	_, ok := m.managedPIDs[pid]
	m.mu.Unlock()
	if !ok {
		return errs.New(errs.SignalToUnmanaged, fmt.Sprintf("pid %d is not managed by this supervisor", pid))
	}
	return nil
}

// AddManaged and RemoveManaged maintain the managed-pid set used for I1/I2.
// They are called by the process table under its own critical section so
// both maps update atomically with respect to observers (spec §5).
func (m *Manager) AddManaged(pid uint32) {
	m.mu.Lock()
	m.managedPIDs[pid] = struct{}{}
	m.mu.Unlock()
}

func (m *Manager) RemoveManaged(pid uint32) {
	m.mu.Lock()
	delete(m.managedPIDs, pid)
	m.mu.Unlock()
}

func (m *Manager) ManagedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.managedPIDs)
}

func (m *Manager) IsManaged(pid uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.managedPIDs[pid]
	return ok
}
