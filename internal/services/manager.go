// Package services implements the long-running service wrapper from spec
// §4.8: launch via Spawner, watch for crash/exit, exponential-backoff
// restart, and an independent health-check probe. The watcher's poll loop
// is the same shape as the teacher's superviseProcess restart loop in
// processmgr/process_manager.go, adapted from a fixed restart cooldown to
// the spec's exponential backoff with a retry ceiling.
package services

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/Digital-Defiance/mcp-process-sub000/internal/errs"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/model"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/osutil"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/proctable"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/spawner"
	"go.uber.org/zap"
)

const watchPollInterval = 200 * time.Millisecond

type service struct {
	mu     sync.Mutex
	record model.ManagedService
	cancel context.CancelFunc
}

// Manager owns every ManagedService (spec §4.8).
type Manager struct {
	log     *zap.Logger
	spawner *spawner.Spawner
	table   *proctable.Table

	mu       sync.Mutex
	services map[string]*service
}

func New(sp *spawner.Spawner, table *proctable.Table, log *zap.Logger) *Manager {
	return &Manager{
		log:      log.Named("services"),
		spawner:  sp,
		table:    table,
		services: make(map[string]*service),
	}
}

// StartService implements spec §4.8's startService.
func (m *Manager) StartService(cfg model.ServiceConfig) (model.ManagedService, error) {
	m.mu.Lock()
	if _, exists := m.services[cfg.Name]; exists {
		m.mu.Unlock()
		return model.ManagedService{}, errs.New(errs.ServiceExists, "service name already in use")
	}
	svc := &service{}
	m.services[cfg.Name] = svc
	m.mu.Unlock()

	pid, err := m.spawner.Launch(cfg.Process)
	if err != nil {
		m.mu.Lock()
		delete(m.services, cfg.Name)
		m.mu.Unlock()
		return model.ManagedService{}, err
	}

	svc.mu.Lock()
	svc.record = model.ManagedService{
		Name: cfg.Name, Config: cfg, PID: pid,
		State: model.ServiceRunning, StartTime: time.Now(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	svc.cancel = cancel
	rec := svc.record
	svc.mu.Unlock()

	if cfg.RestartPolicy.Enabled {
		go m.watch(ctx, svc)
	}
	if cfg.HealthCheck != nil {
		go m.healthLoop(ctx, svc)
	}

	return rec, nil
}

// StopService implements spec §4.8's stopService.
func (m *Manager) StopService(name string) error {
	m.mu.Lock()
	svc, ok := m.services[name]
	if ok {
		delete(m.services, name)
	}
	m.mu.Unlock()
	if !ok {
		return errs.New(errs.ServiceNotFound, "no such service")
	}

	svc.cancel()
	svc.mu.Lock()
	pid := svc.record.PID
	svc.record.State = model.ServiceStopped
	svc.mu.Unlock()

	_ = osutil.TerminateGroup(pid)
	return nil
}

func (m *Manager) Get(name string) (model.ManagedService, bool) {
	m.mu.Lock()
	svc, ok := m.services[name]
	m.mu.Unlock()
	if !ok {
		return model.ManagedService{}, false
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.record, true
}

// watch polls the underlying process for a terminal state and drives the
// restart cycle described in spec §4.8.
func (m *Manager) watch(ctx context.Context, svc *service) {
	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.mu.Lock()
			pid := svc.record.PID
			state := svc.record.State
			svc.mu.Unlock()
			if state != model.ServiceRunning && state != model.ServiceUnhealthy {
				continue
			}

			// The spawner unregisters a pid once it has exited, so a pid
			// missing from the table counts as exited.
			proc, ok := m.table.Get(pid)
			if ok && !proc.State.Terminal() {
				continue
			}

			if !m.maybeRestart(ctx, svc) {
				return
			}
		}
	}
}

// maybeRestart applies the restart policy after a crash/exit. It returns
// false when the service has reached a terminal crashed state and the
// watcher should stop.
func (m *Manager) maybeRestart(ctx context.Context, svc *service) bool {
	svc.mu.Lock()
	policy := svc.record.Config.RestartPolicy
	restartCount := svc.record.RestartCount
	name := svc.record.Name
	svc.mu.Unlock()

	if policy.MaxRetries != 0 && restartCount >= policy.MaxRetries {
		svc.mu.Lock()
		svc.record.State = model.ServiceCrashed
		svc.mu.Unlock()
		return false
	}

	svc.mu.Lock()
	svc.record.State = model.ServiceRestarting
	cfg := svc.record.Config
	svc.mu.Unlock()

	delay := backoffMs(policy.BaseBackoffMs, restartCount)
	select {
	case <-ctx.Done():
		return false
	case <-time.After(time.Duration(delay) * time.Millisecond):
	}

	pid, err := m.spawner.Launch(cfg.Process)
	if err != nil {
		m.log.Warn("service restart failed", zap.String("service", name), zap.Error(err))
		svc.mu.Lock()
		svc.record.State = model.ServiceCrashed
		svc.mu.Unlock()
		return false
	}

	svc.mu.Lock()
	svc.record.PID = pid
	svc.record.State = model.ServiceRunning
	svc.record.RestartCount++
	svc.mu.Unlock()
	return true
}

// healthLoop runs the independent health-check probe from spec §4.8. It
// spawns the probe command directly via os/exec, bypassing the six-layer
// gate as specified, since the probe command is operator-configured
// alongside the service rather than agent-supplied at call time.
func (m *Manager) healthLoop(ctx context.Context, svc *service) {
	svc.mu.Lock()
	hc := svc.record.Config.HealthCheck
	svc.mu.Unlock()
	if hc == nil {
		return
	}
	interval := time.Duration(hc.IntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runHealthProbe(ctx, svc, hc)
		}
	}
}

func (m *Manager) runHealthProbe(parent context.Context, svc *service, hc *model.HealthCheckConfig) {
	timeout := time.Duration(hc.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, hc.Command, hc.Args...)
	err := cmd.Run()

	svc.mu.Lock()
	svc.record.LastHealthCheck = time.Now()
	wasRunning := svc.record.State == model.ServiceRunning
	restartEnabled := svc.record.Config.RestartPolicy.Enabled
	pid := svc.record.PID
	name := svc.record.Name
	if err != nil && wasRunning {
		svc.record.State = model.ServiceUnhealthy
	} else if err == nil && svc.record.State == model.ServiceUnhealthy {
		svc.record.State = model.ServiceRunning
	}
	svc.mu.Unlock()

	if err != nil {
		m.log.Warn("health check failed", zap.String("service", name), zap.Error(err))
		if wasRunning && restartEnabled {
			_ = osutil.TerminateGroup(pid)
		}
	}
}
