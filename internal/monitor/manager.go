// Package monitor implements the resource sampler from spec §4.4: a 1s
// per-pid periodic sample of cpu%/memory/threads/uptime backed by
// gopsutil/v3, ring-buffered history, and limit-breach termination. gopsutil
// is adopted from the rest of the example pack (grounded on
// Xuanwo-nomad-driver-systemd-nspawn's go.mod, which already depends on it
// for host/process introspection) since the teacher has no resource
// sampler of its own to generalize.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/Digital-Defiance/mcp-process-sub000/internal/errs"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/model"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/osutil"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/proctable"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

const sampleInterval = time.Second

type watch struct {
	pid       uint32
	limits    model.ResourceLimits
	startedAt time.Time
	ring      *statsRing
	cancel    context.CancelFunc
}

// Manager samples resource usage for every pid under active monitoring.
type Manager struct {
	log   *zap.Logger
	table *proctable.Table

	mu      sync.Mutex
	watches map[uint32]*watch
}

func New(log *zap.Logger, table *proctable.Table) *Manager {
	return &Manager{
		log:     log.Named("monitor"),
		table:   table,
		watches: make(map[uint32]*watch),
	}
}

// StartMonitoring begins 1s sampling for pid under the given limits (I3: at
// most one active sampler per pid).
func (m *Manager) StartMonitoring(pid uint32, limits model.ResourceLimits) {
	m.mu.Lock()
	if _, exists := m.watches[pid]; exists {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &watch{pid: pid, limits: limits, startedAt: time.Now(), ring: &statsRing{}, cancel: cancel}
	m.watches[pid] = w
	m.mu.Unlock()

	go m.run(ctx, w)
}

// StopMonitoring cancels pid's sampler, if any.
func (m *Manager) StopMonitoring(pid uint32) {
	m.mu.Lock()
	w, ok := m.watches[pid]
	if ok {
		delete(m.watches, pid)
	}
	m.mu.Unlock()
	if ok {
		w.cancel()
	}
}

func (m *Manager) run(ctx context.Context, w *watch) {
	proc, err := process.NewProcess(int32(w.pid))
	if err != nil {
		m.log.Debug("monitor: process handle unavailable", zap.Uint32("pid", w.pid), zap.Error(err))
		return
	}

	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s, err := sampleProcess(proc, w.startedAt)
			if err != nil {
				m.log.Debug("monitor: sample failed, stopping", zap.Uint32("pid", w.pid), zap.Error(err))
				m.StopMonitoring(w.pid)
				return
			}
			w.ring.append(s)
			m.table.UpdateStats(w.pid, toModelStats(s))

			if code, exceeded := checkLimits(s, w.limits); exceeded {
				m.log.Warn("monitor: resource limit exceeded, terminating",
					zap.Uint32("pid", w.pid), zap.String("code", string(code)))
				_ = osutil.Terminate(w.pid)
				m.StopMonitoring(w.pid)
				return
			}
		}
	}
}

func sampleProcess(proc *process.Process, startedAt time.Time) (sample, error) {
	cpuPct, err := proc.CPUPercent()
	if err != nil {
		return sample{}, err
	}
	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return sample{}, err
	}
	threads, err := proc.NumThreads()
	if err != nil || threads < 1 {
		// Open-question (a): fall back to 1 rather than failing the sample
		// or reporting a zero thread count.
		threads = 1
	}
	var readBytes, writeBytes uint64
	if io, err := proc.IOCounters(); err == nil && io != nil {
		readBytes, writeBytes = io.ReadBytes, io.WriteBytes
	}

	return sample{
		cpuPercent:   cpuPct,
		memoryMB:     float64(memInfo.RSS) / (1024 * 1024),
		threadCount:  int(threads),
		ioBytesRead:  readBytes,
		ioBytesWrite: writeBytes,
		uptimeSec:    time.Since(startedAt).Seconds(),
		sampledAt:    time.Now().UnixNano(),
	}, nil
}

func checkLimits(s sample, limits model.ResourceLimits) (errs.Code, bool) {
	if limits.MaxCPUPercent > 0 && s.cpuPercent > limits.MaxCPUPercent {
		return errs.CpuLimitExceeded, true
	}
	if limits.MaxMemoryMB > 0 && s.memoryMB > limits.MaxMemoryMB {
		return errs.MemoryLimitExceeded, true
	}
	if limits.MaxCPUTimeSec > 0 && s.uptimeSec > float64(limits.MaxCPUTimeSec) {
		return errs.CpuTimeLimitExceeded, true
	}
	return "", false
}

// GetHistory returns a snapshot of pid's ring buffer as ProcessStats.
func (m *Manager) GetHistory(pid uint32) ([]model.ProcessStats, bool) {
	m.mu.Lock()
	w, ok := m.watches[pid]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	samples := w.ring.snapshot()
	out := make([]model.ProcessStats, 0, len(samples))
	for _, s := range samples {
		out = append(out, toModelStats(s))
	}
	return out, true
}

// GetLatest returns pid's most recent sample.
func (m *Manager) GetLatest(pid uint32) (model.ProcessStats, bool) {
	m.mu.Lock()
	w, ok := m.watches[pid]
	m.mu.Unlock()
	if !ok {
		return model.ProcessStats{}, false
	}
	s, ok := w.ring.latest()
	if !ok {
		return model.ProcessStats{}, false
	}
	return toModelStats(s), true
}

func toModelStats(s sample) model.ProcessStats {
	return model.ProcessStats{
		CPUPercent:   s.cpuPercent,
		MemoryMB:     s.memoryMB,
		ThreadCount:  s.threadCount,
		IOBytesRead:  s.ioBytesRead,
		IOBytesWrite: s.ioBytesWrite,
		UptimeSec:    s.uptimeSec,
		SampledAt:    time.Unix(0, s.sampledAt),
	}
}

// ActiveCount returns the number of pids currently under active sampling.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watches)
}

// SystemStats is the coarse host-level snapshot returned by getSystemStats.
type SystemStats struct {
	CPUPercent      float64 `json:"cpuPercent"`
	TotalMemoryMB   float64 `json:"totalMemoryMB"`
	FreeMemoryMB    float64 `json:"freeMemoryMB"`
	ActiveMonitors  int     `json:"activeMonitors"`
}

// GetSystemStats implements spec §4.4's getSystemStats.
func (m *Manager) GetSystemStats() (SystemStats, error) {
	pcts, err := cpu.Percent(0, false)
	if err != nil {
		return SystemStats{}, errs.Wrap(errs.Unknown, "failed to sample host cpu", err)
	}
	var cpuPct float64
	if len(pcts) > 0 {
		cpuPct = pcts[0]
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return SystemStats{}, errs.Wrap(errs.Unknown, "failed to sample host memory", err)
	}
	return SystemStats{
		CPUPercent:     cpuPct,
		TotalMemoryMB:  float64(vm.Total) / (1024 * 1024),
		FreeMemoryMB:   float64(vm.Free) / (1024 * 1024),
		ActiveMonitors: m.ActiveCount(),
	}, nil
}
