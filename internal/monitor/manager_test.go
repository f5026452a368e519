package monitor

import (
	"testing"

	"github.com/Digital-Defiance/mcp-process-sub000/internal/config"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/errs"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/model"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/policy"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/proctable"
	"go.uber.org/zap"
)

func newTestTable(t *testing.T) *proctable.Table {
	t.Helper()
	cfg := config.Default()
	cfg.AllowedExecutables = []string{"/bin/true"}
	pol, err := policy.New(cfg, zap.NewNop(), zap.NewNop())
	if err != nil {
		t.Fatalf("policy.New() error = %v", err)
	}
	return proctable.New(pol, zap.NewNop())
}

func TestCheckLimitsCPU(t *testing.T) {
	code, exceeded := checkLimits(sample{cpuPercent: 95}, model.ResourceLimits{MaxCPUPercent: 90})
	if !exceeded || code != errs.CpuLimitExceeded {
		t.Fatalf("checkLimits() = %v, %v; want CpuLimitExceeded", code, exceeded)
	}
}

func TestCheckLimitsMemory(t *testing.T) {
	code, exceeded := checkLimits(sample{memoryMB: 600}, model.ResourceLimits{MaxMemoryMB: 512})
	if !exceeded || code != errs.MemoryLimitExceeded {
		t.Fatalf("checkLimits() = %v, %v; want MemoryLimitExceeded", code, exceeded)
	}
}

func TestCheckLimitsUptimeAsCpuTimeCap(t *testing.T) {
	code, exceeded := checkLimits(sample{uptimeSec: 120}, model.ResourceLimits{MaxCPUTimeSec: 60})
	if !exceeded || code != errs.CpuTimeLimitExceeded {
		t.Fatalf("checkLimits() = %v, %v; want CpuTimeLimitExceeded", code, exceeded)
	}
}

func TestCheckLimitsWithinBounds(t *testing.T) {
	_, exceeded := checkLimits(sample{cpuPercent: 10, memoryMB: 10, uptimeSec: 1}, model.ResourceLimits{
		MaxCPUPercent: 90, MaxMemoryMB: 512, MaxCPUTimeSec: 60,
	})
	if exceeded {
		t.Fatal("sample within every limit should not be flagged")
	}
}

func TestCheckLimitsZeroMeansUnbounded(t *testing.T) {
	_, exceeded := checkLimits(sample{cpuPercent: 9999}, model.ResourceLimits{})
	if exceeded {
		t.Fatal("a zero-value limit must mean unbounded, not zero-tolerance")
	}
}

func TestStartMonitoringIsIdempotentPerPid(t *testing.T) {
	m := New(zap.NewNop(), newTestTable(t))
	m.StartMonitoring(1, model.ResourceLimits{})
	m.StartMonitoring(1, model.ResourceLimits{MaxCPUPercent: 1})
	if m.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1 (I3: at most one sampler per pid)", m.ActiveCount())
	}
	m.StopMonitoring(1)
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d, want 0 after StopMonitoring", m.ActiveCount())
	}
	// idempotent stop
	m.StopMonitoring(1)
}

func TestGetLatestUnknownPid(t *testing.T) {
	m := New(zap.NewNop(), newTestTable(t))
	if _, ok := m.GetLatest(123); ok {
		t.Fatal("expected no stats for an unmonitored pid")
	}
}
