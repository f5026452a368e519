package policy

import (
	"testing"

	"github.com/Digital-Defiance/mcp-process-sub000/internal/config"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/model"
)

func TestResolveResourceLimitsAppliesDefaultsWhenOmitted(t *testing.T) {
	m := testManager(t, func(c *config.SecurityConfig) {
		c.DefaultResourceLimits = config.ResourceLimits{MaxCPUPercent: 50, MaxMemoryMB: 256}
	})
	got := m.ResolveResourceLimits(model.ResourceLimits{})
	if got.MaxCPUPercent != 50 || got.MaxMemoryMB != 256 {
		t.Fatalf("got = %+v, want defaults applied", got)
	}
}

func TestResolveResourceLimitsKeepsRequestedWithinCeiling(t *testing.T) {
	m := testManager(t, func(c *config.SecurityConfig) {
		c.MaxResourceLimits = config.ResourceLimits{MaxCPUPercent: 90}
	})
	got := m.ResolveResourceLimits(model.ResourceLimits{MaxCPUPercent: 70})
	if got.MaxCPUPercent != 70 {
		t.Fatalf("MaxCPUPercent = %v, want 70 (under ceiling, unchanged)", got.MaxCPUPercent)
	}
}

func TestResolveResourceLimitsClampsRequestedAboveCeiling(t *testing.T) {
	m := testManager(t, func(c *config.SecurityConfig) {
		c.MaxResourceLimits = config.ResourceLimits{MaxCPUPercent: 90, MaxMemoryMB: 1024}
	})
	got := m.ResolveResourceLimits(model.ResourceLimits{MaxCPUPercent: 99, MaxMemoryMB: 2048})
	if got.MaxCPUPercent != 90 {
		t.Fatalf("MaxCPUPercent = %v, want clamped to 90", got.MaxCPUPercent)
	}
	if got.MaxMemoryMB != 1024 {
		t.Fatalf("MaxMemoryMB = %v, want clamped to 1024", got.MaxMemoryMB)
	}
}

func TestResolveResourceLimitsClampsDefaultAboveCeiling(t *testing.T) {
	m := testManager(t, func(c *config.SecurityConfig) {
		c.DefaultResourceLimits = config.ResourceLimits{MaxCPUPercent: 95}
		c.MaxResourceLimits = config.ResourceLimits{MaxCPUPercent: 80}
	})
	got := m.ResolveResourceLimits(model.ResourceLimits{})
	if got.MaxCPUPercent != 80 {
		t.Fatalf("MaxCPUPercent = %v, want the configured default clamped to the ceiling", got.MaxCPUPercent)
	}
}

func TestResolveResourceLimitsZeroCeilingMeansUnbounded(t *testing.T) {
	m := testManager(t, nil)
	got := m.ResolveResourceLimits(model.ResourceLimits{MaxCPUPercent: 99999})
	if got.MaxCPUPercent != 99999 {
		t.Fatalf("MaxCPUPercent = %v, want unchanged when no ceiling is configured", got.MaxCPUPercent)
	}
}
