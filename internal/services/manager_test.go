package services

import (
	"context"
	"testing"
	"time"

	"github.com/Digital-Defiance/mcp-process-sub000/internal/config"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/errs"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/iomgr"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/model"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/monitor"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/policy"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/proctable"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/spawner"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/timeouts"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T, allowed ...string) *Manager {
	t.Helper()
	cfg := config.Default()
	cfg.AllowedExecutables = allowed
	pol, err := policy.New(cfg, zap.NewNop(), zap.NewNop())
	if err != nil {
		t.Fatalf("policy.New() error = %v", err)
	}
	table := proctable.New(pol, zap.NewNop())
	mon := monitor.New(zap.NewNop(), table)
	io := iomgr.New(zap.NewNop())
	to := timeouts.New(zap.NewNop(), 60_000)
	go to.Run(context.Background())
	sp := spawner.New(pol, table, mon, to, io, zap.NewNop())
	return New(sp, table, zap.NewNop())
}

func TestStartServiceRejectsDuplicateName(t *testing.T) {
	m := newTestManager(t, "/bin/sleep")
	cfg := model.ServiceConfig{Name: "svc-a", Process: model.ProcessConfig{Executable: "/bin/sleep", Args: []string{"5"}}}

	if _, err := m.StartService(cfg); err != nil {
		t.Fatalf("first StartService() error = %v", err)
	}
	defer m.StopService("svc-a")

	_, err := m.StartService(cfg)
	se, ok := errs.As(err)
	if !ok || se.Code != errs.ServiceExists {
		t.Fatalf("err = %v, want ServiceExists", err)
	}
}

func TestStopServiceUnknownName(t *testing.T) {
	m := newTestManager(t, "/bin/sleep")
	if err := m.StopService("missing"); err == nil {
		t.Fatal("expected error stopping an unknown service")
	}
}

func TestStartServiceRejectsDisallowedExecutable(t *testing.T) {
	m := newTestManager(t, "/bin/sleep")
	_, err := m.StartService(model.ServiceConfig{
		Name:    "svc-b",
		Process: model.ProcessConfig{Executable: "/bin/not-allowed"},
	})
	if err == nil {
		t.Fatal("expected disallowed executable to fail StartService")
	}
	if _, ok := m.Get("svc-b"); ok {
		t.Fatal("a failed StartService should not leave a registry entry behind")
	}
}

func TestBackoffGuardsRestartCycle(t *testing.T) {
	m := newTestManager(t, "/bin/true")
	cfg := model.ServiceConfig{
		Name:    "svc-restart",
		Process: model.ProcessConfig{Executable: "/bin/true"},
		RestartPolicy: model.RestartPolicy{
			Enabled: true, MaxRetries: 1, BaseBackoffMs: 10,
		},
	}
	if _, err := m.StartService(cfg); err != nil {
		t.Fatalf("StartService() error = %v", err)
	}
	defer m.StopService("svc-restart")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		svc, ok := m.Get("svc-restart")
		if ok && svc.State == model.ServiceCrashed {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("service exhausting its restart budget should end up crashed")
}
