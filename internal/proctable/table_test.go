package proctable

import (
	"os/exec"
	"testing"

	"github.com/Digital-Defiance/mcp-process-sub000/internal/config"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/model"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/policy"
	"go.uber.org/zap"
)

func newTestTable(t *testing.T) (*Table, *policy.Manager) {
	t.Helper()
	cfg := config.Default()
	cfg.AllowedExecutables = []string{"/bin/echo"}
	pol, err := policy.New(cfg, zap.NewNop(), zap.NewNop())
	if err != nil {
		t.Fatalf("policy.New() error = %v", err)
	}
	return New(pol, zap.NewNop()), pol
}

func TestRegisterAddsToPolicyManagedSet(t *testing.T) {
	table, pol := newTestTable(t)
	mp := &model.ManagedProcess{PID: 10, State: model.StateRunning}
	table.Register(mp, &exec.Cmd{})

	if !pol.IsManaged(10) {
		t.Fatal("Register should add the pid to the policy managed set (I1)")
	}
	got, ok := table.Get(10)
	if !ok || got.PID != 10 {
		t.Fatalf("Get(10) = %v, %v", got, ok)
	}
}

func TestUnregisterRemovesFromPolicyManagedSet(t *testing.T) {
	table, pol := newTestTable(t)
	table.Register(&model.ManagedProcess{PID: 11, State: model.StateRunning}, &exec.Cmd{})
	table.Unregister(11)

	if pol.IsManaged(11) {
		t.Fatal("Unregister should remove the pid from the policy managed set (I1)")
	}
	if _, ok := table.Get(11); ok {
		t.Fatal("Get should not find an unregistered pid")
	}
	// idempotent
	table.Unregister(11)
}

func TestUpdateStateIsMonotoneOnceTerminal(t *testing.T) {
	table, _ := newTestTable(t)
	table.Register(&model.ManagedProcess{PID: 12, State: model.StateRunning}, &exec.Cmd{})

	exitCode := int32(0)
	table.UpdateState(12, model.StateStopped, &exitCode)
	proc, _ := table.Get(12)
	if proc.State != model.StateStopped {
		t.Fatalf("state = %v, want stopped", proc.State)
	}

	otherCode := int32(1)
	table.UpdateState(12, model.StateCrashed, &otherCode)
	proc, _ = table.Get(12)
	if proc.State != model.StateStopped {
		t.Fatalf("state = %v, want to remain stopped (I4: no transition out of terminal)", proc.State)
	}
}

func TestGroupLifecycle(t *testing.T) {
	table, _ := newTestTable(t)
	table.Register(&model.ManagedProcess{PID: 20, State: model.StateRunning}, &exec.Cmd{})
	table.Register(&model.ManagedProcess{PID: 21, State: model.StateRunning}, &exec.Cmd{})

	g := table.CreateGroup("pipeline-a", true)
	if err := table.AddToGroup(g.ID, 20); err != nil {
		t.Fatalf("AddToGroup(20) error = %v", err)
	}
	if err := table.AddToGroup(g.ID, 21); err != nil {
		t.Fatalf("AddToGroup(21) error = %v", err)
	}
	if err := table.AddToGroup(g.ID, 20); err == nil {
		t.Fatal("expected error adding a pid already in a group")
	}

	got, ok := table.GetGroup(g.ID)
	if !ok || len(got.Processes) != 2 {
		t.Fatalf("GetGroup() = %v, %v; want 2 members", got, ok)
	}

	table.Unregister(20)
	got, _ = table.GetGroup(g.ID)
	if len(got.Processes) != 1 || got.Processes[0] != 21 {
		t.Fatalf("after unregistering 20, group members = %v", got.Processes)
	}
}

func TestAddToGroupUnknownGroupOrPid(t *testing.T) {
	table, _ := newTestTable(t)
	if err := table.AddToGroup("missing", 1); err == nil {
		t.Fatal("expected GroupNotFound error")
	}
	g := table.CreateGroup("g", false)
	if err := table.AddToGroup(g.ID, 999); err == nil {
		t.Fatal("expected ProcessNotFound error for unregistered pid")
	}
}
