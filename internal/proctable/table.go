// Package proctable holds the supervisor's sole canonical pid → process
// mapping (spec §4.3). Register and Unregister are the only places that
// touch the Policy managed-pid set, under the same critical section as the
// table mutation, so invariant I1 holds by construction — the same
// technique the teacher uses to guard ProcessManager.processes with one
// mutex per logical unit of state.
package proctable

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/Digital-Defiance/mcp-process-sub000/internal/errs"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/model"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/osutil"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/policy"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type entry struct {
	process *model.ManagedProcess
	cmd     *exec.Cmd
}

// Table is the canonical process + group registry.
type Table struct {
	log    *zap.Logger
	policy *policy.Manager

	mu         sync.Mutex
	processes  map[uint32]*entry
	groups     map[string]*model.ProcessGroup
	pidToGroup map[uint32]string

	reaperCancel context.CancelFunc
}

func New(pol *policy.Manager, log *zap.Logger) *Table {
	return &Table{
		log:        log.Named("proctable"),
		policy:     pol,
		processes:  make(map[uint32]*entry),
		groups:     make(map[string]*model.ProcessGroup),
		pidToGroup: make(map[uint32]string),
	}
}

// Register adds a newly spawned process to the table and the Policy
// managed-pid set as one atomic step (I1).
func (t *Table) Register(mp *model.ManagedProcess, cmd *exec.Cmd) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processes[mp.PID] = &entry{process: mp, cmd: cmd}
	t.policy.AddManaged(mp.PID)
}

// Unregister removes pid from the table, its group, and the Policy
// managed-pid set atomically (I1). It is a no-op if pid is unknown.
func (t *Table) Unregister(pid uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.processes[pid]; !ok {
		return
	}
	delete(t.processes, pid)
	if gid, ok := t.pidToGroup[pid]; ok {
		t.removeFromGroupLocked(gid, pid)
		delete(t.pidToGroup, pid)
	}
	t.policy.RemoveManaged(pid)
}

func (t *Table) Get(pid uint32) (*model.ManagedProcess, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.processes[pid]
	if !ok {
		return nil, false
	}
	cp := *e.process
	return &cp, true
}

func (t *Table) GetCmd(pid uint32) (*exec.Cmd, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.processes[pid]
	if !ok {
		return nil, false
	}
	return e.cmd, true
}

func (t *Table) GetAll() []*model.ManagedProcess {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*model.ManagedProcess, 0, len(t.processes))
	for _, e := range t.processes {
		cp := *e.process
		out = append(out, &cp)
	}
	return out
}

func (t *Table) GetRunningCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.processes {
		if e.process.State == model.StateRunning {
			n++
		}
	}
	return n
}

// UpdateState applies an I4-monotone state transition. Transitions out of a
// terminal state are rejected silently (a no-op), matching the "no
// transition leaves a terminal state" invariant.
func (t *Table) UpdateState(pid uint32, state model.State, exitCode *int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.processes[pid]
	if !ok || e.process.State.Terminal() {
		return
	}
	e.process.State = state
	e.process.ExitCode = exitCode
}

func (t *Table) UpdateStats(pid uint32, stats model.ProcessStats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.processes[pid]; ok {
		e.process.Stats = stats
	}
}

// CreateGroup implements processCreateGroup (spec §4.9).
func (t *Table) CreateGroup(name string, pipeline bool) *model.ProcessGroup {
	t.mu.Lock()
	defer t.mu.Unlock()
	g := &model.ProcessGroup{
		ID:       uuid.NewString(),
		Name:     name,
		Pipeline: pipeline,
	}
	t.groups[g.ID] = g
	return g
}

// AddToGroup implements processAddToGroup. A pid may belong to at most one
// group (spec §3).
func (t *Table) AddToGroup(groupID string, pid uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.groups[groupID]
	if !ok {
		return errs.New(errs.GroupNotFound, "no such group")
	}
	if _, ok := t.processes[pid]; !ok {
		return errs.New(errs.ProcessNotFound, "pid not registered")
	}
	if existing, ok := t.pidToGroup[pid]; ok {
		return errs.New(errs.SecurityViolation, fmt.Sprintf("pid %d already belongs to group %s", pid, existing))
	}
	g.Processes = append(g.Processes, pid)
	t.pidToGroup[pid] = groupID
	return nil
}

// ConnectPipeline records a stdout→stdin edge within a pipeline group.
func (t *Table) ConnectPipeline(groupID string, sourcePID, targetPID uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.groups[groupID]
	if !ok {
		return errs.New(errs.GroupNotFound, "no such group")
	}
	g.Edges = append(g.Edges, model.PipelineEdge{SourcePID: sourcePID, TargetPID: targetPID, Connected: true})
	return nil
}

func (t *Table) GetGroup(groupID string) (*model.ProcessGroup, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.groups[groupID]
	if !ok {
		return nil, false
	}
	cp := *g
	return &cp, true
}

func (t *Table) removeFromGroupLocked(groupID string, pid uint32) {
	g, ok := t.groups[groupID]
	if !ok {
		return
	}
	for i, p := range g.Processes {
		if p == pid {
			g.Processes = append(g.Processes[:i], g.Processes[i+1:]...)
			break
		}
	}
}

// StartReaper launches the 5-second zombie-reap sweep described in spec
// §4.3. It runs until ctx is cancelled.
func (t *Table) StartReaper(ctx context.Context) {
	rctx, cancel := context.WithCancel(ctx)
	t.reaperCancel = cancel
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-rctx.Done():
				return
			case <-ticker.C:
				t.reapOnce()
			}
		}
	}()
}

// StopReaper tears down the reaper goroutine at supervisor shutdown.
func (t *Table) StopReaper() {
	if t.reaperCancel != nil {
		t.reaperCancel()
	}
}

func (t *Table) reapOnce() {
	t.mu.Lock()
	pids := make([]uint32, 0, len(t.processes))
	for pid, e := range t.processes {
		if e.process.State == model.StateRunning {
			pids = append(pids, pid)
		}
	}
	t.mu.Unlock()

	reaped := 0
	for _, pid := range pids {
		alive, err := osutil.Alive(pid)
		if err != nil {
			t.log.Debug("zombie reaper probe error", zap.Uint32("pid", pid), zap.Error(err))
			continue
		}
		if !alive {
			exitCode := int32(-1)
			t.UpdateState(pid, model.StateCrashed, &exitCode)
			reaped++
		}
	}
	if reaped > 0 {
		t.log.Info("zombie reaper swept dead pids", zap.Int("count", reaped))
	}
}
