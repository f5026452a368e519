// Package terminator implements graceful→forced termination escalation and
// group fan-out (spec §4.6). The SIGTERM-then-poll-then-SIGKILL sequence is
// the same shape as the teacher's superviseProcess shutdown branch in
// process_manager.go, rewritten around an existence-probe poll loop instead
// of blocking on a single process's Wait() channel, since the Terminator
// here must support polling pids it did not itself spawn.
package terminator

import (
	"context"
	"time"

	"github.com/Digital-Defiance/mcp-process-sub000/internal/errs"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/model"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/osutil"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/policy"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/proctable"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const pollInterval = 100 * time.Millisecond

// Result mirrors the {pid, exitCode, reason, success} response shape from
// spec §4.6.
type Result struct {
	PID      uint32 `json:"pid"`
	ExitCode *int32 `json:"exitCode,omitempty"`
	Reason   string `json:"reason"`
	Success  bool   `json:"success"`
}

type Terminator struct {
	log    *zap.Logger
	policy *policy.Manager
	table  *proctable.Table
}

func New(pol *policy.Manager, table *proctable.Table, log *zap.Logger) *Terminator {
	return &Terminator{log: log.Named("terminator"), policy: pol, table: table}
}

// TerminateGracefully implements spec §4.6's terminateGracefully.
func (t *Terminator) TerminateGracefully(pid uint32, timeoutMs int64) (Result, error) {
	if err := t.policy.ValidateSignalTarget(pid); err != nil {
		return Result{}, err
	}
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}

	if proc, ok := t.table.Get(pid); ok && proc.State.Terminal() {
		t.policy.AuditOperation("terminateGracefully", "", pid, "already-terminal")
		return Result{PID: pid, ExitCode: proc.ExitCode, Reason: "graceful", Success: true}, nil
	}

	if err := osutil.TerminateGroup(pid); err != nil {
		if err2 := osutil.Terminate(pid); err2 != nil {
			return Result{}, errs.Wrap(errs.TerminationFailed, "SIGTERM failed", err2)
		}
	}

	if gone := t.pollUntilGone(pid, time.Duration(timeoutMs)*time.Millisecond); gone {
		t.finalize(pid, model.StateStopped)
		t.policy.AuditOperation("terminateGracefully", "", pid, "graceful")
		return Result{PID: pid, Reason: "graceful", Success: true}, nil
	}

	if err := osutil.KillGroup(pid); err != nil {
		_ = osutil.Kill(pid)
	}
	gone := t.pollUntilGone(pid, time.Second)
	t.finalize(pid, model.StateCrashed)
	t.policy.AuditOperation("terminateGracefully", "", pid, "timeout")
	return Result{PID: pid, Reason: "timeout", Success: gone}, nil
}

// TerminateForcefully implements spec §4.6's terminateForcefully.
func (t *Terminator) TerminateForcefully(pid uint32) (Result, error) {
	if err := t.policy.ValidateSignalTarget(pid); err != nil {
		return Result{}, err
	}
	if proc, ok := t.table.Get(pid); ok && proc.State.Terminal() {
		return Result{PID: pid, ExitCode: proc.ExitCode, Reason: "forced", Success: true}, nil
	}
	if err := osutil.KillGroup(pid); err != nil {
		if err2 := osutil.Kill(pid); err2 != nil {
			return Result{}, errs.Wrap(errs.TerminationFailed, "SIGKILL failed", err2)
		}
	}
	gone := t.pollUntilGone(pid, time.Second)
	t.finalize(pid, model.StateCrashed)
	t.policy.AuditOperation("terminateForcefully", "", pid, "forced")
	return Result{PID: pid, Reason: "forced", Success: gone}, nil
}

// TerminateGroup implements spec §4.6's terminateGroup: concurrent per-pid
// terminations, a per-pid failure does not abort its peers.
func (t *Terminator) TerminateGroup(ctx context.Context, pids []uint32, force bool, timeoutMs int64) []Result {
	results := make([]Result, len(pids))
	g, _ := errgroup.WithContext(ctx)
	for i, pid := range pids {
		i, pid := i, pid
		g.Go(func() error {
			var r Result
			var err error
			if force {
				r, err = t.TerminateForcefully(pid)
			} else {
				r, err = t.TerminateGracefully(pid, timeoutMs)
			}
			if err != nil {
				r = Result{PID: pid, Success: false, Reason: "error"}
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// TerminateGroupByID resolves a group id and delegates to TerminateGroup.
func (t *Terminator) TerminateGroupByID(ctx context.Context, groupID string, force bool, timeoutMs int64) ([]Result, error) {
	group, ok := t.table.GetGroup(groupID)
	if !ok {
		return nil, errs.New(errs.GroupNotFound, "no such group")
	}
	return t.TerminateGroup(ctx, group.Processes, force, timeoutMs), nil
}

// ShutdownAll forcibly terminates every live managed pid, aggregating any
// per-pid failures with multierr (used at supervisor shutdown, spec §5).
func (t *Terminator) ShutdownAll(ctx context.Context) error {
	var errOut error
	for _, p := range t.table.GetAll() {
		if p.State.Terminal() {
			continue
		}
		if _, err := t.TerminateForcefully(p.PID); err != nil {
			errOut = multierr.Append(errOut, err)
		}
	}
	return errOut
}

func (t *Terminator) pollUntilGone(pid uint32, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		alive, err := osutil.Alive(pid)
		if err == nil && !alive {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		<-ticker.C
	}
}

func (t *Terminator) finalize(pid uint32, state model.State) {
	proc, ok := t.table.Get(pid)
	if !ok || proc.State.Terminal() {
		return
	}
	exitCode := int32(-1)
	t.table.UpdateState(pid, state, &exitCode)
}
