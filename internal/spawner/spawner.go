// Package spawner implements Launch (spec §4.2): run every Policy check in
// order, spawn the OS process with the teacher's isolation attributes, wire
// it into ProcessTable/Monitor/Timeouts/IO, and install the exit handler
// that tears all of that back down. The orchestration sequence and the
// exit-handler shape are both generalized from the teacher's
// superviseProcess/newManagedProcess pair in processmgr/process_manager.go.
package spawner

import (
	"errors"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/Digital-Defiance/mcp-process-sub000/internal/errs"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/iomgr"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/model"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/monitor"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/policy"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/proctable"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/timeouts"
	"go.uber.org/zap"
)

type Spawner struct {
	log      *zap.Logger
	policy   *policy.Manager
	table    *proctable.Table
	monitor  *monitor.Manager
	timeouts *timeouts.Manager
	io       *iomgr.Manager
}

func New(pol *policy.Manager, table *proctable.Table, mon *monitor.Manager, to *timeouts.Manager, io *iomgr.Manager, log *zap.Logger) *Spawner {
	return &Spawner{log: log.Named("spawner"), policy: pol, table: table, monitor: mon, timeouts: to, io: io}
}

// Launch implements spec §4.2's launch(ProcessConfig).
func (s *Spawner) Launch(cfg model.ProcessConfig) (uint32, error) {
	resolvedPath, err := s.policy.ValidateExecutable(cfg.Executable, cfg.Args)
	if err != nil {
		return 0, err
	}

	if cfg.Cwd != "" {
		if err := s.policy.ValidateWorkingDirectory(cfg.Cwd); err != nil {
			return 0, err
		}
	}

	env := cfg.Env
	if len(env) > 0 {
		clean, err := s.policy.SanitizeEnvironment(env)
		if err != nil {
			return 0, err
		}
		env = clean
	}

	if err := s.policy.CheckConcurrentLimit(); err != nil {
		return 0, err
	}
	if err := s.policy.CheckLaunchRateLimit(cfg.AgentID); err != nil {
		return 0, err
	}

	cmd := exec.Command(resolvedPath, cfg.Args...)
	cmd.SysProcAttr = sysProcAttr()
	if cfg.Cwd != "" {
		cmd.Dir = cfg.Cwd
	}
	if len(env) > 0 {
		cmd.Env = flattenEnv(env)
	}

	var stdoutR, stderrR io.Reader
	if cfg.CaptureOutput {
		stdoutPipe, err := cmd.StdoutPipe()
		if err != nil {
			return 0, errs.Wrap(errs.SpawnFailed, "failed to create stdout pipe", err)
		}
		stderrPipe, err := cmd.StderrPipe()
		if err != nil {
			return 0, errs.Wrap(errs.SpawnFailed, "failed to create stderr pipe", err)
		}
		stdoutR, stderrR = stdoutPipe, stderrPipe
	}

	stdinW, err := cmd.StdinPipe()
	if err != nil {
		return 0, errs.Wrap(errs.SpawnFailed, "failed to create stdin pipe", err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdinW.Close()
		return 0, classifySpawnError(err)
	}

	pid := uint32(cmd.Process.Pid)

	mp := &model.ManagedProcess{
		PID:       pid,
		Command:   resolvedPath,
		Args:      cfg.Args,
		State:     model.StateRunning,
		StartTime: time.Now(),
	}
	s.table.Register(mp, cmd)
	s.io.Attach(pid, stdoutR, stderrR, stdinW)
	s.monitor.StartMonitoring(pid, s.policy.ResolveResourceLimits(cfg.ResourceLimits))
	s.timeouts.RegisterTimeout(pid, cfg.TimeoutMs, s.onTimeout)

	s.policy.AuditOperation("launch", resolvedPath, pid, "success")
	go s.awaitExit(pid, cmd)

	return pid, nil
}

// onTimeout is the Timeouts callback from spec §4.2: SIGTERM the child and
// transition it to crashed with exitCode -1.
func (s *Spawner) onTimeout(pid uint32) {
	s.log.Warn("timeout fired, terminating", zap.Uint32("pid", pid))
	if cmd, ok := s.table.GetCmd(pid); ok && cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}
	exitCode := int32(-1)
	s.table.UpdateState(pid, model.StateCrashed, &exitCode)
}

// awaitExit is the exit handler from spec §4.2: waits for the OS process to
// exit, classifies the terminal state, and deregisters everything.
func (s *Spawner) awaitExit(pid uint32, cmd *exec.Cmd) {
	waitErr := cmd.Wait()

	state := model.StateStopped
	var exitCode int32
	if waitErr != nil {
		state = model.StateCrashed
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = int32(exitErr.ExitCode())
		} else {
			exitCode = -1
		}
	} else if cmd.ProcessState != nil {
		exitCode = int32(cmd.ProcessState.ExitCode())
	}

	s.table.UpdateState(pid, state, &exitCode)
	s.monitor.StopMonitoring(pid)
	s.timeouts.ClearTimeout(pid)
	s.io.Detach(pid)
	s.table.Unregister(pid)
	s.policy.AuditOperation("exit", "", pid, string(state))
}

func classifySpawnError(err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return errs.Wrap(errs.ExecutableNotFound, "executable not found at spawn time", err)
	}
	var pathErr *exec.Error
	if errors.As(err, &pathErr) {
		return errs.Wrap(errs.SpawnFailed, "spawn failed", err)
	}
	return errs.Wrap(errs.SpawnFailed, "spawn failed", err)
}

func flattenEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
