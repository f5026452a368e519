// Package dispatcher implements the MCP tool surface from spec §4.9/§6:
// twelve thin translation handlers plus the central ErrorHandler. It is the
// one component enriched entirely from outside the teacher repo — grounded
// on kdlbs-kandev's internal/mcpserver tool-registration pattern — since
// edirooss-zmux-server has no MCP/JSON-RPC surface of its own to
// generalize.
package dispatcher

import (
	"context"
	"time"

	"github.com/Digital-Defiance/mcp-process-sub000/internal/errs"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/group"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/iomgr"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/model"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/monitor"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/policy"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/proctable"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/services"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/spawner"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/terminator"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// defaultAgentID identifies the single stdio-connected client per spec
// §1's non-goal of "no user authentication beyond the single-agent
// identity associated with the stdio stream".
const defaultAgentID = "stdio-agent"

// Dispatcher owns every core component handle and exposes them as MCP
// tools (spec Design Notes: "Dispatcher owns component handles; components
// reference each other through explicit injected handles").
type Dispatcher struct {
	log        *zap.Logger
	policy     *policy.Manager
	spawner    *spawner.Spawner
	table      *proctable.Table
	monitor    *monitor.Manager
	io         *iomgr.Manager
	terminator *terminator.Terminator
	group      *group.Manager
	services   *services.Manager
}

func New(
	pol *policy.Manager,
	sp *spawner.Spawner,
	table *proctable.Table,
	mon *monitor.Manager,
	iomanager *iomgr.Manager,
	term *terminator.Terminator,
	grp *group.Manager,
	svc *services.Manager,
	log *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		log: log.Named("dispatcher"), policy: pol, spawner: sp, table: table,
		monitor: mon, io: iomanager, terminator: term, group: grp, services: svc,
	}
}

// Register builds the twelve-tool surface on an MCP server.
func (d *Dispatcher) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("process_start",
		mcp.WithDescription("Launch a new sandboxed OS process under the security policy."),
		mcp.WithString("executable", mcp.Required(), mcp.Description("Executable name or path")),
		mcp.WithArray("args", mcp.Description("Command-line arguments")),
		mcp.WithString("cwd", mcp.Description("Working directory")),
		mcp.WithObject("env", mcp.Description("Environment variables to add/override")),
		mcp.WithBoolean("captureOutput", mcp.Description("Capture stdout/stderr")),
		mcp.WithNumber("timeoutMs", mcp.Description("Kill the process after this many milliseconds (0 = supervisor default)")),
		mcp.WithObject("resourceLimits", mcp.Description("Per-process resource limits")),
	), d.handleStart)

	s.AddTool(mcp.NewTool("process_terminate",
		mcp.WithDescription("Terminate a managed process, gracefully or forcefully."),
		mcp.WithNumber("pid", mcp.Required()),
		mcp.WithBoolean("force", mcp.Description("Skip the graceful phase and send SIGKILL directly")),
		mcp.WithNumber("timeoutMs", mcp.Description("Graceful wait before escalating (default 5000)")),
	), d.handleTerminate)

	s.AddTool(mcp.NewTool("process_get_stats",
		mcp.WithDescription("Fetch the most recent resource sample for a managed pid."),
		mcp.WithNumber("pid", mcp.Required()),
	), d.handleGetStats)

	s.AddTool(mcp.NewTool("process_send_stdin",
		mcp.WithDescription("Write data to a managed process's stdin."),
		mcp.WithNumber("pid", mcp.Required()),
		mcp.WithString("data", mcp.Required()),
		mcp.WithBoolean("closeAfter", mcp.Description("Close stdin after writing (signals EOF)")),
	), d.handleSendStdin)

	s.AddTool(mcp.NewTool("process_get_output",
		mcp.WithDescription("Retrieve captured stdout/stderr for a managed pid."),
		mcp.WithNumber("pid", mcp.Required()),
	), d.handleGetOutput)

	s.AddTool(mcp.NewTool("process_list",
		mcp.WithDescription("List every currently registered managed process."),
	), d.handleList)

	s.AddTool(mcp.NewTool("process_get_status",
		mcp.WithDescription("Fetch full status for one managed pid."),
		mcp.WithNumber("pid", mcp.Required()),
	), d.handleGetStatus)

	s.AddTool(mcp.NewTool("process_create_group",
		mcp.WithDescription("Create a process group, optionally a stdout->stdin pipeline."),
		mcp.WithString("name", mcp.Required()),
		mcp.WithBoolean("pipeline", mcp.Description("Record members as a linear stdout->stdin pipeline (edges only; streams are not joined)")),
	), d.handleCreateGroup)

	s.AddTool(mcp.NewTool("process_add_to_group",
		mcp.WithDescription("Add a managed pid to an existing group."),
		mcp.WithString("groupId", mcp.Required()),
		mcp.WithNumber("pid", mcp.Required()),
	), d.handleAddToGroup)

	s.AddTool(mcp.NewTool("process_terminate_group",
		mcp.WithDescription("Terminate every member of a group concurrently."),
		mcp.WithString("groupId", mcp.Required()),
		mcp.WithBoolean("force", mcp.Description("Skip the graceful phase for every member")),
		mcp.WithNumber("timeoutMs", mcp.Description("Graceful wait per member (default 5000)")),
	), d.handleTerminateGroup)

	s.AddTool(mcp.NewTool("process_start_service",
		mcp.WithDescription("Start a supervised long-running service with optional restart policy and health check."),
		mcp.WithString("name", mcp.Required()),
		mcp.WithString("executable", mcp.Required()),
		mcp.WithArray("args", mcp.Description("Command-line arguments")),
		mcp.WithString("cwd", mcp.Description("Working directory")),
		mcp.WithObject("env", mcp.Description("Environment variables to add/override")),
		mcp.WithBoolean("captureOutput", mcp.Description("Capture stdout/stderr")),
		mcp.WithObject("resourceLimits", mcp.Description("Per-process resource limits")),
		mcp.WithObject("restartPolicy", mcp.Description("{enabled, maxRetries, backoffMs}")),
		mcp.WithObject("healthCheck", mcp.Description("{command, args, intervalMs, timeoutMs}")),
	), d.handleStartService)

	s.AddTool(mcp.NewTool("process_stop_service",
		mcp.WithDescription("Stop a supervised service and remove it from the registry."),
		mcp.WithString("name", mcp.Required()),
	), d.handleStopService)
}

// Serve runs the MCP server over stdio until the process is killed or
// ServeStdio returns (spec §6: JSON-RPC 2.0 over stdio).
func (d *Dispatcher) Serve(ctx context.Context, name, version string) error {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(true))
	d.Register(s)
	return server.ServeStdio(s)
}

func (d *Dispatcher) handleStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argGetter(req.GetArguments())
	executable, err := a.requireString("executable")
	if err != nil {
		return toResult(nil, err)
	}
	cfg := model.ProcessConfig{
		Executable:    executable,
		Args:          a.optStringSlice("args"),
		Cwd:           a.optString("cwd", ""),
		Env:           a.optStringMap("env"),
		CaptureOutput: a.optBool("captureOutput", false),
		TimeoutMs:     a.optInt64("timeoutMs", 0),
		ResourceLimits: parseResourceLimits(a.optObject("resourceLimits")),
		AgentID:       defaultAgentID,
	}
	pid, err := d.spawner.Launch(cfg)
	return toResult(map[string]any{"pid": pid}, err)
}

func (d *Dispatcher) handleTerminate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argGetter(req.GetArguments())
	pid, err := a.requireUint32("pid")
	if err != nil {
		return toResult(nil, err)
	}
	force := a.optBool("force", false)
	timeoutMs := a.optInt64("timeoutMs", 5000)

	var res terminator.Result
	if force {
		res, err = d.terminator.TerminateForcefully(pid)
	} else {
		res, err = d.terminator.TerminateGracefully(pid, timeoutMs)
	}
	return toResult(map[string]any{
		"pid": res.PID, "exitCode": res.ExitCode, "reason": res.Reason, "success": res.Success,
	}, err)
}

func (d *Dispatcher) handleGetStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argGetter(req.GetArguments())
	pid, err := a.requireUint32("pid")
	if err != nil {
		return toResult(nil, err)
	}
	stats, ok := d.monitor.GetLatest(pid)
	if !ok {
		return toResult(nil, errs.New(errs.ProcessNotFound, "no stats for pid"))
	}
	return toResult(statsPayload(stats), nil)
}

func (d *Dispatcher) handleSendStdin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argGetter(req.GetArguments())
	pid, err := a.requireUint32("pid")
	if err != nil {
		return toResult(nil, err)
	}
	data, err := a.requireString("data")
	if err != nil {
		return toResult(nil, err)
	}
	n, err := d.io.WriteStdin(pid, []byte(data))
	if err == nil && a.optBool("closeAfter", false) {
		_ = d.io.CloseStdin(pid)
	}
	return toResult(map[string]any{"bytesWritten": n}, err)
}

func (d *Dispatcher) handleGetOutput(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argGetter(req.GetArguments())
	pid, err := a.requireUint32("pid")
	if err != nil {
		return toResult(nil, err)
	}
	stdout, stderr, stdoutBytes, stderrBytes, err := d.io.GetOutput(pid)
	return toResult(map[string]any{
		"stdout": stdout, "stderr": stderr,
		"stdoutBytes": stdoutBytes, "stderrBytes": stderrBytes,
	}, err)
}

func (d *Dispatcher) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all := d.table.GetAll()
	list := make([]map[string]any, 0, len(all))
	for _, p := range all {
		list = append(list, processSummary(p))
	}
	return toResult(map[string]any{"processes": list}, nil)
}

func (d *Dispatcher) handleGetStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argGetter(req.GetArguments())
	pid, err := a.requireUint32("pid")
	if err != nil {
		return toResult(nil, err)
	}
	proc, ok := d.table.Get(pid)
	if !ok {
		return toResult(nil, errs.New(errs.ProcessNotFound, "no such pid"))
	}
	stats, _ := d.monitor.GetLatest(pid)
	payload := processSummary(proc)
	payload["stats"] = statsPayload(stats)
	return toResult(payload, nil)
}

func (d *Dispatcher) handleCreateGroup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argGetter(req.GetArguments())
	name, err := a.requireString("name")
	if err != nil {
		return toResult(nil, err)
	}
	g := d.group.CreateGroup(name, a.optBool("pipeline", false))
	return toResult(map[string]any{"groupId": g.ID, "name": g.Name, "pipeline": g.Pipeline}, nil)
}

func (d *Dispatcher) handleAddToGroup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argGetter(req.GetArguments())
	groupID, err := a.requireString("groupId")
	if err != nil {
		return toResult(nil, err)
	}
	pid, err := a.requireUint32("pid")
	if err != nil {
		return toResult(nil, err)
	}
	err = d.group.AddToGroup(groupID, pid)
	return toResult(map[string]any{"groupId": groupID, "pid": pid}, err)
}

func (d *Dispatcher) handleTerminateGroup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argGetter(req.GetArguments())
	groupID, err := a.requireString("groupId")
	if err != nil {
		return toResult(nil, err)
	}
	force := a.optBool("force", false)
	timeoutMs := a.optInt64("timeoutMs", 5000)
	results, err := d.terminator.TerminateGroupByID(ctx, groupID, force, timeoutMs)
	if err != nil {
		return toResult(nil, err)
	}
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		out = append(out, map[string]any{"pid": r.PID, "reason": r.Reason, "success": r.Success})
	}
	return toResult(map[string]any{"results": out}, nil)
}

func (d *Dispatcher) handleStartService(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argGetter(req.GetArguments())
	name, err := a.requireString("name")
	if err != nil {
		return toResult(nil, err)
	}
	executable, err := a.requireString("executable")
	if err != nil {
		return toResult(nil, err)
	}

	rp := a.optObject("restartPolicy")
	hc := a.optObject("healthCheck")

	cfg := model.ServiceConfig{
		Name: name,
		Process: model.ProcessConfig{
			Executable:     executable,
			Args:           a.optStringSlice("args"),
			Cwd:            a.optString("cwd", ""),
			Env:            a.optStringMap("env"),
			CaptureOutput:  a.optBool("captureOutput", true),
			ResourceLimits: parseResourceLimits(a.optObject("resourceLimits")),
			AgentID:        defaultAgentID,
		},
		RestartPolicy: parseRestartPolicy(rp),
		HealthCheck:   parseHealthCheck(hc),
	}
	svc, err := d.services.StartService(cfg)
	return toResult(map[string]any{"name": svc.Name, "pid": svc.PID, "state": svc.State}, err)
}

func (d *Dispatcher) handleStopService(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := argGetter(req.GetArguments())
	name, err := a.requireString("name")
	if err != nil {
		return toResult(nil, err)
	}
	err = d.services.StopService(name)
	return toResult(map[string]any{"name": name}, err)
}

func parseResourceLimits(a argGetter) model.ResourceLimits {
	if a == nil {
		return model.ResourceLimits{}
	}
	return model.ResourceLimits{
		MaxCPUPercent:   a.optFloat64("maxCpuPercent", 0),
		MaxMemoryMB:     a.optFloat64("maxMemoryMB", 0),
		MaxFileHandles:  int(a.optInt64("maxFileHandles", 0)),
		MaxCPUTimeSec:   a.optInt64("maxCpuTimeSec", 0),
		MaxChildProcess: int(a.optInt64("maxChildProcesses", 0)),
	}
}

func parseRestartPolicy(a argGetter) model.RestartPolicy {
	if a == nil {
		return model.RestartPolicy{}
	}
	return model.RestartPolicy{
		Enabled:       a.optBool("enabled", false),
		MaxRetries:    int(a.optInt64("maxRetries", 0)),
		BaseBackoffMs: a.optInt64("backoffMs", 1000),
	}
}

func parseHealthCheck(a argGetter) *model.HealthCheckConfig {
	if a == nil {
		return nil
	}
	cmd := a.optString("command", "")
	if cmd == "" {
		return nil
	}
	return &model.HealthCheckConfig{
		Command:    cmd,
		Args:       a.optStringSlice("args"),
		IntervalMs: a.optInt64("intervalMs", 10000),
		TimeoutMs:  a.optInt64("timeoutMs", 5000),
	}
}

func processSummary(p *model.ManagedProcess) map[string]any {
	out := map[string]any{
		"pid":       p.PID,
		"command":   p.Command,
		"args":      p.Args,
		"state":     p.State,
		"startTime": p.StartTime.UTC().Format(time.RFC3339),
		"uptime":    time.Since(p.StartTime).Seconds(),
	}
	if p.State.Terminal() && p.ExitCode != nil {
		out["exitCode"] = *p.ExitCode
	}
	return out
}

func statsPayload(s model.ProcessStats) map[string]any {
	return map[string]any{
		"cpuPercent":   s.CPUPercent,
		"memoryMB":     s.MemoryMB,
		"threadCount":  s.ThreadCount,
		"ioBytesRead":  s.IOBytesRead,
		"ioBytesWrite": s.IOBytesWrite,
		"uptimeSec":    s.UptimeSec,
		"sampledAt":    s.SampledAt.UTC().Format(time.RFC3339),
	}
}
