package policy

import "github.com/Digital-Defiance/mcp-process-sub000/internal/model"

// ResolveResourceLimits implements the resource-ceiling half of spec §3/§6:
// a launch request that omits a limit inherits the admin-configured
// default, and any limit (requested or defaulted) that exceeds the
// admin-configured ceiling is clamped down to it. A zero field means
// "unset" throughout, so a zero ceiling means "no ceiling" for that field.
func (m *Manager) ResolveResourceLimits(requested model.ResourceLimits) model.ResourceLimits {
	def := m.cfg.DefaultResourceLimits.ToModel()
	ceiling := m.cfg.MaxResourceLimits.ToModel()

	out := requested
	if out.MaxCPUPercent == 0 {
		out.MaxCPUPercent = def.MaxCPUPercent
	}
	if out.MaxMemoryMB == 0 {
		out.MaxMemoryMB = def.MaxMemoryMB
	}
	if out.MaxFileHandles == 0 {
		out.MaxFileHandles = def.MaxFileHandles
	}
	if out.MaxCPUTimeSec == 0 {
		out.MaxCPUTimeSec = def.MaxCPUTimeSec
	}
	if out.MaxChildProcess == 0 {
		out.MaxChildProcess = def.MaxChildProcess
	}

	if ceiling.MaxCPUPercent != 0 && out.MaxCPUPercent > ceiling.MaxCPUPercent {
		out.MaxCPUPercent = ceiling.MaxCPUPercent
	}
	if ceiling.MaxMemoryMB != 0 && out.MaxMemoryMB > ceiling.MaxMemoryMB {
		out.MaxMemoryMB = ceiling.MaxMemoryMB
	}
	if ceiling.MaxFileHandles != 0 && out.MaxFileHandles > ceiling.MaxFileHandles {
		out.MaxFileHandles = ceiling.MaxFileHandles
	}
	if ceiling.MaxCPUTimeSec != 0 && out.MaxCPUTimeSec > ceiling.MaxCPUTimeSec {
		out.MaxCPUTimeSec = ceiling.MaxCPUTimeSec
	}
	if ceiling.MaxChildProcess != 0 && out.MaxChildProcess > ceiling.MaxChildProcess {
		out.MaxChildProcess = ceiling.MaxChildProcess
	}
	return out
}
