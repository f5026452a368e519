package policy

import "go.uber.org/zap"

// AuditOperation records a successful security-relevant decision. Fields
// match the audit record shape documented in spec §6.
func (m *Manager) AuditOperation(operation, target string, pid uint32, outcome string) {
	m.audit.Info("operation",
		zap.String("operation", operation),
		zap.String("target", target),
		zap.Uint32("pid", pid),
		zap.String("outcome", outcome),
	)
}

// AuditSecurityViolation records a denied operation with the violated rule.
func (m *Manager) AuditSecurityViolation(rule string, fields ...zap.Field) {
	f := append([]zap.Field{zap.String("rule", rule), zap.String("outcome", "denied")}, fields...)
	m.audit.Warn("security_violation", f...)
}
