package dispatcher

import (
	"encoding/json"
	"time"

	"github.com/Digital-Defiance/mcp-process-sub000/internal/errs"
	"github.com/mark3labs/mcp-go/mcp"
)

// errorEnvelope mirrors spec §7's ErrorResponse shape; success responses
// are built in toResult as a map carrying status "success" plus the
// payload fields. The Dispatcher is the only component that builds either.
type errorEnvelope struct {
	Status      string `json:"status"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	Remediation string `json:"remediation,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// toResult is the central ErrorHandler (spec §4.9): every tool handler
// funnels its (payload, err) pair through here so no call site builds its
// own ad-hoc envelope.
func toResult(payload any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		se, ok := errs.As(err)
		if !ok {
			se = errs.Wrap(errs.Unknown, err.Error(), err)
		}
		env := errorEnvelope{
			Status:      "error",
			Code:        string(se.Code),
			Message:     se.Message,
			Remediation: se.Remediation,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}
		body, _ := json.Marshal(env)
		return mcp.NewToolResultError(string(body)), nil
	}

	wrapped := map[string]any{"status": "success"}
	if m, ok := payload.(map[string]any); ok {
		for k, v := range m {
			wrapped[k] = v
		}
	} else {
		wrapped["result"] = payload
	}
	body, marshalErr := json.Marshal(wrapped)
	if marshalErr != nil {
		return mcp.NewToolResultError(marshalErr.Error()), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}
