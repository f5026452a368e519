package policy

import (
	"strings"
	"testing"

	"github.com/Digital-Defiance/mcp-process-sub000/internal/config"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/errs"
)

func TestSanitizeEnvironmentStripsHardcodedDangerousKeys(t *testing.T) {
	m := testManager(t, nil)
	clean, err := m.SanitizeEnvironment(map[string]string{
		"LD_PRELOAD": "/evil.so",
		"PATH":       "/usr/bin",
		"SAFE_VAR":   "ok",
	})
	if err != nil {
		t.Fatalf("SanitizeEnvironment() error = %v", err)
	}
	if _, ok := clean["LD_PRELOAD"]; ok {
		t.Fatal("LD_PRELOAD should have been stripped")
	}
	if _, ok := clean["PATH"]; ok {
		t.Fatal("PATH should have been stripped")
	}
	if clean["SAFE_VAR"] != "ok" {
		t.Fatalf("SAFE_VAR = %q, want ok", clean["SAFE_VAR"])
	}
}

func TestSanitizeEnvironmentAdditionalDangerous(t *testing.T) {
	m := testManager(t, func(c *config.SecurityConfig) {
		c.AdditionalDangerousEnv = []string{"SECRET_TOKEN"}
	})
	clean, err := m.SanitizeEnvironment(map[string]string{"SECRET_TOKEN": "x"})
	if err != nil {
		t.Fatalf("SanitizeEnvironment() error = %v", err)
	}
	if _, ok := clean["SECRET_TOKEN"]; ok {
		t.Fatal("SECRET_TOKEN should have been stripped")
	}
}

func TestSanitizeEnvironmentAllowlist(t *testing.T) {
	m := testManager(t, func(c *config.SecurityConfig) {
		c.AllowedEnvVars = []string{"ALLOWED"}
	})
	if _, err := m.SanitizeEnvironment(map[string]string{"NOT_ALLOWED": "x"}); err == nil {
		t.Fatal("expected env var outside allowlist to be rejected")
	}
	clean, err := m.SanitizeEnvironment(map[string]string{"ALLOWED": "x"})
	if err != nil {
		t.Fatalf("SanitizeEnvironment() error = %v", err)
	}
	if clean["ALLOWED"] != "x" {
		t.Fatal("ALLOWED should have passed through")
	}
}

func TestSanitizeEnvironmentInjectionBeforeLength(t *testing.T) {
	m := testManager(t, nil)
	longInjected := strings.Repeat("a", maxEnvValueLen+1) + "$(evil)"
	_, err := m.SanitizeEnvironment(map[string]string{"V": longInjected})
	se, ok := errs.As(err)
	if !ok || se.Code != errs.EnvVarInjection {
		t.Fatalf("err = %v, want EnvVarInjection (checked before length)", err)
	}
}

func TestSanitizeEnvironmentValueTooLong(t *testing.T) {
	m := testManager(t, nil)
	_, err := m.SanitizeEnvironment(map[string]string{"V": strings.Repeat("a", maxEnvValueLen+1)})
	se, ok := errs.As(err)
	if !ok || se.Code != errs.EnvVarTooLong {
		t.Fatalf("err = %v, want EnvVarTooLong", err)
	}
}

func TestSanitizeEnvironmentTotalSizeExceeded(t *testing.T) {
	m := testManager(t, nil)
	env := make(map[string]string)
	chunk := strings.Repeat("a", maxEnvValueLen)
	for i := 0; i < 20; i++ {
		env[strings.Repeat("K", i+1)] = chunk
	}
	_, err := m.SanitizeEnvironment(env)
	se, ok := errs.As(err)
	if !ok || se.Code != errs.EnvSizeExceeded {
		t.Fatalf("err = %v, want EnvSizeExceeded", err)
	}
}
