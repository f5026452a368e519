package policy

import (
	"testing"

	"github.com/Digital-Defiance/mcp-process-sub000/internal/config"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/errs"
	"go.uber.org/zap"
)

func testManager(t *testing.T, mutate func(*config.SecurityConfig)) *Manager {
	t.Helper()
	cfg := config.Default()
	cfg.AllowedExecutables = []string{"/bin/echo"}
	if mutate != nil {
		mutate(cfg)
	}
	m, err := New(cfg, zap.NewNop(), zap.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

func TestNewRejectsEmptyAllowlist(t *testing.T) {
	cfg := config.Default()
	if _, err := New(cfg, zap.NewNop(), zap.NewNop()); err == nil {
		t.Fatal("expected error for empty allowlist")
	}
}

func TestValidateExecutableAllowed(t *testing.T) {
	m := testManager(t, nil)
	path, err := m.ValidateExecutable("/bin/echo", []string{"hello"})
	if err != nil {
		t.Fatalf("ValidateExecutable() error = %v", err)
	}
	if path != "/bin/echo" {
		t.Fatalf("resolved path = %q, want /bin/echo", path)
	}
}

func TestValidateExecutableNotInAllowlist(t *testing.T) {
	m := testManager(t, func(c *config.SecurityConfig) {
		c.AllowedExecutables = []string{"/bin/true"}
	})
	_, err := m.ValidateExecutable("/bin/echo", nil)
	se, ok := errs.As(err)
	if !ok || se.Code != errs.NotInAllowlist {
		t.Fatalf("err = %v, want NotInAllowlist", err)
	}
}

func TestValidateExecutableDangerous(t *testing.T) {
	m := testManager(t, func(c *config.SecurityConfig) {
		c.AllowedExecutables = []string{"*"}
	})
	for _, name := range []string{"sudo", "rm"} {
		if _, err := m.resolve(name); err != nil {
			t.Skipf("%s not resolvable in this environment, skipping", name)
		}
		_, err := m.ValidateExecutable(name, nil)
		se, ok := errs.As(err)
		if !ok || se.Code != errs.DangerousExecutable {
			t.Fatalf("%s: err = %v, want DangerousExecutable", name, err)
		}
	}
}

func TestValidateExecutableShellBlocked(t *testing.T) {
	m := testManager(t, func(c *config.SecurityConfig) {
		c.AllowedExecutables = []string{"*"}
		c.BlockShellInterpreters = true
	})
	if _, err := m.resolve("bash"); err != nil {
		t.Skip("bash not resolvable in this environment")
	}
	_, err := m.ValidateExecutable("bash", nil)
	se, ok := errs.As(err)
	if !ok || se.Code != errs.ShellBlocked {
		t.Fatalf("err = %v, want ShellBlocked", err)
	}
}

func TestValidateExecutableArgumentInjection(t *testing.T) {
	m := testManager(t, nil)
	_, err := m.ValidateExecutable("/bin/echo", []string{"$(whoami)"})
	se, ok := errs.As(err)
	if !ok || se.Code != errs.ArgumentInjection {
		t.Fatalf("err = %v, want ArgumentInjection", err)
	}
}

func TestValidateExecutableArgumentTraversal(t *testing.T) {
	m := testManager(t, nil)
	_, err := m.ValidateExecutable("/bin/echo", []string{"../../etc/passwd"})
	se, ok := errs.As(err)
	if !ok || se.Code != errs.ArgumentTraversal {
		t.Fatalf("err = %v, want ArgumentTraversal", err)
	}
}

func TestValidateExecutableGlobAllowlist(t *testing.T) {
	m := testManager(t, func(c *config.SecurityConfig) {
		c.AllowedExecutables = []string{"/bin/*"}
	})
	if _, err := m.ValidateExecutable("/bin/echo", nil); err != nil {
		t.Fatalf("ValidateExecutable() error = %v", err)
	}
}

func TestValidateWorkingDirectoryBlocked(t *testing.T) {
	m := testManager(t, func(c *config.SecurityConfig) {
		c.BlockedWorkingDirectories = []string{"/etc"}
	})
	if err := m.ValidateWorkingDirectory("/etc/ssl"); err == nil {
		t.Fatal("expected blocked working directory to fail")
	}
}

func TestValidateWorkingDirectoryAllowlist(t *testing.T) {
	m := testManager(t, func(c *config.SecurityConfig) {
		c.AllowedWorkingDirectories = []string{"/tmp"}
	})
	if err := m.ValidateWorkingDirectory("/var"); err == nil {
		t.Fatal("expected /var to be rejected when allowlist is /tmp")
	}
	if err := m.ValidateWorkingDirectory("/tmp/sub"); err != nil {
		t.Fatalf("expected /tmp/sub to be allowed: %v", err)
	}
}

func TestCheckConcurrentLimit(t *testing.T) {
	m := testManager(t, func(c *config.SecurityConfig) {
		c.MaxConcurrentProcesses = 1
	})
	m.AddManaged(1)
	if err := m.CheckConcurrentLimit(); err == nil {
		t.Fatal("expected concurrent limit to be exceeded")
	}
}

func TestCheckLaunchRateLimit(t *testing.T) {
	m := testManager(t, func(c *config.SecurityConfig) {
		c.MaxLaunchesPerMinute = 2
	})
	if err := m.CheckLaunchRateLimit("agent-1"); err != nil {
		t.Fatalf("launch 1: %v", err)
	}
	if err := m.CheckLaunchRateLimit("agent-1"); err != nil {
		t.Fatalf("launch 2: %v", err)
	}
	if err := m.CheckLaunchRateLimit("agent-1"); err == nil {
		t.Fatal("expected rate limit to trigger on third launch")
	}
	if err := m.CheckLaunchRateLimit("agent-2"); err != nil {
		t.Fatalf("separate agent should not be rate limited: %v", err)
	}
}

func TestValidateSignalTarget(t *testing.T) {
	m := testManager(t, nil)
	if err := m.ValidateSignalTarget(42); err == nil {
		t.Fatal("expected unmanaged pid to be rejected")
	}
	m.AddManaged(42)
	if err := m.ValidateSignalTarget(42); err != nil {
		t.Fatalf("managed pid should be valid: %v", err)
	}
	m.RemoveManaged(42)
	if err := m.ValidateSignalTarget(42); err == nil {
		t.Fatal("expected pid to be rejected after RemoveManaged")
	}
}
