package policy

// dangerousExecutables is the hardcoded, always-blocked set from spec §4.1
// layer 2. It can never be opted back in via the allowlist.
var dangerousExecutables = map[string]struct{}{
	"sudo": {}, "su": {}, "rm": {}, "dd": {}, "mkfs": {}, "shutdown": {},
	"runas": {}, "reg": {}, "diskpart": {}, "netsh": {},
}

// shellInterpreters is the hardcoded set checked by layer 3 when
// BlockShellInterpreters is configured.
var shellInterpreters = map[string]struct{}{
	"bash": {}, "sh": {}, "zsh": {}, "fish": {}, "csh": {}, "tcsh": {}, "ksh": {},
	"cmd.exe": {}, "powershell.exe": {}, "pwsh.exe": {},
}

// hardcodedDangerousEnv is the always-stripped env key set from spec §4.1
// sanitizeEnvironment step 1.
var hardcodedDangerousEnv = map[string]struct{}{
	"LD_PRELOAD": {}, "LD_LIBRARY_PATH": {}, "DYLD_INSERT_LIBRARIES": {},
	"DYLD_LIBRARY_PATH": {}, "PATH": {}, "PYTHONPATH": {}, "NODE_PATH": {},
	"PERL5LIB": {}, "RUBYLIB": {},
	"Path": {}, "PATHEXT": {}, "COMSPEC": {},
}

// argInjectionSubstrings and pathTraversalSubstrings are the
// command-injection / path-traversal indicators scanned for in arguments
// (layer 6); envInjectionSubstrings are scanned for in env values
// (sanitize step 2).
var argInjectionSubstrings = []string{"$(", "`", "|", ";", "&", "\n"}
var pathTraversalSubstrings = []string{"../", "..\\"}
var envInjectionSubstrings = []string{"$(", "`", "\n"}

func isDangerousExecutable(basename string) bool {
	_, ok := dangerousExecutables[basename]
	return ok
}

func isShellInterpreter(basename string) bool {
	_, ok := shellInterpreters[basename]
	return ok
}

func isHardcodedDangerousEnv(key string) bool {
	_, ok := hardcodedDangerousEnv[key]
	return ok
}
