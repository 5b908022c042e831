package testharness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Scenario is one loggy invocation run end to end against a built binary.
type Scenario struct {
	Name string
	// Alias, when set, runs loggy through a symlink of that name instead of
	// as "loggy". Args then follow the alias.
	Alias string
	Args  []string
	Stdin string
	// Patterns is written to $HOME/.config/loggy when non-empty.
	Patterns string
	Env      map[string]string
}

var (
	// ScenarioDirect wraps a command given as arguments.
	ScenarioDirect = Scenario{
		Name: "direct",
		Args: []string{"sh", "-c", "echo out; echo err >&2; exit 7"},
	}
	// ScenarioAlias runs loggy as an alias of echo with a pattern file.
	ScenarioAlias = Scenario{
		Name:     "alias",
		Alias:    "echo",
		Args:     []string{"hello", "world"},
		Patterns: "# log echo\n^echo\n",
	}
	// ScenarioAliasUnmatched is an alias whose command line no pattern selects.
	ScenarioAliasUnmatched = Scenario{
		Name:     "alias-unmatched",
		Alias:    "echo",
		Args:     []string{"quiet"},
		Patterns: "^make\n",
	}
	// ScenarioPassthrough logs loggy's own standard input.
	ScenarioPassthrough = Scenario{
		Name:  "passthrough",
		Stdin: "piped 1\npiped 2\n",
	}
	// ScenarioStdoutOnly captures only standard output.
	ScenarioStdoutOnly = Scenario{
		Name: "stdout-only",
		// The stderr text is assembled by the shell so the logged command
		// line does not contain it.
		Args: []string{"sh", "-c", "echo visible; printf '%s%s\\n' hid den >&2"},
		Env:  map[string]string{"LOGGY_CAPTURE": "stdout"},
	}
)

// SmokeOptions configures RunSmoke.
type SmokeOptions struct {
	Scenario    Scenario
	LoggyBinary string
	WorkDir     string
}

// SmokeResult captures the outcome of a smoke scenario.
type SmokeResult struct {
	Scenario Scenario
	Home     string
	Stdout   string
	Stderr   string
	ExitCode int
	// Logs maps log file names under $HOME/logs to their content.
	Logs map[string]string
}

// LogNames returns the sorted log file names.
func (r *SmokeResult) LogNames() []string {
	names := make([]string, 0, len(r.Logs))
	for name := range r.Logs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunSmoke executes a smoke scenario using the provided binary.
func RunSmoke(ctx context.Context, opts SmokeOptions) (*SmokeResult, error) {
	if opts.LoggyBinary == "" {
		return nil, fmt.Errorf("loggy binary path is required")
	}

	workDir := opts.WorkDir
	if workDir == "" {
		var err error
		workDir, err = os.MkdirTemp("", "loggy-smoke-")
		if err != nil {
			return nil, fmt.Errorf("failed to create work directory: %w", err)
		}
	}

	home := filepath.Join(workDir, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	if opts.Scenario.Patterns != "" {
		if err := os.MkdirAll(filepath.Join(home, ".config"), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := os.WriteFile(filepath.Join(home, ".config", "loggy"), []byte(opts.Scenario.Patterns), 0o600); err != nil {
			return nil, fmt.Errorf("failed to write pattern file: %w", err)
		}
	}

	env := setEnv(os.Environ(), "HOME", home)
	env = unsetEnv(env, "NO_LOGGY")
	env = unsetEnv(env, "LOGGY_CAPTURE")

	program := opts.LoggyBinary
	if opts.Scenario.Alias != "" {
		aliasDir := filepath.Join(workDir, "alias")
		alias, err := InstallAlias(opts.LoggyBinary, aliasDir, opts.Scenario.Alias)
		if err != nil {
			return nil, err
		}
		program = alias
		env = setEnv(env, "PATH", aliasDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
	env = mergeEnv(env, opts.Scenario.Env)

	stdOut := &bytes.Buffer{}
	stdErr := &bytes.Buffer{}

	cmd := exec.CommandContext(ctx, program, opts.Scenario.Args...)
	if opts.Scenario.Alias != "" {
		// A shell passes the alias name as typed, not the resolved path.
		cmd.Args[0] = opts.Scenario.Alias
	}
	cmd.Dir = workDir
	cmd.Stdin = strings.NewReader(opts.Scenario.Stdin)
	cmd.Stdout = stdOut
	cmd.Stderr = stdErr
	cmd.Env = env

	result := &SmokeResult{
		Scenario: opts.Scenario,
		Home:     home,
		Logs:     map[string]string{},
	}

	runErr := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("failed to run loggy: %w", runErr)
	}
	result.Stdout = stdOut.String()
	result.Stderr = stdErr.String()

	entries, err := os.ReadDir(filepath.Join(home, "logs"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(home, "logs", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read log %s: %w", e.Name(), err)
		}
		result.Logs[e.Name()] = string(data)
	}

	return result, nil
}

// DetectRepoRoot locates the repository root by searching for go.mod.
func DetectRepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found (starting from %s)", dir)
		}
		dir = parent
	}
}

func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	result := append([]string{}, base...)
	for k, v := range overrides {
		result = setEnv(result, k, v)
	}
	return result
}

func unsetEnv(env []string, key string) []string {
	prefix := key + "="
	result := env[:0]
	for _, kv := range env {
		if !strings.HasPrefix(kv, prefix) {
			result = append(result, kv)
		}
	}
	return result
}
