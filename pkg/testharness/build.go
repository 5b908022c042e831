package testharness

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// BuildLoggy compiles the loggy binary into outputDir.
// Returns the absolute path to the compiled binary.
func BuildLoggy(ctx context.Context, projectRoot, outputDir string) (string, error) {
	if projectRoot == "" {
		return "", fmt.Errorf("project root is required")
	}
	if outputDir == "" {
		return "", fmt.Errorf("output directory is required")
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	loggyPath := filepath.Join(outputDir, "loggy")
	if err := runGoBuild(ctx, projectRoot, loggyPath, "./cmd/loggy"); err != nil {
		return "", err
	}
	return loggyPath, nil
}

// InstallAlias symlinks loggy into aliasDir under the given program name,
// the way users wrap a program transparently.
func InstallAlias(loggyPath, aliasDir, name string) (string, error) {
	if err := os.MkdirAll(aliasDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create alias directory: %w", err)
	}
	alias := filepath.Join(aliasDir, name)
	if err := os.Symlink(loggyPath, alias); err != nil {
		return "", fmt.Errorf("failed to create alias %s: %w", name, err)
	}
	return alias, nil
}

func runGoBuild(ctx context.Context, projectRoot, outputPath, pkg string) error {
	cmd := exec.CommandContext(ctx, "go", "build", "-trimpath", "-o", outputPath, pkg)
	cmd.Dir = projectRoot

	env := os.Environ()
	env = setEnv(env, "CGO_ENABLED", "0")
	env = setEnv(env, "GOFLAGS", "-trimpath")
	cmd.Env = env

	var combined []byte
	var err error
	if combined, err = cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("go build %s failed: %w\n%s", pkg, err, string(combined))
	}
	return nil
}

func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, kv := range env {
		if len(kv) >= len(prefix) && kv[:len(prefix)] == prefix {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}
