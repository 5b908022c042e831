package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// Environment variables read by loggy.
const (
	// EnvDisable turns wrapping off for this process and everything it
	// launches. Any value other than "0" disables. loggy sets it on the
	// wrapped program so an aliased command run from it is not logged twice.
	EnvDisable = "NO_LOGGY"
	// EnvCapture selects the captured streams as a comma separated list of
	// "stdout" and "stderr". Unset captures both.
	EnvCapture = "LOGGY_CAPTURE"
	// EnvLogLevel sets loggy's own diagnostics level.
	EnvLogLevel = "LOGGY_LOG_LEVEL"
)

// Env is the environment-derived part of an invocation.
type Env struct {
	Home          string
	Disabled      bool
	CaptureStdout bool
	CaptureStderr bool
	LogLevel      slog.Level
}

// FromEnv reads the loggy environment through lookup (os.LookupEnv in
// production).
func FromEnv(lookup func(string) (string, bool)) (Env, error) {
	env := Env{CaptureStdout: true, CaptureStderr: true, LogLevel: slog.LevelWarn}

	home, ok := lookup("HOME")
	if !ok || home == "" {
		return env, fmt.Errorf("configuration error: HOME must be set")
	}
	env.Home = home

	if v, ok := lookup(EnvDisable); ok && v != "0" {
		env.Disabled = true
	}

	if v, ok := lookup(EnvCapture); ok {
		env.CaptureStdout, env.CaptureStderr = false, false
		for _, tok := range strings.Split(v, ",") {
			switch strings.ToLower(strings.TrimSpace(tok)) {
			case "stdout":
				env.CaptureStdout = true
			case "stderr":
				env.CaptureStderr = true
			case "":
			default:
				return env, fmt.Errorf("configuration error: %s: unknown stream %q (want stdout, stderr)", EnvCapture, tok)
			}
		}
	}

	if v, ok := lookup(EnvLogLevel); ok {
		level, err := ParseLogLevel(v)
		if err != nil {
			return env, fmt.Errorf("configuration error: %s: %w", EnvLogLevel, err)
		}
		env.LogLevel = level
	}

	return env, nil
}

// ParseLogLevel maps a level name to a slog level. Empty means warn.
func ParseLogLevel(input string) (slog.Level, error) {
	level := strings.ToLower(strings.TrimSpace(input))
	switch level {
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "error", "err":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("unsupported log level %q", input)
	}
}
