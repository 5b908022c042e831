package cli

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/iambrandonn/loggy/internal/config"
	"github.com/iambrandonn/loggy/internal/supervisor"
	"github.com/spf13/cobra"
)

// Runner executes a full argv (argv[0] included).
type Runner func(cmd *cobra.Command, argv []string) error

func runWrapped(cmd *cobra.Command, argv []string) error {
	env, err := config.FromEnv(os.LookupEnv)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: env.LogLevel,
	}))

	inv := supervisor.ParseInvocation(argv, env)
	sup := supervisor.NewCommandSupervisor(supervisor.Streams{
		In:  os.Stdin,
		Out: os.Stdout,
		Err: os.Stderr,
	}, logger)

	code, err := sup.Run(cmd.Context(), inv)
	if err != nil {
		return err
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

func isLoggy(argv0 string) bool {
	return filepath.Base(argv0) == supervisor.ProgramName
}
