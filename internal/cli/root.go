package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ExitError carries the exit status of the wrapped command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewRootCommand builds the loggy command. argv0 is loggy's own argv[0]:
// when it is not "loggy" the binary was invoked through an alias and argv0
// names the wrapped program.
func NewRootCommand(argv0 string, runner Runner) *cobra.Command {
	return &cobra.Command{
		Use:   "loggy [command [args...]]",
		Short: "Run a command and keep a log of its output",
		Long: `loggy runs a command, copying its standard output and standard error
line by line to the terminal and to a new file under $HOME/logs/.

Without arguments it logs its own standard input. Installed as a symlink
named after another program, it wraps that program transparently; a pattern
file in ~/.config/loggy or /etc/loggy then selects which command lines are
logged.

Environment:
  NO_LOGGY         any value but 0 disables logging
  LOGGY_CAPTURE    streams to capture, e.g. "stdout" or "stdout,stderr"
  LOGGY_LOG_LEVEL  loggy's own diagnostics (debug, info, warn, error)`,
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if isHelpRequest(argv0, args) {
				return cmd.Help()
			}
			return runner(cmd, append([]string{argv0}, args...))
		},
	}
}

// Execute runs loggy with the given argv.
func Execute(argv []string) error {
	argv0 := "loggy"
	if len(argv) > 0 {
		argv0 = argv[0]
		argv = argv[1:]
	}

	cmd := NewRootCommand(argv0, runWrapped)
	cmd.SetArgs(argv)
	if argv == nil {
		// cobra falls back to os.Args for nil
		cmd.SetArgs([]string{})
	}
	return cmd.Execute()
}

// isHelpRequest reports a lone help flag given to loggy itself. Aliased
// invocations pass every flag to the wrapped program.
func isHelpRequest(argv0 string, args []string) bool {
	if len(args) != 1 || !isLoggy(argv0) {
		return false
	}
	return args[0] == "-h" || args[0] == "--help"
}
