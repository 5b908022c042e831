package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/iambrandonn/loggy/internal/config"
	"github.com/iambrandonn/loggy/internal/fdutil"
	"github.com/iambrandonn/loggy/internal/fsutil"
	"github.com/iambrandonn/loggy/internal/identity"
	"github.com/iambrandonn/loggy/internal/pathsearch"
	"github.com/iambrandonn/loggy/internal/tee"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Exit codes used when the wrapped program's own status is unavailable.
const (
	ExitNotFound = 127
	ExitFailure  = 1
)

// LineBufferShim forces line buffered stdio in programs whose output is a
// pipe.
var LineBufferShim = []string{"stdbuf", "-oL", "-eL", "--"}

// Streams are the supervisor's own standard streams.
type Streams struct {
	In  *os.File
	Out *os.File
	Err *os.File
}

// CommandSupervisor runs one wrapped program and logs its output.
type CommandSupervisor struct {
	logger  *slog.Logger
	streams Streams

	// PathList is searched for the wrapped program (normally $PATH).
	PathList string
	// Self is the canonical path of the loggy binary, skipped by the search.
	Self string
	// Environ is the environment passed on to the wrapped program.
	Environ []string
	// Detach runs once before the wrapped program starts.
	Detach func() error
	// Exec replaces the current process. It only returns on failure.
	Exec func(path string, argv, env []string) error
	// Shim is prepended to the wrapped command line when it can be found.
	Shim []string
}

// NewCommandSupervisor creates a supervisor using the process environment.
func NewCommandSupervisor(streams Streams, logger *slog.Logger) *CommandSupervisor {
	self, err := pathsearch.Self()
	if err != nil {
		logger.Warn("could not determine own executable", "error", err)
	}
	return &CommandSupervisor{
		logger:   logger,
		streams:  streams,
		PathList: os.Getenv("PATH"),
		Self:     self,
		Environ:  os.Environ(),
		Detach:   fdutil.Detach,
		Exec:     unix.Exec,
		Shim:     LineBufferShim,
	}
}

// Run executes inv and returns the exit status loggy should exit with. An
// error is returned for failures of loggy itself (configuration, log file
// I/O); the wrapped program's failures are reported through the status.
func (s *CommandSupervisor) Run(ctx context.Context, inv Invocation) (int, error) {
	fdutil.CatchBrokenPipe()
	if inv.Mode == ModePassthrough {
		return s.runPassthrough(inv)
	}
	if len(inv.Args) == 0 {
		return ExitFailure, errors.New("no command to run")
	}

	name := inv.Args[0]
	path, err := pathsearch.LookPathExcluding(name, s.PathList, s.Self)
	if errors.Is(err, pathsearch.ErrNotFound) {
		fmt.Fprintf(s.streams.Err, "%s: command not found\n", name)
		return ExitNotFound, nil
	}
	if err != nil {
		return ExitFailure, fmt.Errorf("failed to find command: %w", err)
	}
	s.logger.Debug("resolved command", "name", name, "path", path, "mode", inv.Mode)

	if inv.Env.Disabled {
		return s.execDirect(path, inv.Args)
	}
	if !inv.Env.CaptureStdout && !inv.Env.CaptureStderr {
		s.logger.Debug("no stream selected for capture", "env", config.EnvCapture)
		return s.execDirect(path, inv.Args)
	}

	resolver := &identity.Resolver{}
	if inv.Mode == ModeAliased {
		patterns, err := config.Load(inv.Env.Home)
		if err != nil {
			return ExitFailure, err
		}
		resolver.Patterns = patterns
	}

	id, err := resolver.Resolve(inv.Args)
	if errors.Is(err, identity.ErrNotLogged) {
		s.logger.Debug("command not selected by pattern file", "command", identity.Flatten(inv.Args))
		return s.execDirect(path, inv.Args)
	}
	if err != nil {
		return ExitFailure, err
	}

	logFile, err := fsutil.CreateExclusive(filepath.Join(inv.Env.Home, "logs"), id.Prefix)
	if err != nil {
		return ExitFailure, err
	}

	if err := s.Detach(); err != nil {
		logFile.Remove()
		return ExitFailure, err
	}
	ignoreInterrupts()

	return s.runLogged(ctx, inv, path, id, logFile)
}

func (s *CommandSupervisor) runLogged(ctx context.Context, inv Invocation, path string, id identity.Identity, logFile *fsutil.LogFile) (int, error) {
	var stdoutR, stderrR *fdutil.FD
	var stdoutW, stderrW *os.File
	var err error

	if inv.Env.CaptureStdout {
		if stdoutR, stdoutW, err = fdutil.Pipe("stdout"); err != nil {
			logFile.Remove()
			return ExitFailure, err
		}
	}
	if inv.Env.CaptureStderr {
		if stderrR, stderrW, err = fdutil.Pipe("stderr"); err != nil {
			logFile.Remove()
			return ExitFailure, err
		}
	}

	proc, err := s.start(ctx, path, inv.Args, stdoutW, stderrW)
	// The child holds its own copies of the write ends.
	closeFile(stdoutW)
	closeFile(stderrW)
	if err != nil {
		closeFD(stdoutR)
		closeFD(stderrR)
		logFile.Remove()
		return ExitFailure, err
	}
	s.logger.Debug("command started", "pid", proc.Process.Pid, "log", logFile.Path())

	sources, err := s.sources(inv.Env, stdoutR, stderrR)
	if err != nil {
		logFile.Remove()
		return ExitFailure, err
	}

	engine := tee.New(logFile, s.logger, tee.WithFirstFlush(func() error {
		fmt.Fprintf(s.streams.Err, "[loggy] logging to %s\n", logFile.Path())
		if _, err := fmt.Fprintf(logFile, "[loggy] command: %s\n", id.Command); err != nil {
			return fmt.Errorf("failed to write to log file: %w", err)
		}
		return nil
	}))
	if err := engine.Run(sources); err != nil {
		return ExitFailure, err
	}
	if engine.Written() {
		if err := logFile.Finish(); err != nil {
			return ExitFailure, err
		}
	}

	return exitStatus(proc.Wait()), nil
}

// sources pairs each child stream with the terminal stream it mirrors. A
// stream that is not captured reads from the null device and mirrors into
// nothing; the child writes it straight to the terminal instead.
func (s *CommandSupervisor) sources(env config.Env, stdoutR, stderrR *fdutil.FD) ([]*tee.Source, error) {
	stdout, err := fdutil.DiscardOr(stdoutR)
	if err != nil {
		closeFD(stderrR)
		return nil, err
	}
	stderr, err := fdutil.DiscardOr(stderrR)
	if err != nil {
		stdout.Close()
		return nil, err
	}

	return []*tee.Source{
		tee.NewSource("stdout", stdout, s.mirror(env.CaptureStdout, s.streams.Out)),
		tee.NewSource("stderr", stderr, s.mirror(env.CaptureStderr, s.streams.Err)),
	}, nil
}

func (s *CommandSupervisor) mirror(captured bool, f *os.File) io.Writer {
	if !captured {
		return io.Discard
	}
	return fdutil.Borrow(int(f.Fd()))
}

// start spawns the wrapped program through the line buffering shim, falling
// back to running it directly when the shim is not installed.
func (s *CommandSupervisor) start(ctx context.Context, path string, args []string, stdout, stderr *os.File) (*exec.Cmd, error) {
	if len(s.Shim) > 0 {
		argv := append(append(append([]string{}, s.Shim...), path), args[1:]...)
		proc := s.command(ctx, argv[0], argv, stdout, stderr)
		err := proc.Start()
		if err == nil {
			return proc, nil
		}
		if !errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("failed to start process: %w", err)
		}
		s.logger.Warn("line buffering shim not found, running command directly", "shim", s.Shim[0])
	}

	proc := s.command(ctx, path, args, stdout, stderr)
	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("failed to start process: %w", err)
	}
	return proc, nil
}

func (s *CommandSupervisor) command(ctx context.Context, name string, argv []string, stdout, stderr *os.File) *exec.Cmd {
	proc := exec.CommandContext(ctx, name, argv[1:]...)
	proc.Args[0] = argv[0]
	proc.Env = append(append([]string{}, s.Environ...), config.EnvDisable+"=1")
	proc.Stdin = s.streams.In
	proc.Stdout = s.streams.Out
	proc.Stderr = s.streams.Err
	if stdout != nil {
		proc.Stdout = stdout
	}
	if stderr != nil {
		proc.Stderr = stderr
	}
	return proc
}

// execDirect replaces loggy with the wrapped program.
func (s *CommandSupervisor) execDirect(path string, args []string) (int, error) {
	s.logger.Debug("running command without logging", "path", path)
	err := s.Exec(path, args, s.Environ)
	return ExitFailure, fmt.Errorf("failed to exec command: %w", err)
}

// runPassthrough logs loggy's own standard input, mirroring it to standard
// output.
func (s *CommandSupervisor) runPassthrough(inv Invocation) (int, error) {
	if inv.Env.Disabled {
		if _, err := io.Copy(s.streams.Out, s.streams.In); err != nil {
			return ExitFailure, fmt.Errorf("failed to copy input: %w", err)
		}
		return 0, nil
	}

	id, err := (&identity.Resolver{}).Resolve(inv.Args)
	if err != nil {
		return ExitFailure, err
	}
	logFile, err := fsutil.CreateExclusive(filepath.Join(inv.Env.Home, "logs"), id.Prefix)
	if err != nil {
		return ExitFailure, err
	}

	if term.IsTerminal(int(s.streams.In.Fd())) {
		fmt.Fprintln(s.streams.Err, "[loggy] reading from terminal, press Ctrl-D to finish")
	}

	engine := tee.New(logFile, s.logger, tee.WithFirstFlush(func() error {
		fmt.Fprintf(s.streams.Err, "[loggy] logging to %s\n", logFile.Path())
		return nil
	}))
	source := tee.NewSource("stdin", fdutil.Borrow(int(s.streams.In.Fd())), fdutil.Borrow(int(s.streams.Out.Fd())))
	if err := engine.Run([]*tee.Source{source}); err != nil {
		return ExitFailure, err
	}
	if engine.Written() {
		if err := logFile.Finish(); err != nil {
			return ExitFailure, err
		}
	}
	return 0, nil
}

// exitStatus maps the wrapped program's wait result to loggy's exit code.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
	}
	return ExitFailure
}

// ignoreInterrupts keeps loggy alive on ^C and ^\ so it can drain what the
// wrapped program writes while it shuts down. Caught signals, unlike ignored
// ones, revert to their defaults in the child.
func ignoreInterrupts() {
	signal.Notify(make(chan os.Signal, 1), os.Interrupt, syscall.SIGQUIT)
}

func closeFile(f *os.File) {
	if f != nil {
		f.Close()
	}
}

func closeFD(fd *fdutil.FD) {
	if fd != nil {
		fd.Close()
	}
}
