package fdutil

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// Detach moves the process into a new session unless it already leads its
// process group (setsid fails for group leaders), then ignores SIGHUP so that
// closing the launching terminal does not kill the process. The ignored
// disposition is inherited across exec, so children survive the hangup too.
//
// Call it once, before spawning the wrapped program.
func Detach() error {
	pgid, err := unix.Getpgid(0)
	if err != nil {
		return fmt.Errorf("failed to get process group: %w", err)
	}
	if pgid != unix.Getpid() {
		if _, err := unix.Setsid(); err != nil {
			return fmt.Errorf("failed to setsid: %w", err)
		}
	}

	signal.Ignore(syscall.SIGHUP)
	return nil
}

// CatchBrokenPipe stops the Go runtime from killing the process when a write
// to stdout or stderr hits a closed pipe. Unlike signal.Ignore, a caught
// signal is reset to its default disposition in exec'd children.
func CatchBrokenPipe() {
	signal.Notify(make(chan os.Signal, 1), syscall.SIGPIPE)
}
