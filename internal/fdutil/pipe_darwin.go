package fdutil

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// pipeCloexec sets close-on-exec after the fact, holding ForkLock so no
// child started by os/exec inherits the pipe in between.
func pipeCloexec() ([2]int, error) {
	var fds [2]int
	syscall.ForkLock.RLock()
	defer syscall.ForkLock.RUnlock()
	if err := unix.Pipe(fds[:]); err != nil {
		return fds, err
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	return fds, nil
}
