//go:build linux || freebsd || netbsd || openbsd || dragonfly || solaris

package fdutil

import "golang.org/x/sys/unix"

func pipeCloexec() ([2]int, error) {
	var fds [2]int
	err := unix.Pipe2(fds[:], unix.O_CLOEXEC)
	return fds, err
}
