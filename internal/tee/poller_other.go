//go:build darwin || freebsd || netbsd || openbsd || dragonfly || solaris

package tee

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// poller falls back to poll(2) where epoll is unavailable.
type poller struct {
	fds  []unix.PollFd
	keys []int
}

func newPoller(size int) (*poller, error) {
	return &poller{
		fds:  make([]unix.PollFd, 0, size),
		keys: make([]int, 0, size),
	}, nil
}

// add registers fd under key. poll(2) reports regular files as always
// readable, so they are handed back to the engine to drain directly.
func (p *poller) add(fd, key int) error {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return fmt.Errorf("fstat fd %d: %w", fd, err)
	}
	mode := st.Mode & unix.S_IFMT
	if mode == unix.S_IFREG || (mode == unix.S_IFCHR && isNullDevice(&st)) {
		return errNotPollable
	}
	p.fds = append(p.fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	p.keys = append(p.keys, key)
	return nil
}

func isNullDevice(st *unix.Stat_t) bool {
	var null unix.Stat_t
	if err := unix.Stat("/dev/null", &null); err != nil {
		return false
	}
	return st.Rdev == null.Rdev
}

func (p *poller) remove(fd int) error {
	for i := range p.fds {
		if int(p.fds[i].Fd) == fd {
			p.fds = append(p.fds[:i], p.fds[i+1:]...)
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("fd %d not registered", fd)
}

func (p *poller) wait(keys []int) ([]int, error) {
	for {
		_, err := unix.Poll(p.fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return keys, fmt.Errorf("poll: %w", err)
		}
		for i, pfd := range p.fds {
			if pfd.Revents != 0 {
				keys = append(keys, p.keys[i])
			}
		}
		return keys, nil
	}
}

func (p *poller) close() error { return nil }
