//go:build linux

package tee

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// poller is a level-triggered epoll instance keyed by source index.
type poller struct {
	epfd   int
	events []unix.EpollEvent
}

func newPoller(size int) (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	return &poller{epfd: epfd, events: make([]unix.EpollEvent, max(size, 1))}, nil
}

// add registers fd under key. It returns errNotPollable for descriptors
// epoll refuses, such as regular files and /dev/null.
func (p *poller) add(fd, key int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(key)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		if errors.Is(err, unix.EPERM) {
			return errNotPollable
		}
		return fmt.Errorf("epoll_ctl add fd %d: %w", fd, err)
	}
	return nil
}

func (p *poller) remove(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll_ctl del fd %d: %w", fd, err)
	}
	return nil
}

// wait blocks until at least one registered descriptor is ready and returns
// the keys of the ready descriptors.
func (p *poller) wait(keys []int) ([]int, error) {
	for {
		n, err := unix.EpollWait(p.epfd, p.events, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return keys, fmt.Errorf("epoll_wait: %w", err)
		}
		for _, ev := range p.events[:n] {
			keys = append(keys, int(ev.Fd))
		}
		return keys, nil
	}
}

func (p *poller) close() error {
	return unix.Close(p.epfd)
}
