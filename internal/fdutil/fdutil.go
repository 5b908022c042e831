package fdutil

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// FD is an owned raw file descriptor. The owner must call Close exactly once.
type FD struct {
	fd     int
	name   string
	closed bool
}

// NewFD takes ownership of fd.
func NewFD(fd int, name string) *FD {
	return &FD{fd: fd, name: name}
}

// Pipe creates a close-on-exec pipe. The read end is returned as an owned FD
// so it can be multiplexed without the Go runtime poller; the write end is an
// *os.File suitable for exec.Cmd.Stdout/Stderr.
func Pipe(name string) (*FD, *os.File, error) {
	fds, err := pipeCloexec()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s pipe: %w", name, err)
	}
	return NewFD(fds[0], name), os.NewFile(uintptr(fds[1]), name+"-write"), nil
}

// OpenNull opens the null device for reading.
func OpenNull() (*FD, error) {
	fd, err := unix.Open(os.DevNull, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", os.DevNull, err)
	}
	return NewFD(fd, os.DevNull), nil
}

// DiscardOr returns fd unchanged, or an owned read end of the null device
// when fd is nil. Callers can then treat every stream slot the same way.
func DiscardOr(fd *FD) (*FD, error) {
	if fd != nil {
		return fd, nil
	}
	return OpenNull()
}

// Int returns the raw descriptor number.
func (f *FD) Int() int { return f.fd }

// Name returns the human readable name given at construction.
func (f *FD) Name() string { return f.name }

// Read reads from the descriptor. A non-blocking descriptor with no data
// returns unix.EAGAIN.
func (f *FD) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(f.fd, p)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// Close closes the descriptor. Calling Close twice is a no-op.
func (f *FD) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if err := unix.Close(f.fd); err != nil {
		return fmt.Errorf("failed to close %s: %w", f.name, err)
	}
	return nil
}

// SetNonblocking puts fd into non-blocking mode.
func SetNonblocking(fd int) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return fmt.Errorf("failed to set fd %d non-blocking: %w", fd, err)
	}
	return nil
}

// SetBlocking reverts SetNonblocking.
func SetBlocking(fd int) error {
	if err := unix.SetNonblock(fd, false); err != nil {
		return fmt.Errorf("failed to set fd %d blocking: %w", fd, err)
	}
	return nil
}

// Borrowed is a non-owning view of a descriptor that belongs to someone
// else, typically the process's own stdout or stderr. It has no Close
// method; dropping it never closes the descriptor.
type Borrowed struct {
	fd int
}

// Borrow wraps fd without taking ownership.
func Borrow(fd int) Borrowed {
	return Borrowed{fd: fd}
}

// Int returns the raw descriptor number.
func (b Borrowed) Int() int { return b.fd }

// Write writes all of p, retrying short writes. Errors are returned as the
// raw errno so callers can classify them with errors.Is.
func (b Borrowed) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := unix.Write(b.fd, p[written:])
		if n > 0 {
			written += n
		}
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			// The terminal is shared with other processes which may have
			// left it non-blocking; wait until it drains.
			if werr := waitWritable(b.fd); werr != nil {
				return written, werr
			}
			continue
		case err != nil:
			return written, err
		case n == 0:
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

// Read reads from the borrowed descriptor.
func (b Borrowed) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(b.fd, p)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

func waitWritable(fd int) error {
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	for {
		_, err := unix.Poll(pfd, -1)
		if err == unix.EINTR {
			continue
		}
		return err
	}
}

// IsBrokenPipe reports whether err means the reading end of a pipe is gone.
func IsBrokenPipe(err error) bool {
	return errors.Is(err, unix.EPIPE)
}
