package fdutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func isOpen(fd int) bool {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	return err == nil
}

func TestSetNonblockingRoundTrip(t *testing.T) {
	r, w, err := Pipe("test")
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	require.NoError(t, SetNonblocking(r.Int()))
	buf := make([]byte, 8)
	_, err = r.Read(buf)
	assert.ErrorIs(t, err, unix.EAGAIN)

	require.NoError(t, SetBlocking(r.Int()))
	flags, err := unix.FcntlInt(uintptr(r.Int()), unix.F_GETFL, 0)
	require.NoError(t, err)
	assert.Zero(t, flags&unix.O_NONBLOCK)
}

func TestSetNonblockingInvalidDescriptor(t *testing.T) {
	assert.Error(t, SetNonblocking(-1))
}

func TestBorrowedWriteDoesNotClose(t *testing.T) {
	r, w, err := Pipe("borrow")
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	func() {
		b := Borrow(int(w.Fd()))
		n, err := b.Write([]byte("hello\n"))
		require.NoError(t, err)
		assert.Equal(t, 6, n)
	}()

	assert.True(t, isOpen(int(w.Fd())), "borrowed descriptor must remain open")

	buf := make([]byte, 16)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(buf[:n]))
}

func TestBorrowedWriteBrokenPipe(t *testing.T) {
	CatchBrokenPipe()

	r, w, err := Pipe("broken")
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, r.Close())

	_, err = Borrow(int(w.Fd())).Write([]byte("x"))
	require.Error(t, err)
	assert.True(t, IsBrokenPipe(err))
}

func TestFDCloseIsIdempotent(t *testing.T) {
	r, w, err := Pipe("close")
	require.NoError(t, err)
	defer w.Close()

	fd := r.Int()
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.False(t, isOpen(fd))
}

func TestDiscardOr(t *testing.T) {
	r, w, err := Pipe("keep")
	require.NoError(t, err)
	defer w.Close()
	defer r.Close()

	same, err := DiscardOr(r)
	require.NoError(t, err)
	assert.Same(t, r, same)

	null, err := DiscardOr(nil)
	require.NoError(t, err)
	defer null.Close()
	assert.Equal(t, os.DevNull, null.Name())

	n, err := null.Read(make([]byte, 4))
	require.NoError(t, err)
	assert.Zero(t, n, "null device reads as end-of-stream")
}

func TestPipeIsCloseOnExec(t *testing.T) {
	r, w, err := Pipe("cloexec")
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	flags, err := unix.FcntlInt(uintptr(r.Int()), unix.F_GETFD, 0)
	require.NoError(t, err)
	assert.NotZero(t, flags&unix.FD_CLOEXEC)
}
