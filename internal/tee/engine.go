package tee

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/iambrandonn/loggy/internal/fdutil"
	"golang.org/x/sys/unix"
)

var errNotPollable = errors.New("descriptor cannot be polled")

// Descriptor is a readable raw descriptor. Descriptors that also implement
// io.Closer are owned by the engine and closed at end-of-stream; all others
// are borrowed and only switched back to blocking mode.
type Descriptor interface {
	Int() int
	Read(p []byte) (int, error)
}

// LogSink is the shared log file every source is copied to.
type LogSink interface {
	io.Writer
	// Remove deletes the sink. It is called when nothing was logged.
	Remove() error
}

// Source pairs a readable descriptor with the sink that mirrors it.
type Source struct {
	Name   string
	Reader Descriptor
	Mirror io.Writer

	buf          *Buffer
	mirrorBroken bool
	done         bool
}

// NewSource returns a source that copies r to mirror.
func NewSource(name string, r Descriptor, mirror io.Writer) *Source {
	return &Source{Name: name, Reader: r, Mirror: mirror}
}

// Option configures an Engine.
type Option func(*Engine)

// WithFirstFlush sets a hook that runs once, right before the first batch
// of complete lines is written anywhere.
func WithFirstFlush(fn func() error) Option {
	return func(e *Engine) { e.onFirstFlush = fn }
}

// WithBufferSize overrides InitialBufferSize.
func WithBufferSize(n int) Option {
	return func(e *Engine) { e.bufSize = n }
}

// Engine copies every source to its mirror and to the log, one batch of
// whole lines at a time, on the calling goroutine.
type Engine struct {
	log          LogSink
	logger       *slog.Logger
	onFirstFlush func() error
	bufSize      int
	written      bool
}

// New creates an engine writing to log.
func New(log LogSink, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		log:     log,
		logger:  logger,
		bufSize: InitialBufferSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Written reports whether any batch reached the log.
func (e *Engine) Written() bool { return e.written }

// Run blocks until every source reaches end-of-stream, then flushes the
// unterminated remainder of each source. If nothing was ever logged the log
// sink is removed. Any error other than a closed mirror pipe is fatal and
// returned immediately.
func (e *Engine) Run(sources []*Source) error {
	if len(sources) == 0 {
		return fmt.Errorf("no sources to tee")
	}

	p, err := newPoller(len(sources))
	if err != nil {
		return err
	}
	defer p.close()
	defer func() {
		for _, src := range sources {
			if !src.done {
				e.release(src)
			}
		}
	}()

	active := 0
	for i, src := range sources {
		src.buf = NewBuffer(e.bufSize)
		fd := src.Reader.Int()
		if err := fdutil.SetNonblocking(fd); err != nil {
			return err
		}

		err := p.add(fd, i)
		if errors.Is(err, errNotPollable) {
			e.logger.Debug("draining unpollable source", "source", src.Name)
			if err := e.drain(src); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		active++
	}

	keys := make([]int, 0, len(sources))
	for active > 0 {
		keys, err = p.wait(keys[:0])
		if err != nil {
			return err
		}

		for _, key := range keys {
			src := sources[key]
			if src.done {
				continue
			}

			eof, err := e.handleRead(src)
			if err != nil {
				return err
			}
			if !eof {
				continue
			}

			if err := p.remove(src.Reader.Int()); err != nil {
				return err
			}
			e.logger.Debug("source closed", "source", src.Name)
			e.release(src)
			active--
		}
	}

	return e.finish(sources)
}

// drain reads src to end-of-stream without waiting for readiness.
func (e *Engine) drain(src *Source) error {
	for {
		eof, err := e.handleRead(src)
		if err != nil {
			return err
		}
		if eof {
			e.release(src)
			return nil
		}
	}
}

// handleRead reads once into the tail of the source buffer and flushes
// every complete line that read produced. A read that fills the buffer
// doubles it and reads again straight away.
func (e *Engine) handleRead(src *Source) (eof bool, err error) {
	buf := src.buf
	for {
		// A zero-length read would look like end-of-stream.
		if buf.Full() {
			buf.Grow()
		}
		n, err := src.Reader.Read(buf.Tail())
		if errors.Is(err, unix.EAGAIN) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to read from %s: %w", src.Name, err)
		}
		if n == 0 {
			return true, nil
		}

		start := buf.Len()
		buf.Commit(n)
		filled := buf.Full()

		if end := buf.LastLineEnd(start); end > 0 {
			if err := e.flush(src, buf.Bytes()[:end]); err != nil {
				return false, err
			}
			buf.Consume(end)
		}

		if filled {
			buf.Grow()
			continue
		}
		buf.Shrink()
		return false, nil
	}
}

func (e *Engine) flush(src *Source, batch []byte) error {
	if !e.written {
		if e.onFirstFlush != nil {
			if err := e.onFirstFlush(); err != nil {
				return err
			}
		}
		e.written = true
	}

	if err := e.mirror(src, batch); err != nil {
		return err
	}
	if _, err := e.log.Write(batch); err != nil {
		return fmt.Errorf("failed to write %s to log file: %w", src.Name, err)
	}
	return nil
}

// mirror writes to the source's mirror sink. A mirror whose reader went
// away is skipped from then on; the wrapped program keeps being logged.
func (e *Engine) mirror(src *Source, p []byte) error {
	if src.mirrorBroken || len(p) == 0 {
		return nil
	}
	if _, err := src.Mirror.Write(p); err != nil {
		if fdutil.IsBrokenPipe(err) {
			e.logger.Debug("mirror closed, continuing to log only", "source", src.Name)
			src.mirrorBroken = true
			return nil
		}
		return fmt.Errorf("failed to write %s to terminal: %w", src.Name, err)
	}
	return nil
}

func (e *Engine) finish(sources []*Source) error {
	for _, src := range sources {
		if err := e.mirror(src, src.buf.Bytes()); err != nil {
			return err
		}
	}

	if !e.written {
		if err := e.log.Remove(); err != nil {
			return err
		}
		return nil
	}

	for _, src := range sources {
		rest := src.buf.Bytes()
		if len(rest) == 0 {
			continue
		}
		if _, err := e.log.Write(rest); err != nil {
			return fmt.Errorf("failed to write %s to log file: %w", src.Name, err)
		}
	}
	return nil
}

// release closes an owned reader or hands a borrowed one back in blocking
// mode.
func (e *Engine) release(src *Source) {
	src.done = true
	if c, ok := src.Reader.(io.Closer); ok {
		if err := c.Close(); err != nil {
			e.logger.Warn("failed to close source", "source", src.Name, "error", err)
		}
		return
	}
	if err := fdutil.SetBlocking(src.Reader.Int()); err != nil {
		e.logger.Warn("failed to restore blocking mode", "source", src.Name, "error", err)
	}
}
