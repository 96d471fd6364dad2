package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"time"
)

const flushEvery = 250 * time.Millisecond

// lineWriter hands formatted lines to a single goroutine that writes them to
// every sink. Buffered output is flushed periodically, on Flush and on Close.
type lineWriter struct {
	lines chan []byte
	flush chan chan error
	done  chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

func newLineWriter(sinks []io.Writer, queue int) *lineWriter {
	if queue <= 0 {
		queue = 256
	}
	live := make([]io.Writer, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	w := &lineWriter{
		lines: make(chan []byte, queue),
		flush: make(chan chan error),
		done:  make(chan struct{}),
	}
	go w.run(bufio.NewWriterSize(io.MultiWriter(live...), 64*1024))
	return w
}

func (w *lineWriter) run(out *bufio.Writer) {
	defer close(w.done)
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.record(out.Flush())
				return
			}
			if _, err := out.Write(line); err != nil {
				w.record(err)
			}
		case <-ticker.C:
			if out.Buffered() > 0 {
				w.record(out.Flush())
			}
		case ack := <-w.flush:
			closed := w.drain(out)
			ack <- out.Flush()
			if closed {
				return
			}
		}
	}
}

// drain writes lines already queued without blocking and reports whether the
// queue was closed meanwhile.
func (w *lineWriter) drain(out *bufio.Writer) bool {
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				return true
			}
			if _, err := out.Write(line); err != nil {
				w.record(err)
			}
		default:
			return false
		}
	}
}

// WriteLine queues a copy of line. It blocks while the queue is full so no
// record is dropped.
func (w *lineWriter) WriteLine(line []byte) error {
	if err := w.Err(); err != nil {
		return err
	}
	if len(line) == 0 {
		return nil
	}
	w.lines <- append([]byte(nil), line...)
	return nil
}

// Flush waits until every queued line reached the sinks.
func (w *lineWriter) Flush() error {
	ack := make(chan error, 1)
	select {
	case w.flush <- ack:
		return <-ack
	case <-w.done:
		return w.Err()
	}
}

// Close drains the queue and returns the first write error.
func (w *lineWriter) Close() error {
	w.closeOnce.Do(func() { close(w.lines) })
	<-w.done
	return w.Err()
}

// Err returns the first write error seen by the writer goroutine.
func (w *lineWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *lineWriter) record(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = errors.Join(errors.New("logger: sink write failed"), err)
	}
}
