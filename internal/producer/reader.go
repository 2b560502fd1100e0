package producer

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/markis/omnom/internal/nom"
)

// ReaderProducer reads fixed-size chunks from an io.Reader. Every chunk is a
// freshly allocated buffer, so views handed out earlier are never overwritten.
type ReaderProducer struct {
	r        io.Reader
	size     int
	finished bool
}

// NewReaderProducer returns a producer reading chunkSize bytes at a time from r.
func NewReaderProducer(r io.Reader, chunkSize int) (*ReaderProducer, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("invalid chunk size: %d", chunkSize)
	}
	return &ReaderProducer{r: r, size: chunkSize}, nil
}

// Produce tries to fill one chunk.
//
//   - a full buffer is Data
//   - a stall (a (0, nil) read, ErrWouldBlock or a deadline) is Continue when
//     nothing was read yet, Data with the partial buffer otherwise
//   - io.EOF is EOF with whatever was read so far
//   - any other error is fatal
func (p *ReaderProducer) Produce() State {
	if p.finished {
		return Failed(nom.ErrExhausted, nil)
	}

	buf := make([]byte, p.size)
	filled := 0
	for filled < len(buf) {
		n, err := p.r.Read(buf[filled:])
		filled += n

		switch {
		case errors.Is(err, io.EOF):
			p.finished = true
			return EOF(buf[:filled])
		case stalled(n, err):
			if filled == 0 {
				return Continue()
			}
			return Data(buf[:filled])
		case err != nil:
			p.finished = true
			return Failed(nom.ErrProducer, err)
		}
	}
	return Data(buf)
}

func (p *ReaderProducer) Exhausted() bool {
	return p.finished
}

func stalled(n int, err error) bool {
	if err == nil {
		return n == 0
	}
	return errors.Is(err, ErrWouldBlock) || errors.Is(err, os.ErrDeadlineExceeded)
}

// FileProducer reads a file in fixed-size chunks.
type FileProducer struct {
	*ReaderProducer
	file *os.File
}

// NewFileProducer opens path for chunked reading. The caller must Close it.
func NewFileProducer(path string, chunkSize int) (*FileProducer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	rp, err := NewReaderProducer(f, chunkSize)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &FileProducer{ReaderProducer: rp, file: f}, nil
}

func (p *FileProducer) Close() error {
	return p.file.Close()
}
