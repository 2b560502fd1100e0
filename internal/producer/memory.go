package producer

import (
	"fmt"

	"github.com/markis/omnom/internal/nom"
)

// Producer is a source of byte chunks. Produce is called repeatedly by Push
// until the producer reports itself exhausted or fails.
type Producer interface {
	Produce() State
	Exhausted() bool
}

// MemoryProducer serves a borrowed byte slice in fixed-size chunks.
type MemoryProducer struct {
	buffer   []byte
	size     int
	index    int
	finished bool
}

// NewMemoryProducer returns a producer over buffer. The buffer is not copied
// and must not be modified while the producer is in use.
func NewMemoryProducer(buffer []byte, chunkSize int) (*MemoryProducer, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("invalid chunk size: %d", chunkSize)
	}
	return &MemoryProducer{buffer: buffer, size: chunkSize}, nil
}

// Produce returns Data while more than one chunk remains ahead of the cursor,
// then the rest of the buffer as EOF. Calling it again after EOF fails with
// ErrExhausted.
func (p *MemoryProducer) Produce() State {
	if p.finished {
		return Failed(nom.ErrExhausted, nil)
	}

	length := len(p.buffer)
	if p.index+p.size < length {
		next := p.index + p.size
		// Capacity is capped so appends to a chunk never reach the next one.
		chunk := p.buffer[p.index:next:next]
		p.index = next
		return Data(chunk)
	}

	chunk := p.buffer[p.index:length:length]
	p.index = length
	p.finished = true
	return EOF(chunk)
}

func (p *MemoryProducer) Exhausted() bool {
	return p.finished
}
