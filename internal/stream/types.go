package stream

import (
	"context"

	"github.com/markis/omnom/internal/logging"
	"github.com/markis/omnom/internal/producer"
)

// Chunk represents a processed piece of content from the stream
type Chunk struct {
	Content string
	Done    bool
	Error   error
}

// Parser handles the processing of raw stream data into chunks
type Parser struct {
	ctx     context.Context
	chunks  chan Chunk
	logger  logging.Logger
	opts    []producer.Option
	summary producer.Summary
	err     error
}

// NewParser returns a parser that pushes its source with opts. The logger is
// also handed to the push loop.
func NewParser(ctx context.Context, logger logging.Logger, opts ...producer.Option) *Parser {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Parser{
		ctx:    ctx,
		chunks: make(chan Chunk),
		logger: logger,
		opts:   append([]producer.Option{producer.WithLogger(logger)}, opts...),
	}
}

func (p *Parser) Chunks() <-chan Chunk {
	return p.chunks
}

// Summary returns what the push did. Only valid once Chunks is closed.
func (p *Parser) Summary() producer.Summary {
	return p.summary
}

// Err returns the error that ended the push, if any. Only valid once Chunks
// is closed.
func (p *Parser) Err() error {
	return p.err
}

func (p *Parser) send(c Chunk) bool {
	select {
	case p.chunks <- c:
		return true
	case <-p.ctx.Done():
		return false
	}
}
