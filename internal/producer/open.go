package producer

import (
	"context"
	"io"
	"os"
	"strings"
)

// Source is a producer that holds a resource.
type Source interface {
	Producer
	io.Closer
}

type stdinSource struct {
	*ReaderProducer
}

func (stdinSource) Close() error { return nil }

// Open picks an adapter for source: "-" reads stdin, http(s) URLs are
// fetched, anything else is a file path.
func Open(ctx context.Context, source string, chunkSize int) (Source, error) {
	switch {
	case source == "-":
		rp, err := NewReaderProducer(os.Stdin, chunkSize)
		if err != nil {
			return nil, err
		}
		return stdinSource{rp}, nil
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		hp, err := NewHTTPProducer(ctx, source, chunkSize, nil)
		if err != nil {
			return nil, err
		}
		return hp, nil
	default:
		fp, err := NewFileProducer(source, chunkSize)
		if err != nil {
			return nil, err
		}
		return fp, nil
	}
}
