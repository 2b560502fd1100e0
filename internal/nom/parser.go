package nom

import (
	"bytes"

	"github.com/markis/omnom/internal/logging"
)

// Parser consumes a prefix of a byte view. Views in its result are re-slices
// of the input, never copies.
type Parser[O any] func(input []byte) Outcome[[]byte, O]

// suspend wraps p as the continuation of an incomplete outcome.
func suspend[O any](p Parser[O]) Outcome[[]byte, O] {
	return Incomplete(Continuation[[]byte, O](p))
}

// Tag matches a literal prefix. On success the literal is consumed and the
// output is an empty view at the start of the input. An input that is a
// strict prefix of the literal is incomplete.
func Tag(literal []byte) Parser[[]byte] {
	return tagFrom(bytes.Clone(literal), 0)
}

// tagFrom matches lit against input, trusting the first checked bytes.
func tagFrom(lit []byte, checked int) Parser[[]byte] {
	return func(input []byte) Outcome[[]byte, []byte] {
		n := min(len(input), len(lit))
		from := min(checked, n)
		if !bytes.Equal(input[from:n], lit[from:n]) {
			return Fail[[]byte, []byte](ErrTag)
		}
		if n < len(lit) {
			return suspend(tagFrom(lit, n))
		}
		return Done(input[len(lit):], input[:0])
	}
}

// Take returns the first n bytes of the input.
func Take(n int) Parser[[]byte] {
	n = max(n, 0)
	var p Parser[[]byte]
	p = func(input []byte) Outcome[[]byte, []byte] {
		if len(input) < n {
			return suspend(p)
		}
		return Done(input[n:], input[:n])
	}
	return p
}

// Rest consumes the whole input. It never needs more.
func Rest() Parser[[]byte] {
	return func(input []byte) Outcome[[]byte, []byte] {
		return Done(input[len(input):], input)
	}
}

// TakeUntil returns the bytes before the first occurrence of delim. The
// delimiter itself stays in the remaining input.
func TakeUntil(delim []byte) Parser[[]byte] {
	return takeUntilFrom(bytes.Clone(delim), 0)
}

func takeUntilFrom(delim []byte, from int) Parser[[]byte] {
	return func(input []byte) Outcome[[]byte, []byte] {
		start := min(from, len(input))
		if i := bytes.Index(input[start:], delim); i >= 0 {
			i += start
			return Done(input[i:], input[:i])
		}
		// A delimiter split across the boundary starts in the last len(delim)-1 bytes.
		next := max(len(input)-len(delim)+1, 0)
		return suspend(takeUntilFrom(delim, next))
	}
}

// Pure consumes nothing and yields v.
func Pure[O any](v O) Parser[O] {
	return func(input []byte) Outcome[[]byte, O] {
		return Done(input, v)
	}
}

// Convert applies a fallible transform to the output of p.
func Convert[A, B any](p Parser[A], f func(A) (B, bool)) Parser[B] {
	return func(input []byte) Outcome[[]byte, B] {
		return MapOpt(p(input), f)
	}
}

// Inspect returns a step that logs the value it is given at debug level and
// passes it through untouched with a Unit output.
func Inspect[T any](log logging.Logger, label string) func(T) Outcome[T, Unit] {
	if log == nil {
		log = logging.NewNoOpLogger()
	}
	return func(v T) Outcome[T, Unit] {
		log.Debug("%s: %v", label, v)
		return Done(v, Unit{})
	}
}
