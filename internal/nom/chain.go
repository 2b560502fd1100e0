package nom

// Field is one named step of a Chain.
type Field struct {
	Name   string
	Parser Parser[any]
}

// Bind names a parser for use in a Chain.
func Bind[T any](name string, p Parser[T]) Field {
	return Field{
		Name: name,
		Parser: func(input []byte) Outcome[[]byte, any] {
			return Map(p(input), func(v T) any { return v })
		},
	}
}

// Bindings holds the values produced by the fields of a Chain, in order.
type Bindings struct {
	names  []string
	values []any
}

// Get returns the value bound to name.
func (b Bindings) Get(name string) (any, bool) {
	for i, n := range b.names[:len(b.values)] {
		if n == name {
			return b.values[i], true
		}
	}
	return nil, false
}

func (b Bindings) Names() []string {
	return b.names[:len(b.values)]
}

func (b Bindings) Len() int {
	return len(b.values)
}

// Value returns the value bound to name as a T, or the zero T when the name
// is unbound or holds another type.
func Value[T any](b Bindings, name string) T {
	v, _ := b.Get(name)
	t, _ := v.(T)
	return t
}

// Chain runs fields strictly left to right, each on the remaining input of the
// previous one, and assembles their outputs. The first failing field fails the
// chain. A field that needs more input suspends the whole chain; resuming
// keeps the fields already bound and continues with the suspended one.
func Chain[O any](assemble func(Bindings) O, fields ...Field) Parser[O] {
	fs := append([]Field(nil), fields...)
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
	}
	c := &chain[O]{fields: fs, names: names, assemble: assemble}
	return func(input []byte) Outcome[[]byte, O] {
		return c.run(input, 0, 0, nil, nil)
	}
}

type chain[O any] struct {
	fields   []Field
	names    []string
	assemble func(Bindings) O
}

// run continues the chain at field index with consumed bytes already taken
// by earlier fields. pending, when set, resumes field index.
func (c *chain[O]) run(input []byte, index, consumed int, bound []any, pending Continuation[[]byte, any]) Outcome[[]byte, O] {
	if consumed > len(input) {
		return Fail[[]byte, O](ErrFailure)
	}
	values := make([]any, index, len(c.fields))
	copy(values, bound)

	for i := index; i < len(c.fields); i++ {
		view := input[consumed:]
		var res Outcome[[]byte, any]
		if pending != nil {
			res = pending(view)
			pending = nil
		} else {
			res = c.fields[i].Parser(view)
		}

		switch res.state {
		case StateError:
			return Fail[[]byte, O](res.code)
		case StateIncomplete:
			at, offset, resume := i, consumed, res.Resume
			return Incomplete(func(more []byte) Outcome[[]byte, O] {
				return c.run(more, at, offset, values, resume)
			})
		}

		values = append(values, res.output)
		consumed += len(view) - len(res.remaining)
	}

	return Done(input[consumed:], c.assemble(Bindings{names: c.names, values: values}))
}

// Then runs first, discards its output, and runs second on what is left.
func Then[A, B any](first Parser[A], second Parser[B]) Parser[B] {
	return Chain(func(b Bindings) B {
		return Value[B](b, "then")
	}, Bind("", first), Bind("then", second))
}

// Many applies p as long as it succeeds and consumes input. It stops at the
// first item that fails or needs more input and leaves that item's bytes in
// the remaining input, so a push loop carries them to the next chunk.
func Many[O any](p Parser[O]) Parser[[]O] {
	return func(input []byte) Outcome[[]byte, []O] {
		var items []O
		rest := input
		for {
			res := p(rest)
			if !res.IsDone() || len(res.remaining) == len(rest) {
				break
			}
			items = append(items, res.output)
			rest = res.remaining
		}
		return Done(rest, items)
	}
}
