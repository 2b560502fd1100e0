package stream

import (
	"bytes"

	"github.com/markis/omnom/internal/nom"
	"github.com/markis/omnom/internal/producer"
)

var (
	newline  = []byte("\n")
	dataTag  = nom.Tag([]byte("data:"))
	doneMark = []byte("[DONE]")
)

// Event is one data record of an event stream. Data aliases the pushed view.
type Event struct {
	Data []byte
	Done bool
}

// Line parses one newline-terminated line without its terminator or a
// trailing carriage return.
func Line() nom.Parser[[]byte] {
	return nom.Chain(func(b nom.Bindings) []byte {
		return bytes.TrimSuffix(nom.Value[[]byte](b, "text"), []byte("\r"))
	},
		nom.Bind("text", nom.TakeUntil(newline)),
		nom.Bind("newline", nom.Tag(newline)),
	)
}

// Events parses every complete line of the input and keeps the data lines.
// A trailing partial line is left unconsumed.
func Events() nom.Parser[[]Event] {
	lines := nom.Many(Line())
	return func(input []byte) nom.Outcome[[]byte, []Event] {
		return nom.Map(lines(input), toEvents)
	}
}

func toEvents(lines [][]byte) []Event {
	var events []Event
	for _, line := range lines {
		res := dataTag(line)
		if !res.IsDone() {
			// Comments, other fields and blank separators.
			continue
		}
		data := bytes.TrimPrefix(res.Remaining(), []byte(" "))
		if bytes.Equal(data, doneMark) {
			events = append(events, Event{Done: true})
			continue
		}
		events = append(events, Event{Data: data})
	}
	return events
}

func eventChunk(e Event) (Chunk, bool) {
	if e.Done {
		return Chunk{Done: true}, true
	}
	if len(e.Data) == 0 {
		return Chunk{}, false
	}
	return Chunk{Content: string(e.Data) + "\n"}, true
}

// Process pushes src through the event grammar and sends each data record
// as a chunk.
func (p *Parser) Process(src producer.Producer) {
	Drive(p, src, Events(), eventChunk)
}

// Drive pushes src through grammar, converting every parsed item with
// toChunk and sending it on p's channel. The channel is closed when the push
// ends; a push error is sent as a final chunk.
func Drive[T any](p *Parser, src producer.Producer, grammar nom.Parser[[]T], toChunk func(T) (Chunk, bool)) {
	defer close(p.chunks)

	callback := func(start nom.Outcome[nom.Unit, []byte]) nom.Outcome[[]byte, []T] {
		res := nom.FlatMap(start, grammar)
		if !res.IsDone() {
			return res
		}
		for _, item := range res.Output() {
			c, ok := toChunk(item)
			if !ok {
				continue
			}
			if !p.send(c) {
				break
			}
		}
		return res
	}

	p.summary, p.err = producer.Push[[]T](p.ctx, src, callback, p.opts...)
	if p.err != nil {
		p.send(Chunk{Error: p.err})
		return
	}
	if p.summary.Carried > 0 {
		p.logger.Warn("%d trailing bytes did not form a complete record", p.summary.Carried)
	}
}
