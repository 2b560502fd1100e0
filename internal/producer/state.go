package producer

import (
	"errors"
	"fmt"

	"github.com/markis/omnom/internal/nom"
)

// Kind identifies the variant of a producer State.
type Kind uint8

const (
	KindData     Kind = iota // a chunk was read, more may follow
	KindEOF                  // the final, possibly empty, chunk
	KindContinue             // nothing available yet, retry
	KindError                // the source failed for good
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindEOF:
		return "eof"
	case KindContinue:
		return "continue"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// State is the result of asking a producer for its next chunk.
type State struct {
	Kind  Kind
	Chunk []byte
	Code  nom.ErrorCode
	Err   error
}

func Data(chunk []byte) State {
	return State{Kind: KindData, Chunk: chunk}
}

func EOF(chunk []byte) State {
	return State{Kind: KindEOF, Chunk: chunk}
}

func Continue() State {
	return State{Kind: KindContinue}
}

// Failed reports an unrecoverable source failure. err may be nil.
func Failed(code nom.ErrorCode, err error) State {
	return State{Kind: KindError, Code: code, Err: err}
}

func (s State) String() string {
	switch s.Kind {
	case KindData, KindEOF:
		return fmt.Sprintf("%s(%d bytes)", s.Kind, len(s.Chunk))
	case KindError:
		return fmt.Sprintf("error(%v)", s.error())
	default:
		return s.Kind.String()
	}
}

func (s State) error() error {
	return &Error{Code: s.Code, Err: s.Err}
}

// Error is a fatal push failure: the code says where it happened, Err is the
// underlying cause when there is one.
type Error struct {
	Code nom.ErrorCode
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Code, e.Err)
	}
	return e.Code.Error()
}

// Unwrap exposes both the code and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Code}
	}
	return []error{e.Code, e.Err}
}

// ErrWouldBlock may be returned by readers that cannot make progress yet.
// Reader-backed producers turn it into Continue.
var ErrWouldBlock = errors.New("producer: would block")
