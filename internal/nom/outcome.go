package nom

import "fmt"

// Unit is the empty output of parsers that only consume input.
type Unit = struct{}

// State identifies which variant of an Outcome is active.
type State uint8

const (
	StateDone State = iota
	StateError
	StateIncomplete
)

func (s State) String() string {
	switch s {
	case StateDone:
		return "done"
	case StateError:
		return "error"
	case StateIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// Continuation resumes a suspended parse. It must be called with the whole
// input the suspended parse was given, extended with the bytes that arrived
// since, so that views in its result stay inside the caller's buffer.
type Continuation[I, O any] func(input []byte) Outcome[I, O]

// Outcome is the result of applying a parsing step to an input view of type I.
// Exactly one of done, error or incomplete is active.
type Outcome[I, O any] struct {
	state     State
	remaining I
	output    O
	code      ErrorCode
	resume    Continuation[I, O]
}

// Done builds a successful outcome. For byte parsers remaining must be a
// suffix of the input view.
func Done[I, O any](remaining I, output O) Outcome[I, O] {
	return Outcome[I, O]{state: StateDone, remaining: remaining, output: output}
}

// Fail builds a failed outcome carrying code.
func Fail[I, O any](code ErrorCode) Outcome[I, O] {
	return Outcome[I, O]{state: StateError, code: code}
}

// Incomplete builds an outcome that needs more input before it can decide.
func Incomplete[I, O any](resume Continuation[I, O]) Outcome[I, O] {
	return Outcome[I, O]{state: StateIncomplete, resume: resume}
}

// Begin wraps a view as the trivial starting outcome fed to a parser chain.
func Begin(input []byte) Outcome[Unit, []byte] {
	return Done(Unit{}, input)
}

func (o Outcome[I, O]) State() State       { return o.state }
func (o Outcome[I, O]) IsDone() bool       { return o.state == StateDone }
func (o Outcome[I, O]) IsError() bool      { return o.state == StateError }
func (o Outcome[I, O]) IsIncomplete() bool { return o.state == StateIncomplete }

// Remaining returns the unconsumed input of a done outcome, or the zero value.
func (o Outcome[I, O]) Remaining() I {
	return o.remaining
}

// Output returns the extracted value of a done outcome, or the zero value.
func (o Outcome[I, O]) Output() O {
	return o.output
}

// Code returns the error code of a failed outcome. It is ErrFailure for any
// other state, so callers should check IsError first.
func (o Outcome[I, O]) Code() ErrorCode {
	return o.code
}

// Resume continues a suspended parse with the extended input. Resuming an
// outcome that is not incomplete fails with ErrNotSuspended.
func (o Outcome[I, O]) Resume(input []byte) Outcome[I, O] {
	if o.state != StateIncomplete || o.resume == nil {
		return Fail[I, O](ErrNotSuspended)
	}
	return o.resume(input)
}

func (o Outcome[I, O]) String() string {
	switch o.state {
	case StateDone:
		return fmt.Sprintf("Done(%v, %v)", o.remaining, o.output)
	case StateError:
		return fmt.Sprintf("Error(%d)", uint32(o.code))
	default:
		return "Incomplete"
	}
}
