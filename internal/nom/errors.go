package nom

import "fmt"

// ErrorCode is the opaque failure value carried by failed outcomes. Each
// failure site has its own code; the set is meant to grow.
type ErrorCode uint32

const (
	ErrFailure         ErrorCode = iota // generic failure
	ErrTag                              // literal mismatch
	ErrMapOpt                           // value transform produced nothing
	ErrProducer                         // producer I/O failure
	ErrCarryOverflow                    // carry buffer grew past its limit
	ErrIncompleteAtEOF                  // stream ended inside a suspended parse
	ErrExhausted                        // producer called after its final chunk
	ErrStalled                          // producer never made progress
	ErrNotSuspended                     // resume on an outcome that is not incomplete
)

var codeNames = map[ErrorCode]string{
	ErrFailure:         "parse failed",
	ErrTag:             "literal mismatch",
	ErrMapOpt:          "value transform failed",
	ErrProducer:        "producer failed",
	ErrCarryOverflow:   "carry buffer overflow",
	ErrIncompleteAtEOF: "incomplete input at end of stream",
	ErrExhausted:       "producer exhausted",
	ErrStalled:         "producer stalled",
	ErrNotSuspended:    "outcome is not suspended",
}

// Error makes codes usable as sentinel errors.
func (c ErrorCode) Error() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("error code %d", uint32(c))
}
