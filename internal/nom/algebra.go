package nom

// FlatMap hands the output of a done outcome to f and returns f's result as
// is; f does its own remaining accounting. Errors short-circuit without
// calling f, and a suspended outcome stays suspended with f applied once it
// resumes successfully.
//
// Feeding Begin(view) to FlatMap threads the view into a parser, while a
// Unit-output outcome simply discards its remaining input.
func FlatMap[I, O, J, N any](o Outcome[I, O], f func(O) Outcome[J, N]) Outcome[J, N] {
	switch o.state {
	case StateError:
		return Fail[J, N](o.code)
	case StateIncomplete:
		return Incomplete(func(input []byte) Outcome[J, N] {
			return FlatMap(o.Resume(input), f)
		})
	default:
		return f(o.output)
	}
}

// MapOpt transforms the output of a done outcome with a fallible function.
// A transform that yields nothing turns the outcome into ErrMapOpt.
func MapOpt[I, O, N any](o Outcome[I, O], f func(O) (N, bool)) Outcome[I, N] {
	switch o.state {
	case StateError:
		return Fail[I, N](o.code)
	case StateIncomplete:
		return Incomplete(func(input []byte) Outcome[I, N] {
			return MapOpt(o.Resume(input), f)
		})
	default:
		n, ok := f(o.output)
		if !ok {
			return Fail[I, N](ErrMapOpt)
		}
		return Done(o.remaining, n)
	}
}

// Map transforms the output of a done outcome with a total function.
func Map[I, O, N any](o Outcome[I, O], f func(O) N) Outcome[I, N] {
	return MapOpt(o, func(v O) (N, bool) {
		return f(v), true
	})
}
