package pipes

import (
	"errors"
	"math/big"
)

// Slot is the placeholder marker for Step argument lists. Arguments are
// compared against Slot by pointer, so its value is never read or written.
var Slot = new(big.Float)

// Step is one stage of a chain built directly in code rather than parsed.
type Step struct {
	// Fn is the function the stage calls.
	Fn Func
	// Name identifies the stage in errors. It may be empty.
	Name string
	// Args is the stage's explicit argument list. Every element that is Slot
	// receives the threaded value; if no element is Slot, the threaded value
	// becomes the call's first argument instead.
	Args []*big.Float
	// Tee marks a stage that runs for its side effect only: its result is
	// discarded and the threaded value passes through unchanged.
	Tee bool
}

// Run threads v through steps in order and returns the final value. Each
// stage receives the previous stage's result, starting from v, either as
// its first argument or substituted at every occurrence of Slot in Args.
// Stages run strictly in sequence, each completing before the next begins.
// The first failing stage aborts the run with an EvalError wrapping its
// cause; no later stage runs and there is no partial result. With no steps,
// the result is a copy of v.
//
// Stages receive copies of the threaded value and of their arguments, so a
// function that modifies its invocation does not affect the values the
// caller passed in.
func Run(ctx *Context, v *big.Float, steps []Step) (*big.Float, error) {
	cur := new(big.Float).SetPrec(ctx.Prec()).Set(v)
	for i := range steps {
		s := &steps[i]
		if s.Fn == nil {
			return nil, &EvalError{Step: i + 1, Func: s.Name, Err: errNilFunc}
		}
		invoc := make([]*big.Float, 0, len(s.Args)+1)
		holes := false
		for _, a := range s.Args {
			if a == Slot {
				invoc = append(invoc, new(big.Float).Set(cur))
				holes = true
				continue
			}
			invoc = append(invoc, new(big.Float).SetPrec(ctx.Prec()).Set(a))
		}
		if !holes {
			invoc = append(invoc, nil)
			copy(invoc[1:], invoc)
			invoc[0] = new(big.Float).Set(cur)
		}
		if !s.Fn.CanCall(len(invoc)) {
			return nil, &EvalError{Step: i + 1, Func: s.Name, Err: &CallError{Func: s.Name, Len: len(invoc)}}
		}
		r := new(big.Float).SetPrec(ctx.Prec())
		if err := s.Fn.Call(ctx, invoc, r); err != nil {
			return nil, &EvalError{Step: i + 1, Func: s.Name, Err: err}
		}
		if !s.Tee {
			cur = r
		}
	}
	return cur, nil
}

var errNilFunc = errors.New("nil function in step")
