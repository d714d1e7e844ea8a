package pipes

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/zephyrtronium/bigfloat"
)

// Func is a function from reals to reals. Functions may but generally should
// not look up variables. The function should set r to its result and should
// not use the value of r otherwise.
type Func interface {
	// Call evaluates the function. The function arguments are passed in
	// invoc. The function must set r to its result and should not use the
	// value of r otherwise. invoc has a length for which CanCall returned
	// true. Call may modify the elements of invoc.
	Call(ctx *Context, invoc []*big.Float, r *big.Float) error

	// CanCall returns whether the function can be called with n arguments.
	// This controls how the parser handles instances of this function: a
	// bare name must satisfy CanCall(0) in term position or CanCall(1) as a
	// pipe stage, and a bracketed argument list must satisfy CanCall with
	// the number of arguments the call implies, counting the threaded value
	// when the stage has no placeholder.
	CanCall(n int) bool
}

var globalfuncs = map[string]Func{
	// arithmetic verbs for pipe stages
	"add": Dyadic((*big.Float).Add),
	"sub": Dyadic((*big.Float).Sub),
	"mul": Dyadic((*big.Float).Mul),
	"div": divfn{},
	"pow": powfn{},

	"neg": Monadic((*big.Float).Neg),
	"abs": Monadic((*big.Float).Abs),

	"sqrt": Monadic((*big.Float).Sqrt),
	"exp":  Monadic(bigfloat.Exp),
	"ln":   Monadic(bigfloat.Log),
	"log": Monadic(func(out, in *big.Float) *big.Float {
		bigfloat.Log(out, in)
		in.SetFloat64(10).SetPrec(out.Prec())
		bigfloat.Log(in, in)
		return out.Quo(out, in)
	}),

	"min": Variadic(1, func(out *big.Float, in []*big.Float) *big.Float {
		out.Set(in[0])
		for _, v := range in[1:] {
			if v.Cmp(out) < 0 {
				out.Set(v)
			}
		}
		return out
	}),
	"max": Variadic(1, func(out *big.Float, in []*big.Float) *big.Float {
		out.Set(in[0])
		for _, v := range in[1:] {
			if v.Cmp(out) > 0 {
				out.Set(v)
			}
		}
		return out
	}),
	"sum": Variadic(1, func(out *big.Float, in []*big.Float) *big.Float {
		out.Set(in[0])
		for _, v := range in[1:] {
			out.Add(out, v)
		}
		return out
	}),

	// side effects
	"show": showfn{},

	// constants
	"pi": Niladic(bigfloat.Pi),
	"e": Niladic(func(out *big.Float) *big.Float {
		var one big.Float
		one.SetFloat64(1)
		return bigfloat.Exp(out, &one)
	}),
}

// FuncNames returns the sorted names of the default function set.
func FuncNames() []string {
	v := make([]string, 0, len(globalfuncs))
	for k := range globalfuncs {
		v = append(v, k)
	}
	sortstrs(v)
	return v
}

type monadic struct {
	f func(out, in *big.Float) *big.Float
}

func (m monadic) Call(ctx *Context, invoc []*big.Float, r *big.Float) (err error) {
	in := invoc[0]
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err = r.(error) // panic if not error
		if errors.As(err, &DomainError{}) || errors.As(err, &big.ErrNaN{}) {
			return
		}
		panic(err)
	}()
	r.SetPrec(ctx.Prec())
	m.f(r, in)
	return nil
}

func (m monadic) CanCall(n int) bool {
	return n == 1
}

// Monadic wraps a function of one variable into a Func. f must set out to its
// result, to the precision of in; its return value is always ignored. If f is
// called on an argument outside f's domain, it should panic with an error of
// type big.ErrNaN, or that unwraps to it.
func Monadic(f func(out, in *big.Float) *big.Float) Func {
	return monadic{f}
}

type dyadic struct {
	f func(out, x, y *big.Float) *big.Float
}

func (d dyadic) Call(ctx *Context, invoc []*big.Float, r *big.Float) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err = r.(error) // panic if not error
		if errors.As(err, &DomainError{}) || errors.As(err, &big.ErrNaN{}) {
			return
		}
		panic(err)
	}()
	r.SetPrec(ctx.Prec())
	d.f(r, invoc[0], invoc[1])
	return nil
}

func (d dyadic) CanCall(n int) bool {
	return n == 2
}

// Dyadic wraps a function of two variables into a Func. f must set out to its
// result; its return value is always ignored. If f is called on arguments
// outside f's domain, it should panic with an error of type big.ErrNaN, or
// that unwraps to it.
func Dyadic(f func(out, x, y *big.Float) *big.Float) Func {
	return dyadic{f}
}

type niladic struct {
	f func(out *big.Float) *big.Float
}

func (n niladic) Call(ctx *Context, invoc []*big.Float, r *big.Float) error {
	r.SetPrec(ctx.Prec())
	n.f(r)
	return nil
}

func (n niladic) CanCall(k int) bool {
	return k == 0
}

// Niladic wraps a function of zero variables, generally a function which
// computes a constant, into a Func. f must set out to its result; its return
// value is always ignored. Unlike Monadic, the wrapped function is expected
// never to panic.
func Niladic(f func(out *big.Float) *big.Float) Func {
	return niladic{f}
}

type variadic struct {
	min int
	f   func(out *big.Float, in []*big.Float) *big.Float
}

func (v variadic) Call(ctx *Context, invoc []*big.Float, r *big.Float) error {
	r.SetPrec(ctx.Prec())
	v.f(r, invoc)
	return nil
}

func (v variadic) CanCall(n int) bool {
	return n >= v.min
}

// Variadic wraps a function of any number of variables into a Func that
// accepts min or more arguments. f must set out to its result; its return
// value is always ignored.
func Variadic(min int, f func(out *big.Float, in []*big.Float) *big.Float) Func {
	return variadic{min, f}
}

type divfn struct{}

func (divfn) Call(ctx *Context, invoc []*big.Float, r *big.Float) error {
	x, y := invoc[0], invoc[1]
	// Guard against invalid divisions, 0/0 or inf/inf.
	if x.Sign() == 0 && y.Sign() == 0 || x.IsInf() && y.IsInf() {
		return &DomainError{X: y, Arg: 2, Func: "div"}
	}
	r.SetPrec(ctx.Prec())
	r.Quo(x, y)
	return nil
}

func (divfn) CanCall(n int) bool {
	return n == 2
}

type powfn struct{}

func (powfn) Call(ctx *Context, invoc []*big.Float, r *big.Float) error {
	x, y := invoc[0], invoc[1]
	// Guard against invalid exponentiations, i.e. negative base.
	if x.Signbit() {
		return &DomainError{X: x, Arg: 1, Func: "pow"}
	}
	r.SetPrec(ctx.Prec())
	bigfloat.Pow(r, x, y)
	return nil
}

func (powfn) CanCall(n int) bool {
	return n == 2
}

type showfn struct{}

// Call writes the value to the context's output and passes it through, so
// show behaves the same under |> and |T>.
func (showfn) Call(ctx *Context, invoc []*big.Float, r *big.Float) error {
	if ctx.out != nil {
		if _, err := fmt.Fprintf(ctx.out, "%g\n", invoc[0]); err != nil {
			return err
		}
	}
	r.SetPrec(ctx.Prec()).Set(invoc[0])
	return nil
}

func (showfn) CanCall(n int) bool {
	return n == 1
}

// DomainError is an error returned when a function is called on arguments
// outside its domain. DomainError unwraps to big.ErrNaN.
type DomainError struct {
	// X is the out-of-domain argument.
	X *big.Float
	// Arg is the 1-based index of the argument.
	Arg int
	// Func is a name identifying the function.
	Func string
}

func (err DomainError) Error() string {
	r := err.X.String() + " outside domain"
	if err.Func != "" {
		r += " of " + err.Func
	}
	if err.Arg > 0 {
		r += " (argument " + strconv.Itoa(err.Arg) + ")"
	}
	return r
}

// Unwrap returns a big.ErrNaN.
func (err DomainError) Unwrap() error {
	return big.ErrNaN{}
}
