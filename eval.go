package pipes

import (
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/zephyrtronium/bigfloat"
)

// Context is a context for evaluating chains. It is not safe to use a
// Context concurrently.
type Context struct {
	stack []*big.Float
	nums  map[string]*big.Float
	names map[string]*big.Float
	// piped is the threaded value while a stage's arguments evaluate. It is
	// nil outside stage evaluation.
	piped *big.Float
	out   io.Writer
	prec  uint
	err   error
}

// ContextOption is an option used when creating a context.
type ContextOption interface {
	ctxOption()
}

type (
	varopt struct {
		name string
		val  *big.Float
	}
	varsopt map[string]*big.Float
	precopt uint
	outopt  struct {
		w io.Writer
	}
)

func (varopt) ctxOption()  {}
func (varsopt) ctxOption() {}
func (precopt) ctxOption() {}
func (outopt) ctxOption()  {}

// SetVar sets the value of a variable in the context.
func SetVar(name string, val *big.Float) ContextOption {
	return varopt{name, val}
}

// SetVars sets the values of any number of variables in the context.
func SetVars(vars map[string]*big.Float) ContextOption {
	return varsopt(vars)
}

// Prec sets the precision of calculations.
func Prec(prec uint) ContextOption {
	return precopt(prec)
}

// Output sets the writer that side-effecting functions like show write to.
// By default output is discarded.
func Output(w io.Writer) ContextOption {
	return outopt{w}
}

// NewContext creates a new evaluation context. If no precision is given, the
// default is 64.
func NewContext(opts ...ContextOption) *Context {
	ctx := Context{nums: make(map[string]*big.Float), prec: 64}
	return ctx.Clone(opts...)
}

// Eval evaluates a chain and returns the result. If an error occurs, e.g. a
// missing variable definition or a failing stage, then the result is nil and
// ctx.Err returns the error.
func (ctx *Context) Eval(c *Chain) *big.Float {
	switch len(ctx.stack) {
	case 0: // do nothing
	case 1:
		ctx.stack[0] = new(big.Float).SetPrec(ctx.prec)
		ctx.stack = ctx.stack[:0]
	default:
		panic("pipes: Eval during Eval")
	}
	ctx.err = c.eval(ctx)
	if ctx.err != nil {
		// Evaluation can stop partway with values still stacked.
		ctx.stack = ctx.stack[:0]
		return nil
	}
	return ctx.Result()
}

// Eval evaluates the chain with a context. It is shorthand for ctx.Eval(c).
func (c *Chain) Eval(ctx *Context) *big.Float {
	return ctx.Eval(c)
}

// Result returns the result obtained after evaluating a chain. Panics if
// ctx has not been used to evaluate a chain. Returns nil if an error
// occurred during evaluation.
func (ctx *Context) Result() *big.Float {
	if ctx.err != nil {
		return nil
	}
	switch len(ctx.stack) {
	case 0:
		panic("pipes: Context.Result called before evaluating any chain")
	case 1:
		return ctx.stack[0]
	default:
		panic("pipes: inconsistent stack: " + strconv.Itoa(len(ctx.stack)) + " items (bad AST?)")
	}
}

// Err returns the first error that occurred while evaluating a chain with
// ctx, if any.
func (ctx *Context) Err() error {
	return ctx.err
}

// Set sets the value of a variable. Returns ctx for chaining. Calling Set
// while the context is being used to evaluate a chain panics.
func (ctx *Context) Set(name string, value *big.Float) *Context {
	if len(ctx.stack) > 1 {
		panic("pipes: Set on in-use context")
	}
	if ctx.names == nil {
		ctx.names = make(map[string]*big.Float)
	}
	ctx.names[name] = new(big.Float).SetPrec(ctx.prec).Set(value)
	return ctx
}

// Lookup returns a copy of the value of a variable. If there is no such
// variable in the context, then the result is nil.
func (ctx *Context) Lookup(name string) *big.Float {
	v := ctx.names[name]
	if v == nil {
		return nil
	}
	return new(big.Float).Copy(v)
}

// Prec returns the precision to which values are computed in the context.
func (ctx *Context) Prec() uint {
	return ctx.prec
}

// Clone creates a copy of a context and applies options to it. The returned
// context has no Result and is safe to use to evaluate a chain.
func (ctx *Context) Clone(opts ...ContextOption) *Context {
	n := Context{
		stack: make([]*big.Float, 0, cap(ctx.stack)),
		nums:  make(map[string]*big.Float, len(ctx.nums)),
		names: make(map[string]*big.Float, len(ctx.names)),
		out:   ctx.out,
		prec:  ctx.prec,
	}
	// First, check for a precision setting. Loop backward so we apply the last
	// precision.
	for i := len(opts) - 1; i >= 0; i-- {
		if p, ok := opts[i].(precopt); ok {
			n.prec = uint(p)
			break
		}
	}
	// Copy numbers only if the new precision is no higher than the old, so
	// that we always use the precision we need.
	if n.prec <= ctx.prec {
		for k, v := range ctx.nums {
			n.nums[k] = new(big.Float).SetPrec(n.prec).Set(v)
		}
	}
	// Copy variables. (We always need a copy in case of Set.) If we have the
	// same precision, we can just copy pointers.
	if n.prec == ctx.prec {
		for name, val := range ctx.names {
			n.names[name] = val
		}
	} else {
		for name, val := range ctx.names {
			n.names[name] = new(big.Float).SetPrec(n.prec).Set(val)
		}
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		switch opt := opt.(type) {
		case varopt:
			n.names[opt.name] = new(big.Float).SetPrec(n.prec).Set(opt.val)
		case varsopt:
			for k, v := range opt {
				n.names[k] = new(big.Float).SetPrec(n.prec).Set(v)
			}
		case precopt:
			// Already done. Do nothing.
		case outopt:
			n.out = opt.w
		default:
			panic("pipes: unknown option type")
		}
	}
	return &n
}

// push ensures a settable value on the stack.
func (ctx *Context) push() *big.Float {
	if len(ctx.stack) < cap(ctx.stack) {
		ctx.stack = ctx.stack[:len(ctx.stack)+1]
		if ctx.stack[len(ctx.stack)-1] == nil {
			ctx.stack[len(ctx.stack)-1] = new(big.Float).SetPrec(ctx.prec)
		}
	} else {
		ctx.stack = append(ctx.stack, new(big.Float).SetPrec(ctx.prec))
	}
	return ctx.stack[len(ctx.stack)-1]
}

// pop removes the top from the stack and returns it. The returned value may be
// modified by future node evaluations.
func (ctx *Context) pop() *big.Float {
	r := ctx.stack[len(ctx.stack)-1]
	ctx.stack = ctx.stack[:len(ctx.stack)-1]
	return r
}

// top is a shortcut to get the top element of the stack.
func (ctx *Context) top() *big.Float {
	return ctx.stack[len(ctx.stack)-1]
}

// num gets a possibly cached number from its text.
func (ctx *Context) num(s string) *big.Float {
	if r := ctx.nums[s]; r != nil {
		return r
	}
	r, _, err := new(big.Float).SetPrec(ctx.prec).Parse(s, 0)
	switch {
	case err == nil: // do nothing
	case err.Error() == "exponent overflow",
		strings.HasSuffix(err.Error(), ": value out of range"):
		// There isn't realistically any better way to detect this error.
		// N.B. s is non-empty, otherwise we couldn't overflow.
		r = new(big.Float).SetInf(s[0] == '-')
	default:
		panic("pipes: invalid number: " + s + " (" + err.Error() + ")")
	}
	ctx.nums[s] = r
	return r
}

// eval threads the chain's initial value through its stages, leaving the
// final value as the single element of the context's stack.
func (c *Chain) eval(ctx *Context) error {
	if err := c.init.eval(ctx); err != nil {
		return err
	}
	for i := range c.steps {
		if err := c.steps[i].eval(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

// eval applies one stage to the threaded value on top of the stack,
// replacing it with the stage's result. The stage index i is used only for
// error reporting.
func (s *step) eval(ctx *Context, i int) error {
	in := ctx.pop()
	// The stage sees its own copy of the threaded value. in's slot is
	// recycled by the next push.
	piped := new(big.Float).Set(in)
	r := ctx.push()
	k := len(ctx.stack)
	if s.holes == 0 {
		// No placeholder: the threaded value is the first argument.
		ctx.push().Set(piped)
	}
	ctx.piped = piped
	for l := s.args; l != nil; l = l.right {
		if err := l.left.eval(ctx); err != nil {
			ctx.piped = nil
			return &EvalError{Step: i + 1, Func: s.name, Err: err}
		}
	}
	ctx.piped = nil
	invoc := ctx.stack[k:len(ctx.stack):len(ctx.stack)]
	if err := s.fn.Call(ctx, invoc, r); err != nil {
		ctx.stack = ctx.stack[:k]
		return &EvalError{Step: i + 1, Func: s.name, Err: err}
	}
	ctx.stack = ctx.stack[:k]
	if s.tee {
		// Tee stages run for their effect only; the incoming value
		// continues down the chain.
		r.Set(piped)
	}
	return nil
}

// eval pushes the node's value to the context's stack.
func (n *node) eval(ctx *Context) error {
	switch n.kind {
	case nodeNum:
		ctx.push().Set(ctx.num(n.name))
	case nodeName:
		v := ctx.names[n.name]
		if v == nil {
			return &NameError{Name: n.name}
		}
		ctx.push().Set(v)
	case nodeHole:
		if ctx.piped == nil {
			panic("pipes: placeholder outside a pipe stage")
		}
		ctx.push().Set(ctx.piped)
	case nodeCall:
		r := ctx.push()
		k := len(ctx.stack)
		for l := n.right; l != nil; l = l.right {
			if err := l.left.eval(ctx); err != nil {
				return err
			}
		}
		invoc := ctx.stack[k:len(ctx.stack):len(ctx.stack)]
		if err := n.fn.Call(ctx, invoc, r); err != nil {
			return err
		}
		ctx.stack = ctx.stack[:k]
	case nodeArg:
		panic("pipes: eval on nodeArg")
	case nodeNeg:
		if err := n.left.eval(ctx); err != nil {
			return err
		}
		v := ctx.top()
		v.Neg(v)
	case nodeAdd:
		if err := n.left.eval(ctx); err != nil {
			return err
		}
		if err := n.right.eval(ctx); err != nil {
			return err
		}
		r := ctx.pop()
		l := ctx.top()
		l.Add(l, r)
	case nodeSub:
		if err := n.left.eval(ctx); err != nil {
			return err
		}
		if err := n.right.eval(ctx); err != nil {
			return err
		}
		r := ctx.pop()
		l := ctx.top()
		l.Sub(l, r)
	case nodeMul:
		if err := n.left.eval(ctx); err != nil {
			return err
		}
		if err := n.right.eval(ctx); err != nil {
			return err
		}
		r := ctx.pop()
		l := ctx.top()
		l.Mul(l, r)
	case nodeDiv:
		if err := n.left.eval(ctx); err != nil {
			return err
		}
		if err := n.right.eval(ctx); err != nil {
			return err
		}
		r := ctx.pop()
		l := ctx.top()
		// Guard against invalid divisions, 0/0 or inf/inf.
		if l.Sign() == 0 && r.Sign() == 0 || l.IsInf() && r.IsInf() {
			return &DomainError{X: r, Func: "/"}
		}
		l.Quo(l, r)
	case nodePow:
		if err := n.left.eval(ctx); err != nil {
			return err
		}
		if err := n.right.eval(ctx); err != nil {
			return err
		}
		r := ctx.pop()
		l := ctx.top()
		// Guard against invalid exponentiations, i.e. negative base.
		if l.Signbit() {
			return &DomainError{X: l, Func: "^"}
		}
		bigfloat.Pow(l, l, r)
	case nodeNop:
		if err := n.left.eval(ctx); err != nil {
			return err
		}
	default:
		panic("pipes: invalid AST node " + n.kind.String())
	}
	return nil
}

// Eval is a shortcut to parse a chain and return its result using the
// default functions.
func Eval(src io.RuneScanner, opts ...ContextOption) (*big.Float, error) {
	ctx := NewContext(opts...)
	c, err := Parse(src)
	if err != nil {
		return nil, err
	}
	ctx.Eval(c)
	return ctx.Result(), ctx.Err()
}

// EvalString is a shortcut to parse and evaluate a string chain.
func EvalString(src string, opts ...ContextOption) (*big.Float, error) {
	return Eval(strings.NewReader(src), opts...)
}

// EvalError is the error produced when a chain stage fails. The first
// failing stage aborts the chain; no later stage runs. EvalError unwraps to
// the stage's underlying error.
type EvalError struct {
	// Step is the 1-based index of the failing stage.
	Step int
	// Func is the name of the stage's function, if known.
	Func string
	// Err is the underlying error.
	Err error
}

func (err *EvalError) Error() string {
	if err.Func == "" {
		return "step " + strconv.Itoa(err.Step) + ": " + err.Err.Error()
	}
	return "step " + strconv.Itoa(err.Step) + " (" + err.Func + "): " + err.Err.Error()
}

func (err *EvalError) Unwrap() error {
	return err.Err
}

// NameError is an error from a lookup for a variable that is missing from the
// evaluation context.
type NameError struct {
	// Name is the name that was missing.
	Name string
}

func (err *NameError) Error() string {
	return "undefined variable: " + strconv.Quote(err.Name)
}
