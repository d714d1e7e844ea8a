package pipes_test

import (
	"bytes"
	"errors"
	"math"
	"math/big"
	"strings"
	"testing"

	"github.com/zephyrtronium/pipes"
)

func TestEval(t *testing.T) {
	type vv struct {
		n string
		v float64
	}
	type vc struct {
		vars []vv
		r    float64
	}
	cases := []struct {
		name string
		src  string
		r    []vc
	}{
		{"num", "1", []vc{{nil, 1}}},
		{"ident", "x", []vc{
			{[]vv{{"x", 4}}, 4},
			{[]vv{{"x", 5}}, 5},
		}},
		{"plus", "+x", []vc{{[]vv{{"x", 4}}, 4}}},
		{"neg", "-x", []vc{{[]vv{{"x", 4}}, -4}}},
		{"add", "4+5+6", []vc{{nil, 4 + 5 + 6}}},
		{"sub", "4-5-6", []vc{{nil, 4 - 5 - 6}}},
		{"mul", "4*5*6", []vc{{nil, 4 * 5 * 6}}},
		{"div", "4/5/6", []vc{{nil, 4.0 / 5.0 / 6.0}}},
		{"pow", "4^3^2", []vc{{nil, 262144}}},
		{"pi", "pi", []vc{{nil, math.Pi}}},
		{"e", "e", []vc{{nil, math.E}}},
		{"exp", "exp(1)", []vc{{nil, math.E}}},
		{"log", "log(1000)", []vc{{nil, 3}}},
		{"min", "min(4, 2, 3)", []vc{{nil, 2}}},
		{"max", "max(4, 2, 3)", []vc{{nil, 4}}},
		{"sum", "sum(4, 2, 3)", []vc{{nil, 9}}},

		{"chain", "4 |> add(1) |> mul(2)", []vc{{nil, 10}}},
		{"chain-bare", "16 |> sqrt |> add(1)", []vc{{nil, 5}}},
		{"chain-hole", "1 |> sub(10, _)", []vc{{nil, 9}}},
		{"chain-hole-all", "6 |> div(_, _)", []vc{{nil, 1}}},
		{"chain-hole-mixed", "2 |> max(10, _, 3)", []vc{{nil, 10}}},
		{"chain-arg-term", "4 |> add(1+2)", []vc{{nil, 7}}},
		{"chain-arg-call", "4 |> add(neg(1))", []vc{{nil, 3}}},
		{"chain-term-init", "1+2 |> mul(3)", []vc{{nil, 9}}},
		{"chain-tee", "4 |T> add(100)", []vc{{nil, 4}}},
		{"chain-vars", "x |> add(y)", []vc{
			{[]vv{{"x", 4}, {"y", 1}}, 5},
			{[]vv{{"x", 10}, {"y", -1}}, 9},
		}},
	}
	ctx := pipes.NewContext(pipes.Prec(64))
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a, err := pipes.Parse(strings.NewReader(c.src))
			if err != nil {
				t.Fatal(c.src, "failed to parse:", err)
			}
			for _, v := range c.r {
				ctx := ctx.Clone()
				for _, x := range v.vars {
					ctx.Set(x.n, new(big.Float).SetFloat64(x.v))
				}
				r := a.Eval(ctx)
				if ctx.Err() != nil {
					t.Error("evaluation error:", ctx.Err())
				}
				if r == nil {
					t.Fatal("nil result")
				}
				if q := ctx.Result(); r.Cmp(q) != 0 {
					t.Errorf("different results: Eval returned %g, Result returned %g", r, q)
				}
				if f, _ := r.Float64(); f != v.r {
					t.Errorf("wrong result: want %g, got %g", v.r, r)
				}
			}
		})
	}
}

// TestEvalNesting checks that a chain of side-effect-free stages gives
// exactly the result of writing the calls nested by hand.
func TestEvalNesting(t *testing.T) {
	cases := []struct {
		name    string
		chained string
		nested  string
	}{
		{"two", "4 |> add(1) |> mul(2)", "mul(add(4, 1), 2)"},
		{"three", "2 |> add(3) |> mul(4) |> pow(2)", "pow(mul(add(2, 3), 4), 2)"},
		{"single", "9 |> sqrt", "sqrt(9)"},
		{"holes", "1 |> sub(10, _) |> div(_, 3)", "div(sub(10, 1), 3)"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p, err := pipes.EvalString(c.chained)
			if err != nil {
				t.Fatalf("%q failed: %v", c.chained, err)
			}
			n, err := pipes.EvalString(c.nested)
			if err != nil {
				t.Fatalf("%q failed: %v", c.nested, err)
			}
			if p.Cmp(n) != 0 {
				t.Errorf("chain %q gave %g but nesting %q gave %g", c.chained, p, c.nested, n)
			}
		})
	}
}

func TestEvalUndefNames(t *testing.T) {
	cases := []struct {
		name string
		src  string
		miss string
	}{
		{"init", "x", "x"},
		{"init-term", "1+x", "x"},
		{"arg", "1 |> add(x)", "x"},
		{"arg-term", "1 |> add(2*x)", "x"},
	}
	ctx := pipes.NewContext(pipes.Prec(64))
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a, err := pipes.Parse(strings.NewReader(c.src))
			if err != nil {
				t.Fatalf("%q failed to parse: %v", c.src, err)
			}
			cx := ctx.Clone()
			if r := cx.Eval(a); r != nil {
				t.Errorf("evaluating %q gave non-nil result %g", c.src, r)
			}
			var ne *pipes.NameError
			if !errors.As(cx.Err(), &ne) {
				t.Fatalf("error %#v is not a NameError", cx.Err())
			}
			if ne.Name != c.miss {
				t.Errorf("NameError on %q, expected %q", ne.Name, c.miss)
			}
		})
	}
}

func TestEvalFuncError(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"sqrt", "sqrt(-1)"},
		{"log", "log(-1)"},
		{"div-zero", "0/0"},
		{"div-inf", "inf/inf"},
		{"pow-neg", "(-1)^0.5"},
		{"chain-sqrt", "-1 |> sqrt"},
		{"chain-div", "0 |> div(0)"},
		{"chain-pow", "-1 |> pow(0.5)"},
	}
	ctx := pipes.NewContext(pipes.Prec(64))
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctx := ctx.Clone()
			a, err := pipes.Parse(strings.NewReader(c.src))
			if err != nil {
				t.Fatalf("%q failed to parse: %v", c.src, err)
			}
			if r := a.Eval(ctx); r != nil {
				t.Errorf("evaluating %q gave non-nil result %g", c.src, r)
			}
			err = ctx.Err()
			if err == nil {
				t.Fatalf("evaluating %q gave no error", c.src)
			}
			switch {
			case errors.As(err, new(big.ErrNaN)): // do nothing
			case errors.As(err, new(*pipes.DomainError)): // do nothing
			default:
				t.Errorf("%#v is neither big.ErrNaN nor *pipes.DomainError", err)
			}
		})
	}
}

// boomfn always fails.
type boomfn struct{}

func (boomfn) Call(ctx *pipes.Context, invoc []*big.Float, r *big.Float) error {
	return errors.New("boom")
}

func (boomfn) CanCall(n int) bool { return n == 1 }

// spyfn records that it ran and sets its result to 99.
type spyfn struct {
	called *int
}

func (f spyfn) Call(ctx *pipes.Context, invoc []*big.Float, r *big.Float) error {
	*f.called++
	r.SetInt64(99)
	return nil
}

func (spyfn) CanCall(n int) bool { return n == 1 }

// clobberfn overwrites its argument in place and returns it.
type clobberfn struct{}

func (clobberfn) Call(ctx *pipes.Context, invoc []*big.Float, r *big.Float) error {
	invoc[0].SetInt64(42)
	r.Set(invoc[0])
	return nil
}

func (clobberfn) CanCall(n int) bool { return n == 1 }

func TestEvalFailFast(t *testing.T) {
	var called int
	a, err := pipes.Parse(strings.NewReader("1 |> add(1) |> boom |> spy"),
		pipes.ParseFunc("boom", boomfn{}),
		pipes.ParseFunc("spy", spyfn{called: &called}),
	)
	if err != nil {
		t.Fatal("failed to parse:", err)
	}
	ctx := pipes.NewContext()
	if r := a.Eval(ctx); r != nil {
		t.Errorf("failing chain gave non-nil result %g", r)
	}
	var ee *pipes.EvalError
	if !errors.As(ctx.Err(), &ee) {
		t.Fatalf("error %#v is not an EvalError", ctx.Err())
	}
	if ee.Step != 2 {
		t.Errorf("failed at step %d, expected 2", ee.Step)
	}
	if ee.Func != "boom" {
		t.Errorf("failed in %q, expected boom", ee.Func)
	}
	if ee.Unwrap() == nil || ee.Unwrap().Error() != "boom" {
		t.Errorf("EvalError wraps %v, expected boom", ee.Unwrap())
	}
	if called != 0 {
		t.Errorf("stage after the failing one ran %d times", called)
	}
}

func TestEvalTee(t *testing.T) {
	var called int
	a, err := pipes.Parse(strings.NewReader("5 |T> spy |> add(1)"),
		pipes.ParseFunc("spy", spyfn{called: &called}),
	)
	if err != nil {
		t.Fatal("failed to parse:", err)
	}
	ctx := pipes.NewContext()
	r := a.Eval(ctx)
	if ctx.Err() != nil {
		t.Fatal("evaluation error:", ctx.Err())
	}
	if f, _ := r.Float64(); f != 6 {
		t.Errorf("tee stage leaked its result: got %g, want 6", r)
	}
	if called != 1 {
		t.Errorf("tee stage ran %d times, expected 1", called)
	}
}

// TestEvalMutationIsolation documents the known divergence from manual
// nesting: a stage that writes to its arguments affects only the
// intermediate slot the evaluator hands it, never the threaded value.
func TestEvalMutationIsolation(t *testing.T) {
	a, err := pipes.Parse(strings.NewReader("5 |T> clobber |> add(1)"),
		pipes.ParseFunc("clobber", clobberfn{}),
	)
	if err != nil {
		t.Fatal("failed to parse:", err)
	}
	ctx := pipes.NewContext()
	r := a.Eval(ctx)
	if ctx.Err() != nil {
		t.Fatal("evaluation error:", ctx.Err())
	}
	if f, _ := r.Float64(); f != 6 {
		t.Errorf("mutating stage corrupted the threaded value: got %g, want 6", r)
	}
}

func TestEvalShow(t *testing.T) {
	var b bytes.Buffer
	r, err := pipes.EvalString("4 |T> show |> add(1)", pipes.Output(&b))
	if err != nil {
		t.Fatal("evaluation error:", err)
	}
	if f, _ := r.Float64(); f != 5 {
		t.Errorf("wrong result: want 5, got %g", r)
	}
	if got := b.String(); got != "4\n" {
		t.Errorf("show wrote %q, expected %q", got, "4\n")
	}
}

func TestEvalPrec(t *testing.T) {
	lo, err := pipes.EvalString("2 |> sqrt", pipes.Prec(16))
	if err != nil {
		t.Fatal(err)
	}
	hi, err := pipes.EvalString("2 |> sqrt", pipes.Prec(256))
	if err != nil {
		t.Fatal(err)
	}
	if lo.Prec() >= hi.Prec() {
		t.Errorf("precision not respected: %d >= %d", lo.Prec(), hi.Prec())
	}
}
