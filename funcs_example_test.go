package pipes_test

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/zephyrtronium/pipes"
)

type nargin struct{}

func (nargin) CanCall(n int) bool {
	return true
}

func (nargin) Call(ctx *pipes.Context, invoc []*big.Float, r *big.Float) error {
	r.SetInt64(int64(len(invoc)))
	return nil
}

func ExampleFunc() {
	ctx := pipes.NewContext(pipes.Prec(32))

	a, _ := pipes.Parse(strings.NewReader("nargin"), pipes.ParseFunc("nargin", nargin{}))
	b, _ := pipes.Parse(strings.NewReader("1 |> nargin(2, 3)"), pipes.ParseFunc("nargin", nargin{}))
	c, _ := pipes.Parse(strings.NewReader("1 |> nargin(_, _, _)"), pipes.ParseFunc("nargin", nargin{}))
	fmt.Println(a.Eval(ctx), a)
	fmt.Println(b.Eval(ctx.Clone()), b)
	fmt.Println(c.Eval(ctx.Clone()), c)

	// Output:
	// 0 nargin()
	// 3 1 |> nargin(2, 3)
	// 3 1 |> nargin(_, _, _)
}

func ExampleEvalString() {
	r, err := pipes.EvalString("4 |> add(1) |> mul(2)")
	if err != nil {
		panic(err)
	}
	fmt.Println(r)
	// Output: 10
}

func ExampleRun() {
	ctx := pipes.NewContext()
	add := pipes.Dyadic((*big.Float).Add)
	mul := pipes.Dyadic((*big.Float).Mul)
	r, err := pipes.Run(ctx, big.NewFloat(4), []pipes.Step{
		{Fn: add, Name: "add", Args: []*big.Float{big.NewFloat(1)}},
		{Fn: mul, Name: "mul", Args: []*big.Float{big.NewFloat(2)}},
	})
	if err != nil {
		panic(err)
	}
	fmt.Println(r)
	// Output: 10
}
