//go:build go1.18
// +build go1.18

package pipes_test

import (
	"math/big"
	"testing"

	"github.com/zephyrtronium/pipes"
)

func FuzzEval(f *testing.F) {
	f.Add("x")
	f.Add("4 |> add(1) |> mul(2)")
	f.Add("6 |> div(_, _)")
	f.Add("x |T> show |> sub(10, _)")
	f.Fuzz(func(t *testing.T, s string) {
		pipes.EvalString(s, pipes.SetVar("x", new(big.Float)))
	})
}
