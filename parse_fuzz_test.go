//go:build go1.18
// +build go1.18

package pipes_test

import (
	"strings"
	"testing"

	"github.com/zephyrtronium/pipes"
)

func FuzzParse(f *testing.F) {
	f.Add("x")
	f.Add("4 |> add(1) |> mul(2)")
	f.Add("4 |T> show")
	f.Add("1 |> sub(10, _)")
	f.Add("(1+2)*3")
	f.Fuzz(func(t *testing.T, s string) {
		pipes.Parse(strings.NewReader(s))
	})
}
