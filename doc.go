// Package pipes implements an arbitrary-precision pipe-chain calculator.
//
// A chain starts with an ordinary arithmetic term and threads its value
// left to right through a sequence of stages:
//
//	4 |> add(1) |> mul(2)
//
// Each stage is a function call. The threaded value becomes the call's
// first argument, so the chain above computes mul(add(4, 1), 2) = 10.
// Writing the placeholder _ in a stage's arguments substitutes the
// threaded value there instead of prepending it; every occurrence of the
// placeholder receives the value, so "6 |> div(_, _)" is 1. The tee pipe
// |T> runs a stage for its side effect and passes the incoming value
// through unchanged, which suits stages like show:
//
//	4 |> add(1) |T> show |> mul(2)
//
// Evaluation is strictly sequential. The first failing stage aborts the
// chain with an EvalError; no later stage runs and there is no partial
// result.
//
// Chains can also be built directly in code, without parsing, using Run
// with a slice of Step values and the Slot placeholder.
//
// Because each stage receives the threaded value through an intermediate
// slot, a chain is not always identical to the manually nested calls it
// abbreviates. A function that mutates its arguments in place, or that
// retains references to them after returning, observes the slot rather
// than the caller's values. This is an inherent property of eager
// left-to-right chaining and is documented rather than special-cased.
package pipes
