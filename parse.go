package pipes

import (
	"io"
	"strings"
)

// Chain = Term { ('|>' | '|T>') Step }
// Step  = ident | ident ArgList
// ArgList = '(' ')' | '(' Arg { ',' Arg } ')'
// Arg   = Term, which may contain the placeholder '_'
// Term  = num | name | Call | Hole | Neg | Plus | Add | Sub | Mul | Div | Pow | '(' Term ')'
// Call  = funcname | funcname ArgList
// Neg = '-' Term
// Plus = '+' Term
// Add = Term '+' Term
// Sub = Term '-' Term
// Mul = Term '*' Term
// Div = Term '/' Term
// Pow = Term '^' Term

// Chain is a parsed pipe chain that can be evaluated with a context.
type Chain struct {
	// init is the root node of the initial term.
	init *node
	// steps is the sequence of stages applied to the initial term, in order.
	steps []step
	// names is the list of variable names used in the chain.
	names []string
}

// step is one stage of a parsed chain.
type step struct {
	// name is the function name the stage calls.
	name string
	// fn is the function to call.
	fn Func
	// args links the stage's explicit arguments as nodeArg nodes. Arguments
	// may contain placeholder nodes.
	args *node
	// holes is the number of placeholder occurrences across the arguments.
	// When zero, the threaded value is prepended to the call instead.
	holes int
	// tee marks a |T> stage, which re-emits its input.
	tee bool
	// pos is the rune position of the stage's function name.
	pos int
}

// Parse parses a chain so it can be evaluated with a context. The given
// options are applied in order.
func Parse(src io.RuneScanner, opts ...ParseOption) (*Chain, error) {
	scan := lex(src)
	p := parsectx{
		names: make(map[string]bool),
	}
	for _, opt := range opts {
		p = opt.parseOption(p)
	}
	if p.funcs == nil {
		p.funcs = globalfuncs
	} else if !p.nodefaults {
		// Only set default functions that aren't already set.
		for k, v := range globalfuncs {
			if _, ok := p.funcs[k]; !ok {
				p.funcs[k] = v
			}
		}
	}
	n, err := parseterm(scan, &p, exprprec)
	if err != nil {
		return nil, err
	}
	if n == nil {
		tok := scan.must()
		if tok.kind == tokenClose {
			return nil, &BracketError{Col: tok.pos, Right: tok.text}
		}
		return nil, &EmptyExpressionError{Col: tok.pos, End: tok.text}
	}
	c := Chain{init: n}
	for {
		tok, err := scan.next(p.wseof)
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokenEOF:
			return c.finish(&p), nil
		case tokenSep:
			if p.ceof {
				return c.finish(&p), nil
			}
			return nil, &SeparatorError{Col: tok.pos, Sep: tok.text}
		case tokenPipe:
			s, err := parsestep(scan, &p, tok)
			if err != nil {
				return nil, err
			}
			c.steps = append(c.steps, s)
		case tokenClose:
			return nil, &BracketError{Col: tok.pos, Right: tok.text}
		default:
			panic("pipes: chain ended on unknown token: " + tok.String())
		}
	}
}

// finish collects the sorted variable names seen during the parse.
func (c Chain) finish(p *parsectx) *Chain {
	c.names = make([]string, 0, len(p.names))
	for k := range p.names {
		c.names = append(c.names, k)
	}
	sortstrs(c.names)
	return &c
}

// sortstrs sorts a string slice without using package sort because that has
// reflection and allocation problems.
func sortstrs(names []string) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
}

// parsestep parses the stage following a pipe operator: a function name with
// an optional bracketed argument list. A bare name is a call whose only
// argument is the threaded value.
func parsestep(scan *lexer, p *parsectx, pipe lexToken) (step, error) {
	// Don't use EOF whitespace; a pipe must be followed by its stage.
	tok, err := scan.next("")
	if err != nil {
		return step{}, err
	}
	if tok.kind == tokenEOF {
		return step{}, &EmptyExpressionError{Col: tok.pos, End: ""}
	}
	if tok.kind != tokenIdent || tok.text == "_" {
		return step{}, &PipeError{Col: tok.pos, Op: pipe.text, Target: tok.text}
	}
	fn := p.funcs[tok.text]
	if fn == nil {
		return step{}, &PipeError{Col: tok.pos, Op: pipe.text, Target: tok.text}
	}
	s := step{name: tok.text, fn: fn, tee: pipe.text == TeeOp, pos: tok.pos}
	next, err := scan.next(p.wseof)
	if err != nil {
		return step{}, err
	}
	if next.kind != tokenOpen {
		// Bare stage, e.g. x |> sqrt.
		scan.push(next)
		if !fn.CanCall(1) {
			return step{}, &CallError{Col: tok.pos, Func: tok.text, Len: 1}
		}
		return s, nil
	}
	p.inpipe = true
	p.holes = 0
	args, n, err := parsearglist(scan, p)
	p.inpipe = false
	if err != nil {
		return step{}, err
	}
	scan.must() // the close bracket parsearglist pushed
	s.args, s.holes = args, p.holes
	arity := n + 1
	if s.holes > 0 {
		// The threaded value substitutes at the placeholders rather than
		// being prepended.
		arity = n
	}
	if !fn.CanCall(arity) {
		return step{}, &CallError{Col: tok.pos, Func: tok.text, Len: arity}
	}
	return s, nil
}

// parseterm parses a single term. If there is no error, then parseterm pushes
// the last token it scans, including EOF. If the input is an empty
// subexpression, the result is nil with no error; callers must create an error
// in contexts where empty subexpressions are illegal.
func parseterm(scan *lexer, p *parsectx, until operator) (*node, error) {
	n, err := parselhs(scan, p, until)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, nil
	}
	for {
		tok, err := scan.next(p.wseof)
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokenNum, tokenIdent, tokenOpen:
			// Adjacent terms. There is no implicit multiplication; the input
			// is missing an operator.
			return nil, &TermError{Col: tok.pos, Text: tok.text}
		case tokenOp:
			// Binary operator.
			prec := binop(tok.text)
			if prec.op == nodeNone {
				return nil, &OperatorError{Col: tok.pos, Operator: tok.text, Unary: false}
			}
			if !prec.moreBinding(until) {
				scan.push(tok)
				return n, nil
			}
			rhs, err := parseterm(scan, p, prec)
			if err != nil {
				return nil, err
			}
			if rhs == nil {
				end := scan.must()
				scan.push(end)
				return nil, &EmptyExpressionError{Col: end.pos, End: end.text}
			}
			n = &node{kind: prec.op, left: n, right: rhs}
		case tokenClose, tokenSep, tokenEOF, tokenPipe:
			// End of term.
			scan.push(tok)
			return n, nil
		default:
			panic("pipes: unknown token: " + tok.String())
		}
	}
}

// parselhs parses the first component of a term. I.e., operators are unary,
// any encountered token must be valid as the start of a subexpression, and
// whitespace normally lexed as EOF is ignored.
func parselhs(scan *lexer, p *parsectx, until operator) (*node, error) {
	// Don't use EOF whitespace for LHS.
	tok, err := scan.next("")
	if err != nil {
		return nil, err
	}
	var n *node
	switch tok.kind {
	case tokenNum:
		n = &node{kind: nodeNum, name: tok.text}
	case tokenIdent:
		if tok.text == "_" {
			if !p.inpipe {
				return nil, &PlaceholderError{Col: tok.pos}
			}
			p.holes++
			n = &node{kind: nodeHole, name: tok.text}
			break
		}
		fn := p.funcs[tok.text]
		if fn == nil {
			p.names[tok.text] = true
			n = &node{kind: nodeName, name: tok.text}
			break
		}
		n, err = parsecall(scan, p, fn, tok)
		if err != nil {
			return nil, err
		}
	case tokenOp:
		// Unary operator.
		prec := unop(tok.text)
		if prec.op == nodeNone {
			return nil, &OperatorError{Col: tok.pos, Operator: tok.text, Unary: true}
		}
		if !prec.moreBinding(until) {
			// x^-y -> x^(-y)
			// Just use the new operator's precedence to simplify.
			prec.prec, prec.right = until.prec, until.right
		}
		rhs, err := parseterm(scan, p, prec)
		if err != nil {
			return nil, err
		}
		if rhs == nil {
			end := scan.must()
			scan.push(end)
			return nil, &EmptyExpressionError{Col: end.pos, End: end.text}
		}
		n = &node{kind: prec.op, left: rhs}
	case tokenOpen:
		rhs, err := parseterm(scan, p, exprprec)
		if err != nil {
			return nil, err
		}
		end := scan.must()
		if end.kind != tokenClose {
			return nil, itShouldNotHaveEndedThisWay(end)
		}
		if rhs == nil {
			return nil, &EmptyExpressionError{Col: end.pos, End: end.text}
		}
		n = rhs
	case tokenClose:
		// This might be part of niladic func(), so just let the caller decide
		// what to do.
		scan.push(tok)
		return nil, nil
	case tokenSep:
		if p.ceof {
			scan.push(tok)
			return nil, nil
		}
		return nil, &SeparatorError{Col: tok.pos, Sep: tok.text}
	case tokenPipe:
		// A pipe with no term before it.
		return nil, &EmptyExpressionError{Col: tok.pos, End: tok.text}
	case tokenEOF:
		return nil, &EmptyExpressionError{Col: tok.pos, End: ""}
	default:
		panic("pipes: unknown token: " + tok.String())
	}
	return n, nil
}

// parsecall parses the arguments to a call of a known function in term
// position. Calls with arguments require brackets; a bare function name is a
// niladic call.
func parsecall(scan *lexer, p *parsectx, fn Func, name lexToken) (*node, error) {
	// We respect whitespace here so that pi\nx doesn't string
	// together expressions.
	tok, err := scan.next(p.wseof)
	if err != nil {
		return nil, err
	}
	if tok.kind != tokenOpen {
		// Bare function name, e.g. pi.
		scan.push(tok)
		if !fn.CanCall(0) {
			return nil, &CallError{Col: name.pos, Func: name.text, Len: 0}
		}
		return &node{kind: nodeCall, name: name.text, fn: fn}, nil
	}
	args, n, err := parsearglist(scan, p)
	if err != nil {
		return nil, err
	}
	scan.must() // the close bracket parsearglist pushed
	if !fn.CanCall(n) {
		return nil, &CallError{Col: name.pos, Func: name.text, Len: n}
	}
	return &node{kind: nodeCall, name: name.text, fn: fn, right: args}, nil
}

// parsearglist parses a bracketed list of zero or more args. It pushes the
// closing bracket for the caller to consume.
func parsearglist(scan *lexer, p *parsectx) (*node, int, error) {
	var list node
	l := &list
	n := 0
	for {
		rhs, err := parseterm(scan, p, exprprec)
		if err != nil {
			// As a special case, reporting mismatched brackets is more helpful
			// than empty expression, if that's what we'd do here.
			if ee, _ := err.(*EmptyExpressionError); ee != nil {
				err = &BracketError{Col: ee.Col, Left: "("}
			}
			return nil, 0, err
		}
		end := scan.must()
		switch end.kind {
		case tokenClose:
			scan.push(end)
			if rhs == nil {
				// No expression parsed.
				// func() is allowed, but func(a,) isn't.
				if n != 0 {
					return nil, 0, &EmptyExpressionError{Col: end.pos, End: end.text}
				}
				return nil, 0, nil
			}
			l.right = &node{kind: nodeArg, left: rhs}
			return list.right, n + 1, nil
		case tokenSep:
			if rhs == nil {
				return nil, 0, &EmptyExpressionError{Col: end.pos, End: end.text}
			}
			n++
			l.right = &node{kind: nodeArg, left: rhs}
			l = l.right
		case tokenEOF:
			return nil, 0, &BracketError{Col: end.pos, Left: "(", Right: ""}
		case tokenPipe:
			return nil, 0, &PipeError{Col: end.pos, Op: end.text}
		default:
			panic("pipes: arg list ended on non-end token " + end.String())
		}
	}
}

// itShouldNotHaveEndedThisWay returns an error appropriate for an unexpected
// token at the end of a bracketed subexpression.
func itShouldNotHaveEndedThisWay(tok lexToken) error {
	switch tok.kind {
	case tokenEOF:
		// Unexpected EOF implies an open bracket that was not closed.
		return &BracketError{Col: tok.pos, Left: "(", Right: ""}
	case tokenSep:
		// Separator outside a function call.
		return &SeparatorError{Col: tok.pos, Sep: tok.text}
	case tokenPipe:
		// Pipes are only legal at the top level of a chain.
		return &PipeError{Col: tok.pos, Op: tok.text}
	default:
		panic("pipes: it really should not have ended this way: " + tok.String())
	}
}

// Vars returns the variable names used when evaluating the chain.
func (c *Chain) Vars() []string {
	return append(([]string)(nil), c.names...)
}

// Steps returns the number of stages in the chain, not counting the initial
// term.
func (c *Chain) Steps() int {
	return len(c.steps)
}

// String creates a string representation of the parsed chain, with every
// term fully parenthesized.
func (c *Chain) String() string {
	var b strings.Builder
	c.init.fmt(&b)
	for i := range c.steps {
		s := &c.steps[i]
		if s.tee {
			b.WriteString(" " + TeeOp + " ")
		} else {
			b.WriteString(" " + PipeOp + " ")
		}
		b.WriteString(s.name)
		b.WriteByte('(')
		for l, j := s.args, 0; l != nil; l, j = l.right, j+1 {
			if j > 0 {
				b.WriteString(", ")
			}
			l.left.fmt(&b)
		}
		b.WriteByte(')')
	}
	return b.String()
}

type operator struct {
	// prec is the precedence value. Higher is more binding.
	prec int8
	// right indicates right-associativity.
	right bool
	// op is the node kind to use when this operator is selected.
	op nodeKind
}

func (p operator) moreBinding(than operator) bool {
	if p.prec != than.prec {
		return p.prec > than.prec
	}
	return p.right
}

// binop gets a binary operator for a token string. If there is no such binary
// operator, then the result has an op of nodeNone.
func binop(text string) operator {
	switch text {
	case "+":
		return operator{1, false, nodeAdd}
	case "-":
		return operator{1, false, nodeSub}
	case "*":
		return operator{5, false, nodeMul}
	case "/":
		return operator{5, false, nodeDiv}
	case "^":
		return operator{15, true, nodePow}
	default:
		return operator{}
	}
}

// unop gets a unary operator for a token string. If there is no such unary
// operator, then the result has an op of nodeNone.
func unop(text string) operator {
	switch text {
	case "+":
		return operator{10, true, nodeNop}
	case "-":
		return operator{10, true, nodeNeg}
	default:
		return operator{}
	}
}

// exprprec is the precedence required to parse an entire subexpression.
var exprprec = operator{-128, true, nodeNone}
