package pipes

import (
	"strconv"
	"strings"
)

// node is a node in the abstract syntax tree of a term.
type node struct {
	kind nodeKind

	name string
	fn   Func

	left  *node
	right *node
}

type nodeKind int8

const (
	nodeNone nodeKind = iota

	nodeNum  // push num
	nodeName // push lookup(name)
	nodeHole // push the threaded value

	nodeCall // name is Func to call, right is link to nodeArg unless niladic
	nodeArg  // eval left, right is link to next arg

	nodeNeg // evaluate left, then negate
	nodeAdd // evaluate left, add right
	nodeSub // evaluate left, sub right
	nodeMul // evaluate left, mul right
	nodeDiv // evaluate left, div by right
	nodePow // evaluate left, exp by right
	nodeNop // evaluate left
)

var nodeNames = [...]string{
	nodeNone: "None",
	nodeNum:  "Num",
	nodeName: "Name",
	nodeHole: "Hole",
	nodeCall: "Call",
	nodeArg:  "Arg",
	nodeNeg:  "Neg",
	nodeAdd:  "Add",
	nodeSub:  "Sub",
	nodeMul:  "Mul",
	nodeDiv:  "Div",
	nodePow:  "Pow",
	nodeNop:  "Nop",
}

func (k nodeKind) String() string {
	if k < 0 || int(k) >= len(nodeNames) {
		return "nodeKind(" + strconv.Itoa(int(k)) + ")"
	}
	return nodeNames[k]
}

func (n *node) String() string {
	var b strings.Builder
	n.fmt(&b)
	return b.String()
}

// fmt writes a fully parenthesized rendering of the term rooted at n.
func (n *node) fmt(b *strings.Builder) {
	switch n.kind {
	case nodeNone:
		// Invalid nodes use invalid characters.
		b.WriteByte('$')
		if n.left != nil {
			n.left.fmt(b)
		}
		b.WriteByte('#')
		if n.right != nil {
			n.right.fmt(b)
		}
		b.WriteByte('$')
	case nodeNum, nodeName:
		b.WriteString(n.name)
	case nodeHole:
		b.WriteByte('_')
	case nodeCall:
		b.WriteString(n.name)
		n.fmtargs(b)
	case nodeArg:
		// Args usually only appear inside calls, which are handled by fmtargs.
		b.WriteByte(':')
		n.left.fmt(b)
		if n.right != nil {
			n.right.fmt(b)
		}
	case nodeNeg:
		b.WriteString("(-")
		n.left.fmt(b)
		b.WriteByte(')')
	case nodeNop:
		b.WriteString("(+")
		n.left.fmt(b)
		b.WriteByte(')')
	case nodeAdd, nodeSub, nodeMul, nodeDiv, nodePow:
		b.WriteByte('(')
		n.left.fmt(b)
		b.WriteString(opstrs[n.kind])
		n.right.fmt(b)
		b.WriteByte(')')
	default:
		panic("pipes: invalid node kind " + n.kind.String() + " after writing " + b.String())
	}
}

var opstrs = map[nodeKind]string{
	nodeAdd: " + ",
	nodeSub: " - ",
	nodeMul: " * ",
	nodeDiv: " / ",
	nodePow: " ^ ",
}

func (n *node) fmtargs(b *strings.Builder) {
	b.WriteByte('(')
	defer b.WriteByte(')')
	if n.right == nil {
		// Niladic call.
		return
	}
	n = n.right
	if n.kind != nodeArg {
		b.WriteString("***")
		n.fmt(b)
		return
	}
	n.left.fmt(b)
	for n.right != nil {
		n = n.right
		if n.kind != nodeArg {
			b.WriteString("***")
			n.fmt(b)
			return
		}
		b.WriteString(", ")
		n.left.fmt(b)
	}
}
