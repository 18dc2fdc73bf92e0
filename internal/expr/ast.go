package expr

// Node is a node of an inline expression tree.
//
// This is a sealed interface: only types in this package implement it, so
// backends (the evaluator and the SQL translator) can switch exhaustively.
//
// Node types:
//   - Literal: number, string, boolean or null constant
//   - Ident: a free variable reference
//   - Arg: a reference to a captured value ($argv[i])
//   - Member: property access (a.b)
//   - Index: computed access (a[0], a['b'])
//   - Unary: prefix ! - +
//   - Binary: arithmetic, comparison and logical operators
//   - Conditional: c ? a : b
//   - Object: object literal {a, b: x}
//   - Array: array literal [a, b]
type Node interface {
	exprNode()
	// Offset is the byte offset of the node in the source text.
	Offset() int
}

// Literal is a constant.
type Literal struct {
	Pos   int
	Value any // nil, bool, int64, float64 or string
}

// Ident is a variable reference.
type Ident struct {
	Pos  int
	Name string
}

// Arg references the i-th captured value.
type Arg struct {
	Pos   int
	Index int
}

// Member is a.Property.
type Member struct {
	Pos      int
	Object   Node
	Property string
}

// Index is Object[Index].
type Index struct {
	Pos    int
	Object Node
	Index  Node
}

// Unary is a prefix operator applied to X.
type Unary struct {
	Pos int
	Op  string
	X   Node
}

// Binary is Left Op Right. Op includes the logical && and ||.
type Binary struct {
	Pos   int
	Op    string
	Left  Node
	Right Node
}

// Conditional is Test ? Then : Else.
type Conditional struct {
	Pos  int
	Test Node
	Then Node
	Else Node
}

// Property is one entry of an object literal.
type Property struct {
	Key       string
	Value     Node
	Shorthand bool
}

// Object is an object literal.
type Object struct {
	Pos   int
	Props []Property
}

// Array is an array literal.
type Array struct {
	Pos   int
	Elems []Node
}

func (Literal) exprNode()     {}
func (Ident) exprNode()       {}
func (Arg) exprNode()         {}
func (Member) exprNode()      {}
func (Index) exprNode()       {}
func (Unary) exprNode()       {}
func (Binary) exprNode()      {}
func (Conditional) exprNode() {}
func (Object) exprNode()      {}
func (Array) exprNode()       {}

func (n Literal) Offset() int     { return n.Pos }
func (n Ident) Offset() int       { return n.Pos }
func (n Arg) Offset() int         { return n.Pos }
func (n Member) Offset() int      { return n.Pos }
func (n Index) Offset() int       { return n.Pos }
func (n Unary) Offset() int       { return n.Pos }
func (n Binary) Offset() int      { return n.Pos }
func (n Conditional) Offset() int { return n.Pos }
func (n Object) Offset() int      { return n.Pos }
func (n Array) Offset() int       { return n.Pos }

// FreeIdentifiers returns the variable names referenced by the tree in order
// of first appearance. Member property names, object literal keys and
// captured-value references are not variables.
func FreeIdentifiers(n Node) []string {
	var names []string
	seen := map[string]bool{}
	var walk func(Node)
	walk = func(n Node) {
		switch x := n.(type) {
		case Ident:
			if !seen[x.Name] {
				seen[x.Name] = true
				names = append(names, x.Name)
			}
		case Member:
			walk(x.Object)
		case Index:
			walk(x.Object)
			walk(x.Index)
		case Unary:
			walk(x.X)
		case Binary:
			walk(x.Left)
			walk(x.Right)
		case Conditional:
			walk(x.Test)
			walk(x.Then)
			walk(x.Else)
		case Object:
			for _, p := range x.Props {
				walk(p.Value)
			}
		case Array:
			for _, e := range x.Elems {
				walk(e)
			}
		}
	}
	walk(n)
	return names
}
