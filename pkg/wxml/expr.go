package wxml

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/walteh/wxls/pkg/position"
)

type ExprKind uint8

const (
	ExprUnknown ExprKind = iota
	ExprLitStr
	ExprLitNumber
	ExprLitBool
	ExprLitNull
	ExprLitUndefined
	ExprScopeRef
	ExprDataField
	ExprStaticMember
	ExprDynamicMember
	ExprCall
	ExprUnary
	ExprBinary
	ExprPlus
	ExprCond
	ExprArray
	ExprObject
	ExprObjectField
	ExprSpread
	ExprToString
)

var exprKindNames = [...]string{
	ExprUnknown:       "Unknown",
	ExprLitStr:        "LitStr",
	ExprLitNumber:     "LitNumber",
	ExprLitBool:       "LitBool",
	ExprLitNull:       "LitNull",
	ExprLitUndefined:  "LitUndefined",
	ExprScopeRef:      "ScopeRef",
	ExprDataField:     "DataField",
	ExprStaticMember:  "StaticMember",
	ExprDynamicMember: "DynamicMember",
	ExprCall:          "Call",
	ExprUnary:         "Unary",
	ExprBinary:        "Binary",
	ExprPlus:          "Plus",
	ExprCond:          "Cond",
	ExprArray:         "Array",
	ExprObject:        "Object",
	ExprObjectField:   "ObjectField",
	ExprSpread:        "Spread",
	ExprToString:      "ToString",
}

func (k ExprKind) String() string {
	return exprKindNames[k]
}

// Expr is a compiled template expression.
//
// Value holds the literal text, the referenced name, the member name or the object key.
// Index is the position of the referenced scope in the scope stack for ExprScopeRef.
// FieldLocation is the member name span for ExprStaticMember.
type Expr struct {
	Kind          ExprKind
	Location      position.Range
	Op            string
	Value         string
	Index         int
	FieldLocation position.Range
	Children      []*Expr
}

var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "whitespace", Pattern: `[ \t\r\n]+`},
	{Name: "Number", Pattern: `(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)(?:[eE][-+]?[0-9]+)?`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"|'(?:\\.|[^'\\])*'`},
	{Name: "Ident", Pattern: `[A-Za-z_$][A-Za-z0-9_$]*`},
	{Name: "Punct", Pattern: `===|!==|==|!=|<=|>=|&&|\|\||\.\.\.|[-+*/%!<>?:.,()\[\]{}]`},
})

type exprRoot struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Cond   *binaryExpr `@@`
	Then   *exprRoot   `( "?" @@`
	Else   *exprRoot   `  ":" @@ )?`
}

type binaryExpr struct {
	Head *unaryExpr    `@@`
	Tail []*binaryTail `@@*`
}

type binaryTail struct {
	Op      string     `@( "===" | "!==" | "==" | "!=" | "<=" | ">=" | "&&" | "||" | "<" | ">" | "+" | "-" | "*" | "/" | "%" )`
	Operand *unaryExpr `@@`
}

type unaryExpr struct {
	Pos     lexer.Position
	EndPos  lexer.Position
	Op      string       `(   @( "!" | "-" | "+" | "typeof" | "void" )`
	Operand *unaryExpr   `    @@ )`
	Postfix *postfixExpr `| @@`
}

type postfixExpr struct {
	Primary  *primaryExpr `@@`
	Suffixes []*suffix    `@@*`
}

type suffix struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Member *nameExpr `  "." @@`
	Index  *exprRoot `| "[" @@ "]"`
	Call   *callArgs `| @@`
}

type nameExpr struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Name   string `@Ident`
}

type callArgs struct {
	Open string      `@"("`
	Args []*exprRoot `( @@ ( "," @@ )* )? ")"`
}

type primaryExpr struct {
	Pos       lexer.Position
	EndPos    lexer.Position
	Number    *string     `  @Number`
	String    *string     `| @String`
	Bool      *string     `| @( "true" | "false" )`
	Null      bool        `| @"null"`
	Undefined bool        `| @"undefined"`
	Ident     *string     `| @Ident`
	Paren     *exprRoot   `| "(" @@ ")"`
	Array     *arrayExpr  `| @@`
	Object    *objectExpr `| @@`
}

type arrayExpr struct {
	Open  string      `@"["`
	Items []*listItem `( @@ ( "," @@ )* )? "]"`
}

type listItem struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Spread bool      `@"..."?`
	Value  *exprRoot `@@`
}

type objectExpr struct {
	Open   string         `@"{"`
	Fields []*objectField `( @@ ( "," @@ )* )? "}"`
}

type objectField struct {
	Pos      lexer.Position
	EndPos   lexer.Position
	Spread   *exprRoot `  "..." @@`
	KeyIdent *nameExpr `| ( @@`
	KeyStr   *string   `  | @String )`
	Value    *exprRoot `  ( ":" @@ )?`
}

var exprParser = participle.MustBuild[exprRoot](
	participle.Lexer(exprLexer),
	participle.Elide("whitespace"),
	participle.UseLookahead(4),
)

var binaryPrecedence = map[string]int{
	"||":  1,
	"&&":  2,
	"==":  3,
	"!=":  3,
	"===": 3,
	"!==": 3,
	"<":   4,
	">":   4,
	"<=":  4,
	">=":  4,
	"+":   5,
	"-":   5,
	"*":   6,
	"/":   6,
	"%":   6,
}

// exprCompiler turns grammar nodes into Expr trees. base is the byte offset of the
// parsed source inside the template; scopes is the stack visible at that point.
type exprCompiler struct {
	ix     *position.Index
	src    string
	base   int
	scopes []Scope
}

// parseExpr parses src, which starts at byte offset base of the template.
func parseExpr(ix *position.Index, src string, base int, scopes []Scope) (*Expr, error) {
	root, err := exprParser.ParseString("", src)
	if err != nil {
		return nil, err
	}
	c := &exprCompiler{ix: ix, src: src, base: base, scopes: scopes}
	return c.root(root), nil
}

// rng converts a node span, dropping any trailing whitespace the parser included.
func (c *exprCompiler) rng(start, end lexer.Position) position.Range {
	e := min(end.Offset, len(c.src))
	for e > start.Offset && isSpace(c.src[e-1]) {
		e--
	}
	return c.ix.RangeFor(c.base+start.Offset, c.base+e)
}

func (c *exprCompiler) root(g *exprRoot) *Expr {
	cond := c.binary(g.Cond)
	if g.Then == nil {
		return cond
	}
	return &Expr{
		Kind:     ExprCond,
		Location: c.rng(g.Pos, g.EndPos),
		Children: []*Expr{cond, c.root(g.Then), c.root(g.Else)},
	}
}

func (c *exprCompiler) binary(g *binaryExpr) *Expr {
	out := []*Expr{c.unary(g.Head)}
	var ops []string

	apply := func() {
		op := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		l, r := out[len(out)-2], out[len(out)-1]
		out = out[:len(out)-2]
		kind := ExprBinary
		if op == "+" {
			kind = ExprPlus
		}
		out = append(out, &Expr{
			Kind:     kind,
			Op:       op,
			Location: l.Location.Union(r.Location),
			Children: []*Expr{l, r},
		})
	}

	for _, tail := range g.Tail {
		for len(ops) > 0 && binaryPrecedence[ops[len(ops)-1]] >= binaryPrecedence[tail.Op] {
			apply()
		}
		ops = append(ops, tail.Op)
		out = append(out, c.unary(tail.Operand))
	}
	for len(ops) > 0 {
		apply()
	}
	return out[0]
}

func (c *exprCompiler) unary(g *unaryExpr) *Expr {
	if g.Postfix != nil {
		return c.postfix(g.Postfix)
	}
	return &Expr{
		Kind:     ExprUnary,
		Op:       g.Op,
		Location: c.rng(g.Pos, g.EndPos),
		Children: []*Expr{c.unary(g.Operand)},
	}
}

func (c *exprCompiler) postfix(g *postfixExpr) *Expr {
	cur := c.primary(g.Primary)
	for _, s := range g.Suffixes {
		loc := position.Range{Start: cur.Location.Start, End: c.rng(s.Pos, s.EndPos).End}
		switch {
		case s.Member != nil:
			cur = &Expr{
				Kind:          ExprStaticMember,
				Location:      loc,
				Value:         s.Member.Name,
				FieldLocation: c.rng(s.Member.Pos, s.Member.EndPos),
				Children:      []*Expr{cur},
			}
		case s.Index != nil:
			cur = &Expr{
				Kind:     ExprDynamicMember,
				Location: loc,
				Children: []*Expr{cur, c.root(s.Index)},
			}
		default:
			children := []*Expr{cur}
			for _, arg := range s.Call.Args {
				children = append(children, c.root(arg))
			}
			cur = &Expr{Kind: ExprCall, Location: loc, Children: children}
		}
	}
	return cur
}

func (c *exprCompiler) primary(g *primaryExpr) *Expr {
	loc := c.rng(g.Pos, g.EndPos)
	switch {
	case g.Number != nil:
		return &Expr{Kind: ExprLitNumber, Location: loc, Value: *g.Number}
	case g.String != nil:
		return &Expr{Kind: ExprLitStr, Location: loc, Value: unquote(*g.String)}
	case g.Bool != nil:
		return &Expr{Kind: ExprLitBool, Location: loc, Value: *g.Bool}
	case g.Null:
		return &Expr{Kind: ExprLitNull, Location: loc, Value: "null"}
	case g.Undefined:
		return &Expr{Kind: ExprLitUndefined, Location: loc, Value: "undefined"}
	case g.Ident != nil:
		return c.ident(*g.Ident, loc)
	case g.Paren != nil:
		return c.root(g.Paren)
	case g.Array != nil:
		arr := &Expr{Kind: ExprArray, Location: loc}
		for _, item := range g.Array.Items {
			v := c.root(item.Value)
			if item.Spread {
				v = &Expr{Kind: ExprSpread, Location: c.rng(item.Pos, item.EndPos), Children: []*Expr{v}}
			}
			arr.Children = append(arr.Children, v)
		}
		return arr
	case g.Object != nil:
		obj := &Expr{Kind: ExprObject, Location: loc}
		for _, f := range g.Object.Fields {
			obj.Children = append(obj.Children, c.field(f))
		}
		return obj
	}
	return &Expr{Kind: ExprUnknown, Location: loc}
}

func (c *exprCompiler) field(f *objectField) *Expr {
	loc := c.rng(f.Pos, f.EndPos)
	if f.Spread != nil {
		return &Expr{Kind: ExprSpread, Location: loc, Children: []*Expr{c.root(f.Spread)}}
	}
	out := &Expr{Kind: ExprObjectField, Location: loc}
	switch {
	case f.KeyIdent != nil:
		out.Value = f.KeyIdent.Name
		out.FieldLocation = c.rng(f.KeyIdent.Pos, f.KeyIdent.EndPos)
	case f.KeyStr != nil:
		out.Value = unquote(*f.KeyStr)
	}
	switch {
	case f.Value != nil:
		out.Children = []*Expr{c.root(f.Value)}
	case f.KeyIdent != nil:
		// {a} is shorthand for {a: a}
		out.Children = []*Expr{c.ident(f.KeyIdent.Name, out.FieldLocation)}
	}
	return out
}

// ident binds a bare name to the innermost scope with that name, or to a data field.
func (c *exprCompiler) ident(name string, loc position.Range) *Expr {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if c.scopes[i].Name.Name == name {
			return &Expr{Kind: ExprScopeRef, Location: loc, Value: name, Index: i}
		}
	}
	return &Expr{Kind: ExprDataField, Location: loc, Value: name}
}

// unquote decodes a quoted literal. Unknown escapes keep the escaped character.
func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	body := s[1 : len(s)-1]
	if strings.IndexByte(body, '\\') < 0 {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		ch := body[i]
		if ch != '\\' || i+1 == len(body) {
			b.WriteByte(ch)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String()
}
