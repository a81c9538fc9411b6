package ast

import (
	"bytes"
	"strings"

	"kestrel/internal/token"
)

type Node interface {
	TokenLiteral() string
	String() string
	Line() int
}

type Statement interface {
	Node
	statementNode()
}

type Expression interface {
	Node
	expressionNode()
}

type Program struct {
	Statements []Statement
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

func (p *Program) Line() int {
	if len(p.Statements) > 0 {
		return p.Statements[0].Line()
	}
	return 1
}

func (p *Program) String() string {
	var out bytes.Buffer
	for _, s := range p.Statements {
		out.WriteString(s.String())
		out.WriteString("\n")
	}
	return out.String()
}

/* -------------------- Statements -------------------- */

type ExpressionStatement struct {
	Token      token.Token // first token of expression
	Expression Expression
}

func (*ExpressionStatement) statementNode()          {}
func (es *ExpressionStatement) TokenLiteral() string { return es.Token.Literal }
func (es *ExpressionStatement) Line() int            { return es.Token.Line }
func (es *ExpressionStatement) String() string {
	if es.Expression == nil {
		return ""
	}
	return es.Expression.String()
}

type LetStatement struct {
	Token token.Token // 'let' or 'const'
	Const bool
	Name  *Identifier
	Value Expression // nil for `let x;`
}

func (*LetStatement) statementNode()          {}
func (ls *LetStatement) TokenLiteral() string { return ls.Token.Literal }
func (ls *LetStatement) Line() int            { return ls.Token.Line }
func (ls *LetStatement) String() string {
	var out bytes.Buffer
	if ls.Const {
		out.WriteString("const ")
	} else {
		out.WriteString("let ")
	}
	out.WriteString(ls.Name.String())
	if ls.Value != nil {
		out.WriteString(" = ")
		out.WriteString(ls.Value.String())
	}
	out.WriteString(";")
	return out.String()
}

type BlockStatement struct {
	Token      token.Token // '{'
	Statements []Statement
}

func (*BlockStatement) statementNode()          {}
func (bs *BlockStatement) TokenLiteral() string { return bs.Token.Literal }
func (bs *BlockStatement) Line() int            { return bs.Token.Line }
func (bs *BlockStatement) String() string {
	var out bytes.Buffer
	out.WriteString("{ ")
	for _, s := range bs.Statements {
		out.WriteString(s.String())
		out.WriteString(" ")
	}
	out.WriteString("}")
	return out.String()
}

type IfStatement struct {
	Token       token.Token // 'if'
	Condition   Expression
	Consequence *BlockStatement
	Alternative Statement // *BlockStatement or *IfStatement (else if), may be nil
}

func (*IfStatement) statementNode()          {}
func (is *IfStatement) TokenLiteral() string { return is.Token.Literal }
func (is *IfStatement) Line() int            { return is.Token.Line }
func (is *IfStatement) String() string {
	var out bytes.Buffer
	out.WriteString("if (")
	out.WriteString(is.Condition.String())
	out.WriteString(") ")
	out.WriteString(is.Consequence.String())
	if is.Alternative != nil {
		out.WriteString(" else ")
		out.WriteString(is.Alternative.String())
	}
	return out.String()
}

type WhileStatement struct {
	Token     token.Token // 'while'
	Condition Expression
	Body      *BlockStatement
}

func (*WhileStatement) statementNode()          {}
func (ws *WhileStatement) TokenLiteral() string { return ws.Token.Literal }
func (ws *WhileStatement) Line() int            { return ws.Token.Line }
func (ws *WhileStatement) String() string {
	return "while (" + ws.Condition.String() + ") " + ws.Body.String()
}

type DoWhileStatement struct {
	Token     token.Token // 'do'
	Body      *BlockStatement
	Condition Expression
}

func (*DoWhileStatement) statementNode()          {}
func (ds *DoWhileStatement) TokenLiteral() string { return ds.Token.Literal }
func (ds *DoWhileStatement) Line() int            { return ds.Token.Line }
func (ds *DoWhileStatement) String() string {
	return "do " + ds.Body.String() + " while (" + ds.Condition.String() + ");"
}

// ForStatement is the C-style loop. Init, Condition and Post may be nil.
type ForStatement struct {
	Token     token.Token // 'for'
	Init      Statement
	Condition Expression
	Post      Expression
	Body      *BlockStatement
}

func (*ForStatement) statementNode()          {}
func (fs *ForStatement) TokenLiteral() string { return fs.Token.Literal }
func (fs *ForStatement) Line() int            { return fs.Token.Line }
func (fs *ForStatement) String() string {
	var out bytes.Buffer
	out.WriteString("for (")
	if fs.Init != nil {
		out.WriteString(strings.TrimSuffix(fs.Init.String(), ";"))
	}
	out.WriteString("; ")
	if fs.Condition != nil {
		out.WriteString(fs.Condition.String())
	}
	out.WriteString("; ")
	if fs.Post != nil {
		out.WriteString(fs.Post.String())
	}
	out.WriteString(") ")
	out.WriteString(fs.Body.String())
	return out.String()
}

type ForInStatement struct {
	Token    token.Token // 'for'
	Var      *Identifier
	Iterable Expression
	Body     *BlockStatement
}

func (*ForInStatement) statementNode()          {}
func (fs *ForInStatement) TokenLiteral() string { return fs.Token.Literal }
func (fs *ForInStatement) Line() int            { return fs.Token.Line }
func (fs *ForInStatement) String() string {
	return "for (" + fs.Var.String() + " in " + fs.Iterable.String() + ") " + fs.Body.String()
}

type LoopStatement struct {
	Token token.Token // 'loop'
	Body  *BlockStatement
}

func (*LoopStatement) statementNode()          {}
func (ls *LoopStatement) TokenLiteral() string { return ls.Token.Literal }
func (ls *LoopStatement) Line() int            { return ls.Token.Line }
func (ls *LoopStatement) String() string       { return "loop " + ls.Body.String() }

// CaseArm is one `a, b => body` arm. Default arms have no values.
type CaseArm struct {
	Token   token.Token
	Values  []Expression
	Default bool
	Body    Statement // *BlockStatement or single statement
}

func (a *CaseArm) String() string {
	head := "default"
	if !a.Default {
		vals := make([]string, 0, len(a.Values))
		for _, v := range a.Values {
			vals = append(vals, v.String())
		}
		head = strings.Join(vals, ", ")
	}
	return head + " => " + a.Body.String()
}

// CaseStatement with a nil Subject is a guard case (`case of { ... }`).
type CaseStatement struct {
	Token   token.Token // 'case'
	Subject Expression
	Arms    []*CaseArm
}

func (*CaseStatement) statementNode()          {}
func (cs *CaseStatement) TokenLiteral() string { return cs.Token.Literal }
func (cs *CaseStatement) Line() int            { return cs.Token.Line }
func (cs *CaseStatement) String() string {
	var out bytes.Buffer
	out.WriteString("case ")
	if cs.Subject != nil {
		out.WriteString(cs.Subject.String())
		out.WriteString(" ")
	}
	out.WriteString("of { ")
	for _, a := range cs.Arms {
		out.WriteString(a.String())
		out.WriteString("; ")
	}
	out.WriteString("}")
	return out.String()
}

type BreakStatement struct {
	Token token.Token
}

func (*BreakStatement) statementNode()          {}
func (bs *BreakStatement) TokenLiteral() string { return bs.Token.Literal }
func (bs *BreakStatement) Line() int            { return bs.Token.Line }
func (bs *BreakStatement) String() string       { return "break;" }

type ContinueStatement struct {
	Token token.Token
}

func (*ContinueStatement) statementNode()          {}
func (cs *ContinueStatement) TokenLiteral() string { return cs.Token.Literal }
func (cs *ContinueStatement) Line() int            { return cs.Token.Line }
func (cs *ContinueStatement) String() string       { return "continue;" }

type ReturnStatement struct {
	Token       token.Token
	ReturnValue Expression // may be nil
}

func (*ReturnStatement) statementNode()          {}
func (rs *ReturnStatement) TokenLiteral() string { return rs.Token.Literal }
func (rs *ReturnStatement) Line() int            { return rs.Token.Line }
func (rs *ReturnStatement) String() string {
	if rs.ReturnValue == nil {
		return "return;"
	}
	return "return " + rs.ReturnValue.String() + ";"
}

type FunctionStatement struct {
	Token    token.Token // 'fn'
	Name     *Identifier
	Function *FunctionLiteral
}

func (*FunctionStatement) statementNode()          {}
func (fs *FunctionStatement) TokenLiteral() string { return fs.Token.Literal }
func (fs *FunctionStatement) Line() int            { return fs.Token.Line }
func (fs *FunctionStatement) String() string {
	return "fn " + fs.Name.String() + fs.Function.signature() + " " + fs.Function.Body.String()
}

type MethodDecl struct {
	Name     *Identifier
	Static   bool
	Function *FunctionLiteral
}

type DefinitionStatement struct {
	Token   token.Token // 'def'
	Name    *Identifier
	Base    *Identifier // may be nil
	Methods []*MethodDecl
}

func (*DefinitionStatement) statementNode()          {}
func (ds *DefinitionStatement) TokenLiteral() string { return ds.Token.Literal }
func (ds *DefinitionStatement) Line() int            { return ds.Token.Line }
func (ds *DefinitionStatement) String() string {
	var out bytes.Buffer
	out.WriteString("def ")
	out.WriteString(ds.Name.String())
	if ds.Base != nil {
		out.WriteString(" : ")
		out.WriteString(ds.Base.String())
	}
	out.WriteString(" { ")
	for _, m := range ds.Methods {
		if m.Static {
			out.WriteString("static ")
		}
		out.WriteString("fn ")
		out.WriteString(m.Name.String())
		out.WriteString(m.Function.signature())
		out.WriteString(" ")
		out.WriteString(m.Function.Body.String())
		out.WriteString(" ")
	}
	out.WriteString("}")
	return out.String()
}

/* -------------------- Expressions -------------------- */

type Identifier struct {
	Token token.Token
	Value string
}

func (*Identifier) expressionNode()        {}
func (i *Identifier) TokenLiteral() string { return i.Token.Literal }
func (i *Identifier) Line() int            { return i.Token.Line }
func (i *Identifier) String() string       { return i.Value }

type SelfExpression struct {
	Token token.Token
}

func (*SelfExpression) expressionNode()        {}
func (s *SelfExpression) TokenLiteral() string { return s.Token.Literal }
func (s *SelfExpression) Line() int            { return s.Token.Line }
func (s *SelfExpression) String() string       { return "self" }

// BaseExpression is `base.name`; a call on it becomes a base invoke.
type BaseExpression struct {
	Token  token.Token
	Method *Identifier
}

func (*BaseExpression) expressionNode()        {}
func (b *BaseExpression) TokenLiteral() string { return b.Token.Literal }
func (b *BaseExpression) Line() int            { return b.Token.Line }
func (b *BaseExpression) String() string       { return "base." + b.Method.String() }

type IntegerLiteral struct {
	Token token.Token
	Value int64
}

func (*IntegerLiteral) expressionNode()         {}
func (il *IntegerLiteral) TokenLiteral() string { return il.Token.Literal }
func (il *IntegerLiteral) Line() int            { return il.Token.Line }
func (il *IntegerLiteral) String() string       { return il.Token.Literal }

type FloatLiteral struct {
	Token token.Token
	Value float64
}

func (*FloatLiteral) expressionNode()         {}
func (fl *FloatLiteral) TokenLiteral() string { return fl.Token.Literal }
func (fl *FloatLiteral) Line() int            { return fl.Token.Line }
func (fl *FloatLiteral) String() string       { return fl.Token.Literal }

type StringLiteral struct {
	Token token.Token
	Value string
}

func (*StringLiteral) expressionNode()         {}
func (sl *StringLiteral) TokenLiteral() string { return sl.Token.Literal }
func (sl *StringLiteral) Line() int            { return sl.Token.Line }
func (sl *StringLiteral) String() string {
	if sl.Token.Raw != "" {
		return sl.Token.Raw
	}
	return `"` + sl.Value + `"`
}

// Interpolation is a string with ${...} parts. Parts alternate freely between
// *StringLiteral and arbitrary expressions.
type Interpolation struct {
	Token token.Token
	Parts []Expression
}

func (*Interpolation) expressionNode()        {}
func (in *Interpolation) TokenLiteral() string { return in.Token.Literal }
func (in *Interpolation) Line() int            { return in.Token.Line }
func (in *Interpolation) String() string {
	if in.Token.Raw != "" {
		return in.Token.Raw
	}
	return `"` + in.Token.Literal + `"`
}

type BooleanLiteral struct {
	Token token.Token
	Value bool
}

func (*BooleanLiteral) expressionNode()        {}
func (b *BooleanLiteral) TokenLiteral() string { return b.Token.Literal }
func (b *BooleanLiteral) Line() int            { return b.Token.Line }
func (b *BooleanLiteral) String() string       { return b.Token.Literal }

type NilLiteral struct {
	Token token.Token
}

func (*NilLiteral) expressionNode()        {}
func (n *NilLiteral) TokenLiteral() string { return n.Token.Literal }
func (n *NilLiteral) Line() int            { return n.Token.Line }
func (n *NilLiteral) String() string       { return "nil" }

type ListLiteral struct {
	Token    token.Token // '['
	Elements []Expression
}

func (*ListLiteral) expressionNode()         {}
func (ll *ListLiteral) TokenLiteral() string { return ll.Token.Literal }
func (ll *ListLiteral) Line() int            { return ll.Token.Line }
func (ll *ListLiteral) String() string {
	elems := make([]string, 0, len(ll.Elements))
	for _, e := range ll.Elements {
		elems = append(elems, e.String())
	}
	return "[" + strings.Join(elems, ", ") + "]"
}

type DictEntry struct {
	Key   Expression
	Value Expression
}

type DictLiteral struct {
	Token   token.Token // '{'
	Entries []DictEntry
}

func (*DictLiteral) expressionNode()         {}
func (dl *DictLiteral) TokenLiteral() string { return dl.Token.Literal }
func (dl *DictLiteral) Line() int            { return dl.Token.Line }
func (dl *DictLiteral) String() string {
	pairs := make([]string, 0, len(dl.Entries))
	for _, e := range dl.Entries {
		pairs = append(pairs, e.Key.String()+": "+e.Value.String())
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}

type RangeExpression struct {
	Token token.Token // '..'
	Start Expression
	End   Expression
}

func (*RangeExpression) expressionNode()         {}
func (re *RangeExpression) TokenLiteral() string { return re.Token.Literal }
func (re *RangeExpression) Line() int            { return re.Token.Line }
func (re *RangeExpression) String() string {
	return "(" + re.Start.String() + ".." + re.End.String() + ")"
}

type PrefixExpression struct {
	Token    token.Token
	Operator string
	Right    Expression
}

func (*PrefixExpression) expressionNode()         {}
func (pe *PrefixExpression) TokenLiteral() string { return pe.Token.Literal }
func (pe *PrefixExpression) Line() int            { return pe.Token.Line }
func (pe *PrefixExpression) String() string {
	op := pe.Operator
	if op == "not" {
		op = "not "
	}
	return "(" + op + pe.Right.String() + ")"
}

type InfixExpression struct {
	Token    token.Token
	Left     Expression
	Operator string
	Right    Expression
}

func (*InfixExpression) expressionNode()         {}
func (ie *InfixExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *InfixExpression) Line() int            { return ie.Token.Line }
func (ie *InfixExpression) String() string {
	return "(" + ie.Left.String() + " " + ie.Operator + " " + ie.Right.String() + ")"
}

// LogicalExpression is `and`/`or`; kept apart from InfixExpression because it
// short-circuits.
type LogicalExpression struct {
	Token    token.Token
	Left     Expression
	Operator string
	Right    Expression
}

func (*LogicalExpression) expressionNode()         {}
func (le *LogicalExpression) TokenLiteral() string { return le.Token.Literal }
func (le *LogicalExpression) Line() int            { return le.Token.Line }
func (le *LogicalExpression) String() string {
	return "(" + le.Left.String() + " " + le.Operator + " " + le.Right.String() + ")"
}

// PostfixExpression is `x++` / `x--`; its value is the old value.
type PostfixExpression struct {
	Token    token.Token
	Operator string
	Target   Expression
}

func (*PostfixExpression) expressionNode()         {}
func (pe *PostfixExpression) TokenLiteral() string { return pe.Token.Literal }
func (pe *PostfixExpression) Line() int            { return pe.Token.Line }
func (pe *PostfixExpression) String() string {
	return "(" + pe.Target.String() + pe.Operator + ")"
}

// AssignExpression covers `=` and the compound forms. Operator is "=" or the
// arithmetic operator of a compound assignment ("+", "-", ...).
type AssignExpression struct {
	Token    token.Token
	Target   Expression
	Operator string
	Value    Expression
}

func (*AssignExpression) expressionNode()         {}
func (ae *AssignExpression) TokenLiteral() string { return ae.Token.Literal }
func (ae *AssignExpression) Line() int            { return ae.Token.Line }
func (ae *AssignExpression) String() string {
	op := "="
	if ae.Operator != "=" {
		op = ae.Operator + "="
	}
	return ae.Target.String() + " " + op + " " + ae.Value.String()
}

type CallExpression struct {
	Token     token.Token // '('
	Function  Expression
	Arguments []Expression
}

func (*CallExpression) expressionNode()         {}
func (ce *CallExpression) TokenLiteral() string { return ce.Token.Literal }
func (ce *CallExpression) Line() int            { return ce.Token.Line }
func (ce *CallExpression) String() string {
	args := make([]string, 0, len(ce.Arguments))
	for _, a := range ce.Arguments {
		args = append(args, a.String())
	}
	return ce.Function.String() + "(" + strings.Join(args, ", ") + ")"
}

type PropertyExpression struct {
	Token    token.Token // '.'
	Object   Expression
	Property *Identifier
}

func (*PropertyExpression) expressionNode()         {}
func (pe *PropertyExpression) TokenLiteral() string { return pe.Token.Literal }
func (pe *PropertyExpression) Line() int            { return pe.Token.Line }
func (pe *PropertyExpression) String() string {
	return pe.Object.String() + "." + pe.Property.String()
}

type IndexExpression struct {
	Token token.Token // '['
	Left  Expression
	Index Expression
}

func (*IndexExpression) expressionNode()         {}
func (ie *IndexExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *IndexExpression) Line() int            { return ie.Token.Line }
func (ie *IndexExpression) String() string {
	return "(" + ie.Left.String() + "[" + ie.Index.String() + "])"
}

type Parameter struct {
	Name    *Identifier
	Default Expression // nil when the parameter has no default
}

// FunctionLiteral is `fn (params) { body }` or a lambda `|params| expr`.
// Lambdas carry their expression as a single return statement in Body.
type FunctionLiteral struct {
	Token      token.Token
	Name       string // filled in for named functions and methods
	Parameters []*Parameter
	Variadic   bool // last parameter collects the tail
	Lambda     bool
	Body       *BlockStatement
}

func (*FunctionLiteral) expressionNode()         {}
func (fl *FunctionLiteral) TokenLiteral() string { return fl.Token.Literal }
func (fl *FunctionLiteral) Line() int            { return fl.Token.Line }

func (fl *FunctionLiteral) signature() string {
	params := make([]string, 0, len(fl.Parameters))
	for i, p := range fl.Parameters {
		s := p.Name.String()
		if fl.Variadic && i == len(fl.Parameters)-1 {
			s = "..." + s
		}
		if p.Default != nil {
			s += " = " + p.Default.String()
		}
		params = append(params, s)
	}
	return "(" + strings.Join(params, ", ") + ")"
}

func (fl *FunctionLiteral) String() string {
	if fl.Lambda {
		params := strings.TrimSuffix(strings.TrimPrefix(fl.signature(), "("), ")")
		body := ""
		if len(fl.Body.Statements) == 1 {
			if rs, ok := fl.Body.Statements[0].(*ReturnStatement); ok && rs.ReturnValue != nil {
				body = rs.ReturnValue.String()
			}
		}
		return "|" + params + "| " + body
	}
	return "fn" + fl.signature() + " " + fl.Body.String()
}
