package parser

import (
	"fmt"
	"strconv"

	"kestrel/internal/ast"
	"kestrel/internal/diag"
	"kestrel/internal/lexer"
	"kestrel/internal/token"
)

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

type Parser struct {
	l      *lexer.Lexer
	errors []string
	diags  []diag.Diagnostic

	curToken  token.Token
	peekToken token.Token

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn
}

/* -------------------- precedence -------------------- */

const (
	_ int = iota
	LOWEST
	ASSIGNPREC  // = += -= ...
	ORPREC      // or
	ANDPREC     // and
	EQUALS      // == !=
	LESSGREATER // < <= > >=
	RANGEPREC   // ..
	SUM         // + -
	PRODUCT     // * / %
	PREFIX      // -X, not X, !X
	POSTFIX     // X++ X--
	CALL        // fn(X), a[i], a.b
)

var precedences = map[token.Type]int{
	token.ASSIGN:         ASSIGNPREC,
	token.PLUS_ASSIGN:    ASSIGNPREC,
	token.MINUS_ASSIGN:   ASSIGNPREC,
	token.STAR_ASSIGN:    ASSIGNPREC,
	token.SLASH_ASSIGN:   ASSIGNPREC,
	token.PERCENT_ASSIGN: ASSIGNPREC,
	token.OR:             ORPREC,
	token.AND:            ANDPREC,
	token.EQ:             EQUALS,
	token.NE:             EQUALS,
	token.LT:             LESSGREATER,
	token.LE:             LESSGREATER,
	token.GT:             LESSGREATER,
	token.GE:             LESSGREATER,
	token.DOTDOT:         RANGEPREC,
	token.PLUS:           SUM,
	token.MINUS:          SUM,
	token.STAR:           PRODUCT,
	token.SLASH:          PRODUCT,
	token.PERCENT:        PRODUCT,
	token.INCR:           POSTFIX,
	token.DECR:           POSTFIX,
	token.LBRACKET:       CALL,
	token.LPAREN:         CALL,
	token.DOT:            CALL,
}

var compoundOps = map[token.Type]string{
	token.ASSIGN:         "=",
	token.PLUS_ASSIGN:    "+",
	token.MINUS_ASSIGN:   "-",
	token.STAR_ASSIGN:    "*",
	token.SLASH_ASSIGN:   "/",
	token.PERCENT_ASSIGN: "%",
}

/* -------------------- constructor -------------------- */

func New(l *lexer.Lexer) *Parser {
	p := &Parser{
		l:              l,
		errors:         []string{},
		diags:          []diag.Diagnostic{},
		prefixParseFns: map[token.Type]prefixParseFn{},
		infixParseFns:  map[token.Type]infixParseFn{},
	}

	// read two tokens, so cur and peek are set
	p.nextToken()
	p.nextToken()

	// Prefix parsers
	p.registerPrefix(token.IDENT, p.parseIdentifier)
	p.registerPrefix(token.INT, p.parseIntegerLiteral)
	p.registerPrefix(token.FLOAT, p.parseFloatLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.TEMPLATE, p.parseInterpolation)
	p.registerPrefix(token.TRUE, p.parseBooleanLiteral)
	p.registerPrefix(token.FALSE, p.parseBooleanLiteral)
	p.registerPrefix(token.NIL, p.parseNilLiteral)
	p.registerPrefix(token.SELF, p.parseSelf)
	p.registerPrefix(token.BASE, p.parseBase)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(token.LBRACKET, p.parseListLiteral)
	p.registerPrefix(token.LBRACE, p.parseDictLiteral)
	p.registerPrefix(token.MINUS, p.parsePrefixExpression)
	p.registerPrefix(token.NOT, p.parsePrefixExpression)
	p.registerPrefix(token.BANG, p.parsePrefixExpression)
	p.registerPrefix(token.FN, p.parseFunctionLiteral)
	p.registerPrefix(token.PIPE, p.parseLambda)

	// Infix parsers
	for _, tt := range []token.Type{
		token.PLUS, token.MINUS, token.STAR, token.SLASH, token.PERCENT,
		token.EQ, token.NE, token.LT, token.LE, token.GT, token.GE,
	} {
		p.registerInfix(tt, p.parseInfixExpression)
	}
	p.registerInfix(token.AND, p.parseLogicalExpression)
	p.registerInfix(token.OR, p.parseLogicalExpression)
	p.registerInfix(token.DOTDOT, p.parseRangeExpression)
	for tt := range compoundOps {
		p.registerInfix(tt, p.parseAssignExpression)
	}
	p.registerInfix(token.INCR, p.parsePostfixExpression)
	p.registerInfix(token.DECR, p.parsePostfixExpression)
	p.registerInfix(token.LBRACKET, p.parseIndexExpression)
	p.registerInfix(token.LPAREN, p.parseCallExpression)
	p.registerInfix(token.DOT, p.parsePropertyExpression)

	return p
}

func (p *Parser) Diagnostics() []diag.Diagnostic { return p.diags }
func (p *Parser) Errors() []string               { return p.errors }

/* -------------------- program -------------------- */

func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{Statements: []ast.Statement{}}

	for p.curToken.Type != token.EOF {
		if p.curToken.Type == token.SEMICOLON {
			p.nextToken()
			continue
		}

		stmt := p.parseStatement()
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}

		p.nextToken()
	}

	return program
}

/* -------------------- statements -------------------- */

// parseStatement leaves curToken on the last token of the statement,
// including an optional trailing ';'.
func (p *Parser) parseStatement() ast.Statement {
	var stmt ast.Statement
	switch p.curToken.Type {
	case token.LET, token.CONST:
		stmt = p.parseLetStatement()
	case token.FN:
		if p.peekToken.Type == token.IDENT {
			stmt = p.parseFunctionStatement()
		} else {
			stmt = p.parseExpressionStatement()
		}
	case token.DEF:
		stmt = p.parseDefinitionStatement()
	case token.RETURN:
		stmt = p.parseReturnStatement()
	case token.BREAK:
		stmt = &ast.BreakStatement{Token: p.curToken}
	case token.CONTINUE:
		stmt = &ast.ContinueStatement{Token: p.curToken}
	case token.IF:
		stmt = p.parseIfStatement()
	case token.WHILE:
		stmt = p.parseWhileStatement()
	case token.DO:
		stmt = p.parseDoWhileStatement()
	case token.FOR:
		stmt = p.parseForStatement()
	case token.LOOP:
		stmt = p.parseLoopStatement()
	case token.CASE:
		stmt = p.parseCaseStatement()
	case token.LBRACE:
		stmt = p.parseBlockStatement()
	default:
		stmt = p.parseExpressionStatement()
	}
	if p.peekToken.Type == token.SEMICOLON {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseLetStatement() ast.Statement {
	stmt := &ast.LetStatement{Token: p.curToken, Const: p.curToken.Type == token.CONST}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if p.peekToken.Type != token.ASSIGN {
		if stmt.Const {
			p.errorAt(p.peekToken, fmt.Sprintf("const %s requires a value", stmt.Name.Value))
			return nil
		}
		return stmt
	}
	p.nextToken() // '='
	p.nextToken()
	stmt.Value = p.parseExpression(LOWEST)
	if stmt.Value == nil {
		return nil
	}
	return stmt
}

func (p *Parser) parseFunctionStatement() ast.Statement {
	stmt := &ast.FunctionStatement{Token: p.curToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	fn := &ast.FunctionLiteral{Token: stmt.Token, Name: stmt.Name.Value}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	if !p.parseFunctionParameters(fn, token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	fn.Body = p.parseBlockStatement()
	stmt.Function = fn
	return stmt
}

func (p *Parser) parseDefinitionStatement() ast.Statement {
	stmt := &ast.DefinitionStatement{Token: p.curToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if p.peekToken.Type == token.COLON {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		stmt.Base = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	}

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	p.nextToken()

	for p.curToken.Type != token.RBRACE {
		if p.curToken.Type == token.EOF {
			p.errorAt(p.curToken, fmt.Sprintf("unterminated definition %s", stmt.Name.Value))
			return nil
		}
		if p.curToken.Type == token.SEMICOLON {
			p.nextToken()
			continue
		}
		m := &ast.MethodDecl{}
		if p.curToken.Type == token.STATIC {
			m.Static = true
			p.nextToken()
		}
		if p.curToken.Type != token.FN {
			p.errorAt(p.curToken, fmt.Sprintf("expected method declaration in %s, got %s", stmt.Name.Value, p.curToken.Type))
			return nil
		}
		fnTok := p.curToken
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		m.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
		fn := &ast.FunctionLiteral{Token: fnTok, Name: m.Name.Value}
		if !p.expectPeek(token.LPAREN) {
			return nil
		}
		if !p.parseFunctionParameters(fn, token.RPAREN) {
			return nil
		}
		if !p.expectPeek(token.LBRACE) {
			return nil
		}
		fn.Body = p.parseBlockStatement()
		m.Function = fn
		stmt.Methods = append(stmt.Methods, m)
		p.nextToken()
	}

	return stmt
}

// parseFunctionParameters reads `a, b = 1, ...rest` up to end. curToken is the
// opening delimiter; on success curToken is end.
func (p *Parser) parseFunctionParameters(fn *ast.FunctionLiteral, end token.Type) bool {
	fn.Parameters = []*ast.Parameter{}

	if p.peekToken.Type == end {
		p.nextToken()
		return true
	}

	for {
		p.nextToken()
		if fn.Variadic {
			p.errorAt(p.curToken, "variadic parameter must be last")
			return false
		}
		if p.curToken.Type == token.ELLIPSIS {
			fn.Variadic = true
			p.nextToken()
		}
		if p.curToken.Type != token.IDENT {
			p.errorAt(p.curToken, fmt.Sprintf("expected parameter name, got %s", p.curToken.Type))
			return false
		}
		param := &ast.Parameter{Name: &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}}
		if p.peekToken.Type == token.ASSIGN {
			if fn.Variadic {
				p.errorAt(p.peekToken, "variadic parameter cannot have a default")
				return false
			}
			p.nextToken()
			p.nextToken()
			param.Default = p.parseExpression(ASSIGNPREC)
			if param.Default == nil {
				return false
			}
		}
		fn.Parameters = append(fn.Parameters, param)

		if p.peekToken.Type != token.COMMA {
			break
		}
		p.nextToken()
	}

	return p.expectPeek(end)
}

func (p *Parser) parseReturnStatement() ast.Statement {
	stmt := &ast.ReturnStatement{Token: p.curToken}

	switch p.peekToken.Type {
	case token.SEMICOLON, token.RBRACE, token.EOF:
		return stmt
	}
	p.nextToken()
	stmt.ReturnValue = p.parseExpression(LOWEST)
	return stmt
}

func (p *Parser) parseExpressionStatement() ast.Statement {
	stmt := &ast.ExpressionStatement{Token: p.curToken}
	stmt.Expression = p.parseExpression(LOWEST)
	if stmt.Expression == nil {
		return nil
	}
	return stmt
}

func (p *Parser) parseIfStatement() ast.Statement {
	stmt := &ast.IfStatement{Token: p.curToken}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)

	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Consequence = p.parseBlockStatement()

	if p.peekToken.Type == token.ELSE {
		p.nextToken() // move to ELSE
		if p.peekToken.Type == token.IF {
			p.nextToken()
			alt := p.parseIfStatement()
			if alt == nil {
				return nil
			}
			stmt.Alternative = alt
			return stmt
		}
		if !p.expectPeek(token.LBRACE) {
			return nil
		}
		stmt.Alternative = p.parseBlockStatement()
	}

	return stmt
}

func (p *Parser) parseWhileStatement() ast.Statement {
	stmt := &ast.WhileStatement{Token: p.curToken}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)

	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	return stmt
}

func (p *Parser) parseDoWhileStatement() ast.Statement {
	stmt := &ast.DoWhileStatement{Token: p.curToken}

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()

	if !p.expectPeek(token.WHILE) {
		return nil
	}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return stmt
}

func (p *Parser) parseLoopStatement() ast.Statement {
	stmt := &ast.LoopStatement{Token: p.curToken}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	return stmt
}

func (p *Parser) parseForStatement() ast.Statement {
	forTok := p.curToken

	if !p.expectPeek(token.LPAREN) {
		return nil
	}

	// for (x in expr)
	if p.peekToken.Type == token.IDENT {
		p.nextToken()
		if p.peekToken.Type == token.IN {
			return p.parseForInFromCur(forTok)
		}
		return p.parseCForFromCur(forTok)
	}
	p.nextToken()
	return p.parseCForFromCur(forTok)
}

func (p *Parser) parseForInFromCur(forTok token.Token) ast.Statement {
	stmt := &ast.ForInStatement{Token: forTok}
	stmt.Var = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	p.nextToken() // 'in'
	p.nextToken()
	stmt.Iterable = p.parseExpression(LOWEST)
	if stmt.Iterable == nil {
		return nil
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	return stmt
}

// parseCForFromCur parses `init; cond; post)` with curToken on the first
// token after '('.
func (p *Parser) parseCForFromCur(forTok token.Token) ast.Statement {
	stmt := &ast.ForStatement{Token: forTok}

	if p.curToken.Type != token.SEMICOLON {
		switch p.curToken.Type {
		case token.LET, token.CONST:
			stmt.Init = p.parseLetStatement()
		default:
			stmt.Init = p.parseExpressionStatement()
		}
		if stmt.Init == nil {
			return nil
		}
		if !p.expectPeek(token.SEMICOLON) {
			return nil
		}
	}

	if p.peekToken.Type != token.SEMICOLON {
		p.nextToken()
		stmt.Condition = p.parseExpression(LOWEST)
	}
	if !p.expectPeek(token.SEMICOLON) {
		return nil
	}

	if p.peekToken.Type != token.RPAREN {
		p.nextToken()
		stmt.Post = p.parseExpression(LOWEST)
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	return stmt
}

func (p *Parser) parseCaseStatement() ast.Statement {
	stmt := &ast.CaseStatement{Token: p.curToken}

	if p.peekToken.Type != token.OF {
		p.nextToken()
		stmt.Subject = p.parseExpression(LOWEST)
		if stmt.Subject == nil {
			return nil
		}
	}
	if !p.expectPeek(token.OF) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	p.nextToken()

	seenDefault := false
	for p.curToken.Type != token.RBRACE {
		if p.curToken.Type == token.EOF {
			p.errorAt(p.curToken, "unterminated case")
			return nil
		}
		if p.curToken.Type == token.SEMICOLON || p.curToken.Type == token.COMMA {
			p.nextToken()
			continue
		}

		arm := &ast.CaseArm{Token: p.curToken}
		if p.curToken.Type == token.DEFAULT {
			if seenDefault {
				p.errorAt(p.curToken, "duplicate default arm in case")
				return nil
			}
			seenDefault = true
			arm.Default = true
		} else {
			if seenDefault {
				p.errorAt(p.curToken, "default arm must be last in case")
				return nil
			}
			for {
				v := p.parseExpression(LOWEST)
				if v == nil {
					return nil
				}
				arm.Values = append(arm.Values, v)
				if p.peekToken.Type != token.COMMA {
					break
				}
				p.nextToken()
				p.nextToken()
			}
		}

		if !p.expectPeek(token.ARROW) {
			return nil
		}
		p.nextToken()
		arm.Body = p.parseStatement()
		if arm.Body == nil {
			return nil
		}
		stmt.Arms = append(stmt.Arms, arm)
		p.nextToken()
	}

	return stmt
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	// curToken is '{'
	block := &ast.BlockStatement{Token: p.curToken, Statements: []ast.Statement{}}

	p.nextToken()

	for p.curToken.Type != token.RBRACE && p.curToken.Type != token.EOF {
		if p.curToken.Type == token.SEMICOLON {
			p.nextToken()
			continue
		}

		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}

		p.nextToken()
	}

	if p.curToken.Type == token.EOF {
		p.errorAt(block.Token, "unterminated block")
	}

	return block
}

/* -------------------- expressions (Pratt) -------------------- */

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.curToken)
		return nil
	}

	leftExp := prefix()
	if leftExp == nil {
		return nil
	}

	for precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}

		p.nextToken() // advance to infix operator (or '(' for call)
		leftExp = infix(leftExp)
		if leftExp == nil {
			return nil
		}
	}

	return leftExp
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseSelf() ast.Expression {
	return &ast.SelfExpression{Token: p.curToken}
}

func (p *Parser) parseBase() ast.Expression {
	exp := &ast.BaseExpression{Token: p.curToken}
	if !p.expectPeek(token.DOT) {
		return nil
	}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	exp.Method = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	return exp
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	lit := &ast.IntegerLiteral{Token: p.curToken}
	v, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
	if err != nil {
		p.errorAt(p.curToken, fmt.Sprintf("could not parse int %q", p.curToken.Literal))
		return nil
	}
	lit.Value = v
	return lit
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	lit := &ast.FloatLiteral{Token: p.curToken}
	v, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		p.errorAt(p.curToken, fmt.Sprintf("could not parse float %q", p.curToken.Literal))
		return nil
	}
	lit.Value = v
	return lit
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
}

// parseInterpolation splits a template body and parses each ${...} part with
// its own lexer positioned at the part's source location.
func (p *Parser) parseInterpolation() ast.Expression {
	tok := p.curToken
	exp := &ast.Interpolation{Token: tok}

	parts, err := lexer.SplitTemplate(tok.Literal)
	if err != nil {
		p.errorAt(tok, err.Error())
		return nil
	}
	for _, part := range parts {
		if !part.IsExpr {
			exp.Parts = append(exp.Parts, &ast.StringLiteral{
				Token: token.Token{Type: token.STRING, Literal: part.Text, Line: tok.Line, Col: tok.Col + 1 + part.Offset},
				Value: part.Text,
			})
			continue
		}
		sub := New(lexer.NewAt(part.Text, tok.Line, tok.Col+1+part.Offset))
		e := sub.parseExpression(LOWEST)
		if sub.peekToken.Type != token.EOF && len(sub.errors) == 0 {
			sub.errorAt(sub.peekToken, fmt.Sprintf("unexpected %s in interpolation", sub.peekToken.Type))
		}
		if len(sub.errors) > 0 {
			p.errors = append(p.errors, sub.errors...)
			p.diags = append(p.diags, sub.diags...)
			return nil
		}
		exp.Parts = append(exp.Parts, e)
	}
	return exp
}

func (p *Parser) parseBooleanLiteral() ast.Expression {
	return &ast.BooleanLiteral{Token: p.curToken, Value: p.curToken.Type == token.TRUE}
}

func (p *Parser) parseNilLiteral() ast.Expression {
	return &ast.NilLiteral{Token: p.curToken}
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	// curToken is '('
	p.nextToken()
	exp := p.parseExpression(LOWEST)
	if exp == nil {
		return nil
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return exp
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	op := p.curToken.Literal
	if p.curToken.Type == token.NOT || p.curToken.Type == token.BANG {
		op = "not"
	}
	exp := &ast.PrefixExpression{
		Token:    p.curToken,
		Operator: op,
	}
	p.nextToken()
	exp.Right = p.parseExpression(PREFIX)
	if exp.Right == nil {
		return nil
	}
	return exp
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	exp := &ast.InfixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Literal,
		Left:     left,
	}
	prec := p.curPrecedence()
	p.nextToken()
	exp.Right = p.parseExpression(prec)
	if exp.Right == nil {
		return nil
	}
	return exp
}

func (p *Parser) parseLogicalExpression(left ast.Expression) ast.Expression {
	exp := &ast.LogicalExpression{
		Token:    p.curToken,
		Operator: p.curToken.Literal,
		Left:     left,
	}
	prec := p.curPrecedence()
	p.nextToken()
	exp.Right = p.parseExpression(prec)
	if exp.Right == nil {
		return nil
	}
	return exp
}

func (p *Parser) parseRangeExpression(left ast.Expression) ast.Expression {
	exp := &ast.RangeExpression{Token: p.curToken, Start: left}
	p.nextToken()
	exp.End = p.parseExpression(RANGEPREC)
	if exp.End == nil {
		return nil
	}
	return exp
}

// parseAssignExpression is right associative; target validity is checked by
// the compiler.
func (p *Parser) parseAssignExpression(left ast.Expression) ast.Expression {
	exp := &ast.AssignExpression{
		Token:    p.curToken,
		Target:   left,
		Operator: compoundOps[p.curToken.Type],
	}
	p.nextToken()
	exp.Value = p.parseExpression(ASSIGNPREC - 1)
	if exp.Value == nil {
		return nil
	}
	return exp
}

func (p *Parser) parsePostfixExpression(left ast.Expression) ast.Expression {
	return &ast.PostfixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Literal,
		Target:   left,
	}
}

func (p *Parser) parseCallExpression(function ast.Expression) ast.Expression {
	// curToken is '('
	exp := &ast.CallExpression{
		Token:    p.curToken,
		Function: function,
	}
	args, ok := p.parseExpressionList(token.RPAREN)
	if !ok {
		return nil
	}
	exp.Arguments = args
	return exp
}

func (p *Parser) parsePropertyExpression(left ast.Expression) ast.Expression {
	exp := &ast.PropertyExpression{Token: p.curToken, Object: left}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	exp.Property = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	return exp
}

func (p *Parser) parseIndexExpression(left ast.Expression) ast.Expression {
	exp := &ast.IndexExpression{Token: p.curToken, Left: left}
	p.nextToken()
	exp.Index = p.parseExpression(LOWEST)
	if exp.Index == nil {
		return nil
	}
	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return exp
}

// parseDictLiteral reads `{k: v, ...}`. A bare identifier key is a string
// key, so `{x: 1}` is a record with field "x".
func (p *Parser) parseDictLiteral() ast.Expression {
	lit := &ast.DictLiteral{Token: p.curToken}

	if p.peekToken.Type == token.RBRACE {
		p.nextToken()
		return lit
	}

	for {
		p.nextToken()
		var key ast.Expression
		if p.curToken.Type == token.IDENT && p.peekToken.Type == token.COLON {
			key = &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
		} else {
			key = p.parseExpression(LOWEST)
			if key == nil {
				return nil
			}
		}
		if !p.expectPeek(token.COLON) {
			return nil
		}
		p.nextToken()
		val := p.parseExpression(LOWEST)
		if val == nil {
			return nil
		}
		lit.Entries = append(lit.Entries, ast.DictEntry{Key: key, Value: val})

		if p.peekToken.Type != token.COMMA {
			break
		}
		p.nextToken()
		if p.peekToken.Type == token.RBRACE {
			break
		}
	}

	if !p.expectPeek(token.RBRACE) {
		return nil
	}
	return lit
}

func (p *Parser) parseListLiteral() ast.Expression {
	lit := &ast.ListLiteral{Token: p.curToken}
	elems, ok := p.parseExpressionList(token.RBRACKET)
	if !ok {
		return nil
	}
	lit.Elements = elems
	return lit
}

// parseExpressionList reads a comma separated list up to end, allowing a
// trailing comma.
func (p *Parser) parseExpressionList(end token.Type) ([]ast.Expression, bool) {
	list := []ast.Expression{}

	if p.peekToken.Type == end {
		p.nextToken()
		return list, true
	}

	for {
		p.nextToken()
		e := p.parseExpression(LOWEST)
		if e == nil {
			return nil, false
		}
		list = append(list, e)
		if p.peekToken.Type != token.COMMA {
			break
		}
		p.nextToken()
		if p.peekToken.Type == end {
			break
		}
	}

	if !p.expectPeek(end) {
		return nil, false
	}
	return list, true
}

// parseFunctionLiteral is the anonymous form `fn (a, b) { ... }`.
func (p *Parser) parseFunctionLiteral() ast.Expression {
	fn := &ast.FunctionLiteral{Token: p.curToken}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	if !p.parseFunctionParameters(fn, token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	fn.Body = p.parseBlockStatement()
	return fn
}

// parseLambda is `|a, b| expr`; the body becomes a single return.
func (p *Parser) parseLambda() ast.Expression {
	fn := &ast.FunctionLiteral{Token: p.curToken, Lambda: true}
	if !p.parseFunctionParameters(fn, token.PIPE) {
		return nil
	}
	p.nextToken()
	bodyTok := p.curToken
	e := p.parseExpression(LOWEST)
	if e == nil {
		return nil
	}
	fn.Body = &ast.BlockStatement{
		Token:      bodyTok,
		Statements: []ast.Statement{&ast.ReturnStatement{Token: bodyTok, ReturnValue: e}},
	}
	return fn
}

/* -------------------- helpers -------------------- */

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) registerPrefix(t token.Type, fn prefixParseFn) {
	p.prefixParseFns[t] = fn
}

func (p *Parser) registerInfix(t token.Type, fn infixParseFn) {
	p.infixParseFns[t] = fn
}

func (p *Parser) expectPeek(t token.Type) bool {
	if p.peekToken.Type == t {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) errorAt(tok token.Token, msg string) {
	length := len(tok.Literal)
	if tok.Raw != "" {
		length = len(tok.Raw)
	}
	if length == 0 {
		length = 1
	}
	p.diags = append(p.diags, diag.Diagnostic{
		Code:     diag.CodeParse,
		Message:  msg,
		Severity: diag.SeverityError,
		Range: diag.Range{
			Line:   tok.Line,
			Col:    tok.Col,
			Length: length,
		},
	})
	p.errors = append(p.errors, fmt.Sprintf("line %d: %s", tok.Line, msg))
}

func (p *Parser) peekError(t token.Type) {
	msg := fmt.Sprintf("expected next token to be %s, got %s instead", t, p.peekToken.Type)
	p.errorAt(p.peekToken, msg)
}

func (p *Parser) noPrefixParseFnError(tok token.Token) {
	if tok.Type == token.ILLEGAL {
		p.errorAt(tok, fmt.Sprintf("illegal token %q", tok.Literal))
		return
	}
	p.errorAt(tok, fmt.Sprintf("no prefix parse function for %s", tok.Type))
}

func (p *Parser) peekPrecedence() int {
	if p, ok := precedences[p.peekToken.Type]; ok {
		return p
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if p, ok := precedences[p.curToken.Type]; ok {
		return p
	}
	return LOWEST
}
