package compiler

import (
	"fmt"

	"kestrel/internal/ast"
	"kestrel/internal/token"
)

// Synthetic names contain '#' so no identifier in source can reach them.

func synthToken(t token.Type, lit string, line int) token.Token {
	return token.Token{Type: t, Literal: lit, Line: line}
}

func synthIdent(name string, line int) *ast.Identifier {
	return &ast.Identifier{Token: synthToken(token.IDENT, name, line), Value: name}
}

func synthLet(name string, value ast.Expression, line int) *ast.LetStatement {
	return &ast.LetStatement{Token: synthToken(token.LET, "let", line), Name: synthIdent(name, line), Value: value}
}

func synthProperty(obj ast.Expression, name string, line int) *ast.PropertyExpression {
	return &ast.PropertyExpression{Token: synthToken(token.DOT, ".", line), Object: obj, Property: synthIdent(name, line)}
}

func synthMethodCall(obj ast.Expression, name string, line int) *ast.CallExpression {
	return &ast.CallExpression{Token: synthToken(token.LPAREN, "(", line), Function: synthProperty(obj, name, line)}
}

func synthBlock(line int, stmts ...ast.Statement) *ast.BlockStatement {
	return &ast.BlockStatement{Token: synthToken(token.LBRACE, "{", line), Statements: stmts}
}

func asBlock(s ast.Statement, line int) *ast.BlockStatement {
	if b, ok := s.(*ast.BlockStatement); ok {
		return b
	}
	if s == nil {
		return synthBlock(line)
	}
	return synthBlock(line, s)
}

// lowerForIn rewrites `for (x in e) body` as
//
//	{
//	  let it = e.__iter__();
//	  while (true) {
//	    let step = it.__next__();
//	    if (step.done) { break; }
//	    let x = step.value;
//	    body
//	  }
//	}
func (c *Compiler) lowerForIn(n *ast.ForInStatement) *ast.BlockStatement {
	c.tempIndex++
	line := n.Token.Line
	iterName := fmt.Sprintf("iter#%d", c.tempIndex)
	stepName := fmt.Sprintf("step#%d", c.tempIndex)

	doneCheck := &ast.IfStatement{
		Token:       synthToken(token.IF, "if", line),
		Condition:   synthProperty(synthIdent(stepName, line), "done", line),
		Consequence: synthBlock(line, &ast.BreakStatement{Token: synthToken(token.BREAK, "break", line)}),
	}
	body := synthBlock(line,
		synthLet(stepName, synthMethodCall(synthIdent(iterName, line), "__next__", line), line),
		doneCheck,
		synthLet(n.Var.Value, synthProperty(synthIdent(stepName, line), "value", line), line),
		n.Body,
	)
	loop := &ast.WhileStatement{
		Token:     synthToken(token.WHILE, "while", line),
		Condition: &ast.BooleanLiteral{Token: synthToken(token.TRUE, "true", line), Value: true},
		Body:      body,
	}
	return synthBlock(line,
		synthLet(iterName, synthMethodCall(n.Iterable, "__iter__", line), line),
		loop,
	)
}

// lowerCase rewrites a case statement as an if/else chain. With a subject the
// subject is evaluated once into a synthetic local and every arm value is
// compared against it; without one the arm values are guards.
func (c *Compiler) lowerCase(n *ast.CaseStatement) ast.Statement {
	line := n.Token.Line
	var subject *ast.Identifier
	var prelude ast.Statement
	if n.Subject != nil {
		c.tempIndex++
		name := fmt.Sprintf("case#%d", c.tempIndex)
		prelude = synthLet(name, n.Subject, line)
		subject = synthIdent(name, line)
	}

	var fallback ast.Statement = synthBlock(line)
	arms := make([]*ast.CaseArm, 0, len(n.Arms))
	for _, arm := range n.Arms {
		if arm.Default {
			fallback = asBlock(arm.Body, arm.Token.Line)
			continue
		}
		arms = append(arms, arm)
	}

	chain := fallback
	for i := len(arms) - 1; i >= 0; i-- {
		arm := arms[i]
		chain = &ast.IfStatement{
			Token:       synthToken(token.IF, "if", arm.Token.Line),
			Condition:   armCondition(arm, subject),
			Consequence: asBlock(arm.Body, arm.Token.Line),
			Alternative: chain,
		}
	}

	if prelude == nil {
		return chain
	}
	return synthBlock(line, prelude, chain)
}

func armCondition(arm *ast.CaseArm, subject *ast.Identifier) ast.Expression {
	var cond ast.Expression
	for _, v := range arm.Values {
		test := v
		if subject != nil {
			test = &ast.InfixExpression{
				Token:    synthToken(token.EQ, "==", v.Line()),
				Left:     subject,
				Operator: "==",
				Right:    v,
			}
		}
		if cond == nil {
			cond = test
			continue
		}
		cond = &ast.LogicalExpression{
			Token:    synthToken(token.OR, "or", v.Line()),
			Left:     cond,
			Operator: "or",
			Right:    test,
		}
	}
	return cond
}
