// Package parser implements the syntactic analyzer for the Tang
// programming language.
//
// The parser takes a stream of tokens from the lexer and constructs an
// Abstract Syntax Tree ([ast.Program]) representing the structure of the
// program. It is a recursive-descent parser with Pratt parsing
// (precedence climbing) for expressions, adapted from the teacher's
// Monkey parser to Tang's richer grammar: no `let` keyword (bare
// assignment both declares and rebinds), ternary, casts via `as`,
// use/global statements, while/do-while/C-style/ranged-for loops, slices,
// and attribute access.
//
// The main entry point is [New], which creates a [Parser], and
// [Parser.ParseProgram], which parses a complete source file and returns
// its AST. Check [Parser.Errors] afterward for syntax errors.
package parser

import (
	"fmt"
	"strconv"

	"github.com/dr8co/tang/ast"
	"github.com/dr8co/tang/lexer"
	"github.com/dr8co/tang/token"
)

// Operator precedence levels, lowest to highest.
const (
	_ int = iota
	Lowest
	Assign      // = (right-associative)
	Ternary     // ?:
	LogicalOr   // ||
	LogicalAnd  // &&
	Equals      // == !=
	LessGreater // < <= > >=
	Sum         // + -
	Product     // * / %
	Prefix      // -x !x
	Cast        // x as int
	Call        // f(x)
	Index       // a[x] a[x:y]
	Attr        // a.b
)

var precedences = map[token.Type]int{
	token.ASSIGN:   Assign,
	token.QUESTION: Ternary,
	token.OR:       LogicalOr,
	token.AND:      LogicalAnd,
	token.EQ:       Equals,
	token.NOT_EQ:   Equals,
	token.LT:       LessGreater,
	token.LTE:      LessGreater,
	token.GT:       LessGreater,
	token.GTE:      LessGreater,
	token.PLUS:     Sum,
	token.MINUS:    Sum,
	token.SLASH:    Product,
	token.ASTERISK: Product,
	token.PERCENT:  Product,
	token.AS:       Cast,
	token.LPAREN:   Call,
	token.LBRACKET: Index,
	token.DOT:      Attr,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser turns a token stream into an AST, one [ast.Program] per call to
// [Parser.ParseProgram].
type Parser struct {
	l      *lexer.Lexer
	errors []string

	currentToken token.Token
	peekToken    token.Token

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn
}

// New creates a Parser reading tokens from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l, errors: []string{}}

	p.prefixParseFns = make(map[token.Type]prefixParseFn)
	p.registerPrefix(token.IDENT, p.parseIdentifier)
	p.registerPrefix(token.INT, p.parseIntegerLiteral)
	p.registerPrefix(token.FLOAT, p.parseFloatLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.TRUE, p.parseBoolean)
	p.registerPrefix(token.FALSE, p.parseBoolean)
	p.registerPrefix(token.NULL, p.parseNullLiteral)
	p.registerPrefix(token.BANG, p.parsePrefixExpression)
	p.registerPrefix(token.MINUS, p.parsePrefixExpression)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(token.FUNCTION, p.parseFunctionLiteral)
	p.registerPrefix(token.LBRACKET, p.parseArrayLiteral)
	p.registerPrefix(token.LBRACE, p.parseMapLiteral)

	p.infixParseFns = make(map[token.Type]infixParseFn)
	p.registerInfix(token.PLUS, p.parseInfixExpression)
	p.registerInfix(token.MINUS, p.parseInfixExpression)
	p.registerInfix(token.SLASH, p.parseInfixExpression)
	p.registerInfix(token.ASTERISK, p.parseInfixExpression)
	p.registerInfix(token.PERCENT, p.parseInfixExpression)
	p.registerInfix(token.EQ, p.parseInfixExpression)
	p.registerInfix(token.NOT_EQ, p.parseInfixExpression)
	p.registerInfix(token.LT, p.parseInfixExpression)
	p.registerInfix(token.LTE, p.parseInfixExpression)
	p.registerInfix(token.GT, p.parseInfixExpression)
	p.registerInfix(token.GTE, p.parseInfixExpression)
	p.registerInfix(token.AND, p.parseInfixExpression)
	p.registerInfix(token.OR, p.parseInfixExpression)
	p.registerInfix(token.LPAREN, p.parseCallExpression)
	p.registerInfix(token.LBRACKET, p.parseIndexOrSliceExpression)
	p.registerInfix(token.DOT, p.parseAttributeExpression)
	p.registerInfix(token.AS, p.parseCastExpression)
	p.registerInfix(token.QUESTION, p.parseTernaryExpression)
	p.registerInfix(token.ASSIGN, p.parseAssignExpression)

	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) registerPrefix(t token.Type, fn prefixParseFn) { p.prefixParseFns[t] = fn }
func (p *Parser) registerInfix(t token.Type, fn infixParseFn)   { p.infixParseFns[t] = fn }

// Errors returns the list of errors encountered during parsing.
func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) peekError(t token.Type) {
	p.errors = append(p.errors, fmt.Sprintf("line %d: expected next token to be %s, got %s instead",
		p.peekToken.Pos.Line, t, p.peekToken.Type))
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekToken.Type]; ok {
		return pr
	}
	return Lowest
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.currentToken.Type]; ok {
		return pr
	}
	return Lowest
}

func (p *Parser) nextToken() {
	p.currentToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) currentTokenIs(t token.Type) bool { return p.currentToken.Type == t }
func (p *Parser) peekTokenIs(t token.Type) bool    { return p.peekToken.Type == t }

func (p *Parser) expectPeek(t token.Type) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

// ParseProgram parses a complete Tang source file and returns its AST.
func (p *Parser) ParseProgram() *ast.Program {
	program := ast.NewProgram()

	for !p.currentTokenIs(token.EOF) {
		if stmt := p.parseStatement(); stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}
	return program
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.currentToken.Type {
	case token.RETURN:
		return p.parseReturnStatement()
	case token.PRINT:
		return p.parsePrintStatement()
	case token.IF:
		return p.parseIfStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.DO:
		return p.parseDoWhileStatement()
	case token.FOR:
		return p.parseForStatement()
	case token.BREAK:
		return p.parseBreakStatement()
	case token.CONTINUE:
		return p.parseContinueStatement()
	case token.USE:
		return p.parseUseStatement()
	case token.GLOBAL:
		return p.parseGlobalStatement()
	case token.LBRACE:
		return p.parseBlockStatement()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseReturnStatement() *ast.ReturnStatement {
	stmt := &ast.ReturnStatement{}
	stmt.Token = p.currentToken

	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
		return stmt
	}

	p.nextToken()
	stmt.ReturnValue = p.parseExpression(Lowest)

	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parsePrintStatement() *ast.PrintStatement {
	stmt := &ast.PrintStatement{}
	stmt.Token = p.currentToken

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	stmt.Arguments = p.parseExpressionList(token.RPAREN)

	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseIfStatement() *ast.IfStatement {
	stmt := &ast.IfStatement{}
	stmt.Token = p.currentToken

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(Lowest)

	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Consequence = p.parseBlockStatement()

	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		if p.peekTokenIs(token.IF) {
			p.nextToken()
			stmt.Alternative = p.parseIfStatement()
			return stmt
		}
		if !p.expectPeek(token.LBRACE) {
			return nil
		}
		stmt.Alternative = p.parseBlockStatement()
	}
	return stmt
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{}
	block.Token = p.currentToken

	p.nextToken()
	for !p.currentTokenIs(token.RBRACE) && !p.currentTokenIs(token.EOF) {
		if stmt := p.parseStatement(); stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}
	return block
}

func (p *Parser) parseWhileStatement() *ast.WhileStatement {
	stmt := &ast.WhileStatement{}
	stmt.Token = p.currentToken

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	stmt.Condition = p.parseExpression(Lowest)

	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	stmt.Body = p.parseBlockStatement()
	return stmt
}

func (p *Parser) parseDoWhileStatement() *ast.DoWhileStatement {
	stmt := &ast.DoWhileStatement{}
	stmt.Token = p.currentToken

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
	stmt.Condition = p.parseExpression(Lowest)

	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

// parseForStatement dispatches between a C-style for and a ranged-for by
// looking one token ahead of a leading identifier for `:`. No lookahead
// beyond the current/peek pair is needed, which matters since the lexer
// has no way to rewind: once currentToken lands on the leading
// identifier, either it is followed by ':' (ranged-for) or it is simply
// the first token of a C-style init expression, parsed from right where
// it sits.
func (p *Parser) parseForStatement() ast.Statement {
	tok := p.currentToken
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()

	if p.currentTokenIs(token.IDENT) && p.peekTokenIs(token.COLON) {
		ident := &ast.Identifier{Value: p.currentToken.Literal}
		ident.Token = p.currentToken
		p.nextToken() // consume ':'
		p.nextToken()
		collection := p.parseExpression(Lowest)
		if !p.expectPeek(token.RPAREN) {
			return nil
		}
		if !p.expectPeek(token.LBRACE) {
			return nil
		}
		rf := &ast.RangedForStatement{Iterator: ident, Collection: collection}
		rf.Token = tok
		rf.Body = p.parseBlockStatement()
		return rf
	}

	fs := &ast.ForStatement{}
	fs.Token = tok
	if !p.currentTokenIs(token.SEMICOLON) {
		fs.Init = p.parseExpressionStatement()
	}
	if !p.currentTokenIs(token.SEMICOLON) {
		if !p.expectPeek(token.SEMICOLON) {
			return nil
		}
	}
	p.nextToken()
	if !p.currentTokenIs(token.SEMICOLON) {
		fs.Condition = p.parseExpression(Lowest)
		p.nextToken()
	}
	if !p.currentTokenIs(token.SEMICOLON) {
		return nil
	}
	p.nextToken()
	if !p.currentTokenIs(token.RPAREN) {
		fs.Update = p.parseExpressionStatement()
		if !p.expectPeek(token.RPAREN) {
			return nil
		}
	}
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	fs.Body = p.parseBlockStatement()
	return fs
}

func (p *Parser) parseBreakStatement() *ast.BreakStatement {
	stmt := &ast.BreakStatement{}
	stmt.Token = p.currentToken
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseContinueStatement() *ast.ContinueStatement {
	stmt := &ast.ContinueStatement{}
	stmt.Token = p.currentToken
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseUseStatement() *ast.UseStatement {
	stmt := &ast.UseStatement{}
	stmt.Token = p.currentToken

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Path = append(stmt.Path, p.currentToken.Literal)
	for p.peekTokenIs(token.DOT) {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		stmt.Path = append(stmt.Path, p.currentToken.Literal)
	}

	if p.peekTokenIs(token.AS) {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		stmt.Alias = p.currentToken.Literal
	}

	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseGlobalStatement() *ast.GlobalStatement {
	stmt := &ast.GlobalStatement{}
	stmt.Token = p.currentToken

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Names = append(stmt.Names, p.currentToken.Literal)
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		stmt.Names = append(stmt.Names, p.currentToken.Literal)
	}

	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseExpressionStatement() *ast.ExpressionStatement {
	stmt := &ast.ExpressionStatement{}
	stmt.Token = p.currentToken
	stmt.Expression = p.parseExpression(Lowest)

	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.currentToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.currentToken.Type)
		return nil
	}
	leftExp := prefix()

	for !p.peekTokenIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
	}
	return leftExp
}

func (p *Parser) noPrefixParseFnError(t token.Type) {
	p.errors = append(p.errors, fmt.Sprintf("line %d: no prefix parse function for %s found",
		p.currentToken.Pos.Line, t))
}

func (p *Parser) parseIdentifier() ast.Expression {
	id := &ast.Identifier{Value: p.currentToken.Literal}
	id.Token = p.currentToken
	return id
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	lit := &ast.IntegerLiteral{}
	lit.Token = p.currentToken
	value, err := strconv.ParseInt(p.currentToken.Literal, 0, 64)
	if err != nil {
		p.errors = append(p.errors, fmt.Sprintf("could not parse %q as integer", p.currentToken.Literal))
		return nil
	}
	lit.Value = value
	return lit
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	lit := &ast.FloatLiteral{}
	lit.Token = p.currentToken
	value, err := strconv.ParseFloat(p.currentToken.Literal, 64)
	if err != nil {
		p.errors = append(p.errors, fmt.Sprintf("could not parse %q as float", p.currentToken.Literal))
		return nil
	}
	lit.Value = value
	return lit
}

func (p *Parser) parseStringLiteral() ast.Expression {
	lit := &ast.StringLiteral{Value: p.currentToken.Literal}
	lit.Token = p.currentToken
	return lit
}

func (p *Parser) parseBoolean() ast.Expression {
	b := &ast.Boolean{Value: p.currentTokenIs(token.TRUE)}
	b.Token = p.currentToken
	return b
}

func (p *Parser) parseNullLiteral() ast.Expression {
	n := &ast.NullLiteral{}
	n.Token = p.currentToken
	return n
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expr := &ast.PrefixExpression{Operator: p.currentToken.Literal}
	expr.Token = p.currentToken

	p.nextToken()
	expr.Right = p.parseExpression(Prefix)
	return expr
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expr := &ast.InfixExpression{Left: left, Operator: p.currentToken.Literal}
	expr.Token = p.currentToken

	precedence := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	return expr
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	exp := p.parseExpression(Lowest)
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return exp
}

// parseFunctionLiteral parses `function(params) { body }`, or the named
// declaration form `function name(params) { body }`, which desugars to an
// assignment binding name so the function is reachable (and recursive
// calls resolve) through the ordinary global table.
func (p *Parser) parseFunctionLiteral() ast.Expression {
	lit := &ast.FunctionLiteral{}
	lit.Token = p.currentToken

	var nameToken token.Token
	if p.peekTokenIs(token.IDENT) {
		p.nextToken()
		nameToken = p.currentToken
		lit.Name = p.currentToken.Literal
	}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	lit.Parameters = p.parseFunctionParameters()

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	lit.Body = p.parseBlockStatement()

	if lit.Name != "" {
		ae := &ast.AssignExpression{
			Target: &ast.Identifier{Value: lit.Name},
			Value:  lit,
		}
		ae.Token = lit.Token
		ae.Target.(*ast.Identifier).Token = nameToken
		return ae
	}
	return lit
}

func (p *Parser) parseFunctionParameters() []*ast.Identifier {
	var identifiers []*ast.Identifier

	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return identifiers
	}
	p.nextToken()

	ident := &ast.Identifier{Value: p.currentToken.Literal}
	ident.Token = p.currentToken
	identifiers = append(identifiers, ident)

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		id := &ast.Identifier{Value: p.currentToken.Literal}
		id.Token = p.currentToken
		identifiers = append(identifiers, id)
	}

	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return identifiers
}

func (p *Parser) parseCallExpression(function ast.Expression) ast.Expression {
	exp := &ast.CallExpression{Function: function}
	exp.Token = p.currentToken
	exp.Arguments = p.parseExpressionList(token.RPAREN)
	return exp
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	arr := &ast.ArrayLiteral{}
	arr.Token = p.currentToken
	arr.Elements = p.parseExpressionList(token.RBRACKET)
	return arr
}

func (p *Parser) parseExpressionList(end token.Type) []ast.Expression {
	var list []ast.Expression

	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}

	p.nextToken()
	list = append(list, p.parseExpression(Lowest))

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		list = append(list, p.parseExpression(Lowest))
	}

	if !p.expectPeek(end) {
		return nil
	}
	return list
}

// parseIndexOrSliceExpression parses `left[index]` or, when a `:` is seen
// before the closing bracket, `left[begin:end]` / `left[begin:end:skip]`.
func (p *Parser) parseIndexOrSliceExpression(left ast.Expression) ast.Expression {
	tok := p.currentToken

	var begin ast.Expression
	if !p.peekTokenIs(token.COLON) {
		p.nextToken()
		begin = p.parseExpression(Lowest)
	}

	if !p.peekTokenIs(token.COLON) {
		if !p.expectPeek(token.RBRACKET) {
			return nil
		}
		idx := &ast.IndexExpression{Left: left, Index: begin}
		idx.Token = tok
		return idx
	}

	se := &ast.SliceExpression{Left: left, Begin: begin}
	se.Token = tok

	p.nextToken() // consume ':'
	if !p.peekTokenIs(token.COLON) && !p.peekTokenIs(token.RBRACKET) {
		p.nextToken()
		se.End = p.parseExpression(Lowest)
	}
	if p.peekTokenIs(token.COLON) {
		p.nextToken()
		if !p.peekTokenIs(token.RBRACKET) {
			p.nextToken()
			se.Skip = p.parseExpression(Lowest)
		}
	}
	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return se
}

func (p *Parser) parseAttributeExpression(left ast.Expression) ast.Expression {
	ae := &ast.AttributeExpression{Left: left}
	ae.Token = p.currentToken
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	ae.Name = p.currentToken.Literal
	return ae
}

func (p *Parser) parseCastExpression(left ast.Expression) ast.Expression {
	ce := &ast.CastExpression{Left: left}
	ce.Token = p.currentToken
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	ce.TargetType = p.currentToken.Literal
	return ce
}

func (p *Parser) parseTernaryExpression(condition ast.Expression) ast.Expression {
	te := &ast.TernaryExpression{Condition: condition}
	te.Token = p.currentToken

	p.nextToken()
	te.Consequence = p.parseExpression(Ternary)

	if !p.expectPeek(token.COLON) {
		return nil
	}
	p.nextToken()
	te.Alternative = p.parseExpression(Ternary)
	return te
}

// parseAssignExpression parses a right-associative `target = value`. The
// target must be an identifier, index, or attribute expression; the parser
// and scope analysis accept anything else, and bytecode compilation of it
// fails.
func (p *Parser) parseAssignExpression(left ast.Expression) ast.Expression {
	ae := &ast.AssignExpression{Target: left}
	ae.Token = p.currentToken

	p.nextToken()
	ae.Value = p.parseExpression(Assign - 1)

	// Name an anonymous function after its binding target, so stack
	// traces and the scope mangler have something better than "".
	if fl, ok := ae.Value.(*ast.FunctionLiteral); ok && fl.Name == "" {
		if ident, ok := ae.Target.(*ast.Identifier); ok {
			fl.Name = ident.Value
		}
	}
	return ae
}

func (p *Parser) parseMapLiteral() ast.Expression {
	ml := &ast.MapLiteral{}
	ml.Token = p.currentToken

	for !p.peekTokenIs(token.RBRACE) {
		p.nextToken()
		key := p.parseExpression(Lowest)

		if !p.expectPeek(token.COLON) {
			return nil
		}
		p.nextToken()
		value := p.parseExpression(Lowest)
		ml.Pairs = append(ml.Pairs, ast.MapPair{Key: key, Value: value})

		if !p.peekTokenIs(token.RBRACE) && !p.expectPeek(token.COMMA) {
			return nil
		}
	}

	if !p.expectPeek(token.RBRACE) {
		return nil
	}
	return ml
}
