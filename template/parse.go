package template

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
)

// Template nodes.

type node any

type textNode struct {
	text string
}

type outputNode struct {
	expr expr
	line int
}

type ifBranch struct {
	cond expr
	body []node
}

type ifNode struct {
	branches []ifBranch
	elseBody []node
}

type forNode struct {
	loopVar string
	seq     expr
	body    []node
	line    int
}

// Expressions.

type expr any

type pathExpr struct {
	segments []string
	line     int
}

type literalExpr struct {
	value any
}

type notExpr struct {
	inner expr
}

type compareExpr struct {
	lhs, rhs expr
	op       string // "==" or "!="
}

// Lexer tokens.

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenOutput
	tokenTag
)

type token struct {
	kind tokenKind
	text string // literal text, or trimmed delimiter content
	line int
}

// parse tokenizes and parses a template into its node list.
func parse(content string) ([]node, error) {
	tokens, err := lex(content)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	return p.parseNodes(nil)
}

// lex splits the template into text, output and tag tokens. Comment blocks
// are dropped here.
func lex(content string) ([]token, error) {
	var tokens []token
	line := 1
	rest := content

	for len(rest) > 0 {
		idx := nextDelimiter(rest)
		if idx < 0 {
			tokens = append(tokens, token{kind: tokenText, text: rest, line: line})
			break
		}
		if idx > 0 {
			text := rest[:idx]
			tokens = append(tokens, token{kind: tokenText, text: text, line: line})
			line += strings.Count(text, "\n")
			rest = rest[idx:]
		}

		var closer string
		var kind tokenKind
		switch rest[:2] {
		case "{{":
			closer, kind = "}}", tokenOutput
		case "{%":
			closer, kind = "%}", tokenTag
		case "{#":
			closer = "#}"
		}

		end := strings.Index(rest[2:], closer)
		if end < 0 {
			return nil, syntaxErr(line, "unclosed %q delimiter", rest[:2])
		}
		inner := rest[2 : 2+end]

		if closer != "#}" { // comments are discarded
			trimmed := strings.TrimSpace(inner)
			if trimmed == "" {
				return nil, syntaxErr(line, "empty %q expression", rest[:2])
			}
			tokens = append(tokens, token{kind: kind, text: trimmed, line: line})
		}
		line += strings.Count(inner, "\n")
		rest = rest[2+end+len(closer):]
	}

	return tokens, nil
}

// nextDelimiter returns the index of the next {{, {% or {# opener, or -1.
func nextDelimiter(s string) int {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '{' {
			switch s[i+1] {
			case '{', '%', '#':
				return i
			}
		}
	}
	return -1
}

type parser struct {
	tokens []token
	pos    int
}

// parseNodes consumes tokens until EOF or until the next tag's keyword is in
// stop; the stopping tag is left unconsumed for the caller.
func (p *parser) parseNodes(stop map[string]bool) ([]node, error) {
	var nodes []node
	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		switch tok.kind {
		case tokenText:
			p.pos++
			nodes = append(nodes, textNode{text: tok.text})

		case tokenOutput:
			p.pos++
			ex, err := parseExpr(tok.text, tok.line)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, outputNode{expr: ex, line: tok.line})

		case tokenTag:
			keyword := firstWord(tok.text)
			if stop[keyword] {
				return nodes, nil
			}
			p.pos++
			switch keyword {
			case "if":
				n, err := p.parseIf(tok)
				if err != nil {
					return nil, err
				}
				nodes = append(nodes, n)
			case "for":
				n, err := p.parseFor(tok)
				if err != nil {
					return nil, err
				}
				nodes = append(nodes, n)
			case "elif", "else", "endif", "endfor":
				return nil, syntaxErr(tok.line, "unexpected {%% %s %%}", keyword)
			default:
				return nil, syntaxErr(tok.line, "unknown tag %q", keyword)
			}
		}
	}
	return nodes, nil
}

// parseIf parses the branches of an if block. The opening tag has been
// consumed already.
func (p *parser) parseIf(open token) (node, error) {
	cond, err := parseExpr(strings.TrimSpace(strings.TrimPrefix(open.text, "if")), open.line)
	if err != nil {
		return nil, err
	}

	n := ifNode{}
	stop := map[string]bool{"elif": true, "else": true, "endif": true}

	body, err := p.parseNodes(stop)
	if err != nil {
		return nil, err
	}
	n.branches = append(n.branches, ifBranch{cond: cond, body: body})

	for {
		if p.pos >= len(p.tokens) {
			return nil, syntaxErr(open.line, "missing {%% endif %%}")
		}
		tok := p.tokens[p.pos]
		p.pos++
		switch firstWord(tok.text) {
		case "elif":
			cond, err := parseExpr(strings.TrimSpace(strings.TrimPrefix(tok.text, "elif")), tok.line)
			if err != nil {
				return nil, err
			}
			body, err := p.parseNodes(stop)
			if err != nil {
				return nil, err
			}
			n.branches = append(n.branches, ifBranch{cond: cond, body: body})
		case "else":
			body, err := p.parseNodes(map[string]bool{"endif": true})
			if err != nil {
				return nil, err
			}
			n.elseBody = body
			if p.pos >= len(p.tokens) {
				return nil, syntaxErr(open.line, "missing {%% endif %%}")
			}
			p.pos++ // consume endif
			return n, nil
		case "endif":
			return n, nil
		}
	}
}

// parseFor parses a for block. The opening tag has been consumed already.
func (p *parser) parseFor(open token) (node, error) {
	spec := strings.TrimSpace(strings.TrimPrefix(open.text, "for"))
	parts := strings.SplitN(spec, " in ", 2)
	if len(parts) != 2 {
		return nil, syntaxErr(open.line, "malformed for tag, want {%% for name in sequence %%}")
	}
	loopVar := strings.TrimSpace(parts[0])
	if !isIdentifier(loopVar) {
		return nil, syntaxErr(open.line, "invalid loop variable %q", loopVar)
	}
	seq, err := parseExpr(strings.TrimSpace(parts[1]), open.line)
	if err != nil {
		return nil, err
	}

	body, err := p.parseNodes(map[string]bool{"endfor": true})
	if err != nil {
		return nil, err
	}
	if p.pos >= len(p.tokens) {
		return nil, syntaxErr(open.line, "missing {%% endfor %%}")
	}
	p.pos++ // consume endfor

	return forNode{loopVar: loopVar, seq: seq, body: body, line: open.line}, nil
}

// parseExpr parses the small expression grammar:
//
//	expr    := ["not"] operand [("==" | "!=") operand]
//	operand := path | string | number | true | false | null | none
//
// Filters, calls and subscripts are rejected: templates are pure data
// lookups, never code.
func parseExpr(s string, line int) (expr, error) {
	if strings.ContainsAny(s, "|()") {
		return nil, unsafeErr(line, "filters and calls are not allowed")
	}
	if strings.ContainsAny(s, "[]") {
		return nil, syntaxErr(line, "subscript expressions are not supported")
	}

	fields := tokenizeExpr(s)
	if len(fields) == 0 {
		return nil, syntaxErr(line, "empty expression")
	}

	negate := false
	if fields[0] == "not" {
		negate = true
		fields = fields[1:]
		if len(fields) == 0 {
			return nil, syntaxErr(line, "dangling not")
		}
	}

	lhs, err := parseOperand(fields[0], line)
	if err != nil {
		return nil, err
	}

	var result expr = lhs
	switch len(fields) {
	case 1:
	case 3:
		op := fields[1]
		if op != "==" && op != "!=" {
			return nil, syntaxErr(line, "unsupported operator %q", op)
		}
		rhs, err := parseOperand(fields[2], line)
		if err != nil {
			return nil, err
		}
		result = compareExpr{lhs: lhs, rhs: rhs, op: op}
	default:
		return nil, syntaxErr(line, "malformed expression %q", s)
	}

	if negate {
		result = notExpr{inner: result}
	}
	return result, nil
}

// tokenizeExpr splits an expression on whitespace, keeping quoted strings
// intact.
func tokenizeExpr(s string) []string {
	var fields []string
	var buf strings.Builder
	var quote byte

	flush := func() {
		if buf.Len() > 0 {
			fields = append(fields, buf.String())
			buf.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			buf.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
			buf.WriteByte(c)
		case c == ' ' || c == '\t' || c == '\n':
			flush()
		default:
			buf.WriteByte(c)
		}
	}
	flush()
	return fields
}

func parseOperand(s string, line int) (expr, error) {
	switch {
	case s == "true":
		return literalExpr{value: true}, nil
	case s == "false":
		return literalExpr{value: false}, nil
	case s == "null", s == "none":
		return literalExpr{value: nil}, nil
	case len(s) >= 2 && (s[0] == '\'' || s[0] == '"'):
		if s[len(s)-1] != s[0] {
			return nil, syntaxErr(line, "unterminated string literal %s", s)
		}
		return literalExpr{value: s[1 : len(s)-1]}, nil
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return literalExpr{value: f}, nil
	}

	segments := strings.Split(s, ".")
	for _, seg := range segments {
		if seg == "" {
			return nil, syntaxErr(line, "malformed path %q", s)
		}
		if seg[0] == '_' {
			return nil, unsafeErr(line, "access to internal attribute %q", seg)
		}
		if !isIdentifier(seg) {
			return nil, syntaxErr(line, "invalid path segment %q", seg)
		}
	}
	return pathExpr{segments: segments, line: line}, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func firstWord(s string) string {
	if i := strings.IndexAny(s, " \t\n"); i >= 0 {
		return s[:i]
	}
	return s
}

func syntaxErr(line int, format string, args ...any) error {
	err := apperrors.TemplateRender(fmt.Sprintf("template syntax error at line %d: %s", line, fmt.Sprintf(format, args...)))
	return err.WithDetails(map[string]any{"reason": apperrors.ReasonTemplateSyntax, "line": line})
}

func unsafeErr(line int, format string, args ...any) error {
	err := apperrors.TemplateRender(fmt.Sprintf("template sandbox violation at line %d: %s", line, fmt.Sprintf(format, args...)))
	return err.WithDetails(map[string]any{"reason": apperrors.ReasonTemplateUnsafe, "line": line})
}
