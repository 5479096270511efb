// Package mathexpr evaluates arithmetic queries such as "2 * (3 + 4)" or
// "sqrt(2)^2" so the search session can answer them without a network
// round trip.
//
// Grammar:
//
//	expr   = term { ("+" | "-") term }
//	term   = unary { ("*" | "/" | "%") unary }
//	unary  = ("-" | "+") unary | power
//	power  = atom [ "^" unary ]
//	atom   = number | constant | func "(" expr ")" | "(" expr ")"
//
// A query only counts as an expression when it uses at least one operator or
// function; a bare number like "2024" is left to the search engine.
package mathexpr

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ErrNotExpression is returned for input that is not an arithmetic expression.
var ErrNotExpression = errors.New("not an arithmetic expression")

var functions = map[string]func(float64) float64{
	"sqrt":  math.Sqrt,
	"abs":   math.Abs,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"log":   math.Log10,
	"ln":    math.Log,
	"exp":   math.Exp,
	"floor": math.Floor,
	"ceil":  math.Ceil,
	"round": math.Round,
}

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// Evaluator is the default evaluator used by sessions.
type Evaluator struct{}

// Evaluate implements the session's evaluator port.
func (Evaluator) Evaluate(expr string) (string, error) {
	v, err := Eval(expr)
	if err != nil {
		return "", err
	}
	return Format(v), nil
}

// Eval parses and evaluates expr.
func Eval(expr string) (float64, error) {
	p := &parser{src: strings.TrimSpace(expr)}
	if p.src == "" {
		return 0, ErrNotExpression
	}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return 0, fmt.Errorf("%w: unexpected %q at %d", ErrNotExpression, p.src[p.pos], p.pos)
	}
	if !p.operators {
		return 0, ErrNotExpression
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: result is not finite", ErrNotExpression)
	}
	return v, nil
}

// Format renders a result the way it is shown to the user.
func Format(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', 12, 64)
}

type parser struct {
	src       string
	pos       int
	operators bool
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		p.operators = true
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '*' && op != '/' && op != '%' {
			return left, nil
		}
		p.pos++
		p.operators = true
		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		switch op {
		case '*':
			left *= right
		case '/':
			left /= right
		case '%':
			left = math.Mod(left, right)
		}
	}
}

func (p *parser) parseUnary() (float64, error) {
	switch p.peek() {
	case '-':
		p.pos++
		p.operators = true
		v, err := p.parseUnary()
		return -v, err
	case '+':
		p.pos++
		return p.parseUnary()
	}
	return p.parsePower()
}

func (p *parser) parsePower() (float64, error) {
	base, err := p.parseAtom()
	if err != nil {
		return 0, err
	}
	if p.peek() != '^' {
		return base, nil
	}
	p.pos++
	p.operators = true
	exp, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func (p *parser) parseAtom() (float64, error) {
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("%w: missing )", ErrNotExpression)
		}
		p.pos++
		return v, nil
	case c == '.' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	case unicode.IsLetter(rune(c)):
		return p.parseIdent()
	case c == 0:
		return 0, fmt.Errorf("%w: unexpected end", ErrNotExpression)
	default:
		return 0, fmt.Errorf("%w: unexpected %q", ErrNotExpression, c)
	}
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.src) && (p.src[p.pos] == '.' || (p.src[p.pos] >= '0' && p.src[p.pos] <= '9')) {
		p.pos++
	}
	v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad number %q", ErrNotExpression, p.src[start:p.pos])
	}
	return v, nil
}

func (p *parser) parseIdent() (float64, error) {
	start := p.pos
	for p.pos < len(p.src) && unicode.IsLetter(rune(p.src[p.pos])) {
		p.pos++
	}
	name := strings.ToLower(p.src[start:p.pos])

	if fn, ok := functions[name]; ok {
		if p.peek() != '(' {
			return 0, fmt.Errorf("%w: %s needs an argument", ErrNotExpression, name)
		}
		p.pos++
		arg, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("%w: missing )", ErrNotExpression)
		}
		p.pos++
		p.operators = true
		return fn(arg), nil
	}
	if v, ok := constants[name]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("%w: unknown identifier %q", ErrNotExpression, name)
}
