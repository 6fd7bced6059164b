package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	maxExprLen   = 256
	maxExprDepth = 32
)

// EvalAmount evaluates a small arithmetic expression such as "2500+800" or
// "(1200,50 - 200) / 2" typed into an amount field. Only numeric literals,
// + - * / and parentheses are accepted. The result is rounded to two
// decimals and must be positive; anything else is ErrMalformedAmount.
func EvalAmount(expr string) (decimal.Decimal, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrMalformedAmount)
	}
	if len(expr) > maxExprLen {
		return decimal.Zero, fmt.Errorf("%w: too long", ErrMalformedAmount)
	}
	p := &exprParser{src: expr}
	v, err := p.parseExpr(0)
	if err != nil {
		return decimal.Zero, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return decimal.Zero, p.errorf("unexpected %q", p.src[p.pos])
	}
	v = Round2(v)
	if !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: result must be positive", ErrMalformedAmount)
	}
	return v, nil
}

// exprParser is a recursive-descent parser over:
//
//	expr   = term { ("+" | "-") term }
//	term   = factor { ("*" | "/") factor }
//	factor = ("+" | "-") factor | number | "(" expr ")"
type exprParser struct {
	src string
	pos int
}

func (p *exprParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at position %d", ErrMalformedAmount, fmt.Sprintf(format, args...), p.pos)
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *exprParser) parseExpr(depth int) (decimal.Decimal, error) {
	if depth > maxExprDepth {
		return decimal.Zero, p.errorf("nesting too deep")
	}
	left, err := p.parseTerm(depth)
	if err != nil {
		return decimal.Zero, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm(depth)
		if err != nil {
			return decimal.Zero, err
		}
		if op == '+' {
			left = left.Add(right)
		} else {
			left = left.Sub(right)
		}
	}
}

func (p *exprParser) parseTerm(depth int) (decimal.Decimal, error) {
	left, err := p.parseFactor(depth)
	if err != nil {
		return decimal.Zero, err
	}
	for {
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor(depth)
		if err != nil {
			return decimal.Zero, err
		}
		if op == '*' {
			left = left.Mul(right)
			continue
		}
		if right.IsZero() {
			return decimal.Zero, p.errorf("division by zero")
		}
		left = left.Div(right)
	}
}

func (p *exprParser) parseFactor(depth int) (decimal.Decimal, error) {
	if depth > maxExprDepth {
		return decimal.Zero, p.errorf("nesting too deep")
	}
	switch c := p.peek(); {
	case c == 0:
		return decimal.Zero, p.errorf("unexpected end of expression")
	case c == '+' || c == '-':
		p.pos++
		v, err := p.parseFactor(depth + 1)
		if err != nil {
			return decimal.Zero, err
		}
		if c == '-' {
			v = v.Neg()
		}
		return v, nil
	case c == '(':
		p.pos++
		v, err := p.parseExpr(depth + 1)
		if err != nil {
			return decimal.Zero, err
		}
		if p.peek() != ')' {
			return decimal.Zero, p.errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case isDigit(c) || c == '.' || c == ',':
		return p.parseNumber()
	default:
		return decimal.Zero, p.errorf("unexpected %q", c)
	}
}

func (p *exprParser) parseNumber() (decimal.Decimal, error) {
	start := p.pos
	seenSep := false
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if isDigit(c) {
			p.pos++
			continue
		}
		if (c == '.' || c == ',') && !seenSep {
			seenSep = true
			p.pos++
			continue
		}
		break
	}
	lit := strings.ReplaceAll(p.src[start:p.pos], ",", ".")
	if lit == "." {
		return decimal.Zero, p.errorf("invalid number")
	}
	d, err := decimal.NewFromString(lit)
	if err != nil {
		return decimal.Zero, p.errorf("invalid number %q", lit)
	}
	return d, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
