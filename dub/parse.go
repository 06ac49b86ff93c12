package dub

import (
	"fmt"
	"strconv"
)

type Node interface {
	isNode()
}

func (Identifier) isNode() {}
func (Int) isNode()        {}
func (Float) isNode()      {}
func (String) isNode()     {}
func (Note) isNode()       {}
func (Ratio) isNode()      {}

type Command struct {
	Name Identifier
	Args []Node
}

type Identifier string
type Int int
type Float float64
type String string

// Note is a MIDI note number written as a note name, e.g. C4 or Bb2.
type Note int

// Ratio is written num/den, e.g. 3/4.
type Ratio struct {
	Num, Den int
}

func (n Note) String() string { return NoteName(int(n)) }

func (r Ratio) String() string { return fmt.Sprintf("%d/%d", r.Num, r.Den) }

// Parse parses one command line. An empty or comment-only line yields a Command with
// an empty name.
func Parse(input string) (Command, error) {
	tokens, err := lex(input)
	if err != nil {
		return Command{}, err
	}
	p := parser{tokens: tokens}
	return p.parse()
}

type parser struct {
	pos    int
	tokens []token
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) peek() token {
	t := p.next()
	p.pos--
	return t
}

func (p *parser) parse() (Command, error) {
	var cmd Command
	token := p.next()
	if token.typ == typeEOF {
		return cmd, nil
	}
	if token.typ != typeIdentifier {
		return cmd, unexpected(token)
	}
	cmd.Name = Identifier(token.text)
	for token := p.next(); token.typ != typeEOF; token = p.next() {
		var arg Node
		switch token.typ {
		case typeIdentifier:
			if n, ok := ParseNote(token.text); ok {
				arg = Note(n)
			} else {
				arg = Identifier(token.text)
			}
		case typeString:
			arg = String(token.text[1 : len(token.text)-1])
		case typeFloat:
			f, err := strconv.ParseFloat(token.text, 64)
			if err != nil {
				return cmd, err
			}
			arg = Float(f)
		case typeInt:
			n, err := strconv.Atoi(token.text)
			if err != nil {
				return cmd, err
			}
			if p.peek().typ == typeSlash {
				r, err := p.ratio(n)
				if err != nil {
					return cmd, err
				}
				arg = r
			} else {
				arg = Int(n)
			}
		default:
			return cmd, unexpected(token)
		}
		cmd.Args = append(cmd.Args, arg)
	}
	return cmd, nil
}

func (p *parser) ratio(num int) (Ratio, error) {
	p.next() // slash
	t := p.next()
	if t.typ != typeInt {
		return Ratio{}, unexpected(t)
	}
	den, err := strconv.Atoi(t.text)
	if err != nil {
		return Ratio{}, err
	}
	if den == 0 {
		return Ratio{}, fmt.Errorf("zero denominator at position %d", t.pos)
	}
	return Ratio{Num: num, Den: den}, nil
}

func unexpected(t token) error {
	if t.typ == typeEOF {
		return fmt.Errorf("unexpected end of input")
	}
	return fmt.Errorf("unexpected token %q at position %d", t.text, t.pos)
}
