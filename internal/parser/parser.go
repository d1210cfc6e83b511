// Package parser turns a filename and an ordered sequence of RiveScript
// source lines into an ast.Root. It is a hand-rolled, line-oriented, stateful
// reader rather than a grammar-generated frontend: RiveScript's structure
// (one command character per line, look-ahead continuation, %Previous
// binding) does not benefit from a parser generator, so this package is
// written the way the teacher engine's command tokenizer
// (internal/command/parse.go) reads a line at a time and dispatches on the
// leading token.
package parser

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/rivebot/rivescript/ast"
	"github.com/rivebot/rivescript/internal/rserrors"
	"github.com/rivebot/rivescript/internal/rsopts"
)

type concatMode int

const (
	concatNone concatMode = iota
	concatSpace
	concatNewline
)

func (c concatMode) delim() string {
	switch c {
	case concatSpace:
		return " "
	case concatNewline:
		return "\n"
	default:
		return ""
	}
}

// pendingDef buffers a `!` definition line across any `^` continuations
// until the next non-continuation line forces it to be applied.
type pendingDef struct {
	kind, name string
	parts      []string
	line       int
}

// target is where the next `^` continuation line is appended.
type target struct {
	ptr *string
}

type parser struct {
	file string
	opts rsopts.Options
	root *ast.Root

	warnings []string

	concat concatMode

	curTopic *ast.Topic

	inObject    bool
	objectName  string
	objectLang  string
	objectLines []string
	objectLine  int

	curTrigger         *ast.Trigger
	previousAttachable bool

	target     target
	pendingDef *pendingDef

	versionSeen bool
}

// Parse turns filename + ordered source lines into a Root AST. In strict
// mode the first structural violation aborts the parse and returns a
// non-nil error; in non-strict mode the offending construct is skipped and a
// human-readable message is appended to the returned warnings.
func Parse(file string, lines []string, opts rsopts.Options) (*ast.Root, []string, error) {
	p := &parser{
		file: file,
		opts: opts,
		root: ast.NewRoot(),
	}
	p.curTopic = p.root.Topic("random")

	var cs commentStripper
	lastLine := 0
	for i, raw := range lines {
		lineNo := i + 1
		lastLine = lineNo

		if p.inObject {
			if strings.TrimSpace(raw) == "< object" {
				p.closeObject()
				continue
			}
			p.objectLines = append(p.objectLines, raw)
			continue
		}

		text := cs.Process(raw)
		if text == "" {
			continue
		}

		if err := p.dispatch(text, lineNo); err != nil {
			return p.root, p.warnings, err
		}
	}

	if p.pendingDef != nil {
		if err := p.flushPendingDef(); err != nil {
			return p.root, p.warnings, err
		}
	}

	if p.inObject {
		if err := p.warnOrSkip(p.objectLine, "unterminated object block %q", p.objectName); err != nil {
			return p.root, p.warnings, err
		}
		p.closeObject()
	}

	if err := p.flushTrigger(lastLine); err != nil {
		return p.root, p.warnings, err
	}

	return p.root, p.warnings, nil
}

func (p *parser) dispatch(text string, lineNo int) error {
	cmd := text[0]
	rest := strings.TrimSpace(text[1:])

	if cmd != '^' && p.pendingDef != nil {
		if err := p.flushPendingDef(); err != nil {
			return err
		}
	}

	if rest == "" {
		return p.warnOrSkip(lineNo, "empty payload for command %q", string(cmd))
	}

	switch cmd {
	case '!':
		return p.handleDefinition(rest, lineNo)
	case '>':
		return p.handleLabelOpen(rest, lineNo)
	case '<':
		return p.handleLabelClose(rest, lineNo)
	case '+':
		return p.handleTrigger(rest, lineNo)
	case '-':
		return p.handleReply(rest, lineNo)
	case '%':
		return p.handlePrevious(rest, lineNo)
	case '^':
		return p.handleContinuation(rest, lineNo)
	case '@':
		return p.handleRedirect(rest, lineNo)
	case '*':
		return p.handleCondition(rest, lineNo)
	default:
		return p.warnOrSkip(lineNo, "unknown command character %q", text[:1])
	}
}

func (p *parser) handleLabelOpen(rest string, lineNo int) error {
	if err := p.flushTrigger(lineNo); err != nil {
		return err
	}

	tokens := strings.Fields(rest)
	switch strings.ToLower(tokens[0]) {
	case "begin":
		p.curTopic = p.root.Topic("__begin__")
	case "topic":
		if len(tokens) < 2 {
			return p.warnOrSkip(lineNo, "topic label missing a name")
		}
		t := p.root.Topic(tokens[1])
		i := 2
		for i < len(tokens) {
			switch strings.ToLower(tokens[i]) {
			case "includes":
				i++
				for i < len(tokens) && !isRelationKeyword(tokens[i]) {
					t.Includes[tokens[i]] = true
					i++
				}
			case "inherits":
				i++
				for i < len(tokens) && !isRelationKeyword(tokens[i]) {
					t.Inherits[tokens[i]] = true
					i++
				}
			default:
				i++
			}
		}
		p.curTopic = t
	case "object":
		if len(tokens) < 2 {
			return p.warnOrSkip(lineNo, "object label missing a name")
		}
		p.inObject = true
		p.objectName = tokens[1]
		if len(tokens) > 2 {
			p.objectLang = tokens[2]
		}
		p.objectLines = nil
		p.objectLine = lineNo
	default:
		return p.warnOrSkip(lineNo, "unknown label %q", tokens[0])
	}
	return nil
}

func isRelationKeyword(tok string) bool {
	t := strings.ToLower(tok)
	return t == "includes" || t == "inherits"
}

func (p *parser) handleLabelClose(rest string, lineNo int) error {
	if err := p.flushTrigger(lineNo); err != nil {
		return err
	}

	switch strings.ToLower(strings.Fields(rest)[0]) {
	case "topic", "begin":
		p.curTopic = p.root.Topic("random")
	case "object":
		return p.warnOrSkip(lineNo, "unmatched object close")
	default:
		return p.warnOrSkip(lineNo, "unknown label close %q", rest)
	}
	return nil
}

func (p *parser) closeObject() {
	p.root.Objects = append(p.root.Objects, ast.Macro{
		Name:     p.objectName,
		Language: p.objectLang,
		Code:     p.objectLines,
		Source:   ast.Position{File: p.file, Line: p.objectLine},
	})
	p.inObject = false
	p.objectName = ""
	p.objectLang = ""
	p.objectLines = nil
}

func (p *parser) handleTrigger(rest string, lineNo int) error {
	if err := p.flushTrigger(lineNo); err != nil {
		return err
	}

	t := &ast.Trigger{Pattern: rest, Source: ast.Position{File: p.file, Line: lineNo}}
	p.curTopic.Triggers = append(p.curTopic.Triggers, t)
	p.curTrigger = t
	p.previousAttachable = true
	p.target = target{ptr: &t.Pattern}
	return nil
}

func (p *parser) handleReply(rest string, lineNo int) error {
	if p.curTrigger == nil {
		return p.warnOrSkip(lineNo, "reply (-) encountered before any trigger (+)")
	}
	p.curTrigger.Replies = append(p.curTrigger.Replies, rest)
	p.previousAttachable = false
	p.target = target{ptr: &p.curTrigger.Replies[len(p.curTrigger.Replies)-1]}
	return nil
}

func (p *parser) handlePrevious(rest string, lineNo int) error {
	if p.curTrigger == nil || !p.previousAttachable {
		return p.warnOrSkip(lineNo, "previous (%%) must immediately follow a trigger (+)")
	}
	p.curTrigger.Previous = rest
	p.curTrigger.HasPrevious = true
	p.previousAttachable = false
	p.target = target{ptr: &p.curTrigger.Previous}
	return nil
}

func (p *parser) handleRedirect(rest string, lineNo int) error {
	if p.curTrigger == nil {
		return p.warnOrSkip(lineNo, "redirect (@) encountered before any trigger (+)")
	}
	p.curTrigger.Redirect = rest
	p.curTrigger.HasRedirect = true
	p.previousAttachable = false
	p.target = target{ptr: &p.curTrigger.Redirect}
	return nil
}

func (p *parser) handleCondition(rest string, lineNo int) error {
	if p.curTrigger == nil {
		return p.warnOrSkip(lineNo, "condition (*) encountered before any trigger (+)")
	}
	p.curTrigger.Conditions = append(p.curTrigger.Conditions, rest)
	p.previousAttachable = false
	p.target = target{ptr: &p.curTrigger.Conditions[len(p.curTrigger.Conditions)-1]}
	return nil
}

func (p *parser) handleContinuation(rest string, lineNo int) error {
	if p.pendingDef != nil {
		p.pendingDef.parts = append(p.pendingDef.parts, rest)
		return nil
	}
	if p.target.ptr == nil {
		return p.warnOrSkip(lineNo, "continuation (^) with nothing preceding it to continue")
	}
	*p.target.ptr = *p.target.ptr + p.concat.delim() + rest
	return nil
}

func (p *parser) handleDefinition(rest string, lineNo int) error {
	kind, name, value, ok := splitDefinition(rest)
	if !ok {
		return p.warnOrSkip(lineNo, "malformed definition %q", rest)
	}

	if kind == "version" {
		v, err := parseVersion(value)
		if err != nil {
			return p.warnOrSkip(lineNo, "invalid version value %q", value)
		}
		if v > 2.0 {
			return rserrors.NewParsef(p.file, lineNo, "unsupported RiveScript version %v (max 2.0)", v)
		}
		p.versionSeen = true
		p.target = target{}
		return nil
	}

	if !definitionKinds[kind] {
		return p.warnOrSkip(lineNo, "unknown definition type %q", kind)
	}

	p.pendingDef = &pendingDef{kind: kind, name: name, parts: []string{value}, line: lineNo}
	p.target = target{}
	return nil
}

func (p *parser) flushPendingDef() error {
	pd := p.pendingDef
	p.pendingDef = nil

	joined := strings.Join(pd.parts, "<crlf>")
	if err := p.applyDefinition(pd.kind, pd.name, joined); err != nil {
		return p.warnOrSkip(pd.line, "%s", err.Error())
	}
	return nil
}

// flushTrigger validates and finalizes the in-progress trigger, if any. It
// is called whenever a new trigger starts, a label opens or closes, and at
// end of input.
func (p *parser) flushTrigger(lineNo int) error {
	t := p.curTrigger
	if t == nil {
		return nil
	}
	p.curTrigger = nil
	p.previousAttachable = false
	p.target = target{}

	if p.opts.ForceCase {
		t.Pattern = strings.ToLower(t.Pattern)
	} else if p.opts.Strict && containsUpper(t.Pattern) {
		return rserrors.NewParsef(p.file, t.Source.Line, "trigger pattern contains uppercase letters with forceCase off: %q", t.Pattern)
	}

	// t is still the last trigger of curTopic: every caller flushes before
	// the current topic can change.
	if !t.ProducesOutput() {
		if err := p.warnOrSkip(t.Source.Line, "trigger %q has no replies, conditions, or redirect", t.Pattern); err != nil {
			return err
		}
		p.curTopic.Triggers = p.curTopic.Triggers[:len(p.curTopic.Triggers)-1]
		return nil
	}
	if !bracketsBalanced(t.Pattern) {
		if err := p.warnOrSkip(t.Source.Line, "unbalanced optional brackets in trigger %q", t.Pattern); err != nil {
			return err
		}
		p.curTopic.Triggers = p.curTopic.Triggers[:len(p.curTopic.Triggers)-1]
	}
	return nil
}

// warnOrSkip records a diagnostic. In strict mode it becomes the parse
// error; otherwise it is appended to the warnings list and parsing
// continues.
func (p *parser) warnOrSkip(line int, format string, a ...interface{}) error {
	if p.opts.Strict {
		return rserrors.NewParsef(p.file, line, format, a...)
	}
	p.warnings = append(p.warnings, rserrors.NewParsef(p.file, line, format, a...).AuthorMessage())
	return nil
}

// errorf builds a plain error for use inside applyDefinition and friends,
// which run outside of any single line's dispatch and so report against
// whatever line the pending definition started on.
func (p *parser) errorf(format string, a ...interface{}) error {
	return fmt.Errorf(format, a...)
}

func containsUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func bracketsBalanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
