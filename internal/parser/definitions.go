package parser

import (
	"strconv"
	"strings"
)

// definitionKinds are the valid values for the type word following `!`.
// "version" is handled separately by the caller since it gates the whole
// parse rather than touching the Begin block.
var definitionKinds = map[string]bool{
	"global": true,
	"var":    true,
	"sub":    true,
	"person": true,
	"array":  true,
	"local":  true,
}

const undefMarker = "<undef>"

// splitDefinition breaks the payload of a `!` line (everything after the
// command character and whitespace) into its type word, name, and value.
// Returns ok=false if the line isn't of the form "type [name] = value".
func splitDefinition(payload string) (kind, name, value string, ok bool) {
	eq := strings.Index(payload, "=")
	if eq < 0 {
		return "", "", "", false
	}

	left := strings.Fields(strings.TrimSpace(payload[:eq]))
	value = strings.TrimSpace(payload[eq+1:])

	if len(left) == 0 {
		return "", "", "", false
	}

	kind = strings.ToLower(left[0])
	if len(left) > 1 {
		name = strings.Join(left[1:], " ")
	}
	return kind, name, value, true
}

// applyDefinition mutates the begin block (or the parser's file-local state
// for "local") according to one `!` definition. It returns a non-nil error
// for a definition kind that isn't recognized, and for a "local" option name
// or concat mode that isn't recognized.
func (p *parser) applyDefinition(kind, name, value string) error {
	switch kind {
	case "global":
		setOrDelete(p.root.Begin.Global, p.root.Begin.DeletedGlobal, name, value)
	case "var":
		setOrDelete(p.root.Begin.Var, p.root.Begin.DeletedVar, name, value)
	case "sub":
		setOrDelete(p.root.Begin.Sub, p.root.Begin.DeletedSub, strings.ToLower(name), value)
	case "person":
		setOrDelete(p.root.Begin.Person, p.root.Begin.DeletedPerson, strings.ToLower(name), value)
	case "array":
		if value == undefMarker {
			delete(p.root.Begin.Array, name)
			p.root.Begin.DeletedArray[name] = true
			return nil
		}
		var items []string
		for _, line := range strings.Split(value, "<crlf>") {
			items = append(items, splitArrayLine(line)...)
		}
		p.root.Begin.Array[name] = items
	case "local":
		return p.applyLocalOption(name, value)
	default:
		return p.errorf("unknown definition type %q", kind)
	}
	return nil
}

// splitArrayLine splits one line's worth of an array definition's value: on
// "|" when present, otherwise on whitespace. "! array" continuations (`^`
// lines) join with the literal "<crlf>" delimiter (spec §4.1), and each
// resulting line is split independently by this same rule before the
// per-line item lists are flattened together.
func splitArrayLine(line string) []string {
	if strings.Contains(line, "|") {
		parts := strings.Split(line, "|")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return strings.Fields(line)
}

func setOrDelete(m map[string]string, deleted map[string]bool, name, value string) {
	if value == undefMarker {
		delete(m, name)
		deleted[name] = true
		return
	}
	delete(deleted, name)
	m[name] = value
}

// applyLocalOption handles `! local NAME = VALUE` directives that affect
// parsing of the rest of the current file, currently only "concat".
func (p *parser) applyLocalOption(name, value string) error {
	switch strings.ToLower(name) {
	case "concat":
		switch strings.ToLower(value) {
		case "none":
			p.concat = concatNone
		case "space":
			p.concat = concatSpace
		case "newline":
			p.concat = concatNewline
		default:
			return p.errorf("unknown concat mode %q", value)
		}
	default:
		return p.errorf("unknown local option %q", name)
	}
	return nil
}

// parseVersion parses the value side of a `! version = X` line as a float
// for comparison against the maximum supported version.
func parseVersion(value string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(value), 64)
}
