// Package regexc compiles a RiveScript trigger pattern into a
// regexp.Regexp, applying the rewrites enumerated in spec §4.4: wildcard
// symbols become capture groups, {weight=N} is dropped, [optional|words]
// become non-capturing alternations, @array references expand to an
// alternation of array items, and <bot>/<get>/<input>/<reply> tags resolve
// against the supplied Resolver before the pattern is compiled. This is a
// hand-rolled rune scanner rather than a chain of global regexp
// replacements, because several of these rewrites (nested optionals,
// escaped underscore, sole-star detection) need positional context that a
// flat find/replace pass loses.
package regexc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/rivebot/rivescript/internal/normalize"
	"github.com/rivebot/rivescript/internal/rsopts"
)

// Resolver supplies the runtime values a trigger pattern's tags need at
// compile time: a bot variable, a session variable, or an input/reply
// history slot. A false second return means "not set", which resolves to
// the literal text "undefined" per spec §4.4.
type Resolver interface {
	BotVar(name string) (string, bool)
	SessionVar(name string) (string, bool)
	History(kind string, n int) (string, bool)
}

// Compile turns a trigger pattern into an anchored regular expression ready
// to match against a normalized user message.
func Compile(pattern string, arrays map[string][]string, resolver Resolver, opts rsopts.Options) (*regexp.Regexp, error) {
	body, err := compilePattern([]rune(pattern), arrays, resolver, opts, true, true)
	if err != nil {
		return nil, fmt.Errorf("compile trigger pattern %q: %w", pattern, err)
	}
	re, err := regexp.Compile("^" + body + "$")
	if err != nil {
		return nil, fmt.Errorf("compile trigger pattern %q: %w", pattern, err)
	}
	return re, nil
}

// compilePattern walks runes left to right. capturing controls whether
// wildcard rewrites produce capturing or non-capturing groups (alternatives
// inside [...] always compile non-capturing, per spec §4.4). topLevel
// gates the "bare *" rule, which only applies to a trigger whose entire
// text (trimmed) is the single character *, not to a * found inside a
// nested alternative.
func compilePattern(runes []rune, arrays map[string][]string, resolver Resolver, opts rsopts.Options, capturing, topLevel bool) (string, error) {
	soleStar := topLevel && strings.TrimSpace(string(runes)) == "*"

	var out strings.Builder
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == '{':
			if end, ok := matchWeightTag(runes, i); ok {
				i = end
				continue
			}
			out.WriteString(regexp.QuoteMeta(string(r)))
			i++

		case r == '@':
			if name, end, ok := scanIdent(runes, i+1); ok {
				if items, found := arrays[name]; found {
					out.WriteString(arrayAlternation(items))
				}
				i = end
				continue
			}
			out.WriteString(regexp.QuoteMeta(string(r)))
			i++

		case r == '<':
			repl, end := scanAngleTag(runes, i, resolver, opts)
			out.WriteString(repl)
			i = end

		case r == '\\' && i+1 < len(runes) && runes[i+1] == '_':
			out.WriteString("_")
			i += 2

		case r == '_':
			out.WriteString(letterGroup(opts.UTF8, capturing))
			i++

		case r == '#':
			out.WriteString(numberGroup(capturing))
			i++

		case r == '*':
			if soleStar {
				out.WriteString("(.*?)")
			} else {
				out.WriteString(starGroup(capturing))
			}
			i++

		case r == '[':
			end := matchingBracket(runes, i)
			if end < 0 {
				out.WriteString(regexp.QuoteMeta(string(r)))
				i++
				continue
			}
			alt, err := compileOptional(runes[i+1:end], arrays, resolver, opts)
			if err != nil {
				return "", err
			}
			// The optional group matches its own surrounding whitespace, so
			// the spaces just before and just after the brackets are dropped.
			before := strings.TrimRight(out.String(), " ")
			out.Reset()
			out.WriteString(before)
			out.WriteString(alt)
			i = end + 1
			for i < len(runes) && runes[i] == ' ' {
				i++
			}

		default:
			out.WriteString(regexp.QuoteMeta(string(r)))
			i++
		}
	}
	return out.String(), nil
}

func compileOptional(inner []rune, arrays map[string][]string, resolver Resolver, opts rsopts.Options) (string, error) {
	alts := splitTopLevelPipe(inner)
	parts := make([]string, 0, len(alts)+1)
	for _, alt := range alts {
		trimmed := strings.TrimSpace(string(alt))
		compiled, err := compilePattern([]rune(trimmed), arrays, resolver, opts, false, false)
		if err != nil {
			return "", err
		}
		parts = append(parts, `(?:\s|\b)+`+compiled+`(?:\s|\b)+`)
	}
	parts = append(parts, `(?:\b|\s)+`)
	return "(?:" + strings.Join(parts, "|") + ")", nil
}

// splitTopLevelPipe splits on '|' that is not inside a nested [...] group.
func splitTopLevelPipe(runes []rune) [][]rune {
	var out [][]rune
	depth := 0
	start := 0
	for i, r := range runes {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case '|':
			if depth == 0 {
				out = append(out, runes[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, runes[start:])
	return out
}

func matchingBracket(runes []rune, open int) int {
	depth := 0
	for j := open; j < len(runes); j++ {
		switch runes[j] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

var weightTagPattern = regexp.MustCompile(`^\{weight=-?\d+\}`)

// matchWeightTag reports whether a {weight=N} tag starts at i, returning the
// index just past it if so.
func matchWeightTag(runes []rune, i int) (int, bool) {
	rest := string(runes[i:])
	loc := weightTagPattern.FindStringIndex(rest)
	if loc == nil {
		return i, false
	}
	return i + loc[1], true
}

func scanIdent(runes []rune, start int) (string, int, bool) {
	j := start
	for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
		j++
	}
	if j == start {
		return "", start, false
	}
	return string(runes[start:j]), j, true
}

func arrayAlternation(items []string) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = regexp.QuoteMeta(strings.TrimSpace(it))
	}
	return "(?:" + strings.Join(parts, "|") + ")"
}

// scanAngleTag looks for a <...> tag starting at i. If the contents are a
// recognized pattern tag (bot, get, input[N], reply[N]), it resolves and
// returns the replacement text plus the index just past '>'. Otherwise the
// whole bracketed text (if closed) or just '<' (if unclosed) is emitted
// as a literal and the scan continues from just past it.
func scanAngleTag(runes []rune, i int, resolver Resolver, opts rsopts.Options) (string, int) {
	j := i + 1
	for j < len(runes) && runes[j] != '>' {
		j++
	}
	if j >= len(runes) {
		return regexp.QuoteMeta("<"), i + 1
	}
	body := string(runes[i+1 : j])
	if repl, ok := resolveTag(body, resolver, opts); ok {
		return repl, j + 1
	}
	return regexp.QuoteMeta(string(runes[i : j+1])), j + 1
}

func resolveTag(body string, resolver Resolver, opts rsopts.Options) (string, bool) {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return "", false
	}
	head := strings.ToLower(fields[0])

	fold := func(v string, ok bool) string {
		if !ok {
			v = "undefined"
		}
		return regexp.QuoteMeta(normalize.FoldAndStrip(v, opts.UTF8, opts.UnicodePunctuation))
	}

	switch {
	case head == "bot" && len(fields) >= 2:
		v, ok := resolver.BotVar(fields[1])
		return fold(v, ok), true
	case head == "get" && len(fields) >= 2:
		v, ok := resolver.SessionVar(fields[1])
		return fold(v, ok), true
	case head == "input" || head == "reply":
		v, ok := resolver.History(head, 0)
		return fold(v, ok), true
	case strings.HasPrefix(head, "input") || strings.HasPrefix(head, "reply"):
		kind := "input"
		numStr := strings.TrimPrefix(head, "input")
		if strings.HasPrefix(head, "reply") {
			kind = "reply"
			numStr = strings.TrimPrefix(head, "reply")
		}
		n, err := strconv.Atoi(numStr)
		if err != nil || n < 1 || n > 9 {
			return "", false
		}
		v, ok := resolver.History(kind, n)
		return fold(v, ok), true
	default:
		return "", false
	}
}

func letterGroup(utf8Mode, capturing bool) string {
	class := "[A-Za-z]+?"
	if utf8Mode {
		class = `\p{L}+?`
	}
	if capturing {
		return "(" + class + ")"
	}
	return "(?:" + class + ")"
}

func numberGroup(capturing bool) string {
	if capturing {
		return `(\d+?)`
	}
	return `(?:\d+?)`
}

func starGroup(capturing bool) string {
	if capturing {
		return "(.+?)"
	}
	return "(?:.+?)"
}
