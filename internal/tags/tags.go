// Package tags implements reply tag expansion: the table in spec §4.5.
// Expansion proceeds by repeatedly applying one pass of every tag-family
// rewrite until a pass produces no further change, which is how nesting is
// resolved "inside-out" without a dedicated recursive-descent parser — the
// same repeated-rewrite style the teacher engine's TunaScript template
// executor uses to walk nested template nodes (tunascript.go's
// execNode/templateExecNode dispatch, internal/game/dialog.go's branching
// step model), adapted here from an AST walk to a flat string rewrite
// because reply text is not independently parsed into a tree before this
// stage runs.
package tags

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Environment is everything tag expansion needs from the engine around it:
// captured stars, session/bot/global variable access, array and person
// tables, the object-macro dispatcher, and the two recursive hooks
// (inline redirect and runtime script injection). The engine implements
// this once per reply() call so that "current user" stays scoped to that
// call, per spec §5 and §9.
type Environment interface {
	UserID() string
	Star(n int) string
	BotStar(n int) string
	History(kind string, n int) string

	GetBotVar(name string) (string, bool)
	SetBotVar(name, value string)
	GetGlobal(name string) (string, bool)
	SetGlobal(name, value string)
	GetSessionVar(name string) (string, bool)
	SetSessionVar(name, value string)

	Array(name string) ([]string, bool)
	PersonSubstitute(text string) string
	SetTopic(name string)

	// Redirect recurses the reply engine on target, honoring the shared
	// depth bound; it never errors, returning whatever reply text (error
	// text included) the recursive call produced.
	Redirect(ctx context.Context, target string) string

	CallMacro(ctx context.Context, name string, args []string) string

	// Reparse streams source back through the parser and merges it into
	// the live brain, per the {!…} tag.
	Reparse(source string) error
}

const maxPasses = 64

var (
	reCall           = regexp.MustCompile(`(?s)<call>(.*?)</call>`)
	reAngleTag       = regexp.MustCompile(`<([^<>]*)>`)
	reRandomBlock    = regexp.MustCompile(`(?s)\{random\}(.*?)\{/random\}`)
	reFormalBlock    = regexp.MustCompile(`(?s)\{formal\}(.*?)\{/formal\}`)
	reSentenceBlock  = regexp.MustCompile(`(?s)\{sentence\}(.*?)\{/sentence\}`)
	reUppercaseBlock = regexp.MustCompile(`(?s)\{uppercase\}(.*?)\{/uppercase\}`)
	reLowercaseBlock = regexp.MustCompile(`(?s)\{lowercase\}(.*?)\{/lowercase\}`)
	rePersonBlock    = regexp.MustCompile(`(?s)\{person\}(.*?)\{/person\}`)
	reWeightTag      = regexp.MustCompile(`\{weight=-?\d+\}`)
	reTopicSet       = regexp.MustCompile(`\{topic=([^}]*)\}`)
	reInlineRedirect = regexp.MustCompile(`\{@([^}]*)\}`)
	reArrayExpand    = regexp.MustCompile(`\(@([A-Za-z0-9_]+)\)`)
	reRuntimeInject  = regexp.MustCompile(`(?s)\{!(.*?)\}`)

	reStarN     = regexp.MustCompile(`^star(\d+)$`)
	reBotstarN  = regexp.MustCompile(`^botstar(\d+)$`)
	reInputN    = regexp.MustCompile(`^input(\d+)$`)
	reReplyN    = regexp.MustCompile(`^reply(\d+)$`)
)

// Expand applies the shortcut rewrites and then iterates tag-family passes
// until the text stops changing or maxPasses is reached.
func Expand(ctx context.Context, env Environment, text string) string {
	text = applyShortcuts(text)
	for i := 0; i < maxPasses; i++ {
		before := text
		text = pass(ctx, env, text)
		if text == before {
			break
		}
	}
	return text
}

func applyShortcuts(text string) string {
	replacer := strings.NewReplacer(
		"<@>", "{@<star>}",
		"<person>", "{person}<star>{/person}",
		"<formal>", "{formal}<star>{/formal}",
		"<sentence>", "{sentence}<star>{/sentence}",
		"<uppercase>", "{uppercase}<star>{/uppercase}",
		"<lowercase>", "{lowercase}<star>{/lowercase}",
	)
	return replacer.Replace(text)
}

func pass(ctx context.Context, env Environment, text string) string {
	text = reCall.ReplaceAllStringFunc(text, func(m string) string {
		inner := reCall.FindStringSubmatch(m)[1]
		fields := strings.Fields(inner)
		if len(fields) == 0 {
			return "[ERR: Object Not Found]"
		}
		return env.CallMacro(ctx, fields[0], fields[1:])
	})

	text = reAngleTag.ReplaceAllStringFunc(text, func(m string) string {
		body := m[1 : len(m)-1]
		return expandAngle(ctx, env, body)
	})

	text = reRandomBlock.ReplaceAllStringFunc(text, func(m string) string {
		content := reRandomBlock.FindStringSubmatch(m)[1]
		parts := strings.Split(content, "|")
		return parts[rand.Intn(len(parts))]
	})

	text = reFormalBlock.ReplaceAllStringFunc(text, func(m string) string {
		return cases.Title(language.Und).String(reFormalBlock.FindStringSubmatch(m)[1])
	})
	text = reSentenceBlock.ReplaceAllStringFunc(text, func(m string) string {
		return upperFirst(reSentenceBlock.FindStringSubmatch(m)[1])
	})
	text = reUppercaseBlock.ReplaceAllStringFunc(text, func(m string) string {
		return strings.ToUpper(reUppercaseBlock.FindStringSubmatch(m)[1])
	})
	text = reLowercaseBlock.ReplaceAllStringFunc(text, func(m string) string {
		return strings.ToLower(reLowercaseBlock.FindStringSubmatch(m)[1])
	})
	text = rePersonBlock.ReplaceAllStringFunc(text, func(m string) string {
		return env.PersonSubstitute(rePersonBlock.FindStringSubmatch(m)[1])
	})

	text = reWeightTag.ReplaceAllString(text, "")

	text = reTopicSet.ReplaceAllStringFunc(text, func(m string) string {
		name := strings.TrimSpace(reTopicSet.FindStringSubmatch(m)[1])
		env.SetTopic(name)
		return ""
	})

	text = reInlineRedirect.ReplaceAllStringFunc(text, func(m string) string {
		target := strings.TrimSpace(reInlineRedirect.FindStringSubmatch(m)[1])
		return env.Redirect(ctx, target)
	})

	text = reArrayExpand.ReplaceAllStringFunc(text, func(m string) string {
		name := reArrayExpand.FindStringSubmatch(m)[1]
		items, ok := env.Array(name)
		if !ok || len(items) == 0 {
			return m
		}
		return "{random}" + strings.Join(items, "|") + "{/random}"
	})

	text = reRuntimeInject.ReplaceAllStringFunc(text, func(m string) string {
		src := reRuntimeInject.FindStringSubmatch(m)[1]
		_ = env.Reparse(src)
		return ""
	})

	return text
}

func upperFirst(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func expandAngle(ctx context.Context, env Environment, body string) string {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return "<>"
	}
	head := strings.ToLower(fields[0])

	switch {
	case head == "star":
		return env.Star(1)
	case reStarN.MatchString(head):
		n, _ := strconv.Atoi(reStarN.FindStringSubmatch(head)[1])
		return env.Star(n)
	case head == "botstar":
		return env.BotStar(1)
	case reBotstarN.MatchString(head):
		n, _ := strconv.Atoi(reBotstarN.FindStringSubmatch(head)[1])
		return env.BotStar(n)
	case head == "input":
		return env.History("input", 1)
	case reInputN.MatchString(head):
		n, _ := strconv.Atoi(reInputN.FindStringSubmatch(head)[1])
		return env.History("input", n)
	case head == "reply":
		return env.History("reply", 1)
	case reReplyN.MatchString(head):
		n, _ := strconv.Atoi(reReplyN.FindStringSubmatch(head)[1])
		return env.History("reply", n)
	case head == "id":
		return env.UserID()
	case head == "bot":
		return expandKV(fields[1:], env.GetBotVar, env.SetBotVar)
	case head == "env":
		return expandKV(fields[1:], env.GetGlobal, env.SetGlobal)
	case head == "get":
		if len(fields) < 2 {
			return "undefined"
		}
		v, ok := env.GetSessionVar(fields[1])
		if !ok {
			return "undefined"
		}
		return v
	case head == "set":
		if len(fields) < 2 {
			return ""
		}
		k, v, ok := splitKV(fields[1])
		if !ok {
			return ""
		}
		env.SetSessionVar(k, v)
		return ""
	case head == "add" || head == "sub" || head == "mult" || head == "div":
		if len(fields) < 2 {
			return ""
		}
		return arithmetic(head, fields[1], env)
	default:
		return "<" + body + ">"
	}
}

// expandKV backs <bot name>/<bot name=value> and <env name>/<env
// name=value>: a bare name reads, a name=value pair writes and returns the
// empty string (spec's supplemented setter-tag behavior).
func expandKV(rest []string, get func(string) (string, bool), set func(string, string)) string {
	if len(rest) == 0 {
		return ""
	}
	if k, v, ok := splitKV(rest[0]); ok {
		set(k, v)
		return ""
	}
	v, ok := get(rest[0])
	if !ok {
		return "undefined"
	}
	return v
}

func splitKV(s string) (key, value string, ok bool) {
	idx := strings.Index(s, "=")
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+1:], true
}

func arithmetic(op string, arg string, env Environment) string {
	name, valStr, ok := splitKV(arg)
	if !ok {
		return ""
	}
	delta, err := strconv.Atoi(valStr)
	if err != nil {
		return fmt.Sprintf("[ERR: Math can't %q non-numeric value %q]", op, valStr)
	}

	cur := 0
	if curStr, ok := env.GetSessionVar(name); ok && curStr != "" {
		c, err := strconv.Atoi(curStr)
		if err != nil {
			return fmt.Sprintf("[ERR: Math can't %q non-numeric value %q]", op, curStr)
		}
		cur = c
	}

	switch op {
	case "add":
		cur += delta
	case "sub":
		cur -= delta
	case "mult":
		cur *= delta
	case "div":
		if delta == 0 {
			return "[ERR: Can't divide by zero!]"
		}
		cur /= delta
	}

	env.SetSessionVar(name, strconv.Itoa(cur))
	return ""
}
