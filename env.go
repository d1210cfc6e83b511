package rivescript

import (
	"context"
	"strings"

	"github.com/rivebot/rivescript/internal/normalize"
	"github.com/rivebot/rivescript/internal/session"
)

// patternResolver adapts a single user's live state to regexc.Resolver, so
// that <bot>/<get>/<input>/<reply> tags appearing inside a trigger pattern
// itself resolve against that user's values at match time.
type patternResolver struct {
	bot   *Bot
	state *session.State
}

func (r *patternResolver) BotVar(name string) (string, bool) {
	return r.bot.getVar(name)
}

func (r *patternResolver) SessionVar(name string) (string, bool) {
	v, ok := r.state.Variables[name]
	return v, ok
}

func (r *patternResolver) History(kind string, n int) (string, bool) {
	idx := 0
	if n > 0 {
		idx = n - 1
	}
	if kind == "input" {
		return r.state.Input.At(idx), true
	}
	return r.state.Reply.At(idx), true
}

// replyEnv implements tags.Environment for a single generateReply call. It
// is the "current user" scope spec §5 and §9 describe: everything it
// touches is either this call's captured stars or the session/bot/global
// state reached through the owning Bot, never a process-wide singleton.
type replyEnv struct {
	bot      *Bot
	user     string
	state    *session.State
	stars    []string
	botstars []string
	depth    int
}

func (e *replyEnv) UserID() string { return e.user }

func (e *replyEnv) Star(n int) string    { return starAt(e.stars, n) }
func (e *replyEnv) BotStar(n int) string { return starAt(e.botstars, n) }

func starAt(stars []string, n int) string {
	if n < 1 || n > len(stars) {
		return "undefined"
	}
	return stars[n-1]
}

func (e *replyEnv) History(kind string, n int) string {
	idx := n - 1
	if idx < 0 {
		idx = 0
	}
	var raw string
	if kind == "input" {
		raw = e.state.Input.At(idx)
	} else {
		raw = e.state.Reply.At(idx)
	}
	return normalize.FoldAndStrip(raw, e.bot.opts.UTF8, e.bot.opts.UnicodePunctuation)
}

func (e *replyEnv) GetBotVar(name string) (string, bool) { return e.bot.getVar(name) }
func (e *replyEnv) SetBotVar(name, value string)         { e.bot.setVar(name, value) }
func (e *replyEnv) GetGlobal(name string) (string, bool) { return e.bot.getGlobal(name) }
func (e *replyEnv) SetGlobal(name, value string)         { e.bot.setGlobal(name, value) }

func (e *replyEnv) GetSessionVar(name string) (string, bool) {
	v, ok := e.state.Variables[name]
	return v, ok
}

func (e *replyEnv) SetSessionVar(name, value string) {
	e.state.Variables[name] = value
}

func (e *replyEnv) Array(name string) ([]string, bool) {
	items, ok := e.bot.brain.Array[name]
	return items, ok
}

// PersonSubstitute applies the {person} swap table to text, case-insensitive
// on the lookup side (spec §4.4), leaving text it doesn't recognize alone.
func (e *replyEnv) PersonSubstitute(text string) string {
	return normalize.ApplySubstitutions(text, e.bot.buf.Person, e.bot.brain.Person)
}

func (e *replyEnv) SetTopic(name string) {
	e.state.Variables["topic"] = strings.TrimSpace(name)
}

func (e *replyEnv) Redirect(ctx context.Context, target string) string {
	nextTopic := e.state.Variables["topic"]
	return e.bot.generateReply(ctx, e.user, e.state, nextTopic, target, e.depth+1, false)
}

func (e *replyEnv) CallMacro(ctx context.Context, name string, args []string) string {
	return e.bot.brain.Macros.Call(ctx, name, args)
}

func (e *replyEnv) Reparse(source string) error {
	return e.bot.loadInline(source)
}
