// Package rivescript implements a RiveScript chatbot interpreter: parsing
// .rive source into a trigger/topic brain, sorting triggers into the
// priority order the spec demands, and replying to per-user messages
// through the full normalize -> BEGIN -> match -> condition -> tag-expand
// pipeline. The public Bot type here plays the role the teacher engine's
// tunascript.Interpreter plays for TunaQuest: a single façade that owns a
// parsed/merged program, exposes the handful of operations callers need,
// and keeps everything else (the brain, the sort buffer, the session
// store) as internal collaborators instantiated once in New.
package rivescript

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/rivebot/rivescript/ast"
	"github.com/rivebot/rivescript/internal/brain"
	"github.com/rivebot/rivescript/internal/macro"
	"github.com/rivebot/rivescript/internal/normalize"
	"github.com/rivebot/rivescript/internal/parser"
	"github.com/rivebot/rivescript/internal/regexc"
	"github.com/rivebot/rivescript/internal/rsopts"
	"github.com/rivebot/rivescript/internal/session"
	"github.com/rivebot/rivescript/internal/sorter"
	"github.com/rivebot/rivescript/internal/tags"
)

// beginTopic is the reserved topic name the BEGIN block's triggers live
// under, matched once per Reply call before the user's real message is
// matched against their current topic.
const beginTopic = "__begin__"

// Bot is a loaded, sorted RiveScript program plus the per-user session
// store it replies against. The zero value is not usable; construct one
// with New.
//
// Per spec §5, a Bot is safe for concurrent Reply calls across distinct
// users. It is not safe to call Load/Merge/Sort concurrently with any
// in-flight Reply call; callers that need to hot-reload should quiesce
// traffic, or build a new Bot and swap it in atomically at a call site
// above this package.
type Bot struct {
	opts     rsopts.Options
	brain    *brain.Brain
	buf      *sorter.SortBuffer
	sessions *session.Manager
	logger   *log.Logger

	// varMu guards brain.Var and brain.Global specifically: reply
	// generation can write to either through <bot name=value> and <env
	// name=value> tags, and distinct users' Reply calls can run those
	// writes concurrently, unlike everything else brain/buf hold, which
	// reply generation only ever reads.
	varMu sync.RWMutex
}

// New returns a Bot with an empty brain and the given options. A nil
// logger defaults to log.Default(), matching the teacher engine's
// Engine.New convention of never requiring a caller to supply one.
func New(opts rsopts.Options, logger *log.Logger) *Bot {
	if logger == nil {
		logger = log.Default()
	}
	macros := macro.NewRegistry()
	b := &Bot{
		opts:     opts,
		brain:    brain.New(macros, logger),
		sessions: session.NewManager(),
		logger:   logger,
	}
	b.buf = sorter.Sort(b.brain, opts.Depth, logger)
	return b
}

// RegisterMacroHandler associates a host language name with the Handler
// that implements object macros written in it. Call this before loading
// any source that declares `> object NAME LANG` blocks in that language.
func (b *Bot) RegisterMacroHandler(language string, h macro.Handler) {
	b.brain.Macros.RegisterHandler(language, h)
}

// Reset discards everything previously merged into the brain, keeping the
// Bot's options, logger, and registered macro handlers. Callers that reload
// a directory of source from scratch (internal/rsfile's Watcher does this
// on every filesystem event) call Reset before the reload's LoadString
// calls, since Merge is additive and would otherwise duplicate every
// trigger on each reload.
func (b *Bot) Reset() {
	b.brain = brain.New(b.brain.Macros, b.logger)
	b.buf = sorter.Sort(b.brain, b.opts.Depth, b.logger)
}

// LoadString parses source as a single named document and merges it into
// the brain. Callers loading a directory of .rive files should call this
// once per file, then SortReplies once at the end; internal/rsfile provides that
// directory walk.
func (b *Bot) LoadString(name string, source string) error {
	lines := strings.Split(source, "\n")
	root, warnings, err := parser.Parse(name, lines, b.opts)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		b.logger.Printf("rivescript: %s: %s", name, w)
	}
	b.brain.Merge(root)
	return nil
}

// loadInline is Reparse's entry point for the {!…} runtime-injection tag:
// it parses source the same way LoadString does, but re-sorts immediately
// afterward since the newly merged triggers must be matchable by the very
// next Reply call.
func (b *Bot) loadInline(source string) error {
	if err := b.LoadString("<inline>", source); err != nil {
		return err
	}
	b.SortReplies()
	return nil
}

// SortReplies rebuilds the trigger sort buffer from the brain's current
// state. Call it once after a batch of LoadString calls, and again any
// time brain content changes outside of a reply-time inline reparse
// (which calls it for you).
func (b *Bot) SortReplies() {
	b.buf = sorter.Sort(b.brain, b.opts.Depth, b.logger)
}

func (b *Bot) getVar(name string) (string, bool) {
	b.varMu.RLock()
	defer b.varMu.RUnlock()
	v, ok := b.brain.Var[name]
	return v, ok
}

func (b *Bot) setVar(name, value string) {
	b.varMu.Lock()
	defer b.varMu.Unlock()
	b.brain.Var[name] = value
}

func (b *Bot) getGlobal(name string) (string, bool) {
	b.varMu.RLock()
	defer b.varMu.RUnlock()
	v, ok := b.brain.Global[name]
	return v, ok
}

func (b *Bot) setGlobal(name, value string) {
	b.varMu.Lock()
	defer b.varMu.Unlock()
	b.brain.Global[name] = value
}

// SetGlobal sets an engine-level global variable (e.g. "depth").
func (b *Bot) SetGlobal(name, value string) { b.setGlobal(name, value) }

// DeleteGlobal removes an engine-level global variable.
func (b *Bot) DeleteGlobal(name string) {
	b.varMu.Lock()
	defer b.varMu.Unlock()
	delete(b.brain.Global, name)
}

// SetVar sets a bot variable (e.g. "name").
func (b *Bot) SetVar(name, value string) { b.setVar(name, value) }

// DeleteVar removes a bot variable.
func (b *Bot) DeleteVar(name string) {
	b.varMu.Lock()
	defer b.varMu.Unlock()
	delete(b.brain.Var, name)
}

// SetUservar sets a single session variable for user.
func (b *Bot) SetUservar(user, name, value string) {
	b.sessions.Set(user, map[string]string{name: value})
}

// GetUservar reads a single session variable for user.
func (b *Bot) GetUservar(user, name string) (string, bool) {
	return b.sessions.Get(user, name)
}

// GetUservars returns a copy of every session variable set for user.
func (b *Bot) GetUservars(user string) map[string]string {
	return b.sessions.GetAny(user)
}

// GetAllUservars returns a copy of every known user's session variables.
func (b *Bot) GetAllUservars() map[string]map[string]string {
	return b.sessions.GetAll()
}

// ClearUservar resets user's session to its initial state.
func (b *Bot) ClearUservar(user string) { b.sessions.Clear(user) }

// ClearAllUservars resets every known user's session.
func (b *Bot) ClearAllUservars() { b.sessions.ClearAll() }

// FreezeUservars snapshots user's current session for a later ThawUservars.
func (b *Bot) FreezeUservars(user string) error { return b.sessions.Freeze(user) }

// ThawUservars applies action to user's frozen snapshot.
func (b *Bot) ThawUservars(user string, action session.ThawAction) error {
	return b.sessions.Thaw(user, action)
}

// Reply computes the bot's response to message from user, per spec §4.5.
// It locks user's session for the duration of the call (spec §5: exclusive
// ownership), runs the BEGIN block if one is loaded, matches and expands
// the real reply, and finally records history.
func (b *Bot) Reply(user, message string) string {
	state, unlock := b.sessions.Lock(user)
	defer unlock()

	ctx := macro.WithUser(context.Background(), user)

	var reply string
	if _, ok := b.brain.Topics[beginTopic]; ok {
		// The BEGIN block's trigger is always matched against the literal
		// word "request", never the user's actual message. {ok} in its
		// output is a placeholder for the real reply; if it's absent, the
		// BEGIN block's own output replaces the entire turn and the user's
		// message is never matched against their topic at all.
		begun := b.generateReply(ctx, user, state, beginTopic, "request", 0, false)
		if !strings.Contains(begun, "{ok}") {
			reply = begun
		} else {
			topic := state.Variables["topic"]
			if topic == "" {
				topic = "random"
			}
			real := b.generateReply(ctx, user, state, topic, message, 0, true)
			reply = strings.Replace(begun, "{ok}", real, 1)
		}
	} else {
		topic := state.Variables["topic"]
		if topic == "" {
			topic = "random"
		}
		reply = b.generateReply(ctx, user, state, topic, message, 0, true)
	}

	state.Input.Push(b.normalizeMessage(message))
	state.Reply.Push(reply)
	return reply
}

func (b *Bot) normalizeMessage(raw string) string {
	return normalize.Message(raw, b.buf.Sub, b.brain.Sub, b.opts.UTF8, b.opts.UnicodePunctuation)
}

// generateReply is the recursive core of the matcher/reply pipeline: match
// a trigger in topic, evaluate its conditions, pick from its redirect/reply
// pool, expand tags, and — if the chosen entry was a redirect — recurse on
// the expanded redirect target. depth counts both inline redirects and
// {@...} redirects against the shared rsopts.Options.Depth bound (spec
// §4.2/§4.5); allowPrevious gates %Previous resolution to the outermost
// real-message match, since a redirect target is not "the bot's last
// reply" and should only ever plain-match.
func (b *Bot) generateReply(ctx context.Context, user string, state *session.State, topic, message string, depth int, allowPrevious bool) string {
	if depth > b.opts.Depth {
		return b.opts.ErrorText(rsopts.ErrDeepRecursion)
	}

	trig, stars, botstars := b.matchMessage(state, topic, message, allowPrevious)
	if trig == nil {
		state.LastMatch = ""
		return b.opts.ErrorText(rsopts.ErrNoReplyMatched)
	}
	state.LastMatch = trig.Pattern

	env := &replyEnv{bot: b, user: user, state: state, stars: stars, botstars: botstars, depth: depth}

	chosen, isRedirect, ok := b.choose(ctx, env, trig)
	if !ok {
		return b.opts.ErrorText(rsopts.ErrNoReplyFound)
	}

	expanded := tags.Expand(ctx, env, chosen)
	if isRedirect {
		nextTopic := state.Variables["topic"]
		return b.generateReply(ctx, user, state, nextTopic, expanded, depth+1, false)
	}
	return strings.TrimSpace(expanded)
}

// choose resolves trig's output: a true condition short-circuits with its
// reply text; otherwise a weighted random pick is made from the trigger's
// redirect (if any) and replies. ok is false only when the trigger matched
// but produced no candidate text at all, which flushTrigger's
// ProducesOutput check should have already prevented at parse time in
// strict mode.
func (b *Bot) choose(ctx context.Context, env *replyEnv, trig *ast.Trigger) (text string, isRedirect, ok bool) {
	for _, cond := range trig.Conditions {
		left, op, right, reply, valid := parseCondition(cond)
		if !valid {
			continue
		}
		leftExp := tags.Expand(ctx, env, left)
		if leftExp == "" {
			leftExp = "undefined"
		}
		rightExp := tags.Expand(ctx, env, right)
		if rightExp == "" {
			rightExp = "undefined"
		}
		if evalCondition(leftExp, op, rightExp) {
			return reply, false, true
		}
	}

	pool := buildPool(trig)
	if len(pool) == 0 {
		return "", false, false
	}
	choice := pool[rand.Intn(len(pool))]
	return choice.text, choice.isRedirect, true
}

type poolEntry struct {
	text       string
	isRedirect bool
}

var rePoolWeight = regexp.MustCompile(`\{weight=(-?\d+)\}`)

// buildPool expands a trigger's redirect and replies into a flat selection
// pool, repeating any entry carrying an inline {weight=N} tag N times (spec
// §4.5 step 7). The weight tag itself is left in the text; tag expansion
// strips it afterward, same as it does inside trigger patterns.
func buildPool(trig *ast.Trigger) []poolEntry {
	var pool []poolEntry
	add := func(text string, isRedirect bool) {
		k := 1
		if m := rePoolWeight.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 1 {
				k = n
			}
		}
		for i := 0; i < k; i++ {
			pool = append(pool, poolEntry{text: text, isRedirect: isRedirect})
		}
	}
	if trig.HasRedirect {
		add(trig.Redirect, true)
	}
	for _, r := range trig.Replies {
		add(r, false)
	}
	return pool
}

// matchMessage runs spec §4.5 steps 2-5: normalize the message, try
// %Previous resolution first when allowPrevious (iterating the thats
// buffer in priority order, trying every trigger sharing a previous
// pattern that matches before moving to the next distinct previous
// pattern), then fall back to the plain topic buffer.
func (b *Bot) matchMessage(state *session.State, topic, rawMessage string, allowPrevious bool) (*ast.Trigger, []string, []string) {
	normalized := b.normalizeMessage(rawMessage)
	resolver := &patternResolver{bot: b, state: state}

	if allowPrevious {
		lastReply := b.normalizeMessage(state.Reply.At(0))
		for _, entry := range b.buf.Thats[topic] {
			prevRe, err := regexc.Compile(entry.Pattern, b.brain.Array, resolver, b.opts)
			if err != nil {
				b.logger.Printf("rivescript: match: compile previous pattern %q: %v", entry.Pattern, err)
				continue
			}
			bsMatch := prevRe.FindStringSubmatch(lastReply)
			if bsMatch == nil {
				continue
			}
			trigRe, err := regexc.Compile(entry.Trigger.Pattern, b.brain.Array, resolver, b.opts)
			if err != nil {
				b.logger.Printf("rivescript: match: compile trigger pattern %q: %v", entry.Trigger.Pattern, err)
				continue
			}
			if m := trigRe.FindStringSubmatch(normalized); m != nil {
				return entry.Trigger, m[1:], bsMatch[1:]
			}
		}
	}

	for _, entry := range b.buf.Topics[topic] {
		re, err := regexc.Compile(entry.Trigger.Pattern, b.brain.Array, resolver, b.opts)
		if err != nil {
			b.logger.Printf("rivescript: match: compile trigger pattern %q: %v", entry.Trigger.Pattern, err)
			continue
		}
		if m := re.FindStringSubmatch(normalized); m != nil {
			return entry.Trigger, m[1:], nil
		}
	}
	return nil, nil, nil
}

// String gives a Bot a useful %v/println representation for diagnostics,
// without exposing any of its internals directly.
func (b *Bot) String() string {
	return fmt.Sprintf("rivescript.Bot{topics=%d}", len(b.brain.Topics))
}
