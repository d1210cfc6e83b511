// Package macro defines the dispatch contract for object macros: named
// procedures written in some host language and invoked from a reply via
// <call>. The core never interprets a host language itself; it only loads
// and calls through whatever Handler a caller has registered, the same
// separation the teacher engine draws between TunaQuest and the embedded
// TunaScript language it hands off to (internal/game/scriptbackend.go).
package macro

import "context"

// Handler is the contract an embedded scripting language implements to
// become callable as an object macro. Load is invoked once per object block
// encountered during brain ingestion; Call is invoked once per <call> tag
// during reply expansion.
type Handler interface {
	// Load registers the named macro's source lines. It returns false to
	// decline the block (for example, a handler that only accepts code
	// matching a language version it understands); a false return means the
	// object is not indexed and a warning is emitted by the caller.
	Load(name string, codeLines []string) bool

	// Call invokes the named macro with the given arguments and returns its
	// result. ctx carries the calling user's id (see UserFromContext) so
	// that a handler can observe which session triggered the call without a
	// process-wide singleton. Errors are reported as part of the returned
	// string, prefixed "[ERR:", per spec §7.
	Call(ctx context.Context, name string, args []string) string
}

type contextKey int

const userContextKey contextKey = 0

// WithUser returns a context carrying the given user id, scoped to a single
// reply invocation, so that macro handlers invoked via <call> can observe
// which user triggered the call.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the user id set by WithUser, if any.
func UserFromContext(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(userContextKey).(string)
	return u, ok
}

// Registry maps object-macro language names to the Handler that implements
// them, plus the language each loaded macro name was registered under.
type Registry struct {
	handlers  map[string]Handler
	languages map[string]string
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers:  map[string]Handler{},
		languages: map[string]string{},
	}
}

// RegisterHandler associates a host-language name (as it appears after the
// macro name in `> object NAME LANG`) with the Handler that implements it.
func (r *Registry) RegisterHandler(language string, h Handler) {
	r.handlers[language] = h
}

// Handler returns the handler registered for language, if any.
func (r *Registry) Handler(language string) (Handler, bool) {
	h, ok := r.handlers[language]
	return h, ok
}

// Load dispatches an object block to the handler registered for its
// language. It returns false (without calling anything) if no handler is
// registered for that language. On a true return from the handler, name is
// recorded as implemented in that language for later Call dispatch.
func (r *Registry) Load(name, language string, codeLines []string) bool {
	h, ok := r.handlers[language]
	if !ok {
		return false
	}
	if !h.Load(name, codeLines) {
		return false
	}
	r.languages[name] = language
	return true
}

// Language reports which language a previously loaded macro name was
// registered under.
func (r *Registry) Language(name string) (string, bool) {
	lang, ok := r.languages[name]
	return lang, ok
}

// Call dispatches to the handler for the language that name was loaded
// under. If name was never loaded (or its handler has since been
// unregistered), it returns the spec §7 object-not-found error text.
func (r *Registry) Call(ctx context.Context, name string, args []string) string {
	lang, ok := r.languages[name]
	if !ok {
		return "[ERR: Object Not Found]"
	}
	h, ok := r.handlers[lang]
	if !ok {
		return "[ERR: Object Not Found]"
	}
	return h.Call(ctx, name, args)
}
