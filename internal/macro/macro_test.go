package macro

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingHandler struct {
	loaded  map[string][]string
	accept  bool
	lastCtx context.Context
	result  string
}

func (h *recordingHandler) Load(name string, codeLines []string) bool {
	if h.loaded == nil {
		h.loaded = map[string][]string{}
	}
	h.loaded[name] = codeLines
	return h.accept
}

func (h *recordingHandler) Call(ctx context.Context, name string, args []string) string {
	h.lastCtx = ctx
	return h.result
}

func Test_WithUserAndUserFromContext(t *testing.T) {
	ctx := WithUser(context.Background(), "alice")
	user, ok := UserFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "alice", user)
}

func Test_UserFromContext_MissingReturnsFalse(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)
}

func Test_Registry_LoadRegistersLanguageOnAccept(t *testing.T) {
	r := NewRegistry()
	h := &recordingHandler{accept: true}
	r.RegisterHandler("js", h)

	ok := r.Load("greet", "js", []string{"return 'hi'"})
	assert.True(t, ok)

	lang, ok := r.Language("greet")
	assert.True(t, ok)
	assert.Equal(t, "js", lang)
	assert.Equal(t, []string{"return 'hi'"}, h.loaded["greet"])
}

func Test_Registry_LoadDoesNotRegisterOnDecline(t *testing.T) {
	r := NewRegistry()
	h := &recordingHandler{accept: false}
	r.RegisterHandler("js", h)

	ok := r.Load("greet", "js", []string{"garbage"})
	assert.False(t, ok)

	_, ok = r.Language("greet")
	assert.False(t, ok)
}

func Test_Registry_LoadWithUnknownLanguageFails(t *testing.T) {
	r := NewRegistry()
	ok := r.Load("greet", "nosuchlang", nil)
	assert.False(t, ok)
}

func Test_Registry_CallDispatchesToLoadedHandler(t *testing.T) {
	r := NewRegistry()
	h := &recordingHandler{accept: true, result: "4"}
	r.RegisterHandler("js", h)
	r.Load("add", "js", nil)

	out := r.Call(WithUser(context.Background(), "bob"), "add", []string{"2", "2"})
	assert.Equal(t, "4", out)

	user, ok := UserFromContext(h.lastCtx)
	assert.True(t, ok)
	assert.Equal(t, "bob", user)
}

func Test_Registry_CallUnknownNameReturnsObjectNotFound(t *testing.T) {
	r := NewRegistry()
	out := r.Call(context.Background(), "nosuch", nil)
	assert.Equal(t, "[ERR: Object Not Found]", out)
}

func Test_Registry_CallWithUnregisteredLanguageReturnsObjectNotFound(t *testing.T) {
	r := NewRegistry()
	h := &recordingHandler{accept: true}
	r.RegisterHandler("js", h)
	r.Load("greet", "js", nil)
	delete(r.handlers, "js")

	out := r.Call(context.Background(), "greet", nil)
	assert.Equal(t, "[ERR: Object Not Found]", out)
}

func Test_Registry_HandlerLookup(t *testing.T) {
	r := NewRegistry()
	h := &recordingHandler{accept: true}
	r.RegisterHandler("js", h)

	got, ok := r.Handler("js")
	assert.True(t, ok)
	assert.Same(t, h, got)

	_, ok = r.Handler("nope")
	assert.False(t, ok)
}
