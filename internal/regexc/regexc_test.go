package regexc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivebot/rivescript/internal/rsopts"
)

type fakeResolver struct {
	bot     map[string]string
	session map[string]string
	history map[string]string
}

func (f *fakeResolver) BotVar(name string) (string, bool) {
	v, ok := f.bot[name]
	return v, ok
}

func (f *fakeResolver) SessionVar(name string) (string, bool) {
	v, ok := f.session[name]
	return v, ok
}

func (f *fakeResolver) History(kind string, n int) (string, bool) {
	v, ok := f.history[kind]
	return v, ok
}

func emptyResolver() *fakeResolver {
	return &fakeResolver{bot: map[string]string{}, session: map[string]string{}, history: map[string]string{}}
}

func Test_Compile_BareStarMatchesEmptyString(t *testing.T) {
	re, err := Compile("*", nil, emptyResolver(), rsopts.Default())
	require.NoError(t, err)
	assert.True(t, re.MatchString(""))
	assert.True(t, re.MatchString("anything at all"))
}

func Test_Compile_NonBareStarRequiresAtLeastOneCharacter(t *testing.T) {
	re, err := Compile("hello *", nil, emptyResolver(), rsopts.Default())
	require.NoError(t, err)
	assert.False(t, re.MatchString("hello "))
	assert.True(t, re.MatchString("hello there"))
}

func Test_Compile_PoundMatchesDigitsOnly(t *testing.T) {
	re, err := Compile("i am # years old", nil, emptyResolver(), rsopts.Default())
	require.NoError(t, err)
	assert.True(t, re.MatchString("i am 42 years old"))
	assert.False(t, re.MatchString("i am old years old"))
}

func Test_Compile_UnderscoreMatchesLettersOnly(t *testing.T) {
	re, err := Compile("my name is _", nil, emptyResolver(), rsopts.Default())
	require.NoError(t, err)
	assert.True(t, re.MatchString("my name is bob"))
	assert.False(t, re.MatchString("my name is 123"))
}

func Test_Compile_EscapedUnderscoreIsLiteral(t *testing.T) {
	re, err := Compile(`look\_here`, nil, emptyResolver(), rsopts.Default())
	require.NoError(t, err)
	assert.True(t, re.MatchString("look_here"))
}

func Test_Compile_WeightTagRemoved(t *testing.T) {
	re, err := Compile("something{weight=100}", nil, emptyResolver(), rsopts.Default())
	require.NoError(t, err)
	assert.True(t, re.MatchString("something"))
}

func Test_Compile_OptionalBracket(t *testing.T) {
	re, err := Compile("what is [the] weather", nil, emptyResolver(), rsopts.Default())
	require.NoError(t, err)
	assert.True(t, re.MatchString("what is the weather"))
	assert.True(t, re.MatchString("what is weather"))
}

func Test_Compile_OptionalBracketWithAlternatives(t *testing.T) {
	re, err := Compile("hi [there|friend]", nil, emptyResolver(), rsopts.Default())
	require.NoError(t, err)
	assert.True(t, re.MatchString("hi there"))
	assert.True(t, re.MatchString("hi friend"))
	assert.True(t, re.MatchString("hi"))
}

func Test_Compile_ArrayReferenceExpandsToAlternation(t *testing.T) {
	arrays := map[string][]string{"greek": {"alpha", "beta", "gamma"}}
	re, err := Compile("pick @greek", arrays, emptyResolver(), rsopts.Default())
	require.NoError(t, err)
	assert.True(t, re.MatchString("pick alpha"))
	assert.True(t, re.MatchString("pick beta"))
	assert.False(t, re.MatchString("pick delta"))
}

func Test_Compile_UnknownArrayReferenceDeletes(t *testing.T) {
	re, err := Compile("pick @unknown", nil, emptyResolver(), rsopts.Default())
	require.NoError(t, err)
	assert.True(t, re.MatchString("pick "))
}

func Test_Compile_BotTagResolvesBotVariable(t *testing.T) {
	r := emptyResolver()
	r.bot["name"] = "Rive"
	re, err := Compile("my name is <bot name>", nil, r, rsopts.Default())
	require.NoError(t, err)
	assert.True(t, re.MatchString("my name is rive"))
}

func Test_Compile_BotTagUnsetResolvesToUndefined(t *testing.T) {
	re, err := Compile("my name is <bot name>", nil, emptyResolver(), rsopts.Default())
	require.NoError(t, err)
	assert.True(t, re.MatchString("my name is undefined"))
}

func Test_Compile_GetTagResolvesSessionVariable(t *testing.T) {
	r := emptyResolver()
	r.session["mood"] = "Happy"
	re, err := Compile("i feel <get mood>", nil, r, rsopts.Default())
	require.NoError(t, err)
	assert.True(t, re.MatchString("i feel happy"))
}

func Test_Compile_InputReplyHistoryTags(t *testing.T) {
	r := emptyResolver()
	r.history["input"] = "Hello"
	re, err := Compile("<input>", nil, r, rsopts.Default())
	require.NoError(t, err)
	assert.True(t, re.MatchString("hello"))
}

func Test_Compile_UnrecognizedAngleTagIsLiteral(t *testing.T) {
	re, err := Compile("<notatag>", nil, emptyResolver(), rsopts.Default())
	require.NoError(t, err)
	assert.True(t, re.MatchString("<notatag>"))
}

func Test_Compile_AnchorsWholeString(t *testing.T) {
	re, err := Compile("hello", nil, emptyResolver(), rsopts.Default())
	require.NoError(t, err)
	assert.False(t, re.MatchString("say hello"))
	assert.True(t, re.MatchString("hello"))
}

func Test_Compile_UTF8ModeUsesScriptAwareLetterClass(t *testing.T) {
	opts := rsopts.Default()
	opts.UTF8 = true
	re, err := Compile("bonjour _", nil, emptyResolver(), opts)
	require.NoError(t, err)
	assert.True(t, re.MatchString("bonjour françois"))
}
