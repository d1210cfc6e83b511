package rivescript

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivebot/rivescript/internal/rsopts"
)

func newTestBot(t *testing.T, opts rsopts.Options, source string) *Bot {
	t.Helper()
	bot := New(opts, nil)
	require.NoError(t, bot.LoadString("test.rive", source))
	bot.SortReplies()
	return bot
}

// Test_Reply_Greeting covers spec §8 scenario 1.
func Test_Reply_Greeting(t *testing.T) {
	bot := newTestBot(t, rsopts.Default(), "+ hello bot\n- Hello, human!\n")
	assert.Equal(t, "Hello, human!", bot.Reply("u", "Hello bot!"))
}

// Test_Reply_WeightedSelection covers spec §8 scenario 2: the higher-weight,
// more-specific trigger sorts ahead of the unweighted one, so it always wins
// even before random choice ever applies.
func Test_Reply_WeightedSelection(t *testing.T) {
	bot := newTestBot(t, rsopts.Default(),
		"+ something{weight=100}\n"+
			"- Weighted\n"+
			"+ something\n"+
			"- Unweighted\n")
	assert.Equal(t, "Weighted", bot.Reply("u", "something"))
}

// Test_Reply_KnockKnockWithPrevious covers spec §8 scenario 3.
func Test_Reply_KnockKnockWithPrevious(t *testing.T) {
	bot := newTestBot(t, rsopts.Default(),
		"+ knock knock\n"+
			"- Who's there?\n"+
			"+ *\n"+
			"% who is there\n"+
			"- <sentence> who?\n"+
			"+ *\n"+
			"% * who\n"+
			"- Haha! <sentence>!\n")

	assert.Equal(t, "Who's there?", bot.Reply("u", "knock knock"))
	assert.Equal(t, "Canoe who?", bot.Reply("u", "Canoe"))
	assert.Equal(t, "Haha! Canoe help me!", bot.Reply("u", "Canoe help me"))
}

// Test_Reply_ArrayInReply covers spec §8 scenario 4.
func Test_Reply_ArrayInReply(t *testing.T) {
	bot := newTestBot(t, rsopts.Default(),
		"! array greek = alpha beta gamma\n"+
			"+ pick one\n"+
			"- Chose (@greek).\n")
	assert.Regexp(t, `^Chose (alpha|beta|gamma)\.$`, bot.Reply("u", "pick one"))
}

// Test_Reply_Condition covers spec §8 scenario 5.
func Test_Reply_Condition(t *testing.T) {
	bot := newTestBot(t, rsopts.Default(),
		"+ how am i\n"+
			"* <get mood> eq happy => You are happy!\n"+
			"- I don't know.\n")

	assert.Equal(t, "I don't know.", bot.Reply("u", "how am i"))

	bot.SetUservar("u", "mood", "happy")
	assert.Equal(t, "You are happy!", bot.Reply("u", "how am i"))
}

// Test_Reply_RedirectRecursionBound covers spec §8 scenario 6.
func Test_Reply_RedirectRecursionBound(t *testing.T) {
	opts := rsopts.Default()
	opts.Depth = 5
	bot := newTestBot(t, opts, "+ loop\n@ loop\n")
	assert.Equal(t, "ERR: Deep Recursion Detected!", bot.Reply("u", "loop"))
}

func Test_Reply_NoTriggerMatchedReturnsEngineError(t *testing.T) {
	bot := newTestBot(t, rsopts.Default(), "+ hello\n- hi\n")
	assert.Equal(t, rsopts.ErrNoReplyMatched, bot.Reply("u", "something totally unrelated"))
}

func Test_Reply_ErrorOverridesAreApplied(t *testing.T) {
	opts := rsopts.Default()
	opts.ErrorOverrides = map[string]string{rsopts.ErrNoReplyMatched: "Sorry, I don't understand."}
	bot := newTestBot(t, opts, "+ hello\n- hi\n")
	assert.Equal(t, "Sorry, I don't understand.", bot.Reply("u", "gibberish"))
}

func Test_Reply_BeginBlockWrapsRealReply(t *testing.T) {
	bot := newTestBot(t, rsopts.Default(),
		"> begin\n"+
			"+ request\n"+
			"- Hi! {ok}\n"+
			"< begin\n"+
			"+ hello\n"+
			"- world\n")
	assert.Equal(t, "Hi! world", bot.Reply("u", "hello"))
}

func Test_Reply_BeginBlockWithoutOkReplacesEntireTurn(t *testing.T) {
	bot := newTestBot(t, rsopts.Default(),
		"> begin\n"+
			"+ request\n"+
			"- Bot is offline.\n"+
			"< begin\n"+
			"+ hello\n"+
			"- world\n")
	assert.Equal(t, "Bot is offline.", bot.Reply("u", "hello"))
}

func Test_Reply_TopicSwitchAffectsSubsequentTurns(t *testing.T) {
	bot := newTestBot(t, rsopts.Default(),
		"+ talk about weather\n"+
			"- Sure. {topic=weather}\n"+
			"> topic weather\n"+
			"+ how is it\n"+
			"- Sunny!\n"+
			"< topic\n")
	assert.Equal(t, "Sure.", bot.Reply("u", "talk about weather"))
	assert.Equal(t, "Sunny!", bot.Reply("u", "how is it"))
}

func Test_Reply_HistoryTagsReferenceEarlierTurns(t *testing.T) {
	bot := newTestBot(t, rsopts.Default(),
		"+ hello\n"+
			"- hi there\n"+
			"+ what did you say\n"+
			"- I said: <reply1>\n")
	bot.Reply("u", "hello")
	assert.Equal(t, "I said: hi there", bot.Reply("u", "what did you say"))
}

func Test_Reply_SubstitutionsApplyBeforeMatching(t *testing.T) {
	bot := newTestBot(t, rsopts.Default(),
		"! sub whats up = what is up\n"+
			"+ what is up\n"+
			"- Not much!\n")
	assert.Equal(t, "Not much!", bot.Reply("u", "whats up"))
}

func Test_Reply_ConditionEmptyOperandDefaultsToUndefined(t *testing.T) {
	bot := newTestBot(t, rsopts.Default(),
		"+ check mood\n"+
			"* <get mood> eq undefined => No mood set.\n"+
			"- Something else.\n")
	bot.SetUservar("u", "mood", "")
	assert.Equal(t, "No mood set.", bot.Reply("u", "check mood"))
}

func Test_Reply_IncludesAndInheritsAffectTopicClosure(t *testing.T) {
	bot := newTestBot(t, rsopts.Default(),
		"> topic alpha includes common inherits fallback\n"+
			"+ alpha thing\n"+
			"- alpha reply\n"+
			"< topic\n"+
			"> topic common\n"+
			"+ shared thing\n"+
			"- shared reply\n"+
			"< topic\n"+
			"> topic fallback\n"+
			"+ *\n"+
			"- fallback reply\n"+
			"< topic\n")
	bot.SetUservar("u", "topic", "alpha")
	assert.Equal(t, "alpha reply", bot.Reply("u", "alpha thing"))
	assert.Equal(t, "shared reply", bot.Reply("u", "shared thing"))
	assert.Equal(t, "fallback reply", bot.Reply("u", "anything else at all"))
}

type echoMacroHandler struct{}

func (echoMacroHandler) Load(name string, codeLines []string) bool { return true }

func (echoMacroHandler) Call(ctx context.Context, name string, args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

func Test_Reply_CallDispatchesToRegisteredMacroHandler(t *testing.T) {
	bot := New(rsopts.Default(), nil)
	bot.RegisterMacroHandler("echo", echoMacroHandler{})
	require.NoError(t, bot.LoadString("macro.rive", ""+
		"> object shout echo\n"+
		"ignored\n"+
		"< object\n"+
		"+ say *\n"+
		"- <call>shout <star>world</call>\n"))
	bot.SortReplies()
	// <star> inside the call args is unexpanded when the macro runs, but
	// the macro's echoed output still goes through the next tag pass.
	assert.Equal(t, "hiworld", bot.Reply("u", "say hi"))
}

func Test_Reply_UnregisteredMacroLanguageIsNotCallable(t *testing.T) {
	bot := newTestBot(t, rsopts.Default(),
		"> object shout nosuchlang\n"+
			"ignored\n"+
			"< object\n"+
			"+ say hi\n"+
			"- <call>shout hi</call>\n")
	assert.Equal(t, "[ERR: Object Not Found]", bot.Reply("u", "say hi"))
}

func Test_Reply_SessionsAreIndependentAcrossUsers(t *testing.T) {
	bot := newTestBot(t, rsopts.Default(),
		"+ how am i\n"+
			"* <get mood> eq happy => You are happy!\n"+
			"- I don't know.\n")

	bot.SetUservar("alice", "mood", "happy")

	assert.Equal(t, "You are happy!", bot.Reply("alice", "how am i"))
	assert.Equal(t, "I don't know.", bot.Reply("bob", "how am i"))
}

func Test_FreezeAndThawUservars(t *testing.T) {
	bot := New(rsopts.Default(), nil)
	bot.SetUservar("u", "mood", "happy")
	require.NoError(t, bot.FreezeUservars("u"))

	bot.SetUservar("u", "mood", "grumpy")
	require.NoError(t, bot.ThawUservars("u", 0))

	v, ok := bot.GetUservar("u", "mood")
	require.True(t, ok)
	assert.Equal(t, "happy", v)
}

func Test_Reset_ClearsPreviouslyLoadedTriggers(t *testing.T) {
	bot := newTestBot(t, rsopts.Default(), "+ hello\n- hi\n")
	assert.Equal(t, "hi", bot.Reply("u", "hello"))

	bot.Reset()
	bot.SortReplies()
	assert.Equal(t, rsopts.ErrNoReplyMatched, bot.Reply("u", "hello"))
}
