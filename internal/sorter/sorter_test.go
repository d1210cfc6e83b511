package sorter

import (
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivebot/rivescript/internal/brain"
	"github.com/rivebot/rivescript/internal/macro"
	"github.com/rivebot/rivescript/internal/parser"
	"github.com/rivebot/rivescript/internal/rsopts"
)

func buildBrain(t *testing.T, sources map[string]string) *brain.Brain {
	t.Helper()
	b := brain.New(macro.NewRegistry(), log.Default())
	opts := rsopts.Default()
	for name, src := range sources {
		lines := splitLines(src)
		root, warnings, err := parser.Parse(name, lines, opts)
		require.NoError(t, err)
		require.Empty(t, warnings)
		b.Merge(root)
	}
	return b
}

func splitLines(src string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			lines = append(lines, src[start:i])
			start = i + 1
		}
	}
	lines = append(lines, src[start:])
	return lines
}

func patterns(entries []SortedEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Pattern
	}
	return out
}

func Test_Sort_WeightBucketOrdersHighestFirst(t *testing.T) {
	b := buildBrain(t, map[string]string{
		"w.rive": "+ something{weight=100}\n" +
			"- Weighted\n" +
			"+ something\n" +
			"- Unweighted\n",
	})
	buf := Sort(b, 50, log.Default())
	assert.Equal(t, []string{"something{weight=100}", "something"}, patterns(buf.Topics["random"]))
}

func Test_Sort_InheritsBandIsStrictlyLowerPriority(t *testing.T) {
	b := buildBrain(t, map[string]string{
		"inherit.rive": "> topic alpha inherits beta\n" +
			"+ alpha trigger\n" +
			"- alpha reply\n" +
			"< topic\n" +
			"> topic beta\n" +
			"+ beta trigger\n" +
			"- beta reply\n" +
			"< topic\n",
	})
	buf := Sort(b, 50, log.Default())
	assert.Equal(t, []string{"alpha trigger", "beta trigger"}, patterns(buf.Topics["alpha"]))
}

func Test_Sort_IncludesAreEqualPriority(t *testing.T) {
	b := buildBrain(t, map[string]string{
		"include.rive": "> topic alpha includes beta\n" +
			"+ aaa bbb ccc\n" +
			"- alpha reply\n" +
			"< topic\n" +
			"> topic beta\n" +
			"+ xxx yyy\n" +
			"- beta reply\n" +
			"< topic\n",
	})
	buf := Sort(b, 50, log.Default())
	// same band (0): word-count-descending puts the 3-word trigger first
	// regardless of which topic contributed it.
	assert.Equal(t, []string{"aaa bbb ccc", "xxx yyy"}, patterns(buf.Topics["alpha"]))
}

func Test_Sort_KindEmissionOrder(t *testing.T) {
	b := buildBrain(t, map[string]string{
		"kinds.rive": "+ atomic words here\n" +
			"- a\n" +
			"+ option [word]\n" +
			"- o\n" +
			"+ alpha _\n" +
			"- al\n" +
			"+ number #\n" +
			"- n\n" +
			"+ wild *\n" +
			"- w\n" +
			"+ _\n" +
			"- solo alpha\n" +
			"+ #\n" +
			"- solo number\n" +
			"+ *\n" +
			"- solo star\n",
	})
	buf := Sort(b, 50, log.Default())
	assert.Equal(t, []string{
		"atomic words here",
		"option [word]",
		"alpha _",
		"number #",
		"wild *",
		"_",
		"#",
		"*",
	}, patterns(buf.Topics["random"]))
}

func Test_Sort_WordCountThenLengthDescending(t *testing.T) {
	b := buildBrain(t, map[string]string{
		"wc.rive": "+ short one\n" +
			"- a\n" +
			"+ a much longer three word trigger\n" +
			"- b\n" +
			"+ another three word one\n" +
			"- c\n",
	})
	buf := Sort(b, 50, log.Default())
	got := patterns(buf.Topics["random"])
	require.Len(t, got, 3)
	assert.Equal(t, "a much longer three word trigger", got[0])
	assert.Equal(t, "another three word one", got[1])
	assert.Equal(t, "short one", got[2])
}

func Test_Sort_SoloWildcardBucketsCollapseDuplicatesAndSortByLength(t *testing.T) {
	b := buildBrain(t, map[string]string{
		"solo.rive": "+ *\n" +
			"- dup one\n" +
			"+ *\n" +
			"- dup two\n",
	})
	buf := Sort(b, 50, log.Default())
	assert.Len(t, buf.Topics["random"], 1)
}

func Test_Sort_SplitsMainAndThatsBuffers(t *testing.T) {
	b := buildBrain(t, map[string]string{
		"knock.rive": "+ knock knock\n" +
			"- Who's there?\n" +
			"+ *\n" +
			"% who is there\n" +
			"- <sentence> who?\n",
	})
	buf := Sort(b, 50, log.Default())

	mainPatterns := patterns(buf.Topics["random"])
	assert.Contains(t, mainPatterns, "knock knock")
	assert.NotContains(t, mainPatterns, "*")

	require.Len(t, buf.Thats["random"], 1)
	assert.Equal(t, "who is there", buf.Thats["random"][0].Pattern)
	assert.Equal(t, "*", buf.Thats["random"][0].Trigger.Pattern)
}

func Test_Sort_DepthZeroStillPermitsOwnTopicTriggers(t *testing.T) {
	b := buildBrain(t, map[string]string{
		"depth0.rive": "> topic alpha inherits beta\n" +
			"+ alpha trigger\n" +
			"- alpha reply\n" +
			"< topic\n" +
			"> topic beta\n" +
			"+ beta trigger\n" +
			"- beta reply\n" +
			"< topic\n",
	})
	buf := Sort(b, 0, log.Default())
	assert.Equal(t, []string{"alpha trigger"}, patterns(buf.Topics["alpha"]))
}

func Test_Sort_IdempotentAcrossRepeatedCalls(t *testing.T) {
	b := buildBrain(t, map[string]string{
		"idem.rive": "+ hello bot\n" +
			"- hi\n" +
			"+ something{weight=5}\n" +
			"- weighted\n",
	})
	first := Sort(b, 50, log.Default())
	second := Sort(b, 50, log.Default())
	assert.Equal(t, patterns(first.Topics["random"]), patterns(second.Topics["random"]))
}

func Test_Sort_SubAndPersonKeysSortedByWordCountThenLength(t *testing.T) {
	b := buildBrain(t, map[string]string{
		"sub.rive": "! sub whats up = what is up\n" +
			"! sub hi = hello\n" +
			"+ hello\n" +
			"- hi\n",
	})
	buf := Sort(b, 50, log.Default())
	require.Len(t, buf.Sub, 2)
	assert.Equal(t, "whats up", buf.Sub[0])
	assert.Equal(t, "hi", buf.Sub[1])
}
