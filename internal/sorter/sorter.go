// Package sorter implements the trigger-ordering algorithm that the matcher
// depends on: given a brain's topic graph (with includes/inherits
// relationships), it produces, for every topic, a normal-trigger sort buffer
// and a %Previous sort buffer, plus sorted substitution/person key lists.
// This order is a contract, not an implementation detail (spec §4.3), so
// nothing here is approximate: every tie-break rule in the spec is encoded
// explicitly. The recursive, depth-bounded graph walk used to build a
// topic's closure is grounded on the teacher engine's
// internal/game/pathfinding.go, which walks a room graph under the same
// kind of depth cap, repurposed here for weight/inheritance/kind bucketing
// instead of shortest paths.
package sorter

import (
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rivebot/rivescript/ast"
	"github.com/rivebot/rivescript/internal/brain"
)

// SortedEntry pairs a trigger's pattern text with the trigger it came from,
// as produced by the sorter for consumption by the matcher.
type SortedEntry struct {
	Pattern string
	Trigger *ast.Trigger
}

// SortBuffer holds the sorter's output: per-topic ordered trigger lists
// (split into the mainline and %Previous buffers) and sorted substitution
// key lists.
type SortBuffer struct {
	Topics map[string][]SortedEntry
	Thats  map[string][]SortedEntry
	Sub    []string
	Person []string
}

var weightTagRe = regexp.MustCompile(`\{weight=(-?\d+)\}`)

// Sort rebuilds a SortBuffer from scratch from the given brain. It is
// idempotent: calling it twice without an intervening Brain mutation
// produces identical output, since it derives everything from Brain state
// and does not retain data across calls.
func Sort(b *brain.Brain, depth int, logger *log.Logger) *SortBuffer {
	if logger == nil {
		logger = log.Default()
	}
	s := &sortRun{brain: b, depth: depth, logger: logger}

	buf := &SortBuffer{
		Topics: map[string][]SortedEntry{},
		Thats:  map[string][]SortedEntry{},
	}
	for name := range b.Topics {
		banded := s.closure(name, 0, depth, map[string]bool{})
		buf.Topics[name] = sortBand(filterPrevious(banded, false), patternOfTrigger)
		// The thats buffer is matched in a different phase than the main
		// buffer: spec §4.5 step 3 walks %Previous patterns, in priority
		// order, against the bot's own last reply. So this pass sorts and
		// keys on trig.Previous rather than trig.Pattern; the trigger
		// pointer still carries the real pattern for the second half of
		// that match.
		buf.Thats[name] = sortBand(filterPrevious(banded, true), patternOfPrevious)
	}
	buf.Sub = sortKeys(b.Sub)
	buf.Person = sortKeys(b.Person)
	return buf
}

type bandedTrigger struct {
	trig *ast.Trigger
	band int
}

type sortRun struct {
	brain  *brain.Brain
	depth  int
	logger *log.Logger
}

// closure walks topic's includes/inherits graph, collecting every trigger
// reachable from it. includes contributes at the same band as the calling
// topic; inherits contributes at band+1 (strictly lower priority). path
// guards against cycles in the includes/inherits graph; depthLeft bounds
// the walk independently of cycle detection, per spec §4.3's "Recursion
// terminates at depth" rule.
//
// Go maps do not preserve insertion order, and ast.Topic stores
// includes/inherits as sets rather than ordered slices, so there is no
// source-order information left to walk in. This implementation visits
// both relations in sorted topic-name order, which keeps the output
// deterministic across runs.
func (s *sortRun) closure(topicName string, band, depthLeft int, path map[string]bool) []bandedTrigger {
	t, ok := s.brain.Topic(topicName)
	if !ok || path[topicName] {
		return nil
	}
	path[topicName] = true
	defer delete(path, topicName)

	out := make([]bandedTrigger, 0, len(t.Triggers))
	for _, trig := range t.Triggers {
		out = append(out, bandedTrigger{trig: trig, band: band})
	}

	if depthLeft <= 0 {
		if len(t.Includes) > 0 || len(t.Inherits) > 0 {
			s.logger.Printf("rivescript: sorter: topic %q: inheritance depth limit reached, returning partial closure", topicName)
		}
		return out
	}

	for _, inc := range sortedSetKeys(t.Includes) {
		out = append(out, s.closure(inc, band, depthLeft-1, path)...)
	}
	for _, inh := range sortedSetKeys(t.Inherits) {
		out = append(out, s.closure(inh, band+1, depthLeft-1, path)...)
	}
	return out
}

func sortedSetKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func filterPrevious(in []bandedTrigger, wantPrevious bool) []bandedTrigger {
	out := make([]bandedTrigger, 0, len(in))
	for _, bt := range in {
		if bt.trig.HasPrevious == wantPrevious {
			out = append(out, bt)
		}
	}
	return out
}

// patternOf extracts the pattern text a SortedEntry should carry and be
// ordered by.
type patternOf func(*ast.Trigger) string

func patternOfTrigger(t *ast.Trigger) string  { return t.Pattern }
func patternOfPrevious(t *ast.Trigger) string { return t.Previous }

// sortBand applies the full weight/band/kind/word-count/length ordering
// described in spec §4.3 to a flat slice of banded triggers, then dedupes
// consecutive-by-pattern duplicates in the solo-wildcard buckets. of
// selects which of the trigger's two pattern strings is being ordered.
func sortBand(in []bandedTrigger, of patternOf) []SortedEntry {
	byWeight := map[int][]bandedTrigger{}
	for _, bt := range in {
		w := weightOf(bt.trig.Pattern)
		byWeight[w] = append(byWeight[w], bt)
	}
	weights := make([]int, 0, len(byWeight))
	for w := range byWeight {
		weights = append(weights, w)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(weights)))

	var out []SortedEntry
	for _, w := range weights {
		byBand := map[int][]bandedTrigger{}
		for _, bt := range byWeight[w] {
			byBand[bt.band] = append(byBand[bt.band], bt)
		}
		bands := make([]int, 0, len(byBand))
		for bandN := range byBand {
			bands = append(bands, bandN)
		}
		sort.Ints(bands)

		for _, bandN := range bands {
			out = append(out, sortKinds(byBand[bandN], of)...)
		}
	}
	return out
}

// kind classification order, first match wins, per spec §4.3. Solo-wildcard
// patterns bypass word-count sorting entirely and are emitted last.
const (
	kindAtomic = iota
	kindOption
	kindAlpha
	kindNumber
	kindWild
	kindUnder
	kindPound
	kindStar
)

func classify(pattern string) int {
	trimmed := strings.TrimSpace(pattern)
	switch trimmed {
	case "_":
		return kindUnder
	case "#":
		return kindPound
	case "*":
		return kindStar
	}
	switch {
	case strings.Contains(pattern, "_"):
		return kindAlpha
	case strings.Contains(pattern, "#"):
		return kindNumber
	case strings.Contains(pattern, "*"):
		return kindWild
	case strings.Contains(pattern, "["):
		return kindOption
	default:
		return kindAtomic
	}
}

func sortKinds(bts []bandedTrigger, of patternOf) []SortedEntry {
	buckets := make([][]bandedTrigger, kindStar+1)
	for _, bt := range bts {
		k := classify(of(bt.trig))
		buckets[k] = append(buckets[k], bt)
	}

	emissionOrder := []int{kindAtomic, kindOption, kindAlpha, kindNumber, kindWild, kindUnder, kindPound, kindStar}

	var out []SortedEntry
	for _, k := range emissionOrder {
		bucket := buckets[k]
		if k == kindUnder || k == kindPound || k == kindStar {
			out = append(out, sortSolo(bucket, of)...)
			continue
		}
		sort.SliceStable(bucket, func(i, j int) bool {
			wi, wj := wordCount(of(bucket[i].trig)), wordCount(of(bucket[j].trig))
			if wi != wj {
				return wi > wj
			}
			li, lj := len(of(bucket[i].trig)), len(of(bucket[j].trig))
			return li > lj
		})
		for _, bt := range bucket {
			out = append(out, SortedEntry{Pattern: of(bt.trig), Trigger: bt.trig})
		}
	}
	return out
}

// sortSolo orders the solo-wildcard buckets by length descending, collapsing
// duplicate patterns (spec §4.3: "duplicates by pattern are collapsed").
func sortSolo(bts []bandedTrigger, of patternOf) []SortedEntry {
	sort.SliceStable(bts, func(i, j int) bool {
		return len(of(bts[i].trig)) > len(of(bts[j].trig))
	})
	seen := map[string]bool{}
	var out []SortedEntry
	for _, bt := range bts {
		p := of(bt.trig)
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, SortedEntry{Pattern: p, Trigger: bt.trig})
	}
	return out
}

func weightOf(pattern string) int {
	m := weightTagRe.FindStringSubmatch(pattern)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

var excludedWordTokens = map[string]bool{
	"*": true, "#": true, "_": true, "|": true, "[": true,
}

func wordCount(pattern string) int {
	n := 0
	for _, tok := range strings.Fields(pattern) {
		if !excludedWordTokens[tok] {
			n++
		}
	}
	return n
}

func sortKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		wi, wj := len(strings.Fields(keys[i])), len(strings.Fields(keys[j]))
		if wi != wj {
			return wi > wj
		}
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}
