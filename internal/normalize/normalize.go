// Package normalize implements message normalization: lowercasing,
// longest-first substitution application, and punctuation stripping, as
// described in spec §4.4. ASCII mode keeps the historical RiveScript
// behavior of stripping anything outside [a-z0-9_ ]; UTF-8 mode instead
// keeps any script's letters and digits and strips only a configurable
// punctuation class, using golang.org/x/text for script-aware case folding
// the same way the teacher module reaches for golang.org/x/text/cases and
// golang.org/x/text/runes wherever casing must not assume ASCII.
package normalize

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// asciiKeep matches the characters an ASCII-mode normalized message is
// allowed to retain.
var asciiKeep = regexp.MustCompile(`[^a-z0-9_ ]`)

// IsWordRune reports whether r is a letter or digit in any script, or the
// underscore/space runes the engine always keeps.
func IsWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == ' '
}

// Lower folds case the way the engine's forceCase/runtime normalization
// agreement requires (spec §9): ASCII lower in the default mode, Unicode
// script-aware lower under UTF-8 mode.
func Lower(s string, utf8Mode bool) string {
	if utf8Mode {
		return cases.Lower(language.Und).String(norm.NFC.String(s))
	}
	return strings.ToLower(s)
}

// Message normalizes a raw user message into the form the regex compiler's
// output is matched against: lowercase, substitutions applied left-to-right
// longest-first, then stripped of anything outside the allowed character
// set (spec §4.4).
func Message(raw string, subKeys []string, subTable map[string]string, utf8Mode bool, unicodePunctuation string) string {
	msg := Lower(raw, utf8Mode)
	msg = ApplySubstitutions(msg, subKeys, subTable)
	if utf8Mode {
		msg = stripUTF8(msg, unicodePunctuation)
	} else {
		msg = asciiKeep.ReplaceAllString(msg, "")
	}
	return msg
}

var (
	substCacheMu sync.Mutex
	substCache   = map[string]*regexp.Regexp{}
)

func wordBoundaryRegexp(key string) *regexp.Regexp {
	substCacheMu.Lock()
	defer substCacheMu.Unlock()
	if re, ok := substCache[key]; ok {
		return re
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(key) + `\b`)
	substCache[key] = re
	return re
}

// ApplySubstitutions rewrites message using the given pre-sorted (longest
// first, per spec §4.3) key list and lookup table. It backs both the `sub`
// substitution pass in Message and the {person} tag's person-substitution
// pass, both of which share the "longest match wins, applied in order"
// rule.
func ApplySubstitutions(message string, keys []string, table map[string]string) string {
	for _, k := range keys {
		v, ok := table[k]
		if !ok {
			continue
		}
		message = wordBoundaryRegexp(k).ReplaceAllString(message, v)
	}
	return message
}

// FoldAndStrip lowers and strips s the same way Message does, but skips the
// substitution pass. internal/regexc uses it to resolve <bot>/<get>/
// <input>/<reply> tags that appear inside a trigger pattern itself.
func FoldAndStrip(s string, utf8Mode bool, unicodePunctuation string) string {
	s = Lower(s, utf8Mode)
	if utf8Mode {
		return stripUTF8(s, unicodePunctuation)
	}
	return asciiKeep.ReplaceAllString(s, "")
}

var punctCacheMu sync.Mutex
var punctCache = map[string]*regexp.Regexp{}

// stripUTF8 removes only the configured punctuation class, leaving letters
// and digits from any script (and underscore/space) untouched, per spec
// §4.4's UTF-8 mode carve-out.
func stripUTF8(s, punctuationClass string) string {
	punctCacheMu.Lock()
	re, ok := punctCache[punctuationClass]
	if !ok {
		re = regexp.MustCompile(punctuationClass)
		punctCache[punctuationClass] = re
	}
	punctCacheMu.Unlock()

	return re.ReplaceAllString(s, "")
}
