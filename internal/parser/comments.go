package parser

import "strings"

// commentStripper removes `//` line comments and `/* ... */` block comments
// (which may span multiple raw lines) from a stream of raw lines fed to it
// one at a time. It is not used inside `> object` ... `< object` bodies,
// whose contents are handed to the macro language verbatim.
type commentStripper struct {
	inBlock bool
}

// Process strips comment bytes from a single raw line, honoring block
// comment state left over from previous lines.
func (cs *commentStripper) Process(raw string) string {
	if cs.inBlock {
		if idx := strings.Index(raw, "*/"); idx >= 0 {
			raw = raw[idx+2:]
			cs.inBlock = false
		} else {
			return ""
		}
	}

	for {
		start := strings.Index(raw, "/*")
		if start < 0 {
			break
		}
		end := strings.Index(raw[start:], "*/")
		if end < 0 {
			raw = raw[:start]
			cs.inBlock = true
			break
		}
		raw = raw[:start] + raw[start+end+2:]
	}

	trimmed := strings.TrimSpace(raw)
	if !cs.inBlock && strings.HasPrefix(trimmed, "//") {
		return ""
	}
	return trimmed
}
