package rivescript

import (
	"regexp"
	"strconv"
	"strings"
)

// reCondition splits a `*` condition line's "LEFT OP RIGHT" portion (the
// text before "=>") into its three parts. Symbolic operators don't need
// word boundaries; the word operators eq/ne do, so they don't accidentally
// match inside a longer identifier.
var reCondition = regexp.MustCompile(`^(.*?)\s+(==|!=|<>|<=|>=|<|>|\beq\b|\bne\b)\s+(.*)$`)

// parseCondition splits a condition line of the form "LEFT OP RIGHT =>
// REPLY" into its parts. ok is false if the line isn't well-formed (missing
// "=>" or no recognized operator between the sides).
func parseCondition(raw string) (left, op, right, reply string, ok bool) {
	arrow := strings.Index(raw, "=>")
	if arrow < 0 {
		return "", "", "", "", false
	}
	expr := strings.TrimSpace(raw[:arrow])
	reply = strings.TrimSpace(raw[arrow+2:])

	m := reCondition.FindStringSubmatch(expr)
	if m == nil {
		return "", "", "", "", false
	}
	left = strings.TrimSpace(m[1])
	if left == "" {
		left = "undefined"
	}
	op = m[2]
	right = strings.TrimSpace(m[3])
	if right == "" {
		right = "undefined"
	}
	return left, op, right, reply, true
}

// evalCondition applies op to already tag-expanded left/right operands, per
// spec §4.5 step 6: equality compares strings; ordering operators parse
// both sides as integers and are false if either side fails to parse.
func evalCondition(left, op, right string) bool {
	switch op {
	case "==", "eq":
		return left == right
	case "!=", "ne", "<>":
		return left != right
	case "<", "<=", ">", ">=":
		li, lerr := strconv.Atoi(left)
		ri, rerr := strconv.Atoi(right)
		if lerr != nil || rerr != nil {
			return false
		}
		switch op {
		case "<":
			return li < ri
		case "<=":
			return li <= ri
		case ">":
			return li > ri
		case ">=":
			return li >= ri
		}
	}
	return false
}
