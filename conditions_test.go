package rivescript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ParseCondition(t *testing.T) {
	testCases := []struct {
		name       string
		raw        string
		expectOK   bool
		left       string
		op         string
		right      string
		replyText  string
	}{
		{
			name:      "simple equality",
			raw:       "<get mood> eq happy => You are happy!",
			expectOK:  true,
			left:      "<get mood>",
			op:        "eq",
			right:     "happy",
			replyText: "You are happy!",
		},
		{
			name:      "symbolic operator",
			raw:       "<get age> >= 18 => You are an adult.",
			expectOK:  true,
			left:      "<get age>",
			op:        ">=",
			right:     "18",
			replyText: "You are an adult.",
		},
		{
			name:     "missing arrow is invalid",
			raw:      "<get mood> eq happy",
			expectOK: false,
		},
		{
			name:     "missing operator is invalid",
			raw:      "<get mood> happy => ok",
			expectOK: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			left, op, right, reply, ok := parseCondition(tc.raw)
			require.Equal(t, tc.expectOK, ok)
			if !tc.expectOK {
				return
			}
			assert.Equal(t, tc.left, left)
			assert.Equal(t, tc.op, op)
			assert.Equal(t, tc.right, right)
			assert.Equal(t, tc.replyText, reply)
		})
	}
}

func Test_EvalCondition(t *testing.T) {
	testCases := []struct {
		name   string
		left   string
		op     string
		right  string
		expect bool
	}{
		{name: "eq true", left: "happy", op: "eq", right: "happy", expect: true},
		{name: "== true", left: "happy", op: "==", right: "happy", expect: true},
		{name: "!= true", left: "happy", op: "!=", right: "sad", expect: true},
		{name: "ne true", left: "happy", op: "ne", right: "sad", expect: true},
		{name: "<> true", left: "happy", op: "<>", right: "sad", expect: true},
		{name: "less than true", left: "5", op: "<", right: "10", expect: true},
		{name: "less than false", left: "10", op: "<", right: "5", expect: false},
		{name: "less-equal true equal", left: "5", op: "<=", right: "5", expect: true},
		{name: "greater than true", left: "10", op: ">", right: "5", expect: true},
		{name: "greater-equal true equal", left: "5", op: ">=", right: "5", expect: true},
		{name: "non-numeric ordering is false", left: "abc", op: "<", right: "5", expect: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, evalCondition(tc.left, tc.op, tc.right))
		})
	}
}
