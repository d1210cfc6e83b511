// Package ast contains the passive data types produced by the parser and
// consumed by the brain: topics, triggers, the begin block, and object macro
// declarations. Nothing in this package executes or validates; it is pure
// structure.
package ast

// Position locates a line within a source file for diagnostics.
type Position struct {
	File string
	Line int
}

func (p Position) String() string {
	if p.File == "" {
		return ""
	}
	return p.File + ":" + itoa(p.Line)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Trigger is a single `+` pattern and everything bound to it: its replies,
// its conditions, an optional redirect, and an optional %Previous binding.
type Trigger struct {
	Pattern    string
	Replies    []string
	Conditions []string
	Redirect   string
	HasRedirect bool
	Previous    string
	HasPrevious bool

	Source Position
}

// ProducesOutput reports whether the trigger has at least one of replies,
// a redirect, or conditions, as required by the non-empty-trigger invariant.
func (t *Trigger) ProducesOutput() bool {
	return len(t.Replies) > 0 || t.HasRedirect || len(t.Conditions) > 0
}

// Topic is a named collection of triggers plus the includes/inherits
// relationships used by the sorter to build its closure.
type Topic struct {
	Name      string
	Triggers  []*Trigger
	Includes  map[string]bool
	Inherits  map[string]bool
}

// NewTopic returns an empty, ready-to-use Topic with the given name.
func NewTopic(name string) *Topic {
	return &Topic{
		Name:     name,
		Includes: map[string]bool{},
		Inherits: map[string]bool{},
	}
}

// Macro is a `> object NAME LANG` ... `< object` block: a named procedure in
// some host language, with its body collected verbatim.
type Macro struct {
	Name     string
	Language string
	Code     []string
	Source   Position
}

// Begin holds the contents of the special `__begin__` topic's `!` definition
// lines: globals, bot variables, substitutions, person substitutions, and
// arrays. A name deleted with `<undef>` is absent from the value map but
// present in the matching Deleted* set, so that merging this Root into a
// brain that already holds an earlier file's definition still removes it —
// the parser sees only this file's definitions and can't delete a key it
// never had.
type Begin struct {
	Global map[string]string
	Var    map[string]string
	Sub    map[string]string
	Person map[string]string
	Array  map[string][]string

	DeletedGlobal map[string]bool
	DeletedVar    map[string]bool
	DeletedSub    map[string]bool
	DeletedPerson map[string]bool
	DeletedArray  map[string]bool
}

// NewBegin returns an empty, ready-to-use Begin block.
func NewBegin() Begin {
	return Begin{
		Global: map[string]string{},
		Var:    map[string]string{},
		Sub:    map[string]string{},
		Person: map[string]string{},
		Array:  map[string][]string{},

		DeletedGlobal: map[string]bool{},
		DeletedVar:    map[string]bool{},
		DeletedSub:    map[string]bool{},
		DeletedPerson: map[string]bool{},
		DeletedArray:  map[string]bool{},
	}
}

// Root is the top-level parse result: the begin block, every topic keyed by
// name, and every object macro declaration encountered in source order.
type Root struct {
	Begin   Begin
	Topics  map[string]*Topic
	Objects []Macro
}

// NewRoot returns an empty Root with the default "random" topic already
// present, matching the invariant that a default topic always exists.
func NewRoot() *Root {
	r := &Root{
		Begin:  NewBegin(),
		Topics: map[string]*Topic{},
	}
	r.Topic("random")
	return r
}

// Topic returns the named topic, creating it (with default zero value) if it
// does not yet exist.
func (r *Root) Topic(name string) *Topic {
	t, ok := r.Topics[name]
	if !ok {
		t = NewTopic(name)
		r.Topics[name] = t
	}
	return t
}
