// Package brain holds the merged, loaded form of one or more parsed
// ast.Root values: the topic graph, the thats index used for %Previous
// resolution, substitution/person/array tables, bot and global variables,
// and the object-macro registry. It plays the role the teacher engine's
// internal/game.State plays for room/NPC/item graphs (internal/game/state.go,
// internal/game/room.go): a mutable, named-entity graph assembled
// incrementally by ingesting one manifest (here, one parsed file) at a time.
package brain

import (
	"log"

	"github.com/rivebot/rivescript/ast"
	"github.com/rivebot/rivescript/internal/macro"
)

// Brain is the merged, queryable form of the loaded RiveScript corpus. It is
// mutated only by Merge and the explicit setter methods; the sorter and
// reply engine both treat it as read-only between mutations, per spec §5.
type Brain struct {
	Topics map[string]*ast.Topic

	// Thats indexes triggers with a %Previous binding:
	// topic -> trigger pattern -> previous pattern -> *ast.Trigger.
	Thats map[string]map[string]map[string]*ast.Trigger

	Global map[string]string
	Var    map[string]string
	Sub    map[string]string
	Person map[string]string
	Array  map[string][]string

	Macros *macro.Registry

	Logger *log.Logger
}

// New returns an empty Brain with the default "random" topic present and the
// given macro registry. A nil logger is replaced with log.Default().
func New(macros *macro.Registry, logger *log.Logger) *Brain {
	if logger == nil {
		logger = log.Default()
	}
	if macros == nil {
		macros = macro.NewRegistry()
	}
	b := &Brain{
		Topics: map[string]*ast.Topic{},
		Thats:  map[string]map[string]map[string]*ast.Trigger{},
		Global: map[string]string{},
		Var:    map[string]string{},
		Sub:    map[string]string{},
		Person: map[string]string{},
		Array:  map[string][]string{},
		Macros: macros,
		Logger: logger,
	}
	b.topic("random")
	return b
}

func (b *Brain) topic(name string) *ast.Topic {
	t, ok := b.Topics[name]
	if !ok {
		t = ast.NewTopic(name)
		b.Topics[name] = t
	}
	return t
}

// Topic returns the named topic and whether it exists.
func (b *Brain) Topic(name string) (*ast.Topic, bool) {
	t, ok := b.Topics[name]
	return t, ok
}

// Merge ingests a parsed Root into the brain: definitions are applied
// add-or-delete, topics are upserted with their triggers deep-copied in, the
// thats index is populated for every trigger carrying a %Previous binding,
// and object macros are handed to the registered handler for their
// language.
func (b *Brain) Merge(root *ast.Root) {
	mergeStrings(b.Global, root.Begin.Global, root.Begin.DeletedGlobal)
	mergeStrings(b.Var, root.Begin.Var, root.Begin.DeletedVar)
	mergeStrings(b.Sub, root.Begin.Sub, root.Begin.DeletedSub)
	mergeStrings(b.Person, root.Begin.Person, root.Begin.DeletedPerson)
	for name := range root.Begin.DeletedArray {
		delete(b.Array, name)
	}
	for name, items := range root.Begin.Array {
		cp := make([]string, len(items))
		copy(cp, items)
		b.Array[name] = cp
	}

	for name, srcTopic := range root.Topics {
		dstTopic := b.topic(name)
		for k := range srcTopic.Includes {
			dstTopic.Includes[k] = true
		}
		for k := range srcTopic.Inherits {
			dstTopic.Inherits[k] = true
		}
		for _, srcTrig := range srcTopic.Triggers {
			trig := copyTrigger(srcTrig)
			dstTopic.Triggers = append(dstTopic.Triggers, trig)
			if trig.HasPrevious {
				b.indexThat(name, trig)
			}
		}
	}

	for _, m := range root.Objects {
		if !b.Macros.Load(m.Name, m.Language, m.Code) {
			b.Logger.Printf("rivescript: brain: object %q: no handler registered for language %q, skipping", m.Name, m.Language)
		}
	}
}

func (b *Brain) indexThat(topic string, t *ast.Trigger) {
	byPattern, ok := b.Thats[topic]
	if !ok {
		byPattern = map[string]map[string]*ast.Trigger{}
		b.Thats[topic] = byPattern
	}
	byPrev, ok := byPattern[t.Pattern]
	if !ok {
		byPrev = map[string]*ast.Trigger{}
		byPattern[t.Pattern] = byPrev
	}
	byPrev[t.Previous] = t
}

// mergeStrings applies add-or-delete semantics: names in deleted are removed
// from dst first (so a `<undef>` in this file can erase a value set by an
// earlier-merged file, not just one from within the same file), then every
// remaining src entry overlays dst.
func mergeStrings(dst, src map[string]string, deleted map[string]bool) {
	for name := range deleted {
		delete(dst, name)
	}
	for k, v := range src {
		dst[k] = v
	}
}

func copyTrigger(src *ast.Trigger) *ast.Trigger {
	dst := &ast.Trigger{
		Pattern:     src.Pattern,
		Redirect:    src.Redirect,
		HasRedirect: src.HasRedirect,
		Previous:    src.Previous,
		HasPrevious: src.HasPrevious,
		Source:      src.Source,
	}
	dst.Replies = append([]string(nil), src.Replies...)
	dst.Conditions = append([]string(nil), src.Conditions...)
	return dst
}

// SetGlobal sets a global variable; DeleteGlobal removes one. It mirrors the explicit setter API named in spec §5 that is
// allowed to mutate the brain outside of parse ingestion.
func (b *Brain) SetGlobal(name, value string) { b.Global[name] = value }

// DeleteGlobal removes a global variable.
func (b *Brain) DeleteGlobal(name string) { delete(b.Global, name) }

// SetVar sets a bot variable.
func (b *Brain) SetVar(name, value string) { b.Var[name] = value }

// DeleteVar removes a bot variable.
func (b *Brain) DeleteVar(name string) { delete(b.Var, name) }
