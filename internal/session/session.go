// Package session implements the per-user session store described in spec
// §3 and §6: variables (including topic), bounded 9-slot input/reply
// history rings, the last matched trigger text, and freeze/thaw snapshot
// support. The in-memory, mutex-guarded map-of-sessions shape is grounded
// on the teacher engine's server/dao/inmem session repository
// (server/dao/inmem/sessions.go), adapted from a multi-index DAO over
// uuid.UUID keys to a flat map over RiveScript user ids, since sessions
// here have no secondary indices to maintain. Freeze/thaw round-trips a
// session through github.com/dekarrin/rezi's binary codec, the same
// library the teacher uses to serialize *game.State
// (server/dao/sqlite/sqlite.go) — here used purely as an in-memory copy
// mechanism, never written to disk, so it does not reintroduce the
// persistence Non-goal from spec §1.
package session

import (
	"fmt"
	"sync"

	"github.com/dekarrin/rezi"
)

// HistorySize is the number of input/reply turns retained per user, per
// spec §3.
const HistorySize = 9

// UndefinedSlot is the placeholder value every history ring slot starts
// with.
const UndefinedSlot = "undefined"

// Ring is a fixed-size history buffer. Index 0 is always the most recent
// entry; pushing rotates everything else down, replacing the oldest slot
// (the Testable Properties invariant in spec §8.4).
type Ring struct {
	slots [HistorySize]string
}

// NewRing returns a ring with every slot initialized to UndefinedSlot.
func NewRing() Ring {
	r := Ring{}
	for i := range r.slots {
		r.slots[i] = UndefinedSlot
	}
	return r
}

// Push adds v as the most recent entry, rotating older entries down and
// dropping whatever was in the last slot.
func (r *Ring) Push(v string) {
	copy(r.slots[1:], r.slots[:HistorySize-1])
	r.slots[0] = v
}

// At returns slot n (0-based, 0 = most recent). Out-of-range n returns
// UndefinedSlot rather than panicking, since tag expansion treats an
// unmatched history slot the same as an unset one.
func (r Ring) At(n int) string {
	if n < 0 || n >= HistorySize {
		return UndefinedSlot
	}
	return r.slots[n]
}

// Slice returns a copy of the ring's 9 slots, most recent first.
func (r Ring) Slice() []string {
	out := make([]string, HistorySize)
	copy(out, r.slots[:])
	return out
}

// State is one user's mutable session data.
type State struct {
	Variables map[string]string
	LastMatch string
	Input     Ring
	Reply     Ring
}

func newState() *State {
	return &State{
		Variables: map[string]string{"topic": "random"},
		Input:     NewRing(),
		Reply:     NewRing(),
	}
}

func (s *State) clone() *State {
	vars := make(map[string]string, len(s.Variables))
	for k, v := range s.Variables {
		vars[k] = v
	}
	return &State{
		Variables: vars,
		LastMatch: s.LastMatch,
		Input:     s.Input,
		Reply:     s.Reply,
	}
}

// frozenState is the plain, reflection-friendly shape rezi encodes and
// decodes; State itself is fine to hand to rezi directly, but keeping this
// separate makes the wire shape independent of any unexported fields added
// to State later.
type frozenState struct {
	Variables map[string]string
	LastMatch string
	Input     [HistorySize]string
	Reply     [HistorySize]string
}

// MarshalBinary encodes f using rezi's primitives so frozenState satisfies
// encoding.BinaryMarshaler for rezi.EncBinary.
func (f *frozenState) MarshalBinary() ([]byte, error) {
	var out []byte
	out = append(out, rezi.EncInt(len(f.Variables))...)
	for k, v := range f.Variables {
		out = append(out, rezi.EncString(k)...)
		out = append(out, rezi.EncString(v)...)
	}
	out = append(out, rezi.EncString(f.LastMatch)...)
	out = append(out, rezi.EncSliceString(f.Input[:])...)
	out = append(out, rezi.EncSliceString(f.Reply[:])...)
	return out, nil
}

// UnmarshalBinary decodes bytes produced by MarshalBinary so frozenState
// satisfies encoding.BinaryUnmarshaler for rezi.DecBinary.
func (f *frozenState) UnmarshalBinary(data []byte) error {
	var off int

	count, n, err := rezi.DecInt(data[off:])
	if err != nil {
		return err
	}
	off += n

	vars := make(map[string]string, count)
	for i := 0; i < count; i++ {
		k, n, err := rezi.DecString(data[off:])
		if err != nil {
			return err
		}
		off += n

		v, n, err := rezi.DecString(data[off:])
		if err != nil {
			return err
		}
		off += n

		vars[k] = v
	}
	f.Variables = vars

	lastMatch, n, err := rezi.DecString(data[off:])
	if err != nil {
		return err
	}
	off += n
	f.LastMatch = lastMatch

	input, n, err := rezi.DecSliceString(data[off:])
	if err != nil {
		return err
	}
	off += n
	copy(f.Input[:], input)

	reply, n, err := rezi.DecSliceString(data[off:])
	if err != nil {
		return err
	}
	off += n
	copy(f.Reply[:], reply)

	return nil
}

func toFrozen(s *State) *frozenState {
	return &frozenState{
		Variables: s.Variables,
		LastMatch: s.LastMatch,
		Input:     s.Input.slots,
		Reply:     s.Reply.slots,
	}
}

func fromFrozen(f *frozenState) *State {
	return &State{
		Variables: f.Variables,
		LastMatch: f.LastMatch,
		Input:     Ring{slots: f.Input},
		Reply:     Ring{slots: f.Reply},
	}
}

// entry pairs a user's live state with the mutex that makes a reply() call
// exclusive owner of it for the call's duration (spec §5).
type entry struct {
	mu     sync.Mutex
	state  *State
	frozen []byte
}

// Manager is the in-memory session store. It is safe for concurrent use
// across distinct users; per spec §5, callers must not issue two
// concurrent Reply calls for the same user id.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewManager returns an empty, ready-to-use Manager.
func NewManager() *Manager {
	return &Manager{sessions: map[string]*entry{}}
}

func (m *Manager) entryFor(user string) *entry {
	m.mu.RLock()
	e, ok := m.sessions[user]
	m.mu.RUnlock()
	if ok {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok = m.sessions[user]; ok {
		return e
	}
	e = &entry{state: newState()}
	m.sessions[user] = e
	return e
}

// Lock acquires exclusive ownership of user's session for the duration of a
// single reply() call and returns the state to operate on, plus an unlock
// function the caller must defer.
func (m *Manager) Lock(user string) (*State, func()) {
	e := m.entryFor(user)
	e.mu.Lock()
	return e.state, e.mu.Unlock
}

// Init creates a user's session if it does not already exist, with
// topic="random" and fully undefined history, and returns a copy of it.
func (m *Manager) Init(user string) *State {
	e := m.entryFor(user)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Set merges vars into user's session variables.
func (m *Manager) Set(user string, vars map[string]string) {
	e := m.entryFor(user)
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range vars {
		e.state.Variables[k] = v
	}
}

// Get reads a single session variable.
func (m *Manager) Get(user, name string) (string, bool) {
	e := m.entryFor(user)
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.state.Variables[name]
	return v, ok
}

// GetAny returns a copy of every variable set for user.
func (m *Manager) GetAny(user string) map[string]string {
	e := m.entryFor(user)
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.state.Variables))
	for k, v := range e.state.Variables {
		out[k] = v
	}
	return out
}

// GetAll returns a copy of every known user's variables, keyed by user id.
func (m *Manager) GetAll() map[string]map[string]string {
	m.mu.RLock()
	users := make([]string, 0, len(m.sessions))
	for u := range m.sessions {
		users = append(users, u)
	}
	m.mu.RUnlock()

	out := make(map[string]map[string]string, len(users))
	for _, u := range users {
		out[u] = m.GetAny(u)
	}
	return out
}

// AddHistory appends a normalized input and the final reply text to user's
// history rings.
func (m *Manager) AddHistory(user, input, reply string) {
	e := m.entryFor(user)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Input.Push(input)
	e.state.Reply.Push(reply)
}

// SetLastMatch records the pattern text of the trigger that last matched
// for user (or the empty string, if none did).
func (m *Manager) SetLastMatch(user, trigger string) {
	e := m.entryFor(user)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.LastMatch = trigger
}

// GetLastMatch returns the pattern text of the trigger that last matched
// for user.
func (m *Manager) GetLastMatch(user string) string {
	e := m.entryFor(user)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.LastMatch
}

// GetHistory returns copies of user's input and reply rings, most recent
// first.
func (m *Manager) GetHistory(user string) (inputs, replies []string) {
	e := m.entryFor(user)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Input.Slice(), e.state.Reply.Slice()
}

// Clear resets a single user's session to its initial state.
func (m *Manager) Clear(user string) {
	e := m.entryFor(user)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = newState()
	e.frozen = nil
}

// ClearAll resets the manager to empty.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = map[string]*entry{}
}

// Freeze snapshots user's current session independently of later mutation,
// storing the snapshot by encoding it through rezi's binary codec. A
// second Freeze overwrites any previous snapshot.
func (m *Manager) Freeze(user string) error {
	e := m.entryFor(user)
	e.mu.Lock()
	defer e.mu.Unlock()

	data := rezi.EncBinary(toFrozen(e.state))
	e.frozen = data
	return nil
}

// ThawAction selects what Thaw does with the snapshot after restoring it.
type ThawAction int

const (
	// ThawRestore restores the snapshot and removes it.
	ThawRestore ThawAction = iota
	// ThawDiscard removes the snapshot without restoring it.
	ThawDiscard
	// ThawKeep restores the snapshot and retains it for a later Thaw.
	ThawKeep
)

// Thaw applies action to user's frozen snapshot, per spec §6.
func (m *Manager) Thaw(user string, action ThawAction) error {
	e := m.entryFor(user)
	e.mu.Lock()
	defer e.mu.Unlock()

	if action == ThawDiscard {
		e.frozen = nil
		return nil
	}

	if e.frozen == nil {
		return fmt.Errorf("rivescript: session: no frozen snapshot for user %q", user)
	}

	f := &frozenState{}
	n, err := rezi.DecBinary(e.frozen, f)
	if err != nil {
		return fmt.Errorf("rivescript: session: decode frozen snapshot: %w", err)
	}
	if n != len(e.frozen) {
		return fmt.Errorf("rivescript: session: frozen snapshot decode consumed %d/%d bytes", n, len(e.frozen))
	}

	e.state = fromFrozen(f)
	if action == ThawRestore {
		e.frozen = nil
	}
	return nil
}
