// Package calls holds per-call conversation state for the lifetime of a
// phone call.
//
// The gateway delivers a call's turns strictly in order, so a State is only
// ever touched by one turn at a time; the Store just has to make map
// insert/lookup/remove safe across concurrent calls.
package calls

import (
	"sync"
	"time"
)

// Stage is the discrete position of a call within the conversation state
// machine.
type Stage string

const (
	StageIntent         Stage = "intent"
	StageFollowUp       Stage = "follow_up"
	StageBookingType    Stage = "booking_type"
	StageBookingDate    Stage = "booking_date"
	StageBookingTime    Stage = "booking_time"
	StageBookingName    Stage = "booking_name"
	StageBookingConfirm Stage = "booking_confirm"
	StageCompleted      Stage = "completed"
)

// InBooking reports whether the stage is part of the booking sub-flow.
func (s Stage) InBooking() bool {
	switch s {
	case StageBookingType, StageBookingDate, StageBookingTime, StageBookingName, StageBookingConfirm:
		return true
	}
	return false
}

// Booking carries the partially captured appointment details. Fields fill in
// as the flow advances and are cleared together when a fresh booking starts.
type Booking struct {
	ApptType string
	Date     string // canonical 2006-01-02
	Time     string // canonical 15:04

	// AvailableTimes are the start times offered for Date, kept so the
	// time stage can fuzzy-match against exactly what was spoken aloud.
	AvailableTimes []string

	// SuggestedDate/SuggestedTime hold the single alternate slot offered
	// when the requested day was full, awaiting a yes or no.
	SuggestedDate string
	SuggestedTime string
}

// Line is one role-tagged transcript entry.
type Line struct {
	Role string // "Agent" or "Caller"
	Text string
}

// Meta is caller metadata reported by the gateway at call start and on
// status callbacks.
type Meta struct {
	From      string
	To        string
	Direction string
	Duration  string
	StartedAt time.Time
}

// State is the mutable conversation state for one call. It is owned by the
// Store; the dialogue engine borrows it for the duration of a single turn.
type State struct {
	CallSID string
	Stage   Stage

	// Meta is written by status callbacks, which arrive on their own
	// connection and can race a turn in flight. Access goes through
	// MergeMeta and MetaSnapshot.
	metaMu sync.Mutex
	Meta   Meta

	CallerName string
	Intent     string // last resolved top-level intent

	Booking Booking

	// LastService is the sticky service slot: a treatment the caller named
	// earlier in the call, reusable without being restated.
	LastService string

	Retries      int
	SilenceCount int

	Greeted       bool
	Reprompted    bool // post-greeting silence nudge already played
	ConsentPlayed bool
	BookingLogged bool

	Transcript []Line

	touched time.Time
}

// MergeMeta folds the non-empty fields of m into the call metadata.
func (st *State) MergeMeta(m Meta) {
	st.metaMu.Lock()
	defer st.metaMu.Unlock()
	if m.From != "" {
		st.Meta.From = m.From
	}
	if m.To != "" {
		st.Meta.To = m.To
	}
	if m.Direction != "" {
		st.Meta.Direction = m.Direction
	}
	if m.Duration != "" {
		st.Meta.Duration = m.Duration
	}
	if !m.StartedAt.IsZero() {
		st.Meta.StartedAt = m.StartedAt
	}
}

// MetaSnapshot returns a consistent copy of the call metadata.
func (st *State) MetaSnapshot() Meta {
	st.metaMu.Lock()
	defer st.metaMu.Unlock()
	return st.Meta
}

// AddAgentLine appends an agent transcript line, skipping consecutive
// duplicates (reprompts repeat the same sentence).
func (st *State) AddAgentLine(text string) {
	if text == "" {
		return
	}
	if n := len(st.Transcript); n > 0 {
		last := st.Transcript[n-1]
		if last.Role == "Agent" && last.Text == text {
			return
		}
	}
	st.Transcript = append(st.Transcript, Line{Role: "Agent", Text: text})
}

// AddCallerLine appends a caller transcript line.
func (st *State) AddCallerLine(text string) {
	if text == "" {
		return
	}
	st.Transcript = append(st.Transcript, Line{Role: "Caller", Text: text})
}

// ResetBooking clears all captured booking fields. Called when a fresh
// booking intent launches.
func (st *State) ResetBooking() {
	st.Booking = Booking{}
	st.BookingLogged = false
}

// NoteProgress zeroes the retry and silence counters; the turn produced
// meaningful new information.
func (st *State) NoteProgress() {
	st.Retries = 0
	st.SilenceCount = 0
}

// Store is a concurrency-safe map of call SID to conversation state.
type Store struct {
	mu     sync.Mutex
	states map[string]*State
}

// NewStore creates an empty call-state store.
func NewStore() *Store {
	return &Store{states: make(map[string]*State)}
}

// GetOrCreate returns the state for sid, creating it on first sight.
func (s *Store) GetOrCreate(sid string) *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[sid]
	if !ok {
		st = &State{CallSID: sid, Stage: StageIntent}
		s.states[sid] = st
	}
	st.touched = time.Now()
	return st
}

// Get returns the state for sid if one exists.
func (s *Store) Get(sid string) (*State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[sid]
	return st, ok
}

// Remove deletes and returns the state for sid.
func (s *Store) Remove(sid string) (*State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[sid]
	if ok {
		delete(s.states, sid)
	}
	return st, ok
}

// Clear drops all states.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = make(map[string]*State)
}

// Len reports the number of live calls.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// Sweep removes states untouched for longer than maxAge and returns how many
// were dropped. Covers calls whose completion callback never arrived.
func (s *Store) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for sid, st := range s.states {
		if st.touched.Before(cutoff) {
			delete(s.states, sid)
			removed++
		}
	}
	return removed
}
