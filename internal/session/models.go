package session

import (
	"time"

	"github.com/inspekta/propbot/internal/search"
)

// MenuState is the current position in the guided dialogue flow.
type MenuState string

const (
	MenuMain            MenuState = "main"
	MenuPropertyType    MenuState = "property_type"
	MenuBedrooms        MenuState = "bedrooms"
	MenuLocation        MenuState = "location"
	MenuPrice           MenuState = "price"
	MenuPropertyDetails MenuState = "property_details"
	MenuEnded           MenuState = "ended"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Turn is one immutable exchange entry. History is diagnostics only; the engine
// never reads it to make control decisions.
type Turn struct {
	At   time.Time `json:"at"`
	Role Role      `json:"role"`
	Text string    `json:"text"`
}

// Session is the per-user dialogue state. The Arena is its sole owner; callers
// mutate it only inside Arena.Update.
type Session struct {
	Identity     string
	Name         string
	Menu         MenuState
	Step         int
	Filter       search.Filter
	History      []Turn
	LastResults  []string // listing ids from the most recent search, for the detail flow
	CreatedAt    time.Time
	LastActivity time.Time
}

func newSession(identity, name string, now time.Time) *Session {
	return &Session{
		Identity:     identity,
		Name:         name,
		Menu:         MenuMain,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// AddTurn appends to the bounded history, evicting the oldest entry once limit
// is reached.
func (s *Session) AddTurn(role Role, text string, limit int, now time.Time) {
	s.History = append(s.History, Turn{At: now, Role: role, Text: text})
	if limit > 0 && len(s.History) > limit {
		s.History = s.History[len(s.History)-limit:]
	}
}

// ResetToMain returns the session to the main menu and clears the in-progress
// sub-flow: step, accumulated filter and cached results. Used by the universal
// "menu" command and greetings.
func (s *Session) ResetToMain() {
	s.Menu = MenuMain
	s.Step = 0
	s.Filter = search.Filter{}
	s.LastResults = nil
}

// ReturnToMain goes back to the main menu after a completed search without
// discarding the accumulated filter, so follow-up refinements still merge.
func (s *Session) ReturnToMain() {
	s.Menu = MenuMain
	s.Step = 0
}

func (s *Session) clone() Session {
	out := *s
	out.History = append([]Turn(nil), s.History...)
	out.LastResults = append([]string(nil), s.LastResults...)
	return out
}

// Summary is the redacted per-session view exposed for observability. It never
// carries the full identity or the filter contents.
type Summary struct {
	Identity     string    `json:"identity"` // redacted to a fixed-length suffix
	Name         string    `json:"name,omitempty"`
	Menu         MenuState `json:"menu"`
	Step         int       `json:"step"`
	LastActivity time.Time `json:"last_activity"`
	FilterCount  int       `json:"filter_count"`
}

// redactIdentity keeps only the trailing four characters of the identity.
func redactIdentity(identity string) string {
	const keep = 4
	if len(identity) <= keep {
		return "***" + identity
	}
	return "***" + identity[len(identity)-keep:]
}
