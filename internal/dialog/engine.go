package dialog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/inspekta/propbot/internal/listings"
	"github.com/inspekta/propbot/internal/search"
	"github.com/inspekta/propbot/internal/session"
)

// Engine is the dialogue state machine. It consumes one inbound message plus
// the caller's session, consults the menu catalog and the extractor, and
// produces a response directive while persisting the next state through the
// session arena.
type Engine struct {
	sessions    *session.Arena
	gateway     listings.Gateway
	logger      *zap.Logger
	resultLimit int
}

// NewEngine creates a dialogue engine.
func NewEngine(sessions *session.Arena, gateway listings.Gateway, resultLimit int, logger *zap.Logger) *Engine {
	if resultLimit <= 0 {
		resultLimit = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		sessions:    sessions,
		gateway:     gateway,
		logger:      logger,
		resultLimit: resultLimit,
	}
}

var greetings = map[string]bool{
	"hi": true, "hello": true, "hey": true, "greetings": true,
	"good morning": true, "good afternoon": true, "good evening": true,
	"hola": true, "howdy": true,
}

var quitWords = map[string]bool{
	"quit": true, "exit": true, "stop": true, "end": true,
}

var menuWords = map[string]bool{
	"menu": true, "start": true, "help": true, "main": true, "*": true,
}

var detailsRe = regexp.MustCompile(`^(?:details?|view)\s+(\d+)$`)

// plan is the outcome of the pure decision step: the directive to render, the
// mutation to commit, and any gateway work to perform between the two lock
// sections.
type plan struct {
	directive    Directive
	mutate       func(*session.Session)
	searchFilter *search.Filter
	searchDesc   string
	detailsID    string
	end          bool
}

// HandleMessage processes one inbound turn for identity and returns the
// response directive. The per-identity lock is held while reading state and
// while committing it, but released across the gateway call. A lock timeout is
// retried once before surfacing as a soft failure.
func (e *Engine) HandleMessage(ctx context.Context, identity, name, text string) (Directive, error) {
	directive, err := e.handleOnce(ctx, identity, name, text)
	if errors.Is(err, session.ErrLockTimeout) {
		e.logger.Warn("session lock contended, retrying turn",
			zap.String("identity_suffix", suffix(identity)))
		directive, err = e.handleOnce(ctx, identity, name, text)
	}
	if errors.Is(err, session.ErrLockTimeout) {
		return softFailure(), nil
	}
	return directive, err
}

func (e *Engine) handleOnce(ctx context.Context, identity, name, text string) (Directive, error) {
	if strings.TrimSpace(identity) == "" {
		return Directive{}, fmt.Errorf("identity is required")
	}

	// First lock section: read a consistent view and decide.
	var p plan
	err := e.sessions.Update(ctx, identity, name, func(s *session.Session) {
		p = e.decide(*s, text)
		s.LastActivity = time.Now()
	})
	if err != nil {
		return Directive{}, err
	}

	// Gateway work happens without holding the per-identity lock.
	var resultIDs []string
	if p.searchFilter != nil {
		p.directive, resultIDs = e.runSearch(ctx, *p.searchFilter, p.searchDesc)
		if p.directive.Kind == KindSoftFailure {
			// State and filter stay untouched so the user can simply retry.
			p.mutate = nil
		}
	} else if p.detailsID != "" {
		p.directive = e.runDetails(ctx, p.detailsID)
		if p.directive.Kind != KindDetail {
			p.mutate = nil
		}
	}

	// Second lock section: commit the transition and the history turns.
	err = e.sessions.Update(ctx, identity, "", func(s *session.Session) {
		if p.mutate != nil {
			p.mutate(s)
		}
		if resultIDs != nil {
			s.LastResults = resultIDs
		}
		now := time.Now()
		limit := e.sessions.HistoryLimit()
		s.AddTurn(session.RoleUser, text, limit, now)
		s.AddTurn(session.RoleBot, p.directive.Text, limit, now)
		s.LastActivity = now
	})
	if err != nil {
		return Directive{}, err
	}

	if p.end {
		if err := e.sessions.End(ctx, identity); err != nil {
			e.logger.Warn("failed to end session", zap.Error(err))
		}
	}

	return p.directive, nil
}

// decide maps (session view, text) to a plan. It is side-effect free; all
// mutation is deferred to the commit closure.
func (e *Engine) decide(s session.Session, text string) plan {
	norm := strings.ToLower(strings.TrimSpace(text))

	switch {
	case norm == "":
		return unrecognized(s.Menu, text)

	case greetings[norm]:
		return plan{
			directive: Directive{
				Kind:    KindGreeting,
				Text:    greetingText(s.Name) + "\n\n" + Prompt(session.MenuMain),
				Options: OptionRefs(session.MenuMain),
			},
			mutate: func(s *session.Session) { s.ResetToMain() },
		}

	case menuWords[norm]:
		return plan{
			directive: Directive{
				Kind:    KindMenu,
				Text:    Prompt(session.MenuMain),
				Options: OptionRefs(session.MenuMain),
			},
			mutate: func(s *session.Session) { s.ResetToMain() },
		}

	case norm == "back":
		prev := Predecessor(s.Menu)
		body := Prompt(prev)
		if s.Menu == session.MenuMain {
			body = "🔄 No previous step. You are at the main menu.\n\n" + body
		}
		return plan{
			directive: Directive{Kind: KindMenu, Text: body, Options: OptionRefs(prev)},
			mutate: func(s *session.Session) {
				s.Menu = prev
				s.Step = 0
			},
		}

	case quitWords[norm]:
		return plan{
			directive: Directive{
				Kind: KindEnd,
				Text: "👋 Thanks for using INSPEKTA Property Search! Your session has ended.\n\nSend any message to start a new search.",
			},
			mutate: func(s *session.Session) { s.Menu = session.MenuEnded },
			end:    true,
		}
	}

	switch s.Menu {
	case session.MenuMain:
		return e.decideMain(s, text, norm)
	case session.MenuPropertyType, session.MenuBedrooms, session.MenuLocation, session.MenuPrice:
		return e.decideGuided(s, text, norm)
	case session.MenuPropertyDetails:
		return e.decideDetails(s, text, norm)
	default:
		// Unknown state in a stored session; recover to main.
		return plan{
			directive: Directive{
				Kind:    KindMenu,
				Text:    "🔄 Returning to main menu...\n\n" + Prompt(session.MenuMain),
				Options: OptionRefs(session.MenuMain),
			},
			mutate: func(s *session.Session) { s.ResetToMain() },
		}
	}
}

func (e *Engine) decideMain(s session.Session, text, norm string) plan {
	if opt, ok := Lookup(session.MenuMain, norm); ok {
		if opt.Action == ActionQuickSearch {
			filter := *opt.Patch
			return plan{
				searchFilter: &filter,
				searchDesc:   opt.Label,
				mutate: func(s *session.Session) {
					s.ReturnToMain()
				},
			}
		}

		// Options 5-8 enter the guided sub-menu sequence.
		next := opt.Next
		return plan{
			directive: Directive{
				Kind:    KindMenu,
				Text:    opt.Ack + "\n\n" + Prompt(next),
				Options: OptionRefs(next),
			},
			mutate: func(s *session.Session) {
				s.Menu = next
				s.Step = 0
			},
		}
	}

	if m := detailsRe.FindStringSubmatch(norm); m != nil && len(s.LastResults) > 0 {
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 1 && n <= len(s.LastResults) {
			id := s.LastResults[n-1]
			return plan{
				detailsID: id,
				mutate: func(s *session.Session) {
					s.Menu = session.MenuPropertyDetails
					s.Step = 0
				},
			}
		}
		return plan{directive: Directive{
			Kind: KindError,
			Text: fmt.Sprintf("❌ Pick a property between 1 and %d, e.g. *details 1*", len(s.LastResults)),
		}}
	}

	// Natural-language extraction, falling back to guidance when nothing is
	// recognized.
	extracted := search.Extract(text)
	if !extracted.IsEmpty() {
		merged := s.Filter.Merge(extracted)
		return plan{
			searchFilter: &merged,
			searchDesc:   merged.String(),
			mutate: func(s *session.Session) {
				s.Filter = merged
			},
		}
	}

	return plan{directive: Directive{
		Kind: KindError,
		Text: fmt.Sprintf("❌ Unrecognized input: %q\n\nPlease select a number (1-8) from the menu or try natural language like:\n• \"3 bedroom apartments in Lagos\"\n• \"Properties under 50 million\"\n\n💡 Type *menu* to return to main menu\n\n%s", text, Prompt(session.MenuMain)),
	}}
}

func (e *Engine) decideGuided(s session.Session, text, norm string) plan {
	opt, ok := Lookup(s.Menu, norm)
	if !ok {
		return unrecognized(s.Menu, text)
	}

	if opt.Action == ActionReturnMain {
		return plan{
			directive: Directive{
				Kind:    KindMenu,
				Text:    "🔙 Returning to main menu...\n\n" + Prompt(session.MenuMain),
				Options: OptionRefs(session.MenuMain),
			},
			mutate: func(s *session.Session) { s.ResetToMain() },
		}
	}

	merged := s.Filter
	if opt.Patch != nil {
		merged = merged.Merge(*opt.Patch)
	}

	next, final := NextGuided(s.Menu)
	if final {
		// Price is the last guided step: run the accumulated search and land
		// back on main.
		filter := merged
		return plan{
			searchFilter: &filter,
			searchDesc:   filter.String(),
			mutate: func(s *session.Session) {
				s.Filter = filter
				s.ReturnToMain()
			},
		}
	}

	return plan{
		directive: Directive{
			Kind:    KindMenu,
			Text:    opt.Ack + "\n\n" + Prompt(next),
			Options: OptionRefs(next),
		},
		mutate: func(s *session.Session) {
			s.Filter = merged
			s.Menu = next
			s.Step++
		},
	}
}

func (e *Engine) decideDetails(s session.Session, text, norm string) plan {
	opt, ok := Lookup(session.MenuPropertyDetails, norm)
	if !ok {
		return unrecognized(session.MenuPropertyDetails, text)
	}

	switch opt.Action {
	case ActionShowInterest:
		return plan{
			directive: Directive{
				Kind: KindAck,
				Text: "✅ *Interest Recorded!*\n\nThank you for showing interest in this property. An agent will reach out shortly.\n\n💡 Type *back* to return | Type *menu* for main menu",
			},
			mutate: func(s *session.Session) { s.LastActivity = time.Now() },
		}
	case ActionScheduleInspection:
		return plan{
			directive: Directive{
				Kind: KindAck,
				Text: "📅 *Schedule Inspection*\n\nAn agent will contact you to agree on a time slot.\n\n💡 Type *back* to return | Type *menu* for main menu",
			},
			mutate: func(s *session.Session) { s.LastActivity = time.Now() },
		}
	default:
		return unrecognized(session.MenuPropertyDetails, text)
	}
}

// runSearch executes the gateway call and renders the outcome. Gateway errors
// degrade to a soft failure; zero records are a normal "no matches" response.
func (e *Engine) runSearch(ctx context.Context, filter search.Filter, description string) (Directive, []string) {
	props, err := e.gateway.Search(ctx, filter, e.resultLimit)
	if err != nil {
		e.logger.Error("search gateway unavailable", zap.Error(err))
		return softFailure(), nil
	}

	if len(props) == 0 {
		return Directive{
			Kind:    KindNoResults,
			Text:    fmt.Sprintf("❌ No properties found for: *%s*\n\nTry adjusting your search or pick an option below.\n\n%s", description, Prompt(session.MenuMain)),
			Options: OptionRefs(session.MenuMain),
		}, []string{}
	}

	ids := make([]string, len(props))
	for i, p := range props {
		ids[i] = p.ID
	}
	return Directive{Kind: KindResults, Text: renderResults(props, description)}, ids
}

func (e *Engine) runDetails(ctx context.Context, id string) Directive {
	p, err := e.gateway.GetDetails(ctx, id)
	if errors.Is(err, listings.ErrNotFound) {
		return Directive{
			Kind: KindError,
			Text: "❌ That property is no longer available. Type *menu* to start a new search.",
		}
	}
	if err != nil {
		e.logger.Error("details gateway unavailable", zap.Error(err))
		return softFailure()
	}
	return Directive{
		Kind:    KindDetail,
		Text:    renderDetail(p),
		Options: OptionRefs(session.MenuPropertyDetails),
	}
}

func unrecognized(menu session.MenuState, text string) plan {
	return plan{directive: Directive{
		Kind:    KindError,
		Text:    fmt.Sprintf("❌ Unrecognized input: %q\n\nPlease pick one of the listed options.\n\n💡 Type *back* to go back | Type *menu* for main menu\n\n%s", text, Prompt(menu)),
		Options: OptionRefs(menu),
	}}
}

func softFailure() Directive {
	return Directive{
		Kind: KindSoftFailure,
		Text: "⚠️ Search is temporarily unavailable, please try again shortly. Your selections are saved.",
	}
}

func greetingText(name string) string {
	if name != "" {
		return fmt.Sprintf("👋 Hi %s! Welcome to INSPEKTA Property Search!", name)
	}
	return "👋 Hi there! Welcome to INSPEKTA Property Search!"
}

func suffix(identity string) string {
	const keep = 4
	if len(identity) <= keep {
		return identity
	}
	return identity[len(identity)-keep:]
}
