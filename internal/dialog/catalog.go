package dialog

import (
	"strings"

	"github.com/inspekta/propbot/internal/search"
	"github.com/inspekta/propbot/internal/session"
)

// ActionTag names the terminal effect of picking an option, for options that do
// not simply transition to another menu.
type ActionTag string

const (
	ActionNone               ActionTag = ""
	ActionQuickSearch        ActionTag = "quick_search"    // run the preset filter immediately
	ActionExecuteSearch      ActionTag = "execute_search"  // final guided step: merge, then search
	ActionReturnMain         ActionTag = "return_main"
	ActionShowInterest       ActionTag = "show_interest"
	ActionScheduleInspection ActionTag = "schedule_inspection"
)

// Option is one selectable entry of a menu. Exactly one of Next or Action is
// meaningful; Patch carries the filter contribution the selection merges in.
type Option struct {
	Code   string
	Label  string
	Next   session.MenuState
	Action ActionTag
	Patch  *search.Filter
	Ack    string // acknowledgment echoed before the next prompt
}

// Menu is the static definition of one dialogue position.
type Menu struct {
	Prompt  string
	Options []Option
}

// guidedNext is the fixed sub-menu sequence; price is the final step and
// triggers the search.
var guidedNext = map[session.MenuState]session.MenuState{
	session.MenuPropertyType: session.MenuBedrooms,
	session.MenuBedrooms:     session.MenuLocation,
	session.MenuLocation:     session.MenuPrice,
}

// predecessor backs the one-level "back" command. Quick searches never leave
// main, so a single level matches how the flow is actually navigated.
var predecessor = map[session.MenuState]session.MenuState{
	session.MenuPropertyType:    session.MenuMain,
	session.MenuBedrooms:        session.MenuPropertyType,
	session.MenuLocation:        session.MenuBedrooms,
	session.MenuPrice:           session.MenuLocation,
	session.MenuPropertyDetails: session.MenuMain,
}

var mainMenuPrompt = strings.Join([]string{
	"🏠 *INSPEKTA PROPERTY SEARCH*",
	"",
	"How would you like to search for properties?",
	"",
	"*Quick Search:*",
	"1. Show all available properties",
	"2. Properties under ₦50M",
	"3. Properties in Lagos",
	"4. Properties in Abuja",
	"",
	"*Detailed Search:*",
	"5. Search by property type",
	"6. Search by number of bedrooms",
	"7. Search by price range",
	"8. Search by location",
	"",
	"*Or simply type your request:*",
	"💬 \"Show me 3 bedroom apartments in Lagos\"",
	"💬 \"Houses under 40 million naira\"",
	"",
	"Reply with a number (1-8) or type your search request.",
}, "\n")

// catalog is the full menu table. Adding a menu is a data change here, not a
// control-flow change in the engine.
var catalog = map[session.MenuState]Menu{
	session.MenuMain: {
		Prompt: mainMenuPrompt,
		Options: []Option{
			{Code: "1", Label: "Show all available properties", Action: ActionQuickSearch, Patch: &search.Filter{}},
			{Code: "2", Label: "Properties under ₦50M", Action: ActionQuickSearch, Patch: &search.Filter{MaxPrice: search.Int64Ptr(50_000_000)}},
			{Code: "3", Label: "Properties in Lagos", Action: ActionQuickSearch, Patch: &search.Filter{City: "Lagos"}},
			{Code: "4", Label: "Properties in Abuja", Action: ActionQuickSearch, Patch: &search.Filter{City: "Abuja"}},
			{Code: "5", Label: "Search by property type", Next: session.MenuPropertyType, Ack: "✅ You selected: *Search by property type*"},
			{Code: "6", Label: "Search by number of bedrooms", Next: session.MenuBedrooms, Ack: "✅ You selected: *Search by number of bedrooms*"},
			{Code: "7", Label: "Search by price range", Next: session.MenuPrice, Ack: "✅ You selected: *Search by price range*"},
			{Code: "8", Label: "Search by location", Next: session.MenuLocation, Ack: "✅ You selected: *Search by location*"},
		},
	},
	session.MenuPropertyType: {
		Prompt: "🏢 *SELECT PROPERTY TYPE*\n\n1. Apartments/Flats\n2. Houses/Duplexes\n3. Office Spaces\n4. Land/Plots\n5. All types\n\n0. Back to main menu\n\nReply with your choice (1-5):",
		Options: []Option{
			{Code: "1", Label: "Apartments/Flats", Patch: &search.Filter{Type: search.PropertyTypeApartment}, Ack: "✅ Property type: *Apartments/Flats*"},
			{Code: "2", Label: "Houses/Duplexes", Patch: &search.Filter{Type: search.PropertyTypeHouse}, Ack: "✅ Property type: *Houses/Duplexes*"},
			{Code: "3", Label: "Office Spaces", Patch: &search.Filter{Type: search.PropertyTypeOffice}, Ack: "✅ Property type: *Office Spaces*"},
			{Code: "4", Label: "Land/Plots", Patch: &search.Filter{Type: search.PropertyTypeLand}, Ack: "✅ Property type: *Land/Plots*"},
			{Code: "5", Label: "All types", Patch: &search.Filter{}, Ack: "✅ Property type: *All types*"},
			{Code: "0", Label: "Back to main menu", Action: ActionReturnMain},
		},
	},
	session.MenuBedrooms: {
		Prompt: "🛏️ *SELECT NUMBER OF BEDROOMS*\n\n1. 1 Bedroom\n2. 2 Bedrooms\n3. 3 Bedrooms\n4. 4 Bedrooms\n5. 5+ Bedrooms\n6. Any number\n\n0. Back to main menu\n\nReply with your choice (1-6):",
		Options: []Option{
			{Code: "1", Label: "1 Bedroom", Patch: &search.Filter{Bedrooms: search.IntPtr(1)}, Ack: "✅ Bedrooms: *1 Bedroom*"},
			{Code: "2", Label: "2 Bedrooms", Patch: &search.Filter{Bedrooms: search.IntPtr(2)}, Ack: "✅ Bedrooms: *2 Bedrooms*"},
			{Code: "3", Label: "3 Bedrooms", Patch: &search.Filter{Bedrooms: search.IntPtr(3)}, Ack: "✅ Bedrooms: *3 Bedrooms*"},
			{Code: "4", Label: "4 Bedrooms", Patch: &search.Filter{Bedrooms: search.IntPtr(4)}, Ack: "✅ Bedrooms: *4 Bedrooms*"},
			{Code: "5", Label: "5+ Bedrooms", Patch: &search.Filter{Bedrooms: search.IntPtr(5)}, Ack: "✅ Bedrooms: *5+ Bedrooms*"},
			{Code: "6", Label: "Any number", Patch: &search.Filter{}, Ack: "✅ Bedrooms: *Any number*"},
			{Code: "0", Label: "Back to main menu", Action: ActionReturnMain},
		},
	},
	session.MenuLocation: {
		Prompt: "📍 *SELECT LOCATION*\n\n1. Lagos\n2. Abuja\n3. Port Harcourt\n4. Kano\n5. Ibadan\n6. All locations\n\n0. Back to main menu\n\nReply with your choice (1-6):",
		Options: []Option{
			{Code: "1", Label: "Lagos", Patch: &search.Filter{City: "Lagos"}, Ack: "✅ Location: *Lagos*"},
			{Code: "2", Label: "Abuja", Patch: &search.Filter{City: "Abuja"}, Ack: "✅ Location: *Abuja*"},
			{Code: "3", Label: "Port Harcourt", Patch: &search.Filter{City: "Port Harcourt"}, Ack: "✅ Location: *Port Harcourt*"},
			{Code: "4", Label: "Kano", Patch: &search.Filter{City: "Kano"}, Ack: "✅ Location: *Kano*"},
			{Code: "5", Label: "Ibadan", Patch: &search.Filter{City: "Ibadan"}, Ack: "✅ Location: *Ibadan*"},
			{Code: "6", Label: "All locations", Patch: &search.Filter{}, Ack: "✅ Location: *All locations*"},
			{Code: "0", Label: "Back to main menu", Action: ActionReturnMain},
		},
	},
	session.MenuPrice: {
		Prompt: "💰 *SELECT PRICE RANGE*\n\n1. Under ₦25M\n2. ₦25M - ₦50M\n3. ₦50M - ₦100M\n4. ₦100M - ₦200M\n5. Above ₦200M\n6. Any price\n\n0. Back to main menu\n\nReply with your choice (1-6):",
		Options: []Option{
			{Code: "1", Label: "Under ₦25M", Patch: &search.Filter{MaxPrice: search.Int64Ptr(25_000_000)}, Ack: "✅ Price range: *Under ₦25M*"},
			{Code: "2", Label: "₦25M - ₦50M", Patch: &search.Filter{MinPrice: search.Int64Ptr(25_000_000), MaxPrice: search.Int64Ptr(50_000_000)}, Ack: "✅ Price range: *₦25M - ₦50M*"},
			{Code: "3", Label: "₦50M - ₦100M", Patch: &search.Filter{MinPrice: search.Int64Ptr(50_000_000), MaxPrice: search.Int64Ptr(100_000_000)}, Ack: "✅ Price range: *₦50M - ₦100M*"},
			{Code: "4", Label: "₦100M - ₦200M", Patch: &search.Filter{MinPrice: search.Int64Ptr(100_000_000), MaxPrice: search.Int64Ptr(200_000_000)}, Ack: "✅ Price range: *₦100M - ₦200M*"},
			{Code: "5", Label: "Above ₦200M", Patch: &search.Filter{MinPrice: search.Int64Ptr(200_000_000)}, Ack: "✅ Price range: *Above ₦200M*"},
			{Code: "6", Label: "Any price", Patch: &search.Filter{}, Ack: "✅ Price range: *Any price*"},
			{Code: "0", Label: "Back to main menu", Action: ActionReturnMain},
		},
	},
	session.MenuPropertyDetails: {
		Prompt: "🎯 *What would you like to do?*\n\n1. Show interest in this property\n2. Schedule an inspection\n\n💡 Type *back* to return | Type *menu* for main menu",
		Options: []Option{
			{Code: "1", Label: "Show interest in this property", Action: ActionShowInterest},
			{Code: "2", Label: "Schedule an inspection", Action: ActionScheduleInspection},
		},
	},
}

// Lookup returns the option registered for a raw input token in the given menu.
// Tokens are trimmed and compared case-insensitively.
func Lookup(state session.MenuState, token string) (Option, bool) {
	menu, ok := catalog[state]
	if !ok {
		return Option{}, false
	}
	token = strings.ToLower(strings.TrimSpace(token))
	for _, opt := range menu.Options {
		if strings.ToLower(opt.Code) == token {
			return opt, true
		}
	}
	return Option{}, false
}

// Prompt returns the display text of a menu.
func Prompt(state session.MenuState) string {
	return catalog[state].Prompt
}

// OptionRefs returns the renderable option list of a menu.
func OptionRefs(state session.MenuState) []OptionRef {
	menu, ok := catalog[state]
	if !ok {
		return nil
	}
	refs := make([]OptionRef, 0, len(menu.Options))
	for _, opt := range menu.Options {
		refs = append(refs, OptionRef{Code: opt.Code, Label: opt.Label})
	}
	return refs
}

// Predecessor returns the menu one level back from state. Main is its own
// predecessor.
func Predecessor(state session.MenuState) session.MenuState {
	if prev, ok := predecessor[state]; ok {
		return prev
	}
	return session.MenuMain
}

// NextGuided returns the sub-menu following state in the guided sequence and
// whether state is the final step.
func NextGuided(state session.MenuState) (session.MenuState, bool) {
	next, ok := guidedNext[state]
	if !ok {
		return session.MenuMain, true
	}
	return next, false
}
