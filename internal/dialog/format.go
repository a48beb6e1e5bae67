package dialog

import (
	"fmt"
	"strings"

	"github.com/inspekta/propbot/internal/listings"
	"github.com/inspekta/propbot/internal/session"
)

// formatPrice renders a naira amount compactly, millions abbreviated.
func formatPrice(price int64) string {
	if price >= 1_000_000 {
		return fmt.Sprintf("₦%.1fM", float64(price)/1_000_000)
	}
	return fmt.Sprintf("₦%d", price)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// renderResults builds the search-results message for a non-empty result set.
func renderResults(props []listings.Property, description string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 *SEARCH RESULTS* for: *%s*\n\n", description)
	fmt.Fprintf(&b, "Found %d properties:\n\n", len(props))

	for i, p := range props {
		location := strings.Trim(strings.TrimSpace(p.City+", "+p.State), ", ")
		fmt.Fprintf(&b, "*%d. %s*\n", i+1, truncate(p.Title, 30))
		fmt.Fprintf(&b, "📍 %s\n", location)
		fmt.Fprintf(&b, "💰 %s | 🛏️ %dBR | 🏢 %s\n\n", formatPrice(p.Price), p.Bedrooms, titleCase(p.Type))
	}

	fmt.Fprintf(&b, "📱 Type *details <number>* (1-%d) to view a property\n", len(props))
	b.WriteString("💡 Type *menu* for main menu")
	return b.String()
}

// renderDetail builds the full property view plus its follow-up options.
func renderDetail(p *listings.Property) string {
	area := "Area not specified"
	if p.Area > 0 {
		area = fmt.Sprintf("%dsqm", p.Area)
	}
	rooms := "Rooms not specified"
	if p.Bedrooms > 0 {
		rooms = fmt.Sprintf("%dBR/%dBA", p.Bedrooms, p.Bathrooms)
	}
	desc := p.Description
	if desc == "" {
		desc = "No description available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏠 *%s*\n\n", p.Title)
	fmt.Fprintf(&b, "📍 *Location:* %s, %s, %s\n\n", p.Address, p.City, p.State)
	fmt.Fprintf(&b, "💰 *Price:* %s\n", formatPrice(p.Price))
	fmt.Fprintf(&b, "🏢 *Type:* %s\n", titleCase(p.Type))
	fmt.Fprintf(&b, "🛏️ *Rooms:* %s\n", rooms)
	fmt.Fprintf(&b, "📐 *Area:* %s\n\n", area)
	fmt.Fprintf(&b, "📝 *Description:*\n%s\n\n", truncate(desc, 200))
	b.WriteString(Prompt(session.MenuPropertyDetails))
	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
