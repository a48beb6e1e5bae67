package search

import (
	"regexp"
	"strconv"
	"strings"
)

// Keyword tables driving extraction. Matching is case-insensitive and whole-word;
// a lone number with no qualifying keyword is never treated as a bedroom count or
// a price, so unrelated digits in a message cannot poison the filter.
var typeKeywords = []struct {
	words []string
	t     PropertyType
}{
	{[]string{"apartment", "apartments", "flat", "flats"}, PropertyTypeApartment},
	{[]string{"house", "houses", "duplex", "duplexes", "bungalow", "bungalows"}, PropertyTypeHouse},
	{[]string{"office", "offices", "commercial"}, PropertyTypeOffice},
	{[]string{"land", "plot", "plots"}, PropertyTypeLand},
}

// knownCities maps the lowercase form to the canonical display form.
var knownCities = []struct {
	match string
	city  string
}{
	{"port harcourt", "Port Harcourt"},
	{"lagos", "Lagos"},
	{"abuja", "Abuja"},
	{"kano", "Kano"},
	{"ibadan", "Ibadan"},
}

const amountPattern = `(\d+(?:,\d{3})*(?:\.\d+)?)\s*(million|thousand|m|k)?\b`

var (
	bedroomRe = regexp.MustCompile(`\b(\d+)\s*(?:bed|beds|bedroom|bedrooms|br)\b`)
	maxRe     = regexp.MustCompile(`\b(?:under|below|less\s+than)\s*(?:₦|naira|ngn)?\s*` + amountPattern)
	minRe     = regexp.MustCompile(`\b(?:above|over|more\s+than)\s*(?:₦|naira|ngn)?\s*` + amountPattern)
	betweenRe = regexp.MustCompile(`\bbetween\s*(?:₦|naira|ngn)?\s*` + amountPattern + `\s*(?:and|-|to)\s*(?:₦|naira|ngn)?\s*` + amountPattern)
	wordRe    = regexp.MustCompile(`[a-z]+`)
)

// Extract derives a partial Filter from free text. It is deterministic and
// side-effect free; an empty Filter means nothing was recognized, which is a
// legitimate result that tells the caller to fall back to the guided menus.
func Extract(text string) Filter {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Filter{}
	}

	var f Filter

	if m := bedroomRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 0 {
			f.Bedrooms = IntPtr(n)
		}
	}

	words := wordRe.FindAllString(lower, -1)
	wordSet := make(map[string]bool, len(words))
	for _, w := range words {
		wordSet[w] = true
	}

	for _, tk := range typeKeywords {
		for _, w := range tk.words {
			if wordSet[w] {
				f.Type = tk.t
				break
			}
		}
		if f.Type != PropertyTypeAny {
			break
		}
	}

	for _, c := range knownCities {
		if containsWholeWord(lower, c.match) {
			f.City = c.city
			break
		}
	}

	// "between X and Y" takes precedence over the single-bound patterns so that
	// the "and Y" half is not re-read as an unrelated bound.
	if m := betweenRe.FindStringSubmatch(lower); m != nil {
		lo := parseAmount(m[1], coalesceSuffix(m[2], m[4]))
		hi := parseAmount(m[3], m[4])
		if lo > 0 && hi > 0 {
			if lo > hi {
				lo, hi = hi, lo
			}
			f.MinPrice = Int64Ptr(lo)
			f.MaxPrice = Int64Ptr(hi)
		}
	} else {
		if m := maxRe.FindStringSubmatch(lower); m != nil {
			if v := parseAmount(m[1], m[2]); v > 0 {
				f.MaxPrice = Int64Ptr(v)
			}
		}
		if m := minRe.FindStringSubmatch(lower); m != nil {
			if v := parseAmount(m[1], m[2]); v > 0 {
				f.MinPrice = Int64Ptr(v)
			}
		}
	}

	return f
}

// parseAmount normalizes a matched number plus optional magnitude suffix into
// whole currency units.
func parseAmount(num, suffix string) int64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if err != nil || v <= 0 {
		return 0
	}
	switch suffix {
	case "million", "m":
		v *= 1_000_000
	case "thousand", "k":
		v *= 1_000
	}
	return int64(v + 0.5)
}

// coalesceSuffix lets "between 20 and 50 million" apply the trailing multiplier
// to both bounds.
func coalesceSuffix(own, fallback string) string {
	if own != "" {
		return own
	}
	return fallback
}

func containsWholeWord(text, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
