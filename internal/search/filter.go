package search

import (
	"fmt"
	"strings"
)

// PropertyType enumerates the property categories a filter can constrain.
type PropertyType string

const (
	PropertyTypeAny       PropertyType = ""
	PropertyTypeApartment PropertyType = "APARTMENT"
	PropertyTypeHouse     PropertyType = "HOUSE"
	PropertyTypeOffice    PropertyType = "OFFICE"
	PropertyTypeLand      PropertyType = "LAND"
)

// Filter is a partially-populated set of property search criteria. Unset fields
// mean "no constraint"; an all-unset filter is a legitimate value and is distinct
// from a search that returned zero rows.
type Filter struct {
	Type     PropertyType `json:"type,omitempty"`
	Bedrooms *int         `json:"bedrooms,omitempty"`
	City     string       `json:"city,omitempty"`
	MinPrice *int64       `json:"min_price,omitempty"`
	MaxPrice *int64       `json:"max_price,omitempty"`
}

// IsEmpty reports whether no field is set.
func (f Filter) IsEmpty() bool {
	return f.Type == PropertyTypeAny &&
		f.Bedrooms == nil &&
		f.City == "" &&
		f.MinPrice == nil &&
		f.MaxPrice == nil
}

// FieldCount returns the number of set fields. The session snapshot reports this
// instead of the filter contents.
func (f Filter) FieldCount() int {
	n := 0
	if f.Type != PropertyTypeAny {
		n++
	}
	if f.Bedrooms != nil {
		n++
	}
	if f.City != "" {
		n++
	}
	if f.MinPrice != nil {
		n++
	}
	if f.MaxPrice != nil {
		n++
	}
	return n
}

// Merge returns a copy of f with every set field of other applied over it.
// Fields other leaves unset are preserved, so refinements accumulate across turns.
func (f Filter) Merge(other Filter) Filter {
	merged := f
	if other.Type != PropertyTypeAny {
		merged.Type = other.Type
	}
	if other.Bedrooms != nil {
		merged.Bedrooms = other.Bedrooms
	}
	if other.City != "" {
		merged.City = other.City
	}
	if other.MinPrice != nil {
		merged.MinPrice = other.MinPrice
	}
	if other.MaxPrice != nil {
		merged.MaxPrice = other.MaxPrice
	}
	return merged
}

// String renders a human-readable summary of the set fields, used in search
// result headers. An empty filter reads as "all properties".
func (f Filter) String() string {
	if f.IsEmpty() {
		return "all properties"
	}
	parts := make([]string, 0, 5)
	if f.Bedrooms != nil {
		parts = append(parts, fmt.Sprintf("%d bedroom", *f.Bedrooms))
	}
	if f.Type != PropertyTypeAny {
		parts = append(parts, strings.ToLower(string(f.Type)))
	}
	if f.City != "" {
		parts = append(parts, "in "+f.City)
	}
	switch {
	case f.MinPrice != nil && f.MaxPrice != nil:
		parts = append(parts, fmt.Sprintf("₦%s - ₦%s", compactAmount(*f.MinPrice), compactAmount(*f.MaxPrice)))
	case f.MaxPrice != nil:
		parts = append(parts, "under ₦"+compactAmount(*f.MaxPrice))
	case f.MinPrice != nil:
		parts = append(parts, "above ₦"+compactAmount(*f.MinPrice))
	}
	return strings.Join(parts, " ")
}

func compactAmount(v int64) string {
	switch {
	case v >= 1_000_000 && v%100_000 == 0:
		return strings.TrimSuffix(fmt.Sprintf("%.1f", float64(v)/1_000_000), ".0") + "M"
	case v >= 1_000 && v%1_000 == 0:
		return fmt.Sprintf("%dK", v/1_000)
	default:
		return fmt.Sprintf("%d", v)
	}
}

// IntPtr is a convenience for building filters in menu tables and tests.
func IntPtr(v int) *int { return &v }

// Int64Ptr is a convenience for building filters in menu tables and tests.
func Int64Ptr(v int64) *int64 { return &v }
