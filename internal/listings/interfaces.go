package listings

import (
	"context"
	"errors"

	"github.com/inspekta/propbot/internal/search"
)

// ErrNotFound is returned by GetDetails for an unknown listing id.
var ErrNotFound = errors.New("listing not found")

// Gateway executes structured filters against the property store. The dialogue
// engine consumes this boundary; any gateway error is reported to the user as a
// soft failure, never a crash.
type Gateway interface {
	Search(ctx context.Context, filter search.Filter, limit int) ([]Property, error)
	GetDetails(ctx context.Context, propertyID string) (*Property, error)
}
