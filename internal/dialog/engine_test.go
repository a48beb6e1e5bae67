package dialog

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inspekta/propbot/internal/listings"
	"github.com/inspekta/propbot/internal/search"
	"github.com/inspekta/propbot/internal/session"
)

// fakeGateway records the last filter it was asked to run and serves canned
// results.
type fakeGateway struct {
	mu          sync.Mutex
	results     []listings.Property
	searchErr   error
	lastFilter  search.Filter
	searchCalls int
	byID        map[string]*listings.Property
	detailsErr  error
}

func (g *fakeGateway) Search(_ context.Context, filter search.Filter, _ int) ([]listings.Property, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastFilter = filter
	g.searchCalls++
	if g.searchErr != nil {
		return nil, g.searchErr
	}
	return g.results, nil
}

func (g *fakeGateway) GetDetails(_ context.Context, id string) (*listings.Property, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.detailsErr != nil {
		return nil, g.detailsErr
	}
	p, ok := g.byID[id]
	if !ok {
		return nil, listings.ErrNotFound
	}
	return p, nil
}

func sampleProperties() []listings.Property {
	return []listings.Property{
		{ID: "p1", Title: "Luxury 3BR Apartment", Type: "APARTMENT", Bedrooms: 3, Bathrooms: 3, Price: 45_000_000, City: "Lagos", State: "Lagos", Address: "12 Admiralty Way"},
		{ID: "p2", Title: "Modern Duplex", Type: "HOUSE", Bedrooms: 4, Bathrooms: 5, Price: 120_000_000, City: "Lagos", State: "Lagos", Address: "4 Banana Island Rd"},
	}
}

func newTestEngine(t *testing.T, gw *fakeGateway) (*Engine, *session.Arena) {
	t.Helper()
	arena := session.NewArena(session.Options{}, zap.NewNop())
	return NewEngine(arena, gw, 5, zap.NewNop()), arena
}

func TestEngineGreetingAndMenu(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{results: sampleProperties()}
	engine, arena := newTestEngine(t, gw)

	t.Run("GreetingShowsMainMenuWithName", func(t *testing.T) {
		d, err := engine.HandleMessage(ctx, "u1", "Ada", "Hello")
		require.NoError(t, err)

		assert.Equal(t, KindGreeting, d.Kind)
		assert.Contains(t, d.Text, "Hi Ada")
		assert.Contains(t, d.Text, "INSPEKTA PROPERTY SEARCH")
		assert.Len(t, d.Options, 8)
	})

	t.Run("MenuCommandResetsMidFlow", func(t *testing.T) {
		_, err := engine.HandleMessage(ctx, "u1", "", "5")
		require.NoError(t, err)
		s, err := arena.GetOrCreate(ctx, "u1", "")
		require.NoError(t, err)
		require.Equal(t, session.MenuPropertyType, s.Menu)

		d, err := engine.HandleMessage(ctx, "u1", "", "menu")
		require.NoError(t, err)
		assert.Equal(t, KindMenu, d.Kind)

		s, err = arena.GetOrCreate(ctx, "u1", "")
		require.NoError(t, err)
		assert.Equal(t, session.MenuMain, s.Menu)
		assert.True(t, s.Filter.IsEmpty())
	})

	t.Run("BackAtMainStaysAtMain", func(t *testing.T) {
		d, err := engine.HandleMessage(ctx, "u1", "", "back")
		require.NoError(t, err)

		assert.Equal(t, KindMenu, d.Kind)
		assert.Contains(t, d.Text, "No previous step")
	})

	t.Run("GreetingIsCaseInsensitive", func(t *testing.T) {
		d, err := engine.HandleMessage(ctx, "u1", "", "  GOOD MORNING  ")
		require.NoError(t, err)
		assert.Equal(t, KindGreeting, d.Kind)
	})
}

func TestEngineGuidedFlow(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{results: sampleProperties()}
	engine, arena := newTestEngine(t, gw)

	steps := []struct {
		input    string
		wantKind Kind
		wantMenu session.MenuState
	}{
		{"5", KindMenu, session.MenuPropertyType},
		{"1", KindMenu, session.MenuBedrooms},
		{"3", KindMenu, session.MenuLocation},
		{"1", KindMenu, session.MenuPrice},
	}
	for _, step := range steps {
		d, err := engine.HandleMessage(ctx, "guided", "", step.input)
		require.NoError(t, err)
		require.Equal(t, step.wantKind, d.Kind, "input %q", step.input)

		s, err := arena.GetOrCreate(ctx, "guided", "")
		require.NoError(t, err)
		require.Equal(t, step.wantMenu, s.Menu, "input %q", step.input)
	}

	// Price is the final step: choosing a range runs the accumulated search.
	d, err := engine.HandleMessage(ctx, "guided", "", "2")
	require.NoError(t, err)
	assert.Equal(t, KindResults, d.Kind)
	assert.Contains(t, d.Text, "SEARCH RESULTS")

	got := gw.lastFilter
	assert.Equal(t, search.PropertyTypeApartment, got.Type)
	require.NotNil(t, got.Bedrooms)
	assert.Equal(t, 3, *got.Bedrooms)
	assert.Equal(t, "Lagos", got.City)
	require.NotNil(t, got.MinPrice)
	assert.Equal(t, int64(25_000_000), *got.MinPrice)
	require.NotNil(t, got.MaxPrice)
	assert.Equal(t, int64(50_000_000), *got.MaxPrice)

	s, err := arena.GetOrCreate(ctx, "guided", "")
	require.NoError(t, err)
	assert.Equal(t, session.MenuMain, s.Menu, "completed search returns to main")
	assert.Equal(t, []string{"p1", "p2"}, s.LastResults)
	assert.Equal(t, "Lagos", s.Filter.City, "filter survives for follow-up refinement")
}

func TestEngineGuidedZeroReturnsToMain(t *testing.T) {
	ctx := context.Background()
	engine, arena := newTestEngine(t, &fakeGateway{})

	_, err := engine.HandleMessage(ctx, "u", "", "6")
	require.NoError(t, err)
	_, err = engine.HandleMessage(ctx, "u", "", "0")
	require.NoError(t, err)

	s, err := arena.GetOrCreate(ctx, "u", "")
	require.NoError(t, err)
	assert.Equal(t, session.MenuMain, s.Menu)
	assert.True(t, s.Filter.IsEmpty())
}

func TestEngineQuickSearch(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{results: sampleProperties()}
	engine, _ := newTestEngine(t, gw)

	t.Run("UnderFiftyMillion", func(t *testing.T) {
		d, err := engine.HandleMessage(ctx, "quick", "", "2")
		require.NoError(t, err)

		assert.Equal(t, KindResults, d.Kind)
		require.NotNil(t, gw.lastFilter.MaxPrice)
		assert.Equal(t, int64(50_000_000), *gw.lastFilter.MaxPrice)
	})

	t.Run("AllProperties", func(t *testing.T) {
		_, err := engine.HandleMessage(ctx, "quick2", "", "1")
		require.NoError(t, err)
		assert.True(t, gw.lastFilter.IsEmpty())
	})

	t.Run("CityPreset", func(t *testing.T) {
		_, err := engine.HandleMessage(ctx, "quick3", "", "4")
		require.NoError(t, err)
		assert.Equal(t, "Abuja", gw.lastFilter.City)
	})
}

func TestEngineNaturalLanguage(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{results: sampleProperties()}
	engine, arena := newTestEngine(t, gw)

	d, err := engine.HandleMessage(ctx, "nl", "", "3 bedroom apartments in Lagos")
	require.NoError(t, err)
	require.Equal(t, KindResults, d.Kind)

	// A follow-up refinement merges into the saved filter.
	d, err = engine.HandleMessage(ctx, "nl", "", "under 50 million naira")
	require.NoError(t, err)
	require.Equal(t, KindResults, d.Kind)

	got := gw.lastFilter
	assert.Equal(t, search.PropertyTypeApartment, got.Type)
	assert.Equal(t, "Lagos", got.City)
	require.NotNil(t, got.Bedrooms)
	assert.Equal(t, 3, *got.Bedrooms)
	require.NotNil(t, got.MaxPrice)
	assert.Equal(t, int64(50_000_000), *got.MaxPrice)

	s, err := arena.GetOrCreate(ctx, "nl", "")
	require.NoError(t, err)
	assert.Equal(t, 4, s.Filter.FieldCount())
}

func TestEngineNoResults(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{results: nil}
	engine, arena := newTestEngine(t, gw)

	d, err := engine.HandleMessage(ctx, "empty", "", "houses in Kano")
	require.NoError(t, err)

	assert.Equal(t, KindNoResults, d.Kind)
	assert.Contains(t, d.Text, "No properties found")

	s, err := arena.GetOrCreate(ctx, "empty", "")
	require.NoError(t, err)
	assert.NotNil(t, s.LastResults)
	assert.Empty(t, s.LastResults, "zero rows clears the cached result ids")
}

func TestEngineGatewayFailure(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{searchErr: fmt.Errorf("connection refused")}
	engine, arena := newTestEngine(t, gw)

	_, err := engine.HandleMessage(ctx, "flaky", "", "7")
	require.NoError(t, err)

	d, err := engine.HandleMessage(ctx, "flaky", "", "1")
	require.NoError(t, err)
	assert.Equal(t, KindSoftFailure, d.Kind)
	assert.Contains(t, d.Text, "temporarily unavailable")

	// State and filter are untouched so a bare retry can succeed.
	s, err := arena.GetOrCreate(ctx, "flaky", "")
	require.NoError(t, err)
	assert.Equal(t, session.MenuPrice, s.Menu)

	gw.mu.Lock()
	gw.searchErr = nil
	gw.results = sampleProperties()
	gw.mu.Unlock()

	d, err = engine.HandleMessage(ctx, "flaky", "", "1")
	require.NoError(t, err)
	assert.Equal(t, KindResults, d.Kind)
}

func TestEngineDetailsFlow(t *testing.T) {
	ctx := context.Background()
	props := sampleProperties()
	gw := &fakeGateway{
		results: props,
		byID:    map[string]*listings.Property{"p1": &props[0], "p2": &props[1]},
	}
	engine, arena := newTestEngine(t, gw)

	_, err := engine.HandleMessage(ctx, "viewer", "", "3")
	require.NoError(t, err)

	t.Run("DetailsOutOfRange", func(t *testing.T) {
		d, err := engine.HandleMessage(ctx, "viewer", "", "details 9")
		require.NoError(t, err)
		assert.Equal(t, KindError, d.Kind)
		assert.Contains(t, d.Text, "between 1 and 2")
	})

	t.Run("DetailsByIndex", func(t *testing.T) {
		d, err := engine.HandleMessage(ctx, "viewer", "", "details 2")
		require.NoError(t, err)

		assert.Equal(t, KindDetail, d.Kind)
		assert.Contains(t, d.Text, "Modern Duplex")

		s, err := arena.GetOrCreate(ctx, "viewer", "")
		require.NoError(t, err)
		assert.Equal(t, session.MenuPropertyDetails, s.Menu)
	})

	t.Run("ShowInterest", func(t *testing.T) {
		d, err := engine.HandleMessage(ctx, "viewer", "", "1")
		require.NoError(t, err)
		assert.Equal(t, KindAck, d.Kind)
		assert.Contains(t, d.Text, "Interest Recorded")
	})

	t.Run("BackReturnsToMain", func(t *testing.T) {
		_, err := engine.HandleMessage(ctx, "viewer", "", "back")
		require.NoError(t, err)

		s, err := arena.GetOrCreate(ctx, "viewer", "")
		require.NoError(t, err)
		assert.Equal(t, session.MenuMain, s.Menu)
	})

	t.Run("ViewAlias", func(t *testing.T) {
		d, err := engine.HandleMessage(ctx, "viewer", "", "view 1")
		require.NoError(t, err)
		assert.Equal(t, KindDetail, d.Kind)
		assert.Contains(t, d.Text, "Luxury 3BR Apartment")
	})
}

func TestEngineQuitEndsSession(t *testing.T) {
	ctx := context.Background()
	engine, arena := newTestEngine(t, &fakeGateway{})

	_, err := engine.HandleMessage(ctx, "leaver", "", "8")
	require.NoError(t, err)
	require.Equal(t, 1, arena.Len())

	d, err := engine.HandleMessage(ctx, "leaver", "", "quit")
	require.NoError(t, err)
	assert.Equal(t, KindEnd, d.Kind)
	assert.Equal(t, 0, arena.Len())

	// The next message starts over at the main menu.
	d, err = engine.HandleMessage(ctx, "leaver", "", "hi")
	require.NoError(t, err)
	assert.Equal(t, KindGreeting, d.Kind)
}

func TestEngineUnrecognizedInput(t *testing.T) {
	ctx := context.Background()
	engine, arena := newTestEngine(t, &fakeGateway{})

	for i := 0; i < 3; i++ {
		d, err := engine.HandleMessage(ctx, "confused", "", "99")
		require.NoError(t, err)
		assert.Equal(t, KindError, d.Kind)
		assert.Contains(t, d.Text, "Unrecognized input")
	}

	s, err := arena.GetOrCreate(ctx, "confused", "")
	require.NoError(t, err)
	assert.Equal(t, session.MenuMain, s.Menu, "repeats leave the state unchanged")
}

func TestEngineHistoryRecorded(t *testing.T) {
	ctx := context.Background()
	engine, arena := newTestEngine(t, &fakeGateway{})

	_, err := engine.HandleMessage(ctx, "hist", "", "hello")
	require.NoError(t, err)

	s, err := arena.GetOrCreate(ctx, "hist", "")
	require.NoError(t, err)
	require.Len(t, s.History, 2)
	assert.Equal(t, session.RoleUser, s.History[0].Role)
	assert.Equal(t, "hello", s.History[0].Text)
	assert.Equal(t, session.RoleBot, s.History[1].Role)
}

func TestEngineEmptyIdentity(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, &fakeGateway{})

	_, err := engine.HandleMessage(ctx, "", "", "hi")
	assert.Error(t, err)
}
