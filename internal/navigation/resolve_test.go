package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSelectionTakesPrecedence(t *testing.T) {
	loc := &LocationDetail{ID: "smyrna", Location: "Aire Serv of Smyrna", TotalCalls: 412}
	pages := []Page{PagePortfolio, PageLocations, PageReports, PageSettings, "", "bogus"}
	for _, page := range pages {
		for _, origin := range []Origin{OriginPortfolio, OriginLocations, OriginNone} {
			st := State{ActivePage: page, Selected: loc, Origin: origin}
			got := Resolve(st)
			assert.Equal(t, PanelLocationDetail, got.Kind, "page=%q origin=%q", page, origin)
			assert.Equal(t, *loc, got.Location)
		}
	}
}

func TestResolveDispatchesOnPage(t *testing.T) {
	cases := map[Page]PanelKind{
		PagePortfolio: PanelPortfolio,
		PageLocations: PanelLocationsOverview,
		PageReports:   PanelPortfolio,
		PageSettings:  PanelPortfolio,
		"":            PanelPortfolio,
		"bogus":       PanelPortfolio,
	}
	for page, want := range cases {
		got := Resolve(State{ActivePage: page})
		assert.Equal(t, want, got.Kind, "page %q", page)
		assert.False(t, got.HasLocation())
		assert.Equal(t, BackNone, got.Back)
	}
}

func TestResolveIsReferentiallyTransparent(t *testing.T) {
	st := State{ActivePage: PageLocations, Selected: &LocationDetail{ID: "savannah"}, Origin: OriginLocations}
	first := Resolve(st)
	second := Resolve(st.Clone())
	if first != second {
		t.Fatalf("resolve not deterministic: %+v vs %+v", first, second)
	}
	assert.Equal(t, BackToLocationsOverview, first.Back)
	assert.Equal(t, "Back to Locations Overview", first.Back.Label())
}

func TestBackLabelByOrigin(t *testing.T) {
	st := State{ActivePage: PageLocations, Selected: &LocationDetail{ID: "smyrna"}, Origin: OriginPortfolio}
	assert.Equal(t, "Back to Portfolio Dashboard", Resolve(st).Back.Label())
	assert.Equal(t, "", BackNone.Label())
}

func TestEffectiveSelection(t *testing.T) {
	ext := &LocationDetail{ID: "ext"}
	local := &LocationDetail{ID: "local"}
	assert.Same(t, ext, EffectiveSelection(ext, local))
	assert.Same(t, local, EffectiveSelection(nil, local))
	assert.Nil(t, EffectiveSelection(nil, nil))
}

func TestParsePage(t *testing.T) {
	assert.Equal(t, PageLocations, ParsePage("  Locations "))
	assert.False(t, PageReports.Implemented())
	assert.Equal(t, Page("help center"), ParsePage("Help Center"), "unknown pages are kept for the resolver")
}

func TestApplyChromeAction(t *testing.T) {
	c, err := ApplyChromeAction(Chrome{}, ActionOpenDrawer, "help")
	assert.NoError(t, err)
	assert.Equal(t, DrawerHelp, c.Drawer)

	_, err = ApplyChromeAction(c, ActionOpenDrawer, "billing")
	assert.ErrorIs(t, err, ErrUnknownChromeAction)

	c, err = ApplyChromeAction(c, ActionCloseDrawer, "")
	assert.NoError(t, err)
	assert.Equal(t, DrawerNone, c.Drawer)

	c, _ = ApplyChromeAction(c, ActionToggleTheme, "")
	assert.True(t, c.DarkMode)

	_, err = ApplyChromeAction(c, "explode", "")
	assert.ErrorIs(t, err, ErrUnknownChromeAction)
}

func TestOnlyStateChangesCountAsTransitions(t *testing.T) {
	for kind, want := range map[EventKind]bool{
		EventPageChanged:         true,
		EventLocationSelected:    true,
		EventSelectionCleared:    true,
		EventLookupMiss:          false,
		EventSelectionOverridden: false,
		EventReset:               false,
	} {
		assert.Equal(t, want, kind.Transition(), kind)
	}
}
