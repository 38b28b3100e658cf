package navigation

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callpulse/internal/registry"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]registry.LocationSummary{
		{ID: "smyrna", Name: "Aire Serv of Smyrna", GoogleRating: "4.6 (324)", AverageCallScore: 3.8, InboundCalls: 412, MissedCalls: 35, SalesCalls: 245, ServiceCalls: 89, OtherCalls: 43},
		{ID: "snellville", Name: "Aire Serv of Snellville", GoogleRating: "4.9 (198)", AverageCallScore: 4.7, InboundCalls: 245, MissedCalls: 8, SalesCalls: 156, ServiceCalls: 67, OtherCalls: 14},
		{ID: "savannah", Name: "Aire Serv of Savannah", GoogleRating: "4.5 (289)", AverageCallScore: 4.1, InboundCalls: 223, MissedCalls: 18, SalesCalls: 134, ServiceCalls: 52, OtherCalls: 19},
	})
	require.NoError(t, err)
	return reg
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func TestSmyrnaScenario(t *testing.T) {
	h := NewHolder(testRegistry(t), nil, Chrome{DarkMode: true})

	require.NoError(t, h.SelectLocation("smyrna"))
	st := h.Snapshot()
	assert.Equal(t, PageLocations, st.ActivePage)
	require.NotNil(t, st.Selected)
	assert.Equal(t, "Aire Serv of Smyrna", st.Selected.Location)
	assert.Equal(t, 412, st.Selected.TotalCalls)

	h.ClearSelection()
	st = h.Snapshot()
	assert.Equal(t, PagePortfolio, st.ActivePage)
	assert.Nil(t, st.Selected)
	assert.Equal(t, OriginNone, st.Origin)
}

func TestClearSelectionIsIdempotent(t *testing.T) {
	h := NewHolder(testRegistry(t), nil, Chrome{})
	require.NoError(t, h.SelectLocation("savannah"))
	h.ClearSelection()
	once := h.Snapshot()
	h.ClearSelection()
	twice := h.Snapshot()
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("second clear changed state (-once +twice):\n%s", diff)
	}
}

func TestPageSwitchClearsDrillDown(t *testing.T) {
	pages := append(append([]Page{}, Pages...), Page("unknown"))
	for _, page := range pages {
		t.Run(string(page), func(t *testing.T) {
			h := NewHolder(testRegistry(t), nil, Chrome{})
			require.NoError(t, h.SelectLocation("smyrna"))
			require.NoError(t, h.UpdateChrome(ActionToggleSidebar, ""))
			require.True(t, h.Snapshot().Chrome.SidebarOpen)

			h.SetActivePage(page)
			st := h.Snapshot()
			assert.Nil(t, st.Selected)
			assert.Equal(t, page, st.ActivePage)
			assert.False(t, st.Chrome.SidebarOpen, "page switch must close the mobile overlay")
		})
	}
}

func TestLookupMissLeavesStateUnchanged(t *testing.T) {
	rec := &recorder{}
	h := NewHolder(testRegistry(t), rec, Chrome{})
	require.NoError(t, h.SelectLocation("snellville"))
	before := h.Snapshot()

	err := h.SelectLocation("nonexistent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocationNotFound))
	if diff := cmp.Diff(before, h.Snapshot()); diff != "" {
		t.Fatalf("state changed on miss:\n%s", diff)
	}

	err = h.ViewFromOverview("also-missing")
	assert.ErrorIs(t, err, ErrLocationNotFound)
	assert.Equal(t, []EventKind{EventLocationSelected, EventLookupMiss, EventLookupMiss}, rec.kinds())
}

func TestRoundTripFieldMapping(t *testing.T) {
	reg := testRegistry(t)
	for _, summary := range reg.All() {
		h := NewHolder(reg, nil, Chrome{})
		require.NoError(t, h.SelectLocation(summary.ID))
		got := h.Snapshot().Selected
		require.NotNil(t, got)
		want := LocationDetail{
			ID:           summary.ID,
			Location:     summary.Name,
			GoogleRating: summary.GoogleRating,
			TotalCalls:   summary.InboundCalls,
			MissedCalls:  summary.MissedCalls,
			SalesCalls:   summary.SalesCalls,
			ServiceCalls: summary.ServiceCalls,
			OtherCalls:   summary.OtherCalls,
		}
		if diff := cmp.Diff(want, *got); diff != "" {
			t.Fatalf("%s mapping mismatch:\n%s", summary.ID, diff)
		}
	}
}

func TestBackReturnsToOrigin(t *testing.T) {
	reg := testRegistry(t)

	fromPortfolio := NewHolder(reg, nil, Chrome{})
	require.NoError(t, fromPortfolio.SelectLocation("smyrna"))
	assert.Equal(t, BackToPortfolio, fromPortfolio.Panel().Back)
	assert.Equal(t, BackToPortfolio, fromPortfolio.Back())
	st := fromPortfolio.Snapshot()
	assert.Equal(t, PagePortfolio, st.ActivePage)
	assert.Nil(t, st.Selected)

	fromOverview := NewHolder(reg, nil, Chrome{})
	fromOverview.SetActivePage(PageLocations)
	require.NoError(t, fromOverview.ViewFromOverview("savannah"))
	assert.Equal(t, BackToLocationsOverview, fromOverview.Panel().Back)
	assert.Equal(t, BackToLocationsOverview, fromOverview.Back())
	st = fromOverview.Snapshot()
	assert.Equal(t, PageLocations, st.ActivePage)
	assert.Nil(t, st.Selected)
	assert.Equal(t, PanelLocationsOverview, fromOverview.Panel().Kind)

	assert.Equal(t, BackNone, fromOverview.Back(), "back without selection is a no-op")
}

func TestPortfolioSelectionTakesPrecedenceOverOverview(t *testing.T) {
	rec := &recorder{}
	h := NewHolder(testRegistry(t), rec, Chrome{})
	require.NoError(t, h.SelectLocation("smyrna"))

	err := h.ViewFromOverview("savannah")
	assert.ErrorIs(t, err, ErrSelectionOverridden)
	st := h.Snapshot()
	require.NotNil(t, st.Selected)
	assert.Equal(t, "smyrna", st.Selected.ID)
	assert.Equal(t, OriginPortfolio, st.Origin)
	assert.Contains(t, rec.kinds(), EventSelectionOverridden)
}

func TestOverviewSelectionCanBeReplaced(t *testing.T) {
	h := NewHolder(testRegistry(t), nil, Chrome{})
	require.NoError(t, h.ViewFromOverview("savannah"))
	require.NoError(t, h.ViewFromOverview("snellville"))
	assert.Equal(t, "snellville", h.Snapshot().Selected.ID)

	require.NoError(t, h.SelectLocation("smyrna"))
	st := h.Snapshot()
	assert.Equal(t, "smyrna", st.Selected.ID)
	assert.Equal(t, OriginPortfolio, st.Origin)
}

func TestClearSelectionKeepPage(t *testing.T) {
	h := NewHolder(testRegistry(t), nil, Chrome{})
	require.NoError(t, h.ViewFromOverview("savannah"))
	h.ClearSelectionKeepPage()
	st := h.Snapshot()
	assert.Equal(t, PageLocations, st.ActivePage)
	assert.Nil(t, st.Selected)
}

func TestSnapshotIsDetached(t *testing.T) {
	h := NewHolder(testRegistry(t), nil, Chrome{})
	require.NoError(t, h.SelectLocation("smyrna"))
	st := h.Snapshot()
	st.Selected.Location = "mutated"
	assert.Equal(t, "Aire Serv of Smyrna", h.Snapshot().Selected.Location)
}

func TestResetRestoresInitialState(t *testing.T) {
	h := NewHolder(testRegistry(t), nil, Chrome{DarkMode: true})
	initial := h.Snapshot()
	require.NoError(t, h.SelectLocation("smyrna"))
	require.NoError(t, h.UpdateChrome(ActionToggleTheme, ""))
	h.SetDateRange("Last 7 Days")
	h.Reset()
	if diff := cmp.Diff(initial, h.Snapshot()); diff != "" {
		t.Fatalf("reset mismatch:\n%s", diff)
	}
}

func TestConcurrentTransitionsKeepInvariant(t *testing.T) {
	h := NewHolder(testRegistry(t), nil, Chrome{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				switch (i + j) % 4 {
				case 0:
					_ = h.SelectLocation("smyrna")
				case 1:
					h.SetActivePage(PageReports)
				case 2:
					h.ClearSelection()
				default:
					_ = h.ViewFromOverview("savannah")
				}
				st := h.Snapshot()
				if (st.Selected == nil) != (st.Origin == OriginNone) {
					t.Errorf("selection/origin out of sync: %+v", st)
					return
				}
				if st.Selected != nil && st.ActivePage != PageLocations {
					t.Errorf("selection visible under page %q", st.ActivePage)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
