package registry

import (
	"errors"
	"testing"
)

func sample() []LocationSummary {
	return []LocationSummary{
		{ID: "smyrna", Name: "Aire Serv of Smyrna", GoogleRating: "4.6 (324)", InboundCalls: 412, MissedCalls: 35, SalesCalls: 245, ServiceCalls: 89, OtherCalls: 43},
		{ID: "snellville", Name: "Aire Serv of Snellville", GoogleRating: "4.9 (198)", InboundCalls: 245, MissedCalls: 8, SalesCalls: 156, ServiceCalls: 67, OtherCalls: 14},
	}
}

func TestNewPreservesOrderAndLookup(t *testing.T) {
	r, err := New(sample())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	all := r.All()
	if len(all) != 2 || all[0].ID != "smyrna" || all[1].ID != "snellville" {
		t.Fatalf("unexpected order: %+v", all)
	}
	loc, ok := r.Lookup("snellville")
	if !ok || loc.Name != "Aire Serv of Snellville" {
		t.Fatalf("lookup failed: %+v %v", loc, ok)
	}
	if _, ok := r.Lookup("nowhere"); ok {
		t.Fatalf("expected lookup miss")
	}
	if r.TotalInbound() != 657 {
		t.Fatalf("unexpected total inbound %d", r.TotalInbound())
	}
}

func TestAllReturnsCopy(t *testing.T) {
	r, err := New(sample())
	if err != nil {
		t.Fatal(err)
	}
	all := r.All()
	all[0].Name = "changed"
	if loc, _ := r.Lookup("smyrna"); loc.Name != "Aire Serv of Smyrna" {
		t.Fatalf("registry mutated through All(): %q", loc.Name)
	}
}

func TestNewRejectsDuplicatesAndEmptyIDs(t *testing.T) {
	dup := append(sample(), LocationSummary{ID: "smyrna"})
	if _, err := New(dup); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := New([]LocationSummary{{ID: "  "}}); !errors.Is(err, ErrEmptyID) {
		t.Fatalf("expected empty id error, got %v", err)
	}
	if _, err := New([]LocationSummary{{ID: "x", MissedCalls: -1}}); !errors.Is(err, ErrNegative) {
		t.Fatalf("expected negative counter error, got %v", err)
	}
}

func TestInconsistenciesAreTolerated(t *testing.T) {
	locs := sample()
	// 35+245+89+43 = 412 fits; push smyrna over the total.
	locs[0].OtherCalls = 44
	r, err := New(locs)
	if err != nil {
		t.Fatalf("inconsistent counters must not fail: %v", err)
	}
	got := r.Inconsistencies()
	if len(got) != 1 || got[0] != "smyrna" {
		t.Fatalf("unexpected inconsistencies %v", got)
	}
}
