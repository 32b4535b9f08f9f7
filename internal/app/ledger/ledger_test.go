package ledger

import (
	"testing"

	"github.com/ecotree-app/ecotree/internal/domain"
	"github.com/ecotree-app/ecotree/internal/infra/docstore"
)

func newService(t *testing.T) (*Service, domain.Store) {
	t.Helper()
	store, err := docstore.New(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	return NewService(store), store
}

func TestAppendAssignsIDs(t *testing.T) {
	svc, _ := newService(t)

	ev, err := svc.Append(domain.Event{ChildID: "child1", ActionID: "crane", Credited: 1, Timestamp: "2024-03-05T08:00:00.000000"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ev.ID != "ev_1_child1_crane" {
		t.Errorf("interaction id = %q, want ev_1_child1_crane", ev.ID)
	}

	adj, err := svc.Append(domain.Event{ChildID: "child1", ActionID: domain.ActionBalanceAdjust, Credited: -5, Timestamp: "2024-03-05T09:00:00.000000"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if adj.ID != "adj_child1_2" {
		t.Errorf("adjustment id = %q, want adj_child1_2", adj.ID)
	}

	all, err := svc.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("log has %d events, want 2", len(all))
	}
}

func TestAppendIDsStayUniqueAfterCascade(t *testing.T) {
	svc, _ := newService(t)

	for _, childID := range []string{"child1", "child2"} {
		if _, err := svc.Append(domain.Event{ChildID: childID, ActionID: "crane", Credited: 1, Timestamp: "2024-03-05T08:00:00.000000"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := svc.DeleteForChild("child1"); err != nil {
		t.Fatal(err)
	}

	// The log shrank to one event; the next id must not reuse the
	// surviving event's counter.
	ev, err := svc.Append(domain.Event{ChildID: "child2", ActionID: "crane", Credited: 1, Timestamp: "2024-03-05T09:00:00.000000"})
	if err != nil {
		t.Fatal(err)
	}
	if ev.ID != "ev_3_child2_crane" {
		t.Errorf("id = %q, want ev_3_child2_crane", ev.ID)
	}

	all, err := svc.All()
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, e := range all {
		if seen[e.ID] {
			t.Errorf("duplicate event id %q in the ledger", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestAppendSeqSpansAdjustments(t *testing.T) {
	svc, _ := newService(t)

	if _, err := svc.Append(domain.Event{ChildID: "child1", ActionID: domain.ActionBalanceAdjust, Credited: 5, Timestamp: "2024-03-05T08:00:00.000000"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteForChild("nobody"); err != nil {
		t.Fatal(err)
	}
	ev, err := svc.Append(domain.Event{ChildID: "child2", ActionID: "crane", Credited: 1, Timestamp: "2024-03-05T09:00:00.000000"})
	if err != nil {
		t.Fatal(err)
	}
	// the counter continues past the adjustment id's suffix
	if ev.ID != "ev_2_child2_crane" {
		t.Errorf("id = %q, want ev_2_child2_crane", ev.ID)
	}
}

func seedQueryFixture(t *testing.T, svc *Service) {
	t.Helper()
	rows := []domain.Event{
		{ChildID: "child1", ActionID: "crane", Credited: 1, Timestamp: "2024-03-01T10:00:00.000000"},
		{ChildID: "child1", ActionID: "battery", Credited: 5, Timestamp: "2024-03-02T10:00:00.000000"},
		{ChildID: "child3", ActionID: "crane", Credited: 1, Timestamp: "2024-03-02T11:00:00.000000"},
		{ChildID: "child2", ActionID: domain.ActionBalanceAdjust, Credited: -3, Timestamp: "2024-03-03T10:00:00.000000"},
		{ChildID: "ghost", ActionID: "mystery", Credited: 2, Timestamp: "2024-03-04T10:00:00.000000"},
	}
	for _, ev := range rows {
		if _, err := svc.Append(ev); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestQueryNewestFirst(t *testing.T) {
	svc, _ := newService(t)
	seedQueryFixture(t, svc)

	entries, err := svc.Query(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Fatalf("got %d entries, want 5", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Timestamp < entries[i].Timestamp {
			t.Errorf("entries out of order at %d: %q before %q", i, entries[i-1].Timestamp, entries[i].Timestamp)
		}
	}
}

func TestQueryDateBoundsInclusive(t *testing.T) {
	svc, _ := newService(t)
	seedQueryFixture(t, svc)

	entries, err := svc.Query(Filter{From: "2024-03-02", To: "2024-03-03"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3 (both bounds inclusive)", len(entries))
	}
	for _, e := range entries {
		d := domain.EventDate(e.Timestamp)
		if d < "2024-03-02" || d > "2024-03-03" {
			t.Errorf("entry %s outside range: %s", e.ID, d)
		}
	}
}

func TestQueryByChildAndGroup(t *testing.T) {
	svc, _ := newService(t)
	seedQueryFixture(t, svc)

	entries, err := svc.Query(Filter{ChildID: "child1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("child filter: got %d entries, want 2", len(entries))
	}

	// group1 holds the default child1 and child2
	entries, err = svc.Query(Filter{GroupID: "group1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("group filter: got %d entries, want 3", len(entries))
	}
	for _, e := range entries {
		if e.ChildID != "child1" && e.ChildID != "child2" {
			t.Errorf("group filter leaked child %s", e.ChildID)
		}
	}
}

func TestQueryEnrichesNames(t *testing.T) {
	svc, _ := newService(t)
	seedQueryFixture(t, svc)

	entries, err := svc.Query(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	byID := map[string]Entry{}
	for _, e := range entries {
		byID[e.ChildID+"/"+e.ActionID] = e
	}

	if e := byID["child1/crane"]; e.ChildName != "Masha Ivanova" || e.ActionName != "Tap closed" {
		t.Errorf("enrichment = %q/%q, want Masha Ivanova/Tap closed", e.ChildName, e.ActionName)
	}
	if e := byID["child2/"+domain.ActionBalanceAdjust]; e.ActionName != AdjustmentActionName {
		t.Errorf("adjustment action name = %q, want %q", e.ActionName, AdjustmentActionName)
	}
	// unknown child/action fall back to raw ids
	if e := byID["ghost/mystery"]; e.ChildName != "ghost" || e.ActionName != "mystery" {
		t.Errorf("fallback = %q/%q, want ghost/mystery", e.ChildName, e.ActionName)
	}
}

func TestDeleteForChild(t *testing.T) {
	svc, _ := newService(t)
	seedQueryFixture(t, svc)

	if err := svc.DeleteForChild("child1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	all, err := svc.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d events after cascade, want 3", len(all))
	}
	for _, ev := range all {
		if ev.ChildID == "child1" {
			t.Errorf("event %s for deleted child survived", ev.ID)
		}
	}
}
