package roster

import (
	"errors"
	"strings"
	"testing"

	"github.com/ecotree-app/ecotree/internal/app/ledger"
	"github.com/ecotree-app/ecotree/internal/domain"
	"github.com/ecotree-app/ecotree/internal/infra/docstore"
)

func newService(t *testing.T) (*Service, *ledger.Service) {
	t.Helper()
	store, err := docstore.New(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	led := ledger.NewService(store)
	return NewService(store, led), led
}

func TestCreateGroup(t *testing.T) {
	svc, _ := newService(t)

	g, err := svc.CreateGroup("  Rainbow  ")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(g.ID, "group_") {
		t.Errorf("id = %q, want group_ prefix", g.ID)
	}
	if g.Name != "Rainbow" {
		t.Errorf("name = %q, want trimmed Rainbow", g.Name)
	}

	blank, err := svc.CreateGroup("   ")
	if err != nil {
		t.Fatal(err)
	}
	if blank.Name != "New group" {
		t.Errorf("blank name = %q, want placeholder", blank.Name)
	}

	groups, err := svc.Groups()
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 4 { // 2 defaults + 2 created
		t.Errorf("got %d groups, want 4", len(groups))
	}
}

func TestUpdateGroup(t *testing.T) {
	svc, _ := newService(t)

	if err := svc.UpdateGroup("group1", "Renamed"); err != nil {
		t.Fatal(err)
	}
	// blank keeps the current name
	if err := svc.UpdateGroup("group1", "   "); err != nil {
		t.Fatal(err)
	}
	groups, _ := svc.Groups()
	for _, g := range groups {
		if g.ID == "group1" && g.Name != "Renamed" {
			t.Errorf("name = %q, want Renamed", g.Name)
		}
	}

	if err := svc.UpdateGroup("missing", "X"); !errors.Is(err, domain.ErrGroupNotFound) {
		t.Errorf("err = %v, want ErrGroupNotFound", err)
	}
}

func TestDeleteGroup(t *testing.T) {
	svc, _ := newService(t)

	// group1 still has default children
	if err := svc.DeleteGroup("group1"); !errors.Is(err, domain.ErrGroupNotEmpty) {
		t.Errorf("err = %v, want ErrGroupNotEmpty", err)
	}

	g, err := svc.CreateGroup("Empty")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteGroup(g.ID); err != nil {
		t.Fatalf("delete empty group: %v", err)
	}
	if err := svc.DeleteGroup(g.ID); !errors.Is(err, domain.ErrGroupNotFound) {
		t.Errorf("second delete err = %v, want ErrGroupNotFound", err)
	}
}

func TestEnsureNumberedGroups(t *testing.T) {
	svc, _ := newService(t)

	if err := svc.EnsureNumberedGroups(4); err != nil {
		t.Fatal(err)
	}
	groups, err := svc.Groups()
	if err != nil {
		t.Fatal(err)
	}
	byID := map[string]string{}
	for _, g := range groups {
		byID[g.ID] = g.Name
	}
	for _, id := range []string{"group1", "group2", "group3", "group4"} {
		if _, ok := byID[id]; !ok {
			t.Errorf("missing %s", id)
		}
	}
	if byID["group3"] != "3" {
		t.Errorf("group3 name = %q, want 3", byID["group3"])
	}
	// idempotent
	if err := svc.EnsureNumberedGroups(4); err != nil {
		t.Fatal(err)
	}
	again, _ := svc.Groups()
	if len(again) != len(groups) {
		t.Errorf("second run changed group count: %d -> %d", len(groups), len(again))
	}
}

func TestCreateChild(t *testing.T) {
	svc, _ := newService(t)

	c, err := svc.CreateChild("Lena Petrova", "group2")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(c.ID, "child_") {
		t.Errorf("id = %q, want child_ prefix", c.ID)
	}
	if c.GroupID == nil || *c.GroupID != "group2" {
		t.Errorf("groupID = %v, want group2", c.GroupID)
	}
	if c.Balance != 0 {
		t.Errorf("new child balance = %d, want 0", c.Balance)
	}

	if _, err := svc.CreateChild("X", "no_such_group"); !errors.Is(err, domain.ErrGroupNotFound) {
		t.Errorf("err = %v, want ErrGroupNotFound", err)
	}

	loose, err := svc.CreateChild("", "")
	if err != nil {
		t.Fatal(err)
	}
	if loose.FullName != "Unnamed" || loose.GroupID != nil {
		t.Errorf("loose child = %+v", loose)
	}
}

func TestUpdateChild(t *testing.T) {
	svc, _ := newService(t)

	if err := svc.UpdateChild("child1", "New Name", "group2"); err != nil {
		t.Fatal(err)
	}
	c, err := svc.ChildByID("child1")
	if err != nil {
		t.Fatal(err)
	}
	if c.FullName != "New Name" || c.GroupID == nil || *c.GroupID != "group2" {
		t.Errorf("child = %+v", c)
	}

	// empty group detaches, blank name keeps
	if err := svc.UpdateChild("child1", "", ""); err != nil {
		t.Fatal(err)
	}
	c, _ = svc.ChildByID("child1")
	if c.FullName != "New Name" || c.GroupID != nil {
		t.Errorf("after detach = %+v", c)
	}

	if err := svc.UpdateChild("missing", "X", ""); !errors.Is(err, domain.ErrChildNotFound) {
		t.Errorf("err = %v, want ErrChildNotFound", err)
	}
}

func TestDeleteChildCascades(t *testing.T) {
	svc, led := newService(t)

	for _, ev := range []domain.Event{
		{ChildID: "child1", ActionID: "crane", Credited: 1, Timestamp: "2024-03-01T10:00:00.000000"},
		{ChildID: "child2", ActionID: "crane", Credited: 1, Timestamp: "2024-03-01T11:00:00.000000"},
	} {
		if _, err := led.Append(ev); err != nil {
			t.Fatal(err)
		}
	}

	if err := svc.DeleteChild("child1"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ChildByID("child1"); !errors.Is(err, domain.ErrChildNotFound) {
		t.Errorf("err = %v, want ErrChildNotFound", err)
	}
	events, err := led.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].ChildID != "child2" {
		t.Errorf("cascade left %+v", events)
	}

	if err := svc.DeleteChild("child1"); !errors.Is(err, domain.ErrChildNotFound) {
		t.Errorf("second delete err = %v, want ErrChildNotFound", err)
	}
}
