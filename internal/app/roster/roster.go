// Package roster manages groups and children: projections for the public
// screens and the admin CRUD with its referential checks.
//
// Reads here do NOT trigger the monthly rollover; the boundary layer calls
// rollover.EnsureCurrent before any balance-sensitive read.
package roster

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ecotree-app/ecotree/internal/app/ledger"
	"github.com/ecotree-app/ecotree/internal/domain"
)

// Fallback display names for blank CRUD input.
const (
	defaultGroupName = "New group"
	defaultChildName = "Unnamed"
)

// Service is the group/child management service.
type Service struct {
	store  domain.Store
	ledger *ledger.Service
}

// NewService creates a roster service.
func NewService(store domain.Store, led *ledger.Service) *Service {
	return &Service{store: store, ledger: led}
}

// ─── Projections ────────────────────────────────────────────────────────────

// Groups lists all groups.
func (s *Service) Groups() ([]domain.Group, error) {
	var groups []domain.Group
	err := s.store.Load(domain.KeyGroups, &groups)
	return groups, err
}

// Children lists all children with their current balances.
func (s *Service) Children() ([]domain.Child, error) {
	var children []domain.Child
	err := s.store.Load(domain.KeyChildren, &children)
	return children, err
}

// ActionRules lists the crediting rules.
func (s *Service) ActionRules() ([]domain.ActionRule, error) {
	var rules []domain.ActionRule
	err := s.store.Load(domain.KeyActionsConfig, &rules)
	return rules, err
}

// ChildByID finds one child.
func (s *Service) ChildByID(id string) (domain.Child, error) {
	children, err := s.Children()
	if err != nil {
		return domain.Child{}, err
	}
	for _, c := range children {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Child{}, domain.ErrChildNotFound
}

// ─── Group CRUD ─────────────────────────────────────────────────────────────

// CreateGroup adds a group and returns it. Blank names get a placeholder.
func (s *Service) CreateGroup(name string) (domain.Group, error) {
	g := domain.Group{ID: "group_" + uuid.NewString(), Name: strings.TrimSpace(name)}
	if g.Name == "" {
		g.Name = defaultGroupName
	}
	err := s.store.Update(domain.KeyGroups, func(tx domain.Tx) error {
		var groups []domain.Group
		if err := tx.Load(&groups); err != nil {
			return err
		}
		groups = append(groups, g)
		return tx.Save(groups)
	})
	return g, err
}

// UpdateGroup renames a group. A blank name keeps the current one.
func (s *Service) UpdateGroup(id, name string) error {
	name = strings.TrimSpace(name)
	return s.store.Update(domain.KeyGroups, func(tx domain.Tx) error {
		var groups []domain.Group
		if err := tx.Load(&groups); err != nil {
			return err
		}
		for i := range groups {
			if groups[i].ID == id {
				if name != "" {
					groups[i].Name = name
				}
				return tx.Save(groups)
			}
		}
		return domain.ErrGroupNotFound
	})
}

// DeleteGroup removes a group. It fails with ErrGroupNotEmpty while any
// child still references it.
func (s *Service) DeleteGroup(id string) error {
	children, err := s.Children()
	if err != nil {
		return err
	}
	for _, c := range children {
		if c.GroupID != nil && *c.GroupID == id {
			return domain.ErrGroupNotEmpty
		}
	}
	return s.store.Update(domain.KeyGroups, func(tx domain.Tx) error {
		var groups []domain.Group
		if err := tx.Load(&groups); err != nil {
			return err
		}
		kept := groups[:0]
		found := false
		for _, g := range groups {
			if g.ID == id {
				found = true
				continue
			}
			kept = append(kept, g)
		}
		if !found {
			return domain.ErrGroupNotFound
		}
		return tx.Save(kept)
	})
}

// EnsureNumberedGroups makes sure groups group1..groupN exist with names
// "1".."N". Existing extra groups are left alone. Operator bootstrap only.
func (s *Service) EnsureNumberedGroups(count int) error {
	return s.store.Update(domain.KeyGroups, func(tx domain.Tx) error {
		var groups []domain.Group
		if err := tx.Load(&groups); err != nil {
			return err
		}
		byID := make(map[string]int, len(groups))
		for i, g := range groups {
			byID[g.ID] = i
		}
		changed := false
		for n := 1; n <= count; n++ {
			gid := "group" + strconv.Itoa(n)
			name := strconv.Itoa(n)
			if i, ok := byID[gid]; ok {
				if groups[i].Name != name {
					groups[i].Name = name
					changed = true
				}
			} else {
				groups = append(groups, domain.Group{ID: gid, Name: name})
				changed = true
			}
		}
		if !changed {
			return nil
		}
		return tx.Save(groups)
	})
}

// ─── Child CRUD ─────────────────────────────────────────────────────────────

// CreateChild adds a child with a zero balance. groupID may be empty; a
// non-empty groupID must reference an existing group.
func (s *Service) CreateChild(fullName, groupID string) (domain.Child, error) {
	if groupID != "" {
		groups, err := s.Groups()
		if err != nil {
			return domain.Child{}, err
		}
		found := false
		for _, g := range groups {
			if g.ID == groupID {
				found = true
				break
			}
		}
		if !found {
			return domain.Child{}, domain.ErrGroupNotFound
		}
	}

	c := domain.Child{ID: "child_" + uuid.NewString(), FullName: strings.TrimSpace(fullName)}
	if c.FullName == "" {
		c.FullName = defaultChildName
	}
	if groupID != "" {
		c.GroupID = &groupID
	}
	err := s.store.Update(domain.KeyChildren, func(tx domain.Tx) error {
		var children []domain.Child
		if err := tx.Load(&children); err != nil {
			return err
		}
		children = append(children, c)
		return tx.Save(children)
	})
	return c, err
}

// UpdateChild renames and/or regroups a child. A blank name keeps the
// current one; an empty groupID detaches the child from any group.
func (s *Service) UpdateChild(id, fullName, groupID string) error {
	fullName = strings.TrimSpace(fullName)
	return s.store.Update(domain.KeyChildren, func(tx domain.Tx) error {
		var children []domain.Child
		if err := tx.Load(&children); err != nil {
			return err
		}
		for i := range children {
			if children[i].ID != id {
				continue
			}
			if fullName != "" {
				children[i].FullName = fullName
			}
			if groupID != "" {
				gid := groupID
				children[i].GroupID = &gid
			} else {
				children[i].GroupID = nil
			}
			return tx.Save(children)
		}
		return domain.ErrChildNotFound
	})
}

// DeleteChild removes a child and cascades to its events.
func (s *Service) DeleteChild(id string) error {
	err := s.store.Update(domain.KeyChildren, func(tx domain.Tx) error {
		var children []domain.Child
		if err := tx.Load(&children); err != nil {
			return err
		}
		kept := children[:0]
		found := false
		for _, c := range children {
			if c.ID == id {
				found = true
				continue
			}
			kept = append(kept, c)
		}
		if !found {
			return domain.ErrChildNotFound
		}
		return tx.Save(kept)
	})
	if err != nil {
		return err
	}
	return s.ledger.DeleteForChild(id)
}
