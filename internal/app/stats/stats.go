// Package stats computes the read-only period aggregations behind the
// admin dashboard: per-group and per-child totals over a date range.
package stats

import (
	"strings"

	"github.com/ecotree-app/ecotree/internal/domain"
)

// Service aggregates over the live roster and the event log.
type Service struct {
	store domain.Store
}

// NewService creates a stats service.
func NewService(store domain.Store) *Service {
	return &Service{store: store}
}

// GroupRow is one group's period summary.
type GroupRow struct {
	GroupID        string `json:"groupId"`
	GroupName      string `json:"groupName"`
	ChildrenCount  int    `json:"childrenCount"`
	TotalBalance   int    `json:"totalBalance"`
	PeriodCredited int    `json:"periodCredited"`
}

// ChildRow is one child's period summary.
type ChildRow struct {
	ID             string  `json:"id"`
	FullName       string  `json:"fullName"`
	GroupID        *string `json:"groupId"`
	GroupName      string  `json:"groupName"`
	Balance        int     `json:"balance"`
	PeriodCredited int     `json:"periodCredited"`
	ActionsCount   int     `json:"actionsCount"`
}

// eventsInRange filters by the YYYY-MM-DD prefix, inclusive bounds.
func (s *Service) eventsInRange(from, to string) ([]domain.Event, error) {
	var events []domain.Event
	if err := s.store.Load(domain.KeyEvents, &events); err != nil {
		return nil, err
	}
	out := events[:0]
	for _, ev := range events {
		d := domain.EventDate(ev.Timestamp)
		if from != "" && d < from {
			continue
		}
		if to != "" && d > to {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Groups returns every group's summary for the period.
func (s *Service) Groups(from, to string) ([]GroupRow, error) {
	var groups []domain.Group
	if err := s.store.Load(domain.KeyGroups, &groups); err != nil {
		return nil, err
	}
	var children []domain.Child
	if err := s.store.Load(domain.KeyChildren, &children); err != nil {
		return nil, err
	}
	events, err := s.eventsInRange(from, to)
	if err != nil {
		return nil, err
	}

	creditedByChild := make(map[string]int, len(children))
	for _, ev := range events {
		creditedByChild[ev.ChildID] += ev.Credited
	}

	rows := make([]GroupRow, 0, len(groups))
	for _, g := range groups {
		row := GroupRow{GroupID: g.ID, GroupName: g.Name}
		for _, c := range children {
			if c.GroupID == nil || *c.GroupID != g.ID {
				continue
			}
			row.ChildrenCount++
			row.TotalBalance += c.Balance
			row.PeriodCredited += creditedByChild[c.ID]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Children returns per-child summaries for the period, optionally narrowed
// to one group and/or a case-insensitive name substring.
func (s *Service) Children(groupID, nameQuery, from, to string) ([]ChildRow, error) {
	var children []domain.Child
	if err := s.store.Load(domain.KeyChildren, &children); err != nil {
		return nil, err
	}
	var groups []domain.Group
	if err := s.store.Load(domain.KeyGroups, &groups); err != nil {
		return nil, err
	}
	events, err := s.eventsInRange(from, to)
	if err != nil {
		return nil, err
	}

	groupNames := make(map[string]string, len(groups))
	for _, g := range groups {
		groupNames[g.ID] = g.Name
	}
	credited := make(map[string]int, len(children))
	counts := make(map[string]int, len(children))
	for _, ev := range events {
		credited[ev.ChildID] += ev.Credited
		counts[ev.ChildID]++
	}

	q := strings.ToLower(nameQuery)
	rows := make([]ChildRow, 0, len(children))
	for _, c := range children {
		if groupID != "" && (c.GroupID == nil || *c.GroupID != groupID) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(c.FullName), q) {
			continue
		}
		row := ChildRow{
			ID:             c.ID,
			FullName:       c.FullName,
			GroupID:        c.GroupID,
			Balance:        c.Balance,
			PeriodCredited: credited[c.ID],
			ActionsCount:   counts[c.ID],
		}
		if c.GroupID != nil {
			name, ok := groupNames[*c.GroupID]
			if !ok {
				// dangling reference: show the raw id
				name = *c.GroupID
			}
			row.GroupName = name
		}
		rows = append(rows, row)
	}
	return rows, nil
}
