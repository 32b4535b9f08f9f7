// Package ledger is the append-only event log: credited interactions and
// balance adjustments, queried by child, group, and inclusive date range.
package ledger

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ecotree-app/ecotree/internal/domain"
)

// AdjustmentActionName is shown for the synthetic balance_adjust action.
const AdjustmentActionName = "Balance adjustment"

// Service provides ledger reads and appends on top of the document store.
type Service struct {
	store domain.Store
}

// NewService creates a ledger service.
func NewService(store domain.Store) *Service {
	return &Service{store: store}
}

// ─── Append ─────────────────────────────────────────────────────────────────

// Append adds ev to the log, assigning its id under the exclusive events
// lock. The id combines a monotonic counter with the child and action ids;
// uniqueness is the only hard requirement, and the counter cannot race
// because appends are serialized by the document lock.
func (s *Service) Append(ev domain.Event) (domain.Event, error) {
	err := s.store.Update(domain.KeyEvents, func(tx domain.Tx) error {
		var events []domain.Event
		if err := tx.Load(&events); err != nil {
			return err
		}
		if ev.ID == "" {
			seq := nextSeq(events)
			if ev.ActionID == domain.ActionBalanceAdjust {
				ev.ID = fmt.Sprintf("adj_%s_%d", ev.ChildID, seq)
			} else {
				ev.ID = fmt.Sprintf("ev_%d_%s_%s", seq, ev.ChildID, ev.ActionID)
			}
		}
		events = append(events, ev)
		return tx.Save(events)
	})
	return ev, err
}

// nextSeq returns one past the highest counter embedded in the existing ids.
// The log length is not usable as a counter: the child-deletion cascade
// shrinks the log, and a length-based id would collide with a survivor.
func nextSeq(events []domain.Event) int {
	maxSeq := 0
	for _, ev := range events {
		n := 0
		if rest, ok := strings.CutPrefix(ev.ID, "ev_"); ok {
			if i := strings.IndexByte(rest, '_'); i > 0 {
				n, _ = strconv.Atoi(rest[:i])
			}
		} else if strings.HasPrefix(ev.ID, "adj_") {
			if i := strings.LastIndexByte(ev.ID, '_'); i >= 0 {
				n, _ = strconv.Atoi(ev.ID[i+1:])
			}
		}
		if n > maxSeq {
			maxSeq = n
		}
	}
	return maxSeq + 1
}

// All returns the raw log in append order.
func (s *Service) All() ([]domain.Event, error) {
	var events []domain.Event
	err := s.store.Load(domain.KeyEvents, &events)
	return events, err
}

// ─── Query ──────────────────────────────────────────────────────────────────

// Filter narrows a ledger query. Date bounds compare the YYYY-MM-DD prefix
// of the timestamp and are inclusive on both ends.
type Filter struct {
	ChildID string
	GroupID string
	From    string // YYYY-MM-DD
	To      string // YYYY-MM-DD
}

// Entry is an event enriched with display names for list views.
type Entry struct {
	domain.Event
	ChildName  string `json:"childName"`
	ActionName string `json:"actionName"`
}

// Query returns matching events, most recent first, each enriched with the
// child's and action's display names.
func (s *Service) Query(f Filter) ([]Entry, error) {
	events, err := s.All()
	if err != nil {
		return nil, err
	}

	var children []domain.Child
	if err := s.store.Load(domain.KeyChildren, &children); err != nil {
		return nil, err
	}
	var rules []domain.ActionRule
	if err := s.store.Load(domain.KeyActionsConfig, &rules); err != nil {
		return nil, err
	}

	childNames := make(map[string]string, len(children))
	inGroup := make(map[string]bool, len(children))
	for _, c := range children {
		childNames[c.ID] = c.FullName
		if f.GroupID != "" && c.GroupID != nil && *c.GroupID == f.GroupID {
			inGroup[c.ID] = true
		}
	}
	actionNames := make(map[string]string, len(rules)+1)
	for _, r := range rules {
		actionNames[r.ID] = r.Name
	}
	actionNames[domain.ActionBalanceAdjust] = AdjustmentActionName

	out := make([]Entry, 0, len(events))
	for _, ev := range events {
		d := domain.EventDate(ev.Timestamp)
		if f.From != "" && d < f.From {
			continue
		}
		if f.To != "" && d > f.To {
			continue
		}
		if f.GroupID != "" && !inGroup[ev.ChildID] {
			continue
		}
		if f.ChildID != "" && ev.ChildID != f.ChildID {
			continue
		}
		cn, ok := childNames[ev.ChildID]
		if !ok {
			cn = ev.ChildID
		}
		an, ok := actionNames[ev.ActionID]
		if !ok {
			an = ev.ActionID
		}
		out = append(out, Entry{Event: ev, ChildName: cn, ActionName: an})
	}

	// Descending timestamp is the single supported sort for list views.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out, nil
}

// DeleteForChild removes every event owned by childID. Called only from the
// child-deletion cascade; the log is otherwise append-only.
func (s *Service) DeleteForChild(childID string) error {
	return s.store.Update(domain.KeyEvents, func(tx domain.Tx) error {
		var events []domain.Event
		if err := tx.Load(&events); err != nil {
			return err
		}
		kept := events[:0]
		for _, ev := range events {
			if ev.ChildID != childID {
				kept = append(kept, ev)
			}
		}
		return tx.Save(kept)
	})
}
