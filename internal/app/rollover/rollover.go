// Package rollover implements the month-boundary archive-and-reset
// procedure and the reads over the monthly archive.
//
// Rollover is lazy: the boundary layer calls EnsureCurrent before every
// balance-sensitive read. When a new calendar month is first observed, the
// balances as they stand are archived under the previously processed period
// and zeroed. Only that single most recently completed month is archived —
// months fully skipped while the service was dormant are not reconstructed.
package rollover

import (
	"sync"
	"time"

	"github.com/ecotree-app/ecotree/internal/domain"
	"github.com/ecotree-app/ecotree/internal/infra/observability"
)

// Service runs rollovers and serves the monthly archive.
type Service struct {
	store domain.Store
	now   func() time.Time

	mu sync.Mutex // serializes the check-and-mutate sequence in-process
}

// NewService creates a rollover service using the real clock.
func NewService(store domain.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// SetClock replaces the clock. Tests use this to cross month boundaries.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// ─── Rollover ───────────────────────────────────────────────────────────────

// EnsureCurrent brings the rollover state up to the current calendar month.
// It is idempotent and cheap when already current.
//
// The marker is written last: a crash mid-rollover simply causes the whole
// procedure to run again on the next call. The snapshot append is guarded
// by a (year, month) existence check and balance zeroing is idempotent, so
// the retry cannot duplicate work.
func (s *Service) EnsureCurrent() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	curYear, curMonth := now.Year(), int(now.Month())

	var marker domain.RolloverMarker
	if err := s.store.Load(domain.KeyRolloverMarker, &marker); err != nil {
		return err
	}
	if marker.IsZero() {
		// First-ever run: nothing to archive yet.
		return s.store.Save(domain.KeyRolloverMarker, domain.RolloverMarker{Year: curYear, Month: curMonth})
	}
	if !marker.Before(curYear, curMonth) {
		return nil
	}

	var children []domain.Child
	if err := s.store.Load(domain.KeyChildren, &children); err != nil {
		return err
	}

	snapshot := domain.MonthlySnapshot{
		Year:     marker.Year,
		Month:    marker.Month,
		Children: make([]domain.SnapshotEntry, 0, len(children)),
	}
	for _, c := range children {
		snapshot.Children = append(snapshot.Children, domain.SnapshotEntry{
			ChildID:  c.ID,
			FullName: c.FullName,
			Balance:  c.Balance,
			GroupID:  c.GroupID,
		})
		snapshot.TotalSum += c.Balance
	}

	err := s.store.Update(domain.KeyMonthlyResults, func(tx domain.Tx) error {
		var results []domain.MonthlySnapshot
		if err := tx.Load(&results); err != nil {
			return err
		}
		for _, r := range results {
			if r.Year == snapshot.Year && r.Month == snapshot.Month {
				// Already archived by an interrupted earlier run.
				return nil
			}
		}
		results = append(results, snapshot)
		return tx.Save(results)
	})
	if err != nil {
		return err
	}

	err = s.store.Update(domain.KeyChildren, func(tx domain.Tx) error {
		var cur []domain.Child
		if err := tx.Load(&cur); err != nil {
			return err
		}
		for i := range cur {
			cur[i].Balance = 0
		}
		return tx.Save(cur)
	})
	if err != nil {
		return err
	}

	if err := s.store.Save(domain.KeyRolloverMarker, domain.RolloverMarker{Year: curYear, Month: curMonth}); err != nil {
		return err
	}
	observability.Rollovers.Inc()
	return nil
}

// ─── Archive Reads ──────────────────────────────────────────────────────────

// Results returns the archived snapshots, newest first. A non-empty groupID
// narrows every row to that group's children and recomputes its total.
func (s *Service) Results(groupID string) ([]domain.MonthlySnapshot, error) {
	var results []domain.MonthlySnapshot
	if err := s.store.Load(domain.KeyMonthlyResults, &results); err != nil {
		return nil, err
	}

	out := make([]domain.MonthlySnapshot, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		row := results[i]
		if groupID != "" {
			filtered := make([]domain.SnapshotEntry, 0, len(row.Children))
			total := 0
			for _, c := range row.Children {
				if c.GroupID != nil && *c.GroupID == groupID {
					filtered = append(filtered, c)
					total += c.Balance
				}
			}
			row.Children = filtered
			row.TotalSum = total
		}
		out = append(out, row)
	}
	return out, nil
}

// snapshotFor finds the archived snapshot entries for (year, month), or
// falls back to the live children when no snapshot exists yet for that
// period (e.g. stats requested for the still-running month).
func (s *Service) snapshotFor(year, month int) ([]domain.SnapshotEntry, error) {
	var results []domain.MonthlySnapshot
	if err := s.store.Load(domain.KeyMonthlyResults, &results); err != nil {
		return nil, err
	}
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Year == year && results[i].Month == month {
			return results[i].Children, nil
		}
	}

	var children []domain.Child
	if err := s.store.Load(domain.KeyChildren, &children); err != nil {
		return nil, err
	}
	entries := make([]domain.SnapshotEntry, 0, len(children))
	for _, c := range children {
		entries = append(entries, domain.SnapshotEntry{
			ChildID:  c.ID,
			FullName: c.FullName,
			Balance:  c.Balance,
			GroupID:  c.GroupID,
		})
	}
	return entries, nil
}

// MonthRange returns the inclusive YYYY-MM-DD bounds of a month.
func MonthRange(year, month int) (from, to string) {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local)
	last := first.AddDate(0, 1, -1)
	return first.Format(domain.DateLayout), last.Format(domain.DateLayout)
}
