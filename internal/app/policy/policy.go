// Package policy decides whether an interaction is creditable right now —
// cooldown and daily-cap enforcement against the event log — and applies
// manual balance adjustments. This is the one place balances are mutated.
package policy

import (
	"time"

	"github.com/ecotree-app/ecotree/internal/app/ledger"
	"github.com/ecotree-app/ecotree/internal/domain"
	"github.com/ecotree-app/ecotree/internal/infra/observability"
)

// Service evaluates interactions and records their outcomes.
type Service struct {
	store  domain.Store
	ledger *ledger.Service
	now    func() time.Time
}

// NewService creates a policy service using the real clock.
func NewService(store domain.Store, led *ledger.Service) *Service {
	return &Service{store: store, ledger: led, now: time.Now}
}

// SetClock replaces the clock. Tests use this to drive cooldown windows.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// ─── Interaction ────────────────────────────────────────────────────────────

// RecordInteraction evaluates one interaction attempt for (childID,
// actionID) and, when eligible, credits the child and appends the event.
// Rejections come back as a normal result with Success=false; the error
// return is for storage failures only.
//
// The balance write and the event append are two separate single-document
// writes. A crash between them can leave a credited balance with no event;
// this matches the semantics of the system being replaced and is accepted.
func (s *Service) RecordInteraction(childID, actionID string) (domain.InteractionResult, error) {
	reject := func(reason string, balance int) (domain.InteractionResult, error) {
		observability.Interactions.WithLabelValues(reason).Inc()
		return domain.InteractionResult{Credited: 0, NewBalance: balance, Reason: reason}, nil
	}

	var children []domain.Child
	if err := s.store.Load(domain.KeyChildren, &children); err != nil {
		return domain.InteractionResult{}, err
	}
	child, ok := findChild(children, childID)
	if !ok {
		return reject(domain.ReasonChildNotFound, 0)
	}

	var rules []domain.ActionRule
	if err := s.store.Load(domain.KeyActionsConfig, &rules); err != nil {
		return domain.InteractionResult{}, err
	}
	var rule domain.ActionRule
	found := false
	for _, r := range rules {
		if r.ID == actionID {
			rule, found = r, true
			break
		}
	}
	if !found {
		return reject(domain.ReasonUnknownAction, child.Balance)
	}

	events, err := s.ledger.All()
	if err != nil {
		return domain.InteractionResult{}, err
	}

	now := s.now()
	today := now.Format(domain.DateLayout)

	// One backwards scan collects both inputs: today's credited sum for
	// this (child, action) and the most recent same-action timestamp.
	lastSame := ""
	dailyCoins := 0
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.ChildID != childID || ev.ActionID != actionID {
			continue
		}
		if domain.EventDate(ev.Timestamp) == today {
			dailyCoins += ev.Credited
		}
		if lastSame == "" {
			lastSame = ev.Timestamp
		}
	}

	// Cooldown first: when both checks would fail, cooldown is the
	// reported reason. First-time actions skip the cooldown axis.
	if lastSame != "" {
		lastAt, perr := domain.ParseTimestamp(lastSame)
		if perr != nil {
			// Unreadable timestamp counts as "just now".
			lastAt = now
		}
		if now.Sub(lastAt) < time.Duration(rule.CooldownSec)*time.Second {
			return reject(domain.ReasonCooldown, child.Balance)
		}
	}

	if dailyCoins+rule.Coins > rule.DailyLimitCoins {
		return reject(domain.ReasonDailyLimit, child.Balance)
	}

	// Eligible: credit under the children-document lock, then append.
	var newBalance int
	err = s.store.Update(domain.KeyChildren, func(tx domain.Tx) error {
		var cur []domain.Child
		if err := tx.Load(&cur); err != nil {
			return err
		}
		for i := range cur {
			if cur[i].ID == childID {
				cur[i].Balance += rule.Coins
				newBalance = cur[i].Balance
				return tx.Save(cur)
			}
		}
		return domain.ErrChildNotFound
	})
	if err == domain.ErrChildNotFound {
		return reject(domain.ReasonChildNotFound, 0)
	}
	if err != nil {
		return domain.InteractionResult{}, err
	}

	if _, err := s.ledger.Append(domain.Event{
		ChildID:      childID,
		ActionID:     actionID,
		Credited:     rule.Coins,
		Timestamp:    domain.FormatTimestamp(now),
		BalanceAfter: newBalance,
	}); err != nil {
		return domain.InteractionResult{}, err
	}

	observability.Interactions.WithLabelValues(domain.ReasonOK).Inc()
	return domain.InteractionResult{
		Success:    true,
		Credited:   rule.Coins,
		NewBalance: newBalance,
		Reason:     domain.ReasonOK,
	}, nil
}

// ─── Adjustment ─────────────────────────────────────────────────────────────

// AdjustBalance applies an administrative delta, bypassing cooldown and
// daily-limit checks. The new balance clamps at zero. The logged event
// records the requested delta, not the clamped change — BalanceAfter shows
// the actual outcome, so the clamp is visible in the audit trail.
func (s *Service) AdjustBalance(childID string, delta int, comment, adminUsername string) (int, error) {
	var newBalance int
	err := s.store.Update(domain.KeyChildren, func(tx domain.Tx) error {
		var cur []domain.Child
		if err := tx.Load(&cur); err != nil {
			return err
		}
		for i := range cur {
			if cur[i].ID == childID {
				newBalance = max(0, cur[i].Balance+delta)
				cur[i].Balance = newBalance
				return tx.Save(cur)
			}
		}
		return domain.ErrChildNotFound
	})
	if err != nil {
		return 0, err
	}

	if _, err := s.ledger.Append(domain.Event{
		ChildID:      childID,
		ActionID:     domain.ActionBalanceAdjust,
		Credited:     delta,
		Timestamp:    domain.FormatTimestamp(s.now()),
		BalanceAfter: newBalance,
		Meta:         &domain.EventMeta{Comment: comment, Admin: adminUsername},
	}); err != nil {
		return 0, err
	}

	observability.Adjustments.Inc()
	return newBalance, nil
}

func findChild(children []domain.Child, id string) (domain.Child, bool) {
	for _, c := range children {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Child{}, false
}
