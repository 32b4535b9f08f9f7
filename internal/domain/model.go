// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"fmt"
	"time"
)

// ─── Timestamps ─────────────────────────────────────────────────────────────
// Event timestamps are stored as local ISO-8601 strings with fixed-width
// microseconds so that lexicographic order equals chronological order.
// The date portion is always the first 10 characters (YYYY-MM-DD).

// TimestampLayout is the canonical event timestamp format.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// DateLayout is the date-only format used for daily limits and range filters.
const DateLayout = "2006-01-02"

// FormatTimestamp renders t in the canonical event timestamp format.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp parses a stored event timestamp. Timestamps written by
// older deployments may lack the fractional part.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(TimestampLayout, s, time.Local); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", s, time.Local)
}

// EventDate returns the YYYY-MM-DD portion of an event timestamp.
func EventDate(ts string) string {
	if len(ts) < 10 {
		return ts
	}
	return ts[:10]
}

// ─── Entities ───────────────────────────────────────────────────────────────

// Group is a named set of children (a classroom group).
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Child is a tracked participant. Balance is the running coin count for the
// current period and never goes negative.
type Child struct {
	ID       string  `json:"id"`
	FullName string  `json:"fullName"`
	GroupID  *string `json:"groupId"`
	Balance  int     `json:"balance"`
	Avatar   *string `json:"avatar"`
}

// ActionRule is the crediting rule for one eco-action: how many coins it
// awards, how long the same child must wait between credits, and how many
// coins the action may contribute per child per calendar day.
type ActionRule struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Coins           int    `json:"coins"`
	CooldownSec     int    `json:"cooldown_sec"`
	DailyLimitCoins int    `json:"daily_limit_coins"`
}

// ActionBalanceAdjust is the synthetic action id recorded for manual
// balance adjustments.
const ActionBalanceAdjust = "balance_adjust"

// EventMeta carries optional audit fields for adjustment events.
type EventMeta struct {
	Comment string `json:"comment"`
	Admin   string `json:"admin"`
}

// Event is one immutable row in the append-only ledger. Credited is signed:
// positive for interactions, either sign for manual adjustments. For
// adjustments Credited records the requested delta even when the resulting
// balance was clamped at zero; BalanceAfter records the actual outcome.
type Event struct {
	ID           string     `json:"id"`
	ChildID      string     `json:"childId"`
	ActionID     string     `json:"actionId"`
	Credited     int        `json:"credited"`
	Timestamp    string     `json:"timestamp"`
	BalanceAfter int        `json:"balanceAfter"`
	Meta         *EventMeta `json:"meta,omitempty"`
}

// String implements fmt.Stringer for log lines.
func (e Event) String() string {
	return fmt.Sprintf("%s %s/%s %+d → %d", e.ID, e.ChildID, e.ActionID, e.Credited, e.BalanceAfter)
}

// SnapshotEntry is one child's archived state inside a monthly snapshot.
type SnapshotEntry struct {
	ChildID  string  `json:"childId"`
	FullName string  `json:"fullName"`
	Balance  int     `json:"balance"`
	GroupID  *string `json:"groupId"`
}

// MonthlySnapshot archives every child's balance at a rollover boundary.
// At most one snapshot exists per (year, month).
type MonthlySnapshot struct {
	Year     int             `json:"year"`
	Month    int             `json:"month"`
	Children []SnapshotEntry `json:"children"`
	TotalSum int             `json:"totalSum"`
}

// RolloverMarker records the last period for which rollover ran. The zero
// value means no rollover has ever been performed.
type RolloverMarker struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
}

// IsZero reports whether the marker has never been written.
func (m RolloverMarker) IsZero() bool { return m.Year == 0 && m.Month == 0 }

// Before reports whether the marker's period precedes (year, month).
func (m RolloverMarker) Before(year, month int) bool {
	return m.Year < year || (m.Year == year && m.Month < month)
}

// ─── Credentials ────────────────────────────────────────────────────────────

// Roles for the admin surface. Educators are scoped to a single group.
const (
	RoleAdmin    = "admin"
	RoleEducator = "educator"
)

// Credential is one entry in the admins document. Passwords are stored in
// clear text, faithfully reproducing the system this replaces; do not treat
// this as a recommendation.
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
	IsStaff  bool   `json:"is_staff"`
	Role     string `json:"role"`
	GroupID  string `json:"group_id,omitempty"`
}

// ─── Interaction Results ────────────────────────────────────────────────────

// Rejection reasons returned by the interaction policy. A rejection is a
// successful policy evaluation with a negative outcome, not an error.
const (
	ReasonOK            = "ok"
	ReasonCooldown      = "cooldown"
	ReasonDailyLimit    = "daily_limit"
	ReasonChildNotFound = "child_not_found"
	ReasonUnknownAction = "unknown_action"
)

// InteractionResult is the outcome of one interaction attempt.
type InteractionResult struct {
	Success    bool   `json:"success"`
	Credited   int    `json:"credited"`
	NewBalance int    `json:"new_balance"`
	Reason     string `json:"reason"`
}

// ─── Defaults ───────────────────────────────────────────────────────────────

// DefaultActionRules is the hardcoded rule set restored by the operator
// reset command and seeded on first run.
func DefaultActionRules() []ActionRule {
	return []ActionRule{
		{ID: "crane", Name: "Tap closed", Coins: 1, CooldownSec: 120, DailyLimitCoins: 20},
		{ID: "cardboard_box", Name: "Paper recycling", Coins: 5, CooldownSec: 120, DailyLimitCoins: 15},
		{ID: "battery", Name: "Battery collected", Coins: 5, CooldownSec: 120, DailyLimitCoins: 10},
		{ID: "plastic_cap", Name: "Plastic caps", Coins: 3, CooldownSec: 120, DailyLimitCoins: 20},
		{ID: "sorting", Name: "Waste sorting", Coins: 2, CooldownSec: 120, DailyLimitCoins: 20},
	}
}

// DefaultGroups seeds the first run.
func DefaultGroups() []Group {
	return []Group{
		{ID: "group1", Name: "Sunshine"},
		{ID: "group2", Name: "Daisy"},
	}
}

// DefaultChildren seeds the first run.
func DefaultChildren() []Child {
	g1, g2 := "group1", "group2"
	return []Child{
		{ID: "child1", FullName: "Masha Ivanova", GroupID: &g1},
		{ID: "child2", FullName: "Petya Sidorov", GroupID: &g1},
		{ID: "child3", FullName: "Anya Kozlova", GroupID: &g2},
	}
}
