package rollover

import (
	"math"
	"sort"

	"github.com/ecotree-app/ecotree/internal/app/ledger"
	"github.com/ecotree-app/ecotree/internal/domain"
)

// ─── Monthly Statistics ─────────────────────────────────────────────────────
// Read-only aggregation over one month: the archived snapshot supplies the
// coin standings, the event log supplies the activity.

const topLimit = 15

// Summary totals one month.
type Summary struct {
	TotalCoins       int     `json:"totalCoins"`
	TotalActions     int     `json:"totalActions"`
	AvgCoinsPerChild float64 `json:"avgCoinsPerChild"`
	ChildrenCount    int     `json:"childrenCount"`
}

// ActionStat is the per-action breakdown row.
type ActionStat struct {
	ActionID   string `json:"actionId"`
	ActionName string `json:"actionName"`
	Count      int    `json:"count"`
	TotalCoins int    `json:"totalCoins"`
}

// ChildActivity is a top-children-by-actions row.
type ChildActivity struct {
	ChildID      string `json:"childId"`
	FullName     string `json:"fullName"`
	ActionsCount int    `json:"actionsCount"`
	GroupName    string `json:"groupName"`
}

// ChildStanding is a top-children-by-coins row.
type ChildStanding struct {
	ChildID   string `json:"childId"`
	FullName  string `json:"fullName"`
	Balance   int    `json:"balance"`
	GroupName string `json:"groupName"`
}

// GroupStat is the per-group subtotal row.
type GroupStat struct {
	GroupID       string  `json:"groupId"`
	GroupName     string  `json:"groupName"`
	TotalCoins    int     `json:"totalCoins"`
	ChildrenCount int     `json:"childrenCount"`
	AvgCoins      float64 `json:"avgCoins"`
}

// MonthlyStats is the full statistics document for one month.
type MonthlyStats struct {
	Year                 int             `json:"year"`
	Month                int             `json:"month"`
	Summary              Summary         `json:"summary"`
	ByAction             []ActionStat    `json:"byAction"`
	TopChildrenByCoins   []ChildStanding `json:"topChildrenByCoins"`
	TopChildrenByActions []ChildActivity `json:"topChildrenByActions"`
	ByGroup              []GroupStat     `json:"byGroup"`
}

// Stats aggregates one month. A non-empty groupID narrows everything to
// that group (the educator view).
func (s *Service) Stats(year, month int, groupID string) (*MonthlyStats, error) {
	from, to := MonthRange(year, month)

	snapshot, err := s.snapshotFor(year, month)
	if err != nil {
		return nil, err
	}
	if groupID != "" {
		filtered := snapshot[:0]
		for _, c := range snapshot {
			if c.GroupID != nil && *c.GroupID == groupID {
				filtered = append(filtered, c)
			}
		}
		snapshot = filtered
	}

	totalCoins := 0
	for _, c := range snapshot {
		totalCoins += c.Balance
	}
	avg := 0.0
	if len(snapshot) > 0 {
		avg = math.Round(float64(totalCoins)/float64(len(snapshot))*10) / 10
	}

	var events []domain.Event
	if err := s.store.Load(domain.KeyEvents, &events); err != nil {
		return nil, err
	}
	inRange := events[:0]
	for _, ev := range events {
		d := domain.EventDate(ev.Timestamp)
		if d >= from && d <= to {
			inRange = append(inRange, ev)
		}
	}
	events = inRange

	var children []domain.Child
	if err := s.store.Load(domain.KeyChildren, &children); err != nil {
		return nil, err
	}
	if groupID != "" {
		// Scope activity to the group's children: the snapshot's members
		// when it has any, otherwise the live roster.
		member := make(map[string]bool)
		for _, c := range snapshot {
			member[c.ChildID] = true
		}
		if len(member) == 0 {
			for _, c := range children {
				if c.GroupID != nil && *c.GroupID == groupID {
					member[c.ID] = true
				}
			}
		}
		scoped := events[:0]
		for _, ev := range events {
			if member[ev.ChildID] {
				scoped = append(scoped, ev)
			}
		}
		events = scoped
	}

	var rules []domain.ActionRule
	if err := s.store.Load(domain.KeyActionsConfig, &rules); err != nil {
		return nil, err
	}
	actionNames := make(map[string]string, len(rules)+1)
	for _, r := range rules {
		actionNames[r.ID] = r.Name
	}
	actionNames[domain.ActionBalanceAdjust] = ledger.AdjustmentActionName

	var groups []domain.Group
	if err := s.store.Load(domain.KeyGroups, &groups); err != nil {
		return nil, err
	}
	groupNames := make(map[string]string, len(groups))
	for _, g := range groups {
		groupNames[g.ID] = g.Name
	}

	// Per-action breakdown.
	byAction := map[string]*ActionStat{}
	var actionOrder []string
	for _, ev := range events {
		aid := ev.ActionID
		if aid == "" {
			aid = "?"
		}
		st, ok := byAction[aid]
		if !ok {
			name, known := actionNames[aid]
			if !known {
				name = aid
			}
			st = &ActionStat{ActionID: aid, ActionName: name}
			byAction[aid] = st
			actionOrder = append(actionOrder, aid)
		}
		st.Count++
		st.TotalCoins += ev.Credited
	}
	actionStats := make([]ActionStat, 0, len(actionOrder))
	for _, aid := range actionOrder {
		actionStats = append(actionStats, *byAction[aid])
	}
	sort.SliceStable(actionStats, func(i, j int) bool { return actionStats[i].Count > actionStats[j].Count })

	// Name and group lookups prefer the snapshot (historical truth) and
	// fall back to the live roster for children created since.
	childName := make(map[string]string)
	childGroup := make(map[string]*string)
	for _, c := range snapshot {
		childName[c.ChildID] = c.FullName
		childGroup[c.ChildID] = c.GroupID
	}
	for _, c := range children {
		if _, ok := childName[c.ID]; !ok {
			childName[c.ID] = c.FullName
		}
		if _, ok := childGroup[c.ID]; !ok {
			childGroup[c.ID] = c.GroupID
		}
	}
	groupNameOf := func(childID string) string {
		gid := childGroup[childID]
		if gid == nil {
			return ""
		}
		return groupNames[*gid]
	}

	// Top children by activity.
	actionCounts := map[string]int{}
	var childOrder []string
	for _, ev := range events {
		if ev.ChildID == "" {
			continue
		}
		if _, ok := actionCounts[ev.ChildID]; !ok {
			childOrder = append(childOrder, ev.ChildID)
		}
		actionCounts[ev.ChildID]++
	}
	topByActions := make([]ChildActivity, 0, len(childOrder))
	for _, cid := range childOrder {
		name, ok := childName[cid]
		if !ok {
			name = cid
		}
		topByActions = append(topByActions, ChildActivity{
			ChildID:      cid,
			FullName:     name,
			ActionsCount: actionCounts[cid],
			GroupName:    groupNameOf(cid),
		})
	}
	sort.SliceStable(topByActions, func(i, j int) bool { return topByActions[i].ActionsCount > topByActions[j].ActionsCount })
	if len(topByActions) > topLimit {
		topByActions = topByActions[:topLimit]
	}

	// Top children by snapshot balance.
	standing := make([]ChildStanding, 0, len(snapshot))
	for _, c := range snapshot {
		standing = append(standing, ChildStanding{
			ChildID:   c.ChildID,
			FullName:  c.FullName,
			Balance:   c.Balance,
			GroupName: groupNameOf(c.ChildID),
		})
	}
	sort.SliceStable(standing, func(i, j int) bool { return standing[i].Balance > standing[j].Balance })
	if len(standing) > topLimit {
		standing = standing[:topLimit]
	}

	// Per-group subtotals.
	byGroup := map[string]*GroupStat{}
	var groupOrder []string
	for _, c := range snapshot {
		gid := ""
		if c.GroupID != nil {
			gid = *c.GroupID
		}
		st, ok := byGroup[gid]
		if !ok {
			name, known := groupNames[gid]
			if !known {
				name = gid
			}
			st = &GroupStat{GroupID: gid, GroupName: name}
			byGroup[gid] = st
			groupOrder = append(groupOrder, gid)
		}
		st.TotalCoins += c.Balance
		st.ChildrenCount++
	}
	groupStats := make([]GroupStat, 0, len(groupOrder))
	for _, gid := range groupOrder {
		st := *byGroup[gid]
		if st.ChildrenCount > 0 {
			st.AvgCoins = math.Round(float64(st.TotalCoins)/float64(st.ChildrenCount)*10) / 10
		}
		groupStats = append(groupStats, st)
	}
	sort.SliceStable(groupStats, func(i, j int) bool { return groupStats[i].TotalCoins > groupStats[j].TotalCoins })

	return &MonthlyStats{
		Year:  year,
		Month: month,
		Summary: Summary{
			TotalCoins:       totalCoins,
			TotalActions:     len(events),
			AvgCoinsPerChild: avg,
			ChildrenCount:    len(snapshot),
		},
		ByAction:             actionStats,
		TopChildrenByCoins:   standing,
		TopChildrenByActions: topByActions,
		ByGroup:              groupStats,
	}, nil
}
