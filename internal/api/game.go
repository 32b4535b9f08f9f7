package api

import (
	"encoding/json"
	"net/http"
)

// ─── Public Game API ────────────────────────────────────────────────────────
// GET  /api/v1/groups           — groups for the first screen
// GET  /api/v1/children         — children with current balances
// GET  /api/v1/game/actions     — crediting rules
// POST /api/v1/game/interaction — one interaction attempt

// handleGroups lists groups.
func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.Roster.Groups()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// handleChildren lists children. Reading the children collection is the
// rollover trigger: the month-boundary check runs first, so balances seen
// here are always for the current period.
func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	if err := s.Rollover.EnsureCurrent(); err != nil {
		writeDomainError(w, err)
		return
	}
	children, err := s.Roster.Children()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

// handleActions lists the crediting rules.
func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	rules, err := s.Roster.ActionRules()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

// handleInteraction evaluates one interaction. Rejections (cooldown,
// daily_limit, …) are 200 responses with success=false — the client shows
// the reason and decides when to retry.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChildID  string `json:"childId"`
		ActionID string `json:"actionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChildID == "" || req.ActionID == "" {
		writeError(w, http.StatusBadRequest, "childId and actionId required")
		return
	}
	if err := s.Rollover.EnsureCurrent(); err != nil {
		writeDomainError(w, err)
		return
	}
	result, err := s.Policy.RecordInteraction(req.ChildID, req.ActionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
