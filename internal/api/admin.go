package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ecotree-app/ecotree/internal/app/ledger"
	"github.com/ecotree-app/ecotree/internal/auth"
	"github.com/ecotree-app/ecotree/internal/domain"
)

// ─── Admin API ──────────────────────────────────────────────────────────────
// Session-authenticated surface for administrators and group educators.
// Educators see and mutate only their own group; that scoping is enforced
// here, at the boundary, not in the app services.

// handleLogin opens a session and sets the session cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}
	token, err := s.Auth.Login(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
		case errors.Is(err, domain.ErrForbidden):
			writeError(w, http.StatusForbidden, "not_staff")
		default:
			writeDomainError(w, err)
		}
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleLogout closes the session and clears the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookie); err == nil {
		s.Auth.Logout(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleMe reports the session's role and group scope.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())
	groupID := ""
	if sess.IsEducator() {
		groupID = sess.GroupID
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"role":     sess.Role,
		"group_id": groupID,
	})
}

// ─── Statistics & Events ────────────────────────────────────────────────────

// handleStatsGroups serves per-group period stats.
func (s *Server) handleStatsGroups(w http.ResponseWriter, r *http.Request) {
	if err := s.Rollover.EnsureCurrent(); err != nil {
		writeDomainError(w, err)
		return
	}
	rows, err := s.Stats.Groups(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if gid := educatorGroup(r); gid != "" {
		scoped := rows[:0]
		for _, row := range rows {
			if row.GroupID == gid {
				scoped = append(scoped, row)
			}
		}
		rows = scoped
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleStatsChildren serves per-child period stats.
func (s *Server) handleStatsChildren(w http.ResponseWriter, r *http.Request) {
	if err := s.Rollover.EnsureCurrent(); err != nil {
		writeDomainError(w, err)
		return
	}
	q := r.URL.Query()
	groupID := educatorGroup(r)
	if groupID == "" {
		groupID = q.Get("groupId")
	}
	rows, err := s.Stats.Children(groupID, q.Get("q"), q.Get("from"), q.Get("to"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleEvents serves the audit event list.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	groupID := educatorGroup(r)
	if groupID == "" {
		groupID = q.Get("groupId")
	}
	entries, err := s.Ledger.Query(ledger.Filter{
		ChildID: q.Get("childId"),
		GroupID: groupID,
		From:    q.Get("from"),
		To:      q.Get("to"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleChildEvents serves one child's history. Educators only see
// children of their own group; anything else reads as not found.
func (s *Server) handleChildEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.childVisible(w, r, id) {
		return
	}
	q := r.URL.Query()
	entries, err := s.Ledger.Query(ledger.Filter{
		ChildID: id,
		From:    q.Get("from"),
		To:      q.Get("to"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleMonthlyResults serves the rollover archive, newest first.
func (s *Server) handleMonthlyResults(w http.ResponseWriter, r *http.Request) {
	if err := s.Rollover.EnsureCurrent(); err != nil {
		writeDomainError(w, err)
		return
	}
	results, err := s.Rollover.Results(educatorGroup(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleMonthlyStats serves the extended statistics for one month.
func (s *Server) handleMonthlyStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year must be an integer")
		return
	}
	month, err := strconv.Atoi(q.Get("month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "month must be 1..12")
		return
	}
	if err := s.Rollover.EnsureCurrent(); err != nil {
		writeDomainError(w, err)
		return
	}
	groupID := educatorGroup(r)
	if groupID == "" {
		groupID = q.Get("groupId")
	}
	st, err := s.Rollover.Stats(year, month, groupID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ─── Balance Adjustment ─────────────────────────────────────────────────────

// handleBalanceAdjust applies an administrative delta to one child. The
// month-boundary check runs first so the delta lands on the current
// period's balance, never the one about to be archived.
func (s *Server) handleBalanceAdjust(w http.ResponseWriter, r *http.Request) {
	if err := s.Rollover.EnsureCurrent(); err != nil {
		writeDomainError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if !s.childVisible(w, r, id) {
		return
	}
	var req struct {
		Delta   *int   `json:"delta"`
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Delta == nil {
		writeError(w, http.StatusBadRequest, "delta required")
		return
	}
	sess, _ := sessionFromContext(r.Context())
	newBalance, err := s.Policy.AdjustBalance(id, *req.Delta, req.Comment, sess.Username)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"new_balance": newBalance})
}

// ─── Group CRUD ─────────────────────────────────────────────────────────────

// handleAdminGroups lists groups for management.
func (s *Server) handleAdminGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.Roster.Groups()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if gid := educatorGroup(r); gid != "" {
		scoped := groups[:0]
		for _, g := range groups {
			if g.ID == gid {
				scoped = append(scoped, g)
			}
		}
		groups = scoped
	}
	writeJSON(w, http.StatusOK, groups)
}

// handleGroupCreate creates a group. Educators may not.
func (s *Server) handleGroupCreate(w http.ResponseWriter, r *http.Request) {
	if educatorGroup(r) != "" {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	g, err := s.Roster.CreateGroup(req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// handleGroupUpdate renames a group. Educators may rename only their own.
func (s *Server) handleGroupUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if gid := educatorGroup(r); gid != "" && gid != id {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.Roster.UpdateGroup(id, req.Name); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "name": req.Name})
}

// handleGroupDelete deletes an empty group. Educators may not delete.
func (s *Server) handleGroupDelete(w http.ResponseWriter, r *http.Request) {
	if educatorGroup(r) != "" {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if err := s.Roster.DeleteGroup(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ─── Child CRUD ─────────────────────────────────────────────────────────────

// handleChildCreate creates a child. Educators create into their own group.
func (s *Server) handleChildCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName string `json:"fullName"`
		GroupID  string `json:"groupId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if gid := educatorGroup(r); gid != "" {
		req.GroupID = gid
	}
	c, err := s.Roster.CreateChild(req.FullName, req.GroupID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// handleChildUpdate updates a child. Educators touch only their own group's
// children and cannot move them out of it.
func (s *Server) handleChildUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		FullName string `json:"fullName"`
		GroupID  string `json:"groupId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if gid := educatorGroup(r); gid != "" {
		if !s.childVisible(w, r, id) {
			return
		}
		req.GroupID = gid
	}
	if err := s.Roster.UpdateChild(id, req.FullName, req.GroupID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "fullName": req.FullName, "groupId": req.GroupID})
}

// handleChildDelete deletes a child and its events. The month-boundary
// check runs first so a child removed in a new month still appears in the
// closing snapshot with their final balance.
func (s *Server) handleChildDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.Rollover.EnsureCurrent(); err != nil {
		writeDomainError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if !s.childVisible(w, r, id) {
		return
	}
	if err := s.Roster.DeleteChild(id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// childVisible enforces the educator scope for child-addressed routes: a
// child outside the educator's group reads as not found (existence is not
// leaked). Writes the response itself when access is denied.
func (s *Server) childVisible(w http.ResponseWriter, r *http.Request, childID string) bool {
	gid := educatorGroup(r)
	if gid == "" {
		return true
	}
	child, err := s.Roster.ChildByID(childID)
	if err != nil || child.GroupID == nil || *child.GroupID != gid {
		writeError(w, http.StatusNotFound, "child not found")
		return false
	}
	return true
}
