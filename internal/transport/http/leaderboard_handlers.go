package http

import (
	"net/http"
	"strconv"
)

const defaultLeaderboardLimit = 20

func limitParam(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLeaderboardLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 100 {
		return defaultLeaderboardLimit
	}
	return n
}

func (s *Server) handleTopStudents(w http.ResponseWriter, r *http.Request) {
	entries, err := s.users.TopStudents(r.Context(), limitParam(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, entries)
}

func (s *Server) handleSchoolStandings(w http.ResponseWriter, r *http.Request) {
	standings, err := s.users.SchoolStandings(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, standings)
}
