package http

import (
	"net/http"

	"school-quiz-service/internal/auth"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authData struct {
	Token string      `json:"token"`
	User  interface{} `json:"user,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, token, err := s.auth.Register(r.Context(), req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respond(w, http.StatusCreated, authData{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, token, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, authData{Token: token, User: user})
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := s.auth.AdminLogin(req.Username, req.Password)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, authData{Token: token})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	user, err := s.users.GetUser(r.Context(), claims.Subject)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, user)
}

// handleLogout exists for client symmetry. Tokens are stateless, so the
// server has nothing to revoke; clients discard the token.
func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "logged out"})
}
