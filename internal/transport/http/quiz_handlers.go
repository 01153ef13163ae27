package http

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"school-quiz-service/internal/auth"
	"school-quiz-service/internal/domain"
)

func (s *Server) handleStartQuiz(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	subject := domain.Subject(chi.URLParam(r, "subject"))

	set, err := s.quiz.StartQuiz(r.Context(), claims.Subject, subject)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, set)
}

func (s *Server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())

	var sub domain.AttemptSubmission
	if err := decodeJSON(r, &sub); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.quiz.SubmitQuiz(r.Context(), claims.Subject, sub)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	// The submission is already committed; a feed hiccup must not fail it.
	if _, err := s.feed.Publish(r.Context()); err != nil {
		log.Printf("leaderboard publish: %v", err)
	}

	respond(w, http.StatusOK, result)
}
