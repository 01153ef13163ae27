package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"school-quiz-service/internal/domain"
)

func validateQuestion(q domain.Question) error {
	if !domain.ValidSubject(q.Subject) {
		return fmt.Errorf("%w: unknown subject %q", domain.ErrInvalidSubject, q.Subject)
	}
	if !domain.ValidGrade(q.Grade) {
		return fmt.Errorf("%w: grade must be %d-%d", domain.ErrMissingFields, domain.MinGrade, domain.MaxGrade)
	}
	if !domain.ValidQuestionType(q.Type) {
		return fmt.Errorf("%w: unknown question type %q", domain.ErrMissingFields, q.Type)
	}
	if q.TextEn == "" || q.TextAr == "" || q.CorrectAnswer == "" {
		return fmt.Errorf("%w: question text and correct answer are required", domain.ErrMissingFields)
	}
	if q.Type == domain.TypeMultipleChoice && (len(q.Options) < 2 || len(q.Options) > 4) {
		return fmt.Errorf("%w: multiple choice needs two to four options", domain.ErrMissingFields)
	}
	return nil
}

// invalidatePool drops the cached question pool after a bank edit so the
// next quiz start sees the change.
func (s *Server) invalidatePool(ctx context.Context, subject domain.Subject, grade int) {
	if s.pools == nil {
		return
	}
	s.pools.Invalidate(ctx, subject, grade)
}

func (s *Server) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var q domain.Question
	if err := decodeJSON(r, &q); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateQuestion(q); err != nil {
		respondDomainError(w, err)
		return
	}
	if !q.HasCorrectOption() {
		// Accepted but surfaced: such questions always grade incorrect.
		log.Printf("question for %s grade %d: correct answer missing from options", q.Subject, q.Grade)
	}
	q.Points = 1

	created, err := s.questions.Create(r.Context(), q)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	s.invalidatePool(r.Context(), created.Subject, created.Grade)
	respond(w, http.StatusCreated, created)
}

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	subject := domain.Subject(r.URL.Query().Get("subject"))
	grade := 0
	if raw := r.URL.Query().Get("grade"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "grade must be a number")
			return
		}
		grade = n
	}
	questions, err := s.questions.List(r.Context(), subject, grade)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, questions)
}

func (s *Server) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := s.questions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, q)
}

func (s *Server) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	var q domain.Question
	if err := decodeJSON(r, &q); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	q.ID = chi.URLParam(r, "id")
	if err := validateQuestion(q); err != nil {
		respondDomainError(w, err)
		return
	}
	prev, err := s.questions.Get(r.Context(), q.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if err := s.questions.Update(r.Context(), q); err != nil {
		respondDomainError(w, err)
		return
	}
	// The question may have moved between pools.
	s.invalidatePool(r.Context(), prev.Subject, prev.Grade)
	s.invalidatePool(r.Context(), q.Subject, q.Grade)
	respond(w, http.StatusOK, q)
}

func (s *Server) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := s.questions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if err := s.questions.Delete(r.Context(), q.ID); err != nil {
		respondDomainError(w, err)
		return
	}
	s.invalidatePool(r.Context(), q.Subject, q.Grade)
	respond(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type statsData struct {
	Users     int `json:"users"`
	Questions int `json:"questions"`
	Attempts  int `json:"attempts"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := s.stats.CountUsers(ctx)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	questions, err := s.stats.CountQuestions(ctx)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	attempts, err := s.stats.CountAttempts(ctx)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, statsData{Users: users, Questions: questions, Attempts: attempts})
}

// handleAttempts lists recent attempts platform-wide, optionally filtered by
// the user query parameter.
func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := s.users.ListAttempts(r.Context(), r.URL.Query().Get("user"), limitParam(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, attempts)
}

// handleListUsers lists registered accounts, newest first, for the admin
// dashboard.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.ListUsers(r.Context(), limitParam(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, users)
}

func (s *Server) handleUserAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := s.users.ListAttempts(r.Context(), chi.URLParam(r, "id"), limitParam(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, attempts)
}
