// Package http exposes the REST and websocket surface of the quiz service.
package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"school-quiz-service/internal/app"
	"school-quiz-service/internal/auth"
	"school-quiz-service/internal/domain"
	"school-quiz-service/internal/leaderboard"
)

// Users is the account read model the handlers need.
type Users interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	ListUsers(ctx context.Context, limit int) ([]*domain.User, error)
	ListAttempts(ctx context.Context, userID string, limit int) ([]domain.QuizAttempt, error)
	TopStudents(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	SchoolStandings(ctx context.Context) ([]domain.SchoolStanding, error)
}

// QuestionAdmin is the question management surface for the admin console.
type QuestionAdmin interface {
	Create(ctx context.Context, q domain.Question) (domain.Question, error)
	Update(ctx context.Context, q domain.Question) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (domain.Question, error)
	List(ctx context.Context, subject domain.Subject, grade int) ([]domain.Question, error)
}

// PoolInvalidator drops cached question pools after bank edits so quiz
// starts pick up changes before the TTL expires.
type PoolInvalidator interface {
	Invalidate(ctx context.Context, subject domain.Subject, grade int)
}

// Stats supplies the admin dashboard counters.
type Stats interface {
	CountUsers(ctx context.Context) (int, error)
	CountQuestions(ctx context.Context) (int, error)
	CountAttempts(ctx context.Context) (int, error)
}

// Server holds the handler dependencies.
type Server struct {
	auth      *auth.Service
	quiz      *app.QuizService
	users     Users
	questions QuestionAdmin
	stats     Stats
	pools     PoolInvalidator
	feed      *leaderboard.Feed
	ws        *WSHandler
}

// NewServer wires the handler dependencies. pools may be nil when quiz
// starts read the question store directly.
func NewServer(authSvc *auth.Service, quiz *app.QuizService, users Users, questions QuestionAdmin, stats Stats, pools PoolInvalidator, feed *leaderboard.Feed) *Server {
	return &Server{
		auth:      authSvc,
		quiz:      quiz,
		users:     users,
		questions: questions,
		stats:     stats,
		pools:     pools,
		feed:      feed,
		ws:        NewWSHandler(feed),
	}
}

// Router assembles all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/admin/login", s.handleAdminLogin)

		r.Get("/leaderboard/top", s.handleTopStudents)
		r.Get("/leaderboard/students", s.handleTopStudents)
		r.Get("/leaderboard/schools", s.handleSchoolStandings)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/logout", s.handleLogout)
			r.Get("/quiz/start/{subject}", s.handleStartQuiz)
			r.Post("/quiz/submit", s.handleSubmitQuiz)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Use(auth.RequireAdmin)
			r.Post("/questions", s.handleCreateQuestion)
			r.Get("/questions", s.handleListQuestions)
			r.Get("/questions/{id}", s.handleGetQuestion)
			r.Put("/questions/{id}", s.handleUpdateQuestion)
			r.Delete("/questions/{id}", s.handleDeleteQuestion)
			r.Get("/stats", s.handleStats)
			r.Get("/attempts", s.handleAttempts)
			r.Get("/users", s.handleListUsers)
			r.Get("/users/{id}/attempts", s.handleUserAttempts)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Get("/ws/leaderboard", s.ws.ServeWS)
	})

	return r
}
