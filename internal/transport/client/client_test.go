package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"school-quiz-service/internal/app"
	"school-quiz-service/internal/auth"
	"school-quiz-service/internal/domain"
	"school-quiz-service/internal/infra/memory"
	"school-quiz-service/internal/leaderboard"
	transporthttp "school-quiz-service/internal/transport/http"
)

func newServer(t *testing.T) (*httptest.Server, *memory.QuestionStore) {
	t.Helper()
	users := memory.NewUserStore()
	questions := memory.NewQuestionStore()
	authSvc := auth.NewService(users, auth.Config{Secret: "test", TokenTTL: time.Hour})
	quizSvc := app.NewQuizService(questions, users, app.Config{QuestionsPerAttempt: 2, TimeLimit: 900})
	feed := leaderboard.NewFeed(users, 20)
	srv := transporthttp.NewServer(authSvc, quizSvc, users, questions, memory.Stats{Users: users, Questions: questions}, nil, feed)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, questions
}

func seed(t *testing.T, questions *memory.QuestionStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := questions.Create(context.Background(), domain.Question{
			Subject:       domain.SubjectMath,
			Grade:         6,
			Type:          domain.TypeTrueFalse,
			TextEn:        "Is water wet?",
			TextAr:        "هل الماء مبلل؟",
			CorrectAnswer: "true",
			Points:        1,
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestClientQuizRoundTrip(t *testing.T) {
	ts, questions := newServer(t)
	seed(t, questions, 4)
	ctx := context.Background()

	c := New(ts.URL)
	user, err := c.Register(ctx, "sara", "hunter2", "Sara Ali", 6, "Al Noor")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Username != "sara" || c.Token() == "" {
		t.Fatal("expected registered user and token")
	}

	set, err := c.StartQuiz(ctx, domain.SubjectMath)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(set.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(set.Questions))
	}

	answers := map[string]string{}
	for _, q := range set.Questions {
		answers[q.ID] = "true"
	}
	result, err := c.SubmitAttempt(ctx, domain.AttemptSubmission{
		Subject: domain.SubjectMath, Answers: answers, TimeTaken: 45,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 2 || result.Percentage != 100 {
		t.Fatalf("unexpected result %+v", result)
	}

	entries, err := c.TopStudents(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 1 || entries[0].TotalBest != 2 {
		t.Fatalf("unexpected standings %+v", entries)
	}

	me, err := c.Me(ctx)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.TotalAttempts != 1 {
		t.Fatalf("expected 1 attempt on profile, got %d", me.TotalAttempts)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	ts, _ := newServer(t)
	ctx := context.Background()

	c := New(ts.URL)
	_, err := c.Login(ctx, "ghost", "nope")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != 401 {
		t.Fatalf("expected 401, got %d", apiErr.Status)
	}

	// Calls without a token surface as a typed 401, not a decode failure.
	_, err = c.Me(ctx)
	apiErr = nil
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError for unauthenticated me, got %v", err)
	}
	if apiErr.Status != 401 {
		t.Fatalf("expected 401, got %d", apiErr.Status)
	}

	_, err = c.StartQuiz(ctx, domain.SubjectMath)
	apiErr = nil
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError for unauthenticated start, got %v", err)
	}
	if apiErr.Status != 401 {
		t.Fatalf("expected 401, got %d", apiErr.Status)
	}
}

func TestClientHandlesNonEnvelopeErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	t.Cleanup(ts.Close)

	c := New(ts.URL)
	_, err := c.Me(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != 502 {
		t.Fatalf("expected 502, got %d", apiErr.Status)
	}
}
