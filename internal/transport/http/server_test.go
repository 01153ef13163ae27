package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"school-quiz-service/internal/app"
	"school-quiz-service/internal/auth"
	"school-quiz-service/internal/domain"
	"school-quiz-service/internal/infra/memory"
	"school-quiz-service/internal/leaderboard"
)

type testEnv struct {
	server    *httptest.Server
	users     *memory.UserStore
	questions *memory.QuestionStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := memory.NewUserStore()
	questions := memory.NewQuestionStore()
	authSvc := auth.NewService(users, auth.Config{
		Secret:        "test-secret",
		TokenTTL:      time.Hour,
		AdminUsername: "admin",
		AdminPassword: "s3cret",
	})
	cache := memory.NewQuestionCache(questions, time.Hour)
	quizSvc := app.NewQuizService(cache, users, app.Config{QuestionsPerAttempt: 3, TimeLimit: 900})
	feed := leaderboard.NewFeed(users, 20)
	srv := NewServer(authSvc, quizSvc, users, questions, memory.Stats{Users: users, Questions: questions}, cache, feed)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, users: users, questions: questions}
}

func (e *testEnv) seedQuestions(t *testing.T, subject domain.Subject, grade, n int) []domain.Question {
	t.Helper()
	out := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		q, err := e.questions.Create(context.Background(), domain.Question{
			Subject:       subject,
			Grade:         grade,
			Type:          domain.TypeTextInput,
			TextEn:        fmt.Sprintf("What is %d + %d?", i, i),
			TextAr:        fmt.Sprintf("كم يساوي %d + %d؟", i, i),
			CorrectAnswer: fmt.Sprintf("%d", i+i),
			Points:        1,
		})
		if err != nil {
			t.Fatalf("seed question: %v", err)
		}
		out = append(out, q)
	}
	return out
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp.StatusCode, env
}

func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()
	status, env := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"username": username,
		"password": "hunter2",
		"fullName": "Student " + username,
		"grade":    6,
		"school":   "Al Noor",
	})
	if status != http.StatusCreated {
		t.Fatalf("register: status %d message %q", status, env.Message)
	}
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		t.Fatalf("register: missing token (%v)", err)
	}
	return data.Token
}

func TestRegisterLoginMe(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "sara")

	status, resp := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "sara", "password": "hunter2",
	})
	if status != http.StatusOK {
		t.Fatalf("login: status %d message %q", status, resp.Message)
	}
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode login data: %v", err)
	}

	status, resp = env.do(t, http.MethodGet, "/api/auth/me", data.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("me: status %d", status)
	}
	var me domain.User
	if err := json.Unmarshal(resp.Data, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Username != "sara" || me.Grade != 6 {
		t.Fatalf("unexpected profile %+v", me)
	}

	status, resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "sara", "password": "nope",
	})
	if status != http.StatusUnauthorized || resp.Success {
		t.Fatalf("expected 401 for wrong password, got %d", status)
	}
}

func TestDuplicateUsernameConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "sara")

	status, _ := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"username": "SARA", "password": "x", "fullName": "Other", "grade": 5, "school": "S",
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate username, got %d", status)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	status, resp := env.do(t, http.MethodGet, "/api/quiz/start/math", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
	// Auth failures use the same envelope as every other error.
	if resp.Success || resp.Message == "" {
		t.Fatalf("expected error envelope, got %+v", resp)
	}

	status, resp = env.do(t, http.MethodGet, "/api/quiz/start/math", "not-a-token", nil)
	if status != http.StatusUnauthorized || resp.Success {
		t.Fatalf("expected 401 envelope for bad token, got %d %+v", status, resp)
	}
}

func TestQuizFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seedQuestions(t, domain.SubjectMath, 6, 5)
	token := env.register(t, "sara")

	status, resp := env.do(t, http.MethodGet, "/api/quiz/start/math", token, nil)
	if status != http.StatusOK {
		t.Fatalf("start: status %d message %q", status, resp.Message)
	}
	var set domain.QuestionSet
	if err := json.Unmarshal(resp.Data, &set); err != nil {
		t.Fatalf("decode question set: %v", err)
	}
	if len(set.Questions) != 3 || set.TimeLimit != 900 {
		t.Fatalf("unexpected set: %d questions, limit %d", len(set.Questions), set.TimeLimit)
	}
	for _, q := range set.Questions {
		if q.TextEn == "" || q.TextAr == "" {
			t.Fatalf("question %s missing bilingual text", q.ID)
		}
	}

	// Answer everything correctly by recomputing the seeded sums.
	answers := map[string]string{}
	for _, q := range set.Questions {
		full, err := env.questions.Get(context.Background(), q.ID)
		if err != nil {
			t.Fatalf("lookup %s: %v", q.ID, err)
		}
		answers[q.ID] = full.CorrectAnswer
	}

	status, resp = env.do(t, http.MethodPost, "/api/quiz/submit", token, map[string]interface{}{
		"subject": "math", "answers": answers, "timeTaken": 120,
	})
	if status != http.StatusOK {
		t.Fatalf("submit: status %d message %q", status, resp.Message)
	}
	var result domain.SubmissionResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Score != 3 || result.Percentage != 100 || !result.IsNewBest {
		t.Fatalf("unexpected result %+v", result)
	}

	status, resp = env.do(t, http.MethodGet, "/api/leaderboard/top", "", nil)
	if status != http.StatusOK {
		t.Fatalf("leaderboard: status %d", status)
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(resp.Data, &entries); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(entries) != 1 || entries[0].TotalBest != 3 {
		t.Fatalf("unexpected leaderboard %+v", entries)
	}
}

func TestStartUnknownSubject(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "sara")

	status, _ := env.do(t, http.MethodGet, "/api/quiz/start/history", token, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown subject, got %d", status)
	}
}

func TestStartWithEmptyBank(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "sara")

	status, _ := env.do(t, http.MethodGet, "/api/quiz/start/science", token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for empty bank, got %d", status)
	}
}

func adminToken(t *testing.T, env *testEnv) string {
	t.Helper()
	status, resp := env.do(t, http.MethodPost, "/api/auth/admin/login", "", map[string]string{
		"username": "admin", "password": "s3cret",
	})
	if status != http.StatusOK {
		t.Fatalf("admin login: status %d", status)
	}
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode admin token: %v", err)
	}
	return data.Token
}

func TestAdminQuestionCRUD(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, env)

	status, resp := env.do(t, http.MethodPost, "/api/admin/questions", token, domain.Question{
		Subject:       domain.SubjectScience,
		Grade:         7,
		Type:          domain.TypeMultipleChoice,
		TextEn:        "Which planet is red?",
		TextAr:        "أي كوكب أحمر؟",
		Options:       []string{"Mars", "Venus"},
		CorrectAnswer: "Mars",
	})
	if status != http.StatusCreated {
		t.Fatalf("create: status %d message %q", status, resp.Message)
	}
	var created domain.Question
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == "" || created.Points != 1 {
		t.Fatalf("unexpected created question %+v", created)
	}

	created.TextEn = "Which planet is called the red planet?"
	status, _ = env.do(t, http.MethodPut, "/api/admin/questions/"+created.ID, token, created)
	if status != http.StatusOK {
		t.Fatalf("update: status %d", status)
	}

	status, resp = env.do(t, http.MethodGet, "/api/admin/questions?subject=science", token, nil)
	if status != http.StatusOK {
		t.Fatalf("list: status %d", status)
	}
	var listed []domain.Question
	if err := json.Unmarshal(resp.Data, &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].TextEn != created.TextEn {
		t.Fatalf("unexpected list %+v", listed)
	}

	status, _ = env.do(t, http.MethodDelete, "/api/admin/questions/"+created.ID, token, nil)
	if status != http.StatusOK {
		t.Fatalf("delete: status %d", status)
	}
	status, _ = env.do(t, http.MethodGet, "/api/admin/questions/"+created.ID, token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
}

func TestAdminValidationRejectsBadQuestion(t *testing.T) {
	env := newTestEnv(t)
	token := adminToken(t, env)

	status, _ := env.do(t, http.MethodPost, "/api/admin/questions", token, domain.Question{
		Subject: domain.SubjectMath, Grade: 2, Type: domain.TypeTextInput,
		TextEn: "x", TextAr: "y", CorrectAnswer: "1",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range grade, got %d", status)
	}

	status, _ = env.do(t, http.MethodPost, "/api/admin/questions", token, domain.Question{
		Subject: domain.SubjectMath, Grade: 6, Type: domain.TypeMultipleChoice,
		TextEn: "Pick one", TextAr: "اختر واحدة",
		Options:       []string{"1", "2", "3", "4", "5"},
		CorrectAnswer: "1",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for more than four options, got %d", status)
	}
}

func TestAdminEditsRefreshQuestionPool(t *testing.T) {
	env := newTestEnv(t)
	env.seedQuestions(t, domain.SubjectMath, 6, 2)
	studentToken := env.register(t, "sara")

	// First start caches the two-question pool.
	status, resp := env.do(t, http.MethodGet, "/api/quiz/start/math", studentToken, nil)
	if status != http.StatusOK {
		t.Fatalf("start: status %d message %q", status, resp.Message)
	}
	var set domain.QuestionSet
	if err := json.Unmarshal(resp.Data, &set); err != nil {
		t.Fatalf("decode question set: %v", err)
	}
	if len(set.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(set.Questions))
	}

	token := adminToken(t, env)
	status, _ = env.do(t, http.MethodPost, "/api/admin/questions", token, domain.Question{
		Subject: domain.SubjectMath, Grade: 6, Type: domain.TypeTextInput,
		TextEn: "What is 10 + 10?", TextAr: "كم يساوي 10 + 10؟", CorrectAnswer: "20",
	})
	if status != http.StatusCreated {
		t.Fatalf("create: status %d", status)
	}

	// The cache TTL is an hour; only invalidation can surface the new
	// question on the next start.
	status, resp = env.do(t, http.MethodGet, "/api/quiz/start/math", studentToken, nil)
	if status != http.StatusOK {
		t.Fatalf("second start: status %d", status)
	}
	if err := json.Unmarshal(resp.Data, &set); err != nil {
		t.Fatalf("decode second set: %v", err)
	}
	if len(set.Questions) != 3 {
		t.Fatalf("expected refreshed pool with 3 questions, got %d", len(set.Questions))
	}
}

func TestAdminStats(t *testing.T) {
	env := newTestEnv(t)
	env.seedQuestions(t, domain.SubjectMath, 6, 4)
	env.register(t, "sara")
	token := adminToken(t, env)

	status, resp := env.do(t, http.MethodGet, "/api/admin/stats", token, nil)
	if status != http.StatusOK {
		t.Fatalf("stats: status %d", status)
	}
	var stats statsData
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Users != 1 || stats.Questions != 4 || stats.Attempts != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestAdminListUsers(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "sara")
	env.register(t, "omar")
	token := adminToken(t, env)

	status, resp := env.do(t, http.MethodGet, "/api/admin/users", token, nil)
	if status != http.StatusOK {
		t.Fatalf("list users: status %d message %q", status, resp.Message)
	}
	var users []domain.User
	if err := json.Unmarshal(resp.Data, &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	for _, u := range users {
		if u.PasswordHash != "" {
			t.Fatalf("password hash leaked for %s", u.Username)
		}
	}
	if !bytes.Contains(resp.Data, []byte("sara")) || !bytes.Contains(resp.Data, []byte("omar")) {
		t.Fatalf("missing accounts in %s", resp.Data)
	}
}

func TestStudentForbiddenOnAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "sara")

	status, _ := env.do(t, http.MethodGet, "/api/admin/stats", token, nil)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for student on admin route, got %d", status)
	}
}
