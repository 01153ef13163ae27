// Package client is the typed HTTP client for the quiz service API. It backs
// the terminal quiz runner and is usable as a library on its own.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"school-quiz-service/internal/domain"
)

// APIError carries the status and message the server responded with.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client talks to one quiz service instance. Calls made after SetToken send
// the bearer token.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken installs the bearer token for subsequent calls.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the installed bearer token.
func (c *Client) Token() string { return c.token }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	decErr := json.NewDecoder(resp.Body).Decode(&env)
	if resp.StatusCode >= 400 {
		// Error statuses are reported as APIError even when the body is
		// not the usual envelope (proxies, panics).
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if decErr != nil {
		return fmt.Errorf("decode response: %w", decErr)
	}
	if !env.Success {
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}
	return nil
}

type authData struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Register creates an account and installs its token.
func (c *Client) Register(ctx context.Context, username, password, fullName string, grade int, school string) (*domain.User, error) {
	var data authData
	err := c.call(ctx, http.MethodPost, "/api/auth/register", map[string]interface{}{
		"username": username,
		"password": password,
		"fullName": fullName,
		"grade":    grade,
		"school":   school,
	}, &data)
	if err != nil {
		return nil, err
	}
	c.token = data.Token
	return data.User, nil
}

// Login authenticates and installs the token.
func (c *Client) Login(ctx context.Context, username, password string) (*domain.User, error) {
	var data authData
	err := c.call(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &data)
	if err != nil {
		return nil, err
	}
	c.token = data.Token
	return data.User, nil
}

// Me fetches the authenticated profile.
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.call(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// StartQuiz fetches a fresh question set for the subject.
func (c *Client) StartQuiz(ctx context.Context, subject domain.Subject) (domain.QuestionSet, error) {
	var set domain.QuestionSet
	path := "/api/quiz/start/" + url.PathEscape(string(subject))
	if err := c.call(ctx, http.MethodGet, path, nil, &set); err != nil {
		return domain.QuestionSet{}, err
	}
	return set, nil
}

// SubmitAttempt grades the submission server-side.
func (c *Client) SubmitAttempt(ctx context.Context, sub domain.AttemptSubmission) (domain.SubmissionResult, error) {
	var result domain.SubmissionResult
	if err := c.call(ctx, http.MethodPost, "/api/quiz/submit", sub, &result); err != nil {
		return domain.SubmissionResult{}, err
	}
	return result, nil
}

// TopStudents fetches the student standings.
func (c *Client) TopStudents(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	var entries []domain.LeaderboardEntry
	path := fmt.Sprintf("/api/leaderboard/top?limit=%d", limit)
	if err := c.call(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// SchoolStandings fetches the per-school aggregates.
func (c *Client) SchoolStandings(ctx context.Context) ([]domain.SchoolStanding, error) {
	var standings []domain.SchoolStanding
	if err := c.call(ctx, http.MethodGet, "/api/leaderboard/schools", nil, &standings); err != nil {
		return nil, err
	}
	return standings, nil
}
