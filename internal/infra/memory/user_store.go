package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"school-quiz-service/internal/domain"
)

// UserStore keeps accounts and attempt records in memory. One mutex covers
// both so ApplyAttempt's user update and attempt insert are atomic together,
// matching the all-or-nothing ledger contract the Postgres store provides
// with a transaction.
type UserStore struct {
	mu         sync.RWMutex
	users      map[string]*domain.User
	byUsername map[string]string
	attempts   []domain.QuizAttempt
	userSeq    int
	attemptSeq int
	now        func() time.Time
}

func NewUserStore() *UserStore {
	return NewUserStoreWithClock(time.Now)
}

// NewUserStoreWithClock allows deterministic timestamps in tests.
func NewUserStoreWithClock(now func() time.Time) *UserStore {
	return &UserStore{
		users:      make(map[string]*domain.User),
		byUsername: make(map[string]string),
		now:        now,
	}
}

// CreateUser registers an account; usernames are unique, case-insensitive.
func (s *UserStore) CreateUser(_ context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(user.Username)
	if _, taken := s.byUsername[key]; taken {
		return nil, domain.ErrUsernameTaken
	}
	s.userSeq++
	stored := user.Clone()
	stored.ID = fmt.Sprintf("u-%d", s.userSeq)
	stored.Username = key
	stored.CreatedAt = s.now()
	s.users[stored.ID] = stored
	s.byUsername[key] = stored.ID
	return stored.Clone(), nil
}

// GetUser returns a snapshot of the account.
func (s *UserStore) GetUser(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return user.Clone(), nil
}

// GetUserByUsername looks up an account for login.
func (s *UserStore) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return s.users[id].Clone(), nil
}

// TouchLastLogin stamps a successful login.
func (s *UserStore) TouchLastLogin(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.LastLogin = s.now()
	return nil
}

// ApplyAttempt folds an attempt into the user's ledger state and appends the
// attempt record under one lock, so no concurrent submission can observe or
// produce a partial update.
func (s *UserStore) ApplyAttempt(_ context.Context, userID string, attempt *domain.QuizAttempt) (domain.AttemptOutcome, *domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.AttemptOutcome{}, nil, domain.ErrUserNotFound
	}

	outcome := user.ApplyAttempt(attempt.Subject, attempt.Score, attempt.TotalQuestions)

	s.attemptSeq++
	attempt.ID = fmt.Sprintf("a-%d", s.attemptSeq)
	attempt.IsBestScore = outcome.IsNewBest
	s.attempts = append(s.attempts, *attempt)

	return outcome, user.Clone(), nil
}

// ListUsers returns account snapshots, newest first.
func (s *UserStore) ListUsers(_ context.Context, limit int) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Username < out[j].Username
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListAttempts returns attempt records, newest first, optionally filtered by
// user.
func (s *UserStore) ListAttempts(_ context.Context, userID string, limit int) ([]domain.QuizAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.QuizAttempt, 0, limit)
	for i := len(s.attempts) - 1; i >= 0; i-- {
		if userID != "" && s.attempts[i].UserID != userID {
			continue
		}
		out = append(out, s.attempts[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// CountUsers reports the number of accounts.
func (s *UserStore) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// CountAttempts reports the number of recorded attempts.
func (s *UserStore) CountAttempts(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts), nil
}

// TopStudents returns the student standings ordered by total best score,
// then total stars, then name.
func (s *UserStore) TopStudents(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	entries := make([]domain.LeaderboardEntry, 0, len(s.users))
	for _, u := range s.users {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:     u.ID,
			FullName:   u.FullName,
			School:     u.School,
			Grade:      u.Grade,
			TotalBest:  u.TotalBest,
			TotalStars: u.TotalStars,
		})
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalBest != entries[j].TotalBest {
			return entries[i].TotalBest > entries[j].TotalBest
		}
		if entries[i].TotalStars != entries[j].TotalStars {
			return entries[i].TotalStars > entries[j].TotalStars
		}
		return entries[i].FullName < entries[j].FullName
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// SchoolStandings aggregates totals per school, best schools first.
func (s *UserStore) SchoolStandings(_ context.Context) ([]domain.SchoolStanding, error) {
	s.mu.RLock()
	bySchool := make(map[string]*domain.SchoolStanding)
	for _, u := range s.users {
		st, ok := bySchool[u.School]
		if !ok {
			st = &domain.SchoolStanding{School: u.School}
			bySchool[u.School] = st
		}
		st.Students++
		st.TotalBest += u.TotalBest
		st.TotalStars += u.TotalStars
	}
	s.mu.RUnlock()

	out := make([]domain.SchoolStanding, 0, len(bySchool))
	for _, st := range bySchool {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalBest != out[j].TotalBest {
			return out[i].TotalBest > out[j].TotalBest
		}
		return out[i].School < out[j].School
	})
	return out, nil
}
