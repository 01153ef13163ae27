package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"school-quiz-service/internal/domain"
)

// QuestionStore is an in-memory question bank. It backs tests and
// redis-less deployments, and doubles as the admin CRUD target.
type QuestionStore struct {
	mu   sync.RWMutex
	byID map[string]domain.Question
	seq  int
	rnd  *rand.Rand
	now  func() time.Time
}

func NewQuestionStore() *QuestionStore {
	return &QuestionStore{
		byID: make(map[string]domain.Question),
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
		now:  time.Now,
	}
}

// Create assigns an id and stores the question.
func (s *QuestionStore) Create(_ context.Context, q domain.Question) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	q.ID = fmt.Sprintf("q-%d", s.seq)
	q.CreatedAt = s.now()
	if q.Points == 0 {
		q.Points = 1
	}
	s.byID[q.ID] = q
	return q, nil
}

// Update replaces an existing question.
func (s *QuestionStore) Update(_ context.Context, q domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[q.ID]; !ok {
		return domain.ErrQuestionNotFound
	}
	s.byID[q.ID] = q
	return nil
}

// Delete removes a question from the bank.
func (s *QuestionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return domain.ErrQuestionNotFound
	}
	delete(s.byID, id)
	return nil
}

// Get returns one question with its answers (admin view).
func (s *QuestionStore) Get(_ context.Context, id string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.byID[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

// List returns questions filtered by subject and/or grade, newest first.
// A zero grade or empty subject matches everything.
func (s *QuestionStore) List(_ context.Context, subject domain.Subject, grade int) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0, len(s.byID))
	for _, q := range s.byID {
		if subject != "" && q.Subject != subject {
			continue
		}
		if grade != 0 && q.Grade != grade {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// QuestionsFor returns the full pool for a subject and grade; cache layers
// sample from it.
func (s *QuestionStore) QuestionsFor(_ context.Context, subject domain.Subject, grade int) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0)
	for _, q := range s.byID {
		if q.Subject == subject && q.Grade == grade {
			out = append(out, q)
		}
	}
	return out, nil
}

// RandomSet samples up to size questions for a subject and grade.
func (s *QuestionStore) RandomSet(ctx context.Context, subject domain.Subject, grade, size int) ([]domain.Question, error) {
	pool, err := s.QuestionsFor(ctx, subject, grade)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	perm := s.rnd.Perm(len(pool))
	s.mu.Unlock()
	if size > len(pool) {
		size = len(pool)
	}
	out := make([]domain.Question, 0, size)
	for _, idx := range perm[:size] {
		out = append(out, pool[idx])
	}
	return out, nil
}

// GetByIDs resolves questions by id; unknown ids are skipped.
func (s *QuestionStore) GetByIDs(_ context.Context, ids []string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := s.byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

// Count reports the number of stored questions.
func (s *QuestionStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}
