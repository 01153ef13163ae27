package memory

import (
	"context"
	"testing"
	"time"

	"school-quiz-service/internal/domain"
)

type countingSource struct {
	QuestionSource
	calls int
}

func (s *countingSource) QuestionsFor(ctx context.Context, subject domain.Subject, grade int) ([]domain.Question, error) {
	s.calls++
	return s.QuestionSource.QuestionsFor(ctx, subject, grade)
}

func seedBank(t *testing.T, n int) *QuestionStore {
	t.Helper()
	store := NewQuestionStore()
	for i := 0; i < n; i++ {
		_, err := store.Create(context.Background(), domain.Question{
			Subject:       domain.SubjectMath,
			Grade:         5,
			Type:          domain.TypeMultipleChoice,
			TextEn:        "What is 2 + 2?",
			TextAr:        "ما هو 2 + 2؟",
			Options:       []string{"3", "4", "5"},
			CorrectAnswer: "4",
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return store
}

func TestQuestionCacheHitsSourceOnce(t *testing.T) {
	ctx := context.Background()
	source := &countingSource{QuestionSource: seedBank(t, 12)}
	cache := NewQuestionCache(source, time.Minute)

	if _, err := cache.RandomSet(ctx, domain.SubjectMath, 5, 10); err != nil {
		t.Fatalf("random set: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected source loaded once, got %d", source.calls)
	}

	if _, err := cache.RandomSet(ctx, domain.SubjectMath, 5, 10); err != nil {
		t.Fatalf("random set 2: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected cache hit, source calls %d", source.calls)
	}
}

func TestRandomSetSizeAndMembership(t *testing.T) {
	ctx := context.Background()
	cache := NewQuestionCache(seedBank(t, 25), time.Minute)

	set, err := cache.RandomSet(ctx, domain.SubjectMath, 5, 10)
	if err != nil {
		t.Fatalf("random set: %v", err)
	}
	if len(set) != 10 {
		t.Fatalf("expected 10 questions, got %d", len(set))
	}
	seen := make(map[string]bool)
	for _, q := range set {
		if seen[q.ID] {
			t.Fatalf("duplicate question %s in random set", q.ID)
		}
		seen[q.ID] = true
	}
}

func TestRandomSetSmallerPool(t *testing.T) {
	ctx := context.Background()
	cache := NewQuestionCache(seedBank(t, 4), time.Minute)

	set, err := cache.RandomSet(ctx, domain.SubjectMath, 5, 10)
	if err != nil {
		t.Fatalf("random set: %v", err)
	}
	if len(set) != 4 {
		t.Fatalf("expected pool-sized set, got %d", len(set))
	}
}

func TestInvalidateDropsPool(t *testing.T) {
	ctx := context.Background()
	source := &countingSource{QuestionSource: seedBank(t, 12)}
	cache := NewQuestionCache(source, time.Minute)

	if _, err := cache.RandomSet(ctx, domain.SubjectMath, 5, 10); err != nil {
		t.Fatalf("random set: %v", err)
	}
	cache.Invalidate(ctx, domain.SubjectMath, 5)
	if _, err := cache.RandomSet(ctx, domain.SubjectMath, 5, 10); err != nil {
		t.Fatalf("random set 2: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("expected reload after invalidation, calls %d", source.calls)
	}
}
