package app

import (
	"context"
	"math"
	"sort"
	"time"

	"school-quiz-service/internal/domain"
	"school-quiz-service/internal/grading"
)

// QuestionRepository loads question content (from cache/backing store).
type QuestionRepository interface {
	// RandomSet returns up to size random questions for a subject and grade.
	RandomSet(ctx context.Context, subject domain.Subject, grade, size int) ([]domain.Question, error)
	// GetByIDs resolves questions by id; unknown ids are silently absent.
	GetByIDs(ctx context.Context, ids []string) ([]domain.Question, error)
}

// Ledger applies attempt outcomes to the persisted user record. ApplyAttempt
// must be atomic per user: the best-score/attempt-count/star update and the
// attempt record insert commit together or not at all, and concurrent
// submissions for the same user must not lose updates.
type Ledger interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	ApplyAttempt(ctx context.Context, userID string, attempt *domain.QuizAttempt) (domain.AttemptOutcome, *domain.User, error)
}

// Config fixes the per-attempt shape of a quiz.
type Config struct {
	QuestionsPerAttempt int
	TimeLimit           int // seconds
}

// DefaultConfig matches production: 10 questions, 15 minutes.
func DefaultConfig() Config {
	return Config{QuestionsPerAttempt: 10, TimeLimit: 900}
}

// QuizService contains the core quiz use cases: starting an attempt and
// scoring a submission.
type QuizService struct {
	questions QuestionRepository
	ledger    Ledger
	cfg       Config
	now       func() time.Time
}

func NewQuizService(questions QuestionRepository, ledger Ledger, cfg Config) *QuizService {
	return NewQuizServiceWithClock(questions, ledger, cfg, time.Now)
}

// NewQuizServiceWithClock is test-only for deterministic timestamps.
func NewQuizServiceWithClock(questions QuestionRepository, ledger Ledger, cfg Config, now func() time.Time) *QuizService {
	return &QuizService{questions: questions, ledger: ledger, cfg: cfg, now: now}
}

// StartQuiz assembles a random question set for the user's subject and grade
// with correct answers stripped.
func (s *QuizService) StartQuiz(ctx context.Context, userID string, subject domain.Subject) (domain.QuestionSet, error) {
	if !domain.ValidSubject(subject) {
		return domain.QuestionSet{}, domain.ErrInvalidSubject
	}
	user, err := s.ledger.GetUser(ctx, userID)
	if err != nil {
		return domain.QuestionSet{}, err
	}

	questions, err := s.questions.RandomSet(ctx, subject, user.Grade, s.cfg.QuestionsPerAttempt)
	if err != nil {
		return domain.QuestionSet{}, err
	}
	if len(questions) == 0 {
		return domain.QuestionSet{}, domain.ErrNoQuestions
	}

	public := make([]domain.PublicQuestion, 0, len(questions))
	for _, q := range questions {
		public = append(public, q.Public())
	}
	return domain.QuestionSet{
		Questions:      public,
		Subject:        subject,
		TotalQuestions: len(public),
		TimeLimit:      s.cfg.TimeLimit,
	}, nil
}

// SubmitQuiz scores a submission and applies it to the user's ledger state.
// Validation failures leave no trace; a malformed question (unknown type, or
// a multiple-choice entry whose correct answer is missing from its options)
// scores zero without aborting the rest of the attempt.
func (s *QuizService) SubmitQuiz(ctx context.Context, userID string, sub domain.AttemptSubmission) (domain.SubmissionResult, error) {
	if !domain.ValidSubject(sub.Subject) || sub.Answers == nil {
		return domain.SubmissionResult{}, domain.ErrMissingFields
	}
	user, err := s.ledger.GetUser(ctx, userID)
	if err != nil {
		return domain.SubmissionResult{}, err
	}

	questionIDs := make([]string, 0, len(sub.Answers))
	for id := range sub.Answers {
		questionIDs = append(questionIDs, id)
	}
	sort.Strings(questionIDs)

	questions, err := s.questions.GetByIDs(ctx, questionIDs)
	if err != nil {
		return domain.SubmissionResult{}, err
	}

	score := 0
	for _, q := range questions {
		if !domain.ValidQuestionType(q.Type) || !q.HasCorrectOption() {
			continue
		}
		if grading.IsCorrect(sub.Answers[q.ID], q.CorrectAnswer, q.AlternativeAnswers) {
			score++
		}
	}

	total := s.cfg.QuestionsPerAttempt
	attempt := &domain.QuizAttempt{
		UserID:         userID,
		Subject:        sub.Subject,
		Grade:          user.Grade,
		QuestionIDs:    questionIDs,
		Answers:        sub.Answers,
		Score:          score,
		TotalQuestions: total,
		TimeTaken:      sub.TimeTaken,
		CompletedAt:    s.now(),
	}

	outcome, updated, err := s.ledger.ApplyAttempt(ctx, userID, attempt)
	if err != nil {
		return domain.SubmissionResult{}, err
	}

	return domain.SubmissionResult{
		Score:          score,
		TotalQuestions: total,
		Percentage:     int(math.Round(float64(score) / float64(total) * 100)),
		IsNewBest:      outcome.IsNewBest,
		PreviousBest:   outcome.PreviousBest,
		TimeTaken:      sub.TimeTaken,
		TotalBestScore: updated.TotalBest,
		StarsEarned:    outcome.StarsEarned,
		TotalStars:     updated.TotalStars,
		AttemptID:      attempt.ID,
		Subject:        sub.Subject,
	}, nil
}
