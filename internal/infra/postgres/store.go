// Package postgres persists users, questions and attempt records. The
// ledger update runs as a single row-locked transaction per attempt so
// concurrent submissions for the same user serialize without lost updates.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"school-quiz-service/internal/domain"
)

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
	ledgerRetries        = 3
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- users ---

const userColumns = `id, username, password_hash, full_name, grade, school,
	best_scores, subject_attempts, stars, total_best, total_stars, total_attempts,
	created_at, last_login`

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u         domain.User
		bestRaw   []byte
		attRaw    []byte
		starsRaw  []byte
		lastLogin *time.Time
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FullName, &u.Grade, &u.School,
		&bestRaw, &attRaw, &starsRaw, &u.TotalBest, &u.TotalStars, &u.TotalAttempts,
		&u.CreatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if err := json.Unmarshal(bestRaw, &u.BestScores); err != nil {
		return nil, fmt.Errorf("decode best scores: %w", err)
	}
	if err := json.Unmarshal(attRaw, &u.Attempts); err != nil {
		return nil, fmt.Errorf("decode attempts: %w", err)
	}
	if err := json.Unmarshal(starsRaw, &u.Stars); err != nil {
		return nil, fmt.Errorf("decode stars: %w", err)
	}
	if lastLogin != nil {
		u.LastLogin = *lastLogin
	}
	return &u, nil
}

// CreateUser inserts an account; usernames are unique, case-insensitive.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	best, _ := json.Marshal(user.BestScores)
	attempts, _ := json.Marshal(user.Attempts)
	stars, _ := json.Marshal(user.Stars)

	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, full_name, grade, school,
			best_scores, subject_attempts, stars)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+userColumns,
		strings.ToLower(user.Username), user.PasswordHash, user.FullName,
		user.Grade, user.School, best, attempts, stars)

	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username=$1`, strings.ToLower(username)))
}

// ListUsers returns accounts, newest first.
func (s *Store) ListUsers(ctx context.Context, limit int) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, username`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

func (s *Store) TouchLastLogin(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET last_login=now() WHERE id=$1`, userID)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

// ApplyAttempt updates the user's ledger state and inserts the attempt record
// in one transaction. The user row is locked for the duration, so concurrent
// submissions serialize; serialization failures retry with a fresh read.
func (s *Store) ApplyAttempt(ctx context.Context, userID string, attempt *domain.QuizAttempt) (domain.AttemptOutcome, *domain.User, error) {
	var (
		outcome domain.AttemptOutcome
		updated *domain.User
		err     error
	)
	for i := 0; i < ledgerRetries; i++ {
		outcome, updated, err = s.applyAttemptTx(ctx, userID, attempt)
		if err == nil || !retryable(err) {
			return outcome, updated, err
		}
	}
	return domain.AttemptOutcome{}, nil, fmt.Errorf("%w: %v", domain.ErrConflict, err)
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == serializationFailure || pgErr.Code == deadlockDetected
	}
	return false
}

func (s *Store) applyAttemptTx(ctx context.Context, userID string, attempt *domain.QuizAttempt) (domain.AttemptOutcome, *domain.User, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.AttemptOutcome{}, nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	user, err := scanUser(tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id=$1 FOR UPDATE`, userID))
	if err != nil {
		return domain.AttemptOutcome{}, nil, err
	}

	outcome := user.ApplyAttempt(attempt.Subject, attempt.Score, attempt.TotalQuestions)
	attempt.IsBestScore = outcome.IsNewBest

	best, _ := json.Marshal(user.BestScores)
	attempts, _ := json.Marshal(user.Attempts)
	stars, _ := json.Marshal(user.Stars)
	if _, err := tx.Exec(ctx, `
		UPDATE users
		SET best_scores=$2, subject_attempts=$3, stars=$4,
			total_best=$5, total_stars=$6, total_attempts=$7
		WHERE id=$1`,
		userID, best, attempts, stars,
		user.TotalBest, user.TotalStars, user.TotalAttempts); err != nil {
		return domain.AttemptOutcome{}, nil, fmt.Errorf("update user: %w", err)
	}

	questionIDs, _ := json.Marshal(attempt.QuestionIDs)
	answers, _ := json.Marshal(attempt.Answers)
	if err := tx.QueryRow(ctx, `
		INSERT INTO attempts (user_id, subject, grade, question_ids, answers,
			score, total_questions, time_taken, is_best_score, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		attempt.UserID, attempt.Subject, attempt.Grade, questionIDs, answers,
		attempt.Score, attempt.TotalQuestions, attempt.TimeTaken,
		attempt.IsBestScore, attempt.CompletedAt).Scan(&attempt.ID); err != nil {
		return domain.AttemptOutcome{}, nil, fmt.Errorf("insert attempt: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.AttemptOutcome{}, nil, fmt.Errorf("commit: %w", err)
	}
	return outcome, user, nil
}

// ListAttempts returns attempt records, newest first, optionally for one user.
func (s *Store) ListAttempts(ctx context.Context, userID string, limit int) ([]domain.QuizAttempt, error) {
	query := `SELECT id, user_id, subject, grade, question_ids, answers, score,
		total_questions, time_taken, is_best_score, completed_at FROM attempts`
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE user_id=$1`
		args = append(args, userID)
	}
	query += ` ORDER BY completed_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.QuizAttempt
	for rows.Next() {
		var (
			a      domain.QuizAttempt
			idsRaw []byte
			ansRaw []byte
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Subject, &a.Grade, &idsRaw, &ansRaw,
			&a.Score, &a.TotalQuestions, &a.TimeTaken, &a.IsBestScore, &a.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if err := json.Unmarshal(idsRaw, &a.QuestionIDs); err != nil {
			return nil, fmt.Errorf("decode question ids: %w", err)
		}
		if err := json.Unmarshal(ansRaw, &a.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- questions ---

const questionColumns = `id, subject, grade, question_type, text_en, text_ar,
	image_url, options, correct_answer, alternative_answers, points, created_at`

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var (
		q        domain.Question
		imageURL *string
		optsRaw  []byte
		altsRaw  []byte
	)
	err := row.Scan(&q.ID, &q.Subject, &q.Grade, &q.Type, &q.TextEn, &q.TextAr,
		&imageURL, &optsRaw, &q.CorrectAnswer, &altsRaw, &q.Points, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Question{}, domain.ErrQuestionNotFound
		}
		return domain.Question{}, fmt.Errorf("scan question: %w", err)
	}
	if imageURL != nil {
		q.ImageURL = *imageURL
	}
	if len(optsRaw) > 0 {
		if err := json.Unmarshal(optsRaw, &q.Options); err != nil {
			return domain.Question{}, fmt.Errorf("decode options: %w", err)
		}
	}
	if len(altsRaw) > 0 {
		if err := json.Unmarshal(altsRaw, &q.AlternativeAnswers); err != nil {
			return domain.Question{}, fmt.Errorf("decode alternatives: %w", err)
		}
	}
	return q, nil
}

func (s *Store) Create(ctx context.Context, q domain.Question) (domain.Question, error) {
	if q.Points == 0 {
		q.Points = 1
	}
	opts, _ := json.Marshal(q.Options)
	alts, _ := json.Marshal(q.AlternativeAnswers)
	return scanQuestion(s.pool.QueryRow(ctx, `
		INSERT INTO questions (subject, grade, question_type, text_en, text_ar,
			image_url, options, correct_answer, alternative_answers, points)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)
		RETURNING `+questionColumns,
		q.Subject, q.Grade, q.Type, q.TextEn, q.TextAr, q.ImageURL,
		opts, q.CorrectAnswer, alts, q.Points))
}

func (s *Store) Update(ctx context.Context, q domain.Question) error {
	opts, _ := json.Marshal(q.Options)
	alts, _ := json.Marshal(q.AlternativeAnswers)
	tag, err := s.pool.Exec(ctx, `
		UPDATE questions
		SET subject=$2, grade=$3, question_type=$4, text_en=$5, text_ar=$6,
			image_url=NULLIF($7, ''), options=$8, correct_answer=$9,
			alternative_answers=$10, points=$11
		WHERE id=$1`,
		q.ID, q.Subject, q.Grade, q.Type, q.TextEn, q.TextAr, q.ImageURL,
		opts, q.CorrectAnswer, alts, q.Points)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.Question, error) {
	return scanQuestion(s.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id=$1`, id))
}

func (s *Store) List(ctx context.Context, subject domain.Subject, grade int) ([]domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE 1=1`
	args := []interface{}{}
	if subject != "" {
		args = append(args, subject)
		query += fmt.Sprintf(` AND subject=$%d`, len(args))
	}
	if grade != 0 {
		args = append(args, grade)
		query += fmt.Sprintf(` AND grade=$%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`
	return s.queryQuestions(ctx, query, args...)
}

// QuestionsFor returns the full pool for a subject and grade; cache layers
// sample from it.
func (s *Store) QuestionsFor(ctx context.Context, subject domain.Subject, grade int) ([]domain.Question, error) {
	return s.queryQuestions(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE subject=$1 AND grade=$2`,
		subject, grade)
}

// RandomSet samples directly in SQL; used when no cache layer is configured.
func (s *Store) RandomSet(ctx context.Context, subject domain.Subject, grade, size int) ([]domain.Question, error) {
	return s.queryQuestions(ctx,
		`SELECT `+questionColumns+` FROM questions
		WHERE subject=$1 AND grade=$2 ORDER BY random() LIMIT $3`,
		subject, grade, size)
}

func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]domain.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryQuestions(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id=ANY($1)`, ids)
}

func (s *Store) queryQuestions(ctx context.Context, query string, args ...interface{}) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// --- stats ---

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT count(*) FROM users`)
}

func (s *Store) CountQuestions(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT count(*) FROM questions`)
}

func (s *Store) CountAttempts(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT count(*) FROM attempts`)
}

func (s *Store) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// --- leaderboards ---

func (s *Store) TopStudents(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, full_name, school, grade, total_best, total_stars
		FROM users
		ORDER BY total_best DESC, total_stars DESC, full_name
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("top students: %w", err)
	}
	defer rows.Close()

	var out []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.FullName, &e.School, &e.Grade, &e.TotalBest, &e.TotalStars); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) SchoolStandings(ctx context.Context) ([]domain.SchoolStanding, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT school, count(*), coalesce(sum(total_best), 0), coalesce(sum(total_stars), 0)
		FROM users
		GROUP BY school
		ORDER BY sum(total_best) DESC, school`)
	if err != nil {
		return nil, fmt.Errorf("school standings: %w", err)
	}
	defer rows.Close()

	var out []domain.SchoolStanding
	for rows.Next() {
		var st domain.SchoolStanding
		if err := rows.Scan(&st.School, &st.Students, &st.TotalBest, &st.TotalStars); err != nil {
			return nil, fmt.Errorf("scan standing: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
