package domain

import "errors"

var (
	// ErrInvalidSubject is returned for a subject outside the fixed set.
	ErrInvalidSubject = errors.New("invalid subject")
	// ErrNoQuestions indicates the bank has no questions for a subject/grade.
	ErrNoQuestions = errors.New("no questions available for this subject and grade")
	// ErrMissingFields is returned when a submission lacks subject or answers.
	ErrMissingFields = errors.New("missing required fields")
	// ErrUserNotFound indicates an unknown account.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when registering a duplicate username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials covers a bad username/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrQuestionNotFound indicates an unknown question ID.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrConflict is returned when concurrent ledger updates kept clashing
	// after the store's retries were exhausted.
	ErrConflict = errors.New("concurrent update conflict")
)
