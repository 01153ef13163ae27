package memory

import "context"

// Stats bundles the in-memory stores behind the dashboard counter surface
// that the Postgres store exposes on its own.
type Stats struct {
	Users     *UserStore
	Questions *QuestionStore
}

func (s Stats) CountUsers(ctx context.Context) (int, error) {
	return s.Users.CountUsers(ctx)
}

func (s Stats) CountQuestions(ctx context.Context) (int, error) {
	return s.Questions.Count(ctx)
}

func (s Stats) CountAttempts(ctx context.Context) (int, error) {
	return s.Users.CountAttempts(ctx)
}
