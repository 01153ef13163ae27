package domain

// MaxStarsPerAttempt caps the stars a single attempt can earn. Stars reward
// participation and performance on every attempt, not just new records:
// floor(MaxStarsPerAttempt * score / totalQuestions), which is monotonic in
// score.
const MaxStarsPerAttempt = 5

// StarsForScore converts an attempt score into earned stars.
func StarsForScore(score, totalQuestions int) int {
	if totalQuestions <= 0 || score <= 0 {
		return 0
	}
	if score > totalQuestions {
		score = totalQuestions
	}
	return MaxStarsPerAttempt * score / totalQuestions
}

// AttemptOutcome summarizes what an applied attempt changed on the user.
type AttemptOutcome struct {
	PreviousBest int
	IsNewBest    bool
	StarsEarned  int
}

// ApplyAttempt folds one completed attempt into the user's scoring state:
// best score replaced only on strict improvement, attempt counters always
// incremented, stars always accrued, derived totals recomputed from their
// components. Callers own atomicity; stores must invoke this inside whatever
// critical section or transaction serializes updates to the user record.
func (u *User) ApplyAttempt(subject Subject, score, totalQuestions int) AttemptOutcome {
	previous := u.BestScores[subject]
	outcome := AttemptOutcome{
		PreviousBest: previous,
		IsNewBest:    score > previous,
		StarsEarned:  StarsForScore(score, totalQuestions),
	}

	if outcome.IsNewBest {
		u.BestScores[subject] = score
	}
	u.Attempts[subject]++
	u.TotalAttempts++
	u.Stars[subject] += outcome.StarsEarned

	u.recomputeTotals()
	return outcome
}

// recomputeTotals rebuilds the derived sums; they are never set independently.
func (u *User) recomputeTotals() {
	best, stars := 0, 0
	for _, s := range Subjects {
		best += u.BestScores[s]
		stars += u.Stars[s]
	}
	u.TotalBest = best
	u.TotalStars = stars
}
