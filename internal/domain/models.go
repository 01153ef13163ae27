package domain

import "time"

// Subject is one of the four fixed competition subjects.
type Subject string

const (
	SubjectMath    Subject = "math"
	SubjectScience Subject = "science"
	SubjectEnglish Subject = "english"
	SubjectArabic  Subject = "arabic"
)

// Subjects lists every valid subject in a stable order. Derived user totals
// are always recomputed by iterating this list.
var Subjects = []Subject{SubjectMath, SubjectScience, SubjectEnglish, SubjectArabic}

// ValidSubject reports whether s is one of the four competition subjects.
func ValidSubject(s Subject) bool {
	for _, known := range Subjects {
		if s == known {
			return true
		}
	}
	return false
}

// QuestionType enumerates the supported question formats.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeTrueFalse      QuestionType = "true_false"
	TypeTextInput      QuestionType = "text_input"
)

// ValidQuestionType reports whether t is a known question format. Questions
// carrying an unknown type are still served but never score points.
func ValidQuestionType(t QuestionType) bool {
	switch t {
	case TypeMultipleChoice, TypeTrueFalse, TypeTextInput:
		return true
	}
	return false
}

const (
	MinGrade = 4
	MaxGrade = 9
)

// ValidGrade reports whether g is a supported school grade.
func ValidGrade(g int) bool {
	return g >= MinGrade && g <= MaxGrade
}

// Question is a bank entry owned by the server. Correct answers never leave
// the backend; clients only ever see PublicQuestion.
type Question struct {
	ID                 string       `json:"id"`
	Subject            Subject      `json:"subject"`
	Grade              int          `json:"grade"`
	Type               QuestionType `json:"questionType"`
	TextEn             string       `json:"questionTextEn"`
	TextAr             string       `json:"questionTextAr"`
	ImageURL           string       `json:"imageUrl,omitempty"`
	Options            []string     `json:"options,omitempty"`
	CorrectAnswer      string       `json:"correctAnswer"`
	AlternativeAnswers []string     `json:"alternativeAnswers,omitempty"`
	Points             int          `json:"points"` // fixed at 1 in this system
	CreatedAt          time.Time    `json:"createdAt"`
}

// HasCorrectOption reports whether a multiple-choice question's correct
// answer appears among its own options. Admin screens flag violations but do
// not reject them; such questions score as always incorrect.
func (q Question) HasCorrectOption() bool {
	if q.Type != TypeMultipleChoice {
		return true
	}
	for _, opt := range q.Options {
		if opt == q.CorrectAnswer {
			return true
		}
	}
	return false
}

// Public strips everything a quiz taker must not see.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:       q.ID,
		Type:     q.Type,
		TextEn:   q.TextEn,
		TextAr:   q.TextAr,
		ImageURL: q.ImageURL,
		Options:  q.Options,
	}
}

// PublicQuestion is the answer-free view served to clients.
type PublicQuestion struct {
	ID       string       `json:"id"`
	Type     QuestionType `json:"questionType"`
	TextEn   string       `json:"questionTextEn"`
	TextAr   string       `json:"questionTextAr"`
	ImageURL string       `json:"imageUrl,omitempty"`
	Options  []string     `json:"options,omitempty"`
}

// QuestionSet is the payload returned when a quiz starts.
type QuestionSet struct {
	Questions      []PublicQuestion `json:"questions"`
	Subject        Subject          `json:"subject"`
	TotalQuestions int              `json:"totalQuestions"`
	TimeLimit      int              `json:"timeLimit"` // seconds
}

// User is a student account with per-subject scoring state. Fields under the
// ledger's control (best scores, attempts, stars, derived totals) are mutated
// only through ApplyAttempt.
type User struct {
	ID            string          `json:"id"`
	Username      string          `json:"username"`
	PasswordHash  string          `json:"-"`
	FullName      string          `json:"fullName"`
	Grade         int             `json:"grade"`
	School        string          `json:"school"`
	BestScores    map[Subject]int `json:"bestScores"`
	Attempts      map[Subject]int `json:"subjectAttempts"`
	Stars         map[Subject]int `json:"starsPerSubject"`
	TotalBest     int             `json:"totalBestScore"`
	TotalStars    int             `json:"totalStars"`
	TotalAttempts int             `json:"totalAttempts"`
	CreatedAt     time.Time       `json:"createdAt"`
	LastLogin     time.Time       `json:"lastLogin,omitempty"`
}

// NewUser returns an account with zeroed per-subject maps.
func NewUser(username, fullName string, grade int, school string) *User {
	u := &User{
		Username:   username,
		FullName:   fullName,
		Grade:      grade,
		School:     school,
		BestScores: make(map[Subject]int, len(Subjects)),
		Attempts:   make(map[Subject]int, len(Subjects)),
		Stars:      make(map[Subject]int, len(Subjects)),
	}
	for _, s := range Subjects {
		u.BestScores[s] = 0
		u.Attempts[s] = 0
		u.Stars[s] = 0
	}
	return u
}

// Clone deep-copies the user so stores can hand out snapshots without
// exposing their internal record to callers.
func (u *User) Clone() *User {
	out := *u
	out.BestScores = make(map[Subject]int, len(u.BestScores))
	out.Attempts = make(map[Subject]int, len(u.Attempts))
	out.Stars = make(map[Subject]int, len(u.Stars))
	for s, v := range u.BestScores {
		out.BestScores[s] = v
	}
	for s, v := range u.Attempts {
		out.Attempts[s] = v
	}
	for s, v := range u.Stars {
		out.Stars[s] = v
	}
	return &out
}

// AttemptSubmission is the raw submit request from a client.
type AttemptSubmission struct {
	Subject   Subject           `json:"subject"`
	Answers   map[string]string `json:"answers"`
	TimeTaken int               `json:"timeTaken"`
}

// QuizAttempt is the append-only record persisted once per accepted
// submission.
type QuizAttempt struct {
	ID             string            `json:"id"`
	UserID         string            `json:"userId"`
	Subject        Subject           `json:"subject"`
	Grade          int               `json:"grade"`
	QuestionIDs    []string          `json:"questions"`
	Answers        map[string]string `json:"answers"`
	Score          int               `json:"score"`
	TotalQuestions int               `json:"totalQuestions"`
	TimeTaken      int               `json:"timeTaken"`
	IsBestScore    bool              `json:"isBestScore"`
	CompletedAt    time.Time         `json:"completedAt"`
}

// SubmissionResult is the scoring summary returned to the client.
type SubmissionResult struct {
	Score          int     `json:"score"`
	TotalQuestions int     `json:"totalQuestions"`
	Percentage     int     `json:"percentage"`
	IsNewBest      bool    `json:"isNewBest"`
	PreviousBest   int     `json:"previousBest"`
	TimeTaken      int     `json:"timeTaken"`
	TotalBestScore int     `json:"totalBestScore"`
	StarsEarned    int     `json:"starsEarned"`
	TotalStars     int     `json:"totalStars"`
	AttemptID      string  `json:"attemptId"`
	Subject        Subject `json:"subject"`
}

// LeaderboardEntry is one row of the student standings.
type LeaderboardEntry struct {
	UserID     string `json:"userId"`
	FullName   string `json:"fullName"`
	School     string `json:"school"`
	Grade      int    `json:"grade"`
	TotalBest  int    `json:"totalBestScore"`
	TotalStars int    `json:"totalStars"`
}

// SchoolStanding aggregates student results per school.
type SchoolStanding struct {
	School     string `json:"school"`
	Students   int    `json:"students"`
	TotalBest  int    `json:"totalBestScore"`
	TotalStars int    `json:"totalStars"`
}

// Leaderboard is the snapshot broadcast to live subscribers.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
