package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"school-quiz-service/internal/config"
	"school-quiz-service/internal/domain"
	"school-quiz-service/internal/infra/postgres"
)

// NewSeedCmd loads a starter question bank into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load sample questions into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}
			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()
			seedStore(cmd.Context(), postgres.NewStore(pool))
			return nil
		},
	}
}

type questionCreator interface {
	Create(ctx context.Context, q domain.Question) (domain.Question, error)
}

// seedStore loads the starter bank. Failures are logged and skipped so a
// partially seeded database can be re-seeded.
func seedStore(ctx context.Context, store questionCreator) {
	created := 0
	for _, q := range sampleQuestions() {
		if _, err := store.Create(ctx, q); err != nil {
			log.Printf("seed question %q: %v", q.TextEn, err)
			continue
		}
		created++
	}
	log.Printf("seeded %d questions", created)
}

// sampleQuestions builds a bilingual starter bank covering every subject and
// grade. Math is generated arithmetically per grade; the other subjects reuse
// a handcrafted set across grades.
func sampleQuestions() []domain.Question {
	var out []domain.Question

	for grade := domain.MinGrade; grade <= domain.MaxGrade; grade++ {
		for i := 1; i <= 10; i++ {
			a := grade * i
			b := grade + i
			out = append(out, domain.Question{
				Subject:       domain.SubjectMath,
				Grade:         grade,
				Type:          domain.TypeTextInput,
				TextEn:        fmt.Sprintf("What is %d + %d?", a, b),
				TextAr:        fmt.Sprintf("كم يساوي %d + %d؟", a, b),
				CorrectAnswer: fmt.Sprintf("%d", a+b),
				Points:        1,
			})
		}

		out = append(out,
			domain.Question{
				Subject:       domain.SubjectScience,
				Grade:         grade,
				Type:          domain.TypeMultipleChoice,
				TextEn:        "Which planet is known as the Red Planet?",
				TextAr:        "أي كوكب يعرف بالكوكب الأحمر؟",
				Options:       []string{"Mars", "Venus", "Jupiter", "Mercury"},
				CorrectAnswer: "Mars",
				Points:        1,
			},
			domain.Question{
				Subject:       domain.SubjectScience,
				Grade:         grade,
				Type:          domain.TypeTrueFalse,
				TextEn:        "Water boils at 100 degrees Celsius at sea level.",
				TextAr:        "يغلي الماء عند 100 درجة مئوية عند مستوى سطح البحر.",
				CorrectAnswer: "true",
				Points:        1,
			},
			domain.Question{
				Subject:       domain.SubjectScience,
				Grade:         grade,
				Type:          domain.TypeTextInput,
				TextEn:        "What gas do plants absorb from the air?",
				TextAr:        "ما الغاز الذي تمتصه النباتات من الهواء؟",
				CorrectAnswer: "carbon dioxide",
				AlternativeAnswers: []string{
					"co2",
					"ثاني أكسيد الكربون",
				},
				Points: 1,
			},
			domain.Question{
				Subject:       domain.SubjectEnglish,
				Grade:         grade,
				Type:          domain.TypeMultipleChoice,
				TextEn:        "Choose the correct sentence.",
				TextAr:        "اختر الجملة الصحيحة.",
				Options:       []string{"She go to school.", "She goes to school.", "She going to school."},
				CorrectAnswer: "She goes to school.",
				Points:        1,
			},
			domain.Question{
				Subject:       domain.SubjectEnglish,
				Grade:         grade,
				Type:          domain.TypeTextInput,
				TextEn:        "What is the plural of 'child'?",
				TextAr:        "ما جمع كلمة 'child'؟",
				CorrectAnswer: "children",
				Points:        1,
			},
			domain.Question{
				Subject:       domain.SubjectEnglish,
				Grade:         grade,
				Type:          domain.TypeTrueFalse,
				TextEn:        "The word 'quickly' is an adverb.",
				TextAr:        "كلمة 'quickly' هي ظرف.",
				CorrectAnswer: "true",
				Points:        1,
			},
			domain.Question{
				Subject:       domain.SubjectArabic,
				Grade:         grade,
				Type:          domain.TypeMultipleChoice,
				TextEn:        "What is the plural of the word 'book' in Arabic?",
				TextAr:        "ما جمع كلمة 'كتاب'؟",
				Options:       []string{"كتب", "كاتبون", "مكاتب"},
				CorrectAnswer: "كتب",
				Points:        1,
			},
			domain.Question{
				Subject:       domain.SubjectArabic,
				Grade:         grade,
				Type:          domain.TypeTextInput,
				TextEn:        "What is the opposite of the Arabic word for 'big'?",
				TextAr:        "ما عكس كلمة 'كبير'؟",
				CorrectAnswer: "صغير",
				Points:        1,
			},
			domain.Question{
				Subject:       domain.SubjectArabic,
				Grade:         grade,
				Type:          domain.TypeTrueFalse,
				TextEn:        "The Arabic alphabet has 28 letters.",
				TextAr:        "تتكون الحروف العربية من 28 حرفاً.",
				CorrectAnswer: "true",
				Points:        1,
			},
		)
	}
	return out
}
