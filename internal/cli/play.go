package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"school-quiz-service/internal/domain"
	"school-quiz-service/internal/session"
	"school-quiz-service/internal/transport/client"
)

// NewPlayCmd runs a quiz from the terminal against a running server.
func NewPlayCmd() *cobra.Command {
	var (
		serverURL string
		username  string
		password  string
		subject   string
		langFlag  string
		register  bool
		fullName  string
		grade     int
		school    string
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Take a quiz from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			lang := session.LangEn
			if langFlag == "ar" {
				lang = session.LangAr
			}
			return runPlay(cmd.Context(), playOptions{
				serverURL: serverURL,
				username:  username,
				password:  password,
				subject:   domain.Subject(subject),
				lang:      lang,
				register:  register,
				fullName:  fullName,
				grade:     grade,
				school:    school,
			})
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "quiz server base URL")
	cmd.Flags().StringVar(&username, "username", "", "account username")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&subject, "subject", "math", "quiz subject (math, science, english, arabic)")
	cmd.Flags().StringVar(&langFlag, "lang", "en", "message language (en or ar)")
	cmd.Flags().BoolVar(&register, "register", false, "register a new account instead of logging in")
	cmd.Flags().StringVar(&fullName, "full-name", "", "full name for registration")
	cmd.Flags().IntVar(&grade, "grade", 0, "school grade for registration")
	cmd.Flags().StringVar(&school, "school", "", "school name for registration")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

type playOptions struct {
	serverURL string
	username  string
	password  string
	subject   domain.Subject
	lang      session.Lang
	register  bool
	fullName  string
	grade     int
	school    string
}

func runPlay(ctx context.Context, opts playOptions) error {
	c := client.New(opts.serverURL)

	var user *domain.User
	var err error
	if opts.register {
		user, err = c.Register(ctx, opts.username, opts.password, opts.fullName, opts.grade, opts.school)
	} else {
		user, err = c.Login(ctx, opts.username, opts.password)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Welcome, %s (grade %d)\n", user.FullName, user.Grade)

	done := make(chan struct{})
	orch := session.NewOrchestrator(c, session.Events{
		Warn: func(w session.Warning) {
			fmt.Println("\n" + session.WarningMessage(opts.lang, w))
		},
		AutoSubmitted: func(result domain.SubmissionResult, reason session.TerminationReason, err error) {
			fmt.Println("\n" + session.TerminationMessage(opts.lang, reason))
			if err != nil {
				fmt.Printf("Submission failed: %v\nPress enter to retry.\n", err)
				return
			}
			printResult(result)
		},
	})

	set, err := orch.Start(ctx, opts.subject)
	if err != nil {
		return err
	}
	fmt.Printf("%d questions, %d seconds. Good luck!\n\n", set.TotalQuestions, set.TimeLimit)

	// The monitor runs on wall-clock seconds while the prompt blocks on
	// stdin.
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if m := orch.Monitor(); m != nil {
					m.Tick()
				}
			case <-done:
				return
			}
		}
	}()
	defer close(done)

	reader := bufio.NewReader(os.Stdin)
	for i, q := range set.Questions {
		if !orch.Active() {
			break
		}
		fmt.Printf("Q%d: %s\n    %s\n", i+1, q.TextEn, q.TextAr)
		for j, opt := range q.Options {
			fmt.Printf("  %d) %s\n", j+1, opt)
		}
		fmt.Print("> ")

		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		answer := strings.TrimSpace(line)
		if idx := optionIndex(answer, len(q.Options)); idx >= 0 {
			answer = q.Options[idx]
		}
		if err := orch.RecordAnswer(q.ID, answer); err != nil {
			break
		}
	}

	if !orch.Active() {
		// Auto-submitted; the event already reported the outcome.
		return nil
	}

	result, err := orch.Submit(ctx)
	switch {
	case err == nil:
		printResult(result)
		return nil
	case orch.Active():
		// Terminated but not delivered; one retry before giving up.
		result, err = orch.Retry(ctx)
		if err != nil {
			return fmt.Errorf("submit quiz: %w", err)
		}
		printResult(result)
		return nil
	default:
		return err
	}
}

// optionIndex resolves a numeric answer like "2" to its option, so players
// can answer multiple choice by number.
func optionIndex(answer string, options int) int {
	if options == 0 || len(answer) != 1 {
		return -1
	}
	n := int(answer[0] - '0')
	if n >= 1 && n <= options {
		return n - 1
	}
	return -1
}

func printResult(result domain.SubmissionResult) {
	fmt.Printf("\nScore: %d/%d (%d%%)\n", result.Score, result.TotalQuestions, result.Percentage)
	if result.IsNewBest {
		fmt.Printf("New best score! Previous best: %d\n", result.PreviousBest)
	}
	fmt.Printf("Stars earned: %d (total %d)\n", result.StarsEarned, result.TotalStars)
}
