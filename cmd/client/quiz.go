package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"brainsync-client/internal/quiz"

	"github.com/urfave/cli/v3"
)

func quizCommand() *cli.Command {
	return &cli.Command{
		Name:      "quiz",
		Usage:     "Take an AI-generated quiz over one note (or all notes)",
		ArgsUsage: "[note-id]",
		Action: withApp(requireLogin(func(ctx context.Context, cmd *cli.Command, a *app) error {
			dimColor.Fprintln(a.out, "Generating quiz...")
			q, err := a.c.QuizService.Generate(ctx, cmd.Args().First())
			if err != nil {
				return err
			}
			if err := a.c.Quiz.Open(*q); err != nil {
				return err
			}
			defer a.c.Quiz.Close()
			return runQuiz(ctx, a.c.Quiz, a)
		})),
	}
}

const quizHelp = "Pick an option by number or letter. n = next, p = previous, s = submit, q = quit"

// runQuiz drives the machine from line input until the quiz is reviewed or abandoned.
func runQuiz(ctx context.Context, m *quiz.Machine, a *app) error {
	titleColor.Fprintln(a.out, m.Snapshot().Quiz.Title)
	dimColor.Fprintln(a.out, quizHelp)

	for ctx.Err() == nil {
		view := m.Snapshot()
		if view.State == quiz.StateReviewing {
			printReview(a, view)
			return tutorLoop(ctx, m, a)
		}
		printQuestion(a, view)

		line, ok := a.prompt("> ")
		if !ok || line == "q" {
			warnColor.Fprintln(a.out, "Quiz abandoned")
			return nil
		}

		var err error
		switch line {
		case "n":
			err = m.Next()
		case "p":
			err = m.Prev()
		case "s":
			dimColor.Fprintln(a.out, "Submitting...")
			_, err = m.Submit(ctx)
		default:
			err = selectOption(m, view, line)
		}
		if err != nil {
			warnColor.Fprintf(a.out, "%v\n", err)
		}
	}
	return ctx.Err()
}

func selectOption(m *quiz.Machine, view quiz.View, input string) error {
	q, ok := view.Current()
	if !ok {
		return quiz.ErrNoSession
	}
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(q.Options) {
		return m.Select(q.Options[n-1])
	}
	if len(input) == 1 {
		idx := int(strings.ToUpper(input)[0] - 'A')
		if idx >= 0 && idx < len(q.Options) {
			return m.Select(q.Options[idx])
		}
	}
	return m.Select(input)
}

func printQuestion(a *app, view quiz.View) {
	q, ok := view.Current()
	if !ok {
		return
	}
	fmt.Fprintln(a.out)
	titleColor.Fprintf(a.out, "Question %d of %d\n", view.Index+1, len(view.Quiz.Questions))
	fmt.Fprintln(a.out, q.QuestionText)

	picked, _ := view.Answer(q.Id)
	for i, opt := range q.Options {
		marker := " "
		if opt == picked {
			marker = "*"
		}
		fmt.Fprintf(a.out, " %s %c) %s\n", marker, 'A'+rune(i), opt)
	}
}

func printReview(a *app, view quiz.View) {
	r := view.Result
	fmt.Fprintln(a.out)
	titleColor.Fprintf(a.out, "Score: %d/%d (%d%%)\n", r.Score, r.Total, view.Percentage())
	if view.Passed() {
		successColor.Fprintln(a.out, view.Verdict())
	} else {
		warnColor.Fprintln(a.out, view.Verdict())
	}

	for i, qr := range r.PerQuestion {
		if qr.IsCorrect {
			successColor.Fprintf(a.out, "%d. ✓ %s\n", i+1, qr.QuestionText)
			continue
		}
		errorColor.Fprintf(a.out, "%d. ✗ %s\n", i+1, qr.QuestionText)
		fmt.Fprintf(a.out, "   your answer: %s, correct: %s\n", qr.DisplayAnswer(), qr.CorrectAnswer)
	}
}

func tutorLoop(ctx context.Context, m *quiz.Machine, a *app) error {
	dimColor.Fprintln(a.out, "Ask the tutor about your mistakes (empty line to finish).")
	for ctx.Err() == nil {
		line, ok := a.prompt("tutor> ")
		if !ok || line == "" {
			return nil
		}
		reply, err := m.AskTutor(ctx, line)
		if errors.Is(err, quiz.ErrSessionAbandoned) {
			return err
		}
		printMessage(a, reply)
	}
	return nil
}
