package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"brainsync-client/internal/apperr"
	"brainsync-client/internal/bootstrap"
	"brainsync-client/internal/config"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
)

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	dimColor     = color.New(color.Faint)
)

// app is what every command action works with.
type app struct {
	c   *bootstrap.Container
	in  *bufio.Scanner
	out io.Writer
}

func (a *app) prompt(label string) (string, bool) {
	fmt.Fprint(a.out, label)
	if !a.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(a.in.Text()), true
}

type action func(ctx context.Context, cmd *cli.Command, a *app) error

// withApp loads configuration and the container around one command.
func withApp(fn action) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		container, err := bootstrap.NewContainer(ctx, cfg)
		if err != nil {
			return err
		}
		defer container.Close(context.Background())

		return fn(ctx, cmd, &app{
			c:   container,
			in:  bufio.NewScanner(os.Stdin),
			out: color.Output,
		})
	}
}

// requireLogin is the private-route guard: protected commands stop here without a session.
func requireLogin(fn action) action {
	return func(ctx context.Context, cmd *cli.Command, a *app) error {
		if err := a.c.Guard.RequireAuth(); err != nil {
			return apperr.NewAuth("not logged in, run `brainsync login` first")
		}
		return fn(ctx, cmd, a)
	}
}

func printError(w io.Writer, err error) {
	errorColor.Fprintf(w, "Error: %v\n", err)

	var appErr *apperr.Error
	if !errors.As(err, &appErr) || len(appErr.Details) == 0 {
		return
	}
	keys := make([]string, 0, len(appErr.Details))
	for k := range appErr.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		errorColor.Fprintf(w, "  %s: %v\n", k, appErr.Details[k])
	}
}
