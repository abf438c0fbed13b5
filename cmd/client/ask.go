package main

import (
	"context"
	"fmt"
	"strings"

	"brainsync-client/internal/assistant"
	"brainsync-client/internal/chat"

	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask questions across all your notes (interactive without arguments)",
		ArgsUsage: "[question]",
		Action: withApp(requireLogin(func(ctx context.Context, cmd *cli.Command, a *app) error {
			if cmd.NArg() > 0 {
				return askOnce(ctx, a.c.Assistant, a, strings.Join(cmd.Args().Slice(), " "))
			}
			return chatLoop(ctx, a)
		})),
	}
}

func askOnce(ctx context.Context, conv *assistant.Conversation, a *app, question string) error {
	reply, ok, err := conv.Ask(ctx, question)
	if !ok {
		return err
	}
	printMessage(a, reply)
	return err
}

func chatLoop(ctx context.Context, a *app) error {
	if msgs := a.c.Assistant.Messages(); len(msgs) > 0 {
		printMessage(a, msgs[0])
	}
	for ctx.Err() == nil {
		line, ok := a.prompt("you> ")
		if !ok || line == "exit" || line == "quit" {
			return nil
		}
		// Failures are already in the transcript as the error placeholder.
		_ = askOnce(ctx, a.c.Assistant, a, line)
	}
	return nil
}

func printMessage(a *app, m chat.Message) {
	if m.Role == chat.RoleUser {
		fmt.Fprintf(a.out, "you> %s\n", m.Text)
		return
	}
	titleColor.Fprint(a.out, "ai> ")
	fmt.Fprintln(a.out, m.Text)
}
