package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"brainsync-client/internal/apperr"
	"brainsync-client/internal/dto"
	"brainsync-client/internal/entity"
	"brainsync-client/internal/notetext"
	"brainsync-client/internal/service"

	"github.com/urfave/cli/v3"
)

func notesCommand() *cli.Command {
	return &cli.Command{
		Name:  "notes",
		Usage: "List and edit notes",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Show one page of notes, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "page", Value: service.DefaultPage},
					&cli.IntFlag{Name: "limit", Value: service.DefaultPageLimit},
				},
				Action: withApp(requireLogin(listNotes)),
			},
			{
				Name:  "create",
				Usage: "Create a note",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true},
					&cli.StringFlag{Name: "content", Aliases: []string{"c"}, Required: true},
					&cli.StringSliceFlag{Name: "tag"},
				},
				Action: withApp(requireLogin(createNote)),
			},
			{
				Name:      "update",
				Usage:     "Change a note's title, content or tags",
				ArgsUsage: "<note-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}},
					&cli.StringFlag{Name: "content", Aliases: []string{"c"}},
					&cli.StringSliceFlag{Name: "tag"},
				},
				Action: withApp(requireLogin(updateNote)),
			},
			{
				Name:      "delete",
				Usage:     "Delete a note",
				ArgsUsage: "<note-id>",
				Action:    withApp(requireLogin(deleteNote)),
			},
			{
				Name:      "summarize",
				Usage:     "Generate the AI summary of a note",
				ArgsUsage: "<note-id>",
				Action:    withApp(requireLogin(summarizeNote)),
			},
		},
	}
}

func noteIdArg(cmd *cli.Command) (string, error) {
	id := strings.TrimSpace(cmd.Args().First())
	if id == "" {
		return "", apperr.NewValidation("note id is required", map[string]any{"note-id": "required"})
	}
	return id, nil
}

func listNotes(ctx context.Context, cmd *cli.Command, a *app) error {
	sub, err := a.c.NoteService.List(ctx, dto.GetNotesRequest{
		Page:  int(cmd.Int("page")),
		Limit: int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	page, err := sub.Wait(ctx)
	if err != nil {
		return err
	}
	printNotesPage(a.out, page)
	return nil
}

const (
	previewLines = 3
	previewWidth = 80
)

func printNotesPage(w io.Writer, page entity.NotesPage) {
	if len(page.Items) == 0 {
		dimColor.Fprintln(w, "No notes yet.")
		return
	}
	for _, n := range page.Items {
		titleColor.Fprintf(w, "%s", n.Title)
		dimColor.Fprintf(w, "  [%s]", n.Id)
		if n.HasSummary() {
			successColor.Fprint(w, "  AI Ready")
		}
		fmt.Fprintln(w)
		for _, line := range notetext.Preview(n.Content, previewLines, previewWidth) {
			fmt.Fprintf(w, "  %s\n", line)
		}
		if tags := n.TagNames(); len(tags) > 0 {
			fmt.Fprintf(w, "  #%s\n", strings.Join(tags, " #"))
		}
		if n.HasSummary() {
			dimColor.Fprintf(w, "  AI Summary: %s\n", *n.AiSummary)
		}
	}
	dimColor.Fprintf(w, "Page %d of %d (%d notes)\n", page.Page, page.TotalPages(), page.Total)
}

func createNote(ctx context.Context, cmd *cli.Command, a *app) error {
	note, err := a.c.NoteService.Create(ctx, &dto.CreateNoteRequest{
		Title:   cmd.String("title"),
		Content: cmd.String("content"),
		Tags:    cmd.StringSlice("tag"),
	})
	if err != nil {
		return err
	}
	successColor.Fprintf(a.out, "Created %q [%s]\n", note.Title, note.Id)
	return nil
}

func updateNote(ctx context.Context, cmd *cli.Command, a *app) error {
	id, err := noteIdArg(cmd)
	if err != nil {
		return err
	}

	req := &dto.UpdateNoteRequest{Id: id}
	if cmd.IsSet("title") {
		title := cmd.String("title")
		req.Title = &title
	}
	if cmd.IsSet("content") {
		content := cmd.String("content")
		req.Content = &content
	}
	if cmd.IsSet("tag") {
		req.Tags = cmd.StringSlice("tag")
	}

	note, err := a.c.NoteService.Update(ctx, req)
	if err != nil {
		return err
	}
	successColor.Fprintf(a.out, "Updated %q\n", note.Title)
	return nil
}

func deleteNote(ctx context.Context, cmd *cli.Command, a *app) error {
	id, err := noteIdArg(cmd)
	if err != nil {
		return err
	}
	if err := a.c.NoteService.Delete(ctx, id); err != nil {
		return err
	}
	successColor.Fprintln(a.out, "Deleted")
	return nil
}

func summarizeNote(ctx context.Context, cmd *cli.Command, a *app) error {
	id, err := noteIdArg(cmd)
	if err != nil {
		return err
	}
	dimColor.Fprintln(a.out, "Generating summary...")
	summary, err := a.c.NoteService.GenerateSummary(ctx, id)
	if err != nil {
		return err
	}
	titleColor.Fprintln(a.out, "AI Summary")
	fmt.Fprintln(a.out, summary)
	return nil
}
