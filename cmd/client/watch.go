package main

import (
	"context"
	"fmt"
	"time"

	"brainsync-client/internal/apperr"
	"brainsync-client/internal/dto"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Stay connected and print note changes as they happen",
		Action: withApp(requireLogin(func(ctx context.Context, cmd *cli.Command, a *app) error {
			if !a.c.Config.Realtime.Enabled {
				return apperr.NewValidation("realtime is disabled", map[string]any{"REALTIME_ENABLED": "false"})
			}
			return watch(ctx, a)
		})),
	}
}

// watch keeps page one of the listing subscribed so push events visibly refresh it.
func watch(ctx context.Context, a *app) error {
	if err := a.c.StartRealtime(ctx); err != nil {
		return err
	}
	done := a.c.Consumer.Done()

	sub, err := a.c.NoteService.List(ctx, dto.GetNotesRequest{})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case n := <-a.c.Notifications.C:
				warnColor.Fprintf(a.out, "[%s] ", n.Event.ReceivedAt.Format(time.TimeOnly))
				fmt.Fprintln(a.out, n.Text)
			case <-done:
				if !a.c.Guard.IsAuthenticated() {
					return apperr.NewAuth("session ended, log in again")
				}
				return nil
			case <-gCtx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-sub.Updates():
				snap := sub.Snapshot()
				if snap.Status.Settled() && snap.HasValue {
					dimColor.Fprintf(a.out, "notes: %d total\n", snap.Value.Total)
				}
			case <-done:
				return nil
			case <-gCtx.Done():
				return nil
			}
		}
	})

	dimColor.Fprintln(a.out, "Watching for changes, Ctrl+C to stop.")
	return g.Wait()
}
