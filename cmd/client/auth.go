package main

import (
	"context"
	"fmt"

	"brainsync-client/internal/dto"

	"github.com/urfave/cli/v3"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in and keep the session on this machine",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Account email"},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Password (prompted when omitted)", Sources: cli.EnvVars("BRAINSYNC_PASSWORD")},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app) error {
			email := cmd.String("email")
			if email == "" {
				email, _ = a.prompt("Email: ")
			}
			password := cmd.String("password")
			if password == "" {
				password, _ = a.prompt("Password: ")
			}

			id, err := a.c.AuthService.Login(ctx, &dto.LoginRequest{Email: email, Password: password})
			if err != nil {
				return err
			}
			successColor.Fprintf(a.out, "Logged in as %s\n", displayName(id.FullName, id.Email))
			return nil
		}),
	}
}

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true},
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app) error {
			res, err := a.c.AuthService.Register(ctx, &dto.RegisterRequest{
				Name:     cmd.String("name"),
				Email:    cmd.String("email"),
				Password: cmd.String("password"),
			})
			if err != nil {
				return err
			}
			successColor.Fprintf(a.out, "Account created for %s. You can log in now.\n", res.Email)
			return nil
		}),
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the stored session",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, a *app) error {
			if err := a.c.AuthService.Logout(ctx); err != nil {
				warnColor.Fprintf(a.out, "Signed out locally (server said: %v)\n", err)
				return nil
			}
			successColor.Fprintln(a.out, "Signed out")
			return nil
		}),
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the signed-in user",
		Action: withApp(requireLogin(func(ctx context.Context, cmd *cli.Command, a *app) error {
			sub, err := a.c.AuthService.Profile(ctx)
			if err != nil {
				return err
			}
			defer sub.Unsubscribe()

			id, err := sub.Wait(ctx)
			if err != nil {
				return err
			}
			titleColor.Fprintln(a.out, displayName(id.FullName, id.Email))
			fmt.Fprintf(a.out, "  email:   %s\n", id.Email)
			fmt.Fprintf(a.out, "  user id: %s\n", id.UserId)
			if id.Role != "" {
				fmt.Fprintf(a.out, "  role:    %s\n", id.Role)
			}
			if id.ExpiresAt != nil {
				fmt.Fprintf(a.out, "  expires: %s\n", id.ExpiresAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		})),
	}
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}
