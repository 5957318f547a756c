// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/splitrx/splitrx/cmd/app/commands"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "app",
		Usage:   "Digital prescription service",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServer(ctx, version)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunMigrations()
				},
			},
			{
				Name:  "verify-audit-chain",
				Usage: "Verify the integrity of the audit ledger hash chain",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunVerifyAuditChain(ctx, cmd.String("format"))
				},
			},
			{
				Name:  "create-user",
				Usage: "Create a new user account with a signing key pair",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Aliases:  []string{"e"},
						Required: true,
						Usage:    "Unique email address",
					},
					&cli.StringFlag{
						Name:     "password",
						Aliases:  []string{"p"},
						Required: true,
						Usage:    "Account password",
					},
					&cli.StringFlag{
						Name:     "full-name",
						Aliases:  []string{"n"},
						Required: true,
						Usage:    "Full display name",
					},
					&cli.StringFlag{
						Name:     "role",
						Aliases:  []string{"r"},
						Required: true,
						Usage:    "Account role: doctor, pharmacist, patient or admin",
					},
					&cli.StringFlag{
						Name:    "license",
						Aliases: []string{"l"},
						Value:   "",
						Usage:   "Professional license number (required for doctor and pharmacist)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunCreateUser(
						ctx,
						cmd.String("email"),
						cmd.String("password"),
						cmd.String("full-name"),
						cmd.String("role"),
						cmd.String("license"),
						cmd.String("format"),
					)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
