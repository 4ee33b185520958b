package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/piivault/cmd/app/commands"
	"github.com/allisson/piivault/internal/app"
	"github.com/allisson/piivault/internal/config"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}

func entityFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:    "entity",
		Aliases: []string{"e"},
		Usage:   "Limit to these entities (repeatable or comma-separated); default is every entity",
	}
}

func batchSizeFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "batch-size",
		Value: 0,
		Usage: "Documents per cursor page (default MIGRATION_BATCH_SIZE)",
	}
}

// loadContainer validates configuration and builds a container for a field command.
func loadContainer() (*app.Container, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.NewContainer(cfg), nil
}

func getFieldCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "migrate-fields",
			Usage: "Encrypt plaintext PII, rotate legacy-key ciphertext and recompute blind indexes",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:    "dry-run",
					Aliases: []string{"n"},
					Usage:   "Count documents that would change without writing",
				},
				entityFlag(),
				batchSizeFlag(),
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := loadContainer()
				if err != nil {
					return err
				}
				defer func() { _ = container.Shutdown(ctx) }()

				if _, err := container.ResolveKeys(ctx); err != nil {
					return err
				}
				migrationUseCase, err := container.MigrationUseCase()
				if err != nil {
					return err
				}

				return commands.RunMigrateFields(
					ctx,
					migrationUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					commands.MigrateFieldsOptions{
						Entities:  cmd.StringSlice("entity"),
						DryRun:    cmd.Bool("dry-run"),
						BatchSize: int(cmd.Int("batch-size")),
						Format:    cmd.String("format"),
					},
				)
			},
		},
		{
			Name:  "verify-fields",
			Usage: "Audit stored documents for plaintext PII, stale blind indexes and legacy-key ciphertext",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "limit",
					Aliases: []string{"l"},
					Value:   0,
					Usage:   "Maximum documents to scan per entity (0 scans everything)",
				},
				&cli.BoolFlag{
					Name:  "fix",
					Usage: "Rewrite stale blind indexes (ciphertext is never modified)",
				},
				entityFlag(),
				batchSizeFlag(),
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := loadContainer()
				if err != nil {
					return err
				}
				defer func() { _ = container.Shutdown(ctx) }()

				if _, err := container.ResolveKeys(ctx); err != nil {
					return err
				}
				verificationUseCase, err := container.VerificationUseCase()
				if err != nil {
					return err
				}

				return commands.RunVerifyFields(
					ctx,
					verificationUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					commands.VerifyFieldsOptions{
						Entities:  cmd.StringSlice("entity"),
						Limit:     int(cmd.Int("limit")),
						Fix:       cmd.Bool("fix"),
						BatchSize: int(cmd.Int("batch-size")),
						Format:    cmd.String("format"),
					},
				)
			},
		},
		{
			Name:  "create-field-key",
			Usage: "Generate a new field encryption key (and the legacy list for a rotation)",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "kms-key-uri",
					Value: "",
					Usage: "Wrap the key with this KMS key (e.g., base64key://, gcpkms://projects/.../cryptoKeys/...)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunCreateFieldKey(
					ctx,
					container.KMSService(),
					container.Logger(),
					commands.DefaultIO().Writer,
					commands.CreateFieldKeyOptions{
						KMSKeyURI:         cmd.String("kms-key-uri"),
						CurrentKey:        cfg.FieldEncryptionKey,
						CurrentLegacyKeys: cfg.FieldEncryptionLegacyKeys,
						FallbackKey:       cfg.AuthTokenSecret,
					},
				)
			},
		},
		{
			Name:  "encryption-status",
			Usage: "Show whether field encryption is enabled, key fingerprints and encrypted fields",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := loadContainer()
				if err != nil {
					return err
				}
				defer func() { _ = container.Shutdown(ctx) }()

				keyManager, err := container.ResolveKeys(ctx)
				if err != nil {
					return err
				}
				registry, err := container.Registry()
				if err != nil {
					return err
				}

				return commands.RunEncryptionStatus(
					keyManager,
					registry,
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
	}
}
