package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"notary/internal/attestation"
	"notary/internal/bootstrap"
	"notary/internal/config"
	"notary/internal/database"
	"notary/internal/database/migration"
	"notary/internal/logging"
	"notary/internal/service"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "notaryctl",
		Short:         "Operator tooling for the document notary",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(topicCmd())
	root.AddCommand(hashCmd())
	root.AddCommand(resumeCmd())
	root.AddCommand(signerCmd())

	return root
}

// logger writes JSON logs to the command's stderr.
func logger(cmd *cobra.Command, cfg *config.AppConfig) *logging.Logger {
	return logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Location())
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema if it is missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			db, err := database.NewPostgres(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			return migration.EnsureMigrated(cmd.Context(), db, logger(cmd, cfg), cfg.Database.Host)
		},
	}
}

func topicCmd() *cobra.Command {
	topic := &cobra.Command{
		Use:   "topic",
		Short: "Manage the shared event topic",
	}

	topic.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Create the event topic if needed and print its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			b, err := bootstrap.Open(cmd.Context(), cfg, logger(cmd, cfg))
			if err != nil {
				return err
			}
			defer b.Close()

			id, err := b.Log.EnsureTopic(cmd.Context())
			if err != nil {
				return fmt.Errorf("ensure topic: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	})

	return topic
}

func hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [file]",
		Short: "Print the content hash a document is notarized under",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), service.ContentHash(data))
			return nil
		},
	}
}

func resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume-uploads",
		Short: "Finish immutable publishes interrupted before sealing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			b, err := bootstrap.Open(cmd.Context(), cfg, logger(cmd, cfg))
			if err != nil {
				return err
			}
			defer b.Close()

			n, err := b.Publisher.Resume(cmd.Context())
			if err != nil {
				return fmt.Errorf("resume uploads: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "resumed %d upload(s)\n", n)
			return nil
		},
	}
}

func signerCmd() *cobra.Command {
	var seed string
	cmd := &cobra.Command{
		Use:   "signer-pubkey",
		Short: "Print the attestation public key for a signing seed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if seed == "" {
				seed = config.Load().Agent.SigningKeyHex
			}
			if seed == "" {
				return fmt.Errorf("no signing key: pass --seed or set AGENT_SIGNING_KEY")
			}
			s, err := attestation.NewSigner(seed)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.PublicKeyHex())
			return nil
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "hex-encoded ed25519 seed")
	return cmd
}
