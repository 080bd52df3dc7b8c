package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jewelshop-backend/internal/config"
	"jewelshop-backend/internal/database"
	"jewelshop-backend/internal/ledger"
	"jewelshop-backend/internal/linestock"
	"jewelshop-backend/internal/server"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:           "jewelshop",
		Short:         "Jewelry shop back office: stock, dealers, line stock and billing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (env CONFIG_FILE)")

	root.AddCommand(serveCmd(), migrateCmd(), verifyLedgerCmd(), markOverdueCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// setup loads config, installs the JSON logger and opens the database.
func setup() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := database.Init(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ledgerService(cfg *config.Config) *ledger.Service {
	return ledger.NewService(database.DB, ledger.Options{
		MaxRetries: cfg.LedgerMaxRetries,
		Location:   cfg.Location,
	})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			app := server.New(cfg, database.DB)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				slog.Info("listening", "port", cfg.HTTPPort, "driver", cfg.DBDriver)
				errCh <- app.Listen(":" + cfg.HTTPPort)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			slog.Info("shutting down")
			if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := setup(); err != nil {
				return err
			}
			slog.Info("schema is up to date")
			return nil
		},
	}
}

func verifyLedgerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-ledger",
		Short: "Replay every counterparty ledger and report broken chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			reports, err := ledgerService(cfg).VerifyAll(cmd.Context())
			if err != nil {
				return err
			}

			broken := 0
			for _, r := range reports {
				if r.OK {
					continue
				}
				broken++
				attrs := []any{
					"counterparty_id", r.CounterpartyID,
					"replayed", ledger.FormatGrams(r.Replayed),
					"stored", ledger.FormatGrams(r.Stored),
				}
				if r.FirstMismatchID != nil {
					attrs = append(attrs, "first_mismatch_id", *r.FirstMismatchID,
						"expected", ledger.FormatGrams(r.Expected), "found", ledger.FormatGrams(r.Found))
				}
				slog.Error("ledger chain broken", attrs...)
			}
			slog.Info("ledger verified", "counterparties", len(reports), "broken", broken)
			if broken > 0 {
				return errors.New("ledger verification failed")
			}
			return nil
		},
	}
}

func markOverdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark-overdue",
		Short: "Flag issued line stock past its expected return date",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			l := ledgerService(cfg)
			n, err := linestock.NewService(l).MarkOverdue(cmd.Context(), l.Now())
			if err != nil {
				return err
			}
			slog.Info("line stock marked overdue", "count", n)
			return nil
		},
	}
}
