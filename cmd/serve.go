package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crescent-outreach/intake-cli/internal/intake"
	"github.com/crescent-outreach/intake-cli/pkg/docusign"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the questionnaire intake API",
	Long: `Serves submission capture and parcel lookup endpoints for the intake form.
The e-signature endpoint is enabled when DocuSign credentials are configured
and responds 503 otherwise.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		var signer intake.EnvelopeSender
		if err := cfg.Validate("docusign"); err == nil {
			signer, err = docusign.NewClient(docusign.Config{
				BaseURL:        cfg.DocuSign.BaseURL,
				OAuthBaseURL:   cfg.DocuSign.OAuthBaseURL,
				IntegrationKey: cfg.DocuSign.IntegrationKey,
				UserID:         cfg.DocuSign.UserID,
				AccountID:      cfg.DocuSign.AccountID,
				PrivateKeyPath: cfg.DocuSign.PrivateKeyPath,
				TemplateID:     cfg.DocuSign.TemplateID,
			})
			if err != nil {
				return err
			}
		} else {
			zap.L().Info("e-signature disabled", zap.String("reason", err.Error()))
		}

		server := intake.NewServer(intake.NewStore(pool), signer)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           server.Router(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting intake server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
