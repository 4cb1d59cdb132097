package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	recaptcha "github.com/berkan-cetinkaya/simpleform-recaptcha"
	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/config"
	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/server"
	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/settings"
	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/verifier"
)

type serveOptions struct {
	addr         string
	settingsFile string
	adminToken   string
	endpoint     string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	o := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve protected forms, the admin API and metrics",
		Long: `Serve form pages with the reCAPTCHA widget, verify submissions and expose
the settings admin API, /healthz and /metrics.

Settings come from the options database unless --settings-file names a YAML
or JSON settings file, which is reloaded when it changes.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts, o)
		},
	}

	cmd.Flags().StringVar(&o.addr, "addr", "", "listen address (default $RECAPTCHA_HTTP_ADDR or :8080)")
	cmd.Flags().StringVar(&o.settingsFile, "settings-file", "", "settings file (default $RECAPTCHA_SETTINGS_FILE)")
	cmd.Flags().StringVar(&o.adminToken, "admin-token", "", "bearer token for admin routes (default $RECAPTCHA_ADMIN_TOKEN, loopback-only admin when unset)")
	cmd.Flags().StringVar(&o.endpoint, "endpoint", verifier.DefaultEndpoint, "siteverify endpoint")

	return cmd
}

func runServe(ctx context.Context, rootOpts *RootOptions, o *serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := slog.Default()

	store, err := openStore(rootOpts)
	if err != nil {
		return err
	}
	defer store.Close()

	if ran, err := settings.CheckVersion(ctx, store); err != nil {
		return WrapExitError(ExitCommandError, "check installed version", err)
	} else if ran {
		logger.Info("settings upgraded", "version", settings.Version)
	}

	secrets, err := config.Default()
	if err != nil {
		return WrapExitError(ExitCommandError, "init config source", err)
	}
	logger.Info("config source ready", "provider", secrets.SourceName())

	engine := recaptcha.NewEngine(
		recaptcha.WithGoogle(o.endpoint, nil),
		recaptcha.WithSecretResolver(secrets),
		recaptcha.WithLogger(logger),
	)

	handlerOpts := []server.Option{
		server.WithEngine(engine),
		server.WithLogger(logger),
		server.WithAdminToken(firstNonEmpty(o.adminToken, os.Getenv("RECAPTCHA_ADMIN_TOKEN"))),
	}
	if path := firstNonEmpty(o.settingsFile, os.Getenv("RECAPTCHA_SETTINGS_FILE")); path != "" {
		fp := settings.NewFileProvider(path)
		if _, err := fp.Current(); err != nil {
			return WrapExitError(ExitCommandError, "load settings file", err)
		}
		logger.Info("reading settings from file", "path", path)
		handlerOpts = append(handlerOpts, server.WithProvider(fp))
	}

	srv := &http.Server{
		Addr:              firstNonEmpty(o.addr, envOr("RECAPTCHA_HTTP_ADDR", ":8080")),
		Handler:           server.New(store, handlerOpts...).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sform-recaptcha listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return WrapExitError(ExitCommandError, "server error", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
