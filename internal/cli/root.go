// Package cli implements the sform-recaptcha command tree.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/options"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DBPath   string
	EnvFile  string
	Format   string // "text" | "json"
	LogLevel string
	Verbose  bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sform-recaptcha",
		Short: "reCAPTCHA protection for simple forms",
		Long: `Manage reCAPTCHA settings for forms, verify tokens against Google's
siteverify endpoint and serve protected forms over HTTP.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if err := loadEnv(opts.EnvFile); err != nil {
				return WrapExitError(ExitCommandError, "load env file", err)
			}
			if opts.DBPath == "" {
				opts.DBPath = envOr("RECAPTCHA_DB", "recaptcha.db")
			}
			slog.SetDefault(newLogger(cmd, opts))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "options database path (default $RECAPTCHA_DB or recaptcha.db)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before running")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewSettingsCommand(opts))
	cmd.AddCommand(NewActivateCommand(opts))
	cmd.AddCommand(NewDeactivateCommand(opts))
	cmd.AddCommand(NewUninstallCommand(opts))

	return cmd
}

// loadEnv reads the dotenv file when it exists. Variables already set in
// the environment win.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func newLogger(cmd *cobra.Command, opts *RootOptions) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	} else if err := level.UnmarshalText([]byte(opts.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func openStore(opts *RootOptions) (*options.SQLite, error) {
	store, err := options.OpenSQLite(opts.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open options database", err)
	}
	return store, nil
}

// envOr returns the environment value of key, or preset when unset.
func envOr(key, preset string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return preset
}
