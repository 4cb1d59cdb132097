package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/options"
	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/settings"
)

// NewActivateCommand creates the activate command.
func NewActivateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "activate",
		Short: "Install default settings and record the installed version",
		Long: `Merge default reCAPTCHA settings into every form that lacks them and record
the installed version. Values already stored are kept.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(cmd, rootOpts, "activate", settings.Activate,
				"activated version "+settings.Version)
		},
	}
}

// NewDeactivateCommand creates the deactivate command.
func NewDeactivateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "deactivate",
		Short:         "Turn reCAPTCHA off and switch every form back to the math captcha",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(cmd, rootOpts, "deactivate", settings.Deactivate, "deactivated")
		},
	}
}

// NewUninstallCommand creates the uninstall command.
func NewUninstallCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:           "uninstall",
		Short:         "Remove every reCAPTCHA key from all forms",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return NewExitError(ExitCommandError, "uninstall deletes stored settings; pass --yes to confirm")
			}
			return runLifecycle(cmd, rootOpts, "uninstall", settings.Uninstall, "uninstalled")
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm removal")

	return cmd
}

type lifecycleFunc = func(ctx context.Context, store options.Store) error

func runLifecycle(cmd *cobra.Command, rootOpts *RootOptions, name string, fn lifecycleFunc, done string) error {
	store, err := openStore(rootOpts)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := fn(commandContext(cmd), store); err != nil {
		return WrapExitError(ExitCommandError, name, err)
	}
	return newFormatter(rootOpts, cmd.OutOrStdout()).ok(map[string]any{"action": name, "version": settings.Version}, done)
}
