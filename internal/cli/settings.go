package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/settings"
)

const secretMask = "********"

// NewSettingsCommand creates the settings command group.
func NewSettingsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show, change, import and export form settings",
	}

	cmd.AddCommand(newSettingsShowCommand(rootOpts))
	cmd.AddCommand(newSettingsSetCommand(rootOpts))
	cmd.AddCommand(newSettingsImportCommand(rootOpts))
	cmd.AddCommand(newSettingsExportCommand(rootOpts))

	return cmd
}

// SettingsView is what show and set print.
type SettingsView struct {
	FormID     int                 `json:"form_id" yaml:"form_id"`
	Settings   settings.Settings   `json:"settings" yaml:"settings"`
	Attributes settings.Attributes `json:"attributes" yaml:"attributes"`
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newSettingsShowCommand(rootOpts *RootOptions) *cobra.Command {
	var formID int
	var reveal bool

	cmd := &cobra.Command{
		Use:           "show",
		Short:         "Print the effective settings of a form",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := commandContext(cmd)
			s, attrs, err := settings.StoreProvider{Store: store}.ForForm(ctx, formID)
			if err != nil {
				return WrapExitError(ExitCommandError, "load settings", err)
			}
			if !reveal && s.SecretKey != "" {
				s.SecretKey = secretMask
			}
			return printView(rootOpts, cmd, SettingsView{FormID: formID, Settings: s, Attributes: attrs})
		},
	}

	cmd.Flags().IntVar(&formID, "form", settings.MainForm, "form id")
	cmd.Flags().BoolVar(&reveal, "reveal-secret", false, "print the secret key instead of a mask")

	return cmd
}

func printView(rootOpts *RootOptions, cmd *cobra.Command, view SettingsView) error {
	out := newFormatter(rootOpts, cmd.OutOrStdout())
	if rootOpts.Format == "json" {
		return out.ok(view, "")
	}
	b, err := yaml.Marshal(view)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(b)
	return err
}

type setOptions struct {
	formID      int
	enabled     bool
	variant     string
	siteKey     string
	secretKey   string
	secretRef   string
	threshold   float64
	badgeHidden bool
	size        string
	theme       string
	notice      string
	unverified  string
	expired     string
	invalid     string
	captchaType string
}

func newSettingsSetCommand(rootOpts *RootOptions) *cobra.Command {
	o := &setOptions{}

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change settings; only the flags given are applied",
		Long: `Change reCAPTCHA settings. Flags left out keep their stored value.

Only the main form (1) stores its own values; saving any other form copies
the main form's settings to it. --captcha-type applies to the given form.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettingsSet(cmd, rootOpts, o)
		},
	}

	f := cmd.Flags()
	f.IntVar(&o.formID, "form", settings.MainForm, "form id")
	f.BoolVar(&o.enabled, "enabled", false, "enable reCAPTCHA")
	f.StringVar(&o.variant, "variant", "", "v2_checkbox | v2_invisible | v3")
	f.StringVar(&o.siteKey, "site-key", "", "site key")
	f.StringVar(&o.secretKey, "secret-key", "", "secret key")
	f.StringVar(&o.secretRef, "secret-ref", "", "config key holding the secret (env or Vault)")
	f.Float64Var(&o.threshold, "threshold", settings.DefaultThreshold, "v3 score threshold")
	f.BoolVar(&o.badgeHidden, "badge-hidden", false, "replace the badge with the notice")
	f.StringVar(&o.size, "size", "", "checkbox size (normal|compact)")
	f.StringVar(&o.theme, "theme", "", "checkbox theme (light|dark)")
	f.StringVar(&o.notice, "notice", "", "notice shown when the badge is hidden")
	f.StringVar(&o.unverified, "unverified-message", "", "message for a missing checkbox response")
	f.StringVar(&o.expired, "expired-message", "", "message for an expired checkbox response")
	f.StringVar(&o.invalid, "invalid-message", "", "message for a failed verification")
	f.StringVar(&o.captchaType, "captcha-type", "", "form captcha type (math|recaptcha)")

	return cmd
}

func runSettingsSet(cmd *cobra.Command, rootOpts *RootOptions, o *setOptions) error {
	store, err := openStore(rootOpts)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := commandContext(cmd)
	s, err := settings.Load(ctx, store, o.formID)
	if err != nil {
		return WrapExitError(ExitCommandError, "load settings", err)
	}

	f := cmd.Flags()
	if f.Changed("enabled") {
		s.Enabled = o.enabled
	}
	if f.Changed("variant") {
		v, err := settings.ParseVariant(o.variant)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --variant", err)
		}
		s.Variant = v
	}
	strFlags := map[string]*string{
		"site-key":           &s.SiteKey,
		"secret-key":         &s.SecretKey,
		"secret-ref":         &s.SecretRef,
		"size":               &s.Size,
		"theme":              &s.Theme,
		"notice":             &s.Notice,
		"unverified-message": &s.Messages.Unverified,
		"expired-message":    &s.Messages.Expired,
		"invalid-message":    &s.Messages.Invalid,
	}
	for name, dst := range strFlags {
		if f.Changed(name) {
			v, _ := f.GetString(name)
			*dst = v
		}
	}
	if f.Changed("threshold") {
		s.Threshold = o.threshold
	}
	if f.Changed("badge-hidden") {
		s.BadgeHidden = o.badgeHidden
	}

	saved, err := settings.Save(ctx, store, o.formID, s)
	if errors.Is(err, settings.ErrValidation) {
		return WrapExitError(ExitCommandError, "settings rejected", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "save settings", err)
	}

	if f.Changed("captcha-type") {
		if err := settings.SaveAttributes(ctx, store, o.formID, settings.Attributes{CaptchaType: o.captchaType}); err != nil {
			return WrapExitError(ExitCommandError, "save attributes", err)
		}
	}
	attrs, err := settings.LoadAttributes(ctx, store, o.formID)
	if err != nil {
		return WrapExitError(ExitCommandError, "load attributes", err)
	}

	if saved.SecretKey != "" {
		saved.SecretKey = secretMask
	}
	return printView(rootOpts, cmd, SettingsView{FormID: o.formID, Settings: saved, Attributes: attrs})
}

func newSettingsImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "import <file>",
		Short:         "Load settings from a YAML or JSON settings file into the database",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "read settings file", err)
			}
			doc, err := settings.ParseFile(args[0], data)
			if err != nil {
				return WrapExitError(ExitCommandError, "parse settings file", err)
			}

			store, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := settings.Import(commandContext(cmd), store, doc); err != nil {
				return WrapExitError(ExitCommandError, "import settings", err)
			}
			out := newFormatter(rootOpts, cmd.OutOrStdout())
			return out.ok(map[string]any{"file": args[0], "forms": len(doc.Forms)},
				fmt.Sprintf("imported %s (%d form overrides)", args[0], len(doc.Forms)))
		},
	}
}

func newSettingsExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "export [file]",
		Short:         "Write the stored settings as a YAML settings file (stdout when no file)",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer store.Close()

			doc, err := settings.Export(commandContext(cmd), store)
			if err != nil {
				return WrapExitError(ExitCommandError, "export settings", err)
			}
			if len(args) == 1 {
				if err := settings.WriteFile(args[0], doc); err != nil {
					return WrapExitError(ExitCommandError, "write settings file", err)
				}
				return newFormatter(rootOpts, cmd.OutOrStdout()).ok(map[string]any{"file": args[0]}, "exported to "+args[0])
			}
			b, err := yaml.Marshal(doc)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}
