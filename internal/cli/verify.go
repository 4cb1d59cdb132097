package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	recaptcha "github.com/berkan-cetinkaya/simpleform-recaptcha"
	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/config"
	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/settings"
	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/verifier"
)

type verifyOptions struct {
	formID   int
	token    string
	remoteIP string
	expired  bool
	endpoint string
	timeout  time.Duration
}

// VerifyResult is the JSON shape of a verify run.
type VerifyResult struct {
	FormID   int              `json:"form_id"`
	Variant  settings.Variant `json:"variant"`
	Accepted bool             `json:"accepted"`
	Reason   recaptcha.Reason `json:"reason,omitempty"`
	Message  string           `json:"message,omitempty"`
	Score    *float64         `json:"score,omitempty"`
	FailOpen bool             `json:"fail_open,omitempty"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	o := &verifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run a token through the decision engine for a form",
		Long: `Verify a token with the stored settings of a form, exactly as a submission
would be judged. Exits 1 when the submission would be rejected.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, rootOpts, o)
		},
	}

	cmd.Flags().IntVar(&o.formID, "form", settings.MainForm, "form id")
	cmd.Flags().StringVar(&o.token, "token", "", "g-recaptcha-response token")
	cmd.Flags().StringVar(&o.remoteIP, "remote-ip", "", "client IP forwarded to siteverify")
	cmd.Flags().BoolVar(&o.expired, "expired", false, "simulate the checkbox expired marker")
	cmd.Flags().StringVar(&o.endpoint, "endpoint", verifier.DefaultEndpoint, "siteverify endpoint")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 6*time.Second, "siteverify timeout")

	return cmd
}

func runVerify(cmd *cobra.Command, rootOpts *RootOptions, o *verifyOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := newFormatter(rootOpts, cmd.OutOrStdout())

	store, err := openStore(rootOpts)
	if err != nil {
		return err
	}
	defer store.Close()

	s, attrs, err := settings.StoreProvider{Store: store}.ForForm(ctx, o.formID)
	if err != nil {
		return WrapExitError(ExitCommandError, "load settings", err)
	}
	if !s.Protects(attrs) {
		res := VerifyResult{FormID: o.formID, Variant: s.Variant, Accepted: true}
		return out.ok(res, fmt.Sprintf("form %d does not use reCAPTCHA; submission passes", o.formID))
	}

	var d recaptcha.Decision
	if o.expired && s.Variant == settings.VariantCheckbox {
		d = recaptcha.Reject(recaptcha.ReasonExpired)
	} else {
		secrets, err := config.Default()
		if err != nil {
			return WrapExitError(ExitCommandError, "init config source", err)
		}
		engine := recaptcha.NewEngine(
			recaptcha.WithGoogle(o.endpoint, nil),
			recaptcha.WithSecretResolver(secrets),
			recaptcha.WithLogger(slog.Default()),
		)
		vctx, cancel := context.WithTimeout(ctx, o.timeout)
		d = engine.Verify(vctx, o.token, o.remoteIP, s)
		cancel()
	}

	res := VerifyResult{
		FormID:   o.formID,
		Variant:  s.Variant,
		Accepted: d.Accepted,
		Reason:   d.Reason,
		FailOpen: d.Err != nil,
	}
	if d.Result != nil {
		res.Score = d.Result.Score
	}

	if d.Accepted {
		text := fmt.Sprintf("accepted (%s)", s.Variant.Label())
		if res.FailOpen {
			text += fmt.Sprintf("; siteverify unreachable, failing open: %v", d.Err)
		}
		return out.ok(res, text)
	}

	res.Message = d.Message(s.Messages)
	if err := out.fail(res, fmt.Sprintf("rejected: %s (%s)", d.Reason, res.Message)); err != nil {
		return err
	}
	return NewExitError(ExitFailure, "submission rejected: "+string(d.Reason))
}
