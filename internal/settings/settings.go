// Package settings holds the operator-facing reCAPTCHA configuration: which
// challenge variant is active, its keys, the v3 threshold, widget appearance
// and the three user-facing error messages.
package settings

import (
	"errors"
	"fmt"
	"strings"
)

// Version is recorded in the options store on activation.
const Version = "1.2.0"

// Variant selects the challenge flavour. Exactly one is active at a time.
type Variant string

const (
	VariantCheckbox  Variant = "v2_checkbox"
	VariantInvisible Variant = "v2_invisible"
	VariantV3        Variant = "v3"
)

// ParseVariant accepts the canonical names and the short forms older
// installs stored ("v2", "invisible").
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v2_checkbox", "v2", "checkbox":
		return VariantCheckbox, nil
	case "v2_invisible", "invisible", "v2i":
		return VariantInvisible, nil
	case "v3":
		return VariantV3, nil
	default:
		return "", fmt.Errorf("unknown recaptcha variant %q", s)
	}
}

// Label is the human name shown in admin screens and CLI output.
func (v Variant) Label() string {
	switch v {
	case VariantInvisible:
		return "reCAPTCHA v2 invisible"
	case VariantV3:
		return "reCAPTCHA v3"
	default:
		return "reCAPTCHA v2 checkbox"
	}
}

// UsesBadge reports whether the variant shows the floating badge.
func (v Variant) UsesBadge() bool {
	return v == VariantInvisible || v == VariantV3
}

const (
	SizeNormal  = "normal"
	SizeCompact = "compact"
	ThemeLight  = "light"
	ThemeDark   = "dark"

	CaptchaMath      = "math"
	CaptchaRecaptcha = "recaptcha"

	DefaultThreshold = 0.5
)

// Messages are shown to the visitor when a submission is rejected.
type Messages struct {
	Unverified string `json:"unverified" yaml:"unverified"`
	Expired    string `json:"expired" yaml:"expired"`
	Invalid    string `json:"invalid" yaml:"invalid"`
}

// Settings is loaded once per request and passed by value.
type Settings struct {
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	Variant     Variant  `json:"variant" yaml:"variant"`
	SiteKey     string   `json:"site_key" yaml:"site_key"`
	SecretKey   string   `json:"secret_key,omitempty" yaml:"secret_key,omitempty"`
	SecretRef   string   `json:"secret_ref,omitempty" yaml:"secret_ref,omitempty"`
	Threshold   float64  `json:"threshold" yaml:"threshold"`
	BadgeHidden bool     `json:"badge_hidden" yaml:"badge_hidden"`
	Size        string   `json:"size" yaml:"size"`
	Theme       string   `json:"theme" yaml:"theme"`
	Notice      string   `json:"notice" yaml:"notice"`
	Messages    Messages `json:"messages" yaml:"messages"`
}

// Attributes are the per-form switches owned by the host form.
type Attributes struct {
	CaptchaType string `json:"captcha_type" yaml:"captcha_type"`
}

// DefaultNotice is the badge replacement text Google requires when the badge is hidden.
const DefaultNotice = `This site is protected by reCAPTCHA and the Google <a href="https://policies.google.com/privacy" target="_blank">Privacy Policy</a> and <a href="https://policies.google.com/terms" target="_blank">Terms of Service</a> apply`

// DefaultMessages returns the stock rejection messages.
func DefaultMessages() Messages {
	return Messages{
		Unverified: "Please prove you are not a robot",
		Expired:    "reCAPTCHA response expired, please answer again!",
		Invalid:    "Robot verification failed, please try again",
	}
}

// Defaults returns the settings a fresh install starts with.
func Defaults() Settings {
	return Settings{
		Enabled:   false,
		Variant:   VariantCheckbox,
		Threshold: DefaultThreshold,
		Size:      SizeNormal,
		Theme:     ThemeLight,
		Notice:    DefaultNotice,
		Messages:  DefaultMessages(),
	}
}

// DefaultAttributes keeps the host's math captcha until an operator opts in.
func DefaultAttributes() Attributes {
	return Attributes{CaptchaType: CaptchaMath}
}

// Protects reports whether submissions of a form with attrs go through reCAPTCHA.
func (s Settings) Protects(attrs Attributes) bool {
	return s.Enabled && attrs.CaptchaType == CaptchaRecaptcha
}

// EffectiveThreshold is the score floor; zero unless the variant is v3.
func (s Settings) EffectiveThreshold() float64 {
	if s.Variant != VariantV3 {
		return 0
	}
	return s.Threshold
}

// ErrValidation marks operator input that cannot be saved.
var ErrValidation = errors.New("invalid recaptcha settings")

// Validate checks the settings an operator is about to save. Later checks
// take precedence so the most specific message is reported.
func (s Settings) Validate() error {
	if _, err := ParseVariant(string(s.Variant)); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if s.Threshold < 0 || s.Threshold > 1 {
		return fmt.Errorf("%w: threshold %.2f outside [0, 1]", ErrValidation, s.Threshold)
	}
	if !s.Enabled {
		return nil
	}

	var msg string
	if s.SiteKey == "" || (s.SecretKey == "" && s.SecretRef == "") {
		msg = "Please enter the API keys for enabling reCAPTCHA Anti-Spam"
	}
	if s.Variant == VariantCheckbox {
		if s.Messages.Unverified == "" {
			msg = "Please enter an error message when the reCAPTCHA is not answered"
		}
		if s.Messages.Expired == "" {
			msg = "Please enter an error message if the reCAPTCHA response expires and is no longer valid"
		}
	} else if s.Messages.Invalid == "" {
		msg = "Please enter an error message if the reCAPTCHA verification failed"
	}
	if msg != "" {
		return fmt.Errorf("%w: %s", ErrValidation, msg)
	}
	return nil
}
