package settings

import (
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	spacePattern = regexp.MustCompile(`\s+`)
	keyPattern   = regexp.MustCompile(`[^a-z0-9_\-]`)

	textPolicy   = bluemonday.StrictPolicy()
	noticePolicy = newNoticePolicy()
)

// newNoticePolicy allows links and light inline formatting. Links must be
// http, https, mailto or relative; event handlers and styles never pass.
func newNoticePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
	p.AllowElements("b", "strong", "em", "i", "small", "span", "br")
	return p
}

// Admin form field names.
const (
	FieldFormID     = "form_id"
	FieldEnabled    = "recaptcha"
	FieldType       = "recaptcha-type"
	FieldSiteKey    = "recaptcha-site-key"
	FieldSecretKey  = "recaptcha-secret-key"
	FieldSecretRef  = "recaptcha-secret-ref"
	FieldThreshold  = "recaptcha-threshold"
	FieldSize       = "recaptcha-size"
	FieldStyle      = "recaptcha-style"
	FieldBadge      = "recaptcha-badge"
	FieldNotice     = "recaptcha-notice"
	FieldUnverified = "unverified-recaptcha"
	FieldExpired    = "expired-recaptcha"
	FieldInvalid    = "invalid-recaptcha"
)

// ParseForm reads a submitted admin settings form. Checkboxes are on when
// present; absent choice fields take their default; text fields are
// stripped of markup. The notice keeps the inline HTML SanitizeNotice allows.
func ParseForm(values url.Values) (formID int, s Settings) {
	def := Defaults()

	formID = MainForm
	if raw := values.Get(FieldFormID); raw != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
			formID = n
		}
	}

	s = Settings{
		Enabled:     values.Has(FieldEnabled),
		Variant:     def.Variant,
		SiteKey:     sanitizeText(values.Get(FieldSiteKey)),
		SecretKey:   sanitizeText(values.Get(FieldSecretKey)),
		SecretRef:   sanitizeText(values.Get(FieldSecretRef)),
		Threshold:   def.Threshold,
		BadgeHidden: values.Has(FieldBadge),
		Size:        choice(values.Get(FieldSize), def.Size, SizeNormal, SizeCompact),
		Theme:       choice(values.Get(FieldStyle), def.Theme, ThemeLight, ThemeDark),
		Notice:      SanitizeNotice(values.Get(FieldNotice)),
		Messages: Messages{
			Unverified: sanitizeText(values.Get(FieldUnverified)),
			Expired:    sanitizeText(values.Get(FieldExpired)),
			Invalid:    sanitizeText(values.Get(FieldInvalid)),
		},
	}
	if v, err := ParseVariant(sanitizeKey(values.Get(FieldType))); err == nil {
		s.Variant = v
	}
	if raw := sanitizeText(values.Get(FieldThreshold)); raw != "" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			s.Threshold = f
		}
	}
	return formID, s
}

func sanitizeText(v string) string {
	v = html.UnescapeString(textPolicy.Sanitize(v))
	return strings.TrimSpace(spacePattern.ReplaceAllString(v, " "))
}

// SanitizeNotice cleans operator supplied badge notice HTML. Every path that
// stores or renders a notice passes through it.
func SanitizeNotice(v string) string {
	return strings.TrimSpace(noticePolicy.Sanitize(v))
}

func sanitizeKey(v string) string {
	return keyPattern.ReplaceAllString(strings.ToLower(v), "")
}

func choice(v, preset string, allowed ...string) string {
	v = sanitizeKey(v)
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return preset
}
