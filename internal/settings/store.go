package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/options"
)

// MainForm is the form whose settings every other form falls back to.
const MainForm = 1

// Option record keys owned by this add-on.
const (
	keyEnabled    = "recaptcha"
	keyType       = "recaptcha_type"
	keySiteKey    = "recaptcha_site_key"
	keySecretKey  = "recaptcha_secret_key"
	keySecretRef  = "recaptcha_secret_ref"
	keyThreshold  = "recaptcha_threshold"
	keySize       = "recaptcha_size"
	keyStyle      = "recaptcha_style"
	keyBadge      = "recaptcha_badge"
	keyNotice     = "recaptcha_notice"
	keyUnverified = "unverified_recaptcha"
	keyExpired    = "expired_recaptcha"
	keyInvalid    = "invalid_recaptcha"

	keyCaptchaType = "captcha_type"

	versionOption = "sform_recaptcha_version"
)

var settingsKeys = []string{
	keyEnabled, keyType, keySiteKey, keySecretKey, keySecretRef, keyThreshold,
	keySize, keyStyle, keyBadge, keyNotice, keyUnverified, keyExpired, keyInvalid,
}

// SettingsOption names the settings record of a form.
func SettingsOption(formID int) string {
	if formID == MainForm {
		return "sform_settings"
	}
	return fmt.Sprintf("sform_%d_settings", formID)
}

// AttributesOption names the attributes record of a form.
func AttributesOption(formID int) string {
	if formID == MainForm {
		return "sform_attributes"
	}
	return fmt.Sprintf("sform_%d_attributes", formID)
}

// readRecord returns the form's own record, or the main form's when the
// form has none.
func readRecord(ctx context.Context, store options.Store, formID int, name func(int) string) (map[string]any, error) {
	if formID != MainForm {
		rec, ok, err := store.Get(ctx, name(formID))
		if err != nil {
			return nil, err
		}
		if ok {
			return rec, nil
		}
	}
	rec, _, err := store.Get(ctx, name(MainForm))
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Load reads the settings that apply to formID. Missing or empty values
// take their default.
func Load(ctx context.Context, store options.Store, formID int) (Settings, error) {
	rec, err := readRecord(ctx, store, formID, SettingsOption)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings for form %d: %w", formID, err)
	}
	return fromRecord(rec), nil
}

// LoadAttributes reads the host attributes for formID.
func LoadAttributes(ctx context.Context, store options.Store, formID int) (Attributes, error) {
	rec, err := readRecord(ctx, store, formID, AttributesOption)
	if err != nil {
		return Attributes{}, fmt.Errorf("load attributes for form %d: %w", formID, err)
	}
	def := DefaultAttributes()
	return Attributes{CaptchaType: stringValue(rec, keyCaptchaType, def.CaptchaType)}, nil
}

// Save stores s for formID, keeping any host keys already in the record.
// Only the main form accepts new values; other forms receive a copy of the
// main form's settings. It returns what was written.
func Save(ctx context.Context, store options.Store, formID int, s Settings) (Settings, error) {
	if formID != MainForm {
		main, err := Load(ctx, store, MainForm)
		if err != nil {
			return Settings{}, err
		}
		s = main
	} else if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	s.Notice = SanitizeNotice(s.Notice)

	name := SettingsOption(formID)
	rec, _, err := store.Get(ctx, name)
	if err != nil {
		return Settings{}, fmt.Errorf("save settings for form %d: %w", formID, err)
	}
	if rec == nil {
		rec = map[string]any{}
	}
	for k, v := range toRecord(s) {
		rec[k] = v
	}
	if err := store.Put(ctx, name, rec); err != nil {
		return Settings{}, fmt.Errorf("save settings for form %d: %w", formID, err)
	}
	return s, nil
}

// SaveAttributes sets the captcha type of a form.
func SaveAttributes(ctx context.Context, store options.Store, formID int, attrs Attributes) error {
	if attrs.CaptchaType != CaptchaMath && attrs.CaptchaType != CaptchaRecaptcha {
		return fmt.Errorf("%w: unknown captcha type %q", ErrValidation, attrs.CaptchaType)
	}
	name := AttributesOption(formID)
	rec, _, err := store.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("save attributes for form %d: %w", formID, err)
	}
	if rec == nil {
		rec = map[string]any{}
	}
	rec[keyCaptchaType] = attrs.CaptchaType
	return store.Put(ctx, name, rec)
}

func toRecord(s Settings) map[string]any {
	return map[string]any{
		keyEnabled:    s.Enabled,
		keyType:       string(s.Variant),
		keySiteKey:    s.SiteKey,
		keySecretKey:  s.SecretKey,
		keySecretRef:  s.SecretRef,
		keyThreshold:  strconv.FormatFloat(s.Threshold, 'f', -1, 64),
		keySize:       s.Size,
		keyStyle:      s.Theme,
		keyBadge:      s.BadgeHidden,
		keyNotice:     SanitizeNotice(s.Notice),
		keyUnverified: s.Messages.Unverified,
		keyExpired:    s.Messages.Expired,
		keyInvalid:    s.Messages.Invalid,
	}
}

func fromRecord(rec map[string]any) Settings {
	def := Defaults()
	s := Settings{
		Enabled:     boolValue(rec, keyEnabled, def.Enabled),
		Variant:     def.Variant,
		SiteKey:     stringValue(rec, keySiteKey, def.SiteKey),
		SecretKey:   stringValue(rec, keySecretKey, def.SecretKey),
		SecretRef:   stringValue(rec, keySecretRef, def.SecretRef),
		Threshold:   floatValue(rec, keyThreshold, def.Threshold),
		BadgeHidden: boolValue(rec, keyBadge, def.BadgeHidden),
		Size:        stringValue(rec, keySize, def.Size),
		Theme:       stringValue(rec, keyStyle, def.Theme),
		Notice:      stringValue(rec, keyNotice, def.Notice),
		Messages: Messages{
			Unverified: stringValue(rec, keyUnverified, def.Messages.Unverified),
			Expired:    stringValue(rec, keyExpired, def.Messages.Expired),
			Invalid:    stringValue(rec, keyInvalid, def.Messages.Invalid),
		},
	}
	if v, err := ParseVariant(stringValue(rec, keyType, "")); err == nil {
		s.Variant = v
	}
	return s
}

func stringValue(rec map[string]any, key, preset string) string {
	v, ok := rec[key]
	if !ok || v == nil {
		return preset
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case bool:
		s = strconv.FormatBool(t)
	default:
		s = fmt.Sprint(t)
	}
	if strings.TrimSpace(s) == "" {
		return preset
	}
	return s
}

// boolValue keeps stored booleans as they are, including false.
func boolValue(rec map[string]any, key string, preset bool) bool {
	switch t := rec[key].(type) {
	case bool:
		return t
	case string:
		if t == "" {
			return preset
		}
		b, err := strconv.ParseBool(t)
		if err != nil {
			return preset
		}
		return b
	case float64:
		return t != 0
	default:
		return preset
	}
}

func floatValue(rec map[string]any, key string, preset float64) float64 {
	switch t := rec[key].(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return preset
		}
		return f
	default:
		return preset
	}
}
