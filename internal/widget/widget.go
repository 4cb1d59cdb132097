// Package widget renders the reCAPTCHA field for a form: the widget markup,
// the API script tag and the inline script that holds submission until a
// token is present.
package widget

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/settings"
)

// APIURL is Google's widget script.
const APIURL = "https://www.google.com/recaptcha/api.js"

// Placement says where the inline script goes relative to the API script.
type Placement int

const (
	// Before: the callbacks must exist when the API parses data-callback.
	Before Placement = iota
	// After: the script calls grecaptcha directly.
	After
)

// badgeStyle collapses the floating badge when a notice replaces it.
const badgeStyle = `div.grecaptcha-badge { width: 0px !important; }.grecaptcha-notice { display: inline-block; font-size: 0.75em; margin-bottom: 22px;}`

// Options tweak rendering for one form.
type Options struct {
	// Inline is set when the form places labels beside inputs.
	Inline bool
	// Unverified is set when re-rendering after an unverified rejection;
	// the checkbox marker then starts as "failed".
	Unverified bool
}

// Fragment is everything a form page needs for one protected form.
type Fragment struct {
	FormID      int
	Markup      template.HTML
	Script      string
	Placement   Placement
	ScriptURL   string
	InlineStyle string
	Async       bool
}

var (
	v3Markup = template.Must(template.New("v3").Parse(
		`<div class="g-recaptcha"><input type="hidden" id="g-recaptcha-response" name="g-recaptcha-response" value=""><input type="hidden" name="action" value="submit_form">{{.Badge}}</div>`))

	invisibleMarkup = template.Must(template.New("invisible").Parse(
		`<div class="g-recaptcha row" data-sitekey="{{.SiteKey}}" data-callback="onSubmit_{{.FormID}}" data-expired-callback="onExpire_{{.FormID}}" data-size="invisible"></div>{{.Badge}}`))

	checkboxMarkup = template.Must(template.New("checkbox").Parse(
		`<div class="gcaptcha-wrap nolabel{{if .Inline}} col-sm-10{{end}}"><div class="g-recaptcha" data-sitekey="{{.SiteKey}}" data-theme="{{.Theme}}" data-size="{{.Size}}" data-callback="successCallback_{{.FormID}}" data-expired-callback="expireCallback_{{.FormID}}"></div><input type="hidden" name="recaptcha-{{.FormID}}-response" id="recaptcha-{{.FormID}}-response" value="{{.Marker}}"></div>`))

	badgeMarkup = template.Must(template.New("badge").Parse(
		`<span class="nolabel{{if .Inline}} col-sm-10{{end}} grecaptcha-notice">{{.Notice}}</span>`))
)

type markupData struct {
	FormID  int
	SiteKey string
	Theme   string
	Size    string
	Marker  string
	Inline  bool
	Badge   template.HTML
	Notice  template.HTML
}

// Render builds the fragment for formID under s.
func Render(formID int, s settings.Settings, opts Options) (Fragment, error) {
	data := markupData{
		FormID:  formID,
		SiteKey: s.SiteKey,
		Theme:   s.Theme,
		Size:    s.Size,
		Inline:  opts.Inline,
		// The notice is operator-authored HTML.
		Notice: template.HTML(settings.SanitizeNotice(s.Notice)),
	}
	if opts.Unverified {
		data.Marker = "failed"
	}

	frag := Fragment{
		FormID:    formID,
		ScriptURL: ScriptURL(s),
		Async:     s.Variant != settings.VariantV3,
	}

	if s.Variant.UsesBadge() && s.BadgeHidden {
		badge, err := execute(badgeMarkup, data)
		if err != nil {
			return Fragment{}, err
		}
		data.Badge = badge
		frag.InlineStyle = badgeStyle
	}

	var (
		tmpl *template.Template
		err  error
	)
	switch s.Variant {
	case settings.VariantV3:
		tmpl = v3Markup
		frag.Placement = After
		frag.Script, err = V3Script(formID, s.SiteKey)
	case settings.VariantInvisible:
		tmpl = invisibleMarkup
		frag.Placement = Before
		frag.Script, err = InvisibleScript(formID)
	default:
		tmpl = checkboxMarkup
		frag.Placement = Before
		frag.Script, err = CheckboxScript(formID, s.Messages)
	}
	if err != nil {
		return Fragment{}, err
	}

	frag.Markup, err = execute(tmpl, data)
	if err != nil {
		return Fragment{}, err
	}
	return frag, nil
}

func execute(t *template.Template, data markupData) (template.HTML, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s markup: %w", t.Name(), err)
	}
	return template.HTML(buf.String()), nil
}

// ScriptURL is the API script for the variant; v3 loads it with the site key.
func ScriptURL(s settings.Settings) string {
	if s.Variant != settings.VariantV3 {
		return APIURL
	}
	return APIURL + "?render=" + url.QueryEscape(s.SiteKey)
}

// ScriptTag renders the API script element. v2 variants load async and
// deferred; v3 must be ready before the inline script runs.
func ScriptTag(s settings.Settings) template.HTML {
	src := template.HTMLEscapeString(ScriptURL(s))
	if s.Variant == settings.VariantV3 {
		return template.HTML(`<script src="` + src + `"></script>`)
	}
	return template.HTML(`<script src="` + src + `" async defer></script>`)
}

// Footer renders the script elements for a page in load order. All
// fragments on one page share the same settings and so the same API script.
func Footer(s settings.Settings, frags ...Fragment) template.HTML {
	var before, after strings.Builder
	for _, f := range frags {
		if f.Script == "" {
			continue
		}
		target := &before
		if f.Placement == After {
			target = &after
		}
		target.WriteString("<script>")
		target.WriteString(f.Script)
		target.WriteString("</script>\n")
	}

	var out strings.Builder
	for _, f := range frags {
		if f.InlineStyle != "" {
			out.WriteString("<style>" + f.InlineStyle + "</style>\n")
			break
		}
	}
	out.WriteString(before.String())
	out.WriteString(string(ScriptTag(s)))
	out.WriteString("\n")
	out.WriteString(after.String())
	return template.HTML(out.String())
}
