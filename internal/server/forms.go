package server

import (
	"html/template"
	"net/http"

	recaptcha "github.com/berkan-cetinkaya/simpleform-recaptcha"
	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/widget"
)

var formPage = template.Must(template.New("form").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Form {{.FormID}}</title></head>
<body>
<form id="form-{{.FormID}}" method="post" action="/forms/{{.FormID}}/submit">
<input type="hidden" name="form_id" value="{{.FormID}}">
<div id="errors-{{.FormID}}" tabindex="-1"><span id="error-message-{{.FormID}}" class="error-message{{if .Error}} v-visible{{end}}">{{.Error}}</span></div>
<label for="message-{{.FormID}}">Message</label>
<textarea id="message-{{.FormID}}" name="message"></textarea>
{{.Widget}}
<button type="submit" id="submission-{{.FormID}}">Submit</button>
</form>
{{.Footer}}
</body>
</html>
`))

type formView struct {
	FormID int
	Error  string
	Widget template.HTML
	Footer template.HTML
}

// renderForm serves a host form page with the widget injected. The query
// parameter "error" carries the reason of a previous rejection.
func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request) {
	formID := formIDFromRoute(r)
	s, attrs, err := h.provider.ForForm(r.Context(), formID)
	if err != nil {
		h.logger.Error("load form settings failed", "form_id", formID, "error", err, "correlationId", correlationIDFrom(r.Context()))
		http.Error(w, "form settings unavailable", http.StatusServiceUnavailable)
		return
	}

	view := formView{FormID: formID}
	reason := recaptcha.Reason(r.URL.Query().Get("error"))
	switch reason {
	case recaptcha.ReasonUnverified, recaptcha.ReasonExpired, recaptcha.ReasonInvalid:
		view.Error = recaptcha.Reject(reason).Message(s.Messages)
	}

	if s.Protects(attrs) {
		frag, err := widget.Render(formID, s, widget.Options{Unverified: reason == recaptcha.ReasonUnverified})
		if err != nil {
			h.logger.Error("render widget failed", "form_id", formID, "error", err)
			http.Error(w, "render failed", http.StatusInternalServerError)
			return
		}
		view.Widget = frag.Markup
		view.Footer = widget.Footer(s, frag)
	}

	w.Header().Set(headerContentType, contentTypeHTML)
	if err := formPage.Execute(w, view); err != nil {
		h.logger.Warn("write form page failed", "form_id", formID, "error", err)
	}
}

// acceptSubmission is the default handler for submissions that passed.
func (h *Handler) acceptSubmission(w http.ResponseWriter, r *http.Request) {
	formID := formIDFromRoute(r)
	body := map[string]any{
		"success": true,
		"form_id": formID,
	}
	if d, ok := recaptcha.DecisionFromContext(r.Context()); ok && d.Result != nil && d.Result.Score != nil {
		body["score"] = *d.Result.Score
	}
	h.logger.Info("submission accepted", "form_id", formID, "correlationId", correlationIDFrom(r.Context()))
	h.writeJSON(w, http.StatusOK, body)
}
