package widget

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/sequencer"
	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/settings"
)

// The scripts mirror the sequencer package: a submit click without a token
// is held, the token is fetched, and the click is re-dispatched one second
// after it arrives. Values inside string literals go through js.

// v3Script is sequencer.V3 in the browser. The variables map onto its state:
//
//	token == null && !requesting   StateIdle
//	requesting                     StateAwaitingToken
//	token != null                  StateArmed, then StateExpiredPendingRefresh
//	                               once a click has gone through
//	generation                     V3.generation; a stale expiry timer is a no-op
//
// TestV3Script_FollowsSequencer walks both through the same transitions.
var v3Script = template.Must(template.New("v3").Parse(`(function() {
	var button = document.getElementById("submission-{{.FormID}}");
	if (button == null) { return; }
	var fields = document.getElementsByName("g-recaptcha-response");
	var token = null, requesting = false, generation = 0;
	var fill = function(value) { fields.forEach(function(f) { f.value = value; }); };
	button.addEventListener("click", function(event) {
		if (token) {
			var held = generation;
			setTimeout(function() {
				if (held !== generation) { return; }
				token = null;
				generation++;
				fill("");
			}, {{.ExpiryMillis}});
			return true;
		}
		event.preventDefault();
		if (requesting) { return; }
		requesting = true;
		grecaptcha.ready(function() {
			grecaptcha.execute("{{js .SiteKey}}", {action: "{{js .Action}}"}).then(function(value) {
				requesting = false;
				token = value;
				generation++;
				fill(value);
				setTimeout(function() { button.click(); }, {{.ResubmitMillis}});
			}, function() { requesting = false; });
		});
	});
})();`))

var invisibleScript = template.Must(template.New("invisible").Parse(`var recaptchaToken_{{.FormID}} = null;
var onSubmit_{{.FormID}} = function() {
	recaptchaToken_{{.FormID}} = grecaptcha.getResponse();
	setTimeout(function() { document.getElementById("submission-{{.FormID}}").click(); }, {{.ResubmitMillis}});
};
var onExpire_{{.FormID}} = function() { recaptchaToken_{{.FormID}} = null; };
(function() {
	var button = document.getElementById("submission-{{.FormID}}");
	if (button == null) { return; }
	button.addEventListener("click", function(event) {
		if (recaptchaToken_{{.FormID}}) { return true; }
		event.preventDefault();
		grecaptcha.execute();
	});
})();`))

var checkboxScript = template.Must(template.New("checkbox").Parse(`var successCallback_{{.FormID}} = function() {
	var marker = document.getElementById("recaptcha-{{.FormID}}-response");
	if (marker != null) { marker.value = ""; }
	var error = document.getElementById("error-message-{{.FormID}}");
	if (error == null || !error.classList.contains("v-visible")) { return; }
	var text = error.innerText.trim();
	if (text == "{{js .Expired}}" || text == "{{js .Unverified}}") {
		error.classList.remove("v-visible");
		var form = document.getElementById("form-{{.FormID}}");
		if (form != null && form.classList.contains("was-validated")) {
			document.getElementById("submission-{{.FormID}}").click();
		}
	}
};
var expireCallback_{{.FormID}} = function() {
	var marker = document.getElementById("recaptcha-{{.FormID}}-response");
	if (marker != null) { marker.value = "{{js .ExpiredMarker}}"; }
	var error = document.getElementById("error-message-{{.FormID}}");
	if (error == null || error.classList.contains("v-visible")) { return; }
	error.classList.add("v-visible");
	error.innerText = "{{js .Expired}}";
	setTimeout(function() {
		var summary = document.getElementById("errors-{{.FormID}}");
		if (summary != null) { summary.focus(); }
	}, {{.FocusMillis}});
};`))

type scriptData struct {
	FormID         int
	SiteKey        string
	Action         string
	Expired        string
	Unverified     string
	ExpiredMarker  string
	ResubmitMillis int64
	ExpiryMillis   int64
	FocusMillis    int64
}

func newScriptData(formID int) scriptData {
	return scriptData{
		FormID:         formID,
		Action:         sequencer.Action,
		ResubmitMillis: sequencer.ResubmitDelay.Milliseconds(),
		ExpiryMillis:   sequencer.TokenLifetime.Milliseconds(),
		FocusMillis:    sequencer.FocusDelay.Milliseconds(),
		ExpiredMarker:  sequencer.ExpiredMarker,
	}
}

// V3Script is the inline script for a v3 form.
func V3Script(formID int, siteKey string) (string, error) {
	d := newScriptData(formID)
	d.SiteKey = siteKey
	return run(v3Script, d)
}

// InvisibleScript defines the onSubmit_/onExpire_ callbacks named in the
// invisible widget markup.
func InvisibleScript(formID int) (string, error) {
	return run(invisibleScript, newScriptData(formID))
}

// CheckboxScript defines the successCallback_/expireCallback_ callbacks named
// in the checkbox widget markup.
func CheckboxScript(formID int, msgs settings.Messages) (string, error) {
	d := newScriptData(formID)
	d.Expired = msgs.Expired
	d.Unverified = msgs.Unverified
	return run(checkboxScript, d)
}

func run(t *template.Template, d scriptData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render %s script: %w", t.Name(), err)
	}
	return buf.String(), nil
}
