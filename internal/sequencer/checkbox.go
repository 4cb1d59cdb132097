package sequencer

import (
	"log/slog"

	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/settings"
)

// ErrorRegion is the form's inline error message and its summary.
type ErrorRegion interface {
	Visible() bool
	Text() string
	Show(message string)
	Hide()
	FocusSummary()
}

// Form reports whether the host already ran client-side validation.
type Form interface {
	Validated() bool
}

// Checkbox tracks the v2 checkbox widget. The click itself is never held;
// the server sees the marker field instead.
type Checkbox struct {
	loop   Loop
	button Button
	marker Field
	errs   ErrorRegion
	form   Form
	msgs   settings.Messages
	logger *slog.Logger

	state State
}

// NewCheckbox builds an idle checkbox machine. msgs supplies the texts the
// error region is compared against and shown with.
func NewCheckbox(loop Loop, button Button, marker Field, errs ErrorRegion, form Form, msgs settings.Messages, opts ...Option) *Checkbox {
	o := buildOptions(opts)
	return &Checkbox{
		loop:   loop,
		button: button,
		marker: marker,
		errs:   errs,
		form:   form,
		msgs:   msgs,
		logger: o.logger,
		state:  StateIdle,
	}
}

// State returns the current state.
func (m *Checkbox) State() State { return m.state }

// OnSuccess is the widget's data-callback.
func (m *Checkbox) OnSuccess() {
	m.state = StateVerified
	m.marker.Set("")

	if !m.errs.Visible() {
		return
	}
	text := m.errs.Text()
	if text != m.msgs.Expired && text != m.msgs.Unverified {
		return
	}
	m.errs.Hide()
	if m.form.Validated() {
		m.loop.Post(m.button.Click)
	}
}

// OnExpired is the widget's data-expired-callback.
func (m *Checkbox) OnExpired() {
	m.state = StateExpired
	m.marker.Set(ExpiredMarker)
	m.logger.Debug("recaptcha checkbox response expired")

	if m.errs.Visible() {
		return
	}
	m.errs.Show(m.msgs.Expired)
	m.loop.AfterFunc(FocusDelay, func() {
		if m.state == StateExpired && m.errs.Visible() {
			m.errs.FocusSummary()
		}
	})
}
