package sequencer

import "log/slog"

// InvisibleWidget is the rendered invisible widget. Execute starts a
// challenge; the widget later reports through OnToken or OnExpired.
type InvisibleWidget interface {
	Execute()
	Response() string
}

// Invisible runs the v2 invisible challenge on the first click and lets
// clicks through while a token is held.
type Invisible struct {
	loop   Loop
	button Button
	widget InvisibleWidget
	logger *slog.Logger

	state State
	token string
}

// NewInvisible builds an idle invisible machine.
func NewInvisible(loop Loop, button Button, widget InvisibleWidget, opts ...Option) *Invisible {
	o := buildOptions(opts)
	return &Invisible{
		loop:   loop,
		button: button,
		widget: widget,
		logger: o.logger,
		state:  StateIdle,
	}
}

// State returns the current state.
func (m *Invisible) State() State { return m.state }

// Token returns the held token.
func (m *Invisible) Token() string { return m.token }

// HandleClick is the submit button's click handler.
func (m *Invisible) HandleClick(c *Click) {
	if m.token != "" {
		return
	}
	c.PreventDefault()
	m.state = StatePending
	m.widget.Execute()
}

// OnToken is the widget's data-callback.
func (m *Invisible) OnToken() {
	token := m.widget.Response()
	if token == "" {
		m.logger.Warn("recaptcha widget reported an empty response")
		m.state = StateIdle
		return
	}
	m.token = token
	m.state = StateVerified
	m.loop.AfterFunc(ResubmitDelay, m.button.Click)
}

// OnExpired is the widget's data-expired-callback. The next click starts over.
func (m *Invisible) OnExpired() {
	m.token = ""
	m.state = StateExpired
}
