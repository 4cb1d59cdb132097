package sequencer

import "log/slog"

// TokenSource asks the v3 API for a token. Fetch returns at once; done is
// called later, from any goroutine, with the token or an error.
type TokenSource interface {
	Fetch(action string, done func(token string, err error))
}

// V3 holds the first click while a score token is fetched, then lets clicks
// through until the token is invalidated.
type V3 struct {
	loop   Loop
	button Button
	fields Fields
	tokens TokenSource
	logger *slog.Logger

	state      State
	token      string
	generation uint64
}

// NewV3 builds an idle v3 machine.
func NewV3(loop Loop, button Button, fields Fields, tokens TokenSource, opts ...Option) *V3 {
	o := buildOptions(opts)
	return &V3{
		loop:   loop,
		button: button,
		fields: fields,
		tokens: tokens,
		logger: o.logger,
		state:  StateIdle,
	}
}

// State returns the current state.
func (m *V3) State() State { return m.state }

// Token returns the held token, empty when none is held.
func (m *V3) Token() string { return m.token }

// HandleClick is the submit button's click handler.
func (m *V3) HandleClick(c *Click) {
	switch {
	case m.token != "":
		m.state = StateExpiredPendingRefresh
		gen := m.generation
		m.loop.AfterFunc(TokenLifetime, func() { m.invalidate(gen) })
	case m.state == StateAwaitingToken:
		// A request is already out; its arrival re-dispatches the click.
		c.PreventDefault()
	default:
		c.PreventDefault()
		m.state = StateAwaitingToken
		m.tokens.Fetch(Action, func(token string, err error) {
			m.loop.Post(func() { m.receive(token, err) })
		})
	}
}

func (m *V3) receive(token string, err error) {
	if m.state != StateAwaitingToken {
		return
	}
	if err != nil || token == "" {
		m.logger.Warn("recaptcha token request failed", "action", Action, "error", err)
		m.state = StateIdle
		return
	}

	m.token = token
	m.generation++
	m.fields.SetAll(token)
	m.state = StateArmed
	m.loop.AfterFunc(ResubmitDelay, m.button.Click)
}

func (m *V3) invalidate(gen uint64) {
	if gen != m.generation {
		return
	}
	m.token = ""
	m.generation++
	m.fields.SetAll("")
	m.state = StateIdle
}
