package widget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/sequencer"
)

type dispatchButton struct {
	handle    func(*sequencer.Click)
	prevented []bool
}

func (b *dispatchButton) Click() {
	c := &sequencer.Click{}
	b.handle(c)
	b.prevented = append(b.prevented, c.Prevented())
}

type tokenFields struct{ value string }

func (f *tokenFields) SetAll(v string) { f.value = v }

type heldTokens struct {
	requests int
	done     func(string, error)
}

func (h *heldTokens) Fetch(action string, done func(string, error)) {
	h.requests++
	h.done = done
}

// Each step drives sequencer.V3 and names the lines of the browser script
// that perform the same transition.
func TestV3Script_FollowsSequencer(t *testing.T) {
	js, err := V3Script(3, "site")
	require.NoError(t, err)

	loop := sequencer.NewVirtualLoop()
	button := &dispatchButton{}
	fields := &tokenFields{}
	tokens := &heldTokens{}
	m := sequencer.NewV3(loop, button, fields, tokens)
	button.handle = m.HandleClick

	steps := []struct {
		name      string
		act       func()
		state     sequencer.State
		prevented []bool
		field     string
		requests  int
		js        []string
	}{
		{
			name:      "first click is held while a token is requested",
			act:       button.Click,
			state:     sequencer.StateAwaitingToken,
			prevented: []bool{true},
			requests:  1,
			js:        []string{"event.preventDefault();", "requesting = true;", `{action: "submit_form"}`},
		},
		{
			name:      "second click while awaiting does not request again",
			act:       button.Click,
			state:     sequencer.StateAwaitingToken,
			prevented: []bool{true, true},
			requests:  1,
			js:        []string{"if (requesting) { return; }"},
		},
		{
			name: "token arrival fills every field",
			act: func() {
				tokens.done("tok", nil)
				loop.Drain()
			},
			state:     sequencer.StateArmed,
			prevented: []bool{true, true},
			field:     "tok",
			requests:  1,
			js:        []string{"requesting = false;", "token = value;", "generation++;", "fill(value);"},
		},
		{
			name:      "click is re-dispatched after the resubmit delay and passes",
			act:       func() { loop.Advance(sequencer.ResubmitDelay) },
			state:     sequencer.StateExpiredPendingRefresh,
			prevented: []bool{true, true, false},
			field:     "tok",
			requests:  1,
			js:        []string{"setTimeout(function() { button.click(); }, 1000);", "if (token) {", "var held = generation;", "return true;"},
		},
		{
			name:      "token lifetime clears the fields",
			act:       func() { loop.Advance(sequencer.TokenLifetime) },
			state:     sequencer.StateIdle,
			prevented: []bool{true, true, false},
			requests:  1,
			js:        []string{"if (held !== generation) { return; }", "token = null;", `fill("");`, "}, 120000);"},
		},
	}

	for _, st := range steps {
		st.act()
		assert.Equal(t, st.state, m.State(), st.name)
		assert.Equal(t, st.prevented, button.prevented, st.name)
		assert.Equal(t, st.field, fields.value, st.name)
		assert.Equal(t, st.requests, tokens.requests, st.name)
		for _, line := range st.js {
			assert.Contains(t, js, line, st.name)
		}
	}
}

func TestScripts_UseSequencerTimings(t *testing.T) {
	d := newScriptData(1)
	assert.Equal(t, sequencer.Action, d.Action)
	assert.Equal(t, sequencer.ExpiredMarker, d.ExpiredMarker)
	assert.Equal(t, sequencer.ResubmitDelay.Milliseconds(), d.ResubmitMillis)
	assert.Equal(t, sequencer.TokenLifetime.Milliseconds(), d.ExpiryMillis)
	assert.Equal(t, sequencer.FocusDelay.Milliseconds(), d.FocusMillis)
}
