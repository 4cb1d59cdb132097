package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invisiblePage struct {
	loop    *VirtualLoop
	button  *button
	widget  *widget
	machine *Invisible
}

func newInvisiblePage() *invisiblePage {
	p := &invisiblePage{
		loop:   NewVirtualLoop(),
		button: &button{},
		widget: &widget{},
	}
	p.machine = NewInvisible(p.loop, p.button, p.widget)
	p.button.handle = p.machine.HandleClick
	return p
}

func TestInvisible_ClickExecutesThenResubmits(t *testing.T) {
	p := newInvisiblePage()

	p.button.Click()
	assert.Equal(t, 1, p.widget.executes)
	assert.Equal(t, 0, p.button.submits)
	assert.Equal(t, StatePending, p.machine.State())

	p.widget.response = "inv-token"
	p.machine.OnToken()
	assert.Equal(t, StateVerified, p.machine.State())
	assert.Equal(t, "inv-token", p.machine.Token())

	p.loop.Advance(ResubmitDelay)
	assert.Equal(t, 1, p.button.submits)
	assert.Equal(t, 1, p.widget.executes)
}

func TestInvisible_ExpiryRestartsSequence(t *testing.T) {
	p := newInvisiblePage()

	p.button.Click()
	p.widget.response = "inv-token"
	p.machine.OnToken()
	p.loop.Advance(ResubmitDelay)
	require.Equal(t, 1, p.button.submits)

	p.machine.OnExpired()
	assert.Equal(t, StateExpired, p.machine.State())
	assert.Empty(t, p.machine.Token())
	assert.Equal(t, 0, p.loop.Pending())

	p.button.Click()
	assert.Equal(t, 2, p.widget.executes)
	assert.Equal(t, 1, p.button.submits)
}

func TestInvisible_EmptyResponseDoesNotResubmit(t *testing.T) {
	p := newInvisiblePage()

	p.button.Click()
	p.machine.OnToken()
	assert.Equal(t, StateIdle, p.machine.State())
	assert.Equal(t, 0, p.loop.Pending())
}
