package sequencer

import "errors"

// button re-dispatches clicks through handle and counts the ones that submit.
type button struct {
	handle  func(*Click)
	clicks  int
	submits int
}

func (b *button) Click() {
	b.clicks++
	c := &Click{}
	b.handle(c)
	if !c.Prevented() {
		b.submits++
	}
}

type fields struct {
	values []string
}

func newFields(n int) *fields { return &fields{values: make([]string, n)} }

func (f *fields) SetAll(value string) {
	for i := range f.values {
		f.values[i] = value
	}
}

type field struct {
	value string
}

func (f *field) Set(value string) { f.value = value }

// tokens records Fetch calls and completes them on demand.
type tokens struct {
	calls   int
	actions []string
	pending []func(string, error)
}

func (t *tokens) Fetch(action string, done func(string, error)) {
	t.calls++
	t.actions = append(t.actions, action)
	t.pending = append(t.pending, done)
}

func (t *tokens) resolve(token string) {
	done := t.pending[0]
	t.pending = t.pending[1:]
	done(token, nil)
}

func (t *tokens) fail() {
	done := t.pending[0]
	t.pending = t.pending[1:]
	done("", errors.New("network down"))
}

type widget struct {
	executes int
	response string
}

func (w *widget) Execute()         { w.executes++ }
func (w *widget) Response() string { return w.response }

type errorRegion struct {
	visible bool
	text    string
	focused int
}

func (e *errorRegion) Visible() bool { return e.visible }
func (e *errorRegion) Text() string  { return e.text }
func (e *errorRegion) Show(message string) {
	e.visible = true
	e.text = message
}
func (e *errorRegion) Hide()         { e.visible = false }
func (e *errorRegion) FocusSummary() { e.focused++ }

type form struct {
	validated bool
}

func (f form) Validated() bool { return f.validated }
