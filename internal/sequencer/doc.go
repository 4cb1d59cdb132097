// Package sequencer holds the client-side challenge state machines, one per
// reCAPTCHA variant.
//
// A machine decides what a submit click does: either the click is held while
// a token is obtained and later re-dispatched, or it passes through untouched.
// Machines keep no locks; every method must run on the goroutine of the Loop
// they were built with. Collaborators (the submit button, hidden fields, the
// widget API) are interfaces so the same machines drive the generated browser
// script's tests and server-side simulation.
package sequencer
