// Package delivery encodes text for injection into an interactive shell and
// sequences the write that submits it.
//
// Single-line text is sent as text followed by a carriage return in one
// write. Multi-line text is wrapped in bracketed-paste markers so the
// receiving program treats it as one pasted block:
//
//	ESC[200~ <text> ESC[201~
//
// The carriage return that submits a pasted block goes out as a second,
// separate write after a delay chosen by a DelayPolicy. The default policy
// waits 300ms for text longer than 500 characters and 50ms otherwise. The
// numbers were tuned against a line-oriented CLI assistant and are not a
// protocol guarantee, which is why the policy is an interface.
package delivery
