package delivery

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

// Target receives encoded text. A terminal session satisfies it.
type Target interface {
	// Submit places text in the target's outbox.
	Submit(text string)
	// Schedule submits text after delay unless cancelled or the target
	// stops first. done reports whether the text was submitted.
	Schedule(delay time.Duration, text string, done func(delivered bool)) (cancel func())
}

// Result describes one delivery.
type Result struct {
	Wire        string        `json:"-"`
	Multiline   bool          `json:"multiline"`
	Characters  int           `json:"characters"`
	SubmitDelay time.Duration `json:"submit_delay"`
	// Cancel aborts a pending submit keystroke. It is a no-op for
	// single-line deliveries.
	Cancel func() `json:"-"`
}

// Deliverer runs the send-then-submit sequence against a Target.
type Deliverer struct {
	policy DelayPolicy
	logger *zap.Logger
}

// NewDeliverer creates a deliverer. A nil policy uses DefaultPolicy and a
// nil logger discards output.
func NewDeliverer(policy DelayPolicy, logger *zap.Logger) *Deliverer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deliverer{policy: policy, logger: logger}
}

// Policy returns the active delay policy
func (d *Deliverer) Policy() DelayPolicy {
	return d.policy
}

// Deliver writes text to target. Single-line text is submitted in one
// write and done fires immediately. Multi-line text is pasted and the
// submit keystroke is scheduled; done fires when it is written or dropped.
func (d *Deliverer) Deliver(target Target, text string, done func(delivered bool)) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyText
	}
	if done == nil {
		done = func(bool) {}
	}

	wire := Encode(text)
	res := Result{
		Wire:       wire,
		Multiline:  IsMultiline(text),
		Characters: len([]rune(text)),
		Cancel:     func() {},
	}

	target.Submit(wire)

	if !res.Multiline {
		d.logger.Debug("Delivered single-line input", zap.Int("characters", res.Characters))
		done(true)
		return res, nil
	}

	res.SubmitDelay = d.policy.SubmitDelay(text)
	res.Cancel = target.Schedule(res.SubmitDelay, SubmitKey, done)

	d.logger.Debug("Delivered pasted block",
		zap.Int("characters", res.Characters),
		zap.Duration("submit_delay", res.SubmitDelay),
	)
	return res, nil
}
