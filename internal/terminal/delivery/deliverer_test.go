package delivery

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scheduled struct {
	delay time.Duration
	text  string
	done  func(bool)
}

type recordingTarget struct {
	mu        sync.Mutex
	submitted []string
	scheduled []scheduled
	cancelled int
}

func (r *recordingTarget) Submit(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted = append(r.submitted, text)
}

func (r *recordingTarget) Schedule(delay time.Duration, text string, done func(bool)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = append(r.scheduled, scheduled{delay: delay, text: text, done: done})
	return func() {
		r.mu.Lock()
		r.cancelled++
		r.mu.Unlock()
	}
}

func TestDeliverSingleLine(t *testing.T) {
	target := &recordingTarget{}
	var delivered *bool

	res, err := NewDeliverer(nil, nil).Deliver(target, "explain this", func(ok bool) { delivered = &ok })
	require.NoError(t, err)

	assert.Equal(t, []string{"explain this\r"}, target.submitted)
	assert.Empty(t, target.scheduled)
	assert.False(t, res.Multiline)
	require.NotNil(t, delivered)
	assert.True(t, *delivered)
}

func TestDeliverMultiLineSchedulesSubmit(t *testing.T) {
	target := &recordingTarget{}
	calls := 0

	res, err := NewDeliverer(nil, nil).Deliver(target, "title\nbody", func(bool) { calls++ })
	require.NoError(t, err)

	assert.Equal(t, []string{"\x1b[200~title\nbody\x1b[201~"}, target.submitted)
	require.Len(t, target.scheduled, 1)
	assert.Equal(t, "\r", target.scheduled[0].text)
	assert.Equal(t, DefaultSmallDelay, target.scheduled[0].delay)
	assert.Equal(t, DefaultSmallDelay, res.SubmitDelay)
	assert.True(t, res.Multiline)

	// completion is reported by the target, not by Deliver
	assert.Equal(t, 0, calls)
	target.scheduled[0].done(true)
	assert.Equal(t, 1, calls)

	res.Cancel()
	assert.Equal(t, 1, target.cancelled)
}

func TestDeliverLargeBlockUsesLargeDelay(t *testing.T) {
	target := &recordingTarget{}
	text := "header\n" + strings.Repeat("x", 600)

	res, err := NewDeliverer(DefaultPolicy(), nil).Deliver(target, text, nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultLargeDelay, res.SubmitDelay)
	assert.Equal(t, DefaultLargeDelay, target.scheduled[0].delay)
}

func TestDeliverRejectsEmptyText(t *testing.T) {
	target := &recordingTarget{}

	for _, text := range []string{"", "   ", "\n\n"} {
		_, err := NewDeliverer(nil, nil).Deliver(target, text, nil)
		assert.ErrorIs(t, err, ErrEmptyText)
	}
	assert.Empty(t, target.submitted)
	assert.Empty(t, target.scheduled)
}

func TestDeliverUsesCustomPolicy(t *testing.T) {
	target := &recordingTarget{}

	_, err := NewDeliverer(FixedDelay(time.Second), nil).Deliver(target, "a\nb", nil)
	require.NoError(t, err)

	assert.Equal(t, time.Second, target.scheduled[0].delay)
}
