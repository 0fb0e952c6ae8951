package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewBuildsLogger(t *testing.T) {
	logger, err := New(Config{Level: "warn", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))
}

func TestNewForFallsBack(t *testing.T) {
	assert.NotNil(t, NewFor("loud", false))
	assert.NotNil(t, NewFor("", true))
	assert.NotNil(t, NewNop())
}
