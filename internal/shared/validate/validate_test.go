package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		required bool
		wantErr  bool
	}{
		{"optional empty", "", false, false},
		{"required empty", "", true, true},
		{"within limits", "Design notes", true, false},
		{"too long", strings.Repeat("é", 11), false, true},
		{"counts characters not bytes", strings.Repeat("é", 10), false, false},
		{"null byte", "a\x00b", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := String(tt.value, "title", 1, 10, tt.required)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestText(t *testing.T) {
	assert.NoError(t, Text(strings.Repeat("a", MaxTextSize)))
	assert.ErrorIs(t, Text(strings.Repeat("a", MaxTextSize+1)), ErrInvalid)
}

func TestPaths(t *testing.T) {
	assert.NoError(t, Paths(nil, "image_paths"))
	assert.NoError(t, Paths([]string{"/tmp/a.png"}, "image_paths"))
	assert.ErrorIs(t, Paths([]string{""}, "image_paths"), ErrInvalid)

	many := make([]string, MaxImagePaths+1)
	for i := range many {
		many[i] = "/tmp/a.png"
	}
	assert.ErrorIs(t, Paths(many, "image_paths"), ErrInvalid)
}
