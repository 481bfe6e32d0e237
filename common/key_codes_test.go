package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyNames(t *testing.T) {
	tests := map[Key]string{
		KeyEscape:    "escape",
		KeyLeft:      "left",
		KeyUp:        "up",
		KeyF1 + 4:    "f5",
		KeyRune('w'): "W",
		KeyRune('7'): "7",
		KeyUnknown:   "Key(-1)",
	}
	for k, want := range tests {
		assert.Equal(t, want, k.String())
	}
	assert.Equal(t, KeyUnknown, KeyRune('#'))
}
