package common

import "fmt"

// Key is a keyboard key. Values match GLFW key codes, which use ASCII for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
type Key int32

const (
	KeyUnknown Key = -1
	KeySpace   Key = 32
	KeyEscape  Key = 256
	KeyEnter   Key = 257
	KeyTab     Key = 258
	KeyRight   Key = 262
	KeyLeft    Key = 263
	KeyDown    Key = 264
	KeyUp      Key = 265
	KeyF1      Key = 290
	KeyF12     Key = 301
)

// KeyRune returns the Key of a printable ASCII letter or digit. Lower case letters map to the
// same key as upper case ones.
func KeyRune(r rune) Key {
	switch {
	case r >= 'a' && r <= 'z':
		return Key(r - 'a' + 'A')
	case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return Key(r)
	default:
		return KeyUnknown
	}
}

func (k Key) String() string {
	switch {
	case k == KeySpace:
		return "space"
	case k == KeyEscape:
		return "escape"
	case k == KeyEnter:
		return "enter"
	case k == KeyTab:
		return "tab"
	case k >= KeyRight && k <= KeyUp:
		return [...]string{"right", "left", "down", "up"}[k-KeyRight]
	case k >= KeyF1 && k <= KeyF12:
		return fmt.Sprintf("f%d", k-KeyF1+1)
	case k >= 'A' && k <= 'Z', k >= '0' && k <= '9':
		return string(rune(k))
	default:
		return fmt.Sprintf("Key(%d)", int32(k))
	}
}
