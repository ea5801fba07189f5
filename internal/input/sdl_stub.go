//go:build !cgo

package input

import "errors"

// ErrNoSDL is returned when the binary was built without cgo.
var ErrNoSDL = errors.New("sdl: controller support requires a cgo build")

func SDLOpener(float64) Opener {
	return func() (Source, error) { return nil, ErrNoSDL }
}
