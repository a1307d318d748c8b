// Package input drains SDL2 events for the viewer. Only quit and resize
// are handled.
package input

import (
	"github.com/veandco/go-sdl2/sdl"
)

// Input holds the window events of the last Update.
type Input struct {
	Quit bool

	// Resized is set when the window changed size this frame.
	Resized       bool
	Width, Height int
}

// New creates an input handler.
func New() *Input {
	return &Input{}
}

// Update polls SDL events. It reports whether the viewer should quit.
func (i *Input) Update() bool {
	i.Resized = false

	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			i.Quit = true

		case *sdl.WindowEvent:
			if e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
				i.Resized = true
				i.Width, i.Height = int(e.Data1), int(e.Data2)
			}

		case *sdl.KeyboardEvent:
			if e.Type == sdl.KEYDOWN && e.Keysym.Scancode == sdl.SCANCODE_ESCAPE {
				i.Quit = true
			}
		}
	}
	return i.Quit
}
