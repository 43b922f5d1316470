// Package progress animates long-running external commands. The animation runs on
// its own goroutine and shares nothing with the work but a stop channel.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Frames is the spinner animation.
var Frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Tick is the animation interval.
const Tick = 100 * time.Millisecond

// Spinner shows a rotating frame next to a message.
type Spinner struct {
	w    io.Writer
	msg  string
	tick time.Duration
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewSpinner creates a spinner writing to w.
func NewSpinner(w io.Writer, msg string) *Spinner {
	return &Spinner{w: w, msg: msg, tick: Tick}
}

// Start begins the animation.
func (s *Spinner) Start() {
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(s.tick)
		defer t.Stop()
		for i := 0; ; i++ {
			fmt.Fprintf(s.w, "\r%s %s", Frames[i%len(Frames)], s.msg)
			select {
			case <-s.stop:
				return
			case <-t.C:
			}
		}
	}()
}

// Stop ends the animation and replaces it with a final status line.
func (s *Spinner) Stop(ok bool) {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.stop = nil

	mark := "✓"
	if !ok {
		mark = "✗"
	}
	fmt.Fprintf(s.w, "\r%s %s\n", mark, s.msg)
}

// Spin runs fn on the calling goroutine while a spinner is shown.
func Spin(w io.Writer, msg string, fn func() error) error {
	s := NewSpinner(w, msg)
	s.Start()
	err := fn()
	s.Stop(err == nil)
	return err
}

// Bar renders a percentage bar on a single line.
type Bar struct {
	w     io.Writer
	width int
}

// NewBar creates a bar of width cells.
func NewBar(w io.Writer, width int) *Bar {
	if width <= 0 {
		width = 40
	}
	return &Bar{w: w, width: width}
}

// Render draws the bar at percent (clamped to 0..100) with msg after it.
func (b *Bar) Render(percent int, msg string) {
	fmt.Fprintf(b.w, "\r%s", b.Line(percent, msg))
}

// Line returns the bar as text without writing it.
func (b *Bar) Line(percent int, msg string) string {
	percent = max(0, min(100, percent))
	filled := b.width * percent / 100
	return fmt.Sprintf("[%s%s] %3d%% %-28s",
		strings.Repeat("█", filled), strings.Repeat("░", b.width-filled), percent, msg)
}

// Done finishes the bar at 100%.
func (b *Bar) Done(msg string) {
	b.Render(100, msg)
	fmt.Fprintln(b.w)
}

// Phase is one step of a simulated progress sequence.
type Phase struct {
	Name    string
	Percent int // bar position once the phase starts
}

// FlashPhases mirror what esptool goes through during an upload.
var FlashPhases = []Phase{
	{Name: "Connecting to device", Percent: 5},
	{Name: "Erasing flash", Percent: 20},
	{Name: "Writing firmware", Percent: 40},
	{Name: "Verifying", Percent: 85},
}

// BuildPhases approximate a PlatformIO build.
var BuildPhases = []Phase{
	{Name: "Resolving dependencies", Percent: 5},
	{Name: "Compiling sources", Percent: 20},
	{Name: "Linking firmware", Percent: 80},
	{Name: "Creating image", Percent: 90},
}

// Phases runs fn on the calling goroutine while a bar advances through phases, one
// phase per step. The bar stops short of 100% until fn returns successfully.
func Phases(w io.Writer, phases []Phase, step time.Duration, fn func() error) error {
	bar := NewBar(w, 40)
	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(step)
		defer t.Stop()
		for _, p := range phases {
			bar.Render(p.Percent, p.Name)
			select {
			case <-stop:
				return
			case <-t.C:
			}
		}
	}()

	err := fn()
	close(stop)
	wg.Wait()

	if err != nil {
		fmt.Fprintln(w)
		return err
	}
	bar.Done("Complete")
	return nil
}
