package console

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/charmbracelet/lipgloss"
)

const (
	// goldenAngle is 360°·(1-1/φ): successive hues land far apart for any
	// actor count.
	goldenAngle = 137.508
	// hueOrigin anchors slot 0 on azure so the classic two-actor run reads
	// blue against pink.
	hueOrigin = 210.0

	actorSaturation = 0.65
	actorLightness  = 0.62
)

// ActorColor returns the terminal color for an actor slot. The same slot
// always maps to the same color.
func ActorColor(index int) lipgloss.Color {
	if index < 0 {
		index = 0
	}
	hue := math.Mod(hueOrigin+float64(index)*goldenAngle, 360)
	r, g, b := hslToRGB(hue/360, actorSaturation, actorLightness)
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r, g, b))
}

// ActorStyle returns the banner style for an actor slot.
func ActorStyle(index int) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ActorColor(index)).Bold(true)
}

// Printer echoes turns to a terminal. It is meant for sequential use by a
// single conversation loop.
type Printer struct {
	out    io.Writer
	actors map[int]lipgloss.Style
	muted  lipgloss.Style
	alert  lipgloss.Style
}

// NewPrinter creates a printer writing to out; nil means stdout.
func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{
		out:    out,
		actors: make(map[int]lipgloss.Style),
		muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3d8")),
		alert:  lipgloss.NewStyle().Foreground(lipgloss.Color("#ff71ce")).Bold(true),
	}
}

// Turn writes one turn: a colored banner in the transcript's turn-header
// shape, then the content verbatim.
func (p *Printer) Turn(actorIndex int, actorName, content string) {
	banner := p.style(actorIndex).Render(fmt.Sprintf("### %s ###", actorName))
	fmt.Fprintf(p.out, "\n%s\n%s\n", banner, content)
}

// Info writes a muted status line.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.out, p.muted.Render(msg))
}

// Error writes an alert line.
func (p *Printer) Error(msg string) {
	fmt.Fprintln(p.out, p.alert.Render(msg))
}

func (p *Printer) style(index int) lipgloss.Style {
	st, ok := p.actors[index]
	if !ok {
		st = ActorStyle(index)
		p.actors[index] = st
	}
	return st
}

// hslToRGB converts h, s, l in [0,1] to 8-bit RGB channels.
func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	if s == 0 {
		v := uint8(math.Round(l * 255))
		return v, v, v
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	r := hueToChannel(p, q, h+1.0/3.0)
	g := hueToChannel(p, q, h)
	b := hueToChannel(p, q, h-1.0/3.0)
	return uint8(math.Round(r * 255)), uint8(math.Round(g * 255)), uint8(math.Round(b * 255))
}

func hueToChannel(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	default:
		return p
	}
}
