// Package command decodes M8 display-protocol packets (SLIP payloads)
// into drawing calls against a Canvas.
package command

// Opcode identifies the first byte of a decoded packet.
type Opcode byte

const (
	OpDrawRectangle    Opcode = 0xFE
	OpDrawCharacter    Opcode = 0xFD
	OpDrawOscilloscope Opcode = 0xFC
	OpJoypadState      Opcode = 0xFB
	OpSystemInfo       Opcode = 0xFF
)

// Color is an 8-bit-per-channel RGB triple as carried on the wire.
type Color struct {
	R, G, B byte
}

// Canvas is the drawing surface a Decoder renders into. display.Canvas
// satisfies this; it is kept narrow here so command has no dependency
// on the display package (or on framebuffer/cgo concerns at all).
type Canvas interface {
	DrawRectangle(x, y, w, h int, color Color)
	DrawCharacter(ch byte, x, y int, fg, bg Color)
	DrawWaveform(color Color, samples []byte)
	SetFontMode(mode byte)
}

// Decoder dispatches packets to a Canvas. It keeps the one piece of
// cross-packet state the protocol requires: the sticky rectangle color
// used when a packet omits one.
type Decoder struct {
	canvas    Canvas
	lastColor Color
}

// New returns a Decoder bound to canvas, with the sticky rectangle
// color initialized to opaque white to match the device's observable
// power-on behavior.
func New(canvas Canvas) *Decoder {
	return &Decoder{
		canvas:    canvas,
		lastColor: Color{0xFF, 0xFF, 0xFF},
	}
}

func decodeInt16(data []byte, start int) int {
	return int(data[start]) | (int(data[start+1]) << 8)
}

// Dispatch decodes a single packet and applies its effect to the bound
// Canvas. It never returns an error: malformed or unknown packets are
// silently ignored, matching the protocol's "never block the display
// loop on a bad frame" contract (see Decode for a variant that reports
// whether anything was drawn, useful in tests).
func (d *Decoder) Dispatch(packet []byte) {
	d.Decode(packet)
}

// Decode is Dispatch's testable counterpart: it reports whether the
// packet was recognized and acted upon.
func (d *Decoder) Decode(packet []byte) bool {
	if len(packet) == 0 {
		return false
	}
	switch Opcode(packet[0]) {
	case OpDrawRectangle:
		return d.decodeRectangle(packet)
	case OpDrawCharacter:
		return d.decodeCharacter(packet)
	case OpDrawOscilloscope:
		return d.decodeOscilloscope(packet)
	case OpJoypadState:
		// Accepted but unused by this core: the device emits its own
		// controller echo, which the host does not need to act on.
		return len(packet) == 3
	case OpSystemInfo:
		return d.decodeSystemInfo(packet)
	default:
		return false
	}
}

func (d *Decoder) decodeRectangle(p []byte) bool {
	switch len(p) {
	case 5:
		x := decodeInt16(p, 1)
		y := decodeInt16(p, 3)
		d.canvas.DrawRectangle(x, y, 1, 1, d.lastColor)
	case 8:
		x := decodeInt16(p, 1)
		y := decodeInt16(p, 3)
		c := Color{p[5], p[6], p[7]}
		d.lastColor = c
		d.canvas.DrawRectangle(x, y, 1, 1, c)
	case 9:
		x := decodeInt16(p, 1)
		y := decodeInt16(p, 3)
		w := decodeInt16(p, 5)
		h := decodeInt16(p, 7)
		d.canvas.DrawRectangle(x, y, w, h, d.lastColor)
	case 12:
		x := decodeInt16(p, 1)
		y := decodeInt16(p, 3)
		w := decodeInt16(p, 5)
		h := decodeInt16(p, 7)
		c := Color{p[9], p[10], p[11]}
		d.lastColor = c
		d.canvas.DrawRectangle(x, y, w, h, c)
	default:
		return false
	}
	return true
}

func (d *Decoder) decodeCharacter(p []byte) bool {
	if len(p) != 12 {
		return false
	}
	ch := p[1]
	x := decodeInt16(p, 2)
	y := decodeInt16(p, 4)
	fg := Color{p[6], p[7], p[8]}
	bg := Color{p[9], p[10], p[11]}
	d.canvas.DrawCharacter(ch, x, y, fg, bg)
	return true
}

const maxWaveformSamples = 480

func (d *Decoder) decodeOscilloscope(p []byte) bool {
	if len(p) < 4 || len(p) > 4+maxWaveformSamples {
		return false
	}
	c := Color{p[1], p[2], p[3]}
	samples := p[4:]
	d.canvas.DrawWaveform(c, samples)
	return true
}

func (d *Decoder) decodeSystemInfo(p []byte) bool {
	if len(p) != 6 {
		return false
	}
	d.canvas.SetFontMode(p[5])
	return true
}
