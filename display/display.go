// Package display owns the offscreen pixel buffer and the Linux
// framebuffer device it is blitted to.
package display

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/daedaluz/m8hl/command"
)

const (
	Width  = 320
	Height = 240
	bpp    = 32
)

// fbVarScreenInfo mirrors the fields of struct fb_var_screeninfo this
// driver needs to negotiate a 320x240x32bpp mode; unused trailing
// fields of the real kernel struct are represented as raw padding.
type fbVarScreenInfo struct {
	XRes, YRes             uint32
	XResVirtual, YResVirtual uint32
	XOffset, YOffset       uint32
	BitsPerPixel           uint32
	Grayscale              uint32
	RedOffset, RedLength, RedMSBRight       uint32
	GreenOffset, GreenLength, GreenMSBRight uint32
	BlueOffset, BlueLength, BlueMSBRight    uint32
	TranspOffset, TranspLength, TranspMSBRight uint32
	NonStd uint32
	_      [256]byte // activate..reserved, unused by this driver
}

const (
	fbioGetVScreenInfo = 0x4600
	fbioPutVScreenInfo = 0x4601
)

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// Canvas is the offscreen 320x240 ARGB drawing surface that the command
// decoder renders into and that RenderFrame blits to the framebuffer.
// It satisfies command.Canvas.
type Canvas struct {
	pixels   [Width * Height]uint32
	fontMode byte
	font     FontRenderer
	fb       *os.File
	fbMap    []byte
}

var _ command.Canvas = (*Canvas)(nil)

// FontRenderer draws a glyph into the canvas. A fixed-size colored box
// stub is supplied by NewCanvas; a real bitmap font collaborator can be
// substituted with SetFontRenderer.
type FontRenderer interface {
	DrawGlyph(c *Canvas, ch byte, x, y int, fg, bg command.Color)
}

// boxFontRenderer is the placeholder glyph renderer: it draws a solid
// foreground-colored box the size of one character cell. A real bitmap
// font table is out of scope (see the Non-goals in the accompanying
// specification); this keeps DrawCharacter total and visibly distinct
// from empty space.
type boxFontRenderer struct {
	CellWidth, CellHeight int
}

func (b boxFontRenderer) DrawGlyph(c *Canvas, ch byte, x, y int, fg, bg command.Color) {
	c.DrawRectangle(x, y, b.CellWidth, b.CellHeight, fg)
}

// NewCanvas returns an empty Canvas with the default placeholder glyph
// renderer installed.
func NewCanvas() *Canvas {
	return &Canvas{font: boxFontRenderer{CellWidth: 8, CellHeight: 8}}
}

// SetFontRenderer overrides the glyph drawing strategy.
func (c *Canvas) SetFontRenderer(f FontRenderer) {
	c.font = f
}

func (c *Canvas) index(x, y int) (int, bool) {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return 0, false
	}
	return y*Width + x, true
}

func pack(color command.Color) uint32 {
	return 0xFF000000 | uint32(color.R)<<16 | uint32(color.G)<<8 | uint32(color.B)
}

// DrawRectangle fills [x, x+w) x [y, y+h), clipping silently to the
// canvas bounds.
func (c *Canvas) DrawRectangle(x, y, w, h int, color command.Color) {
	p := pack(color)
	for row := y; row < y+h; row++ {
		for col := x; col < x+w; col++ {
			if i, ok := c.index(col, row); ok {
				c.pixels[i] = p
			}
		}
	}
}

// DrawCharacter delegates to the installed FontRenderer.
func (c *Canvas) DrawCharacter(ch byte, x, y int, fg, bg command.Color) {
	c.font.DrawGlyph(c, ch, x, y, fg, bg)
}

const waveformSentinel = 0xFF000000

// DrawWaveform clears every row of each column the new samples occupy
// to opaque black, then plots the samples right-justified against the
// canvas edge, one column per sample.
func (c *Canvas) DrawWaveform(color command.Color, samples []byte) {
	n := len(samples)
	if n > Width {
		n = Width
		samples = samples[len(samples)-n:]
	}
	baseX := Width - n
	for col := 0; col < n; col++ {
		x := baseX + col
		for row := 0; row < Height; row++ {
			if i, ok := c.index(x, row); ok {
				c.pixels[i] = waveformSentinel
			}
		}
	}
	p := pack(color)
	for i, sample := range samples {
		x := baseX + i
		y := int(sample)
		if idx, ok := c.index(x, y); ok {
			c.pixels[idx] = p
		}
	}
}

// SetFontMode records mode and passes it on to the installed
// FontRenderer, if it has a SetFontMode(byte) method.
func (c *Canvas) SetFontMode(mode byte) {
	c.fontMode = mode
	if setter, ok := c.font.(interface{ SetFontMode(byte) }); ok {
		setter.SetFontMode(mode)
	}
}

// FontMode reports the font mode most recently selected by a
// system_info packet.
func (c *Canvas) FontMode() byte { return c.fontMode }

// Clear zeros the entire canvas.
func (c *Canvas) Clear() {
	for i := range c.pixels {
		c.pixels[i] = 0
	}
}

// Open maps the framebuffer device at path (e.g. /dev/fb0) and
// negotiates 320x240x32bpp.
func (c *Canvas) Open(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("display: open %s: %w", path, err)
	}
	var info fbVarScreenInfo
	if err := ioctl(int(f.Fd()), fbioGetVScreenInfo, unsafe.Pointer(&info)); err != nil {
		f.Close()
		return fmt.Errorf("display: FBIOGET_VSCREENINFO: %w", err)
	}
	info.XRes, info.YRes = Width, Height
	info.XResVirtual, info.YResVirtual = Width, Height
	info.BitsPerPixel = bpp
	if err := ioctl(int(f.Fd()), fbioPutVScreenInfo, unsafe.Pointer(&info)); err != nil {
		f.Close()
		return fmt.Errorf("display: FBIOPUT_VSCREENINFO: %w", err)
	}
	size := Width * Height * (bpp / 8)
	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return fmt.Errorf("display: mmap: %w", err)
	}
	c.fb = f
	c.fbMap = mem
	return nil
}

// RenderFrame copies the offscreen canvas into the memory-mapped
// framebuffer in one pass.
func (c *Canvas) RenderFrame() {
	if c.fbMap == nil {
		return
	}
	for i, px := range c.pixels {
		off := i * 4
		c.fbMap[off+0] = byte(px)
		c.fbMap[off+1] = byte(px >> 8)
		c.fbMap[off+2] = byte(px >> 16)
		c.fbMap[off+3] = byte(px >> 24)
	}
}

// Close releases the framebuffer mapping and device handle.
func (c *Canvas) Close() error {
	var err error
	if c.fbMap != nil {
		err = unix.Munmap(c.fbMap)
		c.fbMap = nil
	}
	if c.fb != nil {
		if cerr := c.fb.Close(); err == nil {
			err = cerr
		}
		c.fb = nil
	}
	return err
}
