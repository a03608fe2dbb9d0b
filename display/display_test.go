package display

import (
	"testing"

	"github.com/daedaluz/m8hl/command"
)

func TestDrawRectangleClipsOutOfBounds(t *testing.T) {
	c := NewCanvas()
	c.DrawRectangle(-1000000, -1000000, 2000000, 2000000, command.Color{R: 1, G: 2, B: 3})
	for _, px := range c.pixels {
		if px != 0 && px != pack(command.Color{R: 1, G: 2, B: 3}) {
			t.Fatalf("unexpected pixel value %x", px)
		}
	}
	// every in-bounds pixel should have been painted
	if i, ok := c.index(0, 0); !ok || c.pixels[i] == 0 {
		t.Fatal("expected origin pixel to be painted")
	}
	if i, ok := c.index(Width-1, Height-1); !ok || c.pixels[i] == 0 {
		t.Fatal("expected bottom-right pixel to be painted")
	}
}

func TestDrawRectangleSinglePixel(t *testing.T) {
	c := NewCanvas()
	c.DrawRectangle(10, 5, 1, 1, command.Color{R: 0x80, G: 0x40, B: 0x20})
	i, _ := c.index(10, 5)
	if c.pixels[i] != 0xFF804020 {
		t.Fatalf("got %x, want 0xFF804020", c.pixels[i])
	}
}

func TestDrawWaveformPlotsRightJustified(t *testing.T) {
	c := NewCanvas()
	c.DrawWaveform(command.Color{G: 0xFF}, []byte{0x10, 0x20, 0x30})
	want := pack(command.Color{G: 0xFF})
	for i, y := range []int{0x10, 0x20, 0x30} {
		x := Width - 3 + i
		idx, _ := c.index(x, y)
		if c.pixels[idx] != want {
			t.Fatalf("sample %d not plotted at (%d,%d)", i, x, y)
		}
	}
}

func TestDrawCharacterInvokesFontRenderer(t *testing.T) {
	c := NewCanvas()
	c.DrawCharacter(0x41, 0, 0, command.Color{R: 0xFF}, command.Color{})
	i, _ := c.index(0, 0)
	if c.pixels[i] == 0 {
		t.Fatal("expected glyph stub to paint something")
	}
}

func TestSetFontModeRecorded(t *testing.T) {
	c := NewCanvas()
	c.SetFontMode(2)
	if c.FontMode() != 2 {
		t.Fatalf("got font mode %d, want 2", c.FontMode())
	}
}

func TestClearZeroesBuffer(t *testing.T) {
	c := NewCanvas()
	c.DrawRectangle(0, 0, Width, Height, command.Color{R: 1})
	c.Clear()
	for _, px := range c.pixels {
		if px != 0 {
			t.Fatal("expected all pixels cleared")
		}
	}
}
