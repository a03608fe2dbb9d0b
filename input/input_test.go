package input

import "testing"

func newTestAdapter() *Adapter {
	return &Adapter{keymap: DefaultKeymap()}
}

func TestDirectionKeysSetAndClearBits(t *testing.T) {
	a := newTestAdapter()
	a.apply(KeyUp, true)
	if a.Mask() != BitUp {
		t.Fatalf("got mask %08b, want BitUp set", a.Mask())
	}
	a.apply(KeyUp, false)
	if a.Mask() != 0 {
		t.Fatalf("got mask %08b, want 0 after release", a.Mask())
	}
}

func TestPrimaryAndAltKeySetSameBit(t *testing.T) {
	a := newTestAdapter()
	a.apply(KeyLeftShift, true)
	if a.Mask() != BitSelect {
		t.Fatalf("primary select key did not set BitSelect: %08b", a.Mask())
	}
	a.apply(KeyLeftShift, false)
	a.apply(KeyZ, true)
	if a.Mask() != BitSelect {
		t.Fatalf("alt select key did not set BitSelect: %08b", a.Mask())
	}
}

func TestChordedPressesAccumulate(t *testing.T) {
	a := newTestAdapter()
	a.apply(KeyUp, true)
	a.apply(KeyLeft, true)
	want := BitUp | BitLeft
	if a.Mask() != want {
		t.Fatalf("got %08b, want %08b", a.Mask(), want)
	}
}

func TestEscSetsQuit(t *testing.T) {
	a := newTestAdapter()
	if a.Quit() {
		t.Fatal("quit should start false")
	}
	a.apply(KeyEsc, true)
	if !a.Quit() {
		t.Fatal("expected quit after ESC press")
	}
}

func TestRepeatedPressIsIdempotent(t *testing.T) {
	a := newTestAdapter()
	// apply() itself has no concept of "repeat" (that filtering happens
	// in Poll's event-type check); verify apply is idempotent instead,
	// which is the property repeat-filtering depends on.
	a.apply(KeyUp, true)
	a.apply(KeyUp, true)
	if a.Mask() != BitUp {
		t.Fatalf("got %08b, want BitUp", a.Mask())
	}
}

func TestJazzAdjustersTrackOffsets(t *testing.T) {
	a := newTestAdapter()
	a.apply(KeyKPAsterisk, true)
	a.apply(KeyKPAsterisk, true)
	a.apply(KeyKPSlash, true)
	if a.OctaveOffset() != 1 {
		t.Fatalf("got octave offset %d, want 1", a.OctaveOffset())
	}
	a.apply(KeyKPPlus, true)
	if a.VelocityOffset() != 1 {
		t.Fatalf("got velocity offset %d, want 1", a.VelocityOffset())
	}
}

func TestDecodeEventLittleEndian(t *testing.T) {
	buf := make([]byte, rawEventWireSize)
	// type=EV_KEY(1) code=103(KEY_UP) value=1(pressed)
	buf[16], buf[17] = 0x01, 0x00
	buf[18], buf[19] = 103, 0
	buf[20], buf[21], buf[22], buf[23] = 1, 0, 0, 0
	ev := decodeEvent(buf)
	if ev.Type != evKey || ev.Code != KeyUp || ev.Value != keyPressed {
		t.Fatalf("unexpected decode: %+v", ev)
	}
}
