package slip

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		{0x01},
		{0xFE, 0x0A, 0x00, 0x05, 0x00},
		{End, Esc, 0x00, End, Esc},
		bytes.Repeat([]byte{0x42}, 512),
	}
	for _, want := range cases {
		var got []byte
		h := New(make([]byte, 1024), func(packet []byte) {
			got = append([]byte(nil), packet...)
		})
		encoded := Encode(want)
		if err := h.ReadBytes(encoded); err != nil {
			t.Fatalf("ReadBytes: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("round trip mismatch: got %v, want %v", got, want)
		}
	}
}

func TestOverflowDiscardsAndRecovers(t *testing.T) {
	var delivered [][]byte
	h := New(make([]byte, 4), func(packet []byte) {
		delivered = append(delivered, append([]byte(nil), packet...))
	})

	var overflowCount int
	for i := 0; i < 10; i++ {
		if err := h.ReadByte(0x01); err != nil {
			overflowCount++
		}
	}
	if overflowCount == 0 {
		t.Fatal("expected at least one overflow error")
	}

	if err := h.ReadByte(0xAA); err != nil {
		t.Fatalf("unexpected error after overflow recovery: %v", err)
	}
	if err := h.ReadByte(End); err != nil {
		t.Fatalf("unexpected error terminating frame: %v", err)
	}
	if len(delivered) != 1 || !bytes.Equal(delivered[0], []byte{0xAA}) {
		t.Fatalf("expected exactly one delivered frame [0xAA], got %v", delivered)
	}
}

func TestUnknownEscapedByteDiscardsFrame(t *testing.T) {
	var delivered [][]byte
	h := New(make([]byte, 16), func(packet []byte) {
		delivered = append(delivered, append([]byte(nil), packet...))
	})

	if err := h.ReadByte(0x01); err != nil {
		t.Fatal(err)
	}
	if err := h.ReadByte(Esc); err != nil {
		t.Fatal(err)
	}
	if err := h.ReadByte(0x55); err != ErrUnknownEscapedByte {
		t.Fatalf("expected ErrUnknownEscapedByte, got %v", err)
	}

	// framer must still be usable for the next frame
	if err := h.ReadByte(0x02); err != nil {
		t.Fatal(err)
	}
	if err := h.ReadByte(End); err != nil {
		t.Fatal(err)
	}
	if len(delivered) != 1 || !bytes.Equal(delivered[0], []byte{0x02}) {
		t.Fatalf("expected exactly one delivered frame [0x02], got %v", delivered)
	}
}

func TestZeroLengthFramesDelivered(t *testing.T) {
	var sizes []int
	h := New(make([]byte, 16), func(packet []byte) {
		sizes = append(sizes, len(packet))
	})
	if err := h.ReadByte(End); err != nil {
		t.Fatal(err)
	}
	if err := h.ReadByte(End); err != nil {
		t.Fatal(err)
	}
	if len(sizes) != 2 || sizes[0] != 0 || sizes[1] != 0 {
		t.Fatalf("expected two zero-length deliveries, got %v", sizes)
	}
}
