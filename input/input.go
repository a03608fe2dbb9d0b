// Package input discovers a keyboard-capable evdev device, translates
// key events into M8 controller-bitmask changes, and reports the
// escape key as a quit signal.
package input

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Controller bitmask bits, as transmitted to the device over the
// serial link's 'C' message.
const (
	BitEdit byte = 1 << iota
	BitOpt
	BitRight
	BitStart
	BitSelect
	BitDown
	BitUp
	BitLeft
)

const (
	evKey      = 0x01
	evSyn      = 0x00
	keyPressed = 1
	keyRepeat  = 2

	eviocgbit0 = 0x80044520 // EVIOCGBIT(0, len) with len baked for a 4-byte bitmap probe
)

// Linux input-event-codes.h keycodes used by the default Keymap.
const (
	KeyEsc          = 1
	KeyUp           = 103
	KeyLeft         = 105
	KeyRight        = 106
	KeyDown         = 108
	KeyLeftShift    = 42
	KeyZ            = 44
	KeySpace        = 57
	KeyX            = 45
	KeyLeftAlt      = 56
	KeyA            = 30
	KeyLeftCtrl     = 29
	KeyS            = 31
	KeyDelete       = 111
	KeyR            = 19
	KeyKPAsterisk   = 55
	KeyKPSlash      = 98
	KeyKPPlus       = 78
	KeyKPMinus      = 74
)

// Keymap resolves physical keycodes to controller bits and to the
// keyjazz octave/velocity adjusters.
type Keymap struct {
	Up, Left, Down, Right       uint16
	Select, SelectAlt           uint16
	Start, StartAlt             uint16
	Opt, OptAlt                 uint16
	Edit, EditAlt               uint16
	Delete, Reset               uint16
	JazzIncOctave, JazzDecOctave     uint16
	JazzIncVelocity, JazzDecVelocity uint16
}

// DefaultKeymap mirrors the original client's built-in defaults.
func DefaultKeymap() Keymap {
	return Keymap{
		Up: KeyUp, Left: KeyLeft, Down: KeyDown, Right: KeyRight,
		Select: KeyLeftShift, SelectAlt: KeyZ,
		Start: KeySpace, StartAlt: KeyX,
		Opt: KeyLeftAlt, OptAlt: KeyA,
		Edit: KeyLeftCtrl, EditAlt: KeyS,
		Delete: KeyDelete, Reset: KeyR,
		JazzIncOctave: KeyKPAsterisk, JazzDecOctave: KeyKPSlash,
		JazzIncVelocity: KeyKPPlus, JazzDecVelocity: KeyKPMinus,
	}
}

// rawEvent mirrors struct input_event's non-timestamp fields; the
// kernel timestamp is read and discarded since this adapter only cares
// about ordering, which the read() stream already preserves.
type rawEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

const rawEventWireSize = 24 // sizeof(struct input_event) on a 64-bit kernel (16B timeval + 2+2+4)

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func supportsKeyEvents(fd int) bool {
	var bits [4]byte
	if err := ioctl(fd, eviocgbit0, unsafe.Pointer(&bits[0])); err != nil {
		return false
	}
	const evKeyBit = 1 << evKey
	return bits[0]&evKeyBit != 0
}

// Discover probes /dev/input/event0..event9 and returns the path of the
// first device reporting EV_KEY support.
func Discover() (string, error) {
	for i := 0; i < 10; i++ {
		path := fmt.Sprintf("/dev/input/event%d", i)
		fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
		if err != nil {
			continue
		}
		ok := supportsKeyEvents(fd)
		unix.Close(fd)
		if ok {
			return path, nil
		}
	}
	return "", fmt.Errorf("input: no EV_KEY-capable device found under /dev/input")
}

// Adapter tracks controller bitmask state from a single evdev keyboard
// device and exposes the keyjazz octave/velocity adjuster keys for a
// future note-entry layer to consume (see the accompanying design
// notes).
type Adapter struct {
	fd     int
	keymap Keymap
	mask   byte
	quit   bool

	octaveOffset   int
	velocityOffset int
}

// Open opens the device at path (or the first Discover() result when
// path is empty) for non-blocking reads. A raw fd (via unix.Open) is
// used rather than *os.File so that reads surface EAGAIN directly
// instead of going through the Go runtime's integrated network poller,
// matching the same raw-syscall approach serial.Port takes.
func Open(path string, keymap Keymap) (*Adapter, error) {
	if path == "" {
		found, err := Discover()
		if err != nil {
			return nil, err
		}
		path = found
	}
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("input: open %s: %w", path, err)
	}
	return &Adapter{fd: fd, keymap: keymap}, nil
}

func (a *Adapter) setBit(bit byte, pressed bool) {
	if pressed {
		a.mask |= bit
	} else {
		a.mask &^= bit
	}
}

func (a *Adapter) apply(code uint16, pressed bool) {
	switch code {
	case a.keymap.Up:
		a.setBit(BitUp, pressed)
	case a.keymap.Left:
		a.setBit(BitLeft, pressed)
	case a.keymap.Down:
		a.setBit(BitDown, pressed)
	case a.keymap.Right:
		a.setBit(BitRight, pressed)
	case a.keymap.Select, a.keymap.SelectAlt:
		a.setBit(BitSelect, pressed)
	case a.keymap.Start, a.keymap.StartAlt:
		a.setBit(BitStart, pressed)
	case a.keymap.Opt, a.keymap.OptAlt:
		a.setBit(BitOpt, pressed)
	case a.keymap.Edit, a.keymap.EditAlt:
		a.setBit(BitEdit, pressed)
	case KeyEsc:
		if pressed {
			a.quit = true
		}
	case a.keymap.JazzIncOctave:
		if pressed {
			a.octaveOffset++
		}
	case a.keymap.JazzDecOctave:
		if pressed {
			a.octaveOffset--
		}
	case a.keymap.JazzIncVelocity:
		if pressed {
			a.velocityOffset++
		}
	case a.keymap.JazzDecVelocity:
		if pressed {
			a.velocityOffset--
		}
	}
}

// Poll drains every currently available event, updates the controller
// mask, and invokes onMaskChange after each event that changed the mask,
// so a press and release within one Poll are both reported.
func (a *Adapter) Poll(onMaskChange func(mask byte)) error {
	buf := make([]byte, rawEventWireSize)
	for {
		n, err := unix.Read(a.fd, buf)
		if err != nil {
			if err == unix.EAGAIN {
				break
			}
			return fmt.Errorf("input: read: %w", err)
		}
		if n < rawEventWireSize {
			break
		}
		ev := decodeEvent(buf)
		if ev.Type != evKey || ev.Value == keyRepeat {
			continue
		}
		before := a.mask
		a.apply(ev.Code, ev.Value == keyPressed)
		if a.mask != before && onMaskChange != nil {
			onMaskChange(a.mask)
		}
	}
	return nil
}

func decodeEvent(buf []byte) rawEvent {
	// layout: [16]byte timeval, uint16 type, uint16 code, int32 value
	return rawEvent{
		Type:  binary.LittleEndian.Uint16(buf[16:18]),
		Code:  binary.LittleEndian.Uint16(buf[18:20]),
		Value: int32(binary.LittleEndian.Uint32(buf[20:24])),
	}
}

// Mask reports the current controller bitmask.
func (a *Adapter) Mask() byte { return a.mask }

// Quit reports whether the escape key has been pressed.
func (a *Adapter) Quit() bool { return a.quit }

// OctaveOffset reports the net octave adjustment accumulated from the
// keyjazz octave keys.
func (a *Adapter) OctaveOffset() int { return a.octaveOffset }

// VelocityOffset reports the net velocity adjustment accumulated from
// the keyjazz velocity keys.
func (a *Adapter) VelocityOffset() int { return a.velocityOffset }

// Close releases the underlying device file.
func (a *Adapter) Close() error {
	return unix.Close(a.fd)
}
