package serial

import (
	ioctl "github.com/daedaluz/goioctl"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Termios mirrors struct termios from <asm-generic/termbits.h>. The M8
// transport only ever reads/writes Iflag/Oflag/Cflag/Lflag and Cc through
// MakeRaw/SetSpeed; Line is carried for completeness of the ioctl payload.
type Termios struct {
	Iflag IFlag
	Oflag OFlag
	Cflag CFlag
	Lflag LFlag
	Line  byte
	Cc    [19]byte
}

type IFlag uint32

const (
	IGNBRK = IFlag(0000001)
	BRKINT = IFlag(0000002)
	IGNPAR = IFlag(0000004)
	PARMRK = IFlag(0000010)
	INPCK  = IFlag(0000020)
	ISTRIP = IFlag(0000040)
	INLCR  = IFlag(0000100)
	IGNCR  = IFlag(0000200)
	ICRNL  = IFlag(0000400)
	IXON   = IFlag(0002000)
)

type OFlag uint32

const (
	OPOST = OFlag(0000001)
)

type CFlag uint32

// Control flags. Only the baud-rate mask and CS8 are used directly; the
// rest of the 4+1 bit speed table is kept so SetSpeed(B115200) — the one
// rate the M8 firmware speaks — has somewhere to live among its peers.
const (
	CBAUD   = CFlag(0010017)
	CSIZE   = CFlag(0000060)
	CS8     = CFlag(0000060)
	PARENB  = CFlag(0000400)
	B9600   = CFlag(0000015)
	B19200  = CFlag(0000016)
	B38400  = CFlag(0000017)
	B57600  = CFlag(0010001)
	B115200 = CFlag(0010002)
	B230400 = CFlag(0010003)
)

type LFlag uint32

const (
	ISIG   = LFlag(0000001)
	ICANON = LFlag(0000002)
	ECHO   = LFlag(0000010)
	ECHONL = LFlag(0000100)
	IEXTEN = LFlag(0100000)
)

type Action int

const (
	// TCSANOW: the change occurs immediately.
	TCSANOW = Action(iota)
	TCSADRAIN
	TCSAFLUSH
)

type PortOptions struct {
	ReadTimeout time.Duration
	OpenMode    int
}

func NewOptions() *PortOptions {
	return &PortOptions{ReadTimeout: -1, OpenMode: syscall.O_RDWR | syscall.O_NOCTTY}
}

func (o *PortOptions) SetReadTimeout(timeout time.Duration) *PortOptions {
	o.ReadTimeout = timeout
	return o
}

type Port struct {
	options *PortOptions
	closed  atomic.Bool
	f       int
}

// Open opens name (a tty device node) with the given PortOptions, or
// NewOptions() defaults when opts is nil.
func Open(name string, opts *PortOptions) (*Port, error) {
	if opts == nil {
		opts = NewOptions()
	}
	fd, err := syscall.Open(name, opts.OpenMode, 0)
	if err != nil {
		return nil, wrapErr("open "+name, err)
	}
	return &Port{
		options: opts,
		f:       fd,
	}, nil
}

func (p *Port) Write(data []byte) (n int, err error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	n, err = syscall.Write(p.f, data)
	return n, wrapErr("write", err)
}

// readTimeout blocks until the fd is readable (or timeout elapses) using
// select(2), then performs a single non-blocking read. This replaces the
// teacher's fdev/poll.WaitInput helper, which is not available to adapt
// from in this corpus; unix.Select gives the same wait-for-readable
// semantics using a dependency already wired elsewhere in this module.
func (p *Port) readTimeout(data []byte, timeout time.Duration) (int, error) {
	var tv unix.Timeval
	if timeout >= 0 {
		tv = unix.NsecToTimeval(timeout.Nanoseconds())
	}
	fdSet := &unix.FdSet{}
	fdSet.Set(p.f)
	var tvp *unix.Timeval
	if timeout >= 0 {
		tvp = &tv
	}
	n, err := unix.Select(p.f+1, fdSet, nil, nil, tvp)
	if err != nil {
		return 0, wrapErr("select", err)
	}
	if n == 0 {
		return 0, nil
	}
	return syscall.Read(p.f, data)
}

func (p *Port) Read(data []byte) (n int, err error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	if p.options.ReadTimeout > -1 {
		return p.readTimeout(data, p.options.ReadTimeout)
	}
	n, err = syscall.Read(p.f, data)
	return n, wrapErr("read", err)
}

func (p *Port) ReadTimeout(data []byte, timeout time.Duration) (n int, err error) {
	return p.readTimeout(data, timeout)
}

func (p *Port) SetReadTimeout(timeout time.Duration) {
	p.options.ReadTimeout = timeout
}

func (p *Port) Fd() int {
	if p.closed.Load() {
		return -1
	}
	return p.f
}

func (p *Port) Close() error {
	if !p.closed.Swap(true) {
		fd := p.f
		p.f = -1
		return syscall.Close(fd)
	}
	return ErrClosed
}

func (p *Port) GetAttr() (*Termios, error) {
	attrs := &Termios{}
	err := ioctl.Ioctl(uintptr(p.f), tcgets, uintptr(unsafe.Pointer(attrs)))
	if err != nil {
		return nil, wrapErr("TCGETS", err)
	}
	return attrs, nil
}

func (p *Port) SetAttr(when Action, attrs *Termios) error {
	return wrapErr("TCSETS", ioctl.Ioctl(uintptr(p.f), tcsets+uintptr(when), uintptr(unsafe.Pointer(attrs))))
}

// MakeRaw puts the Port into the raw (non-canonical, no echo) mode every
// serial-backed protocol of this shape needs: no line editing, no signal
// generation, 8 data bits, no parity.
func (p *Port) MakeRaw() error {
	attrs, err := p.GetAttr()
	if err != nil {
		return err
	}
	attrs.MakeRaw()
	return p.SetAttr(TCSANOW, attrs)
}

func (attrs *Termios) MakeRaw() {
	attrs.Iflag &= ^(IGNBRK | BRKINT | PARMRK | ISTRIP | INLCR | IGNCR | ICRNL | IXON)
	attrs.Oflag &= ^(OPOST)
	attrs.Lflag &= ^(ECHO | ECHONL | ICANON | ISIG | IEXTEN)
	attrs.Cflag &= ^(CSIZE | PARENB)
	attrs.Cflag |= CS8
}

func (attrs *Termios) SetSpeed(speed CFlag) {
	attrs.Cflag &= ^(CBAUD)
	attrs.Cflag |= speed
}
