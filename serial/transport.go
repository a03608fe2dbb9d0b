package serial

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/daedaluz/m8hl/queue"
	"github.com/daedaluz/m8hl/slip"
)

// VendorID and ProductID identify the M8 headless USB-CDC interface.
const (
	VendorID  = 0x16C0
	ProductID = 0x048A

	baud           = B115200
	readBufferSize = 1024
	pumpInterval   = 4 * time.Millisecond
	writeTimeout   = 5 * time.Millisecond
	controllerTag  = 'C'
	keyjazzTag     = 'K'
	enableTag      = 'E'
	resetTag       = 'R'
)

// Status is the result of draining the packet queue for one tick.
type Status int

const (
	Disconnected Status = iota
	Processing
)

// Options configures Dial.
type Options struct {
	// PreferredDevice, when non-empty, is tried before VID/PID discovery.
	PreferredDevice string
	Logger          *log.Logger
}

// rawPort is the narrow surface Transport needs from a serial.Port; it
// exists so tests can substitute an in-memory fake instead of a real
// tty, since goserial's own OpenPTY helper is not usable here (see the
// accompanying design notes).
type rawPort interface {
	Read([]byte) (int, error)
	Write([]byte) (int, error)
	Close() error
}

var _ rawPort = (*Port)(nil)

// Transport owns a serial port plus the background pump goroutine that
// feeds it through a SLIP framer into a bounded Queue. It is the sole
// owner of the port and Queue; callers interact only through its
// methods.
type Transport struct {
	port   rawPort
	framer *slip.Handler
	queue  *queue.Queue
	log    *log.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu   sync.Mutex
	lost bool
}

// Dial discovers and opens the M8 device, configures it for raw
// 115200-baud operation, and starts the background read pump. If
// opts.PreferredDevice is set, it is tried first; VID/PID discovery via
// FindDeviceByVIDPID is the fallback (and the only path when
// PreferredDevice is empty).
func Dial(opts Options) (*Transport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	if opts.PreferredDevice != "" {
		port, err := openConfigured(opts.PreferredDevice)
		if err == nil {
			return newTransport(port, logger), nil
		}
		logger.Debug("preferred device unavailable, using VID/PID discovery", "device", opts.PreferredDevice, "err", err)
	}

	path, err := FindDeviceByVIDPID(VendorID, ProductID)
	if err != nil {
		return nil, err
	}

	port, err := openConfigured(path)
	if err != nil {
		return nil, err
	}
	return newTransport(port, logger), nil
}

// newTransport wraps an already-open rawPort in a Transport and starts
// its pump goroutine. Exported indirectly via Dial for production use
// and via NewTransportForTest for unit tests that inject a fake port.
func newTransport(port rawPort, logger *log.Logger) *Transport {
	t := &Transport{
		port:   port,
		queue:  queue.New(queue.DefaultCapacity),
		log:    logger,
		stopCh: make(chan struct{}),
	}
	t.framer = slip.New(make([]byte, readBufferSize), t.queue.Push)
	t.wg.Add(1)
	go t.pump()
	return t
}

// NewTransportForTest builds a Transport around a caller-supplied
// rawPort (e.g. an io.Pipe-backed fake), bypassing device discovery and
// termios configuration entirely.
func NewTransportForTest(port rawPort, logger *log.Logger) *Transport {
	if logger == nil {
		logger = log.Default()
	}
	return newTransport(port, logger)
}

// openConfigured opens and configures the raw port at path without
// starting a Transport around it; split out so the device-configuration
// concern (raw mode, baud rate) is independently testable from VID/PID
// discovery and pump startup.
func openConfigured(path string) (*Port, error) {
	port, err := Open(path, NewOptions().SetReadTimeout(pumpInterval))
	if err != nil {
		return nil, err
	}
	attrs, err := port.GetAttr()
	if err != nil {
		port.Close()
		return nil, err
	}
	attrs.MakeRaw()
	attrs.SetSpeed(baud)
	if err := port.SetAttr(TCSANOW, attrs); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}

func (t *Transport) pump() {
	defer t.wg.Done()
	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-t.stopCh:
			return
		default:
		}
		n, err := t.port.Read(buf)
		if err != nil {
			t.log.Debug("serial read failed", "err", err)
			t.markLost()
			return
		}
		if n > 0 {
			t.framer.ReadBytes(buf[:n])
		}
		time.Sleep(pumpInterval)
	}
}

func (t *Transport) markLost() {
	t.mu.Lock()
	t.lost = true
	t.mu.Unlock()
}

func (t *Transport) isLost() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lost
}

// SendController writes the 2-byte controller-state frame.
func (t *Transport) SendController(mask byte) error {
	_, err := t.port.Write([]byte{controllerTag, mask})
	if err != nil {
		t.markLost()
	}
	return err
}

// SendKeyjazz writes the 3-byte note/velocity frame, clamping velocity
// to the device's 7-bit range.
func (t *Transport) SendKeyjazz(note, velocity byte) error {
	if velocity > 0x7F {
		velocity = 0x7F
	}
	_, err := t.port.Write([]byte{keyjazzTag, note, velocity})
	if err != nil {
		t.markLost()
	}
	return err
}

// EnableDisplay writes the display-enable frame, waits the device's
// documented settle time, and optionally resets the display.
func (t *Transport) EnableDisplay(reset bool) error {
	if _, err := t.port.Write([]byte{enableTag}); err != nil {
		t.markLost()
		return err
	}
	time.Sleep(500 * time.Millisecond)
	if reset {
		if _, err := t.port.Write([]byte{resetTag}); err != nil {
			t.markLost()
			return err
		}
	}
	return nil
}

// ProcessData drains every currently queued packet through dispatch and
// reports whether the transport is still connected.
func (t *Transport) ProcessData(dispatch func(packet []byte)) Status {
	if t.isLost() {
		return Disconnected
	}
	for {
		packet, ok := t.queue.Pop()
		if !ok {
			break
		}
		dispatch(packet)
	}
	return Processing
}

// Close stops the pump, joins it, then releases the queue and port in
// that order: joining before closing the queue or port avoids racing
// the pump against a torn-down file descriptor or a closed queue.
func (t *Transport) Close() error {
	close(t.stopCh)
	t.wg.Wait()
	t.queue.Close()
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("serial: close: %w", err)
	}
	return nil
}
