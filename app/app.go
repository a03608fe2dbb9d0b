// Package app implements the client's top-level connection state
// machine: INITIALIZE, WAIT_FOR_DEVICE, RUN, QUIT.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/daedaluz/m8hl/command"
	"github.com/daedaluz/m8hl/config"
	"github.com/daedaluz/m8hl/display"
	"github.com/daedaluz/m8hl/input"
	"github.com/daedaluz/m8hl/serial"
)

// State is one of the application's four lifecycle phases.
type State int

const (
	StateInitialize State = iota
	StateWaitForDevice
	StateRun
	StateQuit
)

func (s State) String() string {
	switch s {
	case StateInitialize:
		return "INITIALIZE"
	case StateWaitForDevice:
		return "WAIT_FOR_DEVICE"
	case StateRun:
		return "RUN"
	case StateQuit:
		return "QUIT"
	default:
		return "UNKNOWN"
	}
}

const (
	runTick         = 16 * time.Millisecond
	waitForDeviceTick = 500 * time.Millisecond
)

// Options configures App.
type Options struct {
	ConfigPath      string
	PreferredDevice string
	FramebufferPath string
	Logger          *log.Logger
}

// App owns every long-lived collaborator: the pixel canvas, the input
// adapter, the serial transport (opened and reopened as the device
// comes and goes), and the command decoder bound to the canvas.
type App struct {
	opts   Options
	log    *log.Logger
	cfg    config.Config
	canvas *display.Canvas
	dec    *command.Decoder
	in     *input.Adapter
	tr     *serial.Transport
	state  State
}

// New constructs an App; Run performs all device/display opening.
func New(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	canvas := display.NewCanvas()
	return &App{
		opts:   opts,
		log:    logger,
		canvas: canvas,
		dec:    command.New(canvas),
		state:  StateInitialize,
	}
}

// State reports the App's current lifecycle phase.
func (a *App) State() State { return a.state }

// Run drives the state machine until ctx is cancelled or the user
// requests QUIT (escape key), then releases every opened resource in
// the order §4.7 specifies (display, input, serial).
func (a *App) Run(ctx context.Context) error {
	cfg, err := config.Load(a.opts.ConfigPath, a.log)
	if err != nil {
		return fmt.Errorf("app: load config: %w", err)
	}
	a.cfg = cfg

	// Deferred first so it runs last, after the display and input closes.
	defer a.teardownTransport()

	adapter, err := input.Open("", cfg.Keymap)
	if err != nil {
		return fmt.Errorf("app: open input: %w", err)
	}
	a.in = adapter
	defer a.in.Close()

	fbPath := a.opts.FramebufferPath
	if fbPath == "" {
		fbPath = "/dev/fb0"
	}
	if err := a.canvas.Open(fbPath); err != nil {
		return fmt.Errorf("app: open display: %w", err)
	}
	defer a.canvas.Close()

	a.tryConnect()
	if a.tr != nil {
		a.state = StateRun
	} else {
		a.state = StateWaitForDevice
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := a.in.Poll(a.onMaskChange); err != nil {
			a.log.Warn("input poll failed", "err", err)
		}
		if a.in.Quit() {
			a.state = StateQuit
		}

		switch a.state {
		case StateRun:
			a.tick(runTick)
		case StateWaitForDevice:
			a.waitTick()
		case StateQuit:
			return nil
		}
	}
}

func (a *App) onMaskChange(mask byte) {
	if a.tr == nil {
		return
	}
	if err := a.tr.SendController(mask); err != nil {
		a.log.Debug("controller send failed", "err", err)
	}
}

func (a *App) tryConnect() {
	tr, err := serial.Dial(serial.Options{
		PreferredDevice: a.opts.PreferredDevice,
		Logger:          a.log,
	})
	if err != nil {
		a.log.Debug("device not found", "err", err)
		return
	}
	a.tr = tr
	if err := a.tr.EnableDisplay(true); err != nil {
		a.log.Warn("enable display failed", "err", err)
	}
}

func (a *App) teardownTransport() {
	if a.tr != nil {
		a.tr.Close()
		a.tr = nil
	}
}

func (a *App) tick(d time.Duration) {
	status := a.tr.ProcessData(a.dec.Dispatch)
	if status == serial.Disconnected {
		a.log.Warn("device disconnected")
		a.teardownTransport()
		a.canvas.Clear()
		a.state = StateWaitForDevice
		return
	}
	a.canvas.RenderFrame()
	time.Sleep(d)
}

func (a *App) waitTick() {
	time.Sleep(waitForDeviceTick)
	a.tryConnect()
	if a.tr != nil {
		a.state = StateRun
	}
}
