// Package config loads and persists the client's INI configuration
// file: display wait-packet tuning and the full keyboard keymap.
package config

import (
	"strconv"

	"github.com/charmbracelet/log"
	"gopkg.in/ini.v1"

	"github.com/daedaluz/m8hl/input"
)

const (
	sectionGraphics = "graphics"
	sectionKeyboard = "keyboard"

	// DefaultWaitPackets is the default for the [graphics] wait_packets
	// key. The value is loaded and written back with the rest of the
	// configuration; the display loop in package app does not read it.
	DefaultWaitPackets = 256
)

// Config is the resolved, in-memory configuration.
type Config struct {
	WaitPackets int
	Keymap      input.Keymap
}

// Default returns the built-in configuration used when no file exists.
func Default() Config {
	return Config{
		WaitPackets: DefaultWaitPackets,
		Keymap:      input.DefaultKeymap(),
	}
}

// Load reads path, or writes and returns Default() if it is absent or
// malformed. Preserving the original client's documented (if slightly
// surprising) behavior: on a successful load the resolved configuration
// is always written back to path, canonicalizing its formatting and
// filling in any keys the file omitted.
func Load(path string, logger *log.Logger) (Config, error) {
	if logger == nil {
		logger = log.Default()
	}
	file, err := ini.Load(path)
	if err != nil {
		logger.Debug("config file unreadable, writing defaults", "path", path, "err", err)
		cfg := Default()
		if werr := Save(path, cfg); werr != nil {
			return cfg, werr
		}
		return cfg, nil
	}

	cfg := Default()
	graphics := file.Section(sectionGraphics)
	cfg.WaitPackets = graphics.Key("wait_packets").MustInt(DefaultWaitPackets)

	kb := file.Section(sectionKeyboard)
	km := &cfg.Keymap
	readKey(kb, "key_up", &km.Up)
	readKey(kb, "key_left", &km.Left)
	readKey(kb, "key_down", &km.Down)
	readKey(kb, "key_right", &km.Right)
	readKey(kb, "key_select", &km.Select)
	readKey(kb, "key_select_alt", &km.SelectAlt)
	readKey(kb, "key_start", &km.Start)
	readKey(kb, "key_start_alt", &km.StartAlt)
	readKey(kb, "key_opt", &km.Opt)
	readKey(kb, "key_opt_alt", &km.OptAlt)
	readKey(kb, "key_edit", &km.Edit)
	readKey(kb, "key_edit_alt", &km.EditAlt)
	readKey(kb, "key_delete", &km.Delete)
	readKey(kb, "key_reset", &km.Reset)
	readKey(kb, "key_jazz_inc_octave", &km.JazzIncOctave)
	readKey(kb, "key_jazz_dec_octave", &km.JazzDecOctave)
	readKey(kb, "key_jazz_inc_velocity", &km.JazzIncVelocity)
	readKey(kb, "key_jazz_dec_velocity", &km.JazzDecVelocity)

	// Open question, preserved intentionally: rewrite on every successful
	// load too, not just when the file was missing.
	if err := Save(path, cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func readKey(section *ini.Section, name string, dst *uint16) {
	*dst = uint16(section.Key(name).MustInt(int(*dst)))
}

// Save writes cfg to path in the [graphics]/[keyboard] INI shape.
func Save(path string, cfg Config) error {
	file := ini.Empty()

	graphics, _ := file.NewSection(sectionGraphics)
	graphics.Key("wait_packets").SetValue(strconv.Itoa(cfg.WaitPackets))

	kb, _ := file.NewSection(sectionKeyboard)
	km := cfg.Keymap
	setKey(kb, "key_up", km.Up)
	setKey(kb, "key_left", km.Left)
	setKey(kb, "key_down", km.Down)
	setKey(kb, "key_right", km.Right)
	setKey(kb, "key_select", km.Select)
	setKey(kb, "key_select_alt", km.SelectAlt)
	setKey(kb, "key_start", km.Start)
	setKey(kb, "key_start_alt", km.StartAlt)
	setKey(kb, "key_opt", km.Opt)
	setKey(kb, "key_opt_alt", km.OptAlt)
	setKey(kb, "key_edit", km.Edit)
	setKey(kb, "key_edit_alt", km.EditAlt)
	setKey(kb, "key_delete", km.Delete)
	setKey(kb, "key_reset", km.Reset)
	setKey(kb, "key_jazz_inc_octave", km.JazzIncOctave)
	setKey(kb, "key_jazz_dec_octave", km.JazzDecOctave)
	setKey(kb, "key_jazz_inc_velocity", km.JazzIncVelocity)
	setKey(kb, "key_jazz_dec_velocity", km.JazzDecVelocity)

	return file.SaveTo(path)
}

func setKey(section *ini.Section, name string, value uint16) {
	section.Key(name).SetValue(strconv.Itoa(int(value)))
}
