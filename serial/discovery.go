package serial

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const sysClassTTY = "/sys/class/tty"

// FindDeviceByVIDPID returns the /dev/ttyXXX path of the first attached
// tty whose USB vendor/product IDs match vid/pid, walking
// /sys/class/tty the way udev-less tools do: each tty's "device" symlink
// resolves to the USB interface directory (CDC ACM ttys) or to a child
// of it (usb-serial ttys), so idVendor/idProduct are looked up one
// directory up and, failing that, two directories up, at the USB device
// node itself.
//
// Grounded on the os.ReadDir + device-file-check pattern used for V4L2
// device enumeration (no comparable enumeration API was retrievable for
// any USB-specific library in this corpus, see the accompanying design
// notes), adapted here to the tty/USB sysfs layout instead of /dev/video*.
func FindDeviceByVIDPID(vid, pid uint16) (string, error) {
	entries, err := os.ReadDir(sysClassTTY)
	if err != nil {
		return "", fmt.Errorf("serial: read %s: %w", sysClassTTY, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		devLink := filepath.Join(sysClassTTY, name, "device")
		target, err := filepath.EvalSymlinks(devLink)
		if err != nil {
			continue
		}
		for _, usbDevDir := range []string{filepath.Join(target, ".."), filepath.Join(target, "..", "..")} {
			gotVID, err := readHexID(filepath.Join(usbDevDir, "idVendor"))
			if err != nil {
				continue
			}
			gotPID, err := readHexID(filepath.Join(usbDevDir, "idProduct"))
			if err != nil {
				continue
			}
			if gotVID == vid && gotPID == pid {
				return filepath.Join("/dev", name), nil
			}
			break
		}
	}
	return "", fmt.Errorf("serial: no tty device with VID:PID %04x:%04x", vid, pid)
}

func readHexID(path string) (uint16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}
