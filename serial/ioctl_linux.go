package serial

// Linux tty ioctl request numbers used by Port.GetAttr/SetAttr.
// Trimmed to the termios get/set pair the M8 transport actually issues;
// the teacher library's full tty ioctl surface (line discipline, RS-485,
// modem lines, pty allocation, ...) is not exercised by a USB-CDC link.
var (
	tcgets = uintptr(0x5401)
	tcsets = uintptr(0x5402)
)
