package gripper

import (
	"path/filepath"
	"sort"
	"strings"

	"go.bug.st/serial"
)

// portGlobPatterns are the device-path prefixes where USB-serial adapters
// and onboard UARTs show up on Linux.
var portGlobPatterns = []string{
	"/dev/ttyUSB*",
	"/dev/ttyACM*",
	"/dev/ttyS*",
}

// ScanPorts returns the sorted list of candidate serial devices: the union
// of the known device-path globs and the ports the OS enumerates.
func ScanPorts() []string {
	seen := make(map[string]struct{})

	for _, pattern := range portGlobPatterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, m := range matches {
			seen[m] = struct{}{}
		}
	}

	if list, err := serial.GetPortsList(); err == nil {
		for _, p := range list {
			seen[p] = struct{}{}
		}
	}

	ports := make([]string, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Strings(ports)

	return ports
}

// IsLikelyUSBSerial reports whether the port path looks like a hot-pluggable
// USB-serial adapter rather than an onboard UART.
func IsLikelyUSBSerial(port string) bool {
	return strings.HasPrefix(port, "/dev/ttyUSB") || strings.HasPrefix(port, "/dev/ttyACM")
}
