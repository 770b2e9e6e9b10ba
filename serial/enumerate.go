package serial

import (
	"sort"

	"go.bug.st/serial"
)

// ListDevices returns the identifiers of currently available serial devices,
// sorted for stable presentation. Refreshed on every call.
func ListDevices() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	sort.Strings(ports)
	return ports, nil
}
