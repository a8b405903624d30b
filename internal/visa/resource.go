package visa

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	InterfaceTCPIP InterfaceType = "TCPIP"
	InterfaceUSB   InterfaceType = "USB"
	InterfaceASRL  InterfaceType = "ASRL"

	// DefaultSocketPort is the raw SCPI socket port used by most LAN instruments
	DefaultSocketPort = 5025
)

type InterfaceType string

// Resource is a parsed VISA resource string.
//
// Supported forms:
//   - TCPIP[board]::host[::port]::SOCKET
//   - USB[board]::0xVID::0xPID::serial[::interface]::INSTR
//   - ASRL<device path>::INSTR
type Resource struct {
	Name      string        // Resource string as given
	Interface InterfaceType // Interface type
	Board     int           // Board index, e.g. 0 for "USB0"

	Host string // TCPIP host
	Port int    // TCPIP port

	VendorID  uint16 // USB vendor ID
	ProductID uint16 // USB product ID
	Serial    string // USB serial number

	Device string // ASRL device path
}

func (r Resource) String() string {
	return r.Name
}

// ParseResource parses a VISA resource string
func ParseResource(name string) (Resource, error) {
	parts := strings.Split(strings.TrimSpace(name), "::")
	if len(parts) < 2 {
		return Resource{}, fmt.Errorf("invalid resource %q: too few fields", name)
	}

	head := strings.ToUpper(parts[0])
	r := Resource{Name: name}

	var err error
	switch {
	case strings.HasPrefix(head, string(InterfaceTCPIP)):
		r.Interface = InterfaceTCPIP
		if r.Board, err = parseBoard(head, InterfaceTCPIP); err != nil {
			return Resource{}, fmt.Errorf("invalid resource %q: %w", name, err)
		}
		if !strings.EqualFold(parts[len(parts)-1], "SOCKET") {
			return Resource{}, fmt.Errorf("invalid resource %q: only SOCKET resources are supported on TCPIP", name)
		}

		switch len(parts) {
		case 3: // TCPIP0::host::SOCKET
			r.Port = DefaultSocketPort
		case 4:
			if r.Port, err = strconv.Atoi(parts[2]); err != nil || r.Port <= 0 || r.Port > 65535 {
				return Resource{}, fmt.Errorf("invalid resource %q: bad port %q", name, parts[2])
			}
		default:
			return Resource{}, fmt.Errorf("invalid resource %q: unexpected number of fields", name)
		}

		r.Host = parts[1]
		if r.Host == "" {
			return Resource{}, fmt.Errorf("invalid resource %q: empty host", name)
		}

	case strings.HasPrefix(head, string(InterfaceUSB)):
		r.Interface = InterfaceUSB
		if r.Board, err = parseBoard(head, InterfaceUSB); err != nil {
			return Resource{}, fmt.Errorf("invalid resource %q: %w", name, err)
		}
		if len(parts) != 5 && len(parts) != 6 {
			return Resource{}, fmt.Errorf("invalid resource %q: unexpected number of fields", name)
		}
		if !strings.EqualFold(parts[len(parts)-1], "INSTR") {
			return Resource{}, fmt.Errorf("invalid resource %q: only INSTR resources are supported on USB", name)
		}

		vid, err := strconv.ParseUint(parts[1], 0, 16)
		if err != nil {
			return Resource{}, fmt.Errorf("invalid resource %q: bad vendor ID: %w", name, err)
		}
		pid, err := strconv.ParseUint(parts[2], 0, 16)
		if err != nil {
			return Resource{}, fmt.Errorf("invalid resource %q: bad product ID: %w", name, err)
		}

		r.VendorID = uint16(vid)
		r.ProductID = uint16(pid)
		r.Serial = parts[3]

	case strings.HasPrefix(head, string(InterfaceASRL)):
		r.Interface = InterfaceASRL
		if len(parts) != 2 || !strings.EqualFold(parts[1], "INSTR") {
			return Resource{}, fmt.Errorf("invalid resource %q: expected ASRL<device>::INSTR", name)
		}

		r.Device = parts[0][len(InterfaceASRL):]
		if r.Device == "" {
			return Resource{}, fmt.Errorf("invalid resource %q: empty device", name)
		}
		if _, err = strconv.Atoi(r.Device); err == nil {
			return Resource{}, fmt.Errorf("invalid resource %q: numbered serial boards are not supported, use a device path", name)
		}

	default:
		return Resource{}, fmt.Errorf("invalid resource %q: unknown interface type", name)
	}

	return r, nil
}

func parseBoard(head string, t InterfaceType) (int, error) {
	suffix := head[len(t):]
	if suffix == "" {
		return 0, nil
	}

	board, err := strconv.Atoi(suffix)
	if err != nil || board < 0 {
		return 0, fmt.Errorf("bad board number %q", suffix)
	}
	return board, nil
}
