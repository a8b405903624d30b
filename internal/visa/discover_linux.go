//go:build linux

package visa

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var serialGlobs = []string{"ttyUSB*", "ttyACM*"}

func (rm *ResourceManager) discover() []string {
	var found []string
	found = append(found, rm.discoverUSBTMC()...)
	found = append(found, rm.discoverSerial()...)
	return found
}

// discoverUSBTMC lists the devices bound to the usbtmc driver. The USB identity
// is read from the USB device owning the usbtmc interface.
func (rm *ResourceManager) discoverUSBTMC() []string {
	entries, err := filepath.Glob(filepath.Join(rm.sysfsRoot, "class", "usbmisc", "usbtmc*"))
	if err != nil {
		return nil
	}

	var found []string
	for _, entry := range entries {
		node := filepath.Base(entry)

		iface, err := filepath.EvalSymlinks(filepath.Join(entry, "device"))
		if err != nil {
			rm.logger.Warn(fmt.Sprintf("resolving usbtmc interface: %s", err.Error()), slog.String("node", node))
			continue
		}
		usbDevice := filepath.Dir(iface)

		vid, err := readHexAttr(filepath.Join(usbDevice, "idVendor"))
		if err != nil {
			rm.logger.Warn(fmt.Sprintf("reading vendor ID: %s", err.Error()), slog.String("node", node))
			continue
		}
		pid, err := readHexAttr(filepath.Join(usbDevice, "idProduct"))
		if err != nil {
			rm.logger.Warn(fmt.Sprintf("reading product ID: %s", err.Error()), slog.String("node", node))
			continue
		}

		serial, err := readAttr(filepath.Join(usbDevice, "serial"))
		if err != nil || serial == "" {
			serial = node // devices without a serial number are told apart by their node
		}

		name := fmt.Sprintf("USB0::0x%04X::0x%04X::%s::INSTR", vid, pid, serial)
		rm.registerUSB(name, filepath.Join(rm.devRoot, node))
		found = append(found, name)
	}

	return found
}

func (rm *ResourceManager) discoverSerial() []string {
	var found []string
	for _, glob := range serialGlobs {
		matches, err := filepath.Glob(filepath.Join(rm.devRoot, glob))
		if err != nil {
			continue
		}
		for _, path := range matches {
			found = append(found, fmt.Sprintf("%s%s::INSTR", InterfaceASRL, path))
		}
	}
	return found
}

func readAttr(path string) (string, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(p)), nil
}

func readHexAttr(path string) (uint16, error) {
	s, err := readAttr(path)
	if err != nil {
		return 0, err
	}

	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return uint16(v), nil
}
