//go:build linux

package visa

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUSBTMC lays out the sysfs entries of a usbtmc device
func fakeUSBTMC(t *testing.T, sysfs, node, busID, vid, pid, serial string) {
	t.Helper()

	usbDevice := filepath.Join(sysfs, "devices", "usb1", busID)
	iface := filepath.Join(usbDevice, busID+":1.0")
	require.NoError(t, os.MkdirAll(iface, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(usbDevice, "idVendor"), []byte(vid+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(usbDevice, "idProduct"), []byte(pid+"\n"), 0o644))
	if serial != "" {
		require.NoError(t, os.WriteFile(filepath.Join(usbDevice, "serial"), []byte(serial+"\n"), 0o644))
	}

	class := filepath.Join(sysfs, "class", "usbmisc", node)
	require.NoError(t, os.MkdirAll(class, 0o755))
	require.NoError(t, os.Symlink(iface, filepath.Join(class, "device")))
}

func TestResourceManager_Discover(t *testing.T) {
	sysfs := t.TempDir()
	dev := t.TempDir()

	fakeUSBTMC(t, sysfs, "usbtmc0", "1-1", "0699", "0368", "C012345")
	fakeUSBTMC(t, sysfs, "usbtmc1", "1-2", "0957", "2018", "")
	require.NoError(t, os.WriteFile(filepath.Join(dev, "ttyUSB0"), nil, 0o644))

	rm := NewResourceManager(nil,
		WithSysfsRoot(sysfs),
		WithDevRoot(dev),
		WithStaticResources("TCPIP0::192.168.1.20::5025::SOCKET"))

	ctx := context.Background()
	all, err := rm.ListResources(ctx, "?*")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"ASRL" + filepath.Join(dev, "ttyUSB0") + "::INSTR",
		"TCPIP0::192.168.1.20::5025::SOCKET",
		"USB0::0x0699::0x0368::C012345::INSTR",
		"USB0::0x0957::0x2018::usbtmc1::INSTR",
	}, all)

	scope, err := rm.FindResource(ctx, "?*0x0699?*::INSTR")
	require.NoError(t, err)
	assert.Equal(t, "USB0::0x0699::0x0368::C012345::INSTR", scope)

	node, err := rm.usbNode("usb0::0x0957::0x2018::usbtmc1::instr")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dev, "usbtmc1"), node)

	_, err = rm.FindResource(ctx, "?*0x1AB1?*::INSTR")
	assert.ErrorIs(t, err, ErrResourceNotFound)
}
