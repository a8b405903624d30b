//go:build linux

package visa

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// usbtmcIoctlSetTimeout is USBTMC_IOCTL_SET_TIMEOUT, _IOW('[', 10, __u32)
	usbtmcIoctlSetTimeout = 0x40045b0a

	// usbtmcMinTimeout is the smallest timeout the kernel driver accepts
	usbtmcMinTimeout = 100 * time.Millisecond
)

// usbtmcDevice is a USBTMC character device served by the Linux usbtmc driver.
// Every write is one message; the driver applies the timeout to each transfer.
type usbtmcDevice struct {
	*os.File
}

func openUSBTMC(node string, timeout time.Duration) (io.ReadWriteCloser, error) {
	f, err := os.OpenFile(node, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", node, err)
	}

	timeout = max(timeout, usbtmcMinTimeout)
	if err = unix.IoctlSetPointerInt(int(f.Fd()), usbtmcIoctlSetTimeout, int(timeout/time.Millisecond)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("setting timeout on %s: %w", node, err)
	}

	return &usbtmcDevice{f}, nil
}

func (d *usbtmcDevice) Read(b []byte) (int, error) {
	n, err := d.File.Read(b)
	if errors.Is(err, unix.ETIMEDOUT) {
		return n, ErrTimeout
	}
	return n, err
}

func (d *usbtmcDevice) Write(b []byte) (int, error) {
	n, err := d.File.Write(b)
	if errors.Is(err, unix.ETIMEDOUT) {
		return n, ErrTimeout
	}
	return n, err
}
