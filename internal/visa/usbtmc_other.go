//go:build !linux

package visa

import (
	"fmt"
	"io"
	"time"
)

func openUSBTMC(node string, _ time.Duration) (io.ReadWriteCloser, error) {
	return nil, fmt.Errorf("opening %s: %w", node, ErrUnsupported)
}
