package visa

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
)

func dialSocket(ctx context.Context, r Resource) (io.ReadWriteCloser, error) {
	var d net.Dialer

	address := net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", address, err)
	}

	return conn, nil
}
