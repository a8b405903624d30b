package visa

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// maxBlockLength guards against allocating for a corrupted length header
const maxBlockLength = 1 << 28

// readBlock reads an IEEE 488.2 arbitrary block response.
//
// A definite-length block is "#<n><length><data>", where <n> is the number of
// digits in <length>. An indefinite-length block is "#0<data>" and ends at the
// read termination. Anything preceding the '#' (a response header) is skipped.
// With expectTerm, a read termination following a definite-length block is consumed.
// Without it the reader stops right after the data, for transports that end the
// message at the end of the transfer.
func readBlock(r *bufio.Reader, term byte, expectTerm bool) ([]byte, error) {
	for {
		c, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if c == '#' {
			break
		}
		if c == term {
			return nil, fmt.Errorf("%w: reply has no block header", ErrMalformedBlock)
		}
	}

	c, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if c < '0' || c > '9' {
		return nil, fmt.Errorf("%w: invalid length digit count %q", ErrMalformedBlock, c)
	}

	digits := int(c - '0')
	if digits == 0 {
		data, err := r.ReadBytes(term)
		if err != nil {
			return nil, err
		}
		return data[:len(data)-1], nil
	}

	header := make([]byte, digits)
	if _, err = io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: short length header: %w", ErrMalformedBlock, err)
	}

	length, err := strconv.Atoi(string(header))
	if err != nil || length < 0 || length > maxBlockLength {
		return nil, fmt.Errorf("%w: invalid length %q", ErrMalformedBlock, header)
	}

	data := make([]byte, length)
	if _, err = io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("%w: expected %d bytes: %w", ErrMalformedBlock, length, err)
	}

	if !expectTerm {
		return data, nil
	}

	c, err = r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("reading block termination: %w", err)
	}
	if c != term {
		_ = r.UnreadByte()
	}

	return data, nil
}
