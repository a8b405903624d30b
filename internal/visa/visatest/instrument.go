// Package visatest provides a simulated instrument for testing code that talks
// to instruments through a visa.Session.
package visatest

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/roman-kulish/scope-bandwidth/internal/visa"
)

// Reply writes the response to a command
type Reply func(w io.Writer) error

// Text replies with a line of text
func Text(s string) Reply {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s+"\n")
		return err
	}
}

// Block replies with an IEEE 488.2 definite-length block followed by a newline
func Block(data []byte) Reply {
	return func(w io.Writer) error {
		length := fmt.Sprintf("%d", len(data))
		if _, err := fmt.Fprintf(w, "#%d%s", len(length), length); err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err
	}
}

// Int8Block replies with a block of signed 8-bit samples
func Int8Block(samples ...int8) Reply {
	data := make([]byte, len(samples))
	for i, s := range samples {
		data[i] = byte(s)
	}
	return Block(data)
}

// Raw replies with the bytes as given
func Raw(p []byte) Reply {
	return func(w io.Writer) error {
		_, err := w.Write(p)
		return err
	}
}

// Silent never replies, simulating an instrument that times out
func Silent() Reply {
	return func(io.Writer) error {
		return nil
	}
}

// Instrument is an in-process instrument served over a synchronous pipe.
// Commands are matched case-insensitively; unknown commands are recorded and not answered.
type Instrument struct {
	mu       sync.Mutex
	commands []string
	replies  map[string]Reply
	conn     net.Conn

	done chan struct{}
}

func newInstrument(replies map[string]Reply) *Instrument {
	inst := &Instrument{
		replies: make(map[string]Reply, len(replies)),
		done:    make(chan struct{}),
	}
	for cmd, reply := range replies {
		inst.replies[strings.ToLower(cmd)] = reply
	}
	return inst
}

// NewInstrument starts a simulated instrument and returns it together with a
// session connected to it. Both are torn down when the test ends.
func NewInstrument(tb testing.TB, replies map[string]Reply, options ...func(*visa.Session)) (*Instrument, *visa.Session) {
	tb.Helper()

	client, server := net.Pipe()

	inst := newInstrument(replies)
	go func() {
		defer close(inst.done)
		inst.serve(server)
	}()

	session := visa.NewSession(fmt.Sprintf("TCPIP0::%s::5025::SOCKET", strings.ReplaceAll(tb.Name(), "/", "_")), client, options...)
	tb.Cleanup(func() {
		_ = session.Close()
		_ = server.Close()
		<-inst.done
	})

	return inst, session
}

// Listen serves a simulated instrument on a local TCP socket and returns it
// together with the resource string to reach it. A single connection is accepted.
func Listen(tb testing.TB, replies map[string]Reply) (*Instrument, string) {
	tb.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("listening: %v", err)
	}

	inst := newInstrument(replies)
	go func() {
		defer close(inst.done)

		conn, err := ln.Accept()
		if err != nil {
			return
		}

		inst.mu.Lock()
		inst.conn = conn
		inst.mu.Unlock()

		inst.serve(conn)
	}()

	tb.Cleanup(func() {
		_ = ln.Close()

		inst.mu.Lock()
		if inst.conn != nil {
			_ = inst.conn.Close()
		}
		inst.mu.Unlock()

		<-inst.done
	})

	addr := ln.Addr().(*net.TCPAddr)
	return inst, fmt.Sprintf("TCPIP0::127.0.0.1::%d::SOCKET", addr.Port)
}

// SetReply sets or replaces the reply to a command
func (i *Instrument) SetReply(cmd string, reply Reply) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.replies[strings.ToLower(cmd)] = reply
}

// Commands returns the commands received so far, in order
func (i *Instrument) Commands() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return slices.Clone(i.commands)
}

func (i *Instrument) serve(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		if cmd == "" {
			continue
		}

		i.mu.Lock()
		i.commands = append(i.commands, cmd)
		reply := i.replies[strings.ToLower(cmd)]
		i.mu.Unlock()

		if reply == nil {
			continue
		}
		if err := reply(conn); err != nil {
			return
		}
	}
}
