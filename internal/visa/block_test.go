package visa

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestReadBlock(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
		rest     string
	}{
		{"definite", "#15hello\n", "hello", ""},
		{"definite without termination", "#15helloNEXT", "hello", "NEXT"},
		{"definite with header", ":CURVE #13abc\n", "abc", ""},
		{"empty definite", "#10\n", "", ""},
		{"indefinite", "#0payload\n", "payload", ""},
		{"long length", "#210abcdefghij\n1\n", "abcdefghij", "1\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := bufio.NewReader(strings.NewReader(tc.input))

			data, err := readBlock(r, '\n', true)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(data, []byte(tc.expected)) {
				t.Errorf("expected %q, got %q", tc.expected, data)
			}

			rest, _ := io.ReadAll(r)
			if string(rest) != tc.rest {
				t.Errorf("expected remaining %q, got %q", tc.rest, rest)
			}
		})
	}
}

func TestReadBlock_WithoutTermination(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("#15hello\n"))

	data, err := readBlock(r, '\n', false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected %q, got %q", "hello", data)
	}

	// the termination is left for the caller
	rest, _ := io.ReadAll(r)
	if string(rest) != "\n" {
		t.Errorf("expected remaining %q, got %q", "\n", rest)
	}
}

func TestReadBlock_Malformed(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"no header", "1.0\n"},
		{"bad digit count", "#A12\n"},
		{"bad length", "#2x1abc\n"},
		{"short data", "#15hel"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := readBlock(bufio.NewReader(strings.NewReader(tc.input)), '\n', true)
			if !errors.Is(err, ErrMalformedBlock) {
				t.Errorf("expected ErrMalformedBlock, got %v", err)
			}
		})
	}
}
