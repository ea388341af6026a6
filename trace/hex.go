package trace

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const maxHexLineLength = 1 << 20

// HexReader reads text traces with one cache line per text line:
//
//	[R:|W:] [@0xADDR] xx xx xx ...
//
// Blank lines and lines starting with '#' are skipped. The width of the first
// line fixes the line size of the whole trace.
type HexReader struct {
	scanner  *bufio.Scanner
	closer   io.Closer
	lineSize int
	textLine int
	index    uint64
	pending  *Request
}

// NewHexReader creates a reader over src and reads ahead to the first line to
// learn the line size. If src is an io.Closer, Close closes it.
func NewHexReader(src io.Reader) (*HexReader, error) {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxHexLineLength)

	r := &HexReader{scanner: scanner}
	if closer, ok := src.(io.Closer); ok {
		r.closer = closer
	}

	first, err := r.scan()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("hex trace has no lines")
	}

	if err != nil {
		return nil, err
	}

	r.lineSize = len(first.Data)
	r.pending = &first

	return r, nil
}

// LineSize returns the width of every line in bytes.
func (r *HexReader) LineSize() int {
	return r.lineSize
}

// Next returns the next line of the trace.
func (r *HexReader) Next() (Request, error) {
	if r.pending != nil {
		req := *r.pending
		r.pending = nil

		return req, nil
	}

	req, err := r.scan()
	if err != nil {
		return Request{}, err
	}

	if len(req.Data) != r.lineSize {
		return Request{}, fmt.Errorf(
			"hex trace line %d has %d bytes, want %d",
			r.textLine, len(req.Data), r.lineSize)
	}

	return req, nil
}

// Close closes the underlying source if it can be closed.
func (r *HexReader) Close() error {
	if r.closer == nil {
		return nil
	}

	return r.closer.Close()
}

func (r *HexReader) scan() (Request, error) {
	for r.scanner.Scan() {
		r.textLine++

		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		req, err := parseHexLine(text)
		if err != nil {
			return Request{}, fmt.Errorf("hex trace line %d: %w", r.textLine, err)
		}

		req.Index = r.index
		r.index++

		return req, nil
	}

	if err := r.scanner.Err(); err != nil {
		return Request{}, err
	}

	return Request{}, io.EOF
}

func parseHexLine(text string) (Request, error) {
	req := Request{}
	fields := strings.Fields(text)

	if len(fields) > 0 {
		switch strings.ToUpper(fields[0]) {
		case "R:":
			req.Kind = Read
			fields = fields[1:]
		case "W:":
			req.Kind = Write
			fields = fields[1:]
		}
	}

	if len(fields) > 0 && strings.HasPrefix(fields[0], "@") {
		addr, err := strconv.ParseUint(fields[0][1:], 0, 64)
		if err != nil {
			return req, fmt.Errorf("bad address %q: %w", fields[0], err)
		}

		req.Address = addr
		req.HasAddress = true
		fields = fields[1:]
	}

	data, err := hex.DecodeString(strings.Join(fields, ""))
	if err != nil {
		return req, err
	}

	if len(data) == 0 {
		return req, errors.New("line has no data bytes")
	}

	req.Data = data

	return req, nil
}
