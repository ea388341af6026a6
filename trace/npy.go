package trace

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var npyMagic = []byte("\x93NUMPY")

var (
	npyDescrPattern   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	npyFortranPattern = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	npyShapePattern   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// NpyReader reads a NumPy array of unsigned bytes shaped (lines, width). Each
// row is one cache line.
type NpyReader struct {
	src      *bufio.Reader
	closer   io.Closer
	numLines uint64
	lineSize int
	index    uint64
	buf      []byte
}

// NewNpyReader parses the array header from src. If src is an io.Closer,
// Close closes it.
func NewNpyReader(src io.Reader) (*NpyReader, error) {
	r := &NpyReader{src: bufio.NewReader(src)}
	if closer, ok := src.(io.Closer); ok {
		r.closer = closer
	}

	header, err := readNpyHeader(r.src)
	if err != nil {
		return nil, err
	}

	if err := r.parseHeader(header); err != nil {
		return nil, err
	}

	r.buf = make([]byte, r.lineSize)

	return r, nil
}

func readNpyHeader(src io.Reader) (string, error) {
	prelude := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(src, prelude); err != nil {
		return "", fmt.Errorf("read npy magic: %w", err)
	}

	if !bytes.Equal(prelude[:len(npyMagic)], npyMagic) {
		return "", errors.New("not a npy file")
	}

	major := prelude[len(npyMagic)]

	var headerLen uint32

	switch major {
	case 1:
		var l uint16
		if err := binary.Read(src, binary.LittleEndian, &l); err != nil {
			return "", fmt.Errorf("read npy header length: %w", err)
		}

		headerLen = uint32(l)
	case 2, 3:
		if err := binary.Read(src, binary.LittleEndian, &headerLen); err != nil {
			return "", fmt.Errorf("read npy header length: %w", err)
		}
	default:
		return "", fmt.Errorf("unsupported npy version %d", major)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(src, header); err != nil {
		return "", fmt.Errorf("read npy header: %w", err)
	}

	return string(header), nil
}

func (r *NpyReader) parseHeader(header string) error {
	descr := npyDescrPattern.FindStringSubmatch(header)
	if descr == nil {
		return errors.New("npy header has no descr")
	}

	if descr[1] != "|u1" && descr[1] != "<u1" && descr[1] != "u1" {
		return fmt.Errorf("npy dtype %q is not uint8", descr[1])
	}

	fortran := npyFortranPattern.FindStringSubmatch(header)
	if fortran != nil && fortran[1] == "True" {
		return errors.New("fortran-ordered npy arrays are not supported")
	}

	shape := npyShapePattern.FindStringSubmatch(header)
	if shape == nil {
		return errors.New("npy header has no shape")
	}

	dims := []uint64{}
	for _, field := range strings.Split(shape[1], ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}

		d, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return fmt.Errorf("bad npy shape %q: %w", shape[1], err)
		}

		dims = append(dims, d)
	}

	if len(dims) != 2 || dims[1] == 0 {
		return fmt.Errorf("npy shape (%s) is not (lines, width)", shape[1])
	}

	r.numLines = dims[0]
	r.lineSize = int(dims[1])

	return nil
}

// LineSize returns the width of every row in bytes.
func (r *NpyReader) LineSize() int {
	return r.lineSize
}

// NumLines returns the number of rows in the array.
func (r *NpyReader) NumLines() uint64 {
	return r.numLines
}

// Next returns the next row.
func (r *NpyReader) Next() (Request, error) {
	if r.index >= r.numLines {
		return Request{}, io.EOF
	}

	if _, err := io.ReadFull(r.src, r.buf); err != nil {
		return Request{}, fmt.Errorf("read npy row %d: %w", r.index, err)
	}

	req := Request{Index: r.index, Data: r.buf}
	r.index++

	return req, nil
}

// Close closes the underlying source if it can be closed.
func (r *NpyReader) Close() error {
	if r.closer == nil {
		return nil
	}

	return r.closer.Close()
}
