// Package trace reads memory traces as ordered sequences of fixed-width cache
// lines.
package trace

import (
	"errors"
	"fmt"
	"io"
)

// ErrUnsupportedFormat is returned when a trace path has no known format.
var ErrUnsupportedFormat = errors.New("unsupported trace format")

// ErrNoAccessKind is returned when a trace is filtered by access kind but a
// line does not record its kind.
var ErrNoAccessKind = errors.New("line has no access kind to filter on")

// Kind tells whether a line was read or written by the traced program.
type Kind int

// All the access kinds.
const (
	Unknown Kind = iota
	Read
	Write
)

func (k Kind) String() string {
	switch k {
	case Read:
		return "R"
	case Write:
		return "W"
	default:
		return "-"
	}
}

// ParseKinds turns a filter name into the access kinds it keeps. "all" keeps
// everything and returns nil.
func ParseKinds(filter string) ([]Kind, error) {
	switch filter {
	case "", "all":
		return nil, nil
	case "read":
		return []Kind{Read}, nil
	case "write":
		return []Kind{Write}, nil
	default:
		return nil, fmt.Errorf("unknown access filter %q", filter)
	}
}

// A Request is one cache line of a trace.
type Request struct {
	// Index is the position of the line in the trace, starting at 0.
	Index      uint64
	Address    uint64
	HasAddress bool
	Kind       Kind
	Data       []byte
}

// A Reader yields the lines of a trace in order. Next returns io.EOF once the
// trace is exhausted. Every returned line is LineSize bytes wide.
//
// The Data of a returned Request may be reused by the next call to Next.
type Reader interface {
	Next() (Request, error)
	LineSize() int
	Close() error
}

// A Sized reader knows how many lines it holds in total.
type Sized interface {
	NumLines() uint64
}

// NumLines returns the number of lines of r if it is known, or 0.
func NumLines(r Reader) uint64 {
	if sized, ok := r.(Sized); ok {
		return sized.NumLines()
	}

	return 0
}

type filteredReader struct {
	Reader
	keep [3]bool
}

// Filter returns a reader that skips every line whose kind is not listed.
// Without kinds, r is returned unchanged. Lines of unknown kind cannot be
// filtered and make Next fail with ErrNoAccessKind.
func Filter(r Reader, kinds ...Kind) Reader {
	if len(kinds) == 0 {
		return r
	}

	f := &filteredReader{Reader: r}
	for _, k := range kinds {
		f.keep[k] = true
	}

	return f
}

func (f *filteredReader) Next() (Request, error) {
	for {
		req, err := f.Reader.Next()
		if err != nil {
			return req, err
		}

		if req.Kind == Unknown {
			return Request{}, fmt.Errorf("%w: line %d", ErrNoAccessKind, req.Index)
		}

		if f.keep[req.Kind] {
			return req, nil
		}
	}
}

// Dump prints every line of r as hexadecimal bytes, one line per text line,
// prefixed by the access kind and address when they are known. The output can
// be read back as a hex trace.
func Dump(w io.Writer, r Reader) error {
	for {
		req, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		if req.Kind != Unknown {
			fmt.Fprintf(w, "%s: ", req.Kind)
		}

		if req.HasAddress {
			fmt.Fprintf(w, "@0x%x ", req.Address)
		}

		for i, b := range req.Data {
			if i > 0 {
				fmt.Fprint(w, " ")
			}

			fmt.Fprintf(w, "%02x", b)
		}

		fmt.Fprintln(w)
	}
}
