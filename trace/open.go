package trace

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	s3 S3Options
}

// WithS3 sets how s3:// traces are fetched.
func WithS3(o S3Options) Option {
	return func(opts *openOptions) {
		opts.s3 = o
	}
}

// Open opens the trace at location, which is either a local path or an
// s3://bucket/key URI. Compression is detected from the last extension (.gz,
// .zst, .lz4, .br) and the format from the one before it (.npy for NumPy
// arrays, .txt or .hex for hex text).
func Open(ctx context.Context, location string, opts ...Option) (Reader, error) {
	o := openOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	format, codec := SplitExt(location)
	if !isKnownFormat(format) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, location)
	}

	src, err := openSource(ctx, location, o)
	if err != nil {
		return nil, err
	}

	stream, err := decompress(src, codec)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("open %s: %w", location, err)
	}

	var r Reader

	switch format {
	case ".npy":
		r, err = NewNpyReader(stream)
	default:
		r, err = NewHexReader(stream)
	}

	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("open %s: %w", location, err)
	}

	return r, nil
}

// SplitExt returns the format extension and the compression extension of
// location. The compression extension is empty for uncompressed traces.
func SplitExt(location string) (format, codec string) {
	name := strings.ToLower(path.Base(location))
	ext := path.Ext(name)

	switch ext {
	case ".gz", ".zst", ".lz4", ".br":
		codec = ext
		name = strings.TrimSuffix(name, ext)
		ext = path.Ext(name)
	}

	return ext, codec
}

// TrimExt removes the compression and format extensions from name.
func TrimExt(name string) string {
	format, codec := SplitExt(name)
	name = name[:len(name)-len(codec)]

	if isKnownFormat(format) {
		name = name[:len(name)-len(format)]
	}

	return name
}

func isKnownFormat(ext string) bool {
	switch ext {
	case ".npy", ".txt", ".hex":
		return true
	default:
		return false
	}
}

func openSource(
	ctx context.Context,
	location string,
	o openOptions,
) (io.ReadCloser, error) {
	if strings.HasPrefix(location, s3Scheme) {
		return openS3Object(ctx, location, o.s3)
	}

	return os.Open(location)
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var firstErr error

	for _, c := range r.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func decompress(src io.ReadCloser, codec string) (io.ReadCloser, error) {
	switch codec {
	case "":
		return src, nil
	case ".gz":
		gz, err := gzip.NewReader(src)
		if err != nil {
			return nil, err
		}

		return &readCloser{Reader: gz, closers: []io.Closer{gz, src}}, nil
	case ".zst":
		dec, err := zstd.NewReader(src)
		if err != nil {
			return nil, err
		}

		zr := dec.IOReadCloser()

		return &readCloser{Reader: zr, closers: []io.Closer{zr, src}}, nil
	case ".lz4":
		return &readCloser{Reader: lz4.NewReader(src), closers: []io.Closer{src}}, nil
	case ".br":
		return &readCloser{Reader: brotli.NewReader(src), closers: []io.Closer{src}}, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", codec)
	}
}
