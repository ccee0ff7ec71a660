// Package playback serves session media over HTTP with byte-range support so
// players can seek without downloading the whole file.
package playback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsatisfiable is returned when the requested range lies entirely outside
// the file.
var ErrUnsatisfiable = errors.New("range not satisfiable")

// Range is a single satisfiable byte range within a file.
type Range struct {
	Start int64
	End   int64
}

func (r Range) Length() int64 {
	return r.End - r.Start + 1
}

func (r Range) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// ParseRange interprets a Range header against a file of the given size.
// A missing or syntactically malformed header yields (nil, nil): per the
// HTTP spec a server ignores ranges it cannot parse and serves the whole
// file. Only the first range of a multi-range header is honored.
func ParseRange(header string, size int64) (*Range, error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, nil
	}
	if idx := strings.IndexByte(spec, ','); idx != -1 {
		spec = spec[:idx]
	}
	spec = strings.TrimSpace(spec)

	first, last, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, nil
	}

	// Suffix form: bytes=-N means the final N bytes.
	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return nil, nil
		}
		start := size - n
		if start < 0 {
			start = 0
		}
		return &Range{Start: start, End: size - 1}, nil
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return nil, nil
	}

	end := size - 1
	if last != "" {
		end, err = strconv.ParseInt(last, 10, 64)
		if err != nil {
			return nil, nil
		}
	}

	if start > end || start >= size {
		return nil, ErrUnsatisfiable
	}
	if end >= size {
		end = size - 1
	}
	return &Range{Start: start, End: end}, nil
}
