// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of go-ecm.
//
// go-ecm is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ecm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ecm.  If not, see <https://www.gnu.org/licenses/>.

// Package ioport provides the byte-addressable random-access input and
// append-only, position-tracking output that the encoder and decoder read
// and write through, independent of whether the underlying stream is a
// regular file or a pipe (for decoder input, and for either output).
package ioport

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrOutputExists is returned by CreateFileOutput when the destination
// already exists and overwrite was not requested.
var ErrOutputExists = errors.New("ioport: output file already exists")

// Input is a byte-addressable random-access source: what the encoder's
// lookahead queue needs to seek back to the start of a run and re-read it.
type Input interface {
	io.ReaderAt
	// Size returns the input's total length. ok is false if the length is
	// unknown, as for the stream Input that NewSequentialInput returns; the
	// encoder refuses such an input, since encoding requires a known length.
	Size() (int64, bool)
}

// Output is an append-only destination that tracks how many bytes have been
// written to it so far, for progress reporting.
type Output interface {
	io.Writer
	Tell() int64
}

// fileInput implements Input over an *os.File.
type fileInput struct {
	f    *os.File
	size int64
}

func (fi *fileInput) ReadAt(p []byte, off int64) (int, error) {
	return fi.f.ReadAt(p, off)
}

func (fi *fileInput) Size() (int64, bool) { return fi.size, true }

// OpenFileInput opens path for random-access reading.
func OpenFileInput(path string) (Input, io.Closer, error) {
	f, err := os.Open(path) //nolint:gosec // path is operator-supplied, same as the original CLI
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errOpen, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("%w: stat: %w", errOpen, err)
	}
	return &fileInput{f: f, size: info.Size()}, f, nil
}

var errOpen = errors.New("ioport: open input")

// countingWriter wraps an io.Writer, tracking total bytes written.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil {
		return n, fmt.Errorf("ioport: write: %w", err)
	}
	return n, nil
}

func (c *countingWriter) Tell() int64 { return c.n }

// NewOutput wraps an arbitrary io.Writer (e.g. os.Stdout) as an Output.
func NewOutput(w io.Writer) Output {
	return &countingWriter{w: w}
}

// ErrNonSequentialRead is returned by a sequential Input's ReadAt when the
// caller asks for an offset other than the one immediately following the
// last read, since a pipe can't seek backward or skip ahead.
var ErrNonSequentialRead = errors.New("ioport: non-sequential read from a stream input")

// sequentialInput adapts a forward-only io.Reader (such as stdin) to the
// Input interface. The decoder only ever reads forward in strictly
// increasing offsets, so this is sufficient even though it cannot support
// the encoder's need to re-seek to the start of a run.
type sequentialInput struct {
	r   io.Reader
	pos int64
}

// NewSequentialInput wraps r (e.g. os.Stdin) as an Input with unknown size.
// It is only suitable for the decoder's read pattern: strictly increasing,
// non-overlapping offsets.
func NewSequentialInput(r io.Reader) Input {
	return &sequentialInput{r: r}
}

func (s *sequentialInput) ReadAt(p []byte, off int64) (int, error) {
	if off != s.pos {
		return 0, ErrNonSequentialRead
	}
	n, err := io.ReadFull(s.r, p)
	s.pos += int64(n)
	if err != nil {
		return n, fmt.Errorf("ioport: sequential read: %w", err)
	}
	return n, nil
}

func (s *sequentialInput) Size() (int64, bool) { return 0, false }

// CreateFileOutput creates path for writing. Unless overwrite is true, it
// refuses to replace an existing file.
func CreateFileOutput(path string, overwrite bool) (Output, io.Closer, error) {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return nil, nil, ErrOutputExists
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("ioport: stat output: %w", err)
		}
	}

	f, err := os.Create(path) //nolint:gosec // path is operator-supplied, same as the original CLI
	if err != nil {
		return nil, nil, fmt.Errorf("ioport: create output: %w", err)
	}
	return NewOutput(f), f, nil
}
