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

// Command ecm2bin reconstructs a raw CD-ROM disc image from an ECM file
// produced by bin2ecm, byte-for-byte.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-ecm/ecm"
	"github.com/go-ecm/ecm/ioport"
)

var (
	useStdin  = flag.Bool("stdin", false, "read the ECM stream from stdin")
	useStdout = flag.Bool("stdout", false, "write the reconstructed image to stdout")
	force     = flag.Bool("f", false, "overwrite the output file if it already exists")
)

const maxStepBytes = 1 << 20

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <input> [<output>]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Reconstructs a raw CD-ROM image from an .ecm file, byte-for-byte.\n\n")
		fmt.Fprintf(os.Stderr, "If <output> is omitted, it is derived by stripping a trailing .ecm\n")
		fmt.Fprintf(os.Stderr, "suffix from <input> (case-insensitive), or appending .unecm.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}
}

func run() error {
	args := flag.Args()
	if !*useStdin && len(args) < 1 {
		flag.Usage()
		return fmt.Errorf("missing input path")
	}

	var in ioport.Input
	var inCloser io.Closer
	var inPath string
	if *useStdin {
		in = ioport.NewSequentialInput(os.Stdin)
	} else {
		inPath = args[0]
		var err error
		in, inCloser, err = ioport.OpenFileInput(inPath)
		if err != nil {
			return err
		}
		defer inCloser.Close()
	}

	outPath := ""
	switch {
	case len(args) >= 2:
		outPath = args[1]
	case *useStdin || len(args) < 1:
		outPath = ""
	default:
		outPath = defaultOutputPath(inPath)
	}

	var out ioport.Output
	var outCloser io.Closer
	if *useStdout || outPath == "" {
		out = ioport.NewOutput(os.Stdout)
	} else {
		var err error
		out, outCloser, err = ioport.CreateFileOutput(outPath, *force)
		if err != nil {
			return err
		}
		defer outCloser.Close()
	}

	dec, err := ecm.NewDecoder(in, out, maxStepBytes)
	if err != nil {
		return err
	}

	last := -1
	for {
		done, err := dec.Step()
		progress := dec.Progress()
		if p := progress.EncodeOrDecodePercentage; p != last {
			fmt.Fprintf(os.Stderr, "Decode(%02d%%)\r", progress.EncodeOrDecodePercentage)
			last = p
		}
		if err != nil {
			fmt.Fprintln(os.Stderr)
			return fmt.Errorf("%s: %w", progress.FailureReason, err)
		}
		if done {
			break
		}
	}
	fmt.Fprintln(os.Stderr)
	return nil
}

// defaultOutputPath strips a trailing, case-insensitive ".ecm" suffix from
// path, or appends ".unecm" if it has none.
func defaultOutputPath(path string) string {
	if len(path) > 4 && strings.EqualFold(path[len(path)-4:], ".ecm") {
		return path[:len(path)-4]
	}
	return path + ".unecm"
}
