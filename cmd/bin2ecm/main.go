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

// Command bin2ecm strips the deterministic bytes out of a raw CD-ROM disc
// image, producing a losslessly reconstructible ECM file.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-ecm/ecm"
	"github.com/go-ecm/ecm/ioport"
)

var (
	useStdin  = flag.Bool("stdin", false, "read the input image from stdin")
	useStdout = flag.Bool("stdout", false, "write the ECM stream to stdout")
	force     = flag.Bool("f", false, "overwrite the output file if it already exists")
)

const maxStepBytes = 1 << 20

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <input> [<output>]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Strips redundant EDC/ECC bytes from a raw CD-ROM image (or a CHD\n")
		fmt.Fprintf(os.Stderr, "container) into a compact, losslessly reconstructible .ecm file.\n\n")
		fmt.Fprintf(os.Stderr, "If <output> is omitted, it defaults to <input>.ecm.\n\n")
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
	if *useStdin {
		return fmt.Errorf("%w", ecm.ErrStdinNotSupported)
	}
	if len(args) < 1 {
		flag.Usage()
		return fmt.Errorf("missing input path")
	}
	inPath := args[0]

	outPath := ""
	if len(args) >= 2 {
		outPath = args[1]
	} else {
		outPath = inPath + ".ecm"
	}

	in, inCloser, err := openInput(inPath)
	if err != nil {
		return err
	}
	defer inCloser.Close()

	var out ioport.Output
	var outCloser io.Closer
	if *useStdout {
		out = ioport.NewOutput(os.Stdout)
	} else {
		out, outCloser, err = ioport.CreateFileOutput(outPath, *force)
		if err != nil {
			return err
		}
		defer outCloser.Close()
	}

	enc, err := ecm.NewEncoder(in, out, maxStepBytes)
	if err != nil {
		return err
	}

	last := -1
	for {
		done, err := enc.Step()
		progress := enc.Progress()
		if p := progress.AnalyzePercentage; p != last {
			fmt.Fprintf(os.Stderr, "Analyze(%02d%%) Encode(%02d%%)\r", progress.AnalyzePercentage, progress.EncodeOrDecodePercentage)
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

// openInput opens path for encoding, transparently unwrapping a CHD
// container into the raw 2352-byte sector stream the encoder expects.
func openInput(path string) (ioport.Input, io.Closer, error) {
	if strings.EqualFold(filepath.Ext(path), ".chd") {
		return ecm.OpenCHDInput(path)
	}
	return ioport.OpenFileInput(path)
}
