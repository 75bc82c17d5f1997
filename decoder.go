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

package ecm

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-ecm/ecm/ioport"
	"github.com/go-ecm/ecm/runlength"
	"github.com/go-ecm/ecm/sector"
)

// decodePhase tracks which part of the wire format the decoder is currently
// working through; it is what makes Step resumable mid-header, mid-run, or
// mid-trailer instead of requiring a whole pass to complete in one call.
type decodePhase int

const (
	phaseReadHeader decodePhase = iota
	phaseLiterals
	phaseSectors
	phaseTrailer
)

// Decoder reassembles an ECM stream back into the original raw disc image,
// one Step call at a time.
type Decoder struct {
	in  ioport.Input
	out ioport.Output

	inputSize int64 // total input length, 0 if unknown (e.g. a pipe)
	knowsSize bool

	outputEDC uint32
	inputPos  int64 // current read offset into the ECM stream

	phase   decodePhase
	curType sector.Type
	curLeft uint32 // sectors or literal bytes still to emit in this run

	stepBytes int

	done     bool
	progress Progress
}

// NewDecoder prepares dec to reconstruct the raw disc image from the ECM
// stream read from in, writing it to out, with each Step call bounded to
// roughly maxStepBytes of work (a value <= 0 selects defaultStepBytes). The
// input's magic header is validated immediately.
func NewDecoder(in ioport.Input, out ioport.Output, maxStepBytes int) (*Decoder, error) {
	var hdr [4]byte
	if _, err := in.ReadAt(hdr[:], 0); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: truncated header", ErrInvalidECMFile)
		}
		return nil, fmt.Errorf("%w: %w", ErrReadingInputFile, err)
	}
	if hdr != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidECMFile)
	}

	if maxStepBytes <= 0 {
		maxStepBytes = defaultStepBytes
	}

	size, knowsSize := in.Size()
	return &Decoder{
		in:        in,
		out:       out,
		inputSize: size,
		knowsSize: knowsSize,
		inputPos:  int64(len(hdr)),
		phase:     phaseReadHeader,
		stepBytes: maxStepBytes,
	}, nil
}

// Progress returns the decoder's current progress snapshot.
func (d *Decoder) Progress() Progress { return d.progress }

// Run drives Step to completion, returning the final progress snapshot.
func (d *Decoder) Run() (Progress, error) {
	for {
		done, err := d.Step()
		if err != nil {
			return d.progress, err
		}
		if done {
			return d.progress, nil
		}
	}
}

// Step performs up to d.stepBytes of work and returns done=true once the
// trailer has been read and verified.
func (d *Decoder) Step() (done bool, err error) {
	if d.done {
		return true, nil
	}

	budget := d.stepBytes
	for budget > 0 {
		switch d.phase {
		case phaseReadHeader:
			if err := d.readHeader(); err != nil {
				d.fail(err)
				return true, err
			}
		case phaseLiterals:
			spent, err := d.streamLiterals(budget)
			budget -= spent
			if err != nil {
				d.fail(err)
				return true, err
			}
			continue
		case phaseSectors:
			spent, err := d.streamSectors(budget)
			budget -= spent
			if err != nil {
				d.fail(err)
				return true, err
			}
			continue
		case phaseTrailer:
			if err := d.verifyTrailer(); err != nil {
				d.fail(err)
				return true, err
			}
			d.done = true
			d.progress.State = Completed
			d.progress.AnalyzePercentage = 100
			d.progress.EncodeOrDecodePercentage = 100
			d.progress.BytesBeforeProcessing = d.tell()
			return true, nil
		}
	}
	return false, nil
}

// readHeader reads one (type, count) run header and routes to the
// appropriate streaming phase, or to the trailer phase on the end-of-stream
// sentinel.
func (d *Decoder) readHeader() error {
	r := &readAtReader{ra: d.in, pos: d.tell()}
	typ, count, eof, err := runlength.ReadHeader(r)
	d.advance(r.pos)
	if err != nil {
		if errors.Is(err, runlength.ErrHeaderOverflow) {
			return fmt.Errorf("%w: %w", ErrInvalidECMFile, err)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: truncated header", ErrInvalidECMFile)
		}
		return fmt.Errorf("%w: %w", ErrReadingInputFile, err)
	}

	if eof {
		d.phase = phaseTrailer
		return nil
	}

	d.curType = sector.Type(typ)
	d.curLeft = count
	if d.curType == sector.Literal {
		d.phase = phaseLiterals
	} else {
		d.phase = phaseSectors
	}
	return nil
}

// streamLiterals copies up to budget literal bytes from input to output,
// updating the rolling EDC over every byte emitted.
func (d *Decoder) streamLiterals(budget int) (int, error) {
	spent := 0
	buf := make([]byte, 4096)
	for d.curLeft > 0 && spent < budget {
		chunk := len(buf)
		if uint32(chunk) > d.curLeft {
			chunk = int(d.curLeft)
		}
		if budget-spent < chunk {
			chunk = budget - spent
		}
		pos := d.tell()
		n, err := d.in.ReadAt(buf[:chunk], pos)
		if n > 0 {
			if _, werr := d.out.Write(buf[:n]); werr != nil {
				return spent, fmt.Errorf("%w: %w", ErrWritingOutputFile, werr)
			}
			d.outputEDC = sector.EDC(d.outputEDC, buf[:n])
			d.advance(pos + int64(n))
			d.curLeft -= uint32(n)
			spent += n
			d.progress.LiteralBytes += int64(n)
			d.updateDecodeProgress()
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return spent, fmt.Errorf("%w: %w", ErrReadingInputFile, err)
		}
		if n == 0 {
			return spent, fmt.Errorf("%w: %w", ErrReadingInputFile, io.ErrUnexpectedEOF)
		}
	}
	if d.curLeft == 0 {
		d.phase = phaseReadHeader
	}
	return spent, nil
}

// streamSectors reconstructs up to budget bytes' worth of sectors of
// d.curType from their stripped wire payload, updating the rolling EDC over
// every reconstructed byte emitted.
func (d *Decoder) streamSectors(budget int) (int, error) {
	spent := 0
	var raw [sector.FullSize]byte

	for d.curLeft > 0 && spent < budget {
		pos := d.tell()
		r := &readAtReader{ra: d.in, pos: pos}
		if _, err := sector.ReadPayload(r, &raw, d.curType); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return spent, fmt.Errorf("%w: %w", ErrReadingInputFile, err)
			}
			return spent, fmt.Errorf("%w: %w", ErrReadingInputFile, err)
		}
		d.advance(r.pos)

		sector.Reconstruct(&raw, d.curType)
		outSlice := sector.OutputSlice(&raw, d.curType)

		d.outputEDC = sector.EDC(d.outputEDC, outSlice)
		if _, err := d.out.Write(outSlice); err != nil {
			return spent, fmt.Errorf("%w: %w", ErrWritingOutputFile, err)
		}

		n := sector.PayloadLength(d.curType)
		spent += n
		d.curLeft--
		d.tallySector(d.curType)
		d.updateDecodeProgress()
	}
	if d.curLeft == 0 {
		d.phase = phaseReadHeader
	}
	return spent, nil
}

func (d *Decoder) tallySector(typ sector.Type) {
	switch typ {
	case sector.Mode1:
		d.progress.Mode1Sectors++
	case sector.Mode2Form1:
		d.progress.Mode2Form1Sectors++
	case sector.Mode2Form2:
		d.progress.Mode2Form2Sectors++
	}
}

// verifyTrailer reads the 4-byte file-wide EDC trailer and compares it
// against the rolling EDC accumulated over every byte this decoder emitted.
func (d *Decoder) verifyTrailer() error {
	var trailer [4]byte
	if _, err := d.in.ReadAt(trailer[:], d.tell()); err != nil {
		return fmt.Errorf("%w: %w", ErrReadingInputFile, err)
	}
	d.advance(d.tell() + 4)

	if sector.LE32(trailer[:]) != d.outputEDC {
		return ErrInChecksum
	}
	d.progress.BytesAfterProcessing = d.out.Tell()
	return nil
}

func (d *Decoder) tell() int64 { return d.inputPos }

func (d *Decoder) advance(pos int64) { d.inputPos = pos }

func (d *Decoder) updateDecodeProgress() {
	if !d.knowsSize || d.inputSize <= 0 {
		return
	}
	d.progress.AnalyzePercentage = bucketedPercentage(d.tell(), d.inputSize)
	d.progress.EncodeOrDecodePercentage = d.progress.AnalyzePercentage
}

func (d *Decoder) fail(err error) {
	d.done = true
	d.progress.State = Failed
	d.progress.FailureReason = failureFor(err)
}

// readAtReader adapts an ioport.Input (ReadAt-based) to the io.Reader shape
// that runlength.ReadHeader and sector.ReadPayload expect, tracking the
// current position as reads succeed so the decoder's own tell() advances in
// lockstep without a dedicated seek call.
type readAtReader struct {
	ra  io.ReaderAt
	pos int64
}

func (r *readAtReader) Read(p []byte) (int, error) {
	n, err := r.ra.ReadAt(p, r.pos)
	r.pos += int64(n)
	return n, err
}
