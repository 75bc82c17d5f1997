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
	"fmt"
	"io"

	"github.com/go-ecm/ecm/ioport"
	"github.com/go-ecm/ecm/runlength"
	"github.com/go-ecm/ecm/sector"
)

// magic is the 4-byte signature at the start of every ECM stream.
var magic = [4]byte{'E', 'C', 'M', 0x00}

// queueCap bounds how much of the input the encoder buffers ahead of the
// byte it is currently classifying, the same role as the original
// library's lookahead queue.
const queueCap = 0x40000

// defaultStepBytes bounds how much work Step performs before returning when
// the caller doesn't request a specific bound, so a caller driving a
// progress bar gets control back regularly even on a huge run of literal
// bytes or sectors.
const defaultStepBytes = 0x80000

// Encoder strips the deterministic bytes out of a raw disc image, one
// Step call at a time, so the caller can interleave progress reporting
// with the work instead of blocking until the whole file is done.
type Encoder struct {
	in  ioport.Input
	out ioport.Output

	inputSize  int64
	inputPos   int64 // bytes classified so far (== queue window start in the input)
	inputEDC   uint32

	queue      []byte // lookahead buffer, queue[queueStart:queueStart+queueLen] is valid
	queueStart int
	queueLen   int

	literalSkip int // bytes forced to Literal regardless of classification

	curType     sector.Type
	curTypeInStart int64 // input offset where the current run began
	curTypeCount   uint32

	// writeSectors resumable state, when flushing curType's run.
	flushStep     int // 0 = nothing pending, 1 = header, 2 = literal body, 3 = sector payloads
	flushLiteralLeft int64
	flushSectorsLeft uint32
	flushSectorPos   int64

	stepBytes int

	done bool
	progress Progress
}

// NewEncoder prepares enc to strip the disc image read from in, writing the
// ECM stream to out, with each Step call bounded to roughly maxStepBytes of
// work (a value <= 0 selects defaultStepBytes). Encoding requires a known
// input length (so runs can be re-read from the start after classification),
// which rules out stdin.
func NewEncoder(in ioport.Input, out ioport.Output, maxStepBytes int) (*Encoder, error) {
	size, ok := in.Size()
	if !ok {
		return nil, ErrStdinNotSupported
	}
	if maxStepBytes <= 0 {
		maxStepBytes = defaultStepBytes
	}
	if _, err := out.Write(magic[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWritingOutputFile, err)
	}
	return &Encoder{
		in:        in,
		out:       out,
		inputSize: size,
		queue:     make([]byte, queueCap),
		curType:   -1,
		stepBytes: maxStepBytes,
	}, nil
}

// Progress returns the encoder's current progress snapshot.
func (e *Encoder) Progress() Progress { return e.progress }

// Run drives Step to completion, returning the final progress snapshot.
func (e *Encoder) Run() (Progress, error) {
	for {
		done, err := e.Step()
		if err != nil {
			return e.progress, err
		}
		if done {
			return e.progress, nil
		}
	}
}

// Step performs up to e.stepBytes of work and returns done=true once the
// whole input has been processed and the trailer written.
func (e *Encoder) Step() (done bool, err error) {
	if e.done {
		return true, nil
	}

	budget := e.stepBytes
	for budget > 0 {
		if e.flushStep != 0 {
			n, err := e.continueFlush(budget)
			budget -= n
			if err != nil {
				e.fail(err)
				return true, err
			}
			continue
		}

		if e.queueLen < sector.FullSize && e.inputPos+int64(e.queueLen) < e.inputSize {
			if err := e.refill(); err != nil {
				e.fail(err)
				return true, err
			}
		}
		if e.queueLen == 0 && e.inputPos >= e.inputSize {
			if err := e.finish(); err != nil {
				e.fail(err)
				return true, err
			}
			e.done = true
			e.progress.State = Completed
			e.progress.AnalyzePercentage = 100
			e.progress.EncodeOrDecodePercentage = 100
			return true, nil
		}

		detected := e.classifyNext()

		if detected == e.curType && e.curTypeCount <= 0x7FFFFFFF {
			e.curTypeCount++
		} else {
			e.beginFlush()
			continue
		}

		adv := sector.RawSize[detected]
		e.queueStart += adv
		e.queueLen -= adv
		e.inputPos += int64(adv)
		budget -= adv

		e.updateAnalyzeProgress()
	}
	return false, nil
}

// classifyNext inspects the queue at its current start and returns the type
// it should be treated as, honoring a pending literal skip and the
// ghost-Mode-1-inside-Mode-2 guard from the original encoder.
func (e *Encoder) classifyNext() sector.Type {
	window := e.queue[e.queueStart : e.queueStart+e.queueLen]

	if e.literalSkip > 0 {
		e.literalSkip--
		return sector.Literal
	}

	if e.curType >= sector.Mode2Form1 && looksLikeGhostSync(window) {
		e.literalSkip = 15
		return sector.Literal
	}

	return sector.Classify(window)
}

// looksLikeGhostSync reports whether window begins with a 16-byte pattern
// shaped like a Mode 2 raw sector header (the 12-byte sync sequence, three
// unchecked address bytes, then mode byte 0x02), a false-positive shape the original encoder special-
// cases to avoid chopping a real Mode 2 run on a coincidental byte pattern.
func looksLikeGhostSync(window []byte) bool {
	if len(window) < 16 {
		return false
	}
	if window[0] != 0x00 || window[11] != 0x00 {
		return false
	}
	for i := 1; i < 11; i++ {
		if window[i] != 0xFF {
			return false
		}
	}
	return window[15] == 0x02
}

// refill compacts the queue and reads as much new input as fits, updating
// the rolling whole-file EDC over newly-read bytes.
func (e *Encoder) refill() error {
	if e.queueStart > 0 {
		copy(e.queue, e.queue[e.queueStart:e.queueStart+e.queueLen])
		e.queueStart = 0
	}

	space := len(e.queue) - e.queueLen
	remaining := e.inputSize - e.inputPos - int64(e.queueLen)
	if space == 0 || remaining <= 0 {
		return nil
	}
	want := space
	if int64(want) > remaining {
		want = int(remaining)
	}

	readAt := e.inputPos + int64(e.queueLen)
	n, err := e.in.ReadAt(e.queue[e.queueLen:e.queueLen+want], readAt)
	if n > 0 {
		e.inputEDC = sector.EDC(e.inputEDC, e.queue[e.queueLen:e.queueLen+n])
		e.queueLen += n
	}
	if err != nil && err != io.EOF {
		return fmt.Errorf("%w: %w", ErrReadingInputFile, err)
	}
	return nil
}

// beginFlush starts writing out the run accumulated so far (if any) and
// starts a fresh run at the current position.
func (e *Encoder) beginFlush() {
	if e.curTypeCount > 0 {
		e.flushStep = 1
		return
	}
	e.startNewRun()
}

func (e *Encoder) startNewRun() {
	detected := e.classifyAtCurrentReclassify()
	e.curType = detected
	e.curTypeInStart = e.inputPos
	e.curTypeCount = 0
}

// classifyAtCurrentReclassify re-derives the type for the byte the queue is
// currently positioned at, used only when starting a brand new run (the
// type used by the main loop's comparison was already computed by
// classifyNext immediately prior, but beginFlush doesn't thread it through
// to avoid complicating Step's resumable control flow).
func (e *Encoder) classifyAtCurrentReclassify() sector.Type {
	window := e.queue[e.queueStart : e.queueStart+e.queueLen]
	if e.literalSkip > 0 {
		return sector.Literal
	}
	return sector.Classify(window)
}

// continueFlush advances the resumable run-flush state machine by up to
// budget bytes, returning how many bytes of budget it consumed.
func (e *Encoder) continueFlush(budget int) (int, error) {
	spent := 0

	if e.flushStep == 1 {
		typ := e.curType
		if typ == sector.Literal {
			typ = 0
		}
		if err := runlength.WriteHeader(e.out, int8(typ), e.curTypeCount); err != nil {
			return spent, fmt.Errorf("%w: %w", ErrWritingOutputFile, err)
		}
		if e.curType == sector.Literal {
			e.flushLiteralLeft = int64(e.curTypeCount)
			e.flushSectorPos = e.curTypeInStart
			e.flushStep = 2
		} else {
			e.flushSectorsLeft = e.curTypeCount
			e.flushSectorPos = e.curTypeInStart
			e.flushStep = 3
		}
		return spent, nil
	}

	if e.flushStep == 2 {
		buf := make([]byte, 4096)
		for e.flushLiteralLeft > 0 && spent < budget {
			chunk := int64(len(buf))
			if chunk > e.flushLiteralLeft {
				chunk = e.flushLiteralLeft
			}
			if int64(budget-spent) < chunk {
				chunk = int64(budget - spent)
			}
			n, err := e.in.ReadAt(buf[:chunk], e.flushSectorPos)
			if err != nil && err != io.EOF {
				return spent, fmt.Errorf("%w: %w", ErrReadingInputFile, err)
			}
			if n == 0 {
				break
			}
			if _, err := e.out.Write(buf[:n]); err != nil {
				return spent, fmt.Errorf("%w: %w", ErrWritingOutputFile, err)
			}
			e.flushSectorPos += int64(n)
			e.flushLiteralLeft -= int64(n)
			spent += n
			e.progress.LiteralBytes += int64(n)
		}
		if e.flushLiteralLeft <= 0 {
			e.finishFlush()
		}
		return spent, nil
	}

	// flushStep == 3: fixed-size per-sector payload writes.
	raw := make([]byte, sector.FullSize)
	for e.flushSectorsLeft > 0 && spent < budget {
		rawSize := sector.RawSize[e.curType]
		if _, err := e.in.ReadAt(raw[:rawSize], e.flushSectorPos); err != nil && err != io.EOF {
			return spent, fmt.Errorf("%w: %w", ErrReadingInputFile, err)
		}
		if _, err := sector.WritePayload(e.out, e.curType, raw[:rawSize]); err != nil {
			return spent, fmt.Errorf("%w: %w", ErrWritingOutputFile, err)
		}
		e.flushSectorPos += int64(rawSize)
		e.flushSectorsLeft--
		spent += rawSize
		e.tallySector(e.curType)
	}
	if e.flushSectorsLeft == 0 {
		e.finishFlush()
	}
	return spent, nil
}

func (e *Encoder) finishFlush() {
	e.flushStep = 0
	e.curTypeCount = 0
	e.startNewRun()
}

func (e *Encoder) tallySector(typ sector.Type) {
	switch typ {
	case sector.Mode1:
		e.progress.Mode1Sectors++
	case sector.Mode2Form1:
		e.progress.Mode2Form1Sectors++
	case sector.Mode2Form2:
		e.progress.Mode2Form2Sectors++
	}
}

func (e *Encoder) finish() error {
	if e.curTypeCount > 0 {
		if err := runlength.WriteHeader(e.out, headerType(e.curType), e.curTypeCount); err != nil {
			return fmt.Errorf("%w: %w", ErrWritingOutputFile, err)
		}
		if e.curType == sector.Literal {
			buf := make([]byte, e.curTypeCount)
			if _, err := e.in.ReadAt(buf, e.curTypeInStart); err != nil && err != io.EOF {
				return fmt.Errorf("%w: %w", ErrReadingInputFile, err)
			}
			if _, err := e.out.Write(buf); err != nil {
				return fmt.Errorf("%w: %w", ErrWritingOutputFile, err)
			}
			e.progress.LiteralBytes += int64(len(buf))
		} else {
			pos := e.curTypeInStart
			raw := make([]byte, sector.FullSize)
			for i := uint32(0); i < e.curTypeCount; i++ {
				rawSize := sector.RawSize[e.curType]
				if _, err := e.in.ReadAt(raw[:rawSize], pos); err != nil && err != io.EOF {
					return fmt.Errorf("%w: %w", ErrReadingInputFile, err)
				}
				if _, err := sector.WritePayload(e.out, e.curType, raw[:rawSize]); err != nil {
					return fmt.Errorf("%w: %w", ErrWritingOutputFile, err)
				}
				pos += int64(rawSize)
				e.tallySector(e.curType)
			}
		}
	}

	if err := runlength.WriteEOF(e.out); err != nil {
		return fmt.Errorf("%w: %w", ErrWritingOutputFile, err)
	}

	var trailer [4]byte
	sector.PutLE32(trailer[:], e.inputEDC)
	if _, err := e.out.Write(trailer[:]); err != nil {
		return fmt.Errorf("%w: %w", ErrWritingOutputFile, err)
	}

	e.progress.BytesBeforeProcessing = e.inputSize
	e.progress.BytesAfterProcessing = e.out.Tell()
	return nil
}

func headerType(typ sector.Type) int8 {
	if typ == sector.Literal {
		return 0
	}
	return int8(typ)
}

func (e *Encoder) updateAnalyzeProgress() {
	e.progress.AnalyzePercentage = bucketedPercentage(e.inputPos, e.inputSize)
	e.progress.EncodeOrDecodePercentage = e.progress.AnalyzePercentage
}

func (e *Encoder) fail(err error) {
	e.done = true
	e.progress.State = Failed
	e.progress.FailureReason = failureFor(err)
}
