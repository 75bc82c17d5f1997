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

import "errors"

// Sentinel errors returned by Encoder and Decoder operations. Each has a
// corresponding FailureReason for callers that want a stable, typed category
// instead of matching on the error chain.
var (
	ErrOpeningInputFile  = errors.New("ecm: error opening input file")
	ErrOpeningOutputFile = errors.New("ecm: error opening output file")
	ErrOutOfMemory       = errors.New("ecm: out of memory")
	ErrReadingInputFile  = errors.New("ecm: error reading input file")
	ErrWritingOutputFile = errors.New("ecm: error writing output file")
	ErrInvalidECMFile    = errors.New("ecm: invalid ECM file")
	ErrInChecksum        = errors.New("ecm: checksum mismatch in trailer")
	ErrStdinNotSupported = errors.New("ecm: stdin is not supported for this operation")
)

// FailureReason is a stable, typed category for why an encode or decode
// operation failed. It mirrors the original C library's failure-reason
// enum so a caller driving a UI can branch on a category instead of the
// error text.
type FailureReason int

// Failure reasons, in the same order as the original library's enum.
const (
	FailureNone FailureReason = iota
	FailureOpeningInputFile
	FailureOpeningOutputFile
	FailureOutOfMemory
	FailureReadingInputFile
	FailureWritingOutputFile
	FailureInvalidECMFile
	FailureInChecksum
	FailureStdinNotSupported
)

func (f FailureReason) String() string {
	switch f {
	case FailureNone:
		return "SUCCESS"
	case FailureOpeningInputFile:
		return "ERROR_OPENING_INPUT_FILE"
	case FailureOpeningOutputFile:
		return "ERROR_OPENING_OUTPUT_FILE"
	case FailureOutOfMemory:
		return "OUT_OF_MEMORY"
	case FailureReadingInputFile:
		return "ERROR_READING_INPUT_FILE"
	case FailureWritingOutputFile:
		return "ERROR_WRITING_OUTPUT_FILE"
	case FailureInvalidECMFile:
		return "INVALID_ECM_FILE"
	case FailureInChecksum:
		return "ERROR_IN_CHECKSUM"
	case FailureStdinNotSupported:
		return "STDIN_NOT_SUPPORTED"
	default:
		return "UNKNOWN"
	}
}

// failureFor maps a sentinel error to its FailureReason, falling back to
// FailureReadingInputFile for any error it does not recognize, since that
// matches how the original library surfaces unexpected I/O errors.
func failureFor(err error) FailureReason {
	switch {
	case errors.Is(err, ErrOpeningInputFile):
		return FailureOpeningInputFile
	case errors.Is(err, ErrOpeningOutputFile):
		return FailureOpeningOutputFile
	case errors.Is(err, ErrOutOfMemory):
		return FailureOutOfMemory
	case errors.Is(err, ErrReadingInputFile):
		return FailureReadingInputFile
	case errors.Is(err, ErrWritingOutputFile):
		return FailureWritingOutputFile
	case errors.Is(err, ErrInvalidECMFile):
		return FailureInvalidECMFile
	case errors.Is(err, ErrInChecksum):
		return FailureInChecksum
	case errors.Is(err, ErrStdinNotSupported):
		return FailureStdinNotSupported
	default:
		return FailureReadingInputFile
	}
}
