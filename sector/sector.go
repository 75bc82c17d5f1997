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

package sector

import "io"

// Type identifies which kind of window a run of bytes was classified as.
type Type int8

const (
	// Literal marks bytes that are not a recognized, losslessly strippable sector.
	Literal Type = iota
	// Mode1 is a 2352-byte CD-ROM Mode 1 sector (sync, address, mode, 2048
	// bytes of data, EDC, 8 reserved bytes, P+Q ECC).
	Mode1
	// Mode2Form1 is a 2336-byte CD-ROM XA Mode 2 Form 1 sector (duplicated
	// subheader, 2048 bytes of data, EDC, P+Q ECC; no sync/address stored).
	Mode2Form1
	// Mode2Form2 is a 2336-byte CD-ROM XA Mode 2 Form 2 sector (duplicated
	// subheader, 2324 bytes of data, EDC; no ECC).
	Mode2Form2
)

// FullSize is the size of a fully reconstructed raw sector, including the
// synthetic sync/address prefix that Mode 2 sectors don't store on disk but
// that reconstruction still materializes internally.
const FullSize = 2352

// RawSize is the number of bytes a sector of this type occupies in a raw
// disc image, indexed by Type.
var RawSize = [...]int{Literal: 1, Mode1: 2352, Mode2Form1: 2336, Mode2Form2: 2336}

var syncPattern = [12]byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}

var zeroAddress = [4]byte{}

// Mode 1 byte offsets within a raw (and reconstructed) sector.
const (
	m1Address  = 0x00C
	m1Data     = 0x010
	m1EDC      = 0x810
	m1Reserved = 0x814
	m1ECC      = 0x81C
)

// Mode 2 byte offsets. The "raw" offsets apply to a 2336-byte window read
// directly from a disc image (no sync/address prefix present); the "full"
// offsets apply once that payload has been placed inside a FullSize buffer
// for reconstruction, which reserves 0x10 bytes at the front for a
// synthetic sync/mode header shared with the Mode 1 layout.
const (
	m2RawEDCForm1 = 0x808
	m2RawECC      = 0x80C
	m2RawEDCForm2 = 0x91C

	m2FullFlagsDup = 0x014
	m2FullData     = 0x018
	m2FullEDCForm1 = 0x818
	m2FullEDCForm2 = 0x92C
)

// Classify inspects a raw window and returns the sector type it matches, or
// Literal if it matches none. window must be at least RawSize[Mode1] bytes
// long to be considered for Mode1, and at least RawSize[Mode2Form1] bytes
// long to be considered for either Mode 2 form; a short window simply fails
// every check and classifies as Literal.
func Classify(window []byte) Type {
	if isMode1(window) {
		return Mode1
	}
	if typ, ok := classifyMode2(window); ok {
		return typ
	}
	return Literal
}

func isMode1(w []byte) bool {
	if len(w) < RawSize[Mode1] {
		return false
	}
	for i, b := range syncPattern {
		if w[i] != b {
			return false
		}
	}
	if w[0x00F] != 0x01 {
		return false
	}
	for i := m1Reserved; i < m1ECC; i++ {
		if w[i] != 0x00 {
			return false
		}
	}
	if !eccCheckSector(w[m1Address:m1Data], w[m1Data:], w[m1ECC:]) {
		return false
	}
	return EDC(0, w[:m1EDC]) == le32(w[m1EDC:])
}

func classifyMode2(w []byte) (Type, bool) {
	if len(w) < RawSize[Mode2Form1] {
		return Literal, false
	}
	if w[0] != w[4] || w[1] != w[5] || w[2] != w[6] || w[3] != w[7] {
		return Literal, false
	}
	if eccCheckSector(zeroAddress[:], w, w[m2RawECC:]) &&
		EDC(0, w[:m2RawEDCForm1]) == le32(w[m2RawEDCForm1:]) {
		return Mode2Form1, true
	}
	if EDC(0, w[:m2RawEDCForm2]) == le32(w[m2RawEDCForm2:]) {
		return Mode2Form2, true
	}
	return Literal, false
}

// WritePayload writes the losslessly strippable portion of a raw sector
// (the bytes not implied by its type) to w. raw must be RawSize[typ] bytes.
func WritePayload(w io.Writer, typ Type, raw []byte) (int, error) {
	switch typ {
	case Mode1:
		n1, err := w.Write(raw[m1Address : m1Address+3])
		if err != nil {
			return n1, err
		}
		n2, err := w.Write(raw[m1Data:m1EDC])
		return n1 + n2, err
	case Mode2Form1:
		return w.Write(raw[4 : 4+0x804])
	case Mode2Form2:
		return w.Write(raw[4 : 4+0x918])
	case Literal:
		return 0, nil
	default:
		return 0, nil
	}
}

// PayloadLength returns how many stream bytes WritePayload emits and
// ReadPayload consumes for typ.
func PayloadLength(typ Type) int {
	switch typ {
	case Mode1:
		return 3 + 2048
	case Mode2Form1:
		return 0x804
	case Mode2Form2:
		return 0x918
	default:
		return 0
	}
}

// ReadPayload reads a sector's wire payload from r into buf at the offset
// reconstruction expects, returning the byte count consumed.
func ReadPayload(r io.Reader, buf *[FullSize]byte, typ Type) (int, error) {
	switch typ {
	case Mode1:
		if _, err := io.ReadFull(r, buf[m1Address:m1Address+3]); err != nil {
			return 0, err
		}
		if _, err := io.ReadFull(r, buf[m1Data:m1EDC]); err != nil {
			return 3, err
		}
		return 3 + 2048, nil
	case Mode2Form1:
		n, err := io.ReadFull(r, buf[m2FullFlagsDup:m2FullFlagsDup+0x804])
		return n, err
	case Mode2Form2:
		n, err := io.ReadFull(r, buf[m2FullFlagsDup:m2FullFlagsDup+0x918])
		return n, err
	default:
		return 0, nil
	}
}

// Reconstruct regenerates the deterministic bytes of a sector (sync, mode,
// subheader copy, EDC, P+Q ECC) from the payload already placed in buf,
// producing a byte-exact copy of the original raw sector.
func Reconstruct(buf *[FullSize]byte, typ Type) {
	copy(buf[0:12], syncPattern[:])

	switch typ {
	case Mode1:
		buf[0x00F] = 0x01
		for i := m1Reserved; i < m1ECC; i++ {
			buf[i] = 0x00
		}
	case Mode2Form1, Mode2Form2:
		buf[0x00F] = 0x02
		copy(buf[0x010:m2FullFlagsDup], buf[m2FullFlagsDup:m2FullData])
	case Literal:
	}

	switch typ {
	case Mode1:
		PutLE32(buf[m1EDC:], EDC(0, buf[:m1EDC]))
	case Mode2Form1:
		PutLE32(buf[m2FullEDCForm1:], EDC(0, buf[0x010:m2FullEDCForm1]))
	case Mode2Form2:
		PutLE32(buf[m2FullEDCForm2:], EDC(0, buf[0x010:m2FullEDCForm2]))
	case Literal:
	}

	switch typ {
	case Mode1:
		eccWriteSector(buf[m1Address:m1Data], buf[m1Data:], buf[m1ECC:])
	case Mode2Form1:
		eccWriteSector(zeroAddress[:], buf[0x010:], buf[m1ECC:])
	case Mode2Form2, Literal:
	}
}

// OutputSlice returns the slice of a reconstructed full buffer that holds
// the actual raw-image bytes for typ: the whole buffer for Mode1, or the
// buffer with the synthetic sync/address prefix dropped for Mode 2, which
// never stored that prefix on disc.
func OutputSlice(buf *[FullSize]byte, typ Type) []byte {
	switch typ {
	case Mode1:
		return buf[:FullSize]
	case Mode2Form1, Mode2Form2:
		return buf[0x010 : 0x010+2336]
	default:
		return nil
	}
}
