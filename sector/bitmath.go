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

// Package sector implements CD-ROM sector classification and reconstruction:
// detecting which bytes of a Mode 1 or Mode 2 (XA) sector are deterministically
// derivable from its user data, and regenerating them losslessly.
package sector

// eccFLUT and eccBLUT are the GF(2^8) forward and backward multiplication
// tables used by the P/Q error-correction code, built from the CD-ROM
// primitive polynomial 0x11D.
var eccFLUT, eccBLUT [256]byte

// edcLUT is the lookup table for the CD-ROM EDC, a CRC-32 variant with
// polynomial 0xD8018001 (reflected), no initial or final XOR beyond the
// running value itself.
var edcLUT [256]uint32

func init() {
	for i := range 256 {
		j := byte((i << 1) ^ selectPoly(i))
		eccFLUT[i] = j
		eccBLUT[i^int(j)] = byte(i)

		edc := uint32(i)
		for range 8 {
			if edc&1 != 0 {
				edc = (edc >> 1) ^ 0xD8018001
			} else {
				edc >>= 1
			}
		}
		edcLUT[i] = edc
	}
}

func selectPoly(i int) int {
	if i&0x80 != 0 {
		return 0x11D
	}
	return 0
}

// EDC runs the rolling EDC over data, continuing from edc. It is exported
// because the encoder and decoder reuse it to maintain the whole-file EDC
// trailer, the same way the original library's edc_compute serves both
// per-sector and whole-file checksums.
func EDC(edc uint32, data []byte) uint32 {
	for _, b := range data {
		edc = (edc >> 8) ^ edcLUT[(edc^uint32(b))&0xFF]
	}
	return edc
}

// le32 reads a 32-bit little-endian value.
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// PutLE32 writes a 32-bit little-endian value.
func PutLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// LE32 reads a 32-bit little-endian value.
func LE32(b []byte) uint32 { return le32(b) }

// eccCheckSector verifies the P and Q ECC codes for a sector's address+data
// region against the stored ecc bytes.
func eccCheckSector(address, data, ecc []byte) bool {
	return eccCheckPQ(address, data, 86, 24, 2, 86, ecc) && // P
		eccCheckPQ(address, data, 52, 43, 86, 88, ecc[0xAC:]) // Q
}

// eccWriteSector computes and writes the P and Q ECC codes for a sector's
// address+data region.
func eccWriteSector(address, data, ecc []byte) {
	eccWritePQ(address, data, 86, 24, 2, 86, ecc)        // P
	eccWritePQ(address, data, 52, 43, 86, 88, ecc[0xAC:]) // Q
}

// eccCheckPQ and eccWritePQ implement one parameterized ECC block (either P
// or Q, selected by the major/minor parameters) so the algorithm is written
// once instead of duplicated per code.
func eccCheckPQ(address, data []byte, majorCount, minorCount, majorMult, minorInc int, ecc []byte) bool {
	size := majorCount * minorCount
	for major := range majorCount {
		index := (major>>1)*majorMult + (major & 1)
		var eccA, eccB byte
		for range minorCount {
			var temp byte
			if index < 4 {
				temp = address[index]
			} else {
				temp = data[index-4]
			}
			index += minorInc
			if index >= size {
				index -= size
			}
			eccA ^= temp
			eccB ^= temp
			eccA = eccFLUT[eccA]
		}
		eccA = eccBLUT[eccFLUT[eccA]^eccB]
		if ecc[major] != eccA || ecc[major+majorCount] != (eccA^eccB) {
			return false
		}
	}
	return true
}

func eccWritePQ(address, data []byte, majorCount, minorCount, majorMult, minorInc int, ecc []byte) {
	size := majorCount * minorCount
	for major := range majorCount {
		index := (major>>1)*majorMult + (major & 1)
		var eccA, eccB byte
		for range minorCount {
			var temp byte
			if index < 4 {
				temp = address[index]
			} else {
				temp = data[index-4]
			}
			index += minorInc
			if index >= size {
				index -= size
			}
			eccA ^= temp
			eccB ^= temp
			eccA = eccFLUT[eccA]
		}
		eccA = eccBLUT[eccFLUT[eccA]^eccB]
		ecc[major] = eccA
		ecc[major+majorCount] = eccA ^ eccB
	}
}
