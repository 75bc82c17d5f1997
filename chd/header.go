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

package chd

import (
	"encoding/binary"
	"fmt"
	"io"
)

// chdMagic is the 8-byte signature at the start of every CHD file.
var chdMagic = [8]byte{'M', 'C', 'o', 'm', 'p', 'r', 'H', 'D'}

// Header sizes for each supported CHD version.
const (
	headerSizeV3 = 120
	headerSizeV4 = 108
	headerSizeV5 = 124
)

// Header holds the fields of a parsed CHD header that the raw sector reader
// needs: where the hunk map and metadata chain live, how big a hunk is, and
// which codec(s) compress it. CHD carries per-file content hashes (SHA1,
// parent SHA1) for its own game-identification use case; nothing here reads
// a hash to strip ECC bytes, so those fields are parsed-and-discarded rather
// than kept.
type Header struct {
	Magic        [8]byte
	HeaderSize   uint32
	Version      uint32
	Compressors  [4]uint32 // V5 codec tags
	LogicalBytes uint64    // total uncompressed size
	MapOffset    uint64    // offset to hunk map
	MetaOffset   uint64    // offset to metadata chain
	HunkBytes    uint32
	UnitBytes    uint32 // bytes per sector+subchannel unit

	// compression is the V3/V4 single codec tag; V5 files carry up to four
	// in Compressors instead.
	compression uint32
	totalHunks  uint32 // V3/V4 only; V5 derives this from LogicalBytes/HunkBytes
}

func parseHeader(r io.Reader) (*Header, error) {
	prefix := make([]byte, 12)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}

	var h Header
	copy(h.Magic[:], prefix[:8])
	if h.Magic != chdMagic {
		return nil, ErrInvalidMagic
	}
	h.HeaderSize = binary.BigEndian.Uint32(prefix[8:12])

	remaining := int(h.HeaderSize) - 12
	if remaining <= 0 {
		return nil, fmt.Errorf("%w: header size %d", ErrInvalidHeader, h.HeaderSize)
	}
	body := make([]byte, remaining)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	h.Version = binary.BigEndian.Uint32(body[0:4])

	var err error
	switch h.Version {
	case 5:
		err = h.parseV5(body)
	case 4:
		err = h.parseV4(body)
	case 3:
		err = h.parseV3(body)
	default:
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedVersion, h.Version)
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// parseV5 parses the 124-byte V5 header. Layout after magic+size+version:
// 4 compressor tags, logical/map/meta offsets, hunk/unit bytes, then three
// 20-byte SHA1 fields this package has no use for and skips.
func (h *Header) parseV5(buf []byte) error {
	if len(buf) < headerSizeV5-12 {
		return fmt.Errorf("%w: buffer too small for V5", ErrInvalidHeader)
	}
	for i := range h.Compressors {
		h.Compressors[i] = binary.BigEndian.Uint32(buf[4+4*i : 8+4*i])
	}
	h.LogicalBytes = binary.BigEndian.Uint64(buf[20:28])
	h.MapOffset = binary.BigEndian.Uint64(buf[28:36])
	h.MetaOffset = binary.BigEndian.Uint64(buf[36:44])
	h.HunkBytes = binary.BigEndian.Uint32(buf[44:48])
	h.UnitBytes = binary.BigEndian.Uint32(buf[48:52])
	return nil
}

// parseV4 parses the 108-byte V4 header. V4 has no per-unit size field (CD
// images always use 2448-byte subchannel-padded units) and places the hunk
// map immediately after the header rather than at a stored offset.
func (h *Header) parseV4(buf []byte) error {
	if len(buf) < headerSizeV4-12 {
		return fmt.Errorf("%w: buffer too small for V4", ErrInvalidHeader)
	}
	h.compression = binary.BigEndian.Uint32(buf[8:12])
	h.totalHunks = binary.BigEndian.Uint32(buf[12:16])
	h.LogicalBytes = binary.BigEndian.Uint64(buf[16:24])
	h.MetaOffset = binary.BigEndian.Uint64(buf[24:32])
	h.HunkBytes = binary.BigEndian.Uint32(buf[32:36])
	h.UnitBytes = 2448
	h.MapOffset = uint64(h.HeaderSize)
	return nil
}

// parseV3 parses the 120-byte V3 header: same layout as V4 plus an MD5 pair
// ahead of the hunk-bytes field that this package skips over.
func (h *Header) parseV3(buf []byte) error {
	if len(buf) < headerSizeV3-12 {
		return fmt.Errorf("%w: buffer too small for V3", ErrInvalidHeader)
	}
	h.compression = binary.BigEndian.Uint32(buf[8:12])
	h.totalHunks = binary.BigEndian.Uint32(buf[12:16])
	h.LogicalBytes = binary.BigEndian.Uint64(buf[16:24])
	h.MetaOffset = binary.BigEndian.Uint64(buf[24:32])
	// MD5 + parent MD5 (32 bytes at buf[32:64]) skipped.
	h.HunkBytes = binary.BigEndian.Uint32(buf[64:68])
	h.UnitBytes = 2448
	h.MapOffset = uint64(h.HeaderSize)
	return nil
}

// NumHunks returns the total number of hunks in the CHD file.
func (h *Header) NumHunks() uint32 {
	if h.totalHunks > 0 {
		return h.totalHunks
	}
	if h.HunkBytes == 0 {
		return 0
	}
	//nolint:gosec // result bounded by file size, will not overflow for valid CHD files
	return uint32((h.LogicalBytes + uint64(h.HunkBytes) - 1) / uint64(h.HunkBytes))
}

// IsCompressed reports whether the CHD uses hunk compression at all.
func (h *Header) IsCompressed() bool {
	if h.Version == 5 {
		return h.Compressors[0] != 0
	}
	return h.compression != 0
}
