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
	"fmt"
	"sync"
)

// Codec tags, the 4-byte big-endian ASCII strings CHD stores in its header
// to say how each hunk is compressed. The "cd"-prefixed tags additionally
// split a hunk into sector data plus subchannel data, each compressed
// separately. Of those four, the cdzl and cdlz decoders read the ECC bitmap
// that makes this package rebuild a sector's sync, EDC and ECC bytes (see
// reconstructCDSector in codec_lzma.go); the cdzs and cdfl decoders read no
// such bitmap.
const (
	CodecNone   uint32 = 0x00000000
	CodecZlib   uint32 = 0x7a6c6962 // "zlib"
	CodecLZMA   uint32 = 0x6c7a6d61 // "lzma"
	CodecHuff   uint32 = 0x68756666 // "huff"
	CodecFLAC   uint32 = 0x666c6163 // "flac"
	CodecZstd   uint32 = 0x7a737464 // "zstd"
	CodecCDZlib uint32 = 0x63647a6c // "cdzl": sectors via zlib, subchannel via zlib
	CodecCDLZMA uint32 = 0x63646c7a // "cdlz": sectors via LZMA, subchannel via zlib
	CodecCDFLAC uint32 = 0x6364666c // "cdfl": sectors via FLAC, subchannel via zlib
	CodecCDZstd uint32 = 0x63647a73 // "cdzs": sectors via Zstandard, subchannel via zlib
)

// Codec decompresses one CHD hunk. dst is pre-sized to the hunk's
// decompressed length; Decompress returns how much of it was filled.
type Codec interface {
	Decompress(dst, src []byte) (int, error)
}

// CDCodec additionally knows how to split a hunk into interleaved sector and
// subchannel streams, each with its own inner compression.
type CDCodec interface {
	Codec
	DecompressCD(dst, src []byte, hunkBytes, frames int) (int, error)
}

var (
	codecRegistryMu sync.RWMutex
	codecRegistry   = make(map[uint32]func() Codec)
)

// RegisterCodec makes a codec factory available under tag. Each codec_*.go
// file calls this from an init func, so the set of supported codecs is
// exactly the set of files compiled into the binary.
func RegisterCodec(tag uint32, factory func() Codec) {
	codecRegistryMu.Lock()
	defer codecRegistryMu.Unlock()
	codecRegistry[tag] = factory
}

// GetCodec instantiates the codec registered for tag.
func GetCodec(tag uint32) (Codec, error) {
	codecRegistryMu.RLock()
	factory, ok := codecRegistry[tag]
	codecRegistryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: 0x%08x (%s)", ErrUnsupportedCodec, tag, codecTagToString(tag))
	}
	return factory(), nil
}

// codecTagToString renders a codec tag as its 4-character ASCII name, for
// error messages.
func codecTagToString(tag uint32) string {
	if tag == 0 {
		return "none"
	}
	return string([]byte{byte(tag >> 24), byte(tag >> 16), byte(tag >> 8), byte(tag)})
}

// IsCDCodec reports whether tag is one of the sector+subchannel codecs.
func IsCDCodec(tag uint32) bool {
	switch tag {
	case CodecCDZlib, CodecCDLZMA, CodecCDFLAC, CodecCDZstd:
		return true
	default:
		return false
	}
}
