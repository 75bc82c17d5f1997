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

	"github.com/klauspost/compress/zstd"
)

func init() {
	RegisterCodec(CodecZstd, func() Codec { return &zstdCodec{} })
	RegisterCodec(CodecCDZstd, func() Codec { return &cdZstdCodec{} })
}

// zstdCodec decompresses a plain (non-CD) Zstandard hunk.
type zstdCodec struct {
	decoder *zstd.Decoder
}

func (z *zstdCodec) Decompress(dst, src []byte) (int, error) {
	if err := z.ensureDecoder(); err != nil {
		return 0, err
	}
	result, err := z.decoder.DecodeAll(src, dst[:0])
	if err != nil {
		return 0, fmt.Errorf("%w: zstd: %w", ErrDecompressFailed, err)
	}
	if len(result) > len(dst) {
		return 0, fmt.Errorf("%w: zstd: output too large", ErrDecompressFailed)
	}
	if len(result) > 0 && &result[0] != &dst[0] {
		copy(dst, result)
	}
	return len(result), nil
}

func (z *zstdCodec) ensureDecoder() error {
	if z.decoder != nil {
		return nil
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return fmt.Errorf("%w: zstd init: %w", ErrDecompressFailed, err)
	}
	z.decoder = decoder
	return nil
}

// cdZstdCodec decompresses a "cdzs" hunk: sector data with Zstandard,
// subchannel data with zlib, unlike cdlz/cdzl this format carries no
// ECC-cleared bitmap, so reconstructCDSector is never invoked here.
type cdZstdCodec struct {
	decoder *zstd.Decoder
}

func (c *cdZstdCodec) Decompress(dst, src []byte) (int, error) {
	return c.DecompressCD(dst, src, len(dst), len(dst)/2448)
}

// DecompressCD reads a 4-byte big-endian compressed-sector-length prefix,
// the Zstandard sector stream, then a zlib subchannel tail, and interleaves
// both into dst frame by frame.
func (c *cdZstdCodec) DecompressCD(dst, src []byte, _, frames int) (int, error) {
	if len(src) < 4 {
		return 0, fmt.Errorf("%w: cdzs: source too small", ErrDecompressFailed)
	}

	sectorCompLen := binary.BigEndian.Uint32(src[0:4])
	if int(sectorCompLen) > len(src)-4 {
		return 0, fmt.Errorf("%w: cdzs: invalid sector length %d", ErrDecompressFailed, sectorCompLen)
	}
	sectorData := src[4 : 4+sectorCompLen]
	subData := src[4+sectorCompLen:]

	totalSectorBytes := frames * cdSectorSize
	totalSubBytes := frames * cdSubSize

	if err := c.ensureDecoder(); err != nil {
		return 0, err
	}
	sectorDst, err := c.decoder.DecodeAll(sectorData, make([]byte, 0, totalSectorBytes))
	if err != nil {
		return 0, fmt.Errorf("%w: cdzs sector: %w", ErrDecompressFailed, err)
	}

	subDst := decompressCDSubchannel(subData, totalSubBytes)
	return interleaveCDData(dst, sectorDst, subDst, frames), nil
}

func (c *cdZstdCodec) ensureDecoder() error {
	if c.decoder != nil {
		return nil
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return fmt.Errorf("%w: cdzs init: %w", ErrDecompressFailed, err)
	}
	c.decoder = decoder
	return nil
}
