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

// Package chd parses CHD (Compressed Hunks of Data) disc images, MAME's
// compressed disc container format, far enough to hand the encoder a raw
// CD-ROM sector stream: header, hunk map, and the codec registry needed to
// decompress each hunk. It does not interpret a filesystem inside that
// stream; that is the encoder's job, the same way it is for a plain .bin.
package chd

import (
	"fmt"
	"io"
	"os"
)

// CHD represents an opened CHD disc image, ready to be read as a sequence
// of raw 2352-byte CD-ROM sectors via RawSectorReader.
type CHD struct {
	file    *os.File
	header  *Header
	hunkMap *HunkMap
	tracks  []Track
}

// Open opens a CHD file and parses its header, hunk map, and track metadata.
func Open(path string) (*CHD, error) {
	file, err := os.Open(path) //nolint:gosec // path is operator-supplied, same as the ECM CLI
	if err != nil {
		return nil, fmt.Errorf("open CHD file: %w", err)
	}

	c := &CHD{file: file}
	if err := c.init(); err != nil {
		_ = file.Close()
		return nil, err
	}
	return c, nil
}

func (c *CHD) init() error {
	header, err := parseHeader(c.file)
	if err != nil {
		return fmt.Errorf("parse header: %w", err)
	}
	c.header = header

	hunkMap, err := NewHunkMap(c.file, header)
	if err != nil {
		return fmt.Errorf("create hunk map: %w", err)
	}
	c.hunkMap = hunkMap

	if header.MetaOffset == 0 {
		return nil
	}
	entries, err := parseMetadata(c.file, header.MetaOffset)
	if err != nil {
		// Track metadata is informational only; an ECM encode doesn't need
		// track boundaries to strip redundant sector bytes, so a malformed
		// metadata chain isn't fatal to opening the image.
		return nil //nolint:nilerr // intentional: metadata parsing failure is non-fatal
	}
	tracks, err := parseTracks(entries)
	if err != nil {
		return nil //nolint:nilerr // intentional: track parsing failure is non-fatal
	}
	c.tracks = tracks
	return nil
}

// Close closes the underlying CHD file.
func (c *CHD) Close() error {
	if c.file == nil {
		return nil
	}
	if err := c.file.Close(); err != nil {
		return fmt.Errorf("close CHD file: %w", err)
	}
	return nil
}

// Header returns the parsed CHD header.
func (c *CHD) Header() *Header { return c.header }

// Tracks returns the parsed track metadata, or nil if the CHD carried none
// or it failed to parse.
func (c *CHD) Tracks() []Track { return c.tracks }

// Size returns the CHD's logical (fully decompressed) size in bytes, as
// recorded in its header.
func (c *CHD) Size() int64 {
	//nolint:gosec // Safe: LogicalBytes from a validated CHD header
	return int64(c.header.LogicalBytes)
}

// unitBytes returns the configured per-sector-plus-subchannel stride,
// falling back to the standard CD-ROM-with-subchannel size when the header
// doesn't carry one (true of V3/V4 CHDs).
func (c *CHD) unitBytes() int64 {
	if c.header.UnitBytes != 0 {
		return int64(c.header.UnitBytes)
	}
	return 2448
}

// RawSectorCount returns the number of raw 2352-byte sectors stored across
// every hunk of the image.
func (c *CHD) RawSectorCount() int64 {
	hunkBytes := int64(c.hunkMap.HunkBytes())
	sectorsPerHunk := hunkBytes / c.unitBytes()
	return sectorsPerHunk * int64(c.hunkMap.NumHunks())
}

// RawSize returns the total size, in bytes, of the raw CD-ROM sector stream
// RawSectorReader exposes: RawSectorCount sectors of 2352 bytes each.
func (c *CHD) RawSize() int64 {
	return c.RawSectorCount() * rawSectorSize
}

// RawSectorReader returns an io.ReaderAt over the image's raw, decompressed
// 2352-byte sectors, concatenated in disc order. This is the shape the
// Encoder's lookahead queue expects from any input source.
func (c *CHD) RawSectorReader() io.ReaderAt {
	return &sectorReader{chd: c}
}

// rawSectorSize is the size of a raw CD sector, excluding subchannel data.
const rawSectorSize = 2352

// sectorReader implements io.ReaderAt over a CHD's hunks, presenting them as
// a flat stream of raw 2352-byte sectors regardless of the hunk size or
// per-unit subchannel padding the codec decompressed them with.
type sectorReader struct {
	chd *CHD
}

// sectorLocation holds the computed location of a sector within CHD hunks.
type sectorLocation struct {
	hunkIdx        uint32
	sectorInHunk   int64
	offsetInSector int64
}

func (sr *sectorReader) computeSectorLocation(offset, hunkBytes, unitBytes int64) sectorLocation {
	sectorsPerHunk := hunkBytes / unitBytes
	sector := offset / rawSectorSize
	return sectorLocation{
		hunkIdx:        uint32(sector / sectorsPerHunk), //nolint:gosec // sector index bounded by file size
		sectorInHunk:   sector % sectorsPerHunk,
		offsetInSector: offset % rawSectorSize,
	}
}

// ReadAt reads raw sector bytes at the given offset into the flat,
// subchannel-stripped 2352-byte-per-sector stream.
func (sr *sectorReader) ReadAt(dest []byte, off int64) (int, error) {
	if len(dest) == 0 {
		return 0, nil
	}

	hunkBytes := int64(sr.chd.hunkMap.HunkBytes())
	unitBytes := sr.chd.unitBytes()

	totalRead := 0
	remaining := len(dest)
	currentOff := off

	for remaining > 0 {
		loc := sr.computeSectorLocation(currentOff, hunkBytes, unitBytes)

		hunkData, err := sr.chd.hunkMap.ReadHunk(loc.hunkIdx)
		if err != nil {
			if totalRead > 0 {
				return totalRead, nil
			}
			return 0, fmt.Errorf("read hunk %d: %w", loc.hunkIdx, err)
		}

		sectorOffset := loc.sectorInHunk * unitBytes
		dataStart := sectorOffset + loc.offsetInSector
		dataLen := rawSectorSize - loc.offsetInSector
		if dataStart >= int64(len(hunkData)) {
			break
		}
		if dataStart+dataLen > int64(len(hunkData)) {
			dataLen = int64(len(hunkData)) - dataStart
		}

		toCopy := min(int(dataLen), remaining)
		copy(dest[totalRead:], hunkData[dataStart:dataStart+int64(toCopy)])
		totalRead += toCopy
		remaining -= toCopy
		currentOff += int64(toCopy)
	}

	if totalRead == 0 {
		return 0, io.EOF
	}
	return totalRead, nil
}
