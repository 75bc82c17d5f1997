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

	"github.com/go-ecm/ecm/chd"
	"github.com/go-ecm/ecm/ioport"
)

// chdInput adapts an opened CHD image to ioport.Input, presenting its
// decompressed hunks as a flat raw 2352-byte-per-sector stream so the
// Encoder can treat a .chd the same way it treats a plain .bin.
type chdInput struct {
	img  *chd.CHD
	ra   interface{ ReadAt(p []byte, off int64) (int, error) }
	size int64
}

func (c *chdInput) ReadAt(p []byte, off int64) (int, error) {
	n, err := c.ra.ReadAt(p, off)
	if err != nil {
		return n, fmt.Errorf("chd: read: %w", err)
	}
	return n, nil
}

func (c *chdInput) Size() (int64, bool) { return c.size, true }

// Close releases the underlying CHD file.
func (c *chdInput) Close() error {
	if err := c.img.Close(); err != nil {
		return fmt.Errorf("chd: close: %w", err)
	}
	return nil
}

// OpenCHDInput opens a CHD disc image at path and exposes it as an
// ioport.Input over its raw, subchannel-stripped 2352-byte sector stream,
// letting the Encoder strip a CHD's redundant bytes exactly as it would a
// plain raw .bin dump.
func OpenCHDInput(path string) (ioport.Input, io.Closer, error) {
	img, err := chd.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrOpeningInputFile, err)
	}

	in := &chdInput{
		img:  img,
		ra:   img.RawSectorReader(),
		size: img.RawSize(),
	}
	return in, in, nil
}
