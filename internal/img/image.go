// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package img

import (
	"fmt"
)

// An 8-bit image held fully in memory.
// Samples are interleaved row by row, so the shape is (Height, Width, Channels).
// Color images use channel order R, G, B. Grayscale images have one channel,
// images with an alpha channel have four (R, G, B, A).
type Image struct {
	ID       int    // Sequential ID number, for log output
	FileName string // Original file name, if any, for log output

	Width    int     // Number of columns
	Height   int     // Number of rows
	Channels int     // Number of samples per pixel
	Pix      []uint8 // The image data, len(Pix)==Width*Height*Channels
}

// Creates a zero-initialized image of the given shape
func NewImage(width, height, channels int) *Image {
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]uint8, width*height*channels),
	}
}

// Creates a new image with the same metadata and shape as the given one. Pixel data is zeroed, not copied
func NewImageFromImage(im *Image) *Image {
	res := NewImage(im.Width, im.Height, im.Channels)
	res.ID = im.ID
	res.FileName = im.FileName
	return res
}

// Returns a deep copy of the image
func (im *Image) Clone() *Image {
	res := NewImageFromImage(im)
	copy(res.Pix, im.Pix)
	return res
}

// Number of pixels, i.e. Width*Height
func (im *Image) Pixels() int {
	return im.Width * im.Height
}

// Returns the sample at the given column, row and channel
func (im *Image) At(x, y, c int) uint8 {
	return im.Pix[(y*im.Width+x)*im.Channels+c]
}

// Sets the sample at the given column, row and channel
func (im *Image) Set(x, y, c int, v uint8) {
	im.Pix[(y*im.Width+x)*im.Channels+c] = v
}

// Checks that the pixel buffer matches the declared shape
func (im *Image) Validate() error {
	if im.Width < 0 || im.Height < 0 || im.Channels <= 0 {
		return fmt.Errorf("%d: invalid image shape %s", im.ID, im.DimensionsToString())
	}
	if len(im.Pix) != im.Width*im.Height*im.Channels {
		return fmt.Errorf("%d: pixel buffer has %d samples, shape %s needs %d",
			im.ID, len(im.Pix), im.DimensionsToString(), im.Width*im.Height*im.Channels)
	}
	return nil
}

// Prints image dimensions as WxHxC
func (im *Image) DimensionsToString() string {
	return fmt.Sprintf("%dx%dx%d", im.Width, im.Height, im.Channels)
}

// Short human readable name for the channel layout
func (im *Image) ColorModelToString() string {
	switch im.Channels {
	case 1:
		return "gray"
	case 3:
		return "RGB"
	case 4:
		return "RGBA"
	default:
		return fmt.Sprintf("%d-channel", im.Channels)
	}
}

// Returns the image as three channel RGB. Grayscale samples are replicated into R, G and B,
// and an alpha channel is dropped without blending. RGB images are returned as is
func (im *Image) ToRGB() (*Image, error) {
	if err := im.Validate(); err != nil {
		return nil, err
	}
	if im.Channels == 3 {
		return im, nil
	}
	if im.Channels != 1 && im.Channels != 4 {
		return nil, fmt.Errorf("%d: cannot convert %s image to RGB", im.ID, im.ColorModelToString())
	}
	res := NewImage(im.Width, im.Height, 3)
	res.ID, res.FileName = im.ID, im.FileName
	stride := im.Channels
	for i := 0; i < im.Pixels(); i++ {
		src := im.Pix[i*stride : i*stride+stride]
		dst := res.Pix[i*3 : i*3+3]
		if stride == 1 {
			dst[0], dst[1], dst[2] = src[0], src[0], src[0]
		} else {
			copy(dst, src[:3])
		}
	}
	return res, nil
}
