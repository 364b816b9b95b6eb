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
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// Creates an image from the file with the given name, and assigns the given ID
func NewImageFromFile(fileName string, id int) (i *Image, err error) {
	i = &Image{ID: id}
	return i, i.ReadFile(fileName)
}

// Read image data from the file with the given name. The decoder is chosen by suffix
// for TIFF, BMP and WebP, and by content sniffing otherwise.
func (im *Image) ReadFile(fileName string) error {
	f, err := os.Open(filepath.Clean(fileName))
	if err != nil {
		return err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var src image.Image
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".tif", ".tiff":
		src, err = tiff.Decode(r)
	case ".bmp":
		src, err = bmp.Decode(r)
	case ".webp":
		src, err = webp.Decode(r)
	default:
		src, _, err = image.Decode(r)
	}
	if err != nil {
		return fmt.Errorf("%d: decoding %s: %w", im.ID, fileName, err)
	}

	im.FileName = fileName
	im.setFromStdImage(src)
	return nil
}

// Decodes an image from the given reader. Format is detected from the content.
// Returns the image and the name of the detected format
func Decode(r io.Reader) (im *Image, format string, err error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode: %w", err)
	}
	return FromStdImage(src), format, nil
}

// Returned when an image declares more pixels than allowed
var ErrTooLarge = errors.New("image too large")

// Returns ErrTooLarge if width*height exceeds maxPixels
func CheckDimensions(width, height int, maxPixels int64) error {
	if pixels := int64(width) * int64(height); pixels > maxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, width, height, maxPixels)
	}
	return nil
}

// Returns the dimensions and format declared in the image header, without decoding pixels
func DecodeConfig(bs []byte) (width, height int, format string, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(bs))
	if err != nil {
		return 0, 0, "", fmt.Errorf("decode: %w", err)
	}
	return cfg.Width, cfg.Height, format, nil
}

// Converts a golang image into an 8-bit image. Keeps the number of channels
// implied by the color model: one for grayscale, four for models with alpha, three otherwise
func FromStdImage(src image.Image) *Image {
	im := &Image{}
	im.setFromStdImage(src)
	return im
}

func (im *Image) setFromStdImage(src image.Image) {
	b := src.Bounds()
	width, height := b.Dx(), b.Dy()
	channels := colorModelToChannels(src.ColorModel())
	im.Width, im.Height, im.Channels = width, height, channels
	im.Pix = make([]uint8, width*height*channels)

	switch channels {
	case 1:
		gray := image.NewGray(image.Rect(0, 0, width, height))
		draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Src)
		for y := 0; y < height; y++ {
			copy(im.Pix[y*width:(y+1)*width], gray.Pix[y*gray.Stride:y*gray.Stride+width])
		}

	case 4:
		nrgba := image.NewNRGBA(image.Rect(0, 0, width, height))
		draw.Draw(nrgba, nrgba.Bounds(), src, b.Min, draw.Src)
		for y := 0; y < height; y++ {
			copy(im.Pix[y*width*4:(y+1)*width*4], nrgba.Pix[y*nrgba.Stride:y*nrgba.Stride+width*4])
		}

	default:
		rgba := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
		for y := 0; y < height; y++ {
			srcRow := rgba.Pix[y*rgba.Stride:]
			dstRow := im.Pix[y*width*3:]
			for x := 0; x < width; x++ {
				dstRow[x*3+0] = srcRow[x*4+0]
				dstRow[x*3+1] = srcRow[x*4+1]
				dstRow[x*3+2] = srcRow[x*4+2]
			}
		}
	}
}

// Number of channels to keep for a given color model
func colorModelToChannels(m color.Model) int {
	switch m {
	case color.GrayModel, color.Gray16Model, color.AlphaModel, color.Alpha16Model:
		return 1
	case color.NRGBAModel, color.NRGBA64Model, color.NYCbCrAModel:
		return 4
	default:
		return 3
	}
}
