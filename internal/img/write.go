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
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

var ErrUnknownSuffix = errors.New("unknown suffix")

var ErrUnsupportedChannels = errors.New("unsupported number of channels")

// Output formats
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatTIFF = "tiff"
	FormatBMP  = "bmp"
)

// Default JPEG quality
const DefaultQuality = 95

// Determines the output format from the suffix of the given file name
func FormatFromFileName(fileName string) (string, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".png":
		return FormatPNG, nil
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".tif", ".tiff":
		return FormatTIFF, nil
	case ".bmp":
		return FormatBMP, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownSuffix, filepath.Ext(fileName))
}

// Returns the MIME content type for a given output format
func ContentType(format string) string {
	switch format {
	case FormatJPEG:
		return "image/jpeg"
	case FormatTIFF:
		return "image/tiff"
	case FormatBMP:
		return "image/bmp"
	default:
		return "image/png"
	}
}

// Write the image to the file with the given name. The format is chosen by suffix.
// Quality applies to JPEG only
func (im *Image) WriteFile(fileName string, quality int) error {
	format, err := FormatFromFileName(fileName)
	if err != nil {
		return err
	}
	file, err := os.Create(filepath.Clean(fileName))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err = im.Encode(writer, format, quality); err != nil {
		return err
	}
	return writer.Flush()
}

// Encodes the image in the given format
func (im *Image) Encode(w io.Writer, format string, quality int) error {
	if err := im.Validate(); err != nil {
		return err
	}
	if im.Channels != 1 && im.Channels != 3 && im.Channels != 4 {
		return fmt.Errorf("%d: encoding %s: %w", im.ID, im.DimensionsToString(), ErrUnsupportedChannels)
	}
	out := im.ToStdImage()
	switch format {
	case FormatPNG:
		return png.Encode(w, out)
	case FormatJPEG:
		return jpeg.Encode(w, out, &jpeg.Options{Quality: quality})
	case FormatTIFF:
		return tiff.Encode(w, out, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case FormatBMP:
		return bmp.Encode(w, out)
	}
	return fmt.Errorf("%w %q", ErrUnknownSuffix, format)
}

// Converts the image into a golang image. Three channels become an opaque RGBA image,
// one channel a grayscale image, and four channels a non-premultiplied RGBA image
func (im *Image) ToStdImage() image.Image {
	width, height := im.Width, im.Height
	rect := image.Rect(0, 0, width, height)
	switch im.Channels {
	case 1:
		gray := image.NewGray(rect)
		for y := 0; y < height; y++ {
			copy(gray.Pix[y*gray.Stride:y*gray.Stride+width], im.Pix[y*width:(y+1)*width])
		}
		return gray

	case 4:
		nrgba := image.NewNRGBA(rect)
		for y := 0; y < height; y++ {
			copy(nrgba.Pix[y*nrgba.Stride:y*nrgba.Stride+width*4], im.Pix[y*width*4:(y+1)*width*4])
		}
		return nrgba

	default:
		rgba := image.NewRGBA(rect)
		for y := 0; y < height; y++ {
			srcRow := im.Pix[y*width*im.Channels:]
			dstRow := rgba.Pix[y*rgba.Stride:]
			for x := 0; x < width; x++ {
				dstRow[x*4+0] = srcRow[x*im.Channels+0]
				dstRow[x*4+1] = srcRow[x*im.Channels+1]
				dstRow[x*4+2] = srcRow[x*im.Channels+2]
				dstRow[x*4+3] = 255
			}
		}
		return rgba
	}
}
