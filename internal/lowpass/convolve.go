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

package lowpass

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// A single image channel with floating point samples, row-major
type Plane struct {
	Width  int
	Height int
	Data   []float64
}

// Creates a zero-initialized plane
func NewPlane(width, height int) *Plane {
	return &Plane{Width: width, Height: height, Data: make([]float64, width*height)}
}

// Returns the sample at column x and row y
func (p *Plane) At(x, y int) float64 {
	return p.Data[y*p.Width+x]
}

// Handling of kernel positions outside the channel
type Boundary int

const (
	// Positions outside the channel count as zero. Matches standard "same" mode convolution
	BoundaryZero Boundary = iota
	// Positions outside the channel are mirrored back inside, repeating the edge sample
	BoundaryReflect
)

var boundaryNames = []string{"zero", "reflect"}

func (b Boundary) String() string {
	if int(b) >= 0 && int(b) < len(boundaryNames) {
		return boundaryNames[b]
	}
	return fmt.Sprintf("Boundary(%d)", int(b))
}

func (b Boundary) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Boundary) UnmarshalText(text []byte) error {
	i, err := parseEnum("boundary", string(text), boundaryNames)
	if err != nil {
		return err
	}
	*b = Boundary(i)
	return nil
}

// Convolves the channel with the 2D kernel, using "same" output sizing: the output has the
// dimensions of the input. Output (i,j) is the full convolution at (i+(kh-1)/2, j+(kw-1)/2),
// so for even kernel sizes the extra tap lies towards the top left.
func ApplyToChannel(ch *Plane, k *mat.Dense, boundary Boundary) *Plane {
	width, height := ch.Width, ch.Height
	kh, kw := k.Dims()
	raw := k.RawMatrix()
	cy, cx := (kh-1)/2, (kw-1)/2
	out := NewPlane(width, height)

	for i := 0; i < height; i++ {
		for j := 0; j < width; j++ {
			sum := float64(0)
			for a := 0; a < kh; a++ {
				y := i + cy - a
				if y < 0 || y >= height {
					if boundary == BoundaryZero {
						continue
					}
					y = reflect(height, y)
				}
				krow := raw.Data[a*raw.Stride : a*raw.Stride+kw]
				row := ch.Data[y*width : (y+1)*width]
				sum += convolvePoint(row, krow, j+cx, boundary)
			}
			out.Data[i*width+j] = sum
		}
	}
	return out
}

// Convolves the channel with the separable kernel k x k^T in two 1D passes.
// Equals ApplyToChannel with BuildKernel2D(k) up to floating point rounding
func ApplyToChannelSeparable(ch *Plane, k []float64, boundary Boundary) *Plane {
	tmp := ConvolveRows(ch, k, boundary)
	return ConvolveColumns(tmp, k, boundary)
}

// Convolves each row of the channel with the 1D kernel, "same" sizing
func ConvolveRows(ch *Plane, k []float64, boundary Boundary) *Plane {
	width, height := ch.Width, ch.Height
	c := (len(k) - 1) / 2
	out := NewPlane(width, height)
	for y := 0; y < height; y++ {
		row := ch.Data[y*width : (y+1)*width]
		for x := 0; x < width; x++ {
			out.Data[y*width+x] = convolvePoint(row, k, x+c, boundary)
		}
	}
	return out
}

// Convolves each column of the channel with the 1D kernel, "same" sizing
func ConvolveColumns(ch *Plane, k []float64, boundary Boundary) *Plane {
	width, height := ch.Width, ch.Height
	c := (len(k) - 1) / 2
	out := NewPlane(width, height)
	col := make([]float64, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			col[y] = ch.Data[y*width+x]
		}
		for y := 0; y < height; y++ {
			out.Data[y*width+x] = convolvePoint(col, k, y+c, boundary)
		}
	}
	return out
}

// Returns sum_b k[b]*data[pos-b] over all taps b, handling out of bounds positions per the boundary mode
func convolvePoint(data, k []float64, pos int, boundary Boundary) float64 {
	size := len(data)
	sum := float64(0)
	if boundary == BoundaryZero {
		// restrict taps to 0 <= pos-b < size
		bMin, bMax := pos-size+1, pos
		if bMin < 0 {
			bMin = 0
		}
		if bMax > len(k)-1 {
			bMax = len(k) - 1
		}
		for b := bMin; b <= bMax; b++ {
			sum += k[b] * data[pos-b]
		}
		return sum
	}
	for b, w := range k {
		sum += w * data[reflect(size, pos-b)]
	}
	return sum
}

// Check if coordinate is within [0, size-1], and if not, reflect out of bounds coordinates back into the value range.
// Folds repeatedly for coordinates more than one size away
func reflect(size, x int) int {
	period := 2 * size
	x %= period
	if x < 0 {
		x += period
	}
	if x >= size {
		x = period - x - 1
	}
	return x
}
