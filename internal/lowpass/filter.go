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
	"math"
	"runtime"

	"github.com/mlnoga/lowpass/internal/img"
	"gonum.org/v1/gonum/mat"
)

// Number of color channels the filter operates on
const NumChannels = 3

// Convolution algorithm
type Method int

const (
	// Direct 2D convolution with the full n x n kernel
	MethodDirect Method = iota
	// Row pass followed by column pass with the 1D kernel
	MethodSeparable
)

var methodNames = []string{"direct", "separable"}

func (m Method) String() string {
	if int(m) >= 0 && int(m) < len(methodNames) {
		return methodNames[m]
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

func (m Method) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Method) UnmarshalText(text []byte) error {
	i, err := parseEnum("method", string(text), methodNames)
	if err != nil {
		return err
	}
	*m = Method(i)
	return nil
}

// Conversion of convolution results outside [0,255] into 8-bit samples
type Overflow int

const (
	// Clamp to [0,255], then truncate towards zero
	OverflowClamp Overflow = iota
	// Truncate towards zero, then keep the low 8 bits
	OverflowWrap
)

var overflowNames = []string{"clamp", "wrap"}

func (o Overflow) String() string {
	if int(o) >= 0 && int(o) < len(overflowNames) {
		return overflowNames[o]
	}
	return fmt.Sprintf("Overflow(%d)", int(o))
}

func (o Overflow) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Overflow) UnmarshalText(text []byte) error {
	i, err := parseEnum("overflow", string(text), overflowNames)
	if err != nil {
		return err
	}
	*o = Overflow(i)
	return nil
}

// Settings for a low-pass filter pass over an RGB image
type Filter struct {
	Size       int       `json:"size"       yaml:"size"`
	Shape      Shape     `json:"shape"      yaml:"shape"`
	Centering  Centering `json:"centering"  yaml:"centering"`
	Boundary   Boundary  `json:"boundary"   yaml:"boundary"`
	Method     Method    `json:"method"     yaml:"method"`
	Overflow   Overflow  `json:"overflow"   yaml:"overflow"`
	MaxThreads int       `json:"maxThreads" yaml:"maxThreads"` // channels filtered concurrently, <1 means 1
}

// Creates a filter of given size with default settings: exponential shape, floor centering, zero boundary,
// direct convolution, clamped output, and up to three channels in parallel
func NewFilter(size int) *Filter {
	threads := runtime.GOMAXPROCS(0)
	if threads > NumChannels {
		threads = NumChannels
	}
	return &Filter{
		Size:       size,
		Shape:      ShapeExponential,
		Centering:  CenterFloor,
		Boundary:   BoundaryZero,
		Method:     MethodDirect,
		Overflow:   OverflowClamp,
		MaxThreads: threads,
	}
}

// Checks the size and all enumerated settings
func (f *Filter) Validate() error {
	if f.Size <= 0 || f.Size > MaxFilterSize {
		return &DomainError{Size: f.Size}
	}
	enums := []struct {
		kind  string
		v     int
		names []string
	}{
		{"shape", int(f.Shape), shapeNames},
		{"centering", int(f.Centering), centeringNames},
		{"boundary", int(f.Boundary), boundaryNames},
		{"method", int(f.Method), methodNames},
		{"overflow", int(f.Overflow), overflowNames},
	}
	for _, e := range enums {
		if err := checkEnum(e.kind, e.v, e.names); err != nil {
			return err
		}
	}
	return nil
}

// Blurs the image with a filter of given size and default settings
func ApplyToImage(im *img.Image, size int) (*img.Image, error) {
	return NewFilter(size).Apply(im)
}

// Applies the filter to the R, G and B channels of the image independently, and returns
// a newly allocated image of identical shape. The input is not modified
func (f *Filter) Apply(im *img.Image) (*img.Image, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := CheckShape(im); err != nil {
		return nil, err
	}
	k1, err := BuildKernel1DShaped(f.Size, f.Centering, f.Shape)
	if err != nil {
		return nil, err
	}
	var k2 *mat.Dense
	if f.Method == MethodDirect {
		k2 = BuildKernel2D(k1)
	}

	planes := make([]*Plane, NumChannels)
	threads := f.MaxThreads
	if threads < 1 {
		threads = 1
	}
	sem := make(chan bool, threads)
	for c := 0; c < NumChannels; c++ {
		sem <- true
		go func(c int) {
			defer func() { <-sem }()
			ch := ExtractChannel(im, c)
			if f.Method == MethodSeparable {
				planes[c] = ApplyToChannelSeparable(ch, k1, f.Boundary)
			} else {
				planes[c] = ApplyToChannel(ch, k2, f.Boundary)
			}
		}(c)
	}
	for i := 0; i < cap(sem); i++ { // wait for goroutines to finish
		sem <- true
	}

	res := img.NewImageFromImage(im)
	for c, p := range planes {
		InsertChannel(res, c, p, f.Overflow)
	}
	return res, nil
}

// Returns an error unless the image has exactly three channels and a matching pixel buffer
func CheckShape(im *img.Image) error {
	if im == nil {
		return &ShapeError{}
	}
	if im.Channels != NumChannels || im.Width < 0 || im.Height < 0 || len(im.Pix) != im.Width*im.Height*im.Channels {
		return &ShapeError{Width: im.Width, Height: im.Height, Channels: im.Channels, Samples: len(im.Pix)}
	}
	return nil
}

// Copies channel c of the image into a new floating point plane
func ExtractChannel(im *img.Image, c int) *Plane {
	p := NewPlane(im.Width, im.Height)
	stride := im.Channels
	for i := range p.Data {
		p.Data[i] = float64(im.Pix[i*stride+c])
	}
	return p
}

// Converts the plane to 8-bit samples with the given overflow policy, and stores them in channel c of the image
func InsertChannel(im *img.Image, c int, p *Plane, overflow Overflow) {
	stride := im.Channels
	for i, v := range p.Data {
		im.Pix[i*stride+c] = ToUint8(v, overflow)
	}
}

// Converts a convolution result to an 8-bit sample by truncation towards zero.
// NaN maps to zero under both policies
func ToUint8(v float64, overflow Overflow) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	if overflow == OverflowWrap {
		return uint8(int64(v))
	}
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
