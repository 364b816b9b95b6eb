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
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/mlnoga/lowpass/internal/img"
	"github.com/valyala/fastrand"
)

func squareImage() *img.Image {
	im := img.NewImage(4, 4, 3)
	for _, yx := range [][2]int{{1, 1}, {1, 2}, {2, 1}, {2, 2}} {
		im.Set(yx[1], yx[0], 0, 255)
	}
	return im
}

func TestApplyToImageSquare(t *testing.T) {
	res, err := ApplyToImage(squareImage(), 2)
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if g := res.At(x, y, 1); g != 0 {
				t.Errorf("G[%d][%d]=%d; want 0", y, x, g)
			}
			if b := res.At(x, y, 2); b != 0 {
				t.Errorf("B[%d][%d]=%d; want 0", y, x, b)
			}
		}
	}
	for i := 0; i < 4; i++ {
		if r := res.At(i, 0, 0); r != 0 {
			t.Errorf("R[0][%d]=%d; want 0", i, r)
		}
		if r := res.At(0, i, 0); r != 0 {
			t.Errorf("R[%d][0]=%d; want 0", i, r)
		}
	}

	// energy spreads into formerly dark pixels
	tcs := []struct {
		y, x int
		want uint8
	}{
		{1, 1, 28}, {1, 3, 56}, {3, 1, 56}, {3, 3, 113},
	}
	for _, tc := range tcs {
		if r := res.At(tc.x, tc.y, 0); r != tc.want {
			t.Errorf("R[%d][%d]=%d; want %d", tc.y, tc.x, r, tc.want)
		}
	}
	for _, yx := range [][2]int{{1, 2}, {2, 1}} {
		if r := res.At(yx[1], yx[0], 0); r < 84 || r > 85 {
			t.Errorf("R[%d][%d]=%d; want 84..85", yx[0], yx[1], r)
		}
	}
	for _, yx := range [][2]int{{2, 3}, {3, 2}} {
		if r := res.At(yx[1], yx[0], 0); r < 169 || r > 170 {
			t.Errorf("R[%d][%d]=%d; want 169..170", yx[0], yx[1], r)
		}
	}
	if r := res.At(2, 2, 0); r < 254 {
		t.Errorf("R[2][2]=%d; want >=254", r)
	}
}

func TestApplyToImageShape(t *testing.T) {
	dims := [][2]int{{1, 1}, {4, 4}, {13, 5}, {5, 13}, {40, 3}}
	for _, size := range []int{1, 2, 7, 40} {
		for _, d := range dims {
			im := img.NewImage(d[0], d[1], 3)
			res, err := ApplyToImage(im, size)
			if err != nil {
				t.Fatalf("size=%d dims=%v: %v", size, d, err)
			}
			if res.Width != im.Width || res.Height != im.Height || res.Channels != im.Channels || len(res.Pix) != len(im.Pix) {
				t.Errorf("size=%d shape=%s; want %s", size, res.DimensionsToString(), im.DimensionsToString())
			}
		}
	}
}

func TestApplyToImageDoesNotModifyInput(t *testing.T) {
	im := randomImage(9, 6)
	orig := im.Clone()
	res, err := ApplyToImage(im, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(im.Pix, orig.Pix) {
		t.Errorf("input was modified")
	}
	if &res.Pix[0] == &im.Pix[0] {
		t.Errorf("output shares the input buffer")
	}
}

func TestApplyToImageConstant(t *testing.T) {
	width, height := 20, 15
	for _, c := range []uint8{0, 1, 128, 200, 255} {
		im := img.NewImage(width, height, 3)
		for i := range im.Pix {
			im.Pix[i] = c
		}

		// zero boundary: constant wherever the kernel lies inside the image
		n := 6
		res, err := ApplyToImage(im, n)
		if err != nil {
			t.Fatal(err)
		}
		k := (n - 1) / 2
		for y := n - 1 - k; y <= height-1-k; y++ {
			for x := n - 1 - k; x <= width-1-k; x++ {
				for ch := 0; ch < 3; ch++ {
					if v := res.At(x, y, ch); int(c)-int(v) > 1 || v > c {
						t.Errorf("c=%d zero [%d][%d][%d]=%d; want %d within truncation", c, y, x, ch, v, c)
					}
				}
			}
		}

		// reflect boundary: constant everywhere, even with a kernel larger than the image
		for _, size := range []int{n, 40} {
			f := NewFilter(size)
			f.Boundary = BoundaryReflect
			res, err = f.Apply(im)
			if err != nil {
				t.Fatal(err)
			}
			for i, v := range res.Pix {
				if int(c)-int(v) > 1 || v > c {
					t.Errorf("c=%d size=%d reflect pix[%d]=%d; want %d within truncation", c, size, i, v, c)
				}
			}
		}
	}
}

func TestApplyToImageChannelIndependence(t *testing.T) {
	rng := fastrand.RNG{}
	im := img.NewImage(10, 7, 3)
	for i := 0; i < im.Pixels(); i++ {
		im.Pix[i*3] = uint8(rng.Uint32n(256))
	}
	for _, method := range []Method{MethodDirect, MethodSeparable} {
		f := NewFilter(5)
		f.Method = method
		res, err := f.Apply(im)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < res.Pixels(); i++ {
			if res.Pix[i*3+1] != 0 || res.Pix[i*3+2] != 0 {
				t.Errorf("%v pixel %d: G=%d B=%d; want 0", method, i, res.Pix[i*3+1], res.Pix[i*3+2])
			}
		}
	}
}

// Each channel must be filtered exactly as if it were the only one
func TestApplyToImageMatchesPerChannel(t *testing.T) {
	im := randomImage(12, 9)
	k1, _ := BuildKernel1D(4)
	k2 := BuildKernel2D(k1)
	for threads := 1; threads <= NumChannels; threads++ {
		f := NewFilter(4)
		f.MaxThreads = threads
		res, err := f.Apply(im)
		if err != nil {
			t.Fatal(err)
		}
		for c := 0; c < 3; c++ {
			p := ApplyToChannel(ExtractChannel(im, c), k2, BoundaryZero)
			for i, v := range p.Data {
				if want := ToUint8(v, OverflowClamp); res.Pix[i*3+c] != want {
					t.Errorf("threads=%d c=%d pix[%d]=%d; want %d", threads, c, i, res.Pix[i*3+c], want)
				}
			}
		}
	}
}

func TestApplyToImageShapeError(t *testing.T) {
	short := img.NewImage(4, 4, 3)
	short.Pix = short.Pix[:40]
	tcs := []*img.Image{
		img.NewImage(4, 4, 1),
		img.NewImage(4, 4, 4),
		short,
		nil,
	}
	for i, im := range tcs {
		res, err := ApplyToImage(im, 5)
		if res != nil {
			t.Errorf("%d: got result; want nil", i)
		}
		var se *ShapeError
		if !errors.As(err, &se) {
			t.Errorf("%d: err=%v; want ShapeError", i, err)
		}
	}
}

func TestApplyToImageDomainError(t *testing.T) {
	for _, size := range []int{0, -5} {
		_, err := ApplyToImage(img.NewImage(2, 2, 3), size)
		var de *DomainError
		if !errors.As(err, &de) {
			t.Errorf("size=%d err=%v; want DomainError", size, err)
		}
	}
}

func TestApplyToImageOptionError(t *testing.T) {
	tcs := []struct {
		option string
		set    func(f *Filter)
	}{
		{"method", func(f *Filter) { f.Method = Method(7) }},
		{"shape", func(f *Filter) { f.Shape = Shape(-1) }},
		{"centering", func(f *Filter) { f.Centering = Centering(2) }},
		{"boundary", func(f *Filter) { f.Boundary = Boundary(9) }},
		{"overflow", func(f *Filter) { f.Overflow = Overflow(3) }},
	}
	for _, tc := range tcs {
		f := NewFilter(3)
		tc.set(f)
		res, err := f.Apply(img.NewImage(4, 4, 3))
		var oe *OptionError
		if !errors.As(err, &oe) || oe.Option != tc.option {
			t.Errorf("%s: err=%v; want OptionError", tc.option, err)
		}
		if res != nil {
			t.Errorf("%s: got result; want nil", tc.option)
		}
	}
}

func TestToUint8(t *testing.T) {
	tcs := []struct {
		v        float64
		overflow Overflow
		want     uint8
	}{
		{12.9, OverflowClamp, 12},
		{254.999, OverflowClamp, 254},
		{-3.7, OverflowClamp, 0},
		{255.5, OverflowClamp, 255},
		{300, OverflowClamp, 255},
		{math.NaN(), OverflowClamp, 0},
		{12.9, OverflowWrap, 12},
		{256.7, OverflowWrap, 0},
		{300, OverflowWrap, 44},
		{-1.5, OverflowWrap, 255},
		{math.NaN(), OverflowWrap, 0},
	}
	for _, tc := range tcs {
		if got := ToUint8(tc.v, tc.overflow); got != tc.want {
			t.Errorf("ToUint8(%g,%v)=%d; want %d", tc.v, tc.overflow, got, tc.want)
		}
	}
}

func TestEnumText(t *testing.T) {
	var b Boundary
	if err := b.UnmarshalText([]byte("reflect")); err != nil || b != BoundaryReflect {
		t.Errorf("boundary=%v err=%v; want reflect", b, err)
	}
	var m Method
	if err := m.UnmarshalText([]byte("SEPARABLE")); err != nil || m != MethodSeparable {
		t.Errorf("method=%v err=%v; want separable", m, err)
	}
	var o Overflow
	if err := o.UnmarshalText([]byte("wrap")); err != nil || o != OverflowWrap {
		t.Errorf("overflow=%v err=%v; want wrap", o, err)
	}
	if err := o.UnmarshalText([]byte("saturate")); err == nil {
		t.Errorf("unknown overflow accepted")
	}
	if s := Overflow(7).String(); s != "Overflow(7)" {
		t.Errorf("String()=%s; want Overflow(7)", s)
	}
}

func randomImage(width, height int) *img.Image {
	rng := fastrand.RNG{}
	im := img.NewImage(width, height, 3)
	for i := range im.Pix {
		im.Pix[i] = uint8(rng.Uint32n(256))
	}
	return im
}
