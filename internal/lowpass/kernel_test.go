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
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

const epsilon = 1e-9

type kernel1DTestCase struct {
	Size   int
	Kernel []float64
}

func TestBuildKernel1DValues(t *testing.T) {
	tcs := []kernel1DTestCase{
		{1, []float64{1}},
		{2, []float64{1.0 / 3, 2.0 / 3}},                                 // offsets -1, 0
		{3, []float64{0.75 / 5.25, 1.5 / 5.25, 3.0 / 5.25}},              // offsets -2, -1, 0
		{4, []float64{1.0 / 9, 2.0 / 9, 4.0 / 9, 2.0 / 9}},               // offsets -2, -1, 0, 1
	}

	for _, tc := range tcs {
		kernel, err := BuildKernel1D(tc.Size)
		if err != nil {
			t.Fatalf("n=%d: %v", tc.Size, err)
		}
		if len(kernel) != len(tc.Kernel) {
			t.Fatalf("n=%d len=%d; want %d", tc.Size, len(kernel), len(tc.Kernel))
		}
		for i, k := range kernel {
			if math.Abs(k-tc.Kernel[i]) > epsilon {
				t.Errorf("n=%d k[%d]=%g; want %g", tc.Size, i, k, tc.Kernel[i])
			}
		}
	}
}

func TestBuildKernel1DNormalized(t *testing.T) {
	sizes := []int{1, 2, 3, 5, 7, 16, 39, 40, 41, 100, 255, 1000, MaxFilterSize}
	for _, centering := range []Centering{CenterFloor, CenterSymmetric} {
		for _, n := range sizes {
			kernel, err := BuildKernel1DCentered(n, centering)
			if err != nil {
				t.Fatalf("n=%d %v: %v", n, centering, err)
			}
			if len(kernel) != n {
				t.Errorf("n=%d %v len=%d; want %d", n, centering, len(kernel), n)
			}
			if sum := floats.Sum(kernel); math.Abs(sum-1) > epsilon {
				t.Errorf("n=%d %v sum=%.12f; want 1", n, centering, sum)
			}
			for i, k := range kernel {
				if !(k > 0) {
					t.Errorf("n=%d %v k[%d]=%g; want >0", n, centering, i, k)
				}
			}
		}
	}
}

func TestBuildKernel1DSymmetric(t *testing.T) {
	for n := 1; n <= 101; n++ {
		kernel, err := BuildKernel1DCentered(n, CenterSymmetric)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		for i := range kernel {
			if kernel[i] != kernel[n-1-i] {
				t.Errorf("n=%d k[%d]=%g k[%d]=%g; want equal", n, i, kernel[i], n-1-i, kernel[n-1-i])
			}
		}
	}
}

// With floor centering, the kernel is mirror symmetric around the tap for offset zero,
// which sits at index -floor(-n/2). Taps left of the mirror range hold the extra tail weight.
// For n=1 the only offset is -1, so there is nothing to mirror.
func TestBuildKernel1DFloorMirror(t *testing.T) {
	for n := 2; n <= 101; n++ {
		kernel, err := BuildKernel1D(n)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		center := -floorDiv(-n, 2)
		for d := 1; center+d < n; d++ {
			if kernel[center-d] != kernel[center+d] {
				t.Errorf("n=%d k[%d]=%g k[%d]=%g; want equal", n, center-d, kernel[center-d], center+d, kernel[center+d])
			}
		}
		if floats.MaxIdx(kernel) != center {
			t.Errorf("n=%d peak at %d; want %d", n, floats.MaxIdx(kernel), center)
		}
		for i := 1; i <= center; i++ {
			if kernel[i-1] >= kernel[i] {
				t.Errorf("n=%d k[%d]=%g >= k[%d]=%g; want increasing towards center", n, i-1, kernel[i-1], i, kernel[i])
			}
		}
	}
}

func TestBuildKernel1DDomainError(t *testing.T) {
	for _, n := range []int{0, -1, -5, MaxFilterSize + 1} {
		kernel, err := BuildKernel1D(n)
		if kernel != nil {
			t.Errorf("n=%d kernel=%v; want nil", n, kernel)
		}
		var de *DomainError
		if !errors.As(err, &de) {
			t.Errorf("n=%d err=%v; want DomainError", n, err)
			continue
		}
		if de.Size != n {
			t.Errorf("n=%d DomainError.Size=%d", n, de.Size)
		}
	}
}

func TestBuildKernel2D(t *testing.T) {
	for _, n := range []int{1, 2, 40, 100} {
		k1, err := BuildKernel1D(n)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		k2 := BuildKernel2D(k1)
		rows, cols := k2.Dims()
		if rows != n || cols != n {
			t.Errorf("n=%d dims=%dx%d; want %dx%d", n, rows, cols, n, n)
		}
		if sum := KernelSum2D(k2); math.Abs(sum-1) > epsilon {
			t.Errorf("n=%d sum=%.12f; want 1", n, sum)
		}
		for a := 0; a < n; a++ {
			for b := 0; b < n; b++ {
				if k2.At(a, b) != k2.At(b, a) {
					t.Errorf("n=%d K[%d][%d]=%g K[%d][%d]=%g; want equal", n, a, b, k2.At(a, b), b, a, k2.At(b, a))
				}
				if math.Abs(k2.At(a, b)-k1[a]*k1[b]) > epsilon {
					t.Errorf("n=%d K[%d][%d]=%g; want %g", n, a, b, k2.At(a, b), k1[a]*k1[b])
				}
			}
		}
	}
}

func TestFloorDiv(t *testing.T) {
	tcs := [][3]int{{-5, 2, -3}, {5, 2, 2}, {-4, 2, -2}, {-1, 2, -1}, {0, 2, 0}, {7, -2, -4}}
	for _, tc := range tcs {
		if got := floorDiv(tc[0], tc[1]); got != tc[2] {
			t.Errorf("floorDiv(%d,%d)=%d; want %d", tc[0], tc[1], got, tc[2])
		}
	}
}

func TestCenteringText(t *testing.T) {
	var c Centering
	if err := c.UnmarshalText([]byte("Symmetric")); err != nil || c != CenterSymmetric {
		t.Errorf("c=%v err=%v; want symmetric", c, err)
	}
	if err := c.UnmarshalText([]byte("middle")); err == nil {
		t.Errorf("unknown centering accepted")
	}
}

func TestBuildKernel1DShapes(t *testing.T) {
	for _, shape := range []Shape{ShapeExponential, ShapeGaussian, ShapeBox} {
		for _, n := range []int{1, 2, 5, 40, MaxFilterSize} {
			kernel, err := BuildKernel1DShaped(n, CenterSymmetric, shape)
			if err != nil {
				t.Fatalf("%v n=%d: %v", shape, n, err)
			}
			if sum := floats.Sum(kernel); math.Abs(sum-1) > epsilon {
				t.Errorf("%v n=%d sum=%.12f; want 1", shape, n, sum)
			}
			for i := range kernel {
				if !(kernel[i] > 0) {
					t.Errorf("%v n=%d k[%d]=%g; want >0", shape, n, i, kernel[i])
				}
				if math.Abs(kernel[i]-kernel[n-1-i]) > epsilon {
					t.Errorf("%v n=%d k[%d]=%g k[%d]=%g; want equal", shape, n, i, kernel[i], n-1-i, kernel[n-1-i])
				}
			}
		}
	}

	box, _ := BuildKernel1DShaped(8, CenterFloor, ShapeBox)
	for i, k := range box {
		if math.Abs(k-0.125) > epsilon {
			t.Errorf("box k[%d]=%g; want 0.125", i, k)
		}
	}

	// sigma 1 for radius 3: weights exp(-x^2/2) for offsets -3..3
	gauss, _ := BuildKernel1DShaped(7, CenterSymmetric, ShapeGaussian)
	sum := float64(0)
	for x := -3; x <= 3; x++ {
		sum += math.Exp(-float64(x*x) / 2)
	}
	for i, k := range gauss {
		x := float64(i - 3)
		if want := math.Exp(-x*x/2) / sum; math.Abs(k-want) > epsilon {
			t.Errorf("gaussian k[%d]=%g; want %g", i, k, want)
		}
	}
	if floats.MaxIdx(gauss) != 3 {
		t.Errorf("gaussian peak at %d; want 3", floats.MaxIdx(gauss))
	}
}

func TestShapeText(t *testing.T) {
	var s Shape
	if err := s.UnmarshalText([]byte("Gaussian")); err != nil || s != ShapeGaussian {
		t.Errorf("s=%v err=%v; want gaussian", s, err)
	}
	if b, _ := ShapeBox.MarshalText(); string(b) != "box" {
		t.Errorf("box marshals to %s", string(b))
	}
}

func TestBuildKernel1DUnknownShape(t *testing.T) {
	var oe *OptionError
	if _, err := BuildKernel1DShaped(5, CenterFloor, Shape(3)); !errors.As(err, &oe) || oe.Option != "shape" {
		t.Errorf("shape 3: err=%v; want OptionError", err)
	}
	if _, err := BuildKernel1DShaped(5, Centering(-1), ShapeBox); !errors.As(err, &oe) || oe.Option != "centering" {
		t.Errorf("centering -1: err=%v; want OptionError", err)
	}
}
