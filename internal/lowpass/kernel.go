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
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Default filter size
const DefaultFilterSize = 40

// Largest supported filter size. Beyond this, the outermost weights
// 2^(log2(n)-n/2) underflow to zero after normalization
const MaxFilterSize = 2048

// Placement of kernel offsets around the center
type Centering int

const (
	// Integer offsets in [floor(-n/2), floor(n/2)). Even sizes carry one extra tail weight on the left
	CenterFloor Centering = iota
	// Offsets i-(n-1)/2, half-integer for even n. Exactly mirror symmetric
	CenterSymmetric
)

var centeringNames = []string{"floor", "symmetric"}

func (c Centering) String() string {
	if int(c) >= 0 && int(c) < len(centeringNames) {
		return centeringNames[c]
	}
	return fmt.Sprintf("Centering(%d)", int(c))
}

func (c Centering) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Centering) UnmarshalText(text []byte) error {
	i, err := parseEnum("centering", string(text), centeringNames)
	if err != nil {
		return err
	}
	*c = Centering(i)
	return nil
}

// Weight profile of the kernel
type Shape int

const (
	// Weight 2^(log2(n)-|x|), halving with every step away from the center
	ShapeExponential Shape = iota
	// Gaussian weight with standard deviation ceil(r/3) for radius r=floor(n/2), at least 1
	ShapeGaussian
	// Equal weights
	ShapeBox
)

var shapeNames = []string{"exponential", "gaussian", "box"}

func (s Shape) String() string {
	if int(s) >= 0 && int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return fmt.Sprintf("Shape(%d)", int(s))
}

func (s Shape) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Shape) UnmarshalText(text []byte) error {
	i, err := parseEnum("shape", string(text), shapeNames)
	if err != nil {
		return err
	}
	*s = Shape(i)
	return nil
}

// Generates a normalized 1D low-pass kernel of length n. The weight for offset x is
// 2^(log2(n)-|x|) for integer offsets x in [floor(-n/2), floor(n/2)).
// Returns a DomainError if n is not in [1, MaxFilterSize]
func BuildKernel1D(n int) ([]float64, error) {
	return BuildKernel1DCentered(n, CenterFloor)
}

// Generates a normalized 1D low-pass kernel of length n with the given offset placement
func BuildKernel1DCentered(n int, centering Centering) ([]float64, error) {
	return BuildKernel1DShaped(n, centering, ShapeExponential)
}

// Generates a normalized 1D low-pass kernel of length n with the given offset placement and weight profile
func BuildKernel1DShaped(n int, centering Centering, shape Shape) ([]float64, error) {
	if n <= 0 || n > MaxFilterSize {
		return nil, &DomainError{Size: n}
	}
	if err := checkEnum("centering", int(centering), centeringNames); err != nil {
		return nil, err
	}
	if err := checkEnum("shape", int(shape), shapeNames); err != nil {
		return nil, err
	}
	log2n := math.Log2(float64(n))
	sigma := math.Max(1, math.Ceil(float64(n/2)/3))
	lower := floorDiv(-n, 2)
	kernel := make([]float64, n)
	for i := range kernel {
		var x float64
		if centering == CenterSymmetric {
			x = float64(i) - float64(n-1)/2
		} else {
			x = float64(lower + i)
		}
		switch shape {
		case ShapeGaussian:
			kernel[i] = math.Exp(-x * x / (2 * sigma * sigma))
		case ShapeBox:
			kernel[i] = 1
		default:
			kernel[i] = math.Pow(2, log2n-math.Abs(x))
		}
	}

	sum := floats.Sum(kernel)
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel, nil
}

// Generates the 2D kernel as full convolution of the 1D kernel as row vector with its transpose,
// which equals the outer product K[a][b]=k[a]*k[b]. The result is n x n, symmetric and separable.
// k must not be empty
func BuildKernel2D(k []float64) *mat.Dense {
	v := mat.NewVecDense(len(k), k)
	var k2 mat.Dense
	k2.Outer(1, v, v)
	return &k2
}

// Sum of all kernel elements
func KernelSum2D(k *mat.Dense) float64 {
	return mat.Sum(k)
}

// Floor division, rounding towards negative infinity
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func checkEnum(kind string, v int, names []string) error {
	if v < 0 || v >= len(names) {
		return &OptionError{Option: kind, Value: v}
	}
	return nil
}

func parseEnum(kind, s string, names []string) (int, error) {
	l := strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if l == n {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q, want one of %s", kind, s, strings.Join(names, ", "))
}
