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

package blur

import (
	"encoding/json"
	"fmt"

	"github.com/mlnoga/lowpass/internal/img"
	"github.com/mlnoga/lowpass/internal/lowpass"
	"github.com/mlnoga/lowpass/internal/ops"
)

// Blurs the R, G and B channels of the input with a low-pass filter
type OpLowPass struct {
	ops.OpUnaryBase
	lowpass.Filter
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpLowPassDefault() }) } // register the operator for JSON decoding

func NewOpLowPassDefault() *OpLowPass { return NewOpLowPass(lowpass.NewFilter(lowpass.DefaultFilterSize)) }

func NewOpLowPass(f *lowpass.Filter) *OpLowPass {
	op := OpLowPass{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "lowPass", Active: true}},
		Filter:      *f,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

func (op *OpLowPass) UnmarshalJSON(data []byte) error {
	type defaults OpLowPass
	def := defaults(*NewOpLowPassDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpLowPass(def)
	op.OpUnaryBase.Apply = op.Apply
	return nil
}

// Bytes of working memory for filtering an image: one float64 plane per channel, plus one
// temporary plane per concurrent channel for the separable method, plus the 8-bit output
func WorkingBytes(f *lowpass.Filter, im *img.Image) int64 {
	return WorkingBytesFor(f, im.Width, im.Height)
}

// Bytes of working memory for filtering an image of the given dimensions
func WorkingBytesFor(f *lowpass.Filter, width, height int) int64 {
	pixels := int64(width) * int64(height)
	planes := int64(2 * lowpass.NumChannels)
	if f.Method == lowpass.MethodSeparable {
		planes += lowpass.NumChannels
	}
	return pixels*planes*8 + pixels*lowpass.NumChannels + int64(f.Size)*int64(f.Size)*8
}

func (op *OpLowPass) Apply(im *img.Image, c *ops.Context) (result *img.Image, err error) {
	if err = c.CheckMemory(WorkingBytes(&op.Filter, im)); err != nil {
		return nil, fmt.Errorf("%d: %w", im.ID, err)
	}
	f := op.Filter
	if c.MaxThreads > 0 && (f.MaxThreads < 1 || f.MaxThreads > c.MaxThreads) {
		f.MaxThreads = c.MaxThreads
	}
	fmt.Fprintf(c.Log, "%d: Low-pass filtering %s image with size %d, %v centering, %v boundary, %v method, %v overflow\n",
		im.ID, im.DimensionsToString(), f.Size, f.Centering, f.Boundary, f.Method, f.Overflow)
	result, err = f.Apply(im)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", im.ID, err)
	}
	return result, nil
}
