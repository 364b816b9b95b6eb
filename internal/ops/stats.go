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

package ops

import (
	"encoding/json"
	"fmt"

	"github.com/mlnoga/lowpass/internal/img"
	"github.com/mlnoga/lowpass/internal/stats"
)

// Logs statistics of the input image. Produces the unchanged input as output.
// The most recent statistics are kept in Last
type OpStats struct {
	OpUnaryBase
	NumSamples int          `json:"numSamples"`
	Last       *stats.Stats `json:"-"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpStatsDefault() }) } // register the operator for JSON decoding

func NewOpStatsDefault() *OpStats { return NewOpStats(stats.DefaultNumSamples) }

func NewOpStats(numSamples int) *OpStats {
	op := OpStats{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "stats", Active: true}},
		NumSamples:  numSamples,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

func (op *OpStats) UnmarshalJSON(data []byte) error {
	type defaults OpStats
	def := defaults(*NewOpStatsDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpStats(def)
	op.OpUnaryBase.Apply = op.Apply
	return nil
}

func (op *OpStats) Apply(im *img.Image, c *Context) (result *img.Image, err error) {
	if err = im.Validate(); err != nil {
		return nil, err
	}
	op.Last = stats.CalcStats(im, op.NumSamples)
	fmt.Fprintf(c.Log, "%d: %v\n", im.ID, op.Last)
	return im, nil
}
