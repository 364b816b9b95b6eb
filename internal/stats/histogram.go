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

package stats

// Number of bins in a histogram of 8-bit samples
const NumBins = 256

// Calculate histogram of channel c of interleaved 8-bit data into the given bins
func Histogram(data []uint8, stride, c int, bins *[NumBins]int32) {
	for i := range bins {
		bins[i] = 0
	}
	for i := c; i < len(data); i += stride {
		bins[data[i]]++
	}
}

// Returns the location and the value of the histogram peak. Ties go to the lower value
func GetPeak(bins *[NumBins]int32) (x uint8, y int32) {
	for i, v := range bins {
		if v > y {
			x, y = uint8(i), v
		}
	}
	return x, y
}
