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

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mlnoga/lowpass/internal/img"
	"github.com/valyala/fastrand"
)

// Default number of samples for approximate medians
const DefaultNumSamples = 64 * 1024

// Basic statistics on a single channel of 8-bit samples
type ChannelStats struct {
	Min    uint8   `json:"min"`
	Max    uint8   `json:"max"`
	Mean   float32 `json:"mean"`
	StdDev float32 `json:"stdDev"`
	Median float32 `json:"median"` // exact up to the sample count, approximate beyond
	Mode   uint8   `json:"mode"`   // histogram peak
}

// Pretty prints channel stats to string
func (s *ChannelStats) String() string {
	return fmt.Sprintf("Min %d Max %d Mean %.4g StdDev %.4g Median %.4g Mode %d", s.Min, s.Max, s.Mean, s.StdDev, s.Median, s.Mode)
}

// Statistics of an image, per channel and for the mean color
type Stats struct {
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Channels  []ChannelStats `json:"channels"`
	MeanColor string         `json:"meanColor"` // hex sRGB
	Lightness float64        `json:"lightness"` // HSLuv lightness of the mean color, 0..1
}

var channelNames = []string{"R", "G", "B", "A"}

// Pretty prints image stats to string, one channel per line
func (s *Stats) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%dx%d mean color %s lightness %.3f", s.Width, s.Height, s.MeanColor, s.Lightness)
	for c := range s.Channels {
		name := "Y"
		if len(s.Channels) > 1 && c < len(channelNames) {
			name = channelNames[c]
		}
		fmt.Fprintf(&sb, "\n  %s: %v", name, &s.Channels[c])
	}
	return sb.String()
}

// Calculates statistics for all channels of the image. Medians are exact for images with
// at most numSamples pixels, and are estimated from numSamples random pixels otherwise
func CalcStats(im *img.Image, numSamples int) *Stats {
	s := &Stats{Width: im.Width, Height: im.Height, Channels: make([]ChannelStats, im.Channels)}
	if im.Pixels() == 0 {
		s.MeanColor = colorful.Color{}.Hex()
		return s
	}
	if numSamples < 1 {
		numSamples = DefaultNumSamples
	}
	samples := make([]float32, numSamples)
	for c := range s.Channels {
		s.Channels[c] = calcChannelStats(im, c, samples)
	}
	s.MeanColor, s.Lightness = meanColor(s.Channels)
	return s
}

func calcChannelStats(im *img.Image, c int, samples []float32) ChannelStats {
	stride, pixels := im.Channels, im.Pixels()
	min, max := im.Pix[c], im.Pix[c]
	sum := float64(0)
	for i := c; i < len(im.Pix); i += stride {
		v := im.Pix[i]
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += float64(v)
	}
	mean := sum / float64(pixels)

	variance := float64(0)
	for i := c; i < len(im.Pix); i += stride {
		diff := float64(im.Pix[i]) - mean
		variance += diff * diff
	}
	variance /= float64(pixels)

	var median float32
	if pixels <= len(samples) {
		all := samples[:pixels]
		for i := range all {
			all[i] = float32(im.Pix[i*stride+c])
		}
		median = QSelectMedianFloat32(all)
	} else {
		median = FastApproxMedian(im.Pix, stride, c, samples)
	}

	var bins [NumBins]int32
	Histogram(im.Pix, stride, c, &bins)
	mode, _ := GetPeak(&bins)

	return ChannelStats{
		Mode:   mode,
		Min:    min,
		Max:    max,
		Mean:   float32(mean),
		StdDev: float32(math.Sqrt(variance)),
		Median: median,
	}
}

// Calculates fast approximate median of channel c of interleaved data by subsampling len(samples) pixels
// and taking the median of that. Uses provided samples array as scratchpad
func FastApproxMedian(data []uint8, stride, c int, samples []float32) float32 {
	max := uint32(len(data) / stride)
	rng := fastrand.RNG{}
	for i := range samples {
		index := int(rng.Uint32n(max))
		samples[i] = float32(data[index*stride+c])
	}
	return QSelectMedianFloat32(samples)
}

// Returns the mean color as hex string, and its HSLuv lightness. Single channel stats are treated as gray
func meanColor(chans []ChannelStats) (hex string, lightness float64) {
	var col colorful.Color
	if len(chans) < 3 {
		m := float64(chans[0].Mean) / 255
		col = colorful.Color{R: m, G: m, B: m}
	} else {
		col = colorful.Color{R: float64(chans[0].Mean) / 255, G: float64(chans[1].Mean) / 255, B: float64(chans[2].Mean) / 255}
	}
	_, _, lightness = col.HSLuv()
	return col.Hex(), lightness
}
