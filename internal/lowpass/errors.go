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
)

// Returned when the filter size is not a positive integer within [1, MaxFilterSize]
type DomainError struct {
	Size int
}

func (e *DomainError) Error() string {
	if e.Size <= 0 {
		return fmt.Sprintf("filter size %d: log2 undefined, must be positive", e.Size)
	}
	return fmt.Sprintf("filter size %d: exceeds maximum %d", e.Size, MaxFilterSize)
}

// Returned when a filter setting holds a value outside its enumeration
type OptionError struct {
	Option string
	Value  int
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("unknown %s %d", e.Option, e.Value)
}

// Returned when an image is not a well-formed (height, width, 3) array
type ShapeError struct {
	Width    int
	Height   int
	Channels int
	Samples  int // actual length of the pixel buffer
}

func (e *ShapeError) Error() string {
	if e.Channels != 3 {
		return fmt.Sprintf("image %dx%dx%d: need exactly 3 channels", e.Width, e.Height, e.Channels)
	}
	return fmt.Sprintf("image %dx%dx%d: pixel buffer has %d samples, want %d",
		e.Width, e.Height, e.Channels, e.Samples, e.Width*e.Height*e.Channels)
}
