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
	"path/filepath"
	"strings"

	"github.com/mlnoga/lowpass/internal/img"
)

// Loads a single image from a file. Takes no input, produces one output
type OpLoad struct {
	OpBase
	ID       int    `json:"id"`
	FileName string `json:"fileName"`
	RGB      bool   `json:"rgb"` // convert gray and RGBA inputs to RGB
}

func init() { SetOperatorFactory(func() Operator { return NewOpLoadDefault() }) } // register the operator for JSON decoding

func NewOpLoadDefault() *OpLoad { return NewOpLoad(0, "") }

func NewOpLoad(id int, fileName string) *OpLoad {
	return &OpLoad{
		OpBase:   OpBase{Type: "load", Active: true},
		ID:       id,
		FileName: fileName,
		RGB:      true,
	}
}

func (op *OpLoad) UnmarshalJSON(data []byte) error {
	type defaults OpLoad
	def := defaults(*NewOpLoadDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpLoad(def)
	return nil
}

// Loads image from a file. Fails if an input is provided
func (op *OpLoad) MakePromise(in Promise, c *Context) (out Promise, err error) {
	if in != nil {
		return nil, fmt.Errorf("%s operator with non-nil input", op.Type)
	}
	if c.Sandboxed && !isPathAllowed(op.FileName) {
		return nil, fmt.Errorf("%s: filename outside current directory tree, aborting", op.FileName)
	}
	return func() (im *img.Image, err error) {
		return op.Apply(nil, c) // no inputs to materialize
	}, nil
}

// Returns true if a path is considered safe, i.e. not an absolute path,
// and doesn't contain the ".." characters to change to a parent directory
func isPathAllowed(p string) bool {
	if p == "" || filepath.IsAbs(p) {
		return false // relative paths only
	}
	if strings.Contains(p, "..") {
		return false // no going outside the tree
	}
	return true
}

// Loads the image. Ignores any im argument provided
func (op *OpLoad) Apply(im *img.Image, c *Context) (result *img.Image, err error) {
	im, err = img.NewImageFromFile(op.FileName, op.ID)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(c.Log, "%d: Loaded %s %s image from %s\n", im.ID, im.DimensionsToString(), im.ColorModelToString(), im.FileName)
	if op.RGB && im.Channels != 3 {
		if im, err = im.ToRGB(); err != nil {
			return nil, err
		}
		fmt.Fprintf(c.Log, "%d: Converted to %s\n", im.ID, im.DimensionsToString())
	}
	return im, nil
}

// Saves the input under a given filename, with pattern expansion for %d based on the image id.
// The format is chosen by suffix. Produces the unchanged input as output
type OpSave struct {
	OpUnaryBase
	FilePattern string `json:"filePattern"`
	Quality     int    `json:"quality"` // JPEG only
}

func init() { SetOperatorFactory(func() Operator { return NewOpSaveDefault() }) } // register the operator for JSON decoding

func NewOpSaveDefault() *OpSave { return NewOpSave("") }

func NewOpSave(filePattern string) *OpSave {
	op := OpSave{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "save", Active: filePattern != ""}},
		FilePattern: filePattern,
		Quality:     img.DefaultQuality,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

func (op *OpSave) UnmarshalJSON(data []byte) error {
	type defaults OpSave
	def := defaults(*NewOpSaveDefault())
	def.Active = true
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpSave(def)
	op.OpUnaryBase.Apply = op.Apply
	return nil
}

// Returns the file name for the given image ID
func (op *OpSave) FileName(id int) string {
	if strings.Contains(op.FilePattern, "%d") {
		return fmt.Sprintf(op.FilePattern, id)
	}
	return op.FilePattern
}

func (op *OpSave) MakePromise(in Promise, c *Context) (out Promise, err error) {
	if op.Active && op.FilePattern != "" && c.Sandboxed && !isPathAllowed(op.FilePattern) {
		return nil, fmt.Errorf("%s: filename outside current directory tree, aborting", op.FilePattern)
	}
	return op.OpUnaryBase.MakePromise(in, c)
}

func (op *OpSave) Apply(im *img.Image, c *Context) (result *img.Image, err error) {
	if !op.Active || op.FilePattern == "" {
		return im, nil
	}
	fileName := op.FileName(im.ID)
	fmt.Fprintf(c.Log, "%d: Writing %s pixel image to %s\n", im.ID, im.DimensionsToString(), fileName)
	if err = im.WriteFile(fileName, op.Quality); err != nil {
		return nil, fmt.Errorf("%d: error writing to file %s: %w", im.ID, fileName, err)
	}
	return im, nil
}
