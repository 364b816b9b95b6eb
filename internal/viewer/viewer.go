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

package viewer

import (
	"fmt"
	"os"
	"path/filepath"
)

// Opens the image file with the platform's default viewer, without waiting for it to exit
func Show(fileName string) error {
	abs, err := filepath.Abs(fileName)
	if err != nil {
		return err
	}
	if _, err = os.Stat(abs); err != nil {
		return err
	}
	cmd := command(abs)
	if err = cmd.Start(); err != nil {
		return fmt.Errorf("starting viewer %s: %w", cmd.Path, err)
	}
	go cmd.Wait() // reap the child
	return nil
}
