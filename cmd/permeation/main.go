/*
Copyright © 2024 the Permeation authors.
This file is part of Permeation.

Permeation is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Permeation is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Permeation.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command permeation is a command-line interface for the hydrogen
// permeation barrier model.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/permeation/permutil"
)

func main() {
	if err := permutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
