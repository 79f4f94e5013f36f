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

package permutil

import (
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/permeation"
)

// MaterialProperties are the transport properties of a named material
// as stored in a material database file.
type MaterialProperties struct {
	D0  float64 `toml:"D0"`
	ED  float64 `toml:"ED"`
	S0  float64 `toml:"S0"`
	ES  float64 `toml:"ES"`
	Law string  `toml:"Law"`

	Traps []TrapProperties `toml:"Traps"`
}

// TrapProperties are the parameters of one trap population in a
// material database file.
type TrapProperties struct {
	K0      float64 `toml:"K0"`
	EK      float64 `toml:"EK"`
	P0      float64 `toml:"P0"`
	EP      float64 `toml:"EP"`
	Density float64 `toml:"Density"`
}

// MaterialDB maps material names to their properties.
type MaterialDB map[string]MaterialProperties

// defaultMaterials holds the properties of tungsten and of a generic
// ceramic barrier coating.
const defaultMaterials = `
[tungsten]
D0 = 4.1e-7
ED = 0.39
S0 = 1.87e24
ES = 1.04
Law = "sieverts"

[[tungsten.Traps]]
K0 = 9e-17
EK = 0.39
P0 = 1e13
EP = 0.87
Density = 6.3e25

[coating]
D0 = 1e-8
ED = 0.39
S0 = 1e22
ES = 1.04
Law = "sieverts"
`

// DefaultMaterials returns the built-in material database.
func DefaultMaterials() MaterialDB {
	db := make(MaterialDB)
	if _, err := toml.Decode(defaultMaterials, &db); err != nil {
		panic(err)
	}
	return db
}

// ReadMaterials reads the TOML material database in file and adds its
// entries to db, replacing any existing entries with the same names.
func (db MaterialDB) ReadMaterials(file string) error {
	f := make(MaterialDB)
	md, err := toml.DecodeFile(os.ExpandEnv(file), &f)
	if err != nil {
		return fmt.Errorf("permeation: reading material database: %v", err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return fmt.Errorf("permeation: material database %s: unknown keys %v", file, undec)
	}
	for name, p := range f {
		db[name] = p
	}
	return nil
}

// Names returns the material names in alphabetical order.
func (db MaterialDB) Names() []string {
	o := make([]string, 0, len(db))
	for name := range db {
		o = append(o, name)
	}
	sort.Strings(o)
	return o
}

// Material returns the material called name with the given ID
// occupying [start, end), along with its traps, which are assigned to
// the material IDs in trapIn.
func (db MaterialDB) Material(name string, id int, start, end float64, trapIn ...int) (permeation.Material, []permeation.Trap, error) {
	p, ok := db[name]
	if !ok {
		return permeation.Material{}, nil, fmt.Errorf("permeation: material %q is not in the database; available materials are %v", name, db.Names())
	}
	law, err := permeation.ParseSolubilityLaw(p.Law)
	if err != nil {
		return permeation.Material{}, nil, fmt.Errorf("permeation: material %q: %w", name, err)
	}
	m := permeation.Material{
		ID:    id,
		Name:  name,
		D0:    p.D0,
		ED:    p.ED,
		S0:    p.S0,
		ES:    p.ES,
		Law:   law,
		Start: start,
		End:   end,
	}
	if len(trapIn) == 0 {
		trapIn = []int{id}
	}
	traps := make([]permeation.Trap, len(p.Traps))
	for i, t := range p.Traps {
		traps[i] = permeation.Trap{
			K0:        t.K0,
			EK:        t.EK,
			P0:        t.P0,
			EP:        t.EP,
			Density:   t.Density,
			Materials: append([]int(nil), trapIn...),
		}
	}
	return m, traps, nil
}
